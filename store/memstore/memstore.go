// Package memstore keeps users, posts and comments in process memory. It backs local
// development (DB_DRIVER=memory) and the service and controller tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cppla/chamran/apperrors"
	"github.com/cppla/chamran/models"
	"github.com/cppla/chamran/store"
)

// DB is the shared state behind the three repositories. Each method takes the lock once so
// every call is atomic on its own, mirroring single-document atomicity.
type DB struct {
	mu       sync.RWMutex
	users    map[string]*models.User
	posts    map[string]*models.Post
	comments map[string]*models.Comment
	now      func() time.Time
}

// New returns an empty in-memory store.
func New() *store.Store {
	db := NewDB()
	return db.Store()
}

// NewDB returns the raw state so tests can inject a clock.
func NewDB() *DB {
	return &DB{
		users:    map[string]*models.User{},
		posts:    map[string]*models.Post{},
		comments: map[string]*models.Comment{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source used for timestamps.
func (db *DB) SetClock(now func() time.Time) {
	db.mu.Lock()
	db.now = now
	db.mu.Unlock()
}

// Store wraps db into the repository bundle.
func (db *DB) Store() *store.Store {
	return &store.Store{
		Users:    &userStore{db},
		Posts:    &postStore{db},
		Comments: &commentStore{db},
	}
}

func cloneUser(u *models.User) models.User {
	c := *u
	c.Followings = append([]string(nil), u.Followings...)
	return c
}

func (db *DB) author(id string) *models.User {
	u, ok := db.users[id]
	if !ok {
		return nil
	}
	c := cloneUser(u)
	return &c
}

type userStore struct{ db *DB }

func (s *userStore) List(ctx context.Context, filter store.UserFilter) ([]models.User, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var ids map[string]bool
	if filter.IDs != nil {
		ids = make(map[string]bool, len(filter.IDs))
		for _, id := range filter.IDs {
			ids[id] = true
		}
	}
	q := strings.ToLower(strings.TrimSpace(filter.Query))

	out := []models.User{}
	for _, u := range s.db.users {
		if ids != nil && !ids[u.ID] {
			continue
		}
		if filter.FollowerOf != "" && !u.Follows(filter.FollowerOf) {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(u.Name), q) && !strings.Contains(strings.ToLower(u.Email), q) {
			continue
		}
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *userStore) Get(ctx context.Context, id string) (*models.User, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	u := s.db.author(id)
	if u == nil {
		return nil, apperrors.ErrUserNotFound
	}
	return u, nil
}

func (s *userStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	for _, u := range s.db.users {
		if u.Email == email {
			c := cloneUser(u)
			return &c, nil
		}
	}
	return nil, apperrors.ErrUserNotFound
}

func (s *userStore) Exists(ctx context.Context, id string) (bool, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	_, ok := s.db.users[id]
	return ok, nil
}

func (s *userStore) emailTaken(email, except string) bool {
	for _, u := range s.db.users {
		if u.Email == email && u.ID != except {
			return true
		}
	}
	return false
}

func (s *userStore) Create(ctx context.Context, u *models.User) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.emailTaken(u.Email, "") {
		return apperrors.ErrUserExists
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := s.db.now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	if u.Role == "" {
		u.Role = models.RoleMember
	}
	if u.Followings == nil {
		u.Followings = []string{}
	}
	c := cloneUser(u)
	s.db.users[u.ID] = &c
	return nil
}

func (s *userStore) Update(ctx context.Context, id string, patch models.UserPatch) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok || u.IsAdmin() {
		return false, apperrors.ErrUserNotFound
	}
	if patch.Email.Set && s.emailTaken(patch.Email.Value, id) {
		return false, apperrors.ErrUserExists
	}
	changed := false
	if patch.Name.Set && patch.Name.Value != u.Name {
		u.Name, changed = patch.Name.Value, true
	}
	if patch.Email.Set && patch.Email.Value != u.Email {
		u.Email, changed = patch.Email.Value, true
	}
	if patch.Credential.Set && patch.Credential.Value != u.Credential {
		u.Credential, changed = patch.Credential.Value, true
	}
	if changed {
		u.UpdatedAt = s.db.now()
	}
	return changed, nil
}

func (s *userStore) Delete(ctx context.Context, id string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok || u.IsAdmin() {
		return apperrors.ErrUserNotFound
	}
	delete(s.db.users, id)
	return nil
}

func (s *userStore) FollowingIDs(ctx context.Context, followerID string) ([]string, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	u, ok := s.db.users[followerID]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	return append([]string{}, u.Followings...), nil
}

func (s *userStore) AddFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[followerID]
	if !ok {
		return false, apperrors.ErrUserNotFound
	}
	if u.Follows(followingID) {
		return false, nil
	}
	u.Followings = append(u.Followings, followingID)
	return true, nil
}

func (s *userStore) RemoveFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[followerID]
	if !ok {
		return false, apperrors.ErrUserNotFound
	}
	before := len(u.Followings)
	u.Followings = without(u.Followings, followingID)
	return len(u.Followings) != before, nil
}

func (s *userStore) PullFollowingEverywhere(ctx context.Context, id string) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var n int64
	for _, u := range s.db.users {
		if u.Follows(id) {
			u.Followings = without(u.Followings, id)
			n++
		}
	}
	return n, nil
}

func (s *userStore) Count(ctx context.Context) (int64, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return int64(len(s.db.users)), nil
}

func without(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

type postStore struct{ db *DB }

// resolve copies p with its author attached. ok is false for orphaned posts.
func (s *postStore) resolve(p *models.Post) (models.Post, bool) {
	c := *p
	c.Author = s.db.author(p.AuthorID)
	return c, c.Author != nil
}

func (s *postStore) List(ctx context.Context, filter store.PostFilter) ([]models.Post, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var authors map[string]bool
	if filter.AuthorIDs != nil {
		authors = make(map[string]bool, len(filter.AuthorIDs))
		for _, id := range filter.AuthorIDs {
			authors[id] = true
		}
	}

	out := []models.Post{}
	for _, p := range s.db.posts {
		if authors != nil && !authors[p.AuthorID] {
			continue
		}
		if c, ok := s.resolve(p); ok {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *postStore) Get(ctx context.Context, id string) (*models.Post, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	p, ok := s.db.posts[id]
	if !ok {
		return nil, apperrors.ErrPostNotFound
	}
	c, ok := s.resolve(p)
	if !ok {
		return nil, apperrors.ErrPostNotFound
	}
	return &c, nil
}

func (s *postStore) Exists(ctx context.Context, id string) (bool, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	_, ok := s.db.posts[id]
	return ok, nil
}

func (s *postStore) Create(ctx context.Context, p *models.Post) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := s.db.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	c := *p
	c.Author = nil
	s.db.posts[p.ID] = &c
	return nil
}

func (s *postStore) Update(ctx context.Context, id, expectedAuthor, content string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.posts[id]
	if !ok || (expectedAuthor != "" && p.AuthorID != expectedAuthor) {
		return apperrors.ErrPostNotFound
	}
	p.Content = content
	p.UpdatedAt = s.db.now()
	return nil
}

func (s *postStore) Delete(ctx context.Context, id, expectedAuthor string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.posts[id]
	if !ok || (expectedAuthor != "" && p.AuthorID != expectedAuthor) {
		return apperrors.ErrPostNotFound
	}
	delete(s.db.posts, id)
	return nil
}

func (s *postStore) IDsByAuthor(ctx context.Context, authorID string) ([]string, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	ids := []string{}
	for id, p := range s.db.posts {
		if p.AuthorID == authorID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *postStore) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := s.db.posts[id]; ok {
			delete(s.db.posts, id)
			n++
		}
	}
	return n, nil
}

func (s *postStore) Count(ctx context.Context) (int64, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return int64(len(s.db.posts)), nil
}

type commentStore struct{ db *DB }

func (s *commentStore) list(match func(*models.Comment) bool) []models.Comment {
	out := []models.Comment{}
	for _, c := range s.db.comments {
		if !match(c) {
			continue
		}
		cp := *c
		cp.Author = s.db.author(c.AuthorID)
		if cp.Author == nil {
			continue
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *commentStore) ListByPost(ctx context.Context, postID string) ([]models.Comment, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return s.list(func(c *models.Comment) bool { return c.PostID == postID }), nil
}

func (s *commentStore) ListByAuthor(ctx context.Context, authorID string) ([]models.Comment, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return s.list(func(c *models.Comment) bool { return c.AuthorID == authorID }), nil
}

func (s *commentStore) Get(ctx context.Context, id string) (*models.Comment, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	c, ok := s.db.comments[id]
	if !ok {
		return nil, apperrors.ErrCommentNotFound
	}
	cp := *c
	cp.Author = s.db.author(c.AuthorID)
	if cp.Author == nil {
		return nil, apperrors.ErrCommentNotFound
	}
	return &cp, nil
}

func (s *commentStore) Create(ctx context.Context, c *models.Comment) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := s.db.now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	cp := *c
	cp.Author = nil
	s.db.comments[c.ID] = &cp
	return nil
}

func (s *commentStore) Update(ctx context.Context, id, expectedAuthor, content string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	c, ok := s.db.comments[id]
	if !ok || (expectedAuthor != "" && c.AuthorID != expectedAuthor) {
		return apperrors.ErrCommentNotFound
	}
	c.Content = content
	c.UpdatedAt = s.db.now()
	return nil
}

func (s *commentStore) Delete(ctx context.Context, id, expectedAuthor string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	c, ok := s.db.comments[id]
	if !ok || (expectedAuthor != "" && c.AuthorID != expectedAuthor) {
		return apperrors.ErrCommentNotFound
	}
	delete(s.db.comments, id)
	return nil
}

func (s *commentStore) deleteWhere(match func(*models.Comment) bool) int64 {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var n int64
	for id, c := range s.db.comments {
		if match(c) {
			delete(s.db.comments, id)
			n++
		}
	}
	return n
}

func (s *commentStore) DeleteByPost(ctx context.Context, postID string) (int64, error) {
	return s.deleteWhere(func(c *models.Comment) bool { return c.PostID == postID }), nil
}

func (s *commentStore) DeleteByPosts(ctx context.Context, postIDs []string) (int64, error) {
	if len(postIDs) == 0 {
		return 0, nil
	}
	set := make(map[string]bool, len(postIDs))
	for _, id := range postIDs {
		set[id] = true
	}
	return s.deleteWhere(func(c *models.Comment) bool { return set[c.PostID] }), nil
}

func (s *commentStore) DeleteByAuthor(ctx context.Context, authorID string) (int64, error) {
	return s.deleteWhere(func(c *models.Comment) bool { return c.AuthorID == authorID }), nil
}

func (s *commentStore) Count(ctx context.Context) (int64, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return int64(len(s.db.comments)), nil
}
