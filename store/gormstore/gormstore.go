// Package gormstore implements the repositories on MySQL through gorm. Follow edges live in
// their own table keyed by (follower_id, following_id); no foreign keys are created, so
// referential integrity stays an application concern exactly as with the document store.
package gormstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/chamran/apperrors"
	"github.com/cppla/chamran/models"
	"github.com/cppla/chamran/store"
)

// New wraps an opened gorm connection.
func New(db *gorm.DB) *store.Store {
	return &store.Store{
		Users:    &userStore{db: db},
		Posts:    &postStore{db: db},
		Comments: &commentStore{db: db},
		Setup: func(ctx context.Context) error {
			return Migrate(db.WithContext(ctx))
		},
		Close: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	}
}

// Migrate creates the tables and indexes used by the store.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.User{}, &models.Post{}, &models.Comment{}, &models.Follow{})
}

func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "Duplicate entry") || strings.Contains(err.Error(), "Error 1062")
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Internal(op, err)
}

type userStore struct {
	db *gorm.DB
}

// attachFollowings fills Followings for every user with one query.
func (s *userStore) attachFollowings(ctx context.Context, users []models.User) error {
	if len(users) == 0 {
		return nil
	}
	ids := make([]string, len(users))
	index := make(map[string]int, len(users))
	for i := range users {
		ids[i] = users[i].ID
		index[users[i].ID] = i
		users[i].Followings = []string{}
	}
	var edges []models.Follow
	if err := s.db.WithContext(ctx).
		Where("follower_id IN ?", ids).
		Order("created_at ASC, following_id ASC").
		Find(&edges).Error; err != nil {
		return wrap("load followings", err)
	}
	for _, e := range edges {
		i := index[e.FollowerID]
		users[i].Followings = append(users[i].Followings, e.FollowingID)
	}
	return nil
}

func (s *userStore) List(ctx context.Context, filter store.UserFilter) ([]models.User, error) {
	users := []models.User{}
	if filter.IDs != nil && len(filter.IDs) == 0 {
		return users, nil
	}

	query := s.db.WithContext(ctx).Model(&models.User{})
	if filter.IDs != nil {
		query = query.Where("id IN ?", filter.IDs)
	}
	if filter.FollowerOf != "" {
		followers := s.db.Model(&models.Follow{}).Select("follower_id").Where("following_id = ?", filter.FollowerOf)
		query = query.Where("id IN (?)", followers)
	}
	if q := strings.ToLower(strings.TrimSpace(filter.Query)); q != "" {
		like := "%" + q + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}

	if err := query.Order("created_at ASC, id ASC").Find(&users).Error; err != nil {
		return nil, wrap("list users", err)
	}
	if err := s.attachFollowings(ctx, users); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *userStore) first(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where(query, args...).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, wrap("get user", err)
	}
	users := []models.User{user}
	if err := s.attachFollowings(ctx, users); err != nil {
		return nil, err
	}
	return &users[0], nil
}

func (s *userStore) Get(ctx context.Context, id string) (*models.User, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *userStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.first(ctx, "email = ?", email)
}

func (s *userStore) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Limit(1).Count(&count).Error; err != nil {
		return false, wrap("check user", err)
	}
	return count > 0, nil
}

func (s *userStore) Create(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(u).Error; err != nil {
		if isDuplicate(err) {
			return apperrors.ErrUserExists
		}
		return wrap("create user", err)
	}
	if u.Followings == nil {
		u.Followings = []string{}
	}
	return nil
}

func (s *userStore) Update(ctx context.Context, id string, patch models.UserPatch) (bool, error) {
	var current models.User
	err := s.db.WithContext(ctx).Where("id = ? AND role <> ?", id, models.RoleAdmin).First(&current).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, apperrors.ErrUserNotFound
		}
		return false, wrap("load user", err)
	}

	updates := map[string]interface{}{}
	if patch.Name.Set && patch.Name.Value != current.Name {
		updates["name"] = patch.Name.Value
	}
	if patch.Email.Set && patch.Email.Value != current.Email {
		updates["email"] = patch.Email.Value
	}
	if patch.Credential.Set && patch.Credential.Value != current.Credential {
		updates["credential"] = patch.Credential.Value
	}
	if len(updates) == 0 {
		return false, nil
	}
	updates["updated_at"] = time.Now().UTC()

	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND role <> ?", id, models.RoleAdmin).
		Updates(updates)
	if res.Error != nil {
		if isDuplicate(res.Error) {
			return false, apperrors.ErrUserExists
		}
		return false, wrap("update user", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, apperrors.ErrUserNotFound
	}
	return true, nil
}

// Delete removes the user row together with the edges it owns; those edges are part of the
// user record in the document model.
func (s *userStore) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND role <> ?", id, models.RoleAdmin).Delete(&models.User{})
		if res.Error != nil {
			return wrap("delete user", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrUserNotFound
		}
		if err := tx.Where("follower_id = ?", id).Delete(&models.Follow{}).Error; err != nil {
			return wrap("delete own followings", err)
		}
		return nil
	})
}

func (s *userStore) requireUser(ctx context.Context, id string) error {
	ok, err := s.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrUserNotFound
	}
	return nil
}

func (s *userStore) FollowingIDs(ctx context.Context, followerID string) ([]string, error) {
	if err := s.requireUser(ctx, followerID); err != nil {
		return nil, err
	}
	ids := []string{}
	if err := s.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ?", followerID).
		Order("created_at ASC, following_id ASC").
		Pluck("following_id", &ids).Error; err != nil {
		return nil, wrap("list followings", err)
	}
	return ids, nil
}

func (s *userStore) AddFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	if err := s.requireUser(ctx, followerID); err != nil {
		return false, err
	}
	edge := models.Follow{FollowerID: followerID, FollowingID: followingID, CreatedAt: time.Now().UTC()}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&edge)
	if res.Error != nil {
		return false, wrap("add following", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *userStore) RemoveFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	if err := s.requireUser(ctx, followerID); err != nil {
		return false, err
	}
	res := s.db.WithContext(ctx).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Delete(&models.Follow{})
	if res.Error != nil {
		return false, wrap("remove following", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *userStore) PullFollowingEverywhere(ctx context.Context, id string) (int64, error) {
	res := s.db.WithContext(ctx).Where("following_id = ?", id).Delete(&models.Follow{})
	if res.Error != nil {
		return 0, wrap("prune followings", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *userStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&n).Error; err != nil {
		return 0, wrap("count users", err)
	}
	return n, nil
}

type postStore struct {
	db *gorm.DB
}

// joined selects posts inner-joined with their author so orphans are skipped.
func (s *postStore) joined(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).InnerJoins("Author")
}

func (s *postStore) List(ctx context.Context, filter store.PostFilter) ([]models.Post, error) {
	posts := []models.Post{}
	if filter.AuthorIDs != nil && len(filter.AuthorIDs) == 0 {
		return posts, nil
	}
	query := s.joined(ctx)
	if filter.AuthorIDs != nil {
		query = query.Where("posts.author_id IN ?", filter.AuthorIDs)
	}
	if err := query.Order("posts.created_at DESC, posts.id DESC").Find(&posts).Error; err != nil {
		return nil, wrap("list posts", err)
	}
	return posts, nil
}

func (s *postStore) Get(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	if err := s.joined(ctx).Where("posts.id = ?", id).First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPostNotFound
		}
		return nil, wrap("get post", err)
	}
	return &post, nil
}

func (s *postStore) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).Limit(1).Count(&count).Error; err != nil {
		return false, wrap("check post", err)
	}
	return count > 0, nil
}

func (s *postStore) Create(ctx context.Context, p *models.Post) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(p).Error; err != nil {
		return wrap("create post", err)
	}
	return nil
}

func scoped(db *gorm.DB, id, expectedAuthor string) *gorm.DB {
	db = db.Where("id = ?", id)
	if expectedAuthor != "" {
		db = db.Where("author_id = ?", expectedAuthor)
	}
	return db
}

func (s *postStore) Update(ctx context.Context, id, expectedAuthor, content string) error {
	res := scoped(s.db.WithContext(ctx).Model(&models.Post{}), id, expectedAuthor).
		Updates(map[string]interface{}{"content": content, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return wrap("update post", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrPostNotFound
	}
	return nil
}

func (s *postStore) Delete(ctx context.Context, id, expectedAuthor string) error {
	res := scoped(s.db.WithContext(ctx), id, expectedAuthor).Delete(&models.Post{})
	if res.Error != nil {
		return wrap("delete post", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrPostNotFound
	}
	return nil
}

func (s *postStore) IDsByAuthor(ctx context.Context, authorID string) ([]string, error) {
	ids := []string{}
	if err := s.db.WithContext(ctx).Model(&models.Post{}).Where("author_id = ?", authorID).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, wrap("list post ids", err)
	}
	return ids, nil
}

func (s *postStore) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.Post{})
	if res.Error != nil {
		return 0, wrap("delete posts", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *postStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Post{}).Count(&n).Error; err != nil {
		return 0, wrap("count posts", err)
	}
	return n, nil
}

type commentStore struct {
	db *gorm.DB
}

func (s *commentStore) list(ctx context.Context, column, value string) ([]models.Comment, error) {
	comments := []models.Comment{}
	err := s.db.WithContext(ctx).InnerJoins("Author").
		Where("comments."+column+" = ?", value).
		Order("comments.created_at ASC, comments.id ASC").
		Find(&comments).Error
	if err != nil {
		return nil, wrap("list comments", err)
	}
	return comments, nil
}

func (s *commentStore) ListByPost(ctx context.Context, postID string) ([]models.Comment, error) {
	return s.list(ctx, "post_id", postID)
}

func (s *commentStore) ListByAuthor(ctx context.Context, authorID string) ([]models.Comment, error) {
	return s.list(ctx, "author_id", authorID)
}

func (s *commentStore) Get(ctx context.Context, id string) (*models.Comment, error) {
	var comment models.Comment
	if err := s.db.WithContext(ctx).InnerJoins("Author").Where("comments.id = ?", id).First(&comment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCommentNotFound
		}
		return nil, wrap("get comment", err)
	}
	return &comment, nil
}

func (s *commentStore) Create(ctx context.Context, c *models.Comment) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(c).Error; err != nil {
		return wrap("create comment", err)
	}
	return nil
}

func (s *commentStore) Update(ctx context.Context, id, expectedAuthor, content string) error {
	res := scoped(s.db.WithContext(ctx).Model(&models.Comment{}), id, expectedAuthor).
		Updates(map[string]interface{}{"content": content, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return wrap("update comment", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrCommentNotFound
	}
	return nil
}

func (s *commentStore) Delete(ctx context.Context, id, expectedAuthor string) error {
	res := scoped(s.db.WithContext(ctx), id, expectedAuthor).Delete(&models.Comment{})
	if res.Error != nil {
		return wrap("delete comment", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrCommentNotFound
	}
	return nil
}

func (s *commentStore) deleteWhere(ctx context.Context, query string, arg interface{}) (int64, error) {
	res := s.db.WithContext(ctx).Where(query, arg).Delete(&models.Comment{})
	if res.Error != nil {
		return 0, wrap("delete comments", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *commentStore) DeleteByPost(ctx context.Context, postID string) (int64, error) {
	return s.deleteWhere(ctx, "post_id = ?", postID)
}

func (s *commentStore) DeleteByPosts(ctx context.Context, postIDs []string) (int64, error) {
	if len(postIDs) == 0 {
		return 0, nil
	}
	return s.deleteWhere(ctx, "post_id IN ?", postIDs)
}

func (s *commentStore) DeleteByAuthor(ctx context.Context, authorID string) (int64, error) {
	return s.deleteWhere(ctx, "author_id = ?", authorID)
}

func (s *commentStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Comment{}).Count(&n).Error; err != nil {
		return 0, wrap("count comments", err)
	}
	return n, nil
}
