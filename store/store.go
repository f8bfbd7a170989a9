// Package store declares the persistence contracts shared by the mongo, gorm and in-memory
// backends. Implementations translate driver failures into apperrors values so callers never
// see driver types.
package store

import (
	"context"

	"github.com/cppla/chamran/models"
)

// UserFilter narrows a user listing. Zero value lists everyone.
type UserFilter struct {
	// IDs restricts the result to these ids when non-nil. An empty non-nil slice matches nothing.
	IDs []string
	// FollowerOf selects users whose followings contain this id.
	FollowerOf string
	// Query is a case-insensitive substring matched against name and email.
	Query string
}

// PostFilter narrows a post listing. A nil AuthorIDs lists every post.
type PostFilter struct {
	AuthorIDs []string
}

// UserStore persists users and the follow edges that originate from them.
type UserStore interface {
	List(ctx context.Context, filter UserFilter) ([]models.User, error)
	Get(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Exists(ctx context.Context, id string) (bool, error)
	// Create assigns an id to u and inserts it. A duplicate email yields ErrUserExists.
	Create(ctx context.Context, u *models.User) error
	// Update applies the present fields of patch. Admin accounts never match.
	Update(ctx context.Context, id string, patch models.UserPatch) (bool, error)
	// Delete removes a single user. Admin accounts never match.
	Delete(ctx context.Context, id string) error

	FollowingIDs(ctx context.Context, followerID string) ([]string, error)
	// AddFollowing inserts the edge with set semantics and reports whether it was new.
	AddFollowing(ctx context.Context, followerID, followingID string) (bool, error)
	// RemoveFollowing deletes the edge and reports whether it existed.
	RemoveFollowing(ctx context.Context, followerID, followingID string) (bool, error)
	// PullFollowingEverywhere removes id from every followings set.
	PullFollowingEverywhere(ctx context.Context, id string) (int64, error)

	Count(ctx context.Context) (int64, error)
}

// PostStore persists posts. Read methods return posts with Author resolved; posts whose
// author no longer exists are omitted.
type PostStore interface {
	List(ctx context.Context, filter PostFilter) ([]models.Post, error)
	Get(ctx context.Context, id string) (*models.Post, error)
	Exists(ctx context.Context, id string) (bool, error)
	Create(ctx context.Context, p *models.Post) error
	// Update and Delete match any author when expectedAuthor is empty.
	Update(ctx context.Context, id, expectedAuthor, content string) error
	Delete(ctx context.Context, id, expectedAuthor string) error
	IDsByAuthor(ctx context.Context, authorID string) ([]string, error)
	// DeleteByIDs removes exactly the listed posts and reports how many existed.
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// CommentStore persists comments. Read methods resolve Author like PostStore.
type CommentStore interface {
	ListByPost(ctx context.Context, postID string) ([]models.Comment, error)
	ListByAuthor(ctx context.Context, authorID string) ([]models.Comment, error)
	Get(ctx context.Context, id string) (*models.Comment, error)
	Create(ctx context.Context, c *models.Comment) error
	Update(ctx context.Context, id, expectedAuthor, content string) error
	Delete(ctx context.Context, id, expectedAuthor string) error
	DeleteByPost(ctx context.Context, postID string) (int64, error)
	DeleteByPosts(ctx context.Context, postIDs []string) (int64, error)
	DeleteByAuthor(ctx context.Context, authorID string) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// Store bundles the three repositories of one backend.
type Store struct {
	Users    UserStore
	Posts    PostStore
	Comments CommentStore
	// Setup creates indexes and tables. May be nil.
	Setup func(ctx context.Context) error
	// Close releases the backend connection. May be nil.
	Close func(ctx context.Context) error
}

// Prepare calls Setup when set.
func (s *Store) Prepare(ctx context.Context) error {
	if s == nil || s.Setup == nil {
		return nil
	}
	return s.Setup(ctx)
}

// Shutdown calls Close when set.
func (s *Store) Shutdown(ctx context.Context) error {
	if s == nil || s.Close == nil {
		return nil
	}
	return s.Close(ctx)
}
