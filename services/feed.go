package services

import (
	"context"
	"sort"

	"github.com/cppla/chamran/apperrors"
	"github.com/cppla/chamran/models"
	"github.com/cppla/chamran/store"
	"github.com/cppla/chamran/utils"
)

// FeedService builds author-denormalized read-models.
type FeedService struct {
	users    store.UserStore
	posts    store.PostStore
	comments store.CommentStore
}

func NewFeedService(users store.UserStore, posts store.PostStore, comments store.CommentStore) *FeedService {
	return &FeedService{users: users, posts: posts, comments: comments}
}

func postViews(posts []models.Post) []models.PostView {
	views := make([]models.PostView, 0, len(posts))
	for _, p := range posts {
		if v, ok := p.View(); ok {
			views = append(views, v)
		}
	}
	return views
}

func commentViews(comments []models.Comment) []models.CommentView {
	views := make([]models.CommentView, 0, len(comments))
	for _, c := range comments {
		if v, ok := c.View(); ok {
			views = append(views, v)
		}
	}
	return views
}

// sortNewestFirst orders by creation time descending, ties by id descending.
func sortNewestFirst(views []models.PostView) {
	sort.SliceStable(views, func(i, j int) bool {
		if views[i].CreationTime.Equal(views[j].CreationTime) {
			return views[i].ID > views[j].ID
		}
		return views[i].CreationTime.After(views[j].CreationTime)
	})
}

// AllPosts returns every post with its author.
func (f *FeedService) AllPosts(ctx context.Context) ([]models.PostView, error) {
	posts, err := f.posts.List(ctx, store.PostFilter{})
	if err != nil {
		return nil, err
	}
	views := postViews(posts)
	sortNewestFirst(views)
	return views, nil
}

// PostsByAuthor returns the posts written by authorID.
func (f *FeedService) PostsByAuthor(ctx context.Context, authorID string) ([]models.PostView, error) {
	posts, err := f.posts.List(ctx, store.PostFilter{AuthorIDs: []string{authorID}})
	if err != nil {
		return nil, err
	}
	views := postViews(posts)
	sortNewestFirst(views)
	return views, nil
}

// Feed returns the posts of userID and of everyone userID follows, newest first.
func (f *FeedService) Feed(ctx context.Context, userID string) ([]models.PostView, error) {
	followings, err := f.users.FollowingIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	authors := utils.Unique(append([]string{userID}, followings...))
	posts, err := f.posts.List(ctx, store.PostFilter{AuthorIDs: authors})
	if err != nil {
		return nil, err
	}
	views := postViews(posts)
	sortNewestFirst(views)
	return views, nil
}

// Post returns a single post.
func (f *FeedService) Post(ctx context.Context, postID string) (*models.PostView, error) {
	p, err := f.posts.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	views := postViews([]models.Post{*p})
	if len(views) == 0 {
		return nil, apperrors.ErrPostNotFound
	}
	return &views[0], nil
}

// CommentsOfPost lists the comments of postID. An unknown post yields an empty list.
func (f *FeedService) CommentsOfPost(ctx context.Context, postID string) ([]models.CommentView, error) {
	comments, err := f.comments.ListByPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	return commentViews(comments), nil
}

// CommentsByAuthor lists the comments written by authorID.
func (f *FeedService) CommentsByAuthor(ctx context.Context, authorID string) ([]models.CommentView, error) {
	ok, err := f.users.Exists(ctx, authorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	comments, err := f.comments.ListByAuthor(ctx, authorID)
	if err != nil {
		return nil, err
	}
	return commentViews(comments), nil
}

// Comment returns a single comment.
func (f *FeedService) Comment(ctx context.Context, commentID string) (*models.CommentView, error) {
	c, err := f.comments.Get(ctx, commentID)
	if err != nil {
		return nil, err
	}
	views := commentViews([]models.Comment{*c})
	if len(views) == 0 {
		return nil, apperrors.ErrCommentNotFound
	}
	return &views[0], nil
}
