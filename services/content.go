package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/cppla/chamran/apperrors"
	"github.com/cppla/chamran/events"
	"github.com/cppla/chamran/models"
	"github.com/cppla/chamran/store"
	"github.com/cppla/chamran/utils"
)

// ContentService creates and edits posts and comments.
type ContentService struct {
	users    store.UserStore
	posts    store.PostStore
	comments store.CommentStore
	events   events.Publisher
	logger   *zap.Logger
}

func NewContentService(s *store.Store, pub events.Publisher, logger *zap.Logger) *ContentService {
	return &ContentService{users: s.Users, posts: s.Posts, comments: s.Comments, events: pub, logger: logger}
}

func cleanContent(content string) (string, error) {
	content = strings.TrimSpace(utils.Sanitize(content))
	if content == "" {
		return "", apperrors.ErrInvalidContent
	}
	return content, nil
}

// CreatePost stores a post by authorID.
func (s *ContentService) CreatePost(ctx context.Context, authorID, content string) (*models.PostView, error) {
	content, err := cleanContent(content)
	if err != nil {
		return nil, err
	}
	author, err := s.users.Get(ctx, authorID)
	if err != nil {
		return nil, err
	}
	post := &models.Post{AuthorID: author.ID, Content: content}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}
	post.Author = author
	view, _ := post.View()
	events.Emit(ctx, s.events, s.logger, events.PostCreated, events.PostEvent{PostID: post.ID, AuthorID: author.ID})
	return &view, nil
}

// UpdatePost replaces the content of a post matching expectedAuthor (empty matches any).
func (s *ContentService) UpdatePost(ctx context.Context, postID, expectedAuthor string, patch models.ContentPatch) error {
	if patch.Empty() {
		return apperrors.ErrEmptyPatch
	}
	content, err := cleanContent(patch.Content.Value)
	if err != nil {
		return err
	}
	return s.posts.Update(ctx, postID, expectedAuthor, content)
}

// CreateComment stores a comment by authorID on postID. Nothing is stored when either is missing.
func (s *ContentService) CreateComment(ctx context.Context, authorID, postID, content string) (*models.CommentView, error) {
	content, err := cleanContent(content)
	if err != nil {
		return nil, err
	}
	author, err := s.users.Get(ctx, authorID)
	if err != nil {
		return nil, err
	}
	ok, err := s.posts.Exists(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.Reference(apperrors.ErrPostNotFound)
	}
	comment := &models.Comment{AuthorID: author.ID, PostID: postID, Content: content}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}
	comment.Author = author
	view, _ := comment.View()
	events.Emit(ctx, s.events, s.logger, events.CommentCreated, events.CommentEvent{CommentID: comment.ID, PostID: postID, AuthorID: author.ID})
	return &view, nil
}

// UpdateComment replaces the content of a comment matching expectedAuthor (empty matches any).
func (s *ContentService) UpdateComment(ctx context.Context, commentID, expectedAuthor string, patch models.ContentPatch) error {
	if patch.Empty() {
		return apperrors.ErrEmptyPatch
	}
	content, err := cleanContent(patch.Content.Value)
	if err != nil {
		return err
	}
	return s.comments.Update(ctx, commentID, expectedAuthor, content)
}
