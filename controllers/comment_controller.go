package controllers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/chamran/models"
	"github.com/cppla/chamran/services"
	"github.com/cppla/chamran/utils"
)

// CommentController manages comments.
type CommentController struct {
	feed    *services.FeedService
	content *services.ContentService
	cascade *services.CascadeService
}

// NewCommentController creates a new CommentController instance.
func NewCommentController(feed *services.FeedService, content *services.ContentService, cascade *services.CascadeService) *CommentController {
	return &CommentController{feed: feed, content: content, cascade: cascade}
}

// CommentsOfPost lists the comments of a post, oldest first.
func (c *CommentController) CommentsOfPost(ctx *gin.Context) {
	postID, ok := param(ctx, "post_id")
	if !ok {
		return
	}
	cached(ctx, utils.CacheKeyPostComments(postID), func(rc context.Context) ([]models.CommentView, error) {
		return c.feed.CommentsOfPost(rc, postID)
	})
}

// CommentsByAuthor lists the comments written by a user.
func (c *CommentController) CommentsByAuthor(ctx *gin.Context) {
	userID, ok := param(ctx, "user_id")
	if !ok {
		return
	}
	comments, err := c.feed.CommentsByAuthor(ctx.Request.Context(), userID)
	if err != nil {
		utils.AbortWithError(ctx, err)
		return
	}
	utils.Success(ctx, comments)
}

// GetComment returns one comment.
func (c *CommentController) GetComment(ctx *gin.Context) {
	id, ok := param(ctx, "id")
	if !ok {
		return
	}
	comment, err := c.feed.Comment(ctx.Request.Context(), id)
	if err != nil {
		utils.AbortWithError(ctx, err)
		return
	}
	utils.Success(ctx, comment)
}

// CreateComment stores a comment on an existing post.
func (c *CommentController) CreateComment(ctx *gin.Context) {
	caller, ok := actor(ctx)
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content"`
		Author  string `json:"author"`
		Post    string `json:"post"`
	}
	if !bindJSON(ctx, &req) {
		return
	}
	author := strings.TrimSpace(req.Author)
	if author == "" {
		author = caller.ID
	}
	if _, ok := manage(ctx, author); !ok {
		return
	}

	comment, err := c.content.CreateComment(ctx.Request.Context(), author, strings.TrimSpace(req.Post), req.Content)
	if err != nil {
		utils.AbortWithError(ctx, err)
		return
	}
	utils.InvalidateByPrefix(ctx.Request.Context(), utils.CacheKeyPostComments(comment.Post))
	utils.Created(ctx, comment)
}

// UpdateComment replaces the content of a comment owned by the caller (any for the admin).
func (c *CommentController) UpdateComment(ctx *gin.Context) {
	id, ok := param(ctx, "id")
	if !ok {
		return
	}
	caller, ok := actor(ctx)
	if !ok {
		return
	}
	var patch models.ContentPatch
	if !bindJSON(ctx, &patch) {
		return
	}

	if err := c.content.UpdateComment(ctx.Request.Context(), id, caller.AuthorScope(), patch); err != nil {
		utils.AbortWithError(ctx, err)
		return
	}
	invalidateComments(ctx)
	utils.Success(ctx, gin.H{"message": "comment updated"})
}

// DeleteComment deletes a comment owned by the caller (any for the admin).
func (c *CommentController) DeleteComment(ctx *gin.Context) {
	id, ok := param(ctx, "id")
	if !ok {
		return
	}
	caller, ok := actor(ctx)
	if !ok {
		return
	}

	if err := c.cascade.DeleteComment(ctx.Request.Context(), id, caller.AuthorScope()); err != nil {
		utils.AbortWithError(ctx, err)
		return
	}
	invalidateComments(ctx)
	utils.Success(ctx, gin.H{"message": "comment deleted"})
}
