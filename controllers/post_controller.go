package controllers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/chamran/models"
	"github.com/cppla/chamran/services"
	"github.com/cppla/chamran/utils"
)

// PostController manages posts and the feed.
type PostController struct {
	feed    *services.FeedService
	content *services.ContentService
	cascade *services.CascadeService
}

// NewPostController creates a new PostController instance.
func NewPostController(feed *services.FeedService, content *services.ContentService, cascade *services.CascadeService) *PostController {
	return &PostController{feed: feed, content: content, cascade: cascade}
}

// ListPosts returns every post, or the posts of one author when ?author= is given.
func (p *PostController) ListPosts(ctx *gin.Context) {
	if author := strings.TrimSpace(ctx.Query("author")); author != "" {
		cached(ctx, utils.CacheKeyAuthorPosts(author), func(c context.Context) ([]models.PostView, error) {
			return p.feed.PostsByAuthor(c, author)
		})
		return
	}
	cached(ctx, utils.CacheKeyAllPosts(), p.feed.AllPosts)
}

// Feed returns the posts of a user and of everyone the user follows.
func (p *PostController) Feed(ctx *gin.Context) {
	userID, ok := param(ctx, "user_id")
	if !ok {
		return
	}
	if _, ok := manage(ctx, userID); !ok {
		return
	}
	posts, err := p.feed.Feed(ctx.Request.Context(), userID)
	if err != nil {
		utils.AbortWithError(ctx, err)
		return
	}
	utils.Success(ctx, posts)
}

// GetPost returns one post with its author.
func (p *PostController) GetPost(ctx *gin.Context) {
	id, ok := param(ctx, "id")
	if !ok {
		return
	}
	cached(ctx, utils.CacheKeyPost(id), func(c context.Context) (*models.PostView, error) {
		return p.feed.Post(c, id)
	})
}

// CreatePost stores a post. Only the admin may post on behalf of someone else.
func (p *PostController) CreatePost(ctx *gin.Context) {
	caller, ok := actor(ctx)
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content"`
		Author  string `json:"author"`
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

	post, err := p.content.CreatePost(ctx.Request.Context(), author, req.Content)
	if err != nil {
		utils.AbortWithError(ctx, err)
		return
	}
	invalidatePosts(ctx)
	utils.Created(ctx, post)
}

// UpdatePost replaces the content of a post owned by the caller (any post for the admin).
func (p *PostController) UpdatePost(ctx *gin.Context) {
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

	if err := p.content.UpdatePost(ctx.Request.Context(), id, caller.AuthorScope(), patch); err != nil {
		utils.AbortWithError(ctx, err)
		return
	}
	invalidatePosts(ctx)
	utils.Success(ctx, gin.H{"message": "post updated"})
}

// DeletePost deletes a post owned by the caller (any post for the admin) and its comments.
func (p *PostController) DeletePost(ctx *gin.Context) {
	id, ok := param(ctx, "id")
	if !ok {
		return
	}
	caller, ok := actor(ctx)
	if !ok {
		return
	}

	report, err := p.cascade.DeletePost(ctx.Request.Context(), id, caller.AuthorScope())
	if err != nil {
		utils.AbortWithError(ctx, err)
		return
	}
	invalidatePosts(ctx)
	utils.InvalidateByPrefix(ctx.Request.Context(), utils.CacheKeyPostComments(id))
	utils.Success(ctx, report)
}
