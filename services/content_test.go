package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/chamran/apperrors"
	"github.com/cppla/chamran/models"
)

func TestCreateCommentOnMissingPostInsertsNothing(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	a := f.user(t, "a")

	_, err := f.svc.Content.CreateComment(ctx, a.ID, "missing", "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrPostNotFound)
	assert.Equal(t, apperrors.KindInvalidReference, apperrors.KindOf(err))

	n, err := f.store.Comments.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCreateRequiresAuthor(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	a := f.user(t, "a")
	p := f.post(t, a.ID, "p")

	_, err := f.svc.Content.CreatePost(ctx, "missing", "x")
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
	_, err = f.svc.Content.CreateComment(ctx, "missing", p.ID, "x")
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)

	posts, err := f.store.Posts.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, posts)
}

func TestContentIsSanitized(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	a := f.user(t, "a")

	p, err := f.svc.Content.CreatePost(ctx, a.ID, `<b>hi</b><script>alert(1)</script>`)
	require.NoError(t, err)
	assert.Equal(t, "<b>hi</b>", p.Content)
	assert.Equal(t, "a", p.Author.Name)
	assert.False(t, p.CreationTime.IsZero())

	_, err = f.svc.Content.CreatePost(ctx, a.ID, "<script>x</script>  ")
	assert.ErrorIs(t, err, apperrors.ErrInvalidContent)
}

func TestUpdateContentScopedToAuthor(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	a, b := f.user(t, "a"), f.user(t, "b")
	p := f.post(t, a.ID, "original")
	c := f.comment(t, b.ID, p.ID, "reply")

	edit := models.ContentPatch{Content: models.Some("edited")}

	assert.ErrorIs(t, f.svc.Content.UpdatePost(ctx, p.ID, a.ID, models.ContentPatch{}), apperrors.ErrEmptyPatch)
	assert.ErrorIs(t, f.svc.Content.UpdatePost(ctx, p.ID, b.ID, edit), apperrors.ErrPostNotFound)
	require.NoError(t, f.svc.Content.UpdatePost(ctx, p.ID, a.ID, edit))

	got, err := f.svc.Feed.Post(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited", got.Content)
	assert.True(t, got.ModificationTime.After(got.CreationTime))

	assert.ErrorIs(t, f.svc.Content.UpdateComment(ctx, c.ID, a.ID, edit), apperrors.ErrCommentNotFound)
	require.NoError(t, f.svc.Content.UpdateComment(ctx, c.ID, "", edit))
	comment, err := f.svc.Feed.Comment(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited", comment.Content)
}
