package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/chamran/apperrors"
)

func TestFeedIsOwnPostsPlusFollowings(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	a, b, c := f.user(t, "a"), f.user(t, "b"), f.user(t, "c")
	b1 := f.post(t, b.ID, "b1")
	f.post(t, c.ID, "c1")
	b2 := f.post(t, b.ID, "b2")

	_, err := f.svc.Graph.Follow(ctx, a.ID, b.ID)
	require.NoError(t, err)

	feed, err := f.svc.Feed.Feed(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{b2.ID, b1.ID}, postIDs(feed), "only b's posts, newest first")

	a1 := f.post(t, a.ID, "a1")
	feed, err = f.svc.Feed.Feed(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{a1.ID, b2.ID, b1.ID}, postIDs(feed))
	for _, p := range feed {
		assert.NotEmpty(t, p.Author.Name)
	}
}

func TestFeedUnknownUser(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.svc.Feed.Feed(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestFeedSelfFollowDoesNotDuplicate(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	a := f.user(t, "a")
	p := f.post(t, a.ID, "mine")
	_, err := f.svc.Graph.Follow(ctx, a.ID, a.ID)
	require.NoError(t, err)

	feed, err := f.svc.Feed.Feed(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{p.ID}, postIDs(feed))
}

func TestAliceBobCarolScenario(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")
	_, err := f.svc.Graph.Follow(ctx, carol.ID, alice.ID)
	require.NoError(t, err)

	p1 := f.post(t, bob.ID, "P1")
	_, err = f.svc.Graph.Follow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	feed, err := f.svc.Feed.Feed(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{p1.ID}, postIDs(feed))

	_, err = f.svc.Graph.Unfollow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	feed, err = f.svc.Feed.Feed(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, feed)

	_, err = f.svc.Cascade.DeleteUser(ctx, bob.ID)
	require.NoError(t, err)

	_, err = f.svc.Feed.Post(ctx, p1.ID)
	assert.ErrorIs(t, err, apperrors.ErrPostNotFound)
	aliceFollowings, err := f.store.Users.FollowingIDs(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, aliceFollowings)
	carolFollowings, err := f.store.Users.FollowingIDs(ctx, carol.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{alice.ID}, carolFollowings)
}

func TestReadModels(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	a, b := f.user(t, "a"), f.user(t, "b")
	p := f.post(t, a.ID, "hello")
	c := f.comment(t, b.ID, p.ID, "hi back")

	all, err := f.svc.Feed.AllPosts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{p.ID}, postIDs(all))

	byA, err := f.svc.Feed.PostsByAuthor(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, byA, 1)
	byB, err := f.svc.Feed.PostsByAuthor(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, byB)

	got, err := f.svc.Feed.Post(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Email, got.Author.Email)

	comments, err := f.svc.Feed.CommentsOfPost(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "b", comments[0].Author.Name)
	assert.Equal(t, p.ID, comments[0].Post)

	none, err := f.svc.Feed.CommentsOfPost(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)

	byAuthor, err := f.svc.Feed.CommentsByAuthor(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, byAuthor, 1)
	_, err = f.svc.Feed.CommentsByAuthor(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)

	one, err := f.svc.Feed.Comment(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "hi back", one.Content)
	_, err = f.svc.Feed.Comment(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrCommentNotFound)
}

func TestOrphanedPostsAreHidden(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	a, b := f.user(t, "a"), f.user(t, "b")
	f.post(t, a.ID, "stays")
	f.post(t, b.ID, "orphan")

	require.NoError(t, f.store.Users.Delete(ctx, b.ID))

	all, err := f.svc.Feed.AllPosts(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "stays", all[0].Content)
}
