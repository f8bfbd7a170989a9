package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/chamran/apperrors"
	"github.com/cppla/chamran/events"
)

func TestFollowIsIdempotent(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	a, b := f.user(t, "a"), f.user(t, "b")

	changed, err := f.svc.Graph.Follow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = f.svc.Graph.Follow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	ids, err := f.store.Users.FollowingIDs(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, ids)
}

func TestFollowUnfollowRoundTrip(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	a, b, c := f.user(t, "a"), f.user(t, "b"), f.user(t, "c")
	_, err := f.svc.Graph.Follow(ctx, a.ID, c.ID)
	require.NoError(t, err)

	before, err := f.store.Users.FollowingIDs(ctx, a.ID)
	require.NoError(t, err)

	_, err = f.svc.Graph.Follow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	changed, err := f.svc.Graph.Unfollow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	after, err := f.store.Users.FollowingIDs(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	changed, err = f.svc.Graph.Unfollow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, changed, "removing an absent edge reports no change")

	assert.Equal(t, []string{
		events.UserCreated, events.UserCreated, events.UserCreated,
		events.FollowCreated, events.FollowCreated, events.FollowRemoved,
	}, f.events.Subjects())
}

func TestFollowRequiresBothUsers(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	a := f.user(t, "a")

	_, err := f.svc.Graph.Follow(ctx, a.ID, "missing")
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)

	_, err = f.svc.Graph.Follow(ctx, "missing", a.ID)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)

	_, err = f.svc.Graph.Unfollow(ctx, "missing", a.ID)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)

	changed, err := f.svc.Graph.Unfollow(ctx, a.ID, "missing")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestSelfFollowAllowed(t *testing.T) {
	f := newFixture(t, Options{})
	a := f.user(t, "a")
	changed, err := f.svc.Graph.Follow(context.Background(), a.ID, a.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	followers, err := f.svc.Graph.Followers(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, userIDs(followers))
}

func TestFollowersAndFollowings(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	a, b, c := f.user(t, "a"), f.user(t, "b"), f.user(t, "c")
	for _, pair := range [][2]string{{a.ID, b.ID}, {c.ID, b.ID}, {a.ID, c.ID}} {
		_, err := f.svc.Graph.Follow(ctx, pair[0], pair[1])
		require.NoError(t, err)
	}

	followers, err := f.svc.Graph.Followers(ctx, b.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, c.ID}, userIDs(followers))

	followings, err := f.svc.Graph.Followings(ctx, a.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{b.ID, c.ID}, userIDs(followings))

	unknown, err := f.svc.Graph.Followers(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, unknown)

	_, err = f.svc.Graph.Followings(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestFollowingsSkipsDanglingEdges(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	a, b, c := f.user(t, "a"), f.user(t, "b"), f.user(t, "c")
	_, err := f.svc.Graph.Follow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	_, err = f.svc.Graph.Follow(ctx, a.ID, c.ID)
	require.NoError(t, err)

	// delete without the cascade so the edge dangles
	require.NoError(t, f.store.Users.Delete(ctx, b.ID))

	followings, err := f.svc.Graph.Followings(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{c.ID}, userIDs(followings))

	changed, err := f.svc.Graph.Unfollow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, changed, "stale edges can be removed")
}
