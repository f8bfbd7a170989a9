package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/cppla/chamran/services"
	"github.com/cppla/chamran/store"
	"github.com/cppla/chamran/store/memstore"
	"github.com/cppla/chamran/utils"
)

func init() {
	utils.SetPasswordCost(bcrypt.MinCost)
}

func TestGridShapeCoversAllUsers(t *testing.T) {
	for _, n := range []int{1, 2, 7, 27, 100, 501} {
		dims := gridShape(n)
		require.Len(t, dims, gridDims)
		size := 1
		for _, d := range dims {
			size *= d
		}
		assert.GreaterOrEqual(t, size, n, "n=%d dims=%v", n, dims)
	}
}

func TestPositionRoundTrip(t *testing.T) {
	dims := []int{3, 4, 5}
	for i := 0; i < 60; i++ {
		assert.Equal(t, i, indexOf(position(i, dims), dims))
	}
}

func TestRunMatchesStore(t *testing.T) {
	s := memstore.New()
	svc := services.New(s, nil, zap.NewNop(), services.Options{RetryMax: 1})
	ctx := context.Background()

	sum, err := New(svc, zap.NewNop(), Options{Users: 40, MaxIsolated: 2, Password: "pw", Workers: 4, Seed: 42}).Run(ctx)
	require.NoError(t, err)

	users, err := s.Users.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, sum.Users, users)
	assert.Equal(t, 40, sum.Users+sum.IsolatedPruned)

	posts, err := s.Posts.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, sum.Posts, posts)

	comments, err := s.Comments.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, sum.Comments, comments)

	all, err := s.Users.List(ctx, store.UserFilter{})
	require.NoError(t, err)
	follows := 0
	for _, u := range all {
		ids, err := s.Users.FollowingIDs(ctx, u.ID)
		require.NoError(t, err)
		follows += len(ids)
	}
	assert.Equal(t, sum.Follows, follows)

	deleted, err := Reset(ctx, svc)
	require.NoError(t, err)
	assert.Equal(t, sum.Users, deleted)
	posts, err = s.Posts.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, posts)
}
