package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cppla/chamran/apperrors"
	"github.com/cppla/chamran/events"
	"github.com/cppla/chamran/models"
	"github.com/cppla/chamran/store"
)

// assertNoTraceOf checks every postcondition of a user delete.
func assertNoTraceOf(t *testing.T, s *store.Store, userID string, postIDs []string) {
	t.Helper()
	ctx := context.Background()

	posts, err := s.Posts.IDsByAuthor(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, posts, "posts by deleted user")

	comments, err := s.Comments.ListByAuthor(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, comments, "comments by deleted user")

	for _, id := range postIDs {
		ok, err := s.Posts.Exists(ctx, id)
		require.NoError(t, err)
		assert.False(t, ok)
		left, err := s.Comments.ListByPost(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, left, "comments on deleted post")
	}

	followers, err := s.Users.List(ctx, store.UserFilter{FollowerOf: userID})
	require.NoError(t, err)
	assert.Empty(t, followers, "followings still pointing at deleted user")
}

func TestDeleteUserCascades(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	u, other, third := f.user(t, "u"), f.user(t, "other"), f.user(t, "third")

	var owned []string
	for i := 0; i < 2; i++ {
		p := f.post(t, u.ID, "post")
		owned = append(owned, p.ID)
		f.comment(t, u.ID, p.ID, "self 1")
		f.comment(t, u.ID, p.ID, "self 2")
		f.comment(t, other.ID, p.ID, "other")
	}
	unrelated := f.post(t, third.ID, "elsewhere")
	kept := f.comment(t, other.ID, unrelated.ID, "kept")
	f.comment(t, u.ID, unrelated.ID, "u on third")

	for _, follower := range []string{other.ID, third.ID} {
		_, err := f.svc.Graph.Follow(ctx, follower, u.ID)
		require.NoError(t, err)
	}
	_, err := f.svc.Graph.Follow(ctx, u.ID, third.ID)
	require.NoError(t, err)

	report, err := f.svc.Cascade.DeleteUser(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, report.Complete())
	assert.EqualValues(t, 2, report.FollowingsPruned)
	assert.EqualValues(t, 2, report.PostsDeleted)
	assert.EqualValues(t, 6, report.PostCommentsDeleted)
	assert.EqualValues(t, 1, report.AuthoredCommentsDeleted)

	assertNoTraceOf(t, f.store, u.ID, owned)

	left, err := f.svc.Feed.CommentsOfPost(ctx, unrelated.ID)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, kept.ID, left[0].ID)

	_, err = f.store.Users.Get(ctx, u.ID)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
	assert.Contains(t, f.events.Subjects(), events.UserDeleted)
}

func TestDeleteUserNotFoundOrAdmin(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	_, err := f.svc.Cascade.DeleteUser(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)

	admin, created, err := f.svc.Accounts.EnsureAdmin(ctx, "Root", "admin@example.com", "pw")
	require.NoError(t, err)
	require.True(t, created)
	_, err = f.svc.Cascade.DeleteUser(ctx, admin.ID)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

// flakyUsers fails PullFollowingEverywhere a set number of times.
type flakyUsers struct {
	store.UserStore
	failures int32
	calls    int32
}

var errTransient = errors.New("connection reset")

func (f *flakyUsers) PullFollowingEverywhere(ctx context.Context, id string) (int64, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if n <= atomic.LoadInt32(&f.failures) {
		return 0, errTransient
	}
	return f.UserStore.PullFollowingEverywhere(ctx, id)
}

func flakyFixture(t *testing.T, failures int32) (*fixture, *flakyUsers) {
	f := newFixture(t, Options{})
	flaky := &flakyUsers{UserStore: f.store.Users, failures: failures}
	s := &store.Store{Users: flaky, Posts: f.store.Posts, Comments: f.store.Comments}
	cascade := NewCascadeService(s, f.events, zap.NewNop(), 3, 0)
	cascade.SetBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} })
	f.svc.Cascade = cascade
	return f, flaky
}

func TestDeleteUserRetriesTransientFailures(t *testing.T) {
	f, flaky := flakyFixture(t, 2)
	ctx := context.Background()
	u, v := f.user(t, "u"), f.user(t, "v")
	_, err := f.svc.Graph.Follow(ctx, v.ID, u.ID)
	require.NoError(t, err)

	report, err := f.svc.Cascade.DeleteUser(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, report.Complete())
	assert.EqualValues(t, 1, report.FollowingsPruned)
	assert.EqualValues(t, 3, atomic.LoadInt32(&flaky.calls))
}

func TestDeleteUserKeepsGoingAfterStepFailure(t *testing.T) {
	f, flaky := flakyFixture(t, 100)
	ctx := context.Background()
	u, v := f.user(t, "u"), f.user(t, "v")
	p := f.post(t, u.ID, "p")
	f.comment(t, v.ID, p.ID, "c")
	_, err := f.svc.Graph.Follow(ctx, v.ID, u.ID)
	require.NoError(t, err)

	report, err := f.svc.Cascade.DeleteUser(ctx, u.ID)
	require.NoError(t, err, "step failures never undo the user delete")
	require.False(t, report.Complete())
	require.Len(t, report.Failures, 1)
	assert.Equal(t, StepPruneFollowings, report.Failures[0].Step)
	assert.EqualValues(t, 4, atomic.LoadInt32(&flaky.calls), "one attempt plus three retries")

	// later steps still ran
	assert.EqualValues(t, 1, report.PostsDeleted)
	assert.EqualValues(t, 1, report.PostCommentsDeleted)
	_, err = f.store.Users.Get(ctx, u.ID)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)

	// the dangling edge is tolerated by reads
	followings, err := f.svc.Graph.Followings(ctx, v.ID)
	require.NoError(t, err)
	assert.Empty(t, followings)
}

// racingPosts writes a post by the same author, and a comment on it, right after the
// cascade lists the author's posts.
type racingPosts struct {
	store.PostStore
	comments  store.CommentStore
	commenter string
	late      *models.Post
}

func (r *racingPosts) IDsByAuthor(ctx context.Context, authorID string) ([]string, error) {
	ids, err := r.PostStore.IDsByAuthor(ctx, authorID)
	if err != nil || r.late != nil {
		return ids, err
	}
	r.late = &models.Post{AuthorID: authorID, Content: "late"}
	if err := r.PostStore.Create(ctx, r.late); err != nil {
		return nil, err
	}
	c := &models.Comment{AuthorID: r.commenter, PostID: r.late.ID, Content: "on late post"}
	return ids, r.comments.Create(ctx, c)
}

func TestDeleteUserOnlyDeletesListedPosts(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	u, v := f.user(t, "u"), f.user(t, "v")
	p := f.post(t, u.ID, "listed")
	f.comment(t, v.ID, p.ID, "on listed post")

	racing := &racingPosts{PostStore: f.store.Posts, comments: f.store.Comments, commenter: v.ID}
	s := &store.Store{Users: f.store.Users, Posts: racing, Comments: f.store.Comments}
	cascade := NewCascadeService(s, f.events, zap.NewNop(), 0, 0)

	report, err := cascade.DeleteUser(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, report.Complete())
	assert.EqualValues(t, 1, report.PostsDeleted)
	assert.EqualValues(t, 1, report.PostCommentsDeleted)
	require.NotNil(t, racing.late)

	ok, err := f.store.Posts.Exists(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	// every surviving comment still points at a stored post
	ok, err = f.store.Posts.Exists(ctx, racing.late.ID)
	require.NoError(t, err)
	assert.True(t, ok, "post written after the listing is left for a later cascade")
	n, err := f.store.Comments.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestDeletePost(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	a, b := f.user(t, "a"), f.user(t, "b")
	p := f.post(t, a.ID, "p")
	f.comment(t, b.ID, p.ID, "1")
	f.comment(t, a.ID, p.ID, "2")

	_, err := f.svc.Cascade.DeletePost(ctx, p.ID, b.ID)
	assert.ErrorIs(t, err, apperrors.ErrPostNotFound, "wrong author")

	report, err := f.svc.Cascade.DeletePost(ctx, p.ID, a.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, report.PostCommentsDeleted)

	_, err = f.svc.Cascade.DeletePost(ctx, p.ID, "")
	assert.ErrorIs(t, err, apperrors.ErrPostNotFound)

	n, err := f.store.Comments.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDeleteComment(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	a, b := f.user(t, "a"), f.user(t, "b")
	p := f.post(t, a.ID, "p")
	c := f.comment(t, b.ID, p.ID, "c")

	assert.ErrorIs(t, f.svc.Cascade.DeleteComment(ctx, c.ID, a.ID), apperrors.ErrCommentNotFound)
	require.NoError(t, f.svc.Cascade.DeleteComment(ctx, c.ID, ""))
	assert.ErrorIs(t, f.svc.Cascade.DeleteComment(ctx, c.ID, ""), apperrors.ErrCommentNotFound)
}

func TestRetryDoesNotRepeatBusinessErrors(t *testing.T) {
	f := newFixture(t, Options{})
	f.svc.Cascade.SetBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} })
	calls := 0
	err := f.svc.Cascade.retry(context.Background(), func(context.Context) error {
		calls++
		return apperrors.ErrPostNotFound
	})
	assert.ErrorIs(t, err, apperrors.ErrPostNotFound)
	assert.Equal(t, 1, calls)

	calls = 0
	err = f.svc.Cascade.retry(context.Background(), func(context.Context) error {
		calls++
		return apperrors.Internal("x", errTransient)
	})
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 4, calls)
}
