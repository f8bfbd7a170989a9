// Package storetest holds the behaviour every store backend must share. Backend packages call
// Run from their own tests.
package storetest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/chamran/apperrors"
	"github.com/cppla/chamran/models"
	"github.com/cppla/chamran/store"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) *store.Store

// Run executes the conformance suite against the backend built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("AdminProtected", func(t *testing.T) { testAdminProtected(t, newStore(t)) })
	t.Run("Followings", func(t *testing.T) { testFollowings(t, newStore(t)) })
	t.Run("UserFilter", func(t *testing.T) { testUserFilter(t, newStore(t)) })
	t.Run("Posts", func(t *testing.T) { testPosts(t, newStore(t)) })
	t.Run("Comments", func(t *testing.T) { testComments(t, newStore(t)) })
}

// CreateUser inserts a member with a derived email and returns it.
func CreateUser(t *testing.T, s *store.Store, name string) *models.User {
	t.Helper()
	u := &models.User{Name: name, Email: fmt.Sprintf("%s@example.com", name)}
	require.NoError(t, s.Users.Create(context.Background(), u))
	require.NotEmpty(t, u.ID)
	return u
}

// CreatePost inserts a post by author and returns it.
func CreatePost(t *testing.T, s *store.Store, authorID, content string) *models.Post {
	t.Helper()
	p := &models.Post{AuthorID: authorID, Content: content}
	require.NoError(t, s.Posts.Create(context.Background(), p))
	require.NotEmpty(t, p.ID)
	return p
}

// CreateComment inserts a comment and returns it.
func CreateComment(t *testing.T, s *store.Store, authorID, postID, content string) *models.Comment {
	t.Helper()
	c := &models.Comment{AuthorID: authorID, PostID: postID, Content: content}
	require.NoError(t, s.Comments.Create(context.Background(), c))
	require.NotEmpty(t, c.ID)
	return c
}

func testUsers(t *testing.T, s *store.Store) {
	ctx := context.Background()
	alice := CreateUser(t, s, "alice")

	err := s.Users.Create(ctx, &models.User{Name: "other", Email: alice.Email})
	assert.ErrorIs(t, err, apperrors.ErrUserExists)

	got, err := s.Users.Get(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Name)
	assert.Empty(t, got.Followings)

	byEmail, err := s.Users.GetByEmail(ctx, alice.Email)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byEmail.ID)

	_, err = s.Users.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)

	ok, err := s.Users.Exists(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	changed, err := s.Users.Update(ctx, alice.ID, models.UserPatch{Name: models.Some("Alice")})
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.Users.Update(ctx, alice.ID, models.UserPatch{Name: models.Some("Alice")})
	require.NoError(t, err)
	assert.False(t, changed)

	bob := CreateUser(t, s, "bob")
	_, err = s.Users.Update(ctx, bob.ID, models.UserPatch{Email: models.Some(alice.Email)})
	assert.ErrorIs(t, err, apperrors.ErrUserExists)

	n, err := s.Users.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	require.NoError(t, s.Users.Delete(ctx, bob.ID))
	assert.ErrorIs(t, s.Users.Delete(ctx, bob.ID), apperrors.ErrUserNotFound)
	_, err = s.Users.Get(ctx, bob.ID)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func testAdminProtected(t *testing.T, s *store.Store) {
	ctx := context.Background()
	admin := &models.User{Name: "root", Email: "admin@example.com", Role: models.RoleAdmin}
	require.NoError(t, s.Users.Create(ctx, admin))

	_, err := s.Users.Update(ctx, admin.ID, models.UserPatch{Name: models.Some("x")})
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
	assert.ErrorIs(t, s.Users.Delete(ctx, admin.ID), apperrors.ErrUserNotFound)

	got, err := s.Users.Get(ctx, admin.ID)
	require.NoError(t, err)
	assert.True(t, got.IsAdmin())
	assert.Equal(t, "root", got.Name)
}

func testFollowings(t *testing.T, s *store.Store) {
	ctx := context.Background()
	a := CreateUser(t, s, "a")
	b := CreateUser(t, s, "b")
	c := CreateUser(t, s, "c")

	changed, err := s.Users.AddFollowing(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.Users.AddFollowing(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, changed, "second follow must report no change")

	_, err = s.Users.AddFollowing(ctx, c.ID, b.ID)
	require.NoError(t, err)

	ids, err := s.Users.FollowingIDs(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, ids)

	followers, err := s.Users.List(ctx, store.UserFilter{FollowerOf: b.ID})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, c.ID}, userIDs(followers))

	changed, err = s.Users.RemoveFollowing(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.Users.RemoveFollowing(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	ids, err = s.Users.FollowingIDs(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = s.Users.AddFollowing(ctx, a.ID, b.ID)
	require.NoError(t, err)
	pruned, err := s.Users.PullFollowingEverywhere(ctx, b.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, pruned)

	followers, err = s.Users.List(ctx, store.UserFilter{FollowerOf: b.ID})
	require.NoError(t, err)
	assert.Empty(t, followers)

	require.NoError(t, s.Users.Delete(ctx, c.ID))
	_, err = s.Users.AddFollowing(ctx, c.ID, a.ID)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
	_, err = s.Users.RemoveFollowing(ctx, c.ID, a.ID)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
	_, err = s.Users.FollowingIDs(ctx, c.ID)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func testUserFilter(t *testing.T, s *store.Store) {
	ctx := context.Background()
	a := CreateUser(t, s, "ann")
	b := CreateUser(t, s, "bert")
	CreateUser(t, s, "carl")

	all, err := s.Users.List(ctx, store.UserFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	some, err := s.Users.List(ctx, store.UserFilter{IDs: []string{a.ID, b.ID}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, userIDs(some))

	none, err := s.Users.List(ctx, store.UserFilter{IDs: []string{}})
	require.NoError(t, err)
	assert.Empty(t, none)

	found, err := s.Users.List(ctx, store.UserFilter{Query: "BER"})
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, userIDs(found))
}

func testPosts(t *testing.T, s *store.Store) {
	ctx := context.Background()
	alice := CreateUser(t, s, "alice")
	bob := CreateUser(t, s, "bob")

	p1 := CreatePost(t, s, alice.ID, "hello")
	p2 := CreatePost(t, s, bob.ID, "world")
	assert.False(t, p1.CreatedAt.IsZero())

	got, err := s.Posts.Get(ctx, p1.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Author)
	assert.Equal(t, alice.Name, got.Author.Name)

	all, err := s.Posts.List(ctx, store.PostFilter{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{p1.ID, p2.ID}, postIDs(all))

	mine, err := s.Posts.List(ctx, store.PostFilter{AuthorIDs: []string{bob.ID}})
	require.NoError(t, err)
	assert.Equal(t, []string{p2.ID}, postIDs(mine))

	none, err := s.Posts.List(ctx, store.PostFilter{AuthorIDs: []string{}})
	require.NoError(t, err)
	assert.Empty(t, none)

	assert.ErrorIs(t, s.Posts.Update(ctx, p1.ID, bob.ID, "stolen"), apperrors.ErrPostNotFound)
	require.NoError(t, s.Posts.Update(ctx, p1.ID, alice.ID, "edited"))
	require.NoError(t, s.Posts.Update(ctx, p1.ID, "", "admin edit"))
	got, err = s.Posts.Get(ctx, p1.ID)
	require.NoError(t, err)
	assert.Equal(t, "admin edit", got.Content)

	ids, err := s.Posts.IDsByAuthor(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{p1.ID}, ids)

	// orphaned posts drop out of the join
	require.NoError(t, s.Users.Delete(ctx, bob.ID))
	all, err = s.Posts.List(ctx, store.PostFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{p1.ID}, postIDs(all))
	ok, err := s.Posts.Exists(ctx, p2.ID)
	require.NoError(t, err)
	assert.True(t, ok, "orphan stays stored until cascaded")

	n, err := s.Posts.DeleteByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = s.Posts.DeleteByIDs(ctx, []string{p2.ID, p2.ID + "x"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	assert.ErrorIs(t, s.Posts.Delete(ctx, p1.ID, bob.ID), apperrors.ErrPostNotFound)
	require.NoError(t, s.Posts.Delete(ctx, p1.ID, alice.ID))
	_, err = s.Posts.Get(ctx, p1.ID)
	assert.ErrorIs(t, err, apperrors.ErrPostNotFound)

	count, err := s.Posts.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func testComments(t *testing.T, s *store.Store) {
	ctx := context.Background()
	alice := CreateUser(t, s, "alice")
	bob := CreateUser(t, s, "bob")
	p1 := CreatePost(t, s, alice.ID, "p1")
	p2 := CreatePost(t, s, alice.ID, "p2")

	c1 := CreateComment(t, s, bob.ID, p1.ID, "first")
	CreateComment(t, s, alice.ID, p1.ID, "second")
	c3 := CreateComment(t, s, bob.ID, p2.ID, "third")

	of, err := s.Comments.ListByPost(ctx, p1.ID)
	require.NoError(t, err)
	assert.Len(t, of, 2)
	for _, c := range of {
		require.NotNil(t, c.Author)
	}

	byBob, err := s.Comments.ListByAuthor(ctx, bob.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{c1.ID, c3.ID}, commentIDs(byBob))

	got, err := s.Comments.Get(ctx, c1.ID)
	require.NoError(t, err)
	assert.Equal(t, p1.ID, got.PostID)
	assert.Equal(t, "bob", got.Author.Name)

	assert.ErrorIs(t, s.Comments.Update(ctx, c1.ID, alice.ID, "x"), apperrors.ErrCommentNotFound)
	require.NoError(t, s.Comments.Update(ctx, c1.ID, bob.ID, "fixed"))
	assert.ErrorIs(t, s.Comments.Delete(ctx, c3.ID, alice.ID), apperrors.ErrCommentNotFound)

	n, err := s.Comments.DeleteByPosts(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.Comments.DeleteByPosts(ctx, []string{p1.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = s.Comments.DeleteByAuthor(ctx, bob.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	CreateComment(t, s, alice.ID, p2.ID, "again")
	n, err = s.Comments.DeleteByPost(ctx, p2.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	count, err := s.Comments.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	_, err = s.Comments.Get(ctx, c1.ID)
	assert.ErrorIs(t, err, apperrors.ErrCommentNotFound)
}

func userIDs(users []models.User) []string {
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids
}

func postIDs(posts []models.Post) []string {
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	return ids
}

func commentIDs(comments []models.Comment) []string {
	ids := make([]string, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.ID)
	}
	return ids
}
