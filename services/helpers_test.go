package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/cppla/chamran/events"
	"github.com/cppla/chamran/models"
	"github.com/cppla/chamran/store"
	"github.com/cppla/chamran/store/memstore"
	"github.com/cppla/chamran/utils"
)

func init() {
	utils.SetPasswordCost(bcrypt.MinCost)
}

type fixture struct {
	svc    *Services
	store  *store.Store
	events *events.Recorder
}

// tickingClock returns strictly increasing instants so creation order is observable.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	db := memstore.NewDB()
	db.SetClock(tickingClock())
	s := db.Store()
	rec := &events.Recorder{}
	if opts.RetryMax == 0 {
		opts.RetryMax = 3
	}
	if opts.AdminEmail == "" {
		opts.AdminEmail = "admin@example.com"
	}
	svc := New(s, rec, zap.NewNop(), opts)
	return &fixture{svc: svc, store: s, events: rec}
}

func (f *fixture) user(t *testing.T, name string) *models.User {
	t.Helper()
	u, err := f.svc.Accounts.Signup(context.Background(), name, name+"@example.com", "pw-"+name)
	require.NoError(t, err)
	return u
}

func (f *fixture) post(t *testing.T, authorID, content string) *models.PostView {
	t.Helper()
	p, err := f.svc.Content.CreatePost(context.Background(), authorID, content)
	require.NoError(t, err)
	return p
}

func (f *fixture) comment(t *testing.T, authorID, postID, content string) *models.CommentView {
	t.Helper()
	c, err := f.svc.Content.CreateComment(context.Background(), authorID, postID, content)
	require.NoError(t, err)
	return c
}

func postIDs(views []models.PostView) []string {
	ids := make([]string, 0, len(views))
	for _, v := range views {
		ids = append(ids, v.ID)
	}
	return ids
}

func userIDs(users []models.User) []string {
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids
}
