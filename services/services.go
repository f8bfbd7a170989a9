// Package services holds the social graph, feed, cascade and account logic. Services trust the
// actor ids handed to them; identity is established by the HTTP middleware.
package services

import (
	"time"

	"go.uber.org/zap"

	"github.com/cppla/chamran/events"
	"github.com/cppla/chamran/models"
	"github.com/cppla/chamran/store"
)

// Options configures the services built by New.
type Options struct {
	AdminEmail  string
	Maintenance bool
	// RetryMax bounds retries of each best-effort cascade step.
	RetryMax int
	// CascadeTimeout bounds the best-effort steps once the primary delete committed.
	CascadeTimeout time.Duration
}

// Services bundles every service over one store.
type Services struct {
	Graph    *GraphService
	Feed     *FeedService
	Cascade  *CascadeService
	Accounts *AccountService
	Content  *ContentService
}

// New wires the services. A nil publisher disables events.
func New(s *store.Store, pub events.Publisher, logger *zap.Logger, opts Options) *Services {
	if pub == nil {
		pub = events.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Services{
		Graph:    NewGraphService(s.Users, pub, logger),
		Feed:     NewFeedService(s.Users, s.Posts, s.Comments),
		Cascade:  NewCascadeService(s, pub, logger, opts.RetryMax, opts.CascadeTimeout),
		Accounts: NewAccountService(s.Users, pub, logger, opts.AdminEmail, opts.Maintenance),
		Content:  NewContentService(s, pub, logger),
	}
}

var _ models.Privileged = Actor{}

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID    string
	Admin bool
}

// IsAdmin implements models.Privileged.
func (a Actor) IsAdmin() bool {
	return a.Admin
}

// CanManage reports whether the actor may act on resources owned by userID.
func (a Actor) CanManage(userID string) bool {
	return a.Admin || (a.ID != "" && a.ID == userID)
}

// AuthorScope returns the author filter for writes: empty for admins, the actor id otherwise.
func (a Actor) AuthorScope() string {
	if a.Admin {
		return ""
	}
	return a.ID
}
