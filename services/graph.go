package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/cppla/chamran/apperrors"
	"github.com/cppla/chamran/events"
	"github.com/cppla/chamran/metrics"
	"github.com/cppla/chamran/models"
	"github.com/cppla/chamran/store"
)

// GraphService manages directed follow edges.
type GraphService struct {
	users  store.UserStore
	events events.Publisher
	logger *zap.Logger
}

func NewGraphService(users store.UserStore, pub events.Publisher, logger *zap.Logger) *GraphService {
	return &GraphService{users: users, events: pub, logger: logger}
}

// Followers lists the users following userID. An unknown userID yields an empty list.
func (g *GraphService) Followers(ctx context.Context, userID string) ([]models.User, error) {
	return g.users.List(ctx, store.UserFilter{FollowerOf: userID})
}

// Followings resolves the followings of followerID. Ids that no longer resolve are skipped.
func (g *GraphService) Followings(ctx context.Context, followerID string) ([]models.User, error) {
	ids, err := g.users.FollowingIDs(ctx, followerID)
	if err != nil {
		return nil, err
	}
	return g.users.List(ctx, store.UserFilter{IDs: ids})
}

// Follow adds the edge followerID -> followingID and reports whether it was new.
func (g *GraphService) Follow(ctx context.Context, followerID, followingID string) (bool, error) {
	ok, err := g.users.Exists(ctx, followingID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, apperrors.ErrUserNotFound
	}
	changed, err := g.users.AddFollowing(ctx, followerID, followingID)
	if err != nil {
		return false, err
	}
	if changed {
		metrics.FollowChanged("follow")
		events.Emit(ctx, g.events, g.logger, events.FollowCreated, events.FollowEvent{FollowerID: followerID, FollowingID: followingID})
	}
	return changed, nil
}

// Unfollow removes the edge and reports whether it existed. The followed user need not exist.
func (g *GraphService) Unfollow(ctx context.Context, followerID, followingID string) (bool, error) {
	changed, err := g.users.RemoveFollowing(ctx, followerID, followingID)
	if err != nil {
		return false, err
	}
	if changed {
		metrics.FollowChanged("unfollow")
		events.Emit(ctx, g.events, g.logger, events.FollowRemoved, events.FollowEvent{FollowerID: followerID, FollowingID: followingID})
	}
	return changed, nil
}
