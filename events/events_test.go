package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type failing struct{}

func (failing) Publish(context.Context, string, interface{}) error { return errors.New("down") }
func (failing) Close()                                             {}

func TestEmitLogsFailures(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	Emit(context.Background(), failing{}, zap.New(core), PostCreated, PostEvent{PostID: "p"})

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "publish event failed", entries[0].Message)
		assert.Equal(t, PostCreated, entries[0].ContextMap()["subject"])
	}
}

func TestRecorderKeepsOrder(t *testing.T) {
	r := &Recorder{}
	Emit(context.Background(), r, zap.NewNop(), FollowCreated, FollowEvent{FollowerID: "a", FollowingID: "b"})
	Emit(context.Background(), r, zap.NewNop(), FollowRemoved, FollowEvent{FollowerID: "a", FollowingID: "b"})
	assert.Equal(t, []string{FollowCreated, FollowRemoved}, r.Subjects())
}

func TestNopAndNil(t *testing.T) {
	assert.NoError(t, Nop{}.Publish(context.Background(), UserDeleted, nil))
	assert.NotPanics(t, func() { Emit(context.Background(), nil, zap.NewNop(), UserDeleted, nil) })
}
