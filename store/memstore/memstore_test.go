package memstore

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/chamran/store"
	"github.com/cppla/chamran/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) *store.Store { return New() })
}

func TestConcurrentFollowKeepsSetSemantics(t *testing.T) {
	s := New()
	a := storetest.CreateUser(t, s, "a")
	b := storetest.CreateUser(t, s, "b")

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		changed int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Users.AddFollowing(context.Background(), a.ID, b.ID)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				changed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, changed)
	ids, err := s.Users.FollowingIDs(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, ids)
}

func TestReturnedUsersAreCopies(t *testing.T) {
	s := New()
	a := storetest.CreateUser(t, s, "a")
	b := storetest.CreateUser(t, s, "b")
	_, err := s.Users.AddFollowing(context.Background(), a.ID, b.ID)
	require.NoError(t, err)

	got, err := s.Users.Get(context.Background(), a.ID)
	require.NoError(t, err)
	got.Followings[0] = "tampered"
	got.Name = "tampered"

	again, err := s.Users.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", again.Name)
	assert.Equal(t, []string{b.ID}, again.Followings)
}
