package session

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvictIdleKeepsActiveGames(t *testing.T) {
	store, clock := newTestStore(t)

	store.Get("idle")
	require.NoError(t, store.StartGame("playing"))
	require.NoError(t, store.StartGame("waiting"))
	require.NoError(t, store.EnterWaitingForWallet("waiting"))
	require.NoError(t, store.StartGame("cooling"))
	store.EnterCooldown("cooling", 3*time.Hour)
	require.NoError(t, store.StartGame("cooled"))
	store.EnterCooldown("cooled", time.Second)

	clock.Advance(30 * time.Second)
	assert.Empty(t, store.EvictIdle(time.Hour))

	clock.Advance(2 * time.Hour)
	evicted := store.EvictIdle(time.Hour)
	sort.Strings(evicted)
	assert.Equal(t, []string{"cooled", "idle"}, evicted)
	assert.Equal(t, 3, store.Len())
}

func TestEvictIdleSkipsLockedSession(t *testing.T) {
	store, clock := newTestStore(t)
	store.Get("u1")
	clock.Advance(2 * time.Hour)

	unlock := store.Lock("u1")
	assert.Empty(t, store.EvictIdle(time.Hour))
	unlock()

	assert.Equal(t, []string{"u1"}, store.EvictIdle(time.Hour))
	assert.Equal(t, 0, store.Len())
}

func TestLockAfterEvictionUsesFreshSession(t *testing.T) {
	store, clock := newTestStore(t)
	require.NoError(t, store.StartGame("u1"))
	require.NoError(t, store.EnterWaitingForWallet("u1"))
	require.NoError(t, store.CompletePayout("u1"))
	clock.Advance(2 * time.Hour)

	require.Equal(t, []string{"u1"}, store.EvictIdle(time.Hour))

	unlock := store.Lock("u1")
	defer unlock()
	s := store.Get("u1")
	assert.Equal(t, 0, s.Stats.GamesPlayed)
	assert.Equal(t, 1, store.Len())
}

func TestStartJanitor(t *testing.T) {
	store, clock := newTestStore(t)
	store.Get("u1")
	clock.Advance(2 * time.Hour)

	var mu sync.Mutex
	var evicted []string
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartJanitor(ctx, store, time.Hour, 10*time.Millisecond, func(userID string) {
		mu.Lock()
		defer mu.Unlock()
		evicted = append(evicted, userID)
	})

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(evicted) == 1 && evicted[0] == "u1"
	}, 2*time.Second, 10*time.Millisecond)
}
