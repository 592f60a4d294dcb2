package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spetersoncode/bridge"
	"github.com/spetersoncode/bridge/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T, opts ...Option) (*Store, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	return New(store.NewMemoryAdapter(), append([]Option{WithClock(clock.Now)}, opts...)...), clock
}

var testKey = Key{AppName: "app", UserID: "user", ThreadID: "thread-1"}

func TestKey_StorageKeyRoundTrip(t *testing.T) {
	k := Key{AppName: "my app", UserID: "a/b", ThreadID: "t%1"}
	parsed, ok := parseStorageKey(k.storageKey())
	require.True(t, ok)
	assert.Equal(t, k, parsed)

	_, ok = parseStorageKey("session/only-two/parts")
	assert.False(t, ok)
}

func TestStore_GetOrCreate(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore(t)

	sess, err := s.GetOrCreate(ctx, testKey, map[string]any{"count": 1})
	require.NoError(t, err)
	assert.Equal(t, "thread-1", sess.ID)
	assert.Equal(t, "app", sess.AppName)
	assert.Equal(t, "user", sess.UserID)
	assert.Equal(t, clock.Now(), sess.CreatedAt)
	assert.Equal(t, 1, sess.State["count"])

	clock.Advance(time.Minute)
	again, err := s.GetOrCreate(ctx, testKey, map[string]any{"count": 99})
	require.NoError(t, err)
	assert.Equal(t, float64(1), again.State["count"], "initial state applies only on creation")
	assert.Equal(t, clock.Now(), again.LastAccessedAt)
	assert.True(t, again.CreatedAt.Before(again.LastAccessedAt))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_GetMissing(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.Get(context.Background(), testKey)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, bridge.KindSessionStore, bridge.KindOf(err))

	err = s.MarkProcessed(context.Background(), testKey, "1")
	assert.True(t, IsNotFound(err))
}

func TestStore_ProcessedIDs(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	_, err := s.GetOrCreate(ctx, testKey, nil)
	require.NoError(t, err)

	require.NoError(t, s.MarkProcessed(ctx, testKey, "2", "1", ""))
	require.NoError(t, s.MarkProcessed(ctx, testKey, "2", "3"))

	ids, err := s.ProcessedIDs(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"1": true, "2": true, "3": true}, ids)

	sess, err := s.Get(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, sess.ProcessedMessageIDs)
	assert.True(t, sess.IsProcessed("2"))
	assert.False(t, sess.IsProcessed("4"))
}

func TestStore_PendingToolCallIDs(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	_, err := s.GetOrCreate(ctx, testKey, nil)
	require.NoError(t, err)

	require.NoError(t, s.AddPendingToolCallIDs(ctx, testKey, "X", "Y"))
	pending, err := s.PendingToolCallIDs(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"X": true, "Y": true}, pending)

	consumed, err := s.ConsumePendingToolCallIDs(ctx, testKey, "X", "Z")
	require.NoError(t, err)
	assert.Equal(t, []string{"X"}, consumed)

	pending, err = s.PendingToolCallIDs(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"Y": true}, pending)

	require.NoError(t, s.UpdatePendingToolCallIDs(ctx, testKey, []string{"A"}))
	pending, err = s.PendingToolCallIDs(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"A": true}, pending)

	require.NoError(t, s.UpdatePendingToolCallIDs(ctx, testKey, nil))
	pending, err = s.PendingToolCallIDs(ctx, testKey)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestStore_Commit(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	_, err := s.GetOrCreate(ctx, testKey, nil)
	require.NoError(t, err)
	require.NoError(t, s.AddPendingToolCallIDs(ctx, testKey, "X"))

	require.NoError(t, s.Commit(ctx, testKey, Commit{
		Processed:      []string{"2"},
		ConsumePending: []string{"X"},
		AddPending:     []string{"Y"},
	}))

	sess, err := s.Get(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, sess.ProcessedMessageIDs)
	assert.Equal(t, []string{"Y"}, sess.PendingToolCallIDs)

	assert.True(t, Commit{}.IsEmpty())
	require.NoError(t, s.Commit(ctx, Key{ThreadID: "missing"}, Commit{}))
}

func TestStore_State(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	_, err := s.GetOrCreate(ctx, testKey, nil)
	require.NoError(t, err)

	_, ok, err := s.GetState(ctx, testKey, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetState(ctx, testKey, "theme", "dark"))
	require.NoError(t, s.MergeState(ctx, testKey, map[string]any{"count": 2, "theme": "light"}))

	v, ok, err := s.GetState(ctx, testKey, "theme")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "light", v)

	v, _, err = s.GetState(ctx, testKey, "count")
	require.NoError(t, err)
	assert.Equal(t, float64(2), v)

	require.NoError(t, s.RemoveState(ctx, testKey, "theme"))
	_, ok, err = s.GetState(ctx, testKey, "theme")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_DeleteAndList(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	keys := []Key{
		{AppName: "app", UserID: "u1", ThreadID: "a"},
		{AppName: "app", UserID: "u1", ThreadID: "b"},
		{AppName: "app", UserID: "u2", ThreadID: "c"},
	}
	for _, k := range keys {
		_, err := s.GetOrCreate(ctx, k, nil)
		require.NoError(t, err)
	}

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	u1, err := s.ListUser(ctx, "app", "u1")
	require.NoError(t, err)
	assert.Len(t, u1, 2)

	require.NoError(t, s.Delete(ctx, keys[2]))
	require.NoError(t, s.Delete(ctx, keys[2]))

	n, err := s.DeleteUserSessions(ctx, "app", "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestStore_MaxSessionsPerUser(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore(t, WithMaxSessionsPerUser(2))

	for _, id := range []string{"a", "b", "c"} {
		_, err := s.GetOrCreate(ctx, Key{AppName: "app", UserID: "u", ThreadID: id}, nil)
		require.NoError(t, err)
		clock.Advance(time.Second)
	}

	sessions, err := s.ListUser(ctx, "app", "u")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	ids := []string{sessions[0].ID, sessions[1].ID}
	assert.ElementsMatch(t, []string{"b", "c"}, ids)
}

func TestStore_Sweep(t *testing.T) {
	ctx := context.Background()

	t.Run("evicts idle sessions", func(t *testing.T) {
		s, clock := newTestStore(t, WithTimeout(10*time.Minute))
		idle := Key{AppName: "app", UserID: "u", ThreadID: "idle"}
		active := Key{AppName: "app", UserID: "u", ThreadID: "active"}
		_, err := s.GetOrCreate(ctx, idle, nil)
		require.NoError(t, err)
		_, err = s.GetOrCreate(ctx, active, nil)
		require.NoError(t, err)

		clock.Advance(6 * time.Minute)
		_, err = s.Get(ctx, active)
		require.NoError(t, err)
		clock.Advance(6 * time.Minute)

		n, err := s.Sweep(ctx, clock.Now())
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		_, err = s.Get(ctx, idle)
		assert.True(t, IsNotFound(err))
		_, err = s.Get(ctx, active)
		assert.NoError(t, err)
	})

	t.Run("keeps sessions with pending tool calls", func(t *testing.T) {
		s, clock := newTestStore(t, WithTimeout(time.Minute))
		_, err := s.GetOrCreate(ctx, testKey, nil)
		require.NoError(t, err)
		require.NoError(t, s.AddPendingToolCallIDs(ctx, testKey, "X"))

		clock.Advance(time.Hour)
		n, err := s.Sweep(ctx, clock.Now())
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("evicts pending when configured", func(t *testing.T) {
		s, clock := newTestStore(t, WithTimeout(time.Minute), WithEvictPending(true))
		_, err := s.GetOrCreate(ctx, testKey, nil)
		require.NoError(t, err)
		require.NoError(t, s.AddPendingToolCallIDs(ctx, testKey, "X"))

		clock.Advance(time.Hour)
		n, err := s.Sweep(ctx, clock.Now())
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("zero timeout disables eviction", func(t *testing.T) {
		s, clock := newTestStore(t, WithTimeout(0))
		_, err := s.GetOrCreate(ctx, testKey, nil)
		require.NoError(t, err)

		clock.Advance(24 * time.Hour)
		n, err := s.Sweep(ctx, clock.Now())
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestStore_StartSweeper(t *testing.T) {
	s, clock := newTestStore(t, WithTimeout(time.Minute))
	ctx, cancel := context.WithCancel(context.Background())

	_, err := s.GetOrCreate(ctx, testKey, nil)
	require.NoError(t, err)
	clock.Advance(time.Hour)

	done := s.StartSweeper(ctx, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		n, err := s.Count(context.Background())
		return err == nil && n == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestStore_ConcurrentMarks(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	_, err := s.GetOrCreate(ctx, testKey, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.MarkProcessed(ctx, testKey, fmt.Sprintf("m%d", i)))
		}(i)
	}
	wg.Wait()

	ids, err := s.ProcessedIDs(ctx, testKey)
	require.NoError(t, err)
	assert.Len(t, ids, 50)
	assert.Empty(t, s.locks)
}

type failingAdapter struct {
	store.Adapter
	err error
}

func (f failingAdapter) Get(context.Context, string) (json.RawMessage, bool, error) {
	return nil, false, f.err
}

func TestStore_AdapterErrorsAreSessionStoreErrors(t *testing.T) {
	boom := errors.New("connection refused")
	s := New(failingAdapter{Adapter: store.NewMemoryAdapter(), err: boom})

	_, err := s.GetOrCreate(context.Background(), testKey, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, bridge.KindSessionStore, bridge.KindOf(err))
}

func TestStore_ReplaceState(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	_, err := s.GetOrCreate(ctx, testKey, map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)

	require.NoError(t, s.ReplaceState(ctx, testKey, map[string]any{"c": "x"}))
	sess, err := s.Get(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"c": "x"}, sess.State)
	assert.Equal(t, map[string]bool{}, sess.ProcessedSet())
}
