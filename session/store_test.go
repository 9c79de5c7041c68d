package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"echo/core"
	"echo/providers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
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

type failingHealth struct{}

func (failingHealth) GetTodayHealth(context.Context, string) (*providers.HealthSnapshot, error) {
	return nil, errors.New("wearable sync down")
}

type failingPrefs struct{}

func (failingPrefs) GetPreferences(context.Context, string) (*providers.Preferences, error) {
	return nil, errors.New("profile db down")
}

func newTestStore(t *testing.T, opts ...StoreOption) (*MemoryStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 5, 8, 9, 30, 0, 0, time.UTC)}
	static := providers.NewStatic(providers.DefaultFixtures())
	opts = append([]StoreOption{WithClock(clock.Now), WithLogger(core.NopLogger())}, opts...)
	return NewMemoryStore(static.Set(), opts...), clock
}

func ptr(s string) *string { return &s }

func TestInitializeThenGet(t *testing.T) {
	store, clock := newTestStore(t)
	for _, userID := range []string{"1", "2", "user-with-long-id"} {
		t.Run(userID, func(t *testing.T) {
			created, err := store.Initialize(context.Background(), userID)
			require.NoError(t, err)

			got, err := store.Get(userID)
			require.NoError(t, err)
			assert.Same(t, created, got)
			assert.Equal(t, userID, got.UserID)
			assert.Empty(t, got.History())
			assert.True(t, got.Active())
			assert.NotEmpty(t, got.ID)
			assert.Equal(t, time.Date(2026, 5, 8, 0, 0, 0, 0, time.UTC), got.Date)
			assert.Equal(t, clock.Now(), got.LastAccess())
			require.NotNil(t, got.Preferences)
			assert.Equal(t, "김영호", got.Preferences.Name)
			require.NotNil(t, got.Health)
			require.NotNil(t, got.Weather)
		})
	}
	assert.Equal(t, 3, store.Len())
}

func TestGetUnknownUserNamesUser(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Get("ghost-99")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Contains(t, err.Error(), "ghost-99")
}

func TestFinalize(t *testing.T) {
	store, _ := newTestStore(t)
	assert.NotPanics(t, func() { store.Finalize("never-started") })

	sess, err := store.Initialize(context.Background(), "1")
	require.NoError(t, err)
	store.Finalize("1")

	_, err = store.Get("1")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.False(t, sess.Active())
	assert.Zero(t, store.Len())
}

func TestAddTurnPreservesOrder(t *testing.T) {
	store, clock := newTestStore(t)
	_, err := store.Initialize(context.Background(), "1")
	require.NoError(t, err)

	for _, msg := range []string{"1st", "2nd", "3rd"} {
		clock.Advance(time.Second)
		require.NoError(t, store.AddTurn("1", ptr(msg), "reply to "+msg))
	}

	sess, err := store.Get("1")
	require.NoError(t, err)
	history := sess.History()
	require.Len(t, history, 3)
	assert.Equal(t, "1st", *history[0].UserMessage)
	assert.Equal(t, "3rd", *history[2].UserMessage)
	assert.Equal(t, "reply to 2nd", history[1].AIResponse)
	assert.True(t, history[0].Timestamp.Before(history[2].Timestamp))
}

func TestAddTurnWithoutSession(t *testing.T) {
	store, _ := newTestStore(t)
	err := store.AddTurn("nobody", nil, "hello")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestInitializeReplacesPriorSession(t *testing.T) {
	store, _ := newTestStore(t)
	first, err := store.Initialize(context.Background(), "1")
	require.NoError(t, err)
	require.NoError(t, store.AddTurn("1", nil, "greeting"))

	second, err := store.Initialize(context.Background(), "1")
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.False(t, first.Active())
	assert.Empty(t, second.History())
	assert.Equal(t, 1, store.Len())
}

func TestGetRefreshesLastAccess(t *testing.T) {
	store, clock := newTestStore(t)
	sess, err := store.Initialize(context.Background(), "1")
	require.NoError(t, err)
	created := sess.LastAccess()

	clock.Advance(5 * time.Minute)
	_, err = store.Get("1")
	require.NoError(t, err)
	assert.Equal(t, created.Add(5*time.Minute), sess.LastAccess())
}

func TestHistoryIsASnapshotButSessionIsLive(t *testing.T) {
	store, _ := newTestStore(t)
	sess, err := store.Initialize(context.Background(), "1")
	require.NoError(t, err)

	before := sess.History()
	require.NoError(t, store.AddTurn("1", nil, "hi"))

	assert.Empty(t, before)
	assert.Equal(t, 1, sess.TurnCount(), "holder of *Session observes the append")
}

func TestProviderFailures(t *testing.T) {
	static := providers.NewStatic(providers.DefaultFixtures())

	t.Run("health failure degrades", func(t *testing.T) {
		logger, capture := core.NewCaptureLogger()
		set := static.Set()
		set.Health = failingHealth{}
		store := NewMemoryStore(set, WithLogger(logger))

		sess, err := store.Initialize(context.Background(), "1")
		require.NoError(t, err)
		assert.Nil(t, sess.Health)
		assert.NotNil(t, sess.Weather)
		_, logged := capture.Find("health data unavailable, continuing without it")
		assert.True(t, logged)
	})

	t.Run("preferences failure fails", func(t *testing.T) {
		set := static.Set()
		set.Preferences = failingPrefs{}
		store := NewMemoryStore(set, WithLogger(core.NopLogger()))

		_, err := store.Initialize(context.Background(), "1")
		assert.ErrorContains(t, err, "profile db down")
		assert.Zero(t, store.Len())
	})
}

func TestConcurrentUsersAndTurns(t *testing.T) {
	store, _ := newTestStore(t, WithShards(4))
	const users, turns = 20, 25

	var wg sync.WaitGroup
	for u := 0; u < users; u++ {
		userID := fmt.Sprintf("u%d", u)
		_, err := store.Initialize(context.Background(), userID)
		require.NoError(t, err)
		for i := 0; i < turns; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				msg := fmt.Sprintf("%s-%d", userID, i)
				assert.NoError(t, store.AddTurn(userID, &msg, "ok"))
				sess, err := store.Get(userID)
				if assert.NoError(t, err) {
					_ = sess.History()
				}
			}(i)
		}
	}
	wg.Wait()

	for u := 0; u < users; u++ {
		userID := fmt.Sprintf("u%d", u)
		sess, err := store.Get(userID)
		require.NoError(t, err)
		history := sess.History()
		require.Len(t, history, turns)
		for _, turn := range history {
			assert.Contains(t, *turn.UserMessage, userID+"-", "no cross-user turns")
		}
	}
}

func TestIdleSince(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()
	_, err := store.Initialize(ctx, "stale")
	require.NoError(t, err)
	clock.Advance(time.Hour)
	_, err = store.Initialize(ctx, "fresh")
	require.NoError(t, err)

	idle := store.IdleSince(clock.Now().Add(-30 * time.Minute))
	sort.Strings(idle)
	assert.Equal(t, []string{"stale"}, idle)
}

func TestSnapshotIsDetached(t *testing.T) {
	sess := New("s1", "1", time.Now(), nil, nil, nil)
	sess.Append(nil, "greeting", time.Now())
	snap := sess.Snapshot()
	sess.Append(ptr("later"), "reply", time.Now())

	assert.Len(t, snap.History, 1)
	assert.Nil(t, snap.History[0].UserMessage)
	assert.Equal(t, "1", snap.UserID)
}
