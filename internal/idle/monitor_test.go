package idle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu     sync.Mutex
	marks  map[string]time.Time
	writes int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{marks: map[string]time.Time{}}
}

func (s *memoryStore) Last(_ context.Context, id string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.marks[id]
	return at, ok, nil
}

func (s *memoryStore) Set(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marks[id] = at
	s.writes++
	return nil
}

func (s *memoryStore) get(id string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.marks[id]
}

func (s *memoryStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

type stubSession struct {
	live         atomic.Bool
	terminated   atomic.Int32
	terminateErr error
}

func (s *stubSession) ID() string { return "sess-1" }

func (s *stubSession) Live(context.Context) (bool, error) { return s.live.Load(), nil }

func (s *stubSession) Terminate(context.Context) error {
	s.terminated.Add(1)
	s.live.Store(false)
	return s.terminateErr
}

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
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newFixture(live bool) (*memoryStore, *stubSession, *fakeClock) {
	sess := &stubSession{}
	sess.live.Store(live)
	return newMemoryStore(), sess, &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func TestParseSignal(t *testing.T) {
	for _, raw := range []string{"mousemove", "mousedown", "keydown", "scroll", "touchstart", "click", "focus"} {
		_, ok := ParseSignal(raw)
		assert.True(t, ok, raw)
	}
	_, ok := ParseSignal("resize")
	assert.False(t, ok)
}

func TestCheckExpiresAfterThreshold(t *testing.T) {
	store, sess, clock := newFixture(true)
	store.marks["sess-1"] = clock.Now().Add(-31 * time.Minute)

	expired := 0
	m := NewMonitor(store, sess, Config{}, zerolog.Nop(), func() { expired++ }).WithClock(clock.Now)

	ok, err := m.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(1), sess.terminated.Load())
	assert.Equal(t, 1, expired)
	assert.Equal(t, clock.Now(), store.get("sess-1"))
}

func TestCheckWithinThresholdDoesNothing(t *testing.T) {
	store, sess, clock := newFixture(true)
	store.marks["sess-1"] = clock.Now().Add(-29 * time.Minute)

	m := NewMonitor(store, sess, Config{}, zerolog.Nop(), func() { t.Fatal("unexpected expiry") }).WithClock(clock.Now)

	ok, err := m.Check(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, sess.terminated.Load())
}

func TestCheckWithoutLiveSessionDoesNothing(t *testing.T) {
	store, sess, clock := newFixture(false)
	store.marks["sess-1"] = clock.Now().Add(-2 * time.Hour)

	m := NewMonitor(store, sess, Config{}, zerolog.Nop(), func() { t.Fatal("unexpected expiry") }).WithClock(clock.Now)

	ok, err := m.Check(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, store.writeCount())
}

func TestCheckMissingMarkerCountsAsNow(t *testing.T) {
	store, sess, clock := newFixture(true)

	m := NewMonitor(store, sess, Config{}, zerolog.Nop(), nil).WithClock(clock.Now)

	ok, err := m.Check(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRemoteSignOutFailureStillExpiresLocally(t *testing.T) {
	store, sess, clock := newFixture(true)
	sess.terminateErr = errors.New("provider unreachable")
	store.marks["sess-1"] = clock.Now().Add(-45 * time.Minute)

	expired := 0
	m := NewMonitor(store, sess, Config{}, zerolog.Nop(), func() { expired++ }).WithClock(clock.Now)

	ok, err := m.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, expired)
	assert.Equal(t, clock.Now(), store.get("sess-1"))
}

func TestActivityFromAnotherTabPreventsExpiry(t *testing.T) {
	store, sess, clock := newFixture(true)
	store.marks["sess-1"] = clock.Now()

	m := NewMonitor(store, sess, Config{}, zerolog.Nop(), func() { t.Fatal("unexpected expiry") }).WithClock(clock.Now)

	clock.Advance(25 * time.Minute)
	require.NoError(t, store.Set(context.Background(), "sess-1", clock.Now()))
	clock.Advance(25 * time.Minute)

	ok, err := m.Check(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStartInitializesMarkerAndExpiresWithinOnePoll(t *testing.T) {
	store, sess, clock := newFixture(true)

	expired := make(chan struct{}, 1)
	m := NewMonitor(store, sess, Config{Timeout: 30 * time.Minute, PollInterval: 10 * time.Millisecond}, zerolog.Nop(), func() {
		expired <- struct{}{}
	}).WithClock(clock.Now)

	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()
	assert.Equal(t, clock.Now(), store.get("sess-1"))

	clock.Advance(31 * time.Minute)
	select {
	case <-expired:
	case <-time.After(time.Second):
		t.Fatal("session not expired within a poll")
	}
	assert.Equal(t, int32(1), sess.terminated.Load())
}

func TestTouchAfterStopWritesNothing(t *testing.T) {
	store, sess, clock := newFixture(true)

	m := NewMonitor(store, sess, Config{PollInterval: time.Hour}, zerolog.Nop(), nil).WithClock(clock.Now)
	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.Touch(context.Background(), SignalClick))
	writes := store.writeCount()

	m.Stop()
	m.Stop()

	require.ErrorIs(t, m.Touch(context.Background(), SignalKeyDown), ErrStopped)
	assert.Equal(t, writes, store.writeCount())
}

func TestIdleHelperInitializesMissingMarker(t *testing.T) {
	store := newMemoryStore()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	idle, err := Idle(context.Background(), store, "sess-9", now, DefaultTimeout)
	require.NoError(t, err)
	assert.False(t, idle)
	assert.Equal(t, now, store.get("sess-9"))

	idle, err = Idle(context.Background(), store, "sess-9", now.Add(DefaultTimeout+time.Second), DefaultTimeout)
	require.NoError(t, err)
	assert.True(t, idle)
}

type stubRedis struct {
	store map[string]string
}

func (s *stubRedis) Set(ctx context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	if s.store == nil {
		s.store = map[string]string{}
	}
	s.store[key] = value.(string)
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func (s *stubRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	val, ok := s.store[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(val)
	return cmd
}

func TestRedisStoreRoundTrip(t *testing.T) {
	rdb := &stubRedis{}
	store := NewRedisStore(rdb, time.Hour)
	at := time.UnixMilli(1767225600123)

	_, ok, err := store.Last(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(context.Background(), "sess-1", at))
	assert.Equal(t, "1767225600123", rdb.store["activity:sess-1"])

	got, ok, err := store.Last(context.Background(), "sess-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, at.Equal(got))
}
