package idle

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Signal is a user activity event that refreshes the idle marker.
type Signal string

const (
	SignalMouseMove  Signal = "mousemove"
	SignalMouseDown  Signal = "mousedown"
	SignalKeyDown    Signal = "keydown"
	SignalScroll     Signal = "scroll"
	SignalTouchStart Signal = "touchstart"
	SignalClick      Signal = "click"
	SignalFocus      Signal = "focus"
)

var signals = map[Signal]struct{}{
	SignalMouseMove:  {},
	SignalMouseDown:  {},
	SignalKeyDown:    {},
	SignalScroll:     {},
	SignalTouchStart: {},
	SignalClick:      {},
	SignalFocus:      {},
}

// ParseSignal accepts only the fixed signal set.
func ParseSignal(raw string) (Signal, bool) {
	sig := Signal(raw)
	_, ok := signals[sig]
	return sig, ok
}

// ActivityStore holds the last-activity marker shared by every tab of a
// session. Writes are last-writer-wins.
type ActivityStore interface {
	Last(ctx context.Context, sessionID string) (time.Time, bool, error)
	Set(ctx context.Context, sessionID string, at time.Time) error
}

type redisCommander interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisStore keeps markers as unix milliseconds under activity:<session>.
type RedisStore struct {
	client redisCommander
	ttl    time.Duration
}

func NewRedisStore(client redisCommander, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func activityKey(sessionID string) string {
	return "activity:" + sessionID
}

// Last returns the stored marker. An unreadable value counts as absent.
func (s *RedisStore) Last(ctx context.Context, sessionID string) (time.Time, bool, error) {
	raw, err := s.client.Get(ctx, activityKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(ms), true, nil
}

func (s *RedisStore) Set(ctx context.Context, sessionID string, at time.Time) error {
	return s.client.Set(ctx, activityKey(sessionID), strconv.FormatInt(at.UnixMilli(), 10), s.ttl).Err()
}

// Expired reports whether more than timeout has elapsed since last.
func Expired(last, now time.Time, timeout time.Duration) bool {
	return now.Sub(last) > timeout
}

// Idle reads the marker of a session and reports whether it has expired.
// A missing marker is initialized to now and never counts as idle.
func Idle(ctx context.Context, store ActivityStore, sessionID string, now time.Time, timeout time.Duration) (bool, error) {
	last, ok, err := store.Last(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, store.Set(ctx, sessionID, now)
	}
	return Expired(last, now, timeout), nil
}
