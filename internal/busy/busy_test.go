package busy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRedis struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (s *stubRedis) SetNX(ctx context.Context, key string, _ any, _ time.Duration) *redis.BoolCmd {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keys == nil {
		s.keys = map[string]bool{}
	}
	cmd := redis.NewBoolCmd(ctx)
	if s.keys[key] {
		cmd.SetVal(false)
		return cmd
	}
	s.keys[key] = true
	cmd.SetVal(true)
	return cmd
}

func (s *stubRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.keys, k)
	}
	return redis.NewIntCmd(ctx)
}

func TestDuplicateSubmissionIsRejected(t *testing.T) {
	g := New(&stubRedis{}, time.Minute)
	ctx := context.Background()

	err := g.Do(ctx, "trip.save:u1", func(ctx context.Context) error {
		inner := g.Do(ctx, "trip.save:u1", func(context.Context) error {
			t.Fatal("duplicate must not run")
			return nil
		})
		assert.ErrorIs(t, inner, ErrBusy)
		return nil
	})
	require.NoError(t, err)
}

func TestKeyReleasedAfterFailure(t *testing.T) {
	rdb := &stubRedis{}
	g := New(rdb, time.Minute)
	boom := errors.New("boom")

	err := g.Do(context.Background(), "k", func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)

	ran := false
	require.NoError(t, g.Do(context.Background(), "k", func(context.Context) error {
		ran = true
		return nil
	}))
	assert.True(t, ran)
	assert.Empty(t, rdb.keys)
}
