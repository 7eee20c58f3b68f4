// Package busy rejects duplicate submissions of the same action while one is
// still in flight.
package busy

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrBusy is returned when the same action is already running.
var ErrBusy = errors.New("Please wait...")

type redisCommander interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Guard holds a short-lived Redis key per action.
type Guard struct {
	client redisCommander
	ttl    time.Duration
}

func New(client redisCommander, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Guard{client: client, ttl: ttl}
}

// Do runs fn while holding key. The key is released whatever fn returns.
func (g *Guard) Do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	redisKey := "busy:" + key
	ok, err := g.client.SetNX(ctx, redisKey, time.Now().UnixMilli(), g.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrBusy
	}
	defer g.client.Del(context.WithoutCancel(ctx), redisKey)

	return fn(ctx)
}
