package identity

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const eventsChannel = "identity:events"

type envelope struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

// Hub fans session-change events out to local listeners and, when a Redis
// client is present, to every other API instance.
type Hub struct {
	mu        sync.RWMutex
	seq       int
	listeners map[int]Listener

	redis  *redis.Client
	origin string
	logger zerolog.Logger
}

func NewHub(client *redis.Client, logger zerolog.Logger) *Hub {
	return &Hub{
		listeners: make(map[int]Listener),
		redis:     client,
		origin:    uuid.NewString(),
		logger:    logger.With().Str("component", "identity").Logger(),
	}
}

// Subscribe registers fn and returns a handle that removes it. The handle is
// safe to call more than once.
func (h *Hub) Subscribe(fn Listener) func() {
	h.mu.Lock()
	h.seq++
	id := h.seq
	h.listeners[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.listeners, id)
			h.mu.Unlock()
		})
	}
}

// Publish delivers ev locally and broadcasts it to other instances.
func (h *Hub) Publish(ctx context.Context, ev Event) {
	h.deliver(ev)

	if h.redis == nil {
		return
	}
	payload, err := json.Marshal(envelope{Origin: h.origin, Event: ev})
	if err != nil {
		return
	}
	if err := h.redis.Publish(ctx, eventsChannel, payload).Err(); err != nil {
		h.logger.Warn().Err(err).Str("event", string(ev.Type)).Msg("publish session event failed")
	}
}

// Run relays events published by other instances until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	if h.redis == nil {
		return
	}
	sub := h.redis.Subscribe(ctx, eventsChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				h.logger.Warn().Err(err).Msg("invalid session event")
				continue
			}
			if env.Origin == h.origin {
				continue
			}
			h.deliver(env.Event)
		}
	}
}

func (h *Hub) deliver(ev Event) {
	h.mu.RLock()
	targets := make([]Listener, 0, len(h.listeners))
	for _, fn := range h.listeners {
		targets = append(targets, fn)
	}
	h.mu.RUnlock()

	for _, fn := range targets {
		fn(ev)
	}
}
