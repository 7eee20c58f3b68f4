// Package events publishes trip and customer lifecycle notifications.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Subjects.
const (
	SubjectTripRecorded    = "winchzone.trip.recorded"
	SubjectTripUpdated     = "winchzone.trip.updated"
	SubjectTripApproved    = "winchzone.trip.approved"
	SubjectTripCollection  = "winchzone.trip.collection"
	SubjectTripPhotos      = "winchzone.trip.photos"
	SubjectCustomerCreated = "winchzone.customer.created"
	SubjectCustomerUpdated = "winchzone.customer.updated"
	SubjectRoleChanged     = "winchzone.user.role"
)

// Event is the payload of every lifecycle message.
type Event struct {
	Subject string         `json:"subject"`
	Actor   string         `json:"actor,omitempty"`
	At      time.Time      `json:"at"`
	Data    map[string]any `json:"data,omitempty"`
}

// Publisher emits lifecycle events. Publishing never fails the caller's
// operation; errors are only logged by implementations.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// Noop discards events.
type Noop struct{}

func (Noop) Publish(context.Context, Event) {}

// NATSPublisher sends events on a core NATS connection.
type NATSPublisher struct {
	conn   *nats.Conn
	logger zerolog.Logger

	mu     sync.Mutex
	closed bool
}

// Connect dials url. An empty url yields a Noop publisher.
func Connect(url string, logger zerolog.Logger) (Publisher, func(), error) {
	if url == "" {
		return Noop{}, func() {}, nil
	}
	conn, err := nats.Connect(url,
		nats.Name("winchzone-dashboard"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to NATS: %w", err)
	}
	p := &NATSPublisher{conn: conn, logger: logger.With().Str("component", "events").Logger()}
	return p, p.Close, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, ev Event) {
	if ctx.Err() != nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		p.logger.Warn().Err(err).Str("subject", ev.Subject).Msg("encode event failed")
		return
	}

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return
	}
	if err := p.conn.Publish(ev.Subject, data); err != nil {
		p.logger.Warn().Err(err).Str("subject", ev.Subject).Msg("publish event failed")
	}
}

// Close drains the connection.
func (p *NATSPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns a copy of what was published.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
