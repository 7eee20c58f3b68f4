package idle

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultTimeout      = 30 * time.Minute
	DefaultPollInterval = 20 * time.Second
)

// ErrStopped is returned by Touch once the monitor has been stopped.
var ErrStopped = errors.New("idle monitor stopped")

// Session is the live session a monitor watches.
type Session interface {
	ID() string
	// Live reports whether the provider still holds the session.
	Live(ctx context.Context) (bool, error)
	// Terminate signs the session out remotely.
	Terminate(ctx context.Context) error
}

// Config holds the idle threshold and the poll period.
type Config struct {
	Timeout      time.Duration
	PollInterval time.Duration
}

// Monitor polls the shared activity marker of one session and ends the
// session once it has been idle longer than the threshold.
type Monitor struct {
	store    ActivityStore
	session  Session
	cfg      Config
	onExpire func()
	logger   zerolog.Logger
	now      func() time.Time

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewMonitor builds a monitor. onExpire runs on the poll goroutine and must
// not call Stop.
func NewMonitor(store ActivityStore, sess Session, cfg Config, logger zerolog.Logger, onExpire func()) *Monitor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Monitor{
		store:    store,
		session:  sess,
		cfg:      cfg,
		onExpire: onExpire,
		logger:   logger.With().Str("component", "idle").Str("session_id", sess.ID()).Logger(),
		now:      time.Now,
	}
}

// WithClock replaces the time source.
func (m *Monitor) WithClock(now func() time.Time) *Monitor {
	m.now = now
	return m
}

// Start initializes the marker if absent and begins polling. Calling it
// again is a no-op.
func (m *Monitor) Start(parent context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started || m.stopped {
		return nil
	}

	if _, ok, err := m.store.Last(parent, m.session.ID()); err != nil {
		m.logger.Warn().Err(err).Msg("read activity marker failed")
	} else if !ok {
		if err := m.store.Set(parent, m.session.ID(), m.now()); err != nil {
			m.logger.Warn().Err(err).Msg("initialize activity marker failed")
		}
	}

	ctx, cancel := context.WithCancel(parent)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.started = true
	go m.runLoop(ctx)
	return nil
}

// Stop releases the poll and waits for it to exit. No marker writes happen
// afterwards.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Touch records activity unconditionally.
func (m *Monitor) Touch(ctx context.Context, _ Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return ErrStopped
	}
	return m.store.Set(ctx, m.session.ID(), m.now())
}

// Check runs one poll and reports whether the session was expired.
func (m *Monitor) Check(ctx context.Context) (bool, error) {
	live, err := m.session.Live(ctx)
	if err != nil {
		return false, err
	}
	if !live {
		return false, nil
	}

	now := m.now()
	last, ok, err := m.store.Last(ctx, m.session.ID())
	if err != nil {
		return false, err
	}
	if !ok {
		last = now
	}
	if !Expired(last, now, m.cfg.Timeout) {
		return false, nil
	}

	if err := m.session.Terminate(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("remote sign out failed")
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return true, nil
	}
	if err := m.store.Set(ctx, m.session.ID(), m.now()); err != nil {
		m.logger.Warn().Err(err).Msg("reset activity marker failed")
	}
	m.mu.Unlock()

	m.logger.Info().Dur("idle", now.Sub(last)).Msg("session expired")
	if m.onExpire != nil {
		m.onExpire()
	}
	return true, nil
}

func (m *Monitor) runLoop(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Check(ctx); err != nil && ctx.Err() == nil {
				m.logger.Warn().Err(err).Msg("idle check failed")
			}
		}
	}
}
