package session

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/winchzone/dashboard/internal/identity"
)

// Watch keeps a guard decision current for a long-lived view. onChange runs
// with the watch lock held, so it must not call Close.
type Watch struct {
	guard    *Guard
	token    string
	onChange func(Decision)
	ctx      context.Context

	mu        sync.Mutex
	alive     bool
	resolved  bool
	missed    bool
	issued    uint64
	applied   uint64
	current   Decision
	sessionID string
	userID    uuid.UUID

	unsubscribe func()
	cancel      context.CancelFunc
}

// Open subscribes to session changes and resolves the initial decision in
// the background. Until it resolves, Current reports Pending.
func (g *Guard) Open(ctx context.Context, accessToken string, onChange func(Decision)) *Watch {
	ctx, cancel := context.WithCancel(ctx)
	w := &Watch{
		guard:    g,
		token:    accessToken,
		onChange: onChange,
		ctx:      ctx,
		alive:    true,
		cancel:   cancel,
	}
	w.unsubscribe = g.source.Subscribe(w.notify)

	w.mu.Lock()
	seq := w.next()
	w.mu.Unlock()
	go w.resolve(seq)
	return w
}

// Current returns the latest decision.
func (w *Watch) Current() Decision {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Close stops delivery. Any notification arriving afterwards is dropped.
func (w *Watch) Close() {
	w.mu.Lock()
	if !w.alive {
		w.mu.Unlock()
		return
	}
	w.alive = false
	w.mu.Unlock()

	w.cancel()
	w.unsubscribe()
}

// notify runs on the publisher's goroutine and never queries the provider
// itself.
func (w *Watch) notify(ev identity.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.alive {
		return
	}
	if !w.resolved {
		// The session is not known yet; re-check once the first answer lands.
		w.missed = true
		return
	}
	if w.sessionID == "" ||
		(ev.SessionID != w.sessionID && (ev.SessionID != "" || ev.UserID != w.userID)) {
		return
	}

	seq := w.next()
	if ev.Type == identity.EventSignedOut {
		w.apply(seq, redirect())
		return
	}
	go w.resolve(seq)
}

// next issues a decision sequence number. Caller holds mu.
func (w *Watch) next() uint64 {
	w.issued++
	return w.issued
}

func (w *Watch) resolve(seq uint64) {
	d := w.guard.Decide(w.ctx, w.token)

	w.mu.Lock()
	w.apply(seq, d)
	recheck := w.alive && w.missed
	var again uint64
	if recheck {
		w.missed = false
		again = w.next()
	}
	w.mu.Unlock()

	if recheck {
		go w.resolve(again)
	}
}

// apply records d unless a newer decision already landed. Caller holds mu.
func (w *Watch) apply(seq uint64, d Decision) {
	if !w.alive || seq < w.applied {
		return
	}
	w.applied = seq
	w.resolved = true
	w.current = d
	if d.Session != nil {
		w.sessionID = d.Session.ID
		w.userID = d.Session.User.ID
	}
	if w.onChange != nil {
		w.onChange(d)
	}
}
