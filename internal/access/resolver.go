package access

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/winchzone/dashboard/internal/identity"
	"github.com/winchzone/dashboard/internal/repo"
)

// ProfileStore reads the role attached to an identity's profile.
type ProfileStore interface {
	// RoleNameByUser returns the joined role name, "" when the profile has
	// no named role, or repo.ErrNotFound when there is no profile.
	RoleNameByUser(ctx context.Context, userID uuid.UUID) (string, error)
	// RoleCodeByUser returns the raw numeric role code of the profile.
	RoleCodeByUser(ctx context.Context, userID uuid.UUID) (int, error)
}

// Resolver maps an identity to exactly one role.
type Resolver struct {
	store  ProfileStore
	logger zerolog.Logger
}

func NewResolver(store ProfileStore, logger zerolog.Logger) *Resolver {
	return &Resolver{store: store, logger: logger.With().Str("component", "access").Logger()}
}

// Resolve never fails: lookup errors degrade to the raw code query and then
// to no role.
func (r *Resolver) Resolve(ctx context.Context, userID uuid.UUID) (Role, bool) {
	if userID == uuid.Nil {
		return "", false
	}

	name, err := r.store.RoleNameByUser(ctx, userID)
	switch {
	case err == nil:
		if role, ok := ParseRole(name); ok {
			return role, true
		}
		if name != "" {
			r.logger.Warn().Str("user_id", userID.String()).Str("role", name).Msg("unknown role name, using role code")
		}
	case errors.Is(err, repo.ErrNotFound):
	default:
		r.logger.Warn().Err(err).Str("user_id", userID.String()).Msg("role join lookup failed")
	}

	code, err := r.store.RoleCodeByUser(ctx, userID)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			r.logger.Warn().Err(err).Str("user_id", userID.String()).Msg("role code lookup failed")
		}
		return "", false
	}
	return RoleFromCode(code), true
}

// RoleSource is anything that resolves roles.
type RoleSource interface {
	Resolve(ctx context.Context, userID uuid.UUID) (Role, bool)
}

type cachedRole struct {
	role    Role
	ok      bool
	expires time.Time
}

// CachedResolver memoizes resolutions for a short TTL. Role changes
// published on the identity hub drop the cached entry.
type CachedResolver struct {
	next RoleSource
	ttl  time.Duration
	now  func() time.Time

	mu        sync.Mutex
	entries   map[uuid.UUID]cachedRole
	lastSweep time.Time
}

func NewCachedResolver(next RoleSource, ttl time.Duration) *CachedResolver {
	return &CachedResolver{next: next, ttl: ttl, now: time.Now, entries: make(map[uuid.UUID]cachedRole)}
}

func (c *CachedResolver) Resolve(ctx context.Context, userID uuid.UUID) (Role, bool) {
	c.mu.Lock()
	entry, hit := c.entries[userID]
	c.mu.Unlock()
	if hit && c.now().Before(entry.expires) {
		return entry.role, entry.ok
	}

	role, ok := c.next.Resolve(ctx, userID)
	now := c.now()
	c.mu.Lock()
	c.sweep(now)
	c.entries[userID] = cachedRole{role: role, ok: ok, expires: now.Add(c.ttl)}
	c.mu.Unlock()
	return role, ok
}

// sweep drops expired entries at most once per TTL. Caller holds mu.
func (c *CachedResolver) sweep(now time.Time) {
	if now.Sub(c.lastSweep) < c.ttl {
		return
	}
	c.lastSweep = now
	for id, entry := range c.entries {
		if !now.Before(entry.expires) {
			delete(c.entries, id)
		}
	}
}

func (c *CachedResolver) Invalidate(userID uuid.UUID) {
	c.mu.Lock()
	delete(c.entries, userID)
	c.mu.Unlock()
}

// Listen is an identity.Listener that invalidates on user updates and
// sign-outs.
func (c *CachedResolver) Listen(ev identity.Event) {
	switch ev.Type {
	case identity.EventUserUpdated, identity.EventSignedOut:
		c.Invalidate(ev.UserID)
	}
}
