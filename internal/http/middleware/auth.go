package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/winchzone/dashboard/internal/access"
	"github.com/winchzone/dashboard/internal/http/envelope"
	"github.com/winchzone/dashboard/internal/identity"
	"github.com/winchzone/dashboard/internal/idle"
	"github.com/winchzone/dashboard/internal/session"
)

type contextKey string

const (
	ContextKeyActor      contextKey = "actor"
	ContextKeySession    contextKey = "session"
	ContextKeyResolution contextKey = "resolution"
)

const MsgIdleExpired = "Session expired due to inactivity."

// SignOuter ends a session at the provider.
type SignOuter interface {
	SignOut(ctx context.Context, sessionID string) error
}

// SessionConfig wires the per-request session guard.
type SessionConfig struct {
	Guard       *session.Guard
	Roles       access.RoleSource
	Activity    idle.ActivityStore
	IdleTimeout time.Duration
	SignOut     SignOuter
	OnIdle      func()
	Logger      zerolog.Logger
	Now         func() time.Time
}

// Session requires a live provider session, re-checks the idle marker and
// puts the caller and their resolved role in the context.
func Session(cfg SessionConfig) func(http.Handler) http.Handler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = idle.DefaultTimeout
	}
	logger := cfg.Logger.With().Str("component", "session").Logger()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				envelope.Redirect(w, identity.ErrSessionMissing.Message, session.LandingPath)
				return
			}

			decision := cfg.Guard.Decide(r.Context(), token)
			if !decision.Authorized() {
				envelope.Redirect(w, identity.ErrSessionMissing.Message, session.LandingPath)
				return
			}
			sess := decision.Session

			if cfg.Activity != nil {
				now := cfg.Now()
				expired, err := idle.Idle(r.Context(), cfg.Activity, sess.ID, now, cfg.IdleTimeout)
				if err != nil {
					logger.Warn().Err(err).Msg("activity marker unavailable")
				}
				if expired {
					if cfg.SignOut != nil {
						if err := cfg.SignOut.SignOut(r.Context(), sess.ID); err != nil {
							logger.Warn().Err(err).Msg("idle sign out failed")
						}
					}
					if err := cfg.Activity.Set(r.Context(), sess.ID, now); err != nil {
						logger.Warn().Err(err).Msg("reset activity marker failed")
					}
					if cfg.OnIdle != nil {
						cfg.OnIdle()
					}
					envelope.Redirect(w, MsgIdleExpired, session.LandingPath)
					return
				}
			}

			role, ok := cfg.Roles.Resolve(r.Context(), sess.User.ID)
			res := access.Resolved(role, ok)
			actor := access.Actor{
				UserID:    sess.User.ID,
				Email:     sess.User.Email,
				SessionID: sess.ID,
				Role:      res.Role,
			}

			if info, ok := r.Context().Value(contextKeyRequestInfo).(*requestInfo); ok {
				info.userID = sess.User.ID.String()
			}

			ctx := context.WithValue(r.Context(), ContextKeySession, sess)
			ctx = context.WithValue(ctx, ContextKeyActor, actor)
			ctx = context.WithValue(ctx, ContextKeyResolution, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken returns the access token of the Authorization header. The
// websocket handshake may pass it as the access_token query parameter.
func BearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return strings.TrimSpace(r.URL.Query().Get("access_token"))
}

// GetActor returns the authenticated caller.
func GetActor(ctx context.Context) (access.Actor, bool) {
	val, ok := ctx.Value(ContextKeyActor).(access.Actor)
	return val, ok
}

// GetSession returns the live session of the caller.
func GetSession(ctx context.Context) *identity.Session {
	val, _ := ctx.Value(ContextKeySession).(*identity.Session)
	return val
}

// GetResolution returns the role resolution; the zero value means still
// resolving.
func GetResolution(ctx context.Context) access.Resolution {
	val, _ := ctx.Value(ContextKeyResolution).(access.Resolution)
	return val
}

// GetSubject returns the caller's user id, or "".
func GetSubject(ctx context.Context) string {
	actor, ok := GetActor(ctx)
	if !ok || actor.UserID == uuid.Nil {
		return ""
	}
	return actor.UserID.String()
}
