package session

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/winchzone/dashboard/internal/identity"
)

// LandingPath is where callers without a live session are sent.
const LandingPath = "/"

// State is the outcome of a guard check. The zero value is Pending, which
// never grants access.
type State int

const (
	Pending State = iota
	Authorized
	Redirect
)

func (s State) String() string {
	switch s {
	case Authorized:
		return "authorized"
	case Redirect:
		return "redirect"
	default:
		return "pending"
	}
}

// Decision is what a protected view should do.
type Decision struct {
	State   State             `json:"-"`
	Session *identity.Session `json:"-"`
	To      string            `json:"redirect,omitempty"`
	Replace bool              `json:"replace,omitempty"`
}

func (d Decision) Authorized() bool {
	return d.State == Authorized && d.Session != nil
}

func authorized(sess *identity.Session) Decision {
	return Decision{State: Authorized, Session: sess}
}

func redirect() Decision {
	return Decision{State: Redirect, To: LandingPath, Replace: true}
}

// Source is the slice of the identity provider the guard needs.
type Source interface {
	GetSession(ctx context.Context, accessToken string) (*identity.Session, error)
	Subscribe(fn identity.Listener) func()
}

// Guard decides whether a caller holds a live session.
type Guard struct {
	source Source
	logger zerolog.Logger
}

func NewGuard(source Source, logger zerolog.Logger) *Guard {
	return &Guard{source: source, logger: logger.With().Str("component", "session").Logger()}
}

// Decide queries the provider once. Provider failures redirect.
func (g *Guard) Decide(ctx context.Context, accessToken string) Decision {
	sess, err := g.source.GetSession(ctx, accessToken)
	if err != nil {
		g.logger.Warn().Err(err).Msg("session lookup failed")
		return redirect()
	}
	if sess == nil {
		return redirect()
	}
	return authorized(sess)
}
