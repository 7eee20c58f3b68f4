package recovery

import (
	"context"
	"errors"

	"github.com/winchzone/dashboard/internal/identity"
)

const (
	MsgSessionMissing = "Auth session missing. Please open the password reset link from your email again."
	MsgInitFailed     = "Failed to initialize password reset session."
	MsgUpdated        = "Password updated. Please login."
)

// ErrSessionMissing is returned when neither the link nor the caller carry
// a usable session.
var ErrSessionMissing = errors.New(MsgSessionMissing)

// Provider is the part of the identity boundary the reset flow uses.
type Provider interface {
	GetSession(ctx context.Context, accessToken string) (*identity.Session, error)
	ExchangeCodeForSession(ctx context.Context, code string) (*identity.Session, error)
	SetSession(ctx context.Context, accessToken, refreshToken string) (*identity.Session, error)
	UpdatePassword(ctx context.Context, sessionID, password string) error
}

// InitError carries the provider message of a failed session setup.
type InitError struct {
	Err error
}

func (e *InitError) Error() string {
	return identity.Message(e.Err, MsgInitFailed)
}

func (e *InitError) Unwrap() error { return e.Err }

// Establish makes the reset session ready. It tries, in order, a code
// exchange, the token pair, and the caller's existing session.
func Establish(ctx context.Context, p Provider, params Params, currentToken string) (*identity.Session, error) {
	if params.Code != "" {
		sess, err := p.ExchangeCodeForSession(ctx, params.Code)
		if err != nil {
			return nil, &InitError{Err: err}
		}
		return sess, nil
	}

	if params.HasTokens() {
		sess, err := p.SetSession(ctx, params.AccessToken, params.RefreshToken)
		if err != nil {
			return nil, &InitError{Err: err}
		}
		return sess, nil
	}

	if currentToken != "" {
		sess, err := p.GetSession(ctx, currentToken)
		if err != nil {
			return nil, &InitError{Err: err}
		}
		if sess != nil {
			return sess, nil
		}
	}
	return nil, ErrSessionMissing
}

// UpdatePassword sets a new password on a ready session.
func UpdatePassword(ctx context.Context, p Provider, sess *identity.Session, password string) error {
	if sess == nil {
		return ErrSessionMissing
	}
	return p.UpdatePassword(ctx, sess.ID, password)
}
