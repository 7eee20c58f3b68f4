package identity

import (
	"context"
	"strings"
)

// UsernameLookup resolves a username to the email it signs in with.
type UsernameLookup interface {
	LookupEmailByUsername(ctx context.Context, username string) (string, error)
}

// Login signs in with either an email or a username. A username is resolved
// first; an unknown one fails with ErrUsernameNotFound and no sign-in attempt.
func Login(ctx context.Context, p Provider, lookup UsernameLookup, identifier, password string) (*Session, error) {
	email := strings.TrimSpace(identifier)
	if !strings.Contains(email, "@") {
		resolved, err := lookup.LookupEmailByUsername(ctx, email)
		if err != nil {
			return nil, err
		}
		email = resolved
	}
	return p.SignIn(ctx, email, password)
}
