package identity

import (
	"time"

	"github.com/google/uuid"
)

// User is the identity issued at sign-up. The dashboard never mutates it
// directly; only the provider does.
type User struct {
	ID             uuid.UUID  `json:"id"`
	Email          string     `json:"email"`
	Username       string     `json:"username,omitempty"`
	EmailConfirmed *time.Time `json:"email_confirmed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Session is an authenticated session issued by the provider.
type Session struct {
	ID           string    `json:"-"`
	User         User      `json:"user"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	Recovery     bool      `json:"-"`
}

// EventType names a session-change notification.
type EventType string

const (
	EventSignedIn         EventType = "SIGNED_IN"
	EventSignedOut        EventType = "SIGNED_OUT"
	EventTokenRefreshed   EventType = "TOKEN_REFRESHED"
	EventPasswordRecovery EventType = "PASSWORD_RECOVERY"
	EventUserUpdated      EventType = "USER_UPDATED"
)

// Event is delivered to subscribers whenever a session changes.
// Tokens are never part of the event.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	UserID    uuid.UUID `json:"user_id"`
}

// Listener receives session-change notifications.
type Listener func(Event)

// SignUpInput carries sign-up data; Data holds arbitrary profile fields such
// as the chosen username.
type SignUpInput struct {
	Email      string
	Password   string
	RedirectTo string
	Data       map[string]string
}

// Account is a stored identity including its password hash.
type Account struct {
	User
	PasswordHash string
}

type storedSession struct {
	UserID      uuid.UUID `json:"user_id"`
	Email       string    `json:"email"`
	Username    string    `json:"username,omitempty"`
	RefreshHash string    `json:"refresh_hash"`
	Recovery    bool      `json:"recovery"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type pendingVerification struct {
	UserID     uuid.UUID `json:"user_id"`
	RedirectTo string    `json:"redirect_to"`
}
