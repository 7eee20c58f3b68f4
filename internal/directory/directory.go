// Package directory lists identities with their roles and lets an admin
// change them.
package directory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/winchzone/dashboard/internal/access"
	"github.com/winchzone/dashboard/internal/events"
	"github.com/winchzone/dashboard/internal/identity"
	"github.com/winchzone/dashboard/internal/repo"
	"github.com/winchzone/dashboard/internal/util"
)

const dbTimeout = 3 * time.Second

// ErrSelfDemotion blocks an admin from removing their own admin role.
var ErrSelfDemotion = errors.New("You cannot remove your own admin role.")

// Entry is a row of the user directory.
type Entry struct {
	UserID uuid.UUID   `json:"user_id"`
	Email  string      `json:"email"`
	Role   access.Role `json:"role"`
	RoleID *int        `json:"role_id"`
}

type Store interface {
	List(ctx context.Context) ([]Entry, error)
	SetRoleCode(ctx context.Context, userID uuid.UUID, code int) error
}

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func (r *Repository) List(ctx context.Context) ([]Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT d.user_id, d.email, p.role_id, rl.name
		FROM user_directory d
		LEFT JOIN profiles p ON p.user_id = d.user_id
		LEFT JOIN roles rl ON rl.id = p.role_id
		ORDER BY d.email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var e Entry
		var name *string
		if err := rows.Scan(&e.UserID, &e.Email, &e.RoleID, &name); err != nil {
			return nil, err
		}
		e.Role = displayRole(name, e.RoleID)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repository) SetRoleCode(ctx context.Context, userID uuid.UUID, code int) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, `UPDATE profiles SET role_id = $2 WHERE user_id = $1`, userID, code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// displayRole prefers the joined name and falls back to the role code, the
// same precedence the resolver uses.
func displayRole(name *string, code *int) access.Role {
	if name != nil {
		if role, ok := access.ParseRole(*name); ok {
			return role
		}
	}
	if code == nil {
		return access.RoleUser
	}
	return access.RoleFromCode(*code)
}

// Notifier fans a session-change notification out to every instance.
type Notifier interface {
	Publish(ctx context.Context, ev identity.Event)
}

type Service struct {
	store    Store
	notifier Notifier
	events   events.Publisher
	logger   zerolog.Logger
}

func NewService(store Store, notifier Notifier, pub events.Publisher, logger zerolog.Logger) *Service {
	if pub == nil {
		pub = events.Noop{}
	}
	return &Service{store: store, notifier: notifier, events: pub, logger: logger.With().Str("component", "directory").Logger()}
}

func (s *Service) List(ctx context.Context) ([]Entry, error) {
	return s.store.List(ctx)
}

// SetRole stores the role code for userID and tells every instance to drop
// its cached role for that identity.
func (s *Service) SetRole(ctx context.Context, actor access.Actor, userID uuid.UUID, code int) error {
	if code != access.CodeAdmin && code != access.CodeUser {
		return util.Invalid("role_id", "Role must be 1 (admin) or 2 (user).")
	}
	if userID == actor.UserID && code != access.CodeAdmin {
		return ErrSelfDemotion
	}
	if err := s.store.SetRoleCode(ctx, userID, code); err != nil {
		return err
	}

	if s.notifier != nil {
		s.notifier.Publish(ctx, identity.Event{Type: identity.EventUserUpdated, UserID: userID})
	}
	s.events.Publish(ctx, events.Event{
		Subject: events.SubjectRoleChanged,
		Actor:   actor.UserID.String(),
		Data:    map[string]any{"user_id": userID.String(), "role": access.RoleFromCode(code)},
	})
	s.logger.Info().Str("user_id", userID.String()).Int("role_id", code).Msg("role updated")
	return nil
}
