package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/winchzone/dashboard/internal/repo"
)

const dbTimeout = 3 * time.Second

// defaultRoleID is the profile role assigned at sign-up (user).
const defaultRoleID = 2

// UserStore persists provider identities.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (Account, error)
	GetByID(ctx context.Context, id uuid.UUID) (Account, error)
	EmailByUsername(ctx context.Context, username string) (string, error)
	Create(ctx context.Context, email, username, passwordHash string) (User, error)
	ConfirmEmail(ctx context.Context, id uuid.UUID) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
}

// PGUserStore stores identities in auth_users and seeds a profile row.
type PGUserStore struct {
	db *pgxpool.Pool
}

func NewPGUserStore(pool *pgxpool.Pool) *PGUserStore {
	return &PGUserStore{db: pool}
}

const selectUser = `SELECT id, email, COALESCE(username, ''), email_confirmed_at, created_at, password_hash FROM auth_users`

func scanUser(row pgx.Row) (Account, error) {
	var rec Account
	err := row.Scan(&rec.ID, &rec.Email, &rec.Username, &rec.EmailConfirmed, &rec.CreatedAt, &rec.PasswordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, repo.ErrNotFound
	}
	return rec, err
}

func (s *PGUserStore) GetByEmail(ctx context.Context, email string) (Account, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	return scanUser(s.db.QueryRow(ctx, selectUser+` WHERE lower(email) = lower($1)`, strings.TrimSpace(email)))
}

func (s *PGUserStore) GetByID(ctx context.Context, id uuid.UUID) (Account, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	return scanUser(s.db.QueryRow(ctx, selectUser+` WHERE id = $1`, id))
}

func (s *PGUserStore) EmailByUsername(ctx context.Context, username string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var email string
	err := s.db.QueryRow(ctx, `SELECT email FROM auth_users WHERE lower(username) = lower($1)`, strings.TrimSpace(username)).Scan(&email)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", repo.ErrNotFound
	}
	return email, err
}

// Create inserts the identity and its default profile in one transaction.
func (s *PGUserStore) Create(ctx context.Context, email, username, passwordHash string) (User, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var user User
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var uname *string
		if username != "" {
			uname = &username
		}
		row := tx.QueryRow(ctx, `
			INSERT INTO auth_users (id, email, username, password_hash, created_at)
			VALUES ($1, $2, $3, $4, now())
			RETURNING id, email, COALESCE(username, ''), email_confirmed_at, created_at`,
			uuid.New(), strings.ToLower(strings.TrimSpace(email)), uname, passwordHash)
		if err := row.Scan(&user.ID, &user.Email, &user.Username, &user.EmailConfirmed, &user.CreatedAt); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `INSERT INTO profiles (user_id, role_id) VALUES ($1, $2)`, user.ID, defaultRoleID)
		return err
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if strings.Contains(pgErr.ConstraintName, "username") {
				return User{}, ErrUsernameTaken
			}
			return User{}, ErrUserExists
		}
		return User{}, err
	}
	return user, nil
}

func (s *PGUserStore) ConfirmEmail(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := s.db.Exec(ctx, `UPDATE auth_users SET email_confirmed_at = COALESCE(email_confirmed_at, now()) WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *PGUserStore) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := s.db.Exec(ctx, `UPDATE auth_users SET password_hash = $2 WHERE id = $1`, id, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}
