package access

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/winchzone/dashboard/internal/repo"
)

const dbTimeout = 3 * time.Second

// Repository reads profiles and roles from Postgres.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func (r *Repository) RoleNameByUser(ctx context.Context, userID uuid.UUID) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var name *string
	err := r.db.QueryRow(ctx, `
		SELECT r.name
		FROM profiles p
		LEFT JOIN roles r ON r.id = p.role_id
		WHERE p.user_id = $1`, userID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", repo.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if name == nil {
		return "", nil
	}
	return *name, nil
}

func (r *Repository) RoleCodeByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var code *int
	err := r.db.QueryRow(ctx, `SELECT role_id FROM profiles WHERE user_id = $1`, userID).Scan(&code)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, repo.ErrNotFound
	}
	if err != nil || code == nil {
		return 0, err
	}
	return *code, nil
}
