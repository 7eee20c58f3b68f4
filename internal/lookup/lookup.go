// Package lookup reads the reference tables trips point at.
package lookup

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const dbTimeout = 3 * time.Second

// Item is one id/name row of a reference table.
type Item struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Table names a reference table.
type Table string

const (
	Services    Table = "services"
	Vehicles    Table = "vehicles"
	Payments    Table = "payments"
	Collections Table = "collection"
)

// Masters are the reference lists every trip form needs.
type Masters struct {
	Services    []Item `json:"services"`
	Vehicles    []Item `json:"vehicles"`
	Payments    []Item `json:"payments"`
	Collections []Item `json:"collections"`
}

type Source interface {
	List(ctx context.Context, table Table) ([]Item, error)
}

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// List returns a reference table ordered by id. table must be one of the
// Table constants.
func (r *Repository) List(ctx context.Context, table Table) ([]Item, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `SELECT id, name FROM `+string(table)+` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Name); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

type Service struct {
	source Source
	logger zerolog.Logger
}

func NewService(source Source, logger zerolog.Logger) *Service {
	return &Service{source: source, logger: logger.With().Str("component", "lookup").Logger()}
}

// Masters loads services, vehicles and payments concurrently; any failure
// fails the whole call. Collection statuses are optional and come back
// empty when they cannot be read.
func (s *Service) Masters(ctx context.Context) (Masters, error) {
	var m Masters
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range []struct {
		table Table
		dst   *[]Item
	}{
		{Services, &m.Services},
		{Vehicles, &m.Vehicles},
		{Payments, &m.Payments},
	} {
		g.Go(func() error {
			items, err := s.source.List(gctx, t.table)
			if err != nil {
				return err
			}
			*t.dst = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Masters{}, err
	}

	m.Collections = s.Collections(ctx)
	return m, nil
}

// Collections never fails.
func (s *Service) Collections(ctx context.Context) []Item {
	items, err := s.source.List(ctx, Collections)
	if err != nil {
		s.logger.Warn().Err(err).Msg("collection statuses unavailable")
		return []Item{}
	}
	return items
}
