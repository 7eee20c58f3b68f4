package trip

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/winchzone/dashboard/internal/repo"
)

const dbTimeout = 3 * time.Second

// Repository persists trips in Postgres.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const tripColumns = `
	id, to_char(trip_date, 'YYYY-MM-DD'), status, customer_id, service_id, vehicle_id,
	pickup_location, dropoff_location, price_per_trip, payment_id, collection_id,
	COALESCE(pickup_photos, '{}'), COALESCE(dropoff_photos, '{}'),
	created_by, approved_by, approved_at`

const summarySelect = `
	SELECT t.id, to_char(t.trip_date, 'YYYY-MM-DD'),
		COALESCE(c.name, ''), COALESCE(s.name, ''), COALESCE(v.name, ''),
		t.pickup_location, t.dropoff_location, t.price_per_trip,
		COALESCE(p.name, ''), t.status
	FROM trips t
	LEFT JOIN customers c ON c.id = t.customer_id
	LEFT JOIN services s ON s.id = t.service_id
	LEFT JOIN vehicles v ON v.id = t.vehicle_id
	LEFT JOIN payments p ON p.id = t.payment_id`

func scanTrip(row pgx.Row) (Trip, error) {
	var t Trip
	var status string
	err := row.Scan(&t.ID, &t.TripDate, &status, &t.CustomerID, &t.ServiceID, &t.VehicleID,
		&t.PickupLocation, &t.DropoffLocation, &t.PricePerTrip, &t.PaymentID, &t.CollectionID,
		&t.PickupPhotos, &t.DropoffPhotos, &t.CreatedBy, &t.ApprovedBy, &t.ApprovedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Trip{}, repo.ErrNotFound
	}
	t.Status = Status(status)
	return t, err
}

func scanSummaries(rows pgx.Rows) ([]Summary, error) {
	defer rows.Close()
	out := []Summary{}
	for rows.Next() {
		var s Summary
		var status string
		if err := rows.Scan(&s.ID, &s.TripDate, &s.CustomerName, &s.ServiceName, &s.VehicleName,
			&s.PickupLocation, &s.DropoffLocation, &s.PricePerTrip, &s.PaymentName, &status); err != nil {
			return nil, err
		}
		s.Status = Status(status)
		out = append(out, s)
	}
	return out, rows.Err()
}

func mapWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return ErrUnknownReference
	}
	return err
}

func (r *Repository) Insert(ctx context.Context, t NewTrip) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO trips (trip_date, customer_id, service_id, vehicle_id, pickup_location,
			dropoff_location, price_per_trip, payment_id, created_by, status, pickup_photos, dropoff_photos)
		VALUES ($1::date, $2, $3, $4, $5, $6, $7, $8, $9, 'pending', '{}', '{}')
		RETURNING id`,
		t.TripDate, t.CustomerID, t.ServiceID, t.VehicleID, t.PickupLocation,
		t.DropoffLocation, t.PricePerTrip, t.PaymentID, t.CreatedBy).Scan(&id)
	if err != nil {
		return 0, mapWriteErr(err)
	}
	return id, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (Trip, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	return scanTrip(r.db.QueryRow(ctx, `SELECT `+tripColumns+` FROM trips WHERE id = $1`, id))
}

func (r *Repository) ListRecent(ctx context.Context, limit int) ([]Trip, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `SELECT `+tripColumns+` FROM trips ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Trip{}
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repository) ListPending(ctx context.Context) ([]Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, summarySelect+` WHERE t.status = 'pending' ORDER BY t.id DESC`)
	if err != nil {
		return nil, err
	}
	return scanSummaries(rows)
}

func (r *Repository) ListForExport(ctx context.Context, f Filter) ([]Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var where []string
	var args []any
	if f.CustomerID != nil {
		args = append(args, *f.CustomerID)
		where = append(where, fmt.Sprintf("t.customer_id = $%d", len(args)))
	}
	if f.From != "" {
		args = append(args, f.From)
		where = append(where, fmt.Sprintf("t.trip_date >= $%d::date", len(args)))
	}
	if f.To != "" {
		args = append(args, f.To)
		where = append(where, fmt.Sprintf("t.trip_date <= $%d::date", len(args)))
	}

	query := summarySelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY t.id DESC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanSummaries(rows)
}

// UpdatePending applies p only while the trip is pending. It reports
// whether a row changed.
func (r *Repository) UpdatePending(ctx context.Context, id int64, p Patch) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	args := []any{id}
	var sets []string
	add := func(column string, value any, cast string) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d%s", column, len(args), cast))
	}
	if p.TripDate != nil {
		add("trip_date", *p.TripDate, "::date")
	}
	if p.CustomerID != nil {
		add("customer_id", *p.CustomerID, "")
	}
	if p.ServiceID != nil {
		add("service_id", *p.ServiceID, "")
	}
	if p.VehicleID != nil {
		add("vehicle_id", *p.VehicleID, "")
	}
	if p.PickupLocation != nil {
		add("pickup_location", *p.PickupLocation, "")
	}
	if p.DropoffLocation != nil {
		add("dropoff_location", *p.DropoffLocation, "")
	}
	if p.PricePerTrip != nil {
		add("price_per_trip", *p.PricePerTrip, "")
	}
	if p.PaymentID != nil {
		add("payment_id", *p.PaymentID, "")
	}
	if len(sets) == 0 {
		return false, nil
	}

	tag, err := r.db.Exec(ctx, `UPDATE trips SET `+strings.Join(sets, ", ")+` WHERE id = $1 AND status = 'pending'`, args...)
	if err != nil {
		return false, mapWriteErr(err)
	}
	return tag.RowsAffected() > 0, nil
}

// SetPhotos replaces the non-nil photo sets. With pendingOnly an approved
// trip is left untouched.
func (r *Repository) SetPhotos(ctx context.Context, id int64, pickup, dropoff []string, pendingOnly bool) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	query := `
		UPDATE trips SET
			pickup_photos = COALESCE($2::text[], pickup_photos),
			dropoff_photos = COALESCE($3::text[], dropoff_photos)
		WHERE id = $1`
	if pendingOnly {
		query += ` AND status = 'pending'`
	}
	tag, err := r.db.Exec(ctx, query, id, pickup, dropoff)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) SetCollection(ctx context.Context, id int64, collectionID *int) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, `UPDATE trips SET collection_id = $2 WHERE id = $1`, id, collectionID)
	if err != nil {
		return false, mapWriteErr(err)
	}
	return tag.RowsAffected() > 0, nil
}

// Approve moves a pending trip to approved. It reports false when the trip
// is missing or no longer pending.
func (r *Repository) Approve(ctx context.Context, id int64, by uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
		UPDATE trips SET status = 'approved', approved_by = $2, approved_at = now()
		WHERE id = $1 AND status = 'pending'`, id, by)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
