package customer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/winchzone/dashboard/internal/repo"
)

const dbTimeout = 3 * time.Second

const customerColumns = `
	id, name, contact_name, telephone, email, commercial_register_no, tax_id_no,
	commercial_register_copy_url, tax_id_copy_url, price_list_copy_url, created_by, created_at`

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Name, &c.ContactName, &c.Telephone, &c.Email,
		&c.CommercialRegisterNo, &c.TaxIDNo, &c.CommercialRegisterCopyURL,
		&c.TaxIDCopyURL, &c.PriceListCopyURL, &c.CreatedBy, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, repo.ErrNotFound
	}
	return c, err
}

// List returns every customer, newest first.
func (r *Repository) List(ctx context.Context) ([]Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) Insert(ctx context.Context, f Fields, createdBy uuid.UUID) (uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var id uuid.UUID
	err := r.db.QueryRow(ctx, `
		INSERT INTO customers (name, contact_name, telephone, email, commercial_register_no, tax_id_no, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		f.Name, nullable(f.ContactName), nullable(f.Telephone), nullable(f.Email),
		nullable(f.CommercialRegisterNo), nullable(f.TaxIDNo), createdBy).Scan(&id)
	return id, err
}

func (r *Repository) SetDocs(ctx context.Context, id uuid.UUID, d Docs) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		UPDATE customers SET
			commercial_register_copy_url = $2,
			tax_id_copy_url = $3,
			price_list_copy_url = $4
		WHERE id = $1`, id, d.CommercialRegister, d.TaxID, d.PriceList)
	return err
}

// Update sets the non-nil members of p. Empty strings are stored as null.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, p Patch) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	args := []any{id}
	var sets []string
	add := func(column string, value *string, clearable bool) {
		if value == nil {
			return
		}
		if clearable {
			args = append(args, nullable(*value))
		} else {
			args = append(args, *value)
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("name", p.Name, false)
	add("contact_name", p.ContactName, true)
	add("telephone", p.Telephone, true)
	add("email", p.Email, true)
	add("commercial_register_no", p.CommercialRegisterNo, true)
	add("tax_id_no", p.TaxIDNo, true)
	if len(sets) == 0 {
		// Nothing to change; still report a missing row.
		sets = append(sets, "name = name")
	}

	tag, err := r.db.Exec(ctx, `UPDATE customers SET `+strings.Join(sets, ", ")+` WHERE id = $1`, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}
