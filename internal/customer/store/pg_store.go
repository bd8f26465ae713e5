package store

import (
	"context"
	"errors"
	"fmt"

	cerrors "github.com/avargas/gestock/internal/customer/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore implements CustomerStore using PostgreSQL as the data store.
type PgStore struct {
	db *pgxpool.Pool
}

// NewPgStore creates a new instance of CustomerStore using a PostgreSQL connection pool.
func NewPgStore(dbp *pgxpool.Pool) *PgStore {
	return &PgStore{db: dbp}
}

const customerColumns = `id, name, phone, email, registered_at`

func scanCustomer(row pgx.Row) (*Customer, error) {
	var c Customer
	if err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.RegisteredAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (p *PgStore) FindByID(ctx context.Context, id uuid.UUID) (*Customer, error) {
	row := p.db.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)
	customer, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cerrors.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("failed to find customer by ID: %w", err)
	}
	return customer, nil
}

func (p *PgStore) FindAll(ctx context.Context, offset, limit int32) ([]Customer, error) {
	rows, err := p.db.Query(ctx,
		`SELECT `+customerColumns+` FROM customers ORDER BY registered_at DESC OFFSET $1 LIMIT $2`,
		offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find all customers: %w", err)
	}
	defer rows.Close()

	customers := make([]Customer, 0)
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.RegisteredAt); err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (p *PgStore) Create(ctx context.Context, name, phone, email string) (*Customer, error) {
	row := p.db.QueryRow(ctx,
		`INSERT INTO customers (name, phone, email) VALUES ($1, $2, $3) RETURNING `+customerColumns,
		name, phone, email)
	customer, err := scanCustomer(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}
	return customer, nil
}

func (p *PgStore) Update(ctx context.Context, id uuid.UUID, name, phone, email string) (*Customer, error) {
	row := p.db.QueryRow(ctx,
		`UPDATE customers SET name = $2, phone = $3, email = $4 WHERE id = $1 RETURNING `+customerColumns,
		id, name, phone, email)
	customer, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cerrors.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("failed to update customer: %w", err)
	}
	return customer, nil
}

func (p *PgStore) DeleteByID(ctx context.Context, id uuid.UUID) error {
	ct, err := p.db.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete customer by ID: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return cerrors.ErrCustomerNotFound
	}
	return nil
}
