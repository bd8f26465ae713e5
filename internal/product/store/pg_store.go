package store

import (
	"context"
	"errors"
	"fmt"

	perrors "github.com/avargas/gestock/internal/product/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore implements ProductStore using PostgreSQL as the data store.
type PgStore struct {
	db *pgxpool.Pool
}

// NewPgStore creates a new instance of ProductStore using a PostgreSQL connection pool.
func NewPgStore(dbp *pgxpool.Pool) *PgStore {
	return &PgStore{db: dbp}
}

const productColumns = `id, name, description, price, stock, version, created_at`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Version, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// FindByID retrieves a product by its unique identifier.
// Returns ErrProductNotFound if no product exists with the given ID.
func (p *PgStore) FindByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	row := p.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, perrors.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}
	return product, nil
}

// FindAll retrieves all available products with pagination support.
func (p *PgStore) FindAll(ctx context.Context, offset, limit int32) ([]Product, error) {
	rows, err := p.db.Query(ctx,
		`SELECT `+productColumns+` FROM products ORDER BY created_at DESC OFFSET $1 LIMIT $2`,
		offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find all products: %w", err)
	}
	defer rows.Close()

	products := make([]Product, 0)
	for rows.Next() {
		var pr Product
		if err := rows.Scan(&pr.ID, &pr.Name, &pr.Description, &pr.Price, &pr.Stock, &pr.Version, &pr.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, pr)
	}
	return products, rows.Err()
}

// Create adds a new product to the system.
func (p *PgStore) Create(ctx context.Context, name, description string, price int64, stock int32) (*Product, error) {
	row := p.db.QueryRow(ctx,
		`INSERT INTO products (name, description, price, stock) VALUES ($1, $2, $3, $4) RETURNING `+productColumns,
		name, description, price, stock)
	product, err := scanProduct(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return product, nil
}

// Update modifies an existing product's details.
// Returns ErrProductNotFound if no product exists with the given ID and version.
func (p *PgStore) Update(ctx context.Context, id uuid.UUID, name, description string, price int64, stock int32, version int32) (*Product, error) {
	row := p.db.QueryRow(ctx,
		`UPDATE products
		    SET name = $2, description = $3, price = $4, stock = $5, version = version + 1
		  WHERE id = $1 AND version = $6
		RETURNING `+productColumns,
		id, name, description, price, stock, version)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, perrors.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return product, nil
}

// UpdateStock sets the stock quantity of a product to exactly the given value.
// Returns ErrProductNotFound if no product exists with the given ID and version.
func (p *PgStore) UpdateStock(ctx context.Context, id uuid.UUID, stock int32, version int32) (*Product, error) {
	row := p.db.QueryRow(ctx,
		`UPDATE products SET stock = $2, version = version + 1 WHERE id = $1 AND version = $3 RETURNING `+productColumns,
		id, stock, version)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, perrors.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to update product stock: %w", err)
	}
	return product, nil
}

// DecrementStock atomically subtracts quantity from the product's stock.
// The conditional update guarantees stock never goes negative.
func (p *PgStore) DecrementStock(ctx context.Context, id uuid.UUID, quantity int32) error {
	ct, err := p.db.Exec(ctx,
		`UPDATE products SET stock = stock - $2, version = version + 1 WHERE id = $1 AND stock >= $2`,
		id, quantity)
	if err != nil {
		return fmt.Errorf("failed to decrement product stock: %w", err)
	}
	if ct.RowsAffected() == 0 {
		if _, err := p.FindByID(ctx, id); err != nil {
			return err
		}
		return perrors.ErrInsufficientStock
	}
	return nil
}

// DecrementStockFloor subtracts quantity from the product's stock, flooring at zero.
func (p *PgStore) DecrementStockFloor(ctx context.Context, id uuid.UUID, quantity int32) error {
	ct, err := p.db.Exec(ctx,
		`UPDATE products SET stock = GREATEST(stock - $2, 0), version = version + 1 WHERE id = $1`,
		id, quantity)
	if err != nil {
		return fmt.Errorf("failed to decrement product stock: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return perrors.ErrProductNotFound
	}
	return nil
}

// DeleteByID removes a product by its unique identifier.
// Returns ErrProductNotFound if no product exists with the given ID and version.
func (p *PgStore) DeleteByID(ctx context.Context, id uuid.UUID, version int32) error {
	ct, err := p.db.Exec(ctx, `DELETE FROM products WHERE id = $1 AND version = $2`, id, version)
	if err != nil {
		return fmt.Errorf("failed to delete product by ID: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return perrors.ErrProductNotFound
	}
	return nil
}
