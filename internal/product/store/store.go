// Package store provides an interface for product storage operations.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Product represents a product entity in the store. Stock is the number of
// units currently on hand; it is mutated by stock updates, by order
// reservations and by deliveries, and never goes negative.
type Product struct {
	ID          uuid.UUID
	Name        string
	Description string
	Price       int64 // Price in cents
	Stock       int32
	Version     int32
	CreatedAt   time.Time
}

// ProductStore is an interface for product storage operations.
// It abstracts the underlying data store, allowing for different implementations (e.g., in-memory, database).
type ProductStore interface {
	// FindByID retrieves a single product by its unique identifier.
	// Returns ErrProductNotFound if no product exists with the given ID.
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)

	// FindAll returns products with pagination support.
	// Returns an empty slice if no products exist.
	FindAll(ctx context.Context, offset, limit int32) ([]Product, error)

	// Create adds a new product to the system.
	Create(ctx context.Context, name, description string, price int64, stock int32) (*Product, error)

	// Update modifies an existing product's details.
	// Returns ErrProductNotFound if no product exists with the given ID and version.
	Update(ctx context.Context, id uuid.UUID, name, description string, price int64, stock int32, version int32) (*Product, error)

	// UpdateStock sets the stock quantity of a product to exactly the given
	// value. Returns ErrProductNotFound if no product exists with the given
	// ID and version.
	UpdateStock(ctx context.Context, id uuid.UUID, stock int32, version int32) (*Product, error)

	// DecrementStock atomically subtracts quantity from the product's stock.
	// Returns ErrInsufficientStock if fewer than quantity units remain and
	// ErrProductNotFound if the product does not exist.
	DecrementStock(ctx context.Context, id uuid.UUID, quantity int32) error

	// DecrementStockFloor subtracts quantity from the product's stock,
	// flooring the result at zero. The shortfall, if any, is absorbed
	// silently. Returns ErrProductNotFound if the product does not exist.
	DecrementStockFloor(ctx context.Context, id uuid.UUID, quantity int32) error

	// DeleteByID removes a product by its ID.
	// Returns ErrProductNotFound if no product exists with the given ID and version.
	DeleteByID(ctx context.Context, id uuid.UUID, version int32) error
}
