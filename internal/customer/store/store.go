// Package store provides an interface for customer storage operations.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Customer represents a customer record. Customers have an independent
// lifecycle: orders reference them by id but never own them.
type Customer struct {
	ID           uuid.UUID
	Name         string
	Phone        string
	Email        string
	RegisteredAt time.Time
}

// CustomerStore is an interface for customer storage operations.
// It abstracts the underlying data store, allowing for different implementations (e.g., in-memory, database).
type CustomerStore interface {
	// FindByID retrieves a single customer by its unique identifier.
	// Returns ErrCustomerNotFound if no customer exists with the given ID.
	FindByID(ctx context.Context, id uuid.UUID) (*Customer, error)

	// FindAll returns customers with pagination support.
	// Returns an empty slice if no customers exist.
	FindAll(ctx context.Context, offset, limit int32) ([]Customer, error)

	// Create adds a new customer to the system.
	Create(ctx context.Context, name, phone, email string) (*Customer, error)

	// Update modifies an existing customer's details.
	// Returns ErrCustomerNotFound if no customer exists with the given ID.
	Update(ctx context.Context, id uuid.UUID, name, phone, email string) (*Customer, error)

	// DeleteByID removes a customer by its ID.
	// Returns ErrCustomerNotFound if no customer exists with the given ID.
	DeleteByID(ctx context.Context, id uuid.UUID) error
}
