// Package service provides the implementation of product-related business logic.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avargas/gestock/internal/product/store"
	"github.com/avargas/gestock/internal/reconcile"
	"github.com/google/uuid"
)

// ProductService defines the methods for managing products.
// It abstracts the underlying business logic and data access.
type ProductService interface {
	// FindByID retrieves a single product by its unique identifier.
	// Returns ErrProductNotFound if no product exists with the given ID.
	FindByID(ctx context.Context, id uuid.UUID) (*ProductDto, error)

	// FindAll returns all available products.
	// Returns an empty slice if no products exist.
	FindAll(ctx context.Context, offset, limit int32) ([]ProductDto, error)

	// Create adds a new product to the system.
	Create(ctx context.Context, product ProductCreateDto) (*ProductDto, error)

	// Update modifies an existing product's details.
	// Returns ErrProductNotFound if no product exists with the given ID and version.
	Update(ctx context.Context, product ProductDto) (*ProductDto, error)

	// UpdateStock sets the stock quantity of a product and runs the targeted
	// reconciliation sweep for it. Returns the updated product together with
	// the pending orders the new stock level satisfied.
	// Returns ErrProductNotFound if no product exists with the given ID and version.
	UpdateStock(ctx context.Context, id uuid.UUID, stock int32, version int32) (*StockUpdateResultDto, error)

	// DeleteByID removes a product by its ID.
	// Returns ErrProductNotFound if no product exists with the given ID.
	DeleteByID(ctx context.Context, id uuid.UUID, version int32) error
}

// Service implements ProductService and provides methods to manage products.
type Service struct {
	repository store.ProductStore
	engine     *reconcile.Engine
	logger     *slog.Logger
}

// NewService creates a new instance of ProductService with the provided
// repository and reconciliation engine.
func NewService(repo store.ProductStore, engine *reconcile.Engine, logger *slog.Logger) *Service {
	return &Service{
		repository: repo,
		engine:     engine,
		logger:     logger,
	}
}

// ProductCreateDto represents the data transfer object for creating a new product.
type ProductCreateDto struct {
	Name        string `json:"name"        validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
	Price       int64  `json:"price"       validate:"min=0"`
	Stock       int32  `json:"stock"       validate:"min=0"`
}

// ProductDto represents the data transfer object for a product.
// Version is read-only and used for optimistic concurrency control.
type ProductDto struct {
	ID          string `json:"id"`
	Name        string `json:"name"        validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
	Price       int64  `json:"price"       validate:"min=0"`
	Stock       int32  `json:"stock"       validate:"min=0"`
	Version     int32  `json:"version"     validate:"required,min=1"`
}

// StockUpdateDto represents the data transfer object for updating product stock.
type StockUpdateDto struct {
	Stock   int32 `json:"stock"   validate:"min=0"`
	Version int32 `json:"version" validate:"required,min=1"`
}

// SatisfiedOrderDto summarizes an order that became available because of a
// stock update.
type SatisfiedOrderDto struct {
	OrderID      string `json:"order_id"`
	CustomerID   string `json:"customer_id"`
	CustomerName string `json:"customer_name,omitempty"`
	RequestedAt  string `json:"requested_at"`
}

// StockUpdateResultDto is the outcome of a stock update: the product with its
// new stock level and the pending orders that were satisfied by it.
type StockUpdateResultDto struct {
	Product         ProductDto          `json:"product"`
	SatisfiedOrders []SatisfiedOrderDto `json:"satisfied_orders"`
}

// FindByID retrieves a product by its ID and returns it as a ProductDto.
func (s *Service) FindByID(ctx context.Context, id uuid.UUID) (*ProductDto, error) {
	product, err := s.repository.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch product by ID %s: %w", id, err)
	}
	return toDto(product), nil
}

// FindAll retrieves a list of all products and returns them as ProductDTOs.
func (s *Service) FindAll(ctx context.Context, offset, limit int32) ([]ProductDto, error) {
	products, err := s.repository.FindAll(ctx, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch products: %w", err)
	}
	productDTOs := make([]ProductDto, len(products))
	for i, item := range products {
		productDTOs[i] = *toDto(&item)
	}
	return productDTOs, nil
}

// Create creates a new product and returns it as a ProductDto.
func (s *Service) Create(ctx context.Context, product ProductCreateDto) (*ProductDto, error) {
	p, err := s.repository.Create(ctx, product.Name, product.Description, product.Price, product.Stock)
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return toDto(p), nil
}

// Update modifies an existing product's details and returns the updated product as a ProductDto.
func (s *Service) Update(ctx context.Context, product ProductDto) (*ProductDto, error) {
	updated, err := s.repository.Update(
		ctx,
		uuid.MustParse(product.ID),
		product.Name,
		product.Description,
		product.Price,
		product.Stock,
		product.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to update product with ID %s: %w", product.ID, err)
	}
	return toDto(updated), nil
}

// UpdateStock sets the stock of a product and immediately reconciles pending
// orders that reference it. Reconciliation failures do not roll back the
// stock update; they are reported to the caller.
func (s *Service) UpdateStock(ctx context.Context, id uuid.UUID, stock int32, version int32) (*StockUpdateResultDto, error) {
	product, err := s.repository.UpdateStock(ctx, id, stock, version)
	if err != nil {
		return nil, fmt.Errorf("failed to update stock for product with ID %s: %w", id, err)
	}

	transitions, err := s.engine.SweepProduct(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("stock updated but reconciliation failed for product %s: %w", id, err)
	}
	if len(transitions) > 0 {
		// The sweep may have consumed part of the stock we just set.
		product, err = s.repository.FindByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to re-read product %s after reconciliation: %w", id, err)
		}
		s.logger.InfoContext(ctx, "Stock update satisfied pending orders",
			"product_id", id, "orders", len(transitions))
	}

	satisfied := make([]SatisfiedOrderDto, len(transitions))
	for i, tr := range transitions {
		satisfied[i] = toSatisfiedDto(tr)
	}
	return &StockUpdateResultDto{Product: *toDto(product), SatisfiedOrders: satisfied}, nil
}

// DeleteByID deletes a product by its ID.
func (s *Service) DeleteByID(ctx context.Context, id uuid.UUID, version int32) error {
	return s.repository.DeleteByID(ctx, id, version)
}

// toDto converts a store.Product to a ProductDto.
func toDto(product *store.Product) *ProductDto {
	return &ProductDto{
		ID:          product.ID.String(),
		Name:        product.Name,
		Description: product.Description,
		Price:       product.Price,
		Stock:       product.Stock,
		Version:     product.Version,
	}
}

func toSatisfiedDto(tr reconcile.Transition) SatisfiedOrderDto {
	dto := SatisfiedOrderDto{
		OrderID:     tr.Order.ID.String(),
		CustomerID:  tr.Order.CustomerID.String(),
		RequestedAt: tr.Order.RequestedAt.Format(time.RFC3339),
	}
	if tr.Customer != nil {
		dto.CustomerName = tr.Customer.Name
	}
	return dto
}
