// Package service provides the implementation of order-related business logic.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	cerrors "github.com/avargas/gestock/internal/customer/errors"
	cstore "github.com/avargas/gestock/internal/customer/store"
	ordererrors "github.com/avargas/gestock/internal/order/errors"
	"github.com/avargas/gestock/internal/order/store"
	perrors "github.com/avargas/gestock/internal/product/errors"
	pstore "github.com/avargas/gestock/internal/product/store"
	"github.com/avargas/gestock/internal/reconcile"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/google/uuid"
)

// OrderService defines the methods for managing orders.
// It abstracts the underlying business logic and data access.
type OrderService interface {
	// FindByID retrieves a single order by its unique identifier, enriched
	// with customer and product summaries where those still exist.
	// Returns ErrOrderNotFound if no order exists with the given ID.
	FindByID(ctx context.Context, id uuid.UUID) (*OrderDto, error)

	// FindAll returns orders, optionally filtered by status. Unfiltered
	// results come newest first; filtered results come oldest request first.
	FindAll(ctx context.Context, status string, offset, limit int32) (*[]OrderDto, error)

	// Create adds a new order. The initial status is computed from current
	// stock; when every line item is covered the order starts AVAILABLE and
	// the stock is reserved immediately.
	Create(ctx context.Context, order OrderCreateDto) (*OrderDto, error)

	// Deliver transitions an order to DELIVERED.
	// Returns ErrInvalidTransition if the requested status is anything else
	// or the order is already delivered.
	Deliver(ctx context.Context, id uuid.UUID, update OrderStatusUpdateDto) (*OrderDto, error)

	// Verify re-checks every pending order against current stock and returns
	// the ones that became AVAILABLE.
	Verify(ctx context.Context) (*[]AvailableOrderDto, error)

	// DeleteByID removes an order.
	// Returns ErrOrderNotFound if no order exists with the given ID.
	DeleteByID(ctx context.Context, id uuid.UUID) error
}

// Service implements OrderService and provides methods to manage orders.
type Service struct {
	orders        store.OrderStore
	customers     cstore.CustomerStore
	products      pstore.ProductStore
	engine        *reconcile.Engine
	ordersCounter metric.Int64Counter
}

// NewService creates a new instance of OrderService.
func NewService(orders store.OrderStore, customers cstore.CustomerStore, products pstore.ProductStore, engine *reconcile.Engine) *Service {
	meter := otel.Meter("gestock")
	ordersCounter, err := meter.Int64Counter("orders_created", metric.WithDescription("Total number of created orders"))
	if err != nil {
		panic(fmt.Sprintf("failed to create orders_created counter: %v", err))
	}
	return &Service{
		orders:        orders,
		customers:     customers,
		products:      products,
		engine:        engine,
		ordersCounter: ordersCounter,
	}
}

// OrderDto represents the data transfer object for an order.
// Customer is present only when the referenced customer still exists.
// Version is read-only and used for optimistic concurrency control.
type OrderDto struct {
	ID          uuid.UUID           `json:"id"`
	CustomerID  uuid.UUID           `json:"customer_id"`
	Customer    *CustomerSummaryDto `json:"customer,omitempty"`
	Status      string              `json:"status"`
	RequestedAt string              `json:"requested_at"`
	Version     int32               `json:"version"`
	Items       []OrderItemDto      `json:"items,omitempty"`
}

// OrderItemDto is one line of an order. Product is present only when the
// referenced product still exists.
type OrderItemDto struct {
	ID        uuid.UUID          `json:"id"`
	OrderID   uuid.UUID          `json:"order_id"`
	ProductID uuid.UUID          `json:"product_id"`
	Product   *ProductSummaryDto `json:"product,omitempty"`
	Quantity  int32              `json:"quantity"`
}

// CustomerSummaryDto is the customer slice embedded in an order view.
type CustomerSummaryDto struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

// ProductSummaryDto is the product slice embedded in an order line view.
type ProductSummaryDto struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Price int64     `json:"price"`
}

// OrderCreateDto represents the data transfer object for creating a new order.
type OrderCreateDto struct {
	CustomerID uuid.UUID            `json:"customer_id" validate:"required"`
	Items      []OrderItemCreateDto `json:"items" validate:"required,gt=0,dive"`
}

// OrderItemCreateDto represents the data transfer object for creating a new order item.
type OrderItemCreateDto struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int32     `json:"quantity" validate:"required,min=1"`
}

// OrderStatusUpdateDto represents the data transfer object for a status change request.
type OrderStatusUpdateDto struct {
	Status  string `json:"status" validate:"required"`
	Version int32  `json:"version" validate:"required,min=1"`
}

// AvailableOrderDto is one order satisfied by a verification run.
type AvailableOrderDto struct {
	OrderID      uuid.UUID `json:"order_id"`
	CustomerID   uuid.UUID `json:"customer_id"`
	CustomerName string    `json:"customer_name,omitempty"`
	RequestedAt  string    `json:"requested_at"`
}

// FindByID retrieves an order by its ID and returns it as an OrderDto with
// customer and product summaries resolved. References to deleted customers or
// products are simply omitted from the view.
func (s *Service) FindByID(ctx context.Context, id uuid.UUID) (*OrderDto, error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	dto := toDto(order)
	customer, err := s.customers.FindByID(ctx, order.CustomerID)
	switch {
	case err == nil:
		dto.Customer = &CustomerSummaryDto{ID: customer.ID, Name: customer.Name, Email: customer.Email}
	case !errors.Is(err, cerrors.ErrCustomerNotFound):
		return nil, err
	}

	for i, item := range order.Items {
		product, err := s.products.FindByID(ctx, item.ProductID)
		switch {
		case err == nil:
			dto.Items[i].Product = &ProductSummaryDto{ID: product.ID, Name: product.Name, Price: product.Price}
		case !errors.Is(err, perrors.ErrProductNotFound):
			return nil, err
		}
	}

	return dto, nil
}

// FindAll retrieves a list of orders and returns them as OrderDtos.
// Returns an empty slice if no orders exist or error if the retrieval fails.
func (s *Service) FindAll(ctx context.Context, status string, offset, limit int32) (*[]OrderDto, error) {
	var orders []store.Order
	var err error
	if status == "" {
		orders, err = s.orders.FindAll(ctx, offset, limit)
	} else {
		st := store.Status(status)
		if !st.Valid() {
			return nil, fmt.Errorf("unknown status %q: %w", status, ordererrors.ErrInvalidTransition)
		}
		orders, err = s.orders.FindByStatus(ctx, st, offset, limit)
	}
	if err != nil {
		return nil, err
	}

	orderDtos := make([]OrderDto, len(orders))
	for i, order := range orders {
		orderDtos[i] = *toDto(&order)
	}
	return &orderDtos, nil
}

// Create creates a new order and returns it as an OrderDto. The store decides
// the initial status atomically with the stock check.
func (s *Service) Create(ctx context.Context, order OrderCreateDto) (*OrderDto, error) {
	items := make([]store.ItemParams, len(order.Items))
	for i, item := range order.Items {
		items[i] = store.ItemParams{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	created, err := s.orders.Create(ctx, order.CustomerID, items)
	if err != nil {
		return nil, err
	}
	s.ordersCounter.Add(ctx, 1)

	return toDto(created), nil
}

// Deliver transitions an order to DELIVERED and returns the updated order.
// DELIVERED is the only status a client may request directly; AVAILABLE is
// reachable only through reconciliation.
func (s *Service) Deliver(ctx context.Context, id uuid.UUID, update OrderStatusUpdateDto) (*OrderDto, error) {
	if store.Status(update.Status) != store.StatusDelivered {
		return nil, fmt.Errorf("status %q cannot be requested directly: %w", update.Status, ordererrors.ErrInvalidTransition)
	}

	delivered, err := s.orders.Deliver(ctx, id, update.Version)
	if err != nil {
		return nil, err
	}
	return toDto(delivered), nil
}

// Verify re-checks all pending orders against current stock.
func (s *Service) Verify(ctx context.Context) (*[]AvailableOrderDto, error) {
	transitions, err := s.engine.Sweep(ctx)
	if err != nil {
		return nil, err
	}

	dtos := make([]AvailableOrderDto, len(transitions))
	for i, tr := range transitions {
		dtos[i] = AvailableOrderDto{
			OrderID:     tr.Order.ID,
			CustomerID:  tr.Order.CustomerID,
			RequestedAt: tr.Order.RequestedAt.Format(time.RFC3339),
		}
		if tr.Customer != nil {
			dtos[i].CustomerName = tr.Customer.Name
		}
	}
	return &dtos, nil
}

// DeleteByID removes an order by its ID. Stock reserved for an AVAILABLE
// order is not released; deletion is bookkeeping, not cancellation.
func (s *Service) DeleteByID(ctx context.Context, id uuid.UUID) error {
	return s.orders.DeleteByID(ctx, id)
}

// toDto converts a store.Order to an OrderDto.
func toDto(order *store.Order) *OrderDto {
	if order == nil {
		return nil
	}

	items := make([]OrderItemDto, len(order.Items))
	for i, item := range order.Items {
		items[i] = OrderItemDto{
			ID:        item.ID,
			OrderID:   item.OrderID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		}
	}

	return &OrderDto{
		ID:          order.ID,
		CustomerID:  order.CustomerID,
		Status:      string(order.Status),
		RequestedAt: order.RequestedAt.Format(time.RFC3339),
		Version:     order.Version,
		Items:       items,
	}
}
