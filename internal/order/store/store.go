// Package store provides an interface for order storage operations.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an order.
type Status string

const (
	// StatusPending means the order waits for stock; nothing is reserved.
	StatusPending Status = "PENDING"
	// StatusAvailable means stock has been reserved for every line item.
	StatusAvailable Status = "AVAILABLE"
	// StatusDelivered is terminal.
	StatusDelivered Status = "DELIVERED"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusAvailable: true, StatusDelivered: true},
	StatusAvailable: {StatusDelivered: true},
	StatusDelivered: {},
}

// CanTransition reports whether an order may move from one status to another.
// The lifecycle is monotonic: PENDING -> AVAILABLE -> DELIVERED, with a
// direct PENDING -> DELIVERED shortcut for force-delivery.
func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAvailable, StatusDelivered:
		return true
	}
	return false
}

// Order is a customer's request for one or more products. The order owns its
// line items; customer and products are weak references by id.
type Order struct {
	ID          uuid.UUID
	CustomerID  uuid.UUID
	Status      Status
	RequestedAt time.Time
	Version     int32
	Items       []OrderItem
}

// OrderItem is one (product, quantity) line of an order.
type OrderItem struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	ProductID uuid.UUID
	Quantity  int32
}

// ItemParams is the input for one line item when creating an order.
type ItemParams struct {
	ProductID uuid.UUID
	Quantity  int32
}

// aggregateItems sums quantities across line items that name the same
// product, preserving first-seen order. Coverage checks and stock decrements
// must run against these totals, once per product, or an order repeating a
// product would be checked item by item against the same stock.
func aggregateItems(items []ItemParams) []ItemParams {
	totals := make([]ItemParams, 0, len(items))
	index := make(map[uuid.UUID]int, len(items))
	for _, item := range items {
		if i, ok := index[item.ProductID]; ok {
			totals[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(totals)
		totals = append(totals, item)
	}
	return totals
}

// itemTotals aggregates stored line items into per-product totals.
func itemTotals(items []OrderItem) []ItemParams {
	params := make([]ItemParams, len(items))
	for i, item := range items {
		params[i] = ItemParams{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return aggregateItems(params)
}

// OrderStore is an interface for order storage operations. Every write that
// touches stock is semantic (Create, MarkAvailable, Deliver) so that no code
// path can reserve or consume stock twice for the same order.
type OrderStore interface {
	// FindByID retrieves a single order with its line items.
	// Returns ErrOrderNotFound if no order exists with the given ID.
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// FindAll returns orders with their line items, newest first,
	// with pagination support.
	FindAll(ctx context.Context, offset, limit int32) ([]Order, error)

	// FindByStatus returns orders in the given status with their line items,
	// sorted by request date ascending (oldest first). A limit <= 0 returns
	// every match.
	FindByStatus(ctx context.Context, status Status, offset, limit int32) ([]Order, error)

	// FindPendingByProduct returns pending orders that have a line item for
	// the given product, sorted by request date ascending (oldest first).
	FindPendingByProduct(ctx context.Context, productID uuid.UUID) ([]Order, error)

	// Create adds a new order. The store computes the initial status: the
	// order is AVAILABLE only if every line item is simultaneously covered by
	// current stock, in which case stock is decremented for every line item
	// in the same transaction (reservation); otherwise the order is PENDING
	// and stock is untouched. Line items repeating a product are checked and
	// reserved against their combined quantity.
	Create(ctx context.Context, customerID uuid.UUID, items []ItemParams) (*Order, error)

	// MarkAvailable transitions a PENDING order to AVAILABLE and decrements
	// stock for all its line items atomically, exactly once, using combined
	// per-product quantities. Returns
	// ErrInsufficientStock if any line item is not covered by current stock,
	// ErrProductNotFound if a referenced product no longer exists,
	// ErrOrderNotPending if the order is not PENDING, and ErrOrderNotFound
	// if the order does not exist. On any of these the order and all stock
	// are left untouched.
	MarkAvailable(ctx context.Context, id uuid.UUID) error

	// Deliver transitions an order to DELIVERED. A PENDING order consumes
	// stock for each line item floored at zero (force-delivery, shortfall
	// absorbed); an AVAILABLE order consumes nothing because its stock was
	// already reserved. Returns ErrInvalidTransition if the order is already
	// delivered and ErrOptimisticLock on a version mismatch.
	Deliver(ctx context.Context, id uuid.UUID, version int32) (*Order, error)

	// DeleteByID removes an order and its line items.
	// Returns ErrOrderNotFound if no order exists with the given ID.
	DeleteByID(ctx context.Context, id uuid.UUID) error
}
