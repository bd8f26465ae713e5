// Package reconcile implements the stock-allocation engine: it matches
// available stock against pending orders and advances order states.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	cerrors "github.com/avargas/gestock/internal/customer/errors"
	cstore "github.com/avargas/gestock/internal/customer/store"
	ordererrors "github.com/avargas/gestock/internal/order/errors"
	ostore "github.com/avargas/gestock/internal/order/store"
	perrors "github.com/avargas/gestock/internal/product/errors"
	"github.com/avargas/gestock/pkg/messaging"
	"github.com/avargas/gestock/pkg/messaging/events"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Transition records one order that moved from PENDING to AVAILABLE during a
// sweep. Customer is nil when the referenced customer no longer exists; the
// order is allocated regardless.
type Transition struct {
	Order    ostore.Order
	Customer *cstore.Customer
}

// Engine evaluates pending orders against current stock. Each order is
// all-or-nothing: it becomes AVAILABLE only when every line item is covered,
// and that transition reserves (decrements) stock for all its line items
// exactly once. Orders are evaluated strictly by request date ascending and
// remaining stock is re-read after each allocation, so earlier customers are
// served first when stock is scarce.
//
// A mutex serializes sweeps: two concurrent sweeps racing on the same
// product could otherwise both observe the same stock before either
// decrements it.
type Engine struct {
	orders     ostore.OrderStore
	customers  cstore.CustomerStore
	publisher  messaging.Publisher
	logger     *slog.Logger
	reconciled metric.Int64Counter
	mu         sync.Mutex
}

// NewEngine creates a reconciliation engine. The publisher may be nil, in
// which case transitions are only returned to the caller.
func NewEngine(orders ostore.OrderStore, customers cstore.CustomerStore, publisher messaging.Publisher, logger *slog.Logger) *Engine {
	meter := otel.Meter("gestock")
	reconciled, err := meter.Int64Counter("orders_reconciled",
		metric.WithDescription("Total number of orders transitioned to AVAILABLE by reconciliation"))
	if err != nil {
		panic(fmt.Sprintf("failed to create orders_reconciled counter: %v", err))
	}
	return &Engine{
		orders:     orders,
		customers:  customers,
		publisher:  publisher,
		logger:     logger.With("component", "reconcile"),
		reconciled: reconciled,
	}
}

// Sweep re-checks every pending order against current stock and returns the
// orders that transitioned to AVAILABLE. Running it twice with no intervening
// stock change yields no transitions on the second run.
func (e *Engine) Sweep(ctx context.Context) ([]Transition, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	candidates, err := e.orders.FindByStatus(ctx, ostore.StatusPending, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending orders: %w", err)
	}
	return e.allocate(ctx, candidates)
}

// SweepProduct re-checks the pending orders that reference the given product,
// oldest request first. Every line item of a candidate order is checked, not
// just the one matching the product.
func (e *Engine) SweepProduct(ctx context.Context, productID uuid.UUID) ([]Transition, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	candidates, err := e.orders.FindPendingByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending orders for product %s: %w", productID, err)
	}
	return e.allocate(ctx, candidates)
}

// allocate walks the candidates in the order given (request date ascending)
// and attempts the reservation transition on each one independently: an
// earlier order that cannot be satisfied does not block a later one whose
// smaller request still fits the remaining stock.
func (e *Engine) allocate(ctx context.Context, candidates []ostore.Order) ([]Transition, error) {
	transitions := make([]Transition, 0)

	for _, o := range candidates {
		err := e.orders.MarkAvailable(ctx, o.ID)
		switch {
		case err == nil:
			o.Status = ostore.StatusAvailable
			customer, cErr := e.lookupCustomer(ctx, o.CustomerID)
			if cErr != nil {
				return transitions, cErr
			}
			transitions = append(transitions, Transition{Order: o, Customer: customer})

		case errors.Is(err, perrors.ErrInsufficientStock),
			errors.Is(err, perrors.ErrProductNotFound),
			errors.Is(err, ordererrors.ErrOrderNotPending),
			errors.Is(err, ordererrors.ErrOrderNotFound):
			// Not satisfiable right now; leave the order as is and move on.
			e.logger.DebugContext(ctx, "Order not satisfiable", "order_id", o.ID, "reason", err)

		default:
			// Persistence failure: abort, keeping transitions already applied.
			return transitions, fmt.Errorf("reconciliation aborted at order %s: %w", o.ID, err)
		}
	}

	if len(transitions) > 0 {
		e.reconciled.Add(ctx, int64(len(transitions)))
		e.notify(ctx, transitions)
	}
	return transitions, nil
}

// lookupCustomer resolves the optional customer reference. A missing customer
// is not a failure; the order is still processed for stock purposes.
func (e *Engine) lookupCustomer(ctx context.Context, id uuid.UUID) (*cstore.Customer, error) {
	customer, err := e.customers.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, cerrors.ErrCustomerNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch customer %s: %w", id, err)
	}
	return customer, nil
}

// notify publishes the transitions for user-facing display. The sink is
// purely informational: publish failures are logged, never propagated.
func (e *Engine) notify(ctx context.Context, transitions []Transition) {
	if e.publisher == nil {
		return
	}
	event := events.OrdersAvailableEvent{
		Orders:     make([]events.AvailableOrder, len(transitions)),
		OccurredAt: time.Now(),
	}
	for i, tr := range transitions {
		event.Orders[i] = events.AvailableOrder{
			OrderID:     tr.Order.ID,
			CustomerID:  tr.Order.CustomerID,
			RequestedAt: tr.Order.RequestedAt,
		}
		if tr.Customer != nil {
			event.Orders[i].CustomerName = tr.Customer.Name
		}
	}
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.ErrorContext(ctx, "Failed to publish OrdersAvailableEvent", "error", err)
	}
}
