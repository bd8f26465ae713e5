package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	ordererrors "github.com/avargas/gestock/internal/order/errors"
	perrors "github.com/avargas/gestock/internal/product/errors"
	pstore "github.com/avargas/gestock/internal/product/store"
	"github.com/google/uuid"
)

// inMemory implements OrderStore using an in-memory map, delegating stock
// mutations to the given ProductStore. It backs unit tests and local
// development without a database. Check-then-decrement sequences are atomic
// only with respect to this store's own mutex; callers serialize sweeps.
type inMemory struct {
	mu       sync.RWMutex
	orders   map[uuid.UUID]Order
	products pstore.ProductStore
}

// NewInMemoryStore creates a new instance of OrderStore backed by the given
// product store.
func NewInMemoryStore(products pstore.ProductStore) OrderStore {
	return &inMemory{
		orders:   make(map[uuid.UUID]Order),
		products: products,
	}
}

func (s *inMemory) FindByID(_ context.Context, id uuid.UUID) (*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, ordererrors.ErrOrderNotFound
	}
	o.Items = append([]OrderItem(nil), o.Items...)
	return &o, nil
}

func (s *inMemory) FindAll(_ context.Context, offset, limit int32) ([]Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.sorted(func(o Order) bool { return true })
	// Newest first for listings.
	sort.Slice(list, func(i, j int) bool { return list[i].RequestedAt.After(list[j].RequestedAt) })
	if int(offset) >= len(list) {
		return []Order{}, nil
	}
	end := int(offset) + int(limit)
	if end > len(list) {
		end = len(list)
	}
	return list[offset:end], nil
}

func (s *inMemory) FindByStatus(_ context.Context, status Status, offset, limit int32) ([]Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.sorted(func(o Order) bool { return o.Status == status })
	if int(offset) >= len(list) {
		return []Order{}, nil
	}
	list = list[offset:]
	if limit > 0 && int(limit) < len(list) {
		list = list[:limit]
	}
	return list, nil
}

func (s *inMemory) FindPendingByProduct(_ context.Context, productID uuid.UUID) ([]Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sorted(func(o Order) bool {
		if o.Status != StatusPending {
			return false
		}
		for _, item := range o.Items {
			if item.ProductID == productID {
				return true
			}
		}
		return false
	}), nil
}

func (s *inMemory) Create(ctx context.Context, customerID uuid.UUID, items []ItemParams) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	totals := aggregateItems(items)
	status := StatusPending
	if s.covered(ctx, totals) {
		status = StatusAvailable
		for _, item := range totals {
			if err := s.products.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
				return nil, err
			}
		}
	}

	o := Order{
		ID:          uuid.New(),
		CustomerID:  customerID,
		Status:      status,
		RequestedAt: time.Now(),
		Version:     1,
	}
	o.Items = make([]OrderItem, len(items))
	for i, item := range items {
		o.Items[i] = OrderItem{
			ID:        uuid.New(),
			OrderID:   o.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		}
	}
	s.orders[o.ID] = o
	return &o, nil
}

func (s *inMemory) MarkAvailable(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return ordererrors.ErrOrderNotFound
	}
	if o.Status != StatusPending {
		return ordererrors.ErrOrderNotPending
	}

	totals := itemTotals(o.Items)
	for _, item := range totals {
		p, err := s.products.FindByID(ctx, item.ProductID)
		if err != nil {
			return err
		}
		if p.Stock < item.Quantity {
			return perrors.ErrInsufficientStock
		}
	}
	for _, item := range totals {
		if err := s.products.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}

	o.Status = StatusAvailable
	o.Version++
	s.orders[id] = o
	return nil
}

func (s *inMemory) Deliver(ctx context.Context, id uuid.UUID, version int32) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, ordererrors.ErrOrderNotFound
	}
	if o.Version != version {
		return nil, ordererrors.ErrOptimisticLock
	}
	if !CanTransition(o.Status, StatusDelivered) {
		return nil, ordererrors.ErrInvalidTransition
	}

	if o.Status == StatusPending {
		for _, item := range itemTotals(o.Items) {
			err := s.products.DecrementStockFloor(ctx, item.ProductID, item.Quantity)
			if err != nil && !errors.Is(err, perrors.ErrProductNotFound) {
				return nil, err
			}
		}
	}

	o.Status = StatusDelivered
	o.Version++
	s.orders[id] = o
	return &o, nil
}

func (s *inMemory) DeleteByID(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[id]; !ok {
		return ordererrors.ErrOrderNotFound
	}
	delete(s.orders, id)
	return nil
}

// covered reports whether every line item is satisfiable by current stock.
// A missing product can never be covered.
func (s *inMemory) covered(ctx context.Context, items []ItemParams) bool {
	for _, item := range items {
		p, err := s.products.FindByID(ctx, item.ProductID)
		if err != nil || p.Stock < item.Quantity {
			return false
		}
	}
	return true
}

// sorted returns matching orders by request date ascending.
func (s *inMemory) sorted(match func(Order) bool) []Order {
	list := make([]Order, 0)
	for _, o := range s.orders {
		if match(o) {
			o.Items = append([]OrderItem(nil), o.Items...)
			list = append(list, o)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].RequestedAt.Before(list[j].RequestedAt) })
	return list
}
