package store

import (
	"context"
	"sync"
	"time"

	perrors "github.com/avargas/gestock/internal/product/errors"
	"github.com/google/uuid"
)

// inMemory implements ProductStore using an in-memory map. It backs unit
// tests and local development without a database.
type inMemory struct {
	mu       sync.RWMutex
	products map[uuid.UUID]Product
}

// NewInMemoryStore creates a new instance of ProductStore.
func NewInMemoryStore() ProductStore {
	return &inMemory{products: make(map[uuid.UUID]Product)}
}

func (s *inMemory) FindByID(_ context.Context, id uuid.UUID) (*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, perrors.ErrProductNotFound
	}
	return &p, nil
}

func (s *inMemory) FindAll(_ context.Context, offset, limit int32) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		list = append(list, p)
	}
	if int(offset) >= len(list) {
		return []Product{}, nil
	}
	end := int(offset) + int(limit)
	if end > len(list) {
		end = len(list)
	}
	return list[offset:end], nil
}

func (s *inMemory) Create(_ context.Context, name, description string, price int64, stock int32) (*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := Product{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		Price:       price,
		Stock:       stock,
		Version:     1,
		CreatedAt:   time.Now(),
	}
	s.products[p.ID] = p
	return &p, nil
}

func (s *inMemory) Update(_ context.Context, id uuid.UUID, name, description string, price int64, stock int32, version int32) (*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok || p.Version != version {
		return nil, perrors.ErrProductNotFound
	}
	p.Name = name
	p.Description = description
	p.Price = price
	p.Stock = stock
	p.Version++
	s.products[id] = p
	return &p, nil
}

func (s *inMemory) UpdateStock(_ context.Context, id uuid.UUID, stock int32, version int32) (*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok || p.Version != version {
		return nil, perrors.ErrProductNotFound
	}
	p.Stock = stock
	p.Version++
	s.products[id] = p
	return &p, nil
}

func (s *inMemory) DecrementStock(_ context.Context, id uuid.UUID, quantity int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return perrors.ErrProductNotFound
	}
	if p.Stock < quantity {
		return perrors.ErrInsufficientStock
	}
	p.Stock -= quantity
	p.Version++
	s.products[id] = p
	return nil
}

func (s *inMemory) DecrementStockFloor(_ context.Context, id uuid.UUID, quantity int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return perrors.ErrProductNotFound
	}
	p.Stock -= quantity
	if p.Stock < 0 {
		p.Stock = 0
	}
	p.Version++
	s.products[id] = p
	return nil
}

func (s *inMemory) DeleteByID(_ context.Context, id uuid.UUID, version int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok || p.Version != version {
		return perrors.ErrProductNotFound
	}
	delete(s.products, id)
	return nil
}
