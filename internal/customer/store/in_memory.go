package store

import (
	"context"
	"sync"
	"time"

	cerrors "github.com/avargas/gestock/internal/customer/errors"
	"github.com/google/uuid"
)

// inMemory implements CustomerStore using an in-memory map. It backs unit
// tests and local development without a database.
type inMemory struct {
	mu        sync.RWMutex
	customers map[uuid.UUID]Customer
}

// NewInMemoryStore creates a new instance of CustomerStore.
func NewInMemoryStore() CustomerStore {
	return &inMemory{customers: make(map[uuid.UUID]Customer)}
}

func (s *inMemory) FindByID(_ context.Context, id uuid.UUID) (*Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, cerrors.ErrCustomerNotFound
	}
	return &c, nil
}

func (s *inMemory) FindAll(_ context.Context, offset, limit int32) ([]Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]Customer, 0, len(s.customers))
	for _, c := range s.customers {
		list = append(list, c)
	}
	return paginate(list, offset, limit), nil
}

func (s *inMemory) Create(_ context.Context, name, phone, email string) (*Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := Customer{
		ID:           uuid.New(),
		Name:         name,
		Phone:        phone,
		Email:        email,
		RegisteredAt: time.Now(),
	}
	s.customers[c.ID] = c
	return &c, nil
}

func (s *inMemory) Update(_ context.Context, id uuid.UUID, name, phone, email string) (*Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, cerrors.ErrCustomerNotFound
	}
	c.Name = name
	c.Phone = phone
	c.Email = email
	s.customers[id] = c
	return &c, nil
}

func (s *inMemory) DeleteByID(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[id]; !ok {
		return cerrors.ErrCustomerNotFound
	}
	delete(s.customers, id)
	return nil
}

func paginate(list []Customer, offset, limit int32) []Customer {
	if int(offset) >= len(list) {
		return []Customer{}
	}
	end := int(offset) + int(limit)
	if end > len(list) {
		end = len(list)
	}
	return list[offset:end]
}
