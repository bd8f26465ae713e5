// Package service provides the implementation of customer-related business logic.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/avargas/gestock/internal/customer/store"
	"github.com/google/uuid"
)

// CustomerService defines the methods for managing customers.
type CustomerService interface {
	// FindByID retrieves a single customer by its unique identifier.
	// Returns ErrCustomerNotFound if no customer exists with the given ID.
	FindByID(ctx context.Context, id uuid.UUID) (*CustomerDto, error)

	// FindAll returns customers with pagination support.
	FindAll(ctx context.Context, offset, limit int32) ([]CustomerDto, error)

	// Create adds a new customer to the system.
	Create(ctx context.Context, customer CustomerCreateDto) (*CustomerDto, error)

	// Update modifies an existing customer's details.
	// Returns ErrCustomerNotFound if no customer exists with the given ID.
	Update(ctx context.Context, customer CustomerDto) (*CustomerDto, error)

	// DeleteByID removes a customer by its ID.
	// Returns ErrCustomerNotFound if no customer exists with the given ID.
	DeleteByID(ctx context.Context, id uuid.UUID) error
}

// Service implements CustomerService and provides methods to manage customers.
type Service struct {
	repository store.CustomerStore
}

// NewService creates a new instance of CustomerService with the provided repository.
func NewService(repo store.CustomerStore) *Service {
	return &Service{repository: repo}
}

// CustomerCreateDto represents the data transfer object for creating a new customer.
type CustomerCreateDto struct {
	Name  string `json:"name"  validate:"required,max=100"`
	Phone string `json:"phone" validate:"required,max=20"`
	Email string `json:"email" validate:"required,email,max=100"`
}

// CustomerDto represents the data transfer object for a customer.
type CustomerDto struct {
	ID           string `json:"id"`
	Name         string `json:"name"  validate:"required,max=100"`
	Phone        string `json:"phone" validate:"required,max=20"`
	Email        string `json:"email" validate:"required,email,max=100"`
	RegisteredAt string `json:"registered_at"`
}

func (s *Service) FindByID(ctx context.Context, id uuid.UUID) (*CustomerDto, error) {
	customer, err := s.repository.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch customer by ID %s: %w", id, err)
	}
	return toDto(customer), nil
}

func (s *Service) FindAll(ctx context.Context, offset, limit int32) ([]CustomerDto, error) {
	customers, err := s.repository.FindAll(ctx, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch customers: %w", err)
	}
	customerDTOs := make([]CustomerDto, len(customers))
	for i, c := range customers {
		customerDTOs[i] = *toDto(&c)
	}
	return customerDTOs, nil
}

func (s *Service) Create(ctx context.Context, customer CustomerCreateDto) (*CustomerDto, error) {
	c, err := s.repository.Create(ctx, customer.Name, customer.Phone, customer.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}
	return toDto(c), nil
}

func (s *Service) Update(ctx context.Context, customer CustomerDto) (*CustomerDto, error) {
	updated, err := s.repository.Update(ctx, uuid.MustParse(customer.ID), customer.Name, customer.Phone, customer.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to update customer with ID %s: %w", customer.ID, err)
	}
	return toDto(updated), nil
}

func (s *Service) DeleteByID(ctx context.Context, id uuid.UUID) error {
	return s.repository.DeleteByID(ctx, id)
}

// toDto converts a store.Customer to a CustomerDto.
func toDto(customer *store.Customer) *CustomerDto {
	return &CustomerDto{
		ID:           customer.ID.String(),
		Name:         customer.Name,
		Phone:        customer.Phone,
		Email:        customer.Email,
		RegisteredAt: customer.RegisteredAt.Format(time.RFC3339),
	}
}
