package rest

import (
	"errors"
	"fmt"
	"net/http"

	customererrors "github.com/avargas/gestock/internal/customer/errors"
	"github.com/avargas/gestock/internal/customer/service"
	"github.com/avargas/gestock/pkg/web"
)

// FindCustomerByID retrieves a customer by its ID.
func (h *Handler) FindCustomerByID(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}

	found, err := h.customers.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, customererrors.ErrCustomerNotFound) {
			mLogger.WarnContext(r.Context(), "Customer not found", "ID", id)
			web.RespondError(w, mLogger, http.StatusNotFound, fmt.Sprintf("Customer with ID %s not found", id))
			return
		}
		mLogger.ErrorContext(r.Context(), "Error retrieving customer", "ID", id, "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve customer with ID %s", id))
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, found)
}

// FindAllCustomers retrieves a list of all customers.
func (h *Handler) FindAllCustomers(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	limit, ok := web.ParseValidateGt(r, w, mLogger, "limit", 0)
	if !ok {
		return
	}
	offset, ok := web.ParseValidateGte(r, w, mLogger, "offset", 0)
	if !ok {
		return
	}

	list, err := h.customers.FindAll(r.Context(), offset, limit)
	if err != nil {
		mLogger.ErrorContext(r.Context(), "Error retrieving customer list", "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, "Failed to fetch customers")
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, list)
}

// CreateCustomer handles the creation of a new customer.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	var dto service.CustomerCreateDto
	if !decodeValid(h, w, r, mLogger, &dto) {
		return
	}

	newCustomer, err := h.customers.Create(r.Context(), dto)
	if err != nil {
		mLogger.ErrorContext(r.Context(), "Error creating customer", "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, "Failed to create customer")
		return
	}
	mLogger.InfoContext(r.Context(), "Customer created successfully", "ID", newCustomer.ID, "Name", newCustomer.Name)
	web.RespondJSON(w, mLogger, http.StatusCreated, newCustomer)
}

// UpdateCustomer modifies an existing customer's details.
func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}
	var dto service.CustomerDto
	if !decodeValid(h, w, r, mLogger, &dto) {
		return
	}
	dto.ID = id.String()

	updated, err := h.customers.Update(r.Context(), dto)
	if err != nil {
		if errors.Is(err, customererrors.ErrCustomerNotFound) {
			mLogger.WarnContext(r.Context(), "Customer not found for update", "ID", id)
			web.RespondError(w, mLogger, http.StatusNotFound, fmt.Sprintf("Customer with ID %s not found", id))
			return
		}
		mLogger.ErrorContext(r.Context(), "Error updating customer", "ID", id, "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, fmt.Sprintf("Failed to update customer with ID %s", id))
		return
	}
	mLogger.InfoContext(r.Context(), "Customer updated successfully", "ID", updated.ID, "Name", updated.Name)
	web.RespondJSON(w, mLogger, http.StatusOK, updated)
}

// DeleteCustomerByID deletes a customer by its ID. Orders referencing the
// customer keep their customer_id; lookups simply stop resolving it.
func (h *Handler) DeleteCustomerByID(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}

	if err := h.customers.DeleteByID(r.Context(), id); err != nil {
		if errors.Is(err, customererrors.ErrCustomerNotFound) {
			mLogger.WarnContext(r.Context(), "Customer not found for deletion", "ID", id)
			web.RespondError(w, mLogger, http.StatusNotFound, fmt.Sprintf("Customer with ID %s not found", id))
			return
		}
		mLogger.ErrorContext(r.Context(), "Error deleting customer", "ID", id, "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, fmt.Sprintf("Failed to delete customer with ID %s", id))
		return
	}
	mLogger.InfoContext(r.Context(), "Customer deleted successfully", "ID", id)
	w.WriteHeader(http.StatusNoContent)
}
