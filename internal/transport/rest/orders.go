package rest

import (
	"errors"
	"fmt"
	"net/http"

	ordererrors "github.com/avargas/gestock/internal/order/errors"
	"github.com/avargas/gestock/internal/order/service"
	"github.com/avargas/gestock/pkg/web"
)

// FindOrderByID retrieves an order by its ID, with customer and product
// summaries resolved.
func (h *Handler) FindOrderByID(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}

	found, err := h.orders.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ordererrors.ErrOrderNotFound) {
			mLogger.WarnContext(r.Context(), "Order not found", "ID", id)
			web.RespondError(w, mLogger, http.StatusNotFound, fmt.Sprintf("Order with ID %s not found", id))
			return
		}
		mLogger.ErrorContext(r.Context(), "Error retrieving order", "ID", id, "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve order with ID %s", id))
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, found)
}

// FindAllOrders retrieves a list of orders, optionally filtered by status via
// the "status" query parameter.
func (h *Handler) FindAllOrders(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	limit, ok := web.ParseValidateGt(r, w, mLogger, "limit", 0)
	if !ok {
		return
	}
	offset, ok := web.ParseValidateGte(r, w, mLogger, "offset", 0)
	if !ok {
		return
	}
	status := r.URL.Query().Get("status")

	list, err := h.orders.FindAll(r.Context(), status, offset, limit)
	if err != nil {
		if errors.Is(err, ordererrors.ErrInvalidTransition) {
			mLogger.WarnContext(r.Context(), "Unknown order status filter", "status", status)
			web.RespondError(w, mLogger, http.StatusBadRequest, fmt.Sprintf("Unknown order status %q", status))
			return
		}
		mLogger.ErrorContext(r.Context(), "Error retrieving order list", "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, "Failed to fetch orders")
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, list)
}

// CreateOrder handles the creation of a new order. The initial status is
// computed from current stock and returned in the response.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	var dto service.OrderCreateDto
	if !decodeValid(h, w, r, mLogger, &dto) {
		return
	}

	newOrder, err := h.orders.Create(r.Context(), dto)
	if err != nil {
		mLogger.ErrorContext(r.Context(), "Error creating order", "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, "Failed to create order")
		return
	}
	mLogger.InfoContext(r.Context(), "Order created successfully", "ID", newOrder.ID, "Status", newOrder.Status)
	web.RespondJSON(w, mLogger, http.StatusCreated, newOrder)
}

// UpdateOrderStatus transitions an order to DELIVERED. AVAILABLE cannot be
// requested here; it is only ever set by stock reconciliation.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}
	var dto service.OrderStatusUpdateDto
	if !decodeValid(h, w, r, mLogger, &dto) {
		return
	}

	updated, err := h.orders.Deliver(r.Context(), id, dto)
	if err != nil {
		switch {
		case errors.Is(err, ordererrors.ErrOrderNotFound):
			mLogger.WarnContext(r.Context(), "Order not found for status update", "ID", id)
			web.RespondError(w, mLogger, http.StatusNotFound, fmt.Sprintf("Order with ID %s not found", id))
		case errors.Is(err, ordererrors.ErrInvalidTransition):
			mLogger.WarnContext(r.Context(), "Invalid order status transition", "ID", id, "status", dto.Status)
			web.RespondError(w, mLogger, http.StatusConflict, fmt.Sprintf("Order with ID %s cannot transition to %s", id, dto.Status))
		case errors.Is(err, ordererrors.ErrOptimisticLock):
			mLogger.WarnContext(r.Context(), "Order version mismatch", "ID", id, "version", dto.Version)
			web.RespondError(w, mLogger, http.StatusConflict, fmt.Sprintf("Order with ID %s was modified concurrently", id))
		default:
			mLogger.ErrorContext(r.Context(), "Error updating order status", "ID", id, "error", err)
			web.RespondError(w, mLogger, http.StatusInternalServerError, fmt.Sprintf("Failed to update status of order with ID %s", id))
		}
		return
	}
	mLogger.InfoContext(r.Context(), "Order status updated successfully", "ID", updated.ID, "Status", updated.Status)
	web.RespondJSON(w, mLogger, http.StatusOK, updated)
}

// VerifyOrders re-checks every pending order against current stock and
// returns the ones that became AVAILABLE.
func (h *Handler) VerifyOrders(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)

	satisfied, err := h.orders.Verify(r.Context())
	if err != nil {
		mLogger.ErrorContext(r.Context(), "Error verifying pending orders", "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, "Failed to verify pending orders")
		return
	}
	mLogger.InfoContext(r.Context(), "Pending orders verified", "satisfied", len(*satisfied))
	web.RespondJSON(w, mLogger, http.StatusOK, satisfied)
}

// DeleteOrderByID deletes an order by its ID. Stock reserved for an AVAILABLE
// order is not released.
func (h *Handler) DeleteOrderByID(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}

	if err := h.orders.DeleteByID(r.Context(), id); err != nil {
		if errors.Is(err, ordererrors.ErrOrderNotFound) {
			mLogger.WarnContext(r.Context(), "Order not found for deletion", "ID", id)
			web.RespondError(w, mLogger, http.StatusNotFound, fmt.Sprintf("Order with ID %s not found", id))
			return
		}
		mLogger.ErrorContext(r.Context(), "Error deleting order", "ID", id, "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, fmt.Sprintf("Failed to delete order with ID %s", id))
		return
	}
	mLogger.InfoContext(r.Context(), "Order deleted successfully", "ID", id)
	w.WriteHeader(http.StatusNoContent)
}
