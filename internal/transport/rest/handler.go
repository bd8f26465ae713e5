// Package rest provides the HTTP API for products, customers and orders.
package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	cservice "github.com/avargas/gestock/internal/customer/service"
	oservice "github.com/avargas/gestock/internal/order/service"
	pservice "github.com/avargas/gestock/internal/product/service"
	"github.com/avargas/gestock/pkg/web"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

type Handler struct {
	products  pservice.ProductService
	customers cservice.CustomerService
	orders    oservice.OrderService
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewHandler creates a new instance of Handler with the provided services.
func NewHandler(products pservice.ProductService, customers cservice.CustomerService, orders oservice.OrderService, logger *slog.Logger) *Handler {
	return &Handler{
		products:  products,
		customers: customers,
		orders:    orders,
		validate:  validator.New(),
		logger:    logger.With("component", "rest"),
	}
}

// RegisterRoutes registers the HTTP routes of the API.
func (h *Handler) RegisterRoutes(r *chi.Mux) {
	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", h.FindAllProducts)
		r.Post("/", h.CreateProduct)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.FindProductByID)
			r.Delete("/", h.DeleteProductByID)
			r.Put("/", h.UpdateProduct)
			r.Put("/stock", h.UpdateStock)
		})
	})

	r.Route("/api/v1/customers", func(r chi.Router) {
		r.Get("/", h.FindAllCustomers)
		r.Post("/", h.CreateCustomer)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.FindCustomerByID)
			r.Delete("/", h.DeleteCustomerByID)
			r.Put("/", h.UpdateCustomer)
		})
	})

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Get("/", h.FindAllOrders)
		r.Post("/", h.CreateOrder)
		r.Post("/verify", h.VerifyOrders)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.FindOrderByID)
			r.Delete("/", h.DeleteOrderByID)
			r.Put("/status", h.UpdateOrderStatus)
		})
	})

	r.Get("/healthz", h.HealthCheck)
}

// HealthCheck is a simple health check endpoint.
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// loggerWithReqID creates a logger with the request ID from the context.
func (h *Handler) loggerWithReqID(r *http.Request) *slog.Logger {
	reqID := middleware.GetReqID(r.Context())
	return h.logger.With("request_id", reqID)
}

// decodeValid decodes the request body into dto and runs struct validation,
// writing the error response itself when either step fails.
func decodeValid[T any](h *Handler, w http.ResponseWriter, r *http.Request, logger *slog.Logger, dto *T) bool {
	if err := json.NewDecoder(r.Body).Decode(dto); err != nil {
		logger.ErrorContext(r.Context(), "Error decoding request body", "error", err)
		web.RespondError(w, logger, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := h.validate.Struct(*dto); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			errorResponse := make(map[string]string)
			for _, fieldErr := range validationErrors {
				errorResponse[fieldErr.Field()] = "failed on rule: " + fieldErr.Tag()
			}
			logger.WarnContext(r.Context(), "Validation errors occurred", "errors", errorResponse)
			web.RespondJSON(w, logger, http.StatusBadRequest, map[string]any{"validation_errors": errorResponse})
			return false
		}
		logger.ErrorContext(r.Context(), "Error validating request body", "error", err)
		web.RespondError(w, logger, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
