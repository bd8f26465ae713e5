// Package app contains the application setup for the gestock server.
package app

import (
	"log/slog"
	"net/http"

	"github.com/avargas/gestock/internal/config"
	cservice "github.com/avargas/gestock/internal/customer/service"
	custore "github.com/avargas/gestock/internal/customer/store"
	oservice "github.com/avargas/gestock/internal/order/service"
	ostore "github.com/avargas/gestock/internal/order/store"
	pservice "github.com/avargas/gestock/internal/product/service"
	pstore "github.com/avargas/gestock/internal/product/store"
	"github.com/avargas/gestock/internal/reconcile"
	"github.com/avargas/gestock/internal/transport/rest"
	"github.com/avargas/gestock/pkg/messaging"
	"github.com/avargas/gestock/pkg/server"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Dependencies struct {
	ProductService  pservice.ProductService
	CustomerService cservice.CustomerService
	OrderService    oservice.OrderService
	Engine          *reconcile.Engine
	Logger          *slog.Logger
}

// SetupDependencies wires stores, the reconciliation engine and services.
// The publisher may be nil when no event sink is configured.
func SetupDependencies(dbPool *pgxpool.Pool, publisher messaging.Publisher, logger *slog.Logger) *Dependencies {
	products := pstore.NewPgStore(dbPool)
	customers := custore.NewPgStore(dbPool)
	orders := ostore.NewPgStore(dbPool)

	engine := reconcile.NewEngine(orders, customers, publisher, logger)

	return &Dependencies{
		ProductService:  pservice.NewService(products, engine, logger),
		CustomerService: cservice.NewService(customers),
		OrderService:    oservice.NewService(orders, customers, products, engine),
		Engine:          engine,
		Logger:          logger,
	}
}

// SetupHttpHandler initializes the HTTP routes of the API server.
// Used by E2E tests to set up the HTTP server with the necessary routes and middleware.
func SetupHttpHandler(deps *Dependencies) http.Handler {
	mux := server.NewChiRouter(deps.Logger)
	wireRoutes(mux, deps)
	return mux
}

// wireRoutes sets up the HTTP routes of the API server.
func wireRoutes(mux *chi.Mux, deps *Dependencies) {
	handler := rest.NewHandler(deps.ProductService, deps.CustomerService, deps.OrderService, deps.Logger)
	handler.RegisterRoutes(mux)
}

// SetupHttpServer creates and configures the HTTP server of the API.
func SetupHttpServer(deps *Dependencies, cfg *config.Config) *http.Server {

	mux := SetupHttpHandler(deps)

	httpCfg := server.HTTPConfig{
		Port:           cfg.HTTPServer.Port,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		ReadTimeout:    cfg.HTTPServer.Timeout.Read,
		WriteTimeout:   cfg.HTTPServer.Timeout.Write,
		IdleTimeout:    cfg.HTTPServer.Timeout.Idle,
		ReadHeader:     cfg.HTTPServer.Timeout.ReadHeader,
	}

	return server.NewHTTPServer(httpCfg, mux)
}
