package store

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	ordererrors "github.com/avargas/gestock/internal/order/errors"
	perrors "github.com/avargas/gestock/internal/product/errors"
	pstore "github.com/avargas/gestock/internal/product/store"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const skipIntegrationTests = "GESTOCK_SKIP_INTEGRATION_TESTS"

// OrderStoreSuite is a test suite for the OrderStore implementation.
type OrderStoreSuite struct {
	suite.Suite
	pgContainer *postgres.PostgresContainer
	dbPool      *pgxpool.Pool
	store       OrderStore
	products    pstore.ProductStore
	logger      *slog.Logger
	ctx         context.Context
}

// SetupSuite starts a PostgreSQL container and applies the migrations.
func (s *OrderStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	var err error
	s.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	dbName := "gestock_db"
	dbUser := "user"
	dbPassword := "password"

	s.pgContainer, err = postgres.Run(s.ctx,
		"postgres:17.5-alpine",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("5432/tcp"),
		),
	)
	require.NoError(s.T(), err, "Failed to run PostgreSQL container")

	connStr, err := s.pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err, "Failed to get connection string from container")

	s.dbPool, err = pgxpool.New(s.ctx, connStr)
	require.NoError(s.T(), err, "Failed to create pgxpool")

	for i := range 10 {
		s.logger.Info("Pinging PostgreSQL database", "attempt", i+1)
		err = s.dbPool.Ping(s.ctx)
		if err == nil {
			break
		}
		time.Sleep(time.Second * 2)
	}
	require.NoError(s.T(), err, "Failed to connect to PostgreSQL after retries")

	wd, _ := os.Getwd()
	migrationsPath := filepath.Join(wd, "../../../migrations")
	sourceURL := "file://" + migrationsPath
	m, err := migrate.New(sourceURL, connStr)
	require.NoError(s.T(), err, "Failed to create migrate instance")
	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		_, _ = m.Close()
		require.NoError(s.T(), err, "Failed to apply migrations")
	}
	s.logger.Info("Migrations applied")

	s.store = NewPgStore(s.dbPool)
	s.products = pstore.NewPgStore(s.dbPool)
}

// TearDownSuite cleans up resources after all tests in the suite have run.
func (s *OrderStoreSuite) TearDownSuite() {
	if s.dbPool != nil {
		s.dbPool.Close()
	}
	if s.pgContainer != nil {
		if err := s.pgContainer.Terminate(s.ctx); err != nil {
			s.logger.Warn("failed to terminate PostgreSQL container", "error", err)
		}
	}
}

// SetupTest prepares the database for each test by truncating the tables.
func (s *OrderStoreSuite) SetupTest() {
	_, err := s.dbPool.Exec(s.ctx, "TRUNCATE TABLE orders RESTART IDENTITY CASCADE")
	require.NoError(s.T(), err, "Failed to truncate orders table")
	_, err = s.dbPool.Exec(s.ctx, "TRUNCATE TABLE products RESTART IDENTITY CASCADE")
	require.NoError(s.T(), err, "Failed to truncate products table")
}

// TestOrderStoreIntegration runs the OrderStore integration tests.
func TestOrderStoreIntegration(t *testing.T) {
	if os.Getenv(skipIntegrationTests) == "1" {
		t.Skip("Skipping integration tests based on " + skipIntegrationTests + " env var")
	}
	suite.Run(t, new(OrderStoreSuite))
}

func (s *OrderStoreSuite) createTestProduct(name string, stock int32) *pstore.Product {
	s.T().Helper()
	p, err := s.products.Create(s.ctx, name, "test product", 1000, stock)
	require.NoError(s.T(), err, "createTestProduct helper failed to create product")
	return p
}

func (s *OrderStoreSuite) productStock(id uuid.UUID) int32 {
	s.T().Helper()
	p, err := s.products.FindByID(s.ctx, id)
	require.NoError(s.T(), err)
	return p.Stock
}

func (s *OrderStoreSuite) TestCreate_AvailableReservesStock() {
	s.SetupTest()
	p := s.createTestProduct("keyboard", 10)

	order, err := s.store.Create(s.ctx, uuid.New(), []ItemParams{{ProductID: p.ID, Quantity: 4}})

	require.NoError(s.T(), err)
	require.Equal(s.T(), StatusAvailable, order.Status)
	require.Len(s.T(), order.Items, 1)
	require.Equal(s.T(), int32(6), s.productStock(p.ID))
}

func (s *OrderStoreSuite) TestCreate_PendingLeavesStock() {
	s.SetupTest()
	p := s.createTestProduct("keyboard", 3)

	order, err := s.store.Create(s.ctx, uuid.New(), []ItemParams{{ProductID: p.ID, Quantity: 4}})

	require.NoError(s.T(), err)
	require.Equal(s.T(), StatusPending, order.Status)
	require.Equal(s.T(), int32(3), s.productStock(p.ID))
}

func (s *OrderStoreSuite) TestCreate_RepeatedProductUsesCombinedQuantity() {
	s.SetupTest()
	p := s.createTestProduct("keyboard", 4)

	order, err := s.store.Create(s.ctx, uuid.New(), []ItemParams{
		{ProductID: p.ID, Quantity: 3},
		{ProductID: p.ID, Quantity: 3},
	})

	require.NoError(s.T(), err, "an uncoverable order must still be created")
	require.Equal(s.T(), StatusPending, order.Status)
	require.Len(s.T(), order.Items, 2)
	require.Equal(s.T(), int32(4), s.productStock(p.ID), "stock untouched while pending")
}

func (s *OrderStoreSuite) TestCreate_RepeatedProductReservesOnce() {
	s.SetupTest()
	p := s.createTestProduct("keyboard", 6)

	order, err := s.store.Create(s.ctx, uuid.New(), []ItemParams{
		{ProductID: p.ID, Quantity: 3},
		{ProductID: p.ID, Quantity: 3},
	})

	require.NoError(s.T(), err)
	require.Equal(s.T(), StatusAvailable, order.Status)
	require.Equal(s.T(), int32(0), s.productStock(p.ID))
}

func (s *OrderStoreSuite) TestCreate_UnknownProductIsPending() {
	s.SetupTest()

	order, err := s.store.Create(s.ctx, uuid.New(), []ItemParams{{ProductID: uuid.New(), Quantity: 1}})

	require.NoError(s.T(), err)
	require.Equal(s.T(), StatusPending, order.Status)
}

func (s *OrderStoreSuite) TestMarkAvailable() {
	s.SetupTest()
	p := s.createTestProduct("keyboard", 0)
	order, err := s.store.Create(s.ctx, uuid.New(), []ItemParams{{ProductID: p.ID, Quantity: 2}})
	require.NoError(s.T(), err)

	_, err = s.products.UpdateStock(s.ctx, p.ID, 5, 1)
	require.NoError(s.T(), err)

	err = s.store.MarkAvailable(s.ctx, order.ID)
	require.NoError(s.T(), err)

	found, err := s.store.FindByID(s.ctx, order.ID)
	require.NoError(s.T(), err)
	require.Equal(s.T(), StatusAvailable, found.Status)
	require.Equal(s.T(), int32(3), s.productStock(p.ID))

	err = s.store.MarkAvailable(s.ctx, order.ID)
	require.ErrorIs(s.T(), err, ordererrors.ErrOrderNotPending, "second transition must not reserve twice")
	require.Equal(s.T(), int32(3), s.productStock(p.ID))
}

func (s *OrderStoreSuite) TestMarkAvailable_InsufficientStock() {
	s.SetupTest()
	p := s.createTestProduct("keyboard", 0)
	order, err := s.store.Create(s.ctx, uuid.New(), []ItemParams{{ProductID: p.ID, Quantity: 2}})
	require.NoError(s.T(), err)

	err = s.store.MarkAvailable(s.ctx, order.ID)

	require.ErrorIs(s.T(), err, perrors.ErrInsufficientStock)
	found, err := s.store.FindByID(s.ctx, order.ID)
	require.NoError(s.T(), err)
	require.Equal(s.T(), StatusPending, found.Status)
}

func (s *OrderStoreSuite) TestMarkAvailable_RepeatedProductUsesCombinedQuantity() {
	s.SetupTest()
	p := s.createTestProduct("keyboard", 0)
	order, err := s.store.Create(s.ctx, uuid.New(), []ItemParams{
		{ProductID: p.ID, Quantity: 3},
		{ProductID: p.ID, Quantity: 3},
	})
	require.NoError(s.T(), err)

	_, err = s.products.UpdateStock(s.ctx, p.ID, 4, 1)
	require.NoError(s.T(), err)

	err = s.store.MarkAvailable(s.ctx, order.ID)
	require.ErrorIs(s.T(), err, perrors.ErrInsufficientStock, "4 in stock cannot cover 3+3")
	require.Equal(s.T(), int32(4), s.productStock(p.ID), "a failed transition reserves nothing")

	_, err = s.products.UpdateStock(s.ctx, p.ID, 6, 2)
	require.NoError(s.T(), err)

	err = s.store.MarkAvailable(s.ctx, order.ID)
	require.NoError(s.T(), err)
	require.Equal(s.T(), int32(0), s.productStock(p.ID))
}

func (s *OrderStoreSuite) TestMarkAvailable_PartialCoverageReservesNothing() {
	s.SetupTest()
	covered := s.createTestProduct("keyboard", 10)
	short := s.createTestProduct("mouse", 0)
	order, err := s.store.Create(s.ctx, uuid.New(), []ItemParams{
		{ProductID: covered.ID, Quantity: 2},
		{ProductID: short.ID, Quantity: 1},
	})
	require.NoError(s.T(), err)
	require.Equal(s.T(), StatusPending, order.Status)

	err = s.store.MarkAvailable(s.ctx, order.ID)

	require.ErrorIs(s.T(), err, perrors.ErrInsufficientStock)
	require.Equal(s.T(), int32(10), s.productStock(covered.ID), "no partial reservation")
}

func (s *OrderStoreSuite) TestDeliver_PendingFloorsStock() {
	s.SetupTest()
	p := s.createTestProduct("keyboard", 2)
	order, err := s.store.Create(s.ctx, uuid.New(), []ItemParams{{ProductID: p.ID, Quantity: 5}})
	require.NoError(s.T(), err)
	require.Equal(s.T(), StatusPending, order.Status)

	delivered, err := s.store.Deliver(s.ctx, order.ID, order.Version)

	require.NoError(s.T(), err)
	require.Equal(s.T(), StatusDelivered, delivered.Status)
	require.Equal(s.T(), int32(0), s.productStock(p.ID))
}

func (s *OrderStoreSuite) TestDeliver_AvailableKeepsStock() {
	s.SetupTest()
	p := s.createTestProduct("keyboard", 5)
	order, err := s.store.Create(s.ctx, uuid.New(), []ItemParams{{ProductID: p.ID, Quantity: 2}})
	require.NoError(s.T(), err)
	require.Equal(s.T(), StatusAvailable, order.Status)

	delivered, err := s.store.Deliver(s.ctx, order.ID, order.Version)

	require.NoError(s.T(), err)
	require.Equal(s.T(), StatusDelivered, delivered.Status)
	require.Equal(s.T(), int32(3), s.productStock(p.ID), "reserved stock is not consumed twice")
}

func (s *OrderStoreSuite) TestDeliver_Terminal() {
	s.SetupTest()
	p := s.createTestProduct("keyboard", 5)
	order, err := s.store.Create(s.ctx, uuid.New(), []ItemParams{{ProductID: p.ID, Quantity: 1}})
	require.NoError(s.T(), err)

	delivered, err := s.store.Deliver(s.ctx, order.ID, order.Version)
	require.NoError(s.T(), err)

	_, err = s.store.Deliver(s.ctx, order.ID, delivered.Version)
	require.ErrorIs(s.T(), err, ordererrors.ErrInvalidTransition)
}

func (s *OrderStoreSuite) TestDeliver_VersionMismatch() {
	s.SetupTest()
	p := s.createTestProduct("keyboard", 5)
	order, err := s.store.Create(s.ctx, uuid.New(), []ItemParams{{ProductID: p.ID, Quantity: 1}})
	require.NoError(s.T(), err)

	_, err = s.store.Deliver(s.ctx, order.ID, order.Version+1)

	require.ErrorIs(s.T(), err, ordererrors.ErrOptimisticLock)
}

func (s *OrderStoreSuite) TestFindPendingByProduct_OldestFirst() {
	s.SetupTest()
	p := s.createTestProduct("keyboard", 0)
	other := s.createTestProduct("mouse", 0)

	first, err := s.store.Create(s.ctx, uuid.New(), []ItemParams{{ProductID: p.ID, Quantity: 1}})
	require.NoError(s.T(), err)
	second, err := s.store.Create(s.ctx, uuid.New(), []ItemParams{{ProductID: p.ID, Quantity: 1}})
	require.NoError(s.T(), err)
	_, err = s.store.Create(s.ctx, uuid.New(), []ItemParams{{ProductID: other.ID, Quantity: 1}})
	require.NoError(s.T(), err)

	pending, err := s.store.FindPendingByProduct(s.ctx, p.ID)

	require.NoError(s.T(), err)
	require.Len(s.T(), pending, 2)
	require.Equal(s.T(), first.ID, pending[0].ID)
	require.Equal(s.T(), second.ID, pending[1].ID)
}

func (s *OrderStoreSuite) TestFindByStatus_PagedOldestFirst() {
	s.SetupTest()
	p := s.createTestProduct("keyboard", 0)

	first, err := s.store.Create(s.ctx, uuid.New(), []ItemParams{{ProductID: p.ID, Quantity: 1}})
	require.NoError(s.T(), err)
	second, err := s.store.Create(s.ctx, uuid.New(), []ItemParams{{ProductID: p.ID, Quantity: 1}})
	require.NoError(s.T(), err)
	third, err := s.store.Create(s.ctx, uuid.New(), []ItemParams{{ProductID: p.ID, Quantity: 1}})
	require.NoError(s.T(), err)

	page, err := s.store.FindByStatus(s.ctx, StatusPending, 1, 1)
	require.NoError(s.T(), err)
	require.Len(s.T(), page, 1)
	require.Equal(s.T(), second.ID, page[0].ID)

	all, err := s.store.FindByStatus(s.ctx, StatusPending, 0, 0)
	require.NoError(s.T(), err)
	require.Len(s.T(), all, 3, "limit 0 returns every match")
	require.Equal(s.T(), first.ID, all[0].ID)
	require.Equal(s.T(), third.ID, all[2].ID)
}

func (s *OrderStoreSuite) TestDeleteByID_CascadesItems() {
	s.SetupTest()
	p := s.createTestProduct("keyboard", 5)
	order, err := s.store.Create(s.ctx, uuid.New(), []ItemParams{{ProductID: p.ID, Quantity: 1}})
	require.NoError(s.T(), err)

	err = s.store.DeleteByID(s.ctx, order.ID)
	require.NoError(s.T(), err)

	var count int
	err = s.dbPool.QueryRow(s.ctx, "SELECT count(*) FROM order_items WHERE order_id = $1", order.ID).Scan(&count)
	require.NoError(s.T(), err)
	require.Zero(s.T(), count)

	_, err = s.store.FindByID(s.ctx, order.ID)
	require.ErrorIs(s.T(), err, ordererrors.ErrOrderNotFound)
}
