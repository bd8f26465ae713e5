package store

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	perrors "github.com/avargas/gestock/internal/product/errors"
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

// ProductStoreSuite is a test suite for the ProductStore implementation.
type ProductStoreSuite struct {
	suite.Suite
	pgContainer *postgres.PostgresContainer
	dbPool      *pgxpool.Pool
	store       ProductStore
	logger      *slog.Logger
	ctx         context.Context
}

// SetupSuite starts a PostgreSQL container and applies the migrations.
func (s *ProductStoreSuite) SetupSuite() {
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
}

// TearDownSuite cleans up resources after all tests in the suite have run.
func (s *ProductStoreSuite) TearDownSuite() {
	if s.dbPool != nil {
		s.dbPool.Close()
	}
	if s.pgContainer != nil {
		if err := s.pgContainer.Terminate(s.ctx); err != nil {
			s.logger.Warn("failed to terminate PostgreSQL container", "error", err)
		}
	}
}

// SetupTest prepares the database for each test by truncating the products table.
func (s *ProductStoreSuite) SetupTest() {
	_, err := s.dbPool.Exec(s.ctx, "TRUNCATE TABLE products RESTART IDENTITY CASCADE")
	require.NoError(s.T(), err, "Failed to truncate products table")
}

// TestProductStoreIntegration runs the ProductStore integration tests.
func TestProductStoreIntegration(t *testing.T) {
	if os.Getenv(skipIntegrationTests) == "1" {
		t.Skip("Skipping integration tests based on " + skipIntegrationTests + " env var")
	}
	suite.Run(t, new(ProductStoreSuite))
}

func (s *ProductStoreSuite) createTestProduct(name string, stock int32) *Product {
	s.T().Helper()
	p, err := s.store.Create(s.ctx, name, "test product", 1000, stock)
	require.NoError(s.T(), err, "createTestProduct helper failed to create product")
	return p
}

func (s *ProductStoreSuite) TestCreateAndFindByID() {
	s.SetupTest()
	created := s.createTestProduct("keyboard", 10)

	found, err := s.store.FindByID(s.ctx, created.ID)

	require.NoError(s.T(), err)
	require.Equal(s.T(), created.ID, found.ID)
	require.Equal(s.T(), int32(10), found.Stock)
	require.Equal(s.T(), int32(1), found.Version)
}

func (s *ProductStoreSuite) TestFindByID_NotFound() {
	s.SetupTest()

	_, err := s.store.FindByID(s.ctx, uuid.New())

	require.ErrorIs(s.T(), err, perrors.ErrProductNotFound)
}

func (s *ProductStoreSuite) TestUpdateStock_VersionBump() {
	s.SetupTest()
	created := s.createTestProduct("keyboard", 0)

	updated, err := s.store.UpdateStock(s.ctx, created.ID, 7, created.Version)

	require.NoError(s.T(), err)
	require.Equal(s.T(), int32(7), updated.Stock)
	require.Equal(s.T(), created.Version+1, updated.Version)
}

func (s *ProductStoreSuite) TestUpdateStock_VersionMismatch() {
	s.SetupTest()
	created := s.createTestProduct("keyboard", 0)

	_, err := s.store.UpdateStock(s.ctx, created.ID, 7, created.Version+1)

	require.ErrorIs(s.T(), err, perrors.ErrProductNotFound)
}

func (s *ProductStoreSuite) TestDecrementStock() {
	s.SetupTest()
	created := s.createTestProduct("keyboard", 5)

	err := s.store.DecrementStock(s.ctx, created.ID, 3)
	require.NoError(s.T(), err)

	found, err := s.store.FindByID(s.ctx, created.ID)
	require.NoError(s.T(), err)
	require.Equal(s.T(), int32(2), found.Stock)
}

func (s *ProductStoreSuite) TestDecrementStock_Insufficient() {
	s.SetupTest()
	created := s.createTestProduct("keyboard", 2)

	err := s.store.DecrementStock(s.ctx, created.ID, 3)
	require.ErrorIs(s.T(), err, perrors.ErrInsufficientStock)

	found, err := s.store.FindByID(s.ctx, created.ID)
	require.NoError(s.T(), err)
	require.Equal(s.T(), int32(2), found.Stock, "failed decrement must not touch stock")
}

func (s *ProductStoreSuite) TestDecrementStock_ProductMissing() {
	s.SetupTest()

	err := s.store.DecrementStock(s.ctx, uuid.New(), 1)

	require.ErrorIs(s.T(), err, perrors.ErrProductNotFound)
}

func (s *ProductStoreSuite) TestDecrementStockFloor() {
	s.SetupTest()
	created := s.createTestProduct("keyboard", 2)

	err := s.store.DecrementStockFloor(s.ctx, created.ID, 5)
	require.NoError(s.T(), err)

	found, err := s.store.FindByID(s.ctx, created.ID)
	require.NoError(s.T(), err)
	require.Equal(s.T(), int32(0), found.Stock, "floored decrement never goes negative")
}

func (s *ProductStoreSuite) TestDeleteByID() {
	s.SetupTest()
	created := s.createTestProduct("keyboard", 0)

	err := s.store.DeleteByID(s.ctx, created.ID, created.Version)
	require.NoError(s.T(), err)

	_, err = s.store.FindByID(s.ctx, created.ID)
	require.ErrorIs(s.T(), err, perrors.ErrProductNotFound)
}
