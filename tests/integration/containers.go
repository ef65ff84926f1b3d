// Package integration runs the storage adapters against real servers started
// with testcontainers. Tests skip in short mode.
package integration

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	mpg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmongodb "github.com/testcontainers/testcontainers-go/modules/mongodb"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"

	"github.com/ordersync/backend/internal/infrastructure/config"
	"github.com/ordersync/backend/internal/infrastructure/erp"
	"github.com/ordersync/backend/internal/infrastructure/persistence"
	"github.com/ordersync/backend/internal/infrastructure/telemetry"
)

const startupTimeout = 90 * time.Second

func skipShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

func terminateOnCleanup(t *testing.T, c testcontainers.Container) {
	t.Cleanup(func() {
		if err := c.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})
}

// NewErpDB starts PostgreSQL, applies the order-entry fixture schema and
// returns an ERP database connected through the production constructor.
func NewErpDB(t *testing.T) *erp.Database {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("erp_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("admin123"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(startupTimeout)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	terminateOnCleanup(t, container)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "Failed to get connection string")

	runErpMigrations(t, dsn)

	database, err := erp.NewDatabase(&config.ErpConfig{
		Driver:       "postgres",
		DSN:          dsn,
		MaxOpenConns: 2,
		MaxIdleConns: 1,
		LogLevel:     "silent",
	}, telemetry.DBTracingConfig{}, zaptest.NewLogger(t))
	require.NoError(t, err, "Failed to open ERP database")
	t.Cleanup(func() { _ = database.Close() })
	return database
}

// runErpMigrations applies testdata/erp with golang-migrate over lib/pq
func runErpMigrations(t *testing.T, dsn string) {
	t.Helper()

	sqlDB, err := sql.Open("postgres", dsn)
	require.NoError(t, err, "Failed to open migration connection")
	defer sqlDB.Close()

	driver, err := mpg.WithInstance(sqlDB, &mpg.Config{})
	require.NoError(t, err, "Failed to create migration driver")

	m, err := migrate.NewWithDatabaseInstance("file://"+testdataPath(t, "erp"), "postgres", driver)
	require.NoError(t, err, "Failed to create migrate instance")

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		require.NoError(t, err, "Failed to run migrations")
	}
}

func testdataPath(t *testing.T, name string) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok, "Could not locate test sources")
	path := filepath.Join(filepath.Dir(filename), "testdata", name)
	_, err := os.Stat(path)
	require.NoError(t, err, "Could not find %s", path)
	return path
}

// NewMongo starts MongoDB and connects the order store database
func NewMongo(t *testing.T) *persistence.Mongo {
	t.Helper()
	ctx := context.Background()

	container, err := tcmongodb.Run(ctx, "mongo:7")
	require.NoError(t, err, "Failed to start MongoDB container")
	terminateOnCleanup(t, container)

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err, "Failed to get connection string")

	m, err := persistence.NewMongo(ctx, &config.MongoConfig{
		URI:            uri,
		Database:       "ordersync_test",
		MaxPoolSize:    5,
		ConnectTimeout: 10 * time.Second,
	}, zaptest.NewLogger(t))
	require.NoError(t, err, "Failed to connect to MongoDB")
	t.Cleanup(func() { _ = m.Close(context.Background()) })
	return m
}

// NewRedisAddr starts Redis and returns its host:port
func NewRedisAddr(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(startupTimeout),
		},
		Started: true,
	})
	require.NoError(t, err, "Failed to start Redis container")
	terminateOnCleanup(t, container)

	addr, err := container.Endpoint(ctx, "")
	require.NoError(t, err, "Failed to get Redis endpoint")
	return addr
}
