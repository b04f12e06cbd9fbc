// Package integration runs the pipeline against a real PostgreSQL warehouse.
// It uses testcontainers to start the database and the embedded migrations
// to create the staging, analytics and audit schemas.
package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ecomdw/etl/internal/infrastructure/config"
	"github.com/ecomdw/etl/internal/infrastructure/migration"
	"github.com/ecomdw/etl/internal/infrastructure/persistence"
	"github.com/ecomdw/etl/migrations"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB is a migrated warehouse in a throwaway container
type TestDB struct {
	Database  *persistence.Database
	Container testcontainers.Container
	DSN       string
	t         *testing.T
}

// NewTestDB starts a PostgreSQL container and applies all migrations.
// The container is terminated when the test finishes.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("warehouse_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("admin123"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "Failed to get connection string")

	runMigrations(t, dsn)

	tdb := &TestDB{
		Database:  connectToDatabase(t, dsn),
		Container: container,
		DSN:       dsn,
		t:         t,
	}
	t.Cleanup(tdb.Close)
	return tdb
}

// Close closes the connection and terminates the container
func (tdb *TestDB) Close() {
	if tdb.Database != nil {
		_ = tdb.Database.Close()
	}
	if tdb.Container != nil {
		if err := tdb.Container.Terminate(context.Background()); err != nil {
			tdb.t.Logf("Warning: Failed to terminate container: %v", err)
		}
	}
}

// Count returns the number of rows in a schema-qualified table
func (tdb *TestDB) Count(table string) int64 {
	tdb.t.Helper()

	var n int64
	require.NoError(tdb.t, tdb.Database.DB.Table(table).Count(&n).Error, "Failed to count %s", table)
	return n
}

// Migrate returns a migrate function over the embedded migrations
func (tdb *TestDB) Migrate() func(context.Context) error {
	return func(context.Context) error {
		m, err := migration.NewFromFS(migrations.FS, tdb.DSN, zap.NewNop())
		if err != nil {
			return err
		}
		defer m.Close()
		return m.Up()
	}
}

func connectToDatabase(t *testing.T, dsn string) *persistence.Database {
	t.Helper()

	gormConfig := &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	}
	// Enable SQL logging if TEST_DB_DEBUG is set
	if os.Getenv("TEST_DB_DEBUG") != "" {
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(gormpostgres.Open(dsn), gormConfig)
	require.NoError(t, err, "Failed to connect to database")

	sqlDB, err := db.DB()
	require.NoError(t, err, "Failed to get underlying SQL DB")
	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	return &persistence.Database{
		DB: db,
		Tables: persistence.NewTableNames(config.WarehouseConfig{
			StagingSchema:   "staging",
			AnalyticsSchema: "analytics",
			AuditSchema:     "audit",
		}),
	}
}

func runMigrations(t *testing.T, dsn string) {
	t.Helper()

	m, err := migration.NewFromFS(migrations.FS, dsn, zap.NewNop())
	require.NoError(t, err, "Failed to create migrator")
	defer m.Close()

	require.NoError(t, m.Up(), "Failed to run migrations")
}
