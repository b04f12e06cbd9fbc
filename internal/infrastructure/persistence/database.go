package persistence

import (
	"fmt"
	"time"

	"github.com/ecomdw/etl/internal/infrastructure/config"
	"github.com/ecomdw/etl/internal/infrastructure/logger"
	"github.com/ecomdw/etl/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database holds the warehouse connection and the resolved table names
type Database struct {
	DB     *gorm.DB
	Tables TableNames
}

// NewDatabase creates a new warehouse connection. SQL is logged through the
// zap-backed gorm logger at a level derived from the application log level.
func NewDatabase(cfg *config.Config, zapLogger *zap.Logger) (*Database, error) {
	return newDatabaseWithLogLevel(cfg, zapLogger, logger.MapGormLogLevel(cfg.Log.Level))
}

// NewDatabaseWithLogger creates a new warehouse connection with an explicit gorm log level
func NewDatabaseWithLogger(cfg *config.Config, zapLogger *zap.Logger, logLevel gormlogger.LogLevel) (*Database, error) {
	return newDatabaseWithLogLevel(cfg, zapLogger, logLevel)
}

func newDatabaseWithLogLevel(cfg *config.Config, zapLogger *zap.Logger, logLevel gormlogger.LogLevel) (*Database, error) {
	dbCfg := &cfg.Database
	var opts []logger.GormLoggerOption
	if dbCfg.SlowQueryThreshold > 0 {
		opts = append(opts, logger.WithSlowThreshold(dbCfg.SlowQueryThreshold))
	}
	gormLogger := logger.NewGormLogger(zapLogger, logLevel, opts...)

	db, err := gorm.Open(postgres.Open(dbCfg.DSN()), &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(dbCfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(dbCfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(dbCfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(dbCfg.ConnMaxIdleTime) * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	d := &Database{DB: db, Tables: NewTableNames(cfg.Warehouse)}
	tel := cfg.Telemetry
	tracing := telemetry.DefaultDBTracingConfig()
	tracing.Enabled = tel.Enabled() && tel.DBTraceEnabled
	tracing.LogFullSQL = tel.DBLogFullSQL
	if tel.DBSlowQueryThresh > 0 {
		tracing.SlowQueryThresh = tel.DBSlowQueryThresh
	}
	if err := d.EnableTracing(tracing, zapLogger); err != nil {
		return nil, err
	}
	return d, nil
}

// EnableTracing registers otelgorm so each warehouse statement becomes a
// child span of the pipeline phase that issued it
func (d *Database) EnableTracing(cfg telemetry.DBTracingConfig, zapLogger *zap.Logger) error {
	if err := telemetry.NewDBTracingPlugin(cfg, zapLogger).Register(d.DB); err != nil {
		return fmt.Errorf("failed to register database tracing: %w", err)
	}
	return nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping checks if the database connection is alive
func (d *Database) Ping() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Ping()
}

// Stats returns database connection pool statistics and an error if unable to retrieve
func (d *Database) Stats() (ConnectionStats, error) {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return ConnectionStats{}, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	stats := sqlDB.Stats()
	return ConnectionStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration,
	}, nil
}

// ConnectionStats holds database connection pool statistics
type ConnectionStats struct {
	MaxOpenConnections int
	OpenConnections    int
	InUse              int
	Idle               int
	WaitCount          int64
	WaitDuration       time.Duration
}

// Transaction executes a function within a database transaction
func (d *Database) Transaction(fn func(tx *gorm.DB) error) error {
	return d.DB.Transaction(fn)
}
