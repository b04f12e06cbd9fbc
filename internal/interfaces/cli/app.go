package cli

import (
	"context"
	"fmt"

	"github.com/ecomdw/etl/internal/application/pipeline"
	"github.com/ecomdw/etl/internal/application/transform"
	"github.com/ecomdw/etl/internal/infrastructure/config"
	csvimport "github.com/ecomdw/etl/internal/infrastructure/import"
	"github.com/ecomdw/etl/internal/infrastructure/logger"
	"github.com/ecomdw/etl/internal/infrastructure/migration"
	"github.com/ecomdw/etl/internal/infrastructure/persistence"
	"github.com/ecomdw/etl/internal/infrastructure/storage"
	"github.com/ecomdw/etl/internal/infrastructure/telemetry"
	"github.com/ecomdw/etl/migrations"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// app holds the configured components shared by the subcommands
type app struct {
	cfg    *config.Config
	log    *zap.Logger
	db     *persistence.Database
	tracer *telemetry.TracerProvider
	logs   *telemetry.LoggerProvider
}

// newApp loads configuration, builds the logger and starts trace and log
// export when a collector is configured
func newApp(flags *globalFlags) (*app, error) {
	cfg, err := config.LoadFrom(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx := context.Background()
	tel := cfg.Telemetry
	logs, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           tel.LogsEnabled,
		CollectorEndpoint: tel.CollectorEndpoint,
		ServiceName:       tel.ServiceName,
		ServiceVersion:    version,
		Insecure:          tel.Insecure,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize log export: %w", err)
	}
	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	log = logs.Bridge(log, tel.ServiceName, level)

	tracer, err := telemetry.NewTracerProvider(ctx, telemetry.TracingConfig{
		CollectorEndpoint: tel.CollectorEndpoint,
		SamplingRatio:     tel.SamplingRatio,
		ServiceName:       tel.ServiceName,
		ServiceVersion:    version,
		Insecure:          tel.Insecure,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	return &app{cfg: cfg, log: log, tracer: tracer, logs: logs}, nil
}

// database opens the warehouse connection once
func (a *app) database() (*persistence.Database, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := persistence.NewDatabase(a.cfg, a.log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.log.Info("Database connected successfully",
		zap.String("host", a.cfg.Database.Host),
		zap.String("dbname", a.cfg.Database.DBName),
	)
	a.db = db
	return db, nil
}

// source builds the dataset source selected by source.kind
func (a *app) source(ctx context.Context) (csvimport.Source, error) {
	switch a.cfg.Source.Kind {
	case config.SourceS3:
		src, err := storage.NewS3Source(ctx, &a.cfg.Storage, storage.WithLogger(a.log.Named("s3")))
		if err != nil {
			return nil, err
		}
		if err := src.Check(ctx); err != nil {
			return nil, err
		}
		return src, nil
	default:
		src := csvimport.NewDirSource(a.cfg.Source.DataDir)
		if err := src.Check(); err != nil {
			return nil, err
		}
		return src, nil
	}
}

// policies returns the configured cleaning policies
func (a *app) policies() (transform.Policies, error) {
	if a.cfg.Pipeline.PolicyFile != "" {
		return transform.LoadPolicyFile(a.cfg.Pipeline.PolicyFile)
	}
	return transform.DefaultPolicies()
}

// pipeline wires a pipeline service; load adds the database components
func (a *app) pipeline(ctx context.Context, load bool) (*pipeline.Service, error) {
	src, err := a.source(ctx)
	if err != nil {
		return nil, fmt.Errorf("dataset source unavailable: %w", err)
	}
	policies, err := a.policies()
	if err != nil {
		return nil, fmt.Errorf("failed to load cleaning policies: %w", err)
	}

	p := a.cfg.Pipeline
	extractor := csvimport.NewExtractor(src, a.log,
		csvimport.WithFiles(a.cfg.Source.DatasetFiles()),
		csvimport.WithWarningLogLimit(p.WarningLogLimit),
		csvimport.WithParserOptions(
			csvimport.WithDelimiter(a.cfg.Source.DelimiterRune()),
			csvimport.WithLazyQuotes(a.cfg.Source.LazyQuotes),
			csvimport.WithTrimSpace(a.cfg.Source.TrimSpace),
		),
	)
	transformer := transform.NewTransformer(policies, transform.Options{
		MaxDeliveryDays: p.MaxDeliveryDays,
		WarningLogLimit: p.WarningLogLimit,
	}, a.log)

	opts := []pipeline.ServiceOption{
		pipeline.WithMetrics(telemetry.NewRunMetrics(telemetry.RunMetricsConfig{
			Namespace:    a.cfg.Metrics.JobName,
			TextfilePath: a.cfg.Metrics.TextfilePath,
			Logger:       a.log,
		})),
	}
	if load {
		db, err := a.database()
		if err != nil {
			return nil, err
		}
		loader := persistence.NewWarehouseLoader(db, a.log,
			persistence.WithBatchSize(p.BatchSize),
			persistence.WithSourceLabel(p.StagingSourceLabel),
		)
		opts = append(opts,
			pipeline.WithLoader(loader, persistence.NewRunRepository(db)),
			pipeline.WithMigrator(a.migrate),
		)
	}

	return pipeline.NewService(extractor, transformer, a.log, opts...), nil
}

// migrate applies the embedded migrations over a separate connection
func (a *app) migrate(context.Context) error {
	m, err := migration.NewFromFS(migrations.FS, a.cfg.Database.DSN(), a.log.Named("migrate"))
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			a.log.Warn("Failed to close migrator", zap.Error(err))
		}
	}()
	return m.Up()
}

// close releases the database, flushes pending spans and log records, then
// syncs the logger
func (a *app) close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Error("Error closing database", zap.Error(err))
		}
	}
	ctx := context.Background()
	if err := a.tracer.Shutdown(ctx); err != nil {
		a.log.Warn("Failed to flush traces", zap.Error(err))
	}
	if err := a.logs.Shutdown(ctx); err != nil {
		a.log.Warn("Failed to flush log records", zap.Error(err))
	}
	_ = a.log.Sync()
}
