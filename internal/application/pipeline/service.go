// Package pipeline orchestrates one ETL run: extract, transform, load the
// staging layer, load the analytics layer, then record the run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ecomdw/etl/internal/application/transform"
	"github.com/ecomdw/etl/internal/domain/dataset"
	"github.com/ecomdw/etl/internal/domain/warehouse"
	csvimport "github.com/ecomdw/etl/internal/infrastructure/import"
	"github.com/ecomdw/etl/internal/infrastructure/logger"
	"github.com/ecomdw/etl/internal/infrastructure/persistence"
	"github.com/ecomdw/etl/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DefaultSourceLabel tags runs when no loader supplies one
const DefaultSourceLabel = persistence.DefaultSourceLabel

// ErrLoaderNotConfigured is returned when a loading run has no loader
var ErrLoaderNotConfigured = errors.New("warehouse loader not configured")

// Extractor reads the raw datasets
type Extractor interface {
	ExtractAll(ctx context.Context) (*csvimport.Extraction, error)
}

// Transformer turns raw datasets into dimensions and facts
type Transformer interface {
	Transform(ctx context.Context, raw map[dataset.Name]*dataset.Table) (*transform.Result, error)
}

// Loader writes the staging and analytics layers
type Loader interface {
	LoadStaging(ctx context.Context, raw map[dataset.Name]*dataset.Table, loadedAt time.Time) (*persistence.StagingResult, error)
	LoadAnalytics(ctx context.Context, dims warehouse.Dimensions, facts []warehouse.OrderFact) (*persistence.AnalyticsResult, error)
	SourceLabel() string
}

// RunStore persists run history
type RunStore interface {
	Save(ctx context.Context, run *warehouse.Run) error
}

// MigrateFunc brings the warehouse schema up to date
type MigrateFunc func(ctx context.Context) error

// Options select what a single run does
type Options struct {
	// NoLoad runs extraction and transformation only
	NoLoad bool
	// Migrate applies pending schema migrations before loading
	Migrate bool
}

// DatasetSummary describes one dataset of a run
type DatasetSummary struct {
	Name          dataset.Name `json:"name"`
	Rows          int          `json:"rows"`
	Columns       int          `json:"columns"`
	MissingValues int          `json:"missing_values"`
	Staged        int          `json:"staged"`
	Error         string       `json:"error,omitempty"`
}

// RunReport is the outcome of one run
type RunReport struct {
	RunID     uuid.UUID           `json:"run_id"`
	Status    warehouse.RunStatus `json:"status"`
	Loaded    bool                `json:"loaded"`
	Counts    warehouse.RunCounts `json:"counts"`
	Quality   transform.Quality   `json:"quality"`
	Datasets  []DatasetSummary    `json:"datasets"`
	Dimension map[string]int      `json:"dimension_rows,omitempty"`
	Elapsed   time.Duration       `json:"elapsed"`
}

// Service runs the pipeline
type Service struct {
	extractor   Extractor
	transformer Transformer
	loader      Loader
	runs        RunStore
	migrate     MigrateFunc
	metrics     *telemetry.RunMetrics
	sourceLabel string
	logger      *zap.Logger
}

// ServiceOption is a functional option for Service configuration
type ServiceOption func(*Service)

// WithLoader enables loading and run history
func WithLoader(loader Loader, runs RunStore) ServiceOption {
	return func(s *Service) {
		s.loader = loader
		s.runs = runs
		if loader != nil && loader.SourceLabel() != "" {
			s.sourceLabel = loader.SourceLabel()
		}
	}
}

// WithMigrator sets how Options.Migrate brings the schema up to date
func WithMigrator(fn MigrateFunc) ServiceOption {
	return func(s *Service) {
		s.migrate = fn
	}
}

// WithMetrics records every finished run
func WithMetrics(m *telemetry.RunMetrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService creates a new pipeline Service
func NewService(extractor Extractor, transformer Transformer, logger *zap.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		extractor:   extractor,
		transformer: transformer,
		sourceLabel: DefaultSourceLabel,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes one pipeline run. Recovered data-quality events never fail
// a run. Staging and analytics failures are joined into the returned error;
// the run is partial when some layer committed before the failure. The
// report is returned even when err is not nil.
func (s *Service) Run(ctx context.Context, opts Options) (*RunReport, error) {
	start := time.Now()
	runID := uuid.New()
	ctx, log := logger.WithRunID(ctx, s.logger, runID.String())
	ctx, span := telemetry.StartSpan(ctx, "pipeline.run",
		telemetry.WithAttribute(telemetry.SpanAttrRunID, runID.String()),
	)
	defer span.End()

	report := &RunReport{RunID: runID, Status: warehouse.RunStatusRunning}
	load := !opts.NoLoad
	if load && s.loader == nil {
		return nil, ErrLoaderNotConfigured
	}
	recorded := false

	run, err := warehouse.NewRun(runID, s.sourceLabel)
	if err != nil {
		return nil, err
	}

	startFields := []zap.Field{
		zap.Bool("load", load),
		zap.Bool("migrate", opts.Migrate),
		zap.String("source", s.sourceLabel),
	}
	if traceID := telemetry.GetTraceID(ctx); traceID != "" {
		startFields = append(startFields, zap.String("trace_id", traceID))
	}
	log.Info("Pipeline run started", startFields...)

	if load {
		if opts.Migrate {
			if s.migrate == nil {
				return nil, errors.New("schema migration requested but no migrator configured")
			}
			if err := s.migrate(ctx); err != nil {
				return nil, fmt.Errorf("failed to migrate warehouse schema: %w", err)
			}
		}
		if s.runs != nil {
			if err := s.runs.Save(ctx, run); err != nil {
				return nil, fmt.Errorf("failed to record run start: %w", err)
			}
			recorded = true
		}
	}

	// Extract
	extractCtx, extractSpan := startPhase(ctx, log, "extract")
	extraction, err := s.extractor.ExtractAll(extractCtx)
	if err != nil {
		endPhase(extractSpan, err)
		return s.finish(ctx, log, report, run, start, recorded, err, false)
	}
	report.Counts.RowsExtracted = extraction.Rows()
	report.Datasets = summarize(extraction)
	for _, d := range report.Datasets {
		telemetry.AddEvent(extractSpan, "dataset.extracted",
			telemetry.SpanAttrTable, string(d.Name),
			telemetry.SpanAttrRows, d.Rows,
		)
	}
	telemetry.SetAttributes(extractSpan,
		telemetry.SpanAttrDatasets, len(extraction.Tables),
		telemetry.SpanAttrRows, report.Counts.RowsExtracted,
	)
	endPhase(extractSpan, nil)

	// Transform
	transformCtx, transformSpan := startPhase(ctx, log, "transform")
	result, transformErr := s.transformer.Transform(transformCtx, extraction.Tables)
	if transformErr == nil {
		dims := result.Dimensions
		for table, rows := range map[string]int{
			persistence.TableDimTime:      len(dims.Time),
			persistence.TableDimCustomers: len(dims.Customers),
			persistence.TableDimProducts:  len(dims.Products),
			persistence.TableDimSellers:   len(dims.Sellers),
			persistence.TableDimGeography: len(dims.Geography),
			persistence.TableFactOrders:   len(result.Facts),
		} {
			telemetry.AddEvent(transformSpan, "table.built",
				telemetry.SpanAttrTable, table,
				telemetry.SpanAttrRows, rows,
			)
		}
		telemetry.SetAttributes(transformSpan, telemetry.SpanAttrRows, len(result.Facts))
	}
	endPhase(transformSpan, transformErr)
	if transformErr != nil {
		log.Error("Transform failed", zap.Error(transformErr))
		if ctx.Err() != nil {
			return s.finish(ctx, log, report, run, start, recorded, transformErr, false)
		}
	} else {
		report.Quality = result.Quality
		s.applyQuality(report, result)
	}

	if !load {
		return s.finish(ctx, log, report, run, start, recorded, transformErr, false)
	}

	// Staging keeps the raw values, so it loads even when the transform failed
	stagingCtx, stagingSpan := startPhase(ctx, log, persistence.PhaseStaging)
	staged, stagingErr := s.loader.LoadStaging(stagingCtx, extraction.Tables, run.StartedAt)
	committed := false
	if staged != nil {
		report.Counts.RowsStaged = staged.Total()
		committed = len(staged.Rows) > 0
		for i := range report.Datasets {
			report.Datasets[i].Staged = staged.Rows[report.Datasets[i].Name]
		}
		for name, rows := range staged.Rows {
			telemetry.AddEvent(stagingSpan, "table.staged",
				telemetry.SpanAttrTable, string(name),
				telemetry.SpanAttrRows, rows,
			)
		}
		telemetry.SetAttributes(stagingSpan, telemetry.SpanAttrRows, report.Counts.RowsStaged)
	}
	endPhase(stagingSpan, stagingErr)

	var analyticsErr error
	if transformErr == nil && ctx.Err() == nil {
		analyticsCtx, analyticsSpan := startPhase(ctx, log, persistence.PhaseAnalytics)
		var loaded *persistence.AnalyticsResult
		loaded, analyticsErr = s.loader.LoadAnalytics(analyticsCtx, result.Dimensions, result.Facts)
		if loaded != nil {
			report.Dimension = loaded.DimensionRows
			report.Counts.DimensionRows = loaded.TotalDimensionRows()
			report.Counts.FactRows = loaded.FactRows
			report.Counts.IntegrityGaps = len(loaded.Gaps)
			committed = committed || len(loaded.DimensionRows) > 0
			for table, rows := range loaded.DimensionRows {
				telemetry.AddEvent(analyticsSpan, "table.loaded",
					telemetry.SpanAttrTable, table,
					telemetry.SpanAttrRows, rows,
				)
			}
			telemetry.SetAttributes(analyticsSpan, telemetry.SpanAttrRows, loaded.FactRows)
		}
		endPhase(analyticsSpan, analyticsErr)
	}

	report.Loaded = true
	return s.finish(ctx, log, report, run, start, recorded, errors.Join(transformErr, stagingErr, analyticsErr), committed)
}

// finish closes the run, records history and metrics
func (s *Service) finish(ctx context.Context, log *zap.Logger, report *RunReport, run *warehouse.Run, start time.Time, recorded bool, runErr error, committed bool) (*RunReport, error) {
	if runErr == nil {
		if err := run.Succeed(report.Counts); err != nil {
			log.Error("Failed to mark run succeeded", zap.Error(err))
		}
	} else {
		if err := run.Fail(report.Counts, runErr, committed); err != nil {
			log.Error("Failed to mark run failed", zap.Error(err))
		}
	}
	report.Status = run.Status

	span := trace.SpanFromContext(ctx)
	telemetry.SetAttributes(span, telemetry.SpanAttrStatus, string(run.Status))
	telemetry.RecordError(span, runErr)
	report.Elapsed = time.Since(start)

	if recorded {
		// History is written even when the run was cancelled
		if err := s.runs.Save(context.WithoutCancel(ctx), run); err != nil {
			log.Error("Failed to record run result", zap.Error(err))
		}
	}

	if s.metrics != nil {
		s.metrics.ObserveRun(run)
		if err := s.metrics.Flush(); err != nil && !errors.Is(err, telemetry.ErrNoTextfile) {
			log.Warn("Failed to write run metrics", zap.Error(err))
		}
	}

	fields := []zap.Field{
		zap.String("status", string(run.Status)),
		zap.Duration("elapsed", report.Elapsed),
		zap.Int("rows_extracted", report.Counts.RowsExtracted),
		zap.Int("rows_staged", report.Counts.RowsStaged),
		zap.Int("dimension_rows", report.Counts.DimensionRows),
		zap.Int("fact_rows", report.Counts.FactRows),
		zap.Int("parse_warnings", report.Counts.ParseWarnings),
		zap.Int("integrity_gaps", report.Counts.IntegrityGaps),
	}
	if runErr != nil {
		log.Error("Pipeline run finished with errors", append(fields, zap.Error(runErr))...)
	} else {
		log.Info("Pipeline run finished", fields...)
	}
	return report, runErr
}

// startPhase starts the span of one phase under the run span
func startPhase(ctx context.Context, log *zap.Logger, phase string) (context.Context, trace.Span) {
	ctx, _ = logger.WithPhase(ctx, log, phase)
	return telemetry.StartSpan(ctx, "pipeline."+phase,
		telemetry.WithAttribute(telemetry.SpanAttrPhase, phase),
	)
}

func endPhase(span trace.Span, err error) {
	telemetry.RecordError(span, err)
	span.End()
}

func (s *Service) applyQuality(report *RunReport, result *transform.Result) {
	q := result.Quality
	report.Counts.SchemaDrifts = len(q.SchemaDrifts)
	report.Counts.ParseWarnings = q.ParseWarnings
	report.Counts.GeolocationDropped = q.GeolocationDropped
	report.Counts.OrdersWithoutItems = q.OrdersWithoutItems
	report.Counts.DeliveryOutliers = q.DeliveryOutliers
	for i := range report.Datasets {
		if err, ok := result.DatasetErrors[report.Datasets[i].Name]; ok {
			report.Datasets[i].Error = err.Error()
		}
	}
}

// summarize lists every dataset in extraction order, failed ones included
func summarize(x *csvimport.Extraction) []DatasetSummary {
	out := make([]DatasetSummary, 0, len(dataset.All))
	for _, name := range dataset.All {
		sum := DatasetSummary{Name: name}
		if t, ok := x.Tables[name]; ok && t != nil {
			sum.Rows = t.Len()
			sum.Columns = len(t.Columns)
			sum.MissingValues = t.MissingValues()
		}
		if err, ok := x.Failures[name]; ok {
			sum.Error = err.Error()
		}
		out = append(out, sum)
	}
	return out
}
