// Package telemetry exposes pipeline run metrics in the Prometheus format and
// exports run traces and logs over OTLP. The ETL is a batch job without a
// scrape endpoint, so metrics are written to a textfile for node-exporter's
// textfile collector.
package telemetry

import (
	"errors"
	"sync"
	"time"

	"github.com/ecomdw/etl/internal/domain/warehouse"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// ErrNoTextfile is returned by Flush when no textfile path is configured
var ErrNoTextfile = errors.New("metrics textfile path not configured")

// Row stages reported by the rows gauge
const (
	StageExtracted = "extracted"
	StageStaged    = "staged"
	StageDimension = "dimension"
	StageFact      = "fact"
)

// Data-quality event kinds reported by the quality gauge
const (
	QualitySchemaDrift        = "schema_drift"
	QualityParseWarning       = "parse_warning"
	QualityIntegrityGap       = "integrity_gap"
	QualityGeolocationDropped = "geolocation_dropped"
	QualityOrdersWithoutItems = "orders_without_items"
	QualityDeliveryOutlier    = "delivery_outlier"
)

// RunMetricsConfig holds configuration for run metrics
type RunMetricsConfig struct {
	// Namespace prefixes every metric name. Default: ecomdw_etl
	Namespace string
	// TextfilePath is where Flush writes the metrics; empty disables Flush
	TextfilePath string
	Logger       *zap.Logger
}

// RunMetrics records the outcome of pipeline runs.
//
// Thread Safety: Safe for concurrent use by multiple goroutines.
type RunMetrics struct {
	mu       sync.Mutex
	registry *prometheus.Registry
	path     string
	logger   *zap.Logger

	runsTotal      *prometheus.CounterVec
	runDuration    prometheus.Histogram
	lastRun        prometheus.Gauge
	lastSuccess    prometheus.Gauge
	lastRunSuccess prometheus.Gauge
	rows           *prometheus.GaugeVec
	quality        *prometheus.GaugeVec
}

// NewRunMetrics creates run metrics on a private registry
func NewRunMetrics(cfg RunMetricsConfig) *RunMetrics {
	if cfg.Namespace == "" {
		cfg.Namespace = "ecomdw_etl"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &RunMetrics{
		registry: prometheus.NewRegistry(),
		path:     cfg.TextfilePath,
		logger:   logger.Named("metrics"),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by final status.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of pipeline runs.",
			Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200, 1800, 3600, 7200},
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last pipeline run finished.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time the last successful pipeline run finished.",
		}),
		lastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "last_run_success",
			Help:      "1 if the last pipeline run succeeded, 0 otherwise.",
		}),
		rows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "rows",
			Help:      "Rows handled by the last pipeline run per stage.",
		}, []string{"stage"}),
		quality: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "quality_events",
			Help:      "Recovered data-quality events of the last pipeline run per kind.",
		}, []string{"kind"}),
	}

	m.registry.MustRegister(
		m.runsTotal,
		m.runDuration,
		m.lastRun,
		m.lastSuccess,
		m.lastRunSuccess,
		m.rows,
		m.quality,
	)
	return m
}

// Registry returns the registry holding the run metrics
func (m *RunMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRun records a finished run
func (m *RunMetrics) ObserveRun(run *warehouse.Run) {
	if run == nil || !run.Status.IsTerminal() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	finished := time.Now()
	if run.CompletedAt != nil {
		finished = *run.CompletedAt
	}

	m.runsTotal.WithLabelValues(string(run.Status)).Inc()
	m.runDuration.Observe(run.Duration().Seconds())
	m.lastRun.Set(float64(finished.Unix()))
	if run.Status == warehouse.RunStatusSucceeded {
		m.lastSuccess.Set(float64(finished.Unix()))
		m.lastRunSuccess.Set(1)
	} else {
		m.lastRunSuccess.Set(0)
	}

	c := run.Counts
	m.rows.WithLabelValues(StageExtracted).Set(float64(c.RowsExtracted))
	m.rows.WithLabelValues(StageStaged).Set(float64(c.RowsStaged))
	m.rows.WithLabelValues(StageDimension).Set(float64(c.DimensionRows))
	m.rows.WithLabelValues(StageFact).Set(float64(c.FactRows))

	m.quality.WithLabelValues(QualitySchemaDrift).Set(float64(c.SchemaDrifts))
	m.quality.WithLabelValues(QualityParseWarning).Set(float64(c.ParseWarnings))
	m.quality.WithLabelValues(QualityIntegrityGap).Set(float64(c.IntegrityGaps))
	m.quality.WithLabelValues(QualityGeolocationDropped).Set(float64(c.GeolocationDropped))
	m.quality.WithLabelValues(QualityOrdersWithoutItems).Set(float64(c.OrdersWithoutItems))
	m.quality.WithLabelValues(QualityDeliveryOutlier).Set(float64(c.DeliveryOutliers))
}

// Flush writes the current metrics to the configured textfile. The write
// goes through a temporary file and a rename, so the collector never reads
// a partial file.
func (m *RunMetrics) Flush() error {
	if m.path == "" {
		return ErrNoTextfile
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := prometheus.WriteToTextfile(m.path, m.registry); err != nil {
		return err
	}
	m.logger.Debug("Run metrics written", zap.String("path", m.path))
	return nil
}
