package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ecomdw/etl/internal/domain/dataset"
	"github.com/ecomdw/etl/internal/domain/shared"
	"github.com/ecomdw/etl/internal/domain/warehouse"
	"github.com/ecomdw/etl/internal/infrastructure/persistence/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Load phases reported in PersistenceError
const (
	PhaseStaging   = "staging"
	PhaseAnalytics = "analytics"
)

const (
	// DefaultBatchSize is the number of rows per INSERT statement
	DefaultBatchSize = 1000
	// DefaultSourceLabel tags staging rows written by this loader
	DefaultSourceLabel = "olist"
	// DefaultGapLogLimit caps individually logged integrity gaps
	DefaultGapLogLimit = 20
)

// WarehouseLoader persists a run into the two warehouse layers: raw
// snapshots into staging and the star schema into analytics.
type WarehouseLoader struct {
	db          *gorm.DB
	tables      TableNames
	batchSize   int
	sourceLabel string
	gapLogLimit int
	logger      *zap.Logger
}

// LoaderOption configures a WarehouseLoader
type LoaderOption func(*WarehouseLoader)

// WithBatchSize sets the number of rows per INSERT statement
func WithBatchSize(n int) LoaderOption {
	return func(l *WarehouseLoader) {
		if n > 0 {
			l.batchSize = n
		}
	}
}

// WithSourceLabel sets the source tag stamped on staging rows
func WithSourceLabel(label string) LoaderOption {
	return func(l *WarehouseLoader) {
		if label != "" {
			l.sourceLabel = label
		}
	}
}

// WithGapLogLimit caps how many integrity gaps are logged one by one
func WithGapLogLimit(n int) LoaderOption {
	return func(l *WarehouseLoader) {
		l.gapLogLimit = n
	}
}

// NewWarehouseLoader creates a new WarehouseLoader
func NewWarehouseLoader(db *Database, logger *zap.Logger, opts ...LoaderOption) *WarehouseLoader {
	l := &WarehouseLoader{
		db:          db.DB,
		tables:      db.Tables,
		batchSize:   DefaultBatchSize,
		sourceLabel: DefaultSourceLabel,
		gapLogLimit: DefaultGapLogLimit,
		logger:      logger.Named("loader"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SourceLabel returns the tag stamped on staging rows
func (l *WarehouseLoader) SourceLabel() string {
	return l.sourceLabel
}

// StagingResult reports what the staging phase wrote
type StagingResult struct {
	Rows    map[dataset.Name]int
	Skipped []dataset.Name
}

// Total returns the number of staged rows across all sources
func (r *StagingResult) Total() int {
	n := 0
	for _, c := range r.Rows {
		n += c
	}
	return n
}

// LoadStaging replaces the staging snapshot of every available source.
// Each source is one transaction: rows tagged with the loader's source label
// are deleted, then the raw rows are inserted with the label and loadedAt.
// A failed source is rolled back on its own and the remaining sources are
// still loaded; failures are returned joined as *shared.PersistenceError.
func (l *WarehouseLoader) LoadStaging(ctx context.Context, raw map[dataset.Name]*dataset.Table, loadedAt time.Time) (*StagingResult, error) {
	result := &StagingResult{Rows: make(map[dataset.Name]int, len(raw))}
	var errs []error

	for _, name := range dataset.All {
		if err := ctx.Err(); err != nil {
			return result, errors.Join(append(errs, err)...)
		}
		table, ok := raw[name]
		if !ok || table == nil {
			result.Skipped = append(result.Skipped, name)
			l.logger.Warn("Dataset not available, staging snapshot kept", zap.String("dataset", string(name)))
			continue
		}

		qualified := l.tables.Staging(name)
		rows, err := stagingRows(table, l.sourceLabel, loadedAt)
		if err != nil {
			errs = append(errs, &shared.PersistenceError{Phase: PhaseStaging, Table: qualified, Rows: table.Len(), Err: err})
			continue
		}

		err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec("DELETE FROM "+qualified+" WHERE "+ColumnSource+" = ?", l.sourceLabel).Error; err != nil {
				return fmt.Errorf("failed to clear staging snapshot: %w", err)
			}
			if len(rows) == 0 {
				return nil
			}
			if err := tx.Table(qualified).CreateInBatches(rows, l.batchSize).Error; err != nil {
				return fmt.Errorf("failed to insert staging rows: %w", err)
			}
			return nil
		})
		if err != nil {
			perr := &shared.PersistenceError{Phase: PhaseStaging, Table: qualified, Rows: len(rows), Err: err}
			l.logger.Error("Staging load failed",
				zap.String("table", qualified),
				zap.Int("rows", len(rows)),
				zap.Error(err),
			)
			errs = append(errs, perr)
			continue
		}

		result.Rows[name] = len(rows)
		l.logger.Info("Staging table loaded",
			zap.String("table", qualified),
			zap.Int("rows", len(rows)),
		)
	}

	l.logger.Info("Staging phase completed",
		zap.Int("rows", result.Total()),
		zap.Int("tables", len(result.Rows)),
		zap.Int("failed", len(errs)),
	)
	return result, errors.Join(errs...)
}

// AnalyticsResult reports what the analytics phase wrote
type AnalyticsResult struct {
	DimensionRows map[string]int
	FactRows      int
	Gaps          []shared.IntegrityGap
}

// TotalDimensionRows returns the number of upserted dimension rows
func (r *AnalyticsResult) TotalDimensionRows() int {
	n := 0
	for _, c := range r.DimensionRows {
		n += c
	}
	return n
}

// upsert is one idempotent write keyed by a natural key
type upsert struct {
	table    string
	rows     int
	conflict []string
	updates  []string
	values   any
}

// LoadAnalytics upserts the dimensions, commits them, resolves the facts'
// natural keys to surrogate keys and upserts fact_orders. A reference that
// does not resolve is nulled and reported as an IntegrityGap. The fact
// transaction only runs after the dimension transaction committed.
func (l *WarehouseLoader) LoadAnalytics(ctx context.Context, dims warehouse.Dimensions, facts []warehouse.OrderFact) (*AnalyticsResult, error) {
	result := &AnalyticsResult{DimensionRows: make(map[string]int)}
	db := l.db.WithContext(ctx)

	err := db.Transaction(func(tx *gorm.DB) error {
		for _, u := range dimensionUpserts(dims) {
			if err := l.run(tx, u); err != nil {
				return err
			}
			result.DimensionRows[u.table] = u.rows
		}
		return nil
	})
	if err != nil {
		result.DimensionRows = make(map[string]int)
		var perr *shared.PersistenceError
		if !errors.As(err, &perr) {
			err = &shared.PersistenceError{Phase: PhaseAnalytics, Table: l.tables.Analytics("dim_*"), Rows: dimensionCount(dims), Err: err}
		}
		l.logger.Error("Dimension load failed", zap.Error(err))
		return result, err
	}
	l.logger.Info("Dimensions committed", zap.Any("rows", result.DimensionRows))

	if len(facts) == 0 {
		return result, nil
	}

	idx, err := l.resolveKeys(db)
	if err != nil {
		return result, err
	}

	rows := make([]*models.FactOrderModel, 0, len(facts))
	for _, f := range facts {
		m := models.FactOrderModelFromDomain(f)
		result.Gaps = append(result.Gaps, idx.apply(f, m)...)
		rows = append(rows, m)
	}
	l.logGaps(result.Gaps)

	err = db.Transaction(func(tx *gorm.DB) error {
		return l.run(tx, upsert{
			table:    TableFactOrders,
			rows:     len(rows),
			conflict: []string{"order_id"},
			updates:  models.FactAttributeColumns,
			values:   rows,
		})
	})
	if err != nil {
		l.logger.Error("Fact load failed", zap.Error(err))
		return result, err
	}
	result.FactRows = len(rows)

	l.logger.Info("Analytics phase completed",
		zap.Int("dimension_rows", result.TotalDimensionRows()),
		zap.Int("fact_rows", result.FactRows),
		zap.Int("integrity_gaps", len(result.Gaps)),
	)
	return result, nil
}

func (l *WarehouseLoader) run(tx *gorm.DB, u upsert) error {
	if u.rows == 0 {
		return nil
	}
	qualified := l.tables.Analytics(u.table)
	conflict := make([]clause.Column, len(u.conflict))
	for i, c := range u.conflict {
		conflict[i] = clause.Column{Name: c}
	}
	err := tx.Table(qualified).
		Clauses(clause.OnConflict{
			Columns:   conflict,
			DoUpdates: clause.AssignmentColumns(u.updates),
		}).
		CreateInBatches(u.values, l.batchSize).Error
	if err != nil {
		return &shared.PersistenceError{Phase: PhaseAnalytics, Table: qualified, Rows: u.rows, Err: err}
	}
	return nil
}

func (l *WarehouseLoader) logGaps(gaps []shared.IntegrityGap) {
	for i, g := range gaps {
		if i >= l.gapLogLimit {
			l.logger.Warn("Integrity gaps suppressed",
				zap.Int("logged", l.gapLogLimit),
				zap.Int("total", len(gaps)),
			)
			return
		}
		l.logger.Warn("Dimension reference not found, foreign key nulled",
			zap.String("order_id", g.OrderID),
			zap.String("key", g.Key),
			zap.String("natural_key", g.NaturalKey),
		)
	}
}

func dimensionUpserts(dims warehouse.Dimensions) []upsert {
	timeRows := make([]*models.TimeDimModel, 0, len(dims.Time))
	for _, d := range dims.Time {
		timeRows = append(timeRows, models.TimeDimModelFromDomain(d))
	}
	customerRows := make([]*models.CustomerDimModel, 0, len(dims.Customers))
	for _, d := range dims.Customers {
		customerRows = append(customerRows, models.CustomerDimModelFromDomain(d))
	}
	productRows := make([]*models.ProductDimModel, 0, len(dims.Products))
	for _, d := range dims.Products {
		productRows = append(productRows, models.ProductDimModelFromDomain(d))
	}
	sellerRows := make([]*models.SellerDimModel, 0, len(dims.Sellers))
	for _, d := range dims.Sellers {
		sellerRows = append(sellerRows, models.SellerDimModelFromDomain(d))
	}
	geographyRows := make([]*models.GeographyDimModel, 0, len(dims.Geography))
	for _, d := range dims.Geography {
		geographyRows = append(geographyRows, models.GeographyDimModelFromDomain(d))
	}

	return []upsert{
		{
			table:    TableDimTime,
			rows:     len(timeRows),
			conflict: []string{"date_key"},
			updates:  []string{"order_date", "order_year", "order_month", "order_quarter", "day_of_week", "day_name"},
			values:   timeRows,
		},
		{
			table:    TableDimCustomers,
			rows:     len(customerRows),
			conflict: []string{"customer_id"},
			updates: []string{
				"customer_unique_id", "customer_city", "customer_state",
				"customer_zip_code_prefix", "is_repeat_customer", "total_orders",
			},
			values: customerRows,
		},
		{
			table:    TableDimProducts,
			rows:     len(productRows),
			conflict: []string{"product_id"},
			updates: []string{
				"product_category_name", "product_category_name_english", "product_photos_qty",
				"product_weight_g", "product_length_cm", "product_height_cm", "product_width_cm",
			},
			values: productRows,
		},
		{
			table:    TableDimSellers,
			rows:     len(sellerRows),
			conflict: []string{"seller_id"},
			updates:  []string{"seller_city", "seller_state", "seller_zip_code_prefix"},
			values:   sellerRows,
		},
		{
			table:    TableDimGeography,
			rows:     len(geographyRows),
			conflict: []string{"state", "city", "zip_code_prefix"},
			updates:  []string{"lat", "lng"},
			values:   geographyRows,
		},
	}
}

func dimensionCount(dims warehouse.Dimensions) int {
	return len(dims.Time) + len(dims.Customers) + len(dims.Products) + len(dims.Sellers) + len(dims.Geography)
}
