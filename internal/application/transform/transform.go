// Package transform holds the transform engine of the pipeline: cleaning,
// enrichment, metric derivation, fact assembly and dimension derivation.
package transform

import (
	"context"
	"errors"
	"fmt"

	"github.com/ecomdw/etl/internal/domain/dataset"
	"github.com/ecomdw/etl/internal/domain/shared"
	"github.com/ecomdw/etl/internal/domain/warehouse"
	"go.uber.org/zap"
)

// Options tunes the transform engine
type Options struct {
	MaxDeliveryDays int
	// WarningLogLimit caps individually logged parse warnings per column
	WarningLogLimit int
}

// Result is the complete output of one transform
type Result struct {
	Cleaned    map[dataset.Name]*dataset.Table
	Dimensions warehouse.Dimensions
	Facts      []warehouse.OrderFact
	Quality    Quality
	// DatasetErrors holds the datasets excluded from this run and why
	DatasetErrors map[dataset.Name]error
}

// Transformer runs the transform stages in order over whole datasets
type Transformer struct {
	cleaner   *Cleaner
	enricher  *Enricher
	assembler *FactAssembler
	logger    *zap.Logger
}

// NewTransformer creates a new Transformer
func NewTransformer(policies Policies, opts Options, logger *zap.Logger) *Transformer {
	cleaner := NewCleaner(policies, logger)
	if opts.WarningLogLimit > 0 {
		cleaner.warnLimit = opts.WarningLogLimit
	}
	return &Transformer{
		cleaner:   cleaner,
		enricher:  NewEnricher(logger),
		assembler: NewFactAssembler(opts.MaxDeliveryDays, logger),
		logger:    logger.Named("transform"),
	}
}

// Transform cleans, enriches and assembles the raw datasets. A dataset with
// schema drift is excluded and reported in Result.DatasetErrors; only a
// missing orders dataset fails the whole transform, since orders drive the
// fact table.
func (t *Transformer) Transform(ctx context.Context, raw map[dataset.Name]*dataset.Table) (*Result, error) {
	result := &Result{
		Cleaned:       make(map[dataset.Name]*dataset.Table, len(raw)),
		DatasetErrors: make(map[dataset.Name]error),
		Quality:       Quality{MissingValues: make(map[dataset.Name]int)},
	}

	for _, name := range dataset.All {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		table, ok := raw[name]
		if !ok || table == nil {
			t.logger.Warn("Dataset not available, treating as empty", zap.String("dataset", string(name)))
			continue
		}
		result.Quality.ParseWarnings += len(table.Warnings)
		result.Quality.MissingValues[name] = table.MissingValues()

		cleaned, err := t.cleaner.Clean(table)
		if err != nil {
			var drift *shared.SchemaDriftError
			if errors.As(err, &drift) {
				result.Quality.SchemaDrifts = append(result.Quality.SchemaDrifts, string(name))
				result.DatasetErrors[name] = err
				continue
			}
			return nil, fmt.Errorf("failed to clean %s: %w", name, err)
		}
		result.Quality.ParseWarnings += len(cleaned.Warnings)
		result.Cleaned[name] = cleaned
	}

	ordersTable, ok := result.Cleaned[dataset.Orders]
	if !ok {
		if cause, drifted := result.DatasetErrors[dataset.Orders]; drifted {
			return nil, fmt.Errorf("%w: orders: %w", shared.ErrMissingDataset, cause)
		}
		return nil, fmt.Errorf("%w: orders", shared.ErrMissingDataset)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	orders := dataset.DecodeOrders(ordersTable)
	customers, err := t.enricher.Customers(dataset.DecodeCustomers(result.Cleaned[dataset.Customers]), orders)
	if err != nil {
		return nil, fmt.Errorf("failed to enrich customers: %w", err)
	}
	products, err := t.enricher.Products(
		dataset.DecodeProducts(result.Cleaned[dataset.Products]),
		dataset.DecodeCategoryNames(result.Cleaned[dataset.CategoryTranslation]),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to enrich products: %w", err)
	}
	geolocation, dropped, err := t.enricher.Geolocation(dataset.DecodeGeolocation(result.Cleaned[dataset.Geolocation]))
	if err != nil {
		return nil, fmt.Errorf("failed to validate geolocation: %w", err)
	}
	result.Quality.GeolocationDropped = dropped
	sellers := dataset.DecodeSellers(result.Cleaned[dataset.Sellers])

	facts, stats, err := t.assembler.Assemble(FactInputs{
		Orders:    orders,
		Items:     dataset.DecodeOrderItems(result.Cleaned[dataset.OrderItems]),
		Payments:  dataset.DecodePayments(result.Cleaned[dataset.OrderPayments]),
		Reviews:   dataset.DecodeReviews(result.Cleaned[dataset.OrderReviews]),
		Customers: customers,
		Products:  products,
		Sellers:   sellers,
	})
	if err != nil {
		return nil, err
	}
	result.Facts = facts
	result.Quality.OrdersWithoutItems = stats.OrdersWithoutItems
	result.Quality.DeliveryOutliers = stats.DeliveryOutliers

	result.Dimensions, err = BuildDimensions(DimensionInputs{
		Facts:       facts,
		Customers:   customers,
		Products:    products,
		Sellers:     sellers,
		Geolocation: geolocation,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build dimensions: %w", err)
	}

	t.logger.Info("Transform completed",
		zap.Int("facts", len(result.Facts)),
		zap.Int("dim_time", len(result.Dimensions.Time)),
		zap.Int("dim_customers", len(result.Dimensions.Customers)),
		zap.Int("dim_products", len(result.Dimensions.Products)),
		zap.Int("dim_sellers", len(result.Dimensions.Sellers)),
		zap.Int("dim_geography", len(result.Dimensions.Geography)),
		zap.Int("parse_warnings", result.Quality.ParseWarnings),
		zap.Int("geolocation_dropped", result.Quality.GeolocationDropped),
		zap.Strings("schema_drifts", result.Quality.SchemaDrifts),
	)
	return result, nil
}
