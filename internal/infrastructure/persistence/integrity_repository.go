package persistence

import (
	"context"
	"fmt"

	"github.com/ecomdw/etl/internal/domain/warehouse"
	"gorm.io/gorm"
)

// IntegrityRepository reports referential completeness of fact_orders
type IntegrityRepository struct {
	db     *gorm.DB
	tables TableNames
}

// NewIntegrityRepository creates a new IntegrityRepository
func NewIntegrityRepository(db *Database) *IntegrityRepository {
	return &IntegrityRepository{db: db.DB, tables: db.Tables}
}

type keyCounts struct {
	NonNull int64
	Orphans int64
}

// Check counts, for every fact foreign key, the non-null values and the
// values with no matching dimension row
func (r *IntegrityRepository) Check(ctx context.Context) (*warehouse.IntegrityReport, error) {
	db := r.db.WithContext(ctx)
	fact := r.tables.Analytics(TableFactOrders)

	report := &warehouse.IntegrityReport{Keys: make([]warehouse.KeyCoverage, 0, len(warehouse.ForeignKeys))}
	if err := db.Table(fact).Count(&report.TotalOrders).Error; err != nil {
		return nil, fmt.Errorf("failed to count %s: %w", fact, err)
	}

	for _, key := range warehouse.ForeignKeys {
		dim := r.tables.Analytics(key.Dimension())
		col := string(key)
		// Dimension primary keys share the name of the fact column
		query := fmt.Sprintf(
			"SELECT COUNT(f.%[1]s) AS non_null, "+
				"COUNT(CASE WHEN f.%[1]s IS NOT NULL AND d.%[1]s IS NULL THEN 1 END) AS orphans "+
				"FROM %[2]s f LEFT JOIN %[3]s d ON d.%[1]s = f.%[1]s",
			col, fact, dim,
		)
		var counts keyCounts
		if err := db.Raw(query).Scan(&counts).Error; err != nil {
			return nil, fmt.Errorf("failed to check %s: %w", col, err)
		}
		report.Keys = append(report.Keys, warehouse.KeyCoverage{
			Key:     key,
			NonNull: counts.NonNull,
			Orphans: counts.Orphans,
		})
	}
	return report, nil
}
