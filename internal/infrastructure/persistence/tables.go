package persistence

import (
	"github.com/ecomdw/etl/internal/domain/dataset"
	"github.com/ecomdw/etl/internal/infrastructure/config"
)

// Unqualified warehouse table names
const (
	TableDimTime      = "dim_time"
	TableDimCustomers = "dim_customers"
	TableDimProducts  = "dim_products"
	TableDimSellers   = "dim_sellers"
	TableDimGeography = "dim_geography"
	TableFactOrders   = "fact_orders"
	TableRuns         = "etl_runs"
)

// TableNames qualifies warehouse tables with their layer schema.
// An empty schema yields the bare table name, which is what the
// in-memory test databases use.
type TableNames struct {
	StagingSchema   string
	AnalyticsSchema string
	AuditSchema     string
}

// NewTableNames creates TableNames from the warehouse configuration
func NewTableNames(cfg config.WarehouseConfig) TableNames {
	return TableNames{
		StagingSchema:   cfg.StagingSchema,
		AnalyticsSchema: cfg.AnalyticsSchema,
		AuditSchema:     cfg.AuditSchema,
	}
}

// Staging returns the staging table of a source dataset
func (n TableNames) Staging(name dataset.Name) string {
	return qualify(n.StagingSchema, string(name))
}

// Analytics returns a dimension or fact table name
func (n TableNames) Analytics(table string) string {
	return qualify(n.AnalyticsSchema, table)
}

// Runs returns the run history table
func (n TableNames) Runs() string {
	return qualify(n.AuditSchema, TableRuns)
}

func qualify(schema, table string) string {
	if schema == "" {
		return table
	}
	return schema + "." + table
}
