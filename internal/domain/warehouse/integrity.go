package warehouse

import (
	"fmt"

	"github.com/ecomdw/etl/internal/domain/shared"
)

// ForeignKey names a foreign key column of fact_orders
type ForeignKey string

const (
	KeyTime      ForeignKey = "time_id"
	KeyCustomer  ForeignKey = "customer_key"
	KeyProduct   ForeignKey = "product_key"
	KeySeller    ForeignKey = "seller_key"
	KeyGeography ForeignKey = "geography_key"
)

// ForeignKeys lists the fact foreign keys in report order
var ForeignKeys = []ForeignKey{KeyTime, KeyCustomer, KeyProduct, KeySeller, KeyGeography}

// Dimension returns the dimension table the key references
func (k ForeignKey) Dimension() string {
	switch k {
	case KeyTime:
		return "dim_time"
	case KeyCustomer:
		return "dim_customers"
	case KeyProduct:
		return "dim_products"
	case KeySeller:
		return "dim_sellers"
	case KeyGeography:
		return "dim_geography"
	}
	return ""
}

// KeyCoverage is the integrity summary of one fact foreign key
type KeyCoverage struct {
	Key     ForeignKey `json:"key"`
	NonNull int64      `json:"non_null"`
	Orphans int64      `json:"orphans"`
}

// IntegrityReport summarizes referential completeness of fact_orders
type IntegrityReport struct {
	TotalOrders int64         `json:"total_orders"`
	Keys        []KeyCoverage `json:"keys"`
}

// Coverage returns the share of orders with a non-null value for the key
func (r *IntegrityReport) Coverage(key ForeignKey) float64 {
	if r.TotalOrders == 0 {
		return 0
	}
	for _, k := range r.Keys {
		if k.Key == key {
			return float64(k.NonNull) / float64(r.TotalOrders)
		}
	}
	return 0
}

// Orphans returns the total number of dangling references
func (r *IntegrityReport) Orphans() int64 {
	var n int64
	for _, k := range r.Keys {
		n += k.Orphans
	}
	return n
}

// Err returns ErrOrphanedFactKey wrapped with details when any key dangles
func (r *IntegrityReport) Err() error {
	if r.Orphans() == 0 {
		return nil
	}
	for _, k := range r.Keys {
		if k.Orphans > 0 {
			return fmt.Errorf("%w: %d orphaned values in %s", shared.ErrOrphanedFactKey, k.Orphans, k.Key)
		}
	}
	return shared.ErrOrphanedFactKey
}
