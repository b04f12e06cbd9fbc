// Package dataset models the tabular datasets that flow through the pipeline:
// raw tables produced by extraction and cleaned tables produced by the
// Cleaning Normalizer.
package dataset

import (
	"time"

	"github.com/ecomdw/etl/internal/domain/shared"
)

// Name identifies one of the nine source datasets
type Name string

const (
	Customers           Name = "customers"
	Geolocation         Name = "geolocation"
	OrderItems          Name = "order_items"
	OrderPayments       Name = "order_payments"
	OrderReviews        Name = "order_reviews"
	Orders              Name = "orders"
	Products            Name = "products"
	Sellers             Name = "sellers"
	CategoryTranslation Name = "category_translation"
)

// All lists the nine sources in load order
var All = []Name{
	Customers,
	Geolocation,
	OrderItems,
	OrderPayments,
	OrderReviews,
	Orders,
	Products,
	Sellers,
	CategoryTranslation,
}

// IsValid checks if the name is one of the known sources
func (n Name) IsValid() bool {
	for _, known := range All {
		if n == known {
			return true
		}
	}
	return false
}

// ParseName converts a string to a dataset Name
func ParseName(s string) (Name, error) {
	n := Name(s)
	if !n.IsValid() {
		return "", shared.ErrUnknownDataset
	}
	return n, nil
}

// ColumnType is the type of a column in the fixed raw schema
type ColumnType string

const (
	TypeString    ColumnType = "string"
	TypeInteger   ColumnType = "integer"
	TypeFloat     ColumnType = "float"
	TypeTimestamp ColumnType = "timestamp"
)

// Column describes one column of a table
type Column struct {
	Name string
	Type ColumnType
}

// Row is a single record keyed by column name.
// A nil or missing value means the field is absent. Present values are
// string, int64, float64 or time.Time according to the column type.
type Row map[string]any

// Table is a named dataset as an ordered sequence of records.
// Tables produced by extraction are treated as immutable.
// Warnings holds the field conversions that failed while producing it.
type Table struct {
	Name     Name
	Source   string
	Columns  []Column
	Rows     []Row
	Warnings []shared.ParseWarning
}

// Len returns the number of rows
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// ColumnNames returns the column names in order
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// MissingValues counts absent fields across all rows and columns
func (t *Table) MissingValues() int {
	missing := 0
	for _, row := range t.Rows {
		for _, c := range t.Columns {
			if v, ok := row[c.Name]; !ok || v == nil {
				missing++
			}
		}
	}
	return missing
}

// String returns the value of a string column
func (r Row) String(col string) (string, bool) {
	v, ok := r[col].(string)
	return v, ok
}

// StringOr returns the string value or the fallback when absent
func (r Row) StringOr(col, fallback string) string {
	if v, ok := r.String(col); ok {
		return v
	}
	return fallback
}

// Int returns the value of an integer column
func (r Row) Int(col string) (int64, bool) {
	switch v := r[col].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	}
	return 0, false
}

// Float returns the value of a float column
func (r Row) Float(col string) (float64, bool) {
	switch v := r[col].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}

// Time returns the value of a timestamp column
func (r Row) Time(col string) (time.Time, bool) {
	v, ok := r[col].(time.Time)
	return v, ok
}
