package persistence

import (
	"fmt"
	"time"

	"github.com/ecomdw/etl/internal/domain/dataset"
	"github.com/ecomdw/etl/internal/domain/shared"
)

// Staging bookkeeping columns added to every source table
const (
	ColumnSource        = "source"
	ColumnLoadTimestamp = "load_timestamp"
)

// StagingColumns returns the column list of a staging table: the raw schema
// columns in declared order followed by the bookkeeping columns
func StagingColumns(name dataset.Name) ([]string, error) {
	schema, ok := dataset.SchemaFor(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrUnknownDataset, name)
	}
	cols := make([]string, 0, len(schema.Columns)+2)
	for _, c := range schema.Columns {
		cols = append(cols, c.Name)
	}
	return append(cols, ColumnSource, ColumnLoadTimestamp), nil
}

// stagingRows maps a raw table onto its staging columns. Headers are matched
// by canonical name so a source spelled "Customer ID" lands in customer_id.
// Columns outside the raw schema are not staged. Values are copied as read.
func stagingRows(table *dataset.Table, source string, loadedAt time.Time) ([]map[string]any, error) {
	schema, ok := dataset.SchemaFor(table.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrUnknownDataset, table.Name)
	}

	header := make(map[string]string, len(table.Columns))
	for _, c := range table.Columns {
		canonical := dataset.Canonicalize(c.Name)
		if _, seen := header[canonical]; !seen {
			header[canonical] = c.Name
		}
	}

	rows := make([]map[string]any, 0, len(table.Rows))
	for _, r := range table.Rows {
		row := make(map[string]any, len(schema.Columns)+2)
		for _, c := range schema.Columns {
			var v any
			if rawName, ok := header[c.Name]; ok {
				v = r[rawName]
			}
			row[c.Name] = v
		}
		row[ColumnSource] = source
		row[ColumnLoadTimestamp] = loadedAt
		rows = append(rows, row)
	}
	return rows, nil
}
