package transform

import (
	"fmt"
	"strings"
	"time"

	"github.com/ecomdw/etl/internal/domain/dataset"
	"github.com/ecomdw/etl/internal/domain/shared"
	"go.uber.org/zap"
)

// dateLayouts are tried in order when parsing date-like columns
var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// Cleaner is the Cleaning Normalizer: it renames columns to their canonical
// form, applies the missing-value policy and parses dates. It never drops
// rows.
type Cleaner struct {
	policies  Policies
	logger    *zap.Logger
	warnLimit int
}

// NewCleaner creates a new Cleaner
func NewCleaner(policies Policies, logger *zap.Logger) *Cleaner {
	return &Cleaner{
		policies:  policies,
		logger:    logger.Named("cleaning"),
		warnLimit: DefaultWarningLogLimit,
	}
}

type columnMapping struct {
	source string
	target string
	typ    dataset.ColumnType
}

// Clean returns the cleaned copy of a raw table. Unmapped or missing
// columns produce a *shared.SchemaDriftError; unparsable dates become
// absent and are reported in the returned table's Warnings.
func (c *Cleaner) Clean(raw *dataset.Table) (*dataset.Table, error) {
	if raw == nil {
		return nil, shared.ErrMissingDataset
	}
	policy, err := c.policies.For(raw.Name)
	if err != nil {
		return nil, err
	}

	mappings, err := c.mapColumns(raw, policy)
	if err != nil {
		return nil, err
	}

	cleaned := &dataset.Table{
		Name:    raw.Name,
		Source:  raw.Source,
		Columns: make([]dataset.Column, len(mappings)),
		Rows:    make([]dataset.Row, 0, len(raw.Rows)),
	}
	for i, m := range mappings {
		cleaned.Columns[i] = dataset.Column{Name: m.target, Type: m.typ}
	}

	warnings := newWarningLog(c.logger, c.warnLimit)
	for i, row := range raw.Rows {
		out := make(dataset.Row, len(mappings))
		for _, m := range mappings {
			v := normalizeBlank(row[m.source])
			if v != nil && m.typ == dataset.TypeTimestamp {
				parsed, ok := parseDate(v)
				if !ok {
					w := shared.ParseWarning{
						Dataset: string(raw.Name),
						Column:  m.target,
						Row:     i + 1,
						Value:   fmt.Sprint(v),
						Reason:  "unrecognized date format",
					}
					cleaned.Warnings = append(cleaned.Warnings, w)
					warnings.record(w)
					v = nil
				} else {
					v = parsed
				}
			}
			if v == nil {
				v = missingValue(policy, m.target)
			}
			out[m.target] = v
		}
		cleaned.Rows = append(cleaned.Rows, out)
	}
	warnings.flush()

	c.logger.Debug("Dataset cleaned",
		zap.String("dataset", string(raw.Name)),
		zap.Int("rows", len(cleaned.Rows)),
		zap.Int("date_warnings", len(cleaned.Warnings)),
		zap.Strings("columns", cleaned.ColumnNames()),
	)
	return cleaned, nil
}

func (c *Cleaner) mapColumns(raw *dataset.Table, policy Policy) ([]columnMapping, error) {
	var unexpected []string
	seen := make(map[string]bool, len(raw.Columns))
	mappings := make([]columnMapping, 0, len(raw.Columns))

	for _, col := range raw.Columns {
		canon := dataset.Canonicalize(col.Name)
		target, ok := policy.Target(canon)
		if !ok {
			unexpected = append(unexpected, col.Name)
			continue
		}
		seen[canon] = true
		typ := col.Type
		if policy.IsDate(target) {
			typ = dataset.TypeTimestamp
		}
		mappings = append(mappings, columnMapping{source: col.Name, target: target, typ: typ})
	}

	var missing []string
	for _, col := range policy.SourceColumns() {
		if !seen[col] {
			missing = append(missing, col)
		}
	}

	if len(unexpected) > 0 || len(missing) > 0 {
		drift := &shared.SchemaDriftError{
			Dataset:    string(raw.Name),
			Unexpected: unexpected,
			Missing:    missing,
		}
		c.logger.Error("Schema drift detected",
			zap.String("dataset", string(raw.Name)),
			zap.Strings("unexpected", unexpected),
			zap.Strings("missing", missing),
		)
		return nil, drift
	}
	return mappings, nil
}

func missingValue(policy Policy, column string) any {
	if v, ok := policy.Fill[column]; ok {
		return v
	}
	if contains(policy.Unknown, column) {
		return dataset.UnknownSentinel
	}
	return nil
}

func normalizeBlank(v any) any {
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return nil
	}
	return v
}

func parseDate(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), true
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed.UTC(), true
			}
		}
	}
	return time.Time{}, false
}
