// Package csvimport is the extraction collaborator of the pipeline: it reads
// the raw dataset files, checks them against the fixed raw schemas and
// produces typed raw tables.
package csvimport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ecomdw/etl/internal/domain/dataset"
	"github.com/ecomdw/etl/internal/domain/shared"
	"go.uber.org/zap"
)

// DefaultWarningLogLimit is how many conversion warnings per column are
// logged individually
const DefaultWarningLogLimit = 5

// ctxCheckInterval is how many rows are read between cancellation checks
const ctxCheckInterval = 10000

// naValues are field values read as absent, matching common CSV exports
var naValues = map[string]bool{
	"#N/A": true, "#NA": true, "N/A": true, "n/a": true, "NA": true, "<NA>": true,
	"NULL": true, "null": true, "NaN": true, "nan": true, "-NaN": true, "-nan": true,
	"None": true,
}

// Extractor reads the nine raw datasets from a Source
type Extractor struct {
	source     Source
	files      map[dataset.Name]string
	logger     *zap.Logger
	warnLimit  int
	parserOpts []ParserOption
}

// ExtractorOption is a functional option for Extractor configuration
type ExtractorOption func(*Extractor)

// WithFiles overrides dataset file names; datasets not listed keep their
// default file
func WithFiles(files map[dataset.Name]string) ExtractorOption {
	return func(e *Extractor) {
		for name, file := range files {
			if file != "" {
				e.files[name] = file
			}
		}
	}
}

// WithWarningLogLimit sets how many conversion warnings per column are logged
func WithWarningLogLimit(n int) ExtractorOption {
	return func(e *Extractor) {
		if n > 0 {
			e.warnLimit = n
		}
	}
}

// WithParserOptions configures the CSV parser of every dataset
func WithParserOptions(opts ...ParserOption) ExtractorOption {
	return func(e *Extractor) {
		e.parserOpts = append(e.parserOpts, opts...)
	}
}

// NewExtractor creates a new Extractor
func NewExtractor(source Source, logger *zap.Logger, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		source:    source,
		files:     dataset.DefaultFiles(),
		logger:    logger.Named("extract"),
		warnLimit: DefaultWarningLogLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extraction is the outcome of one ExtractAll call
type Extraction struct {
	Tables   map[dataset.Name]*dataset.Table
	Failures map[dataset.Name]error
	Elapsed  time.Duration
}

// Rows returns the total number of rows extracted
func (x *Extraction) Rows() int {
	total := 0
	for _, t := range x.Tables {
		total += t.Len()
	}
	return total
}

// ExtractAll reads every dataset. A dataset that cannot be read is logged,
// recorded in Failures and left out; the error return is reserved for
// cancellation.
func (e *Extractor) ExtractAll(ctx context.Context) (*Extraction, error) {
	start := time.Now()
	result := &Extraction{
		Tables:   make(map[dataset.Name]*dataset.Table, len(dataset.All)),
		Failures: make(map[dataset.Name]error),
	}

	for _, name := range dataset.All {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		table, err := e.Extract(ctx, name)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			e.logger.Warn("Dataset extraction failed",
				zap.String("dataset", string(name)),
				zap.Error(err),
			)
			result.Failures[name] = err
			continue
		}
		result.Tables[name] = table
	}

	result.Elapsed = time.Since(start)
	e.logger.Info("Extraction completed",
		zap.Duration("elapsed", result.Elapsed),
		zap.Int("datasets", len(result.Tables)),
		zap.Int("expected", len(dataset.All)),
		zap.Int("rows", result.Rows()),
	)
	return result, nil
}

// Extract reads one dataset. Errors are *DatasetError.
func (e *Extractor) Extract(ctx context.Context, name dataset.Name) (*dataset.Table, error) {
	schema, ok := dataset.SchemaFor(name)
	if !ok {
		return nil, shared.ErrUnknownDataset
	}
	file := e.files[name]
	location := e.source.Location(file)
	fail := func(err error) error {
		return &DatasetError{Dataset: string(name), Location: location, Err: err}
	}

	e.logger.Info("Extracting dataset",
		zap.String("dataset", string(name)),
		zap.String("location", location),
	)

	rc, err := e.source.Open(ctx, file)
	if err != nil {
		return nil, fail(err)
	}
	defer rc.Close()

	counter := &countingReader{r: rc}
	table, err := e.read(ctx, schema, counter, location)
	if err != nil {
		return nil, fail(err)
	}

	e.logger.Info("Dataset extracted",
		zap.String("dataset", string(name)),
		zap.Int("rows", table.Len()),
		zap.Int("columns", len(table.Columns)),
		zap.Int64("bytes", counter.n),
		zap.Int("missing_values", table.MissingValues()),
		zap.Int("parse_warnings", len(table.Warnings)),
	)
	e.logger.Debug("Dataset columns",
		zap.String("dataset", string(name)),
		zap.Strings("columns", table.ColumnNames()),
	)
	return table, nil
}

func (e *Extractor) read(ctx context.Context, schema dataset.Schema, r io.Reader, location string) (*dataset.Table, error) {
	parser, err := NewCSVParser(r, e.parserOpts...)
	if err != nil {
		return nil, err
	}
	if err := parser.ParseHeader(); err != nil {
		return nil, err
	}

	headers := parser.Headers()
	columns := make([]dataset.Column, len(headers))
	present := make(map[string]bool, len(headers))
	var extra []string
	for i, h := range headers {
		canon := dataset.Canonicalize(h)
		typ, known := schema.ColumnType(canon)
		if !known {
			typ = dataset.TypeString
			extra = append(extra, h)
		}
		present[canon] = true
		columns[i] = dataset.Column{Name: h, Type: typ}
	}

	var missing []string
	for _, c := range schema.Columns {
		if !present[c.Name] {
			missing = append(missing, c.Name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	if len(extra) > 0 {
		e.logger.Warn("Extra columns found",
			zap.String("dataset", string(schema.Name)),
			zap.Strings("columns", extra),
		)
	}

	table := &dataset.Table{
		Name:    schema.Name,
		Source:  location,
		Columns: columns,
	}
	warnings := NewWarningCollection(e.warnLimit)

	for {
		if parser.TotalRows()%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := parser.ReadRecord()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		row := make(dataset.Row, len(columns))
		for i, col := range columns {
			v, convErr := convertField(col.Type, rec.Fields[i])
			if convErr != nil {
				w := shared.ParseWarning{
					Dataset: string(schema.Name),
					Column:  col.Name,
					Row:     rec.LineNumber,
					Value:   rec.Fields[i],
					Reason:  convErr.Error(),
				}
				if warnings.Add(w) {
					e.logger.Warn("Parse warning",
						zap.String("dataset", w.Dataset),
						zap.String("column", w.Column),
						zap.Int("row", w.Row),
						zap.String("value", w.Value),
						zap.String("reason", w.Reason),
					)
				}
			}
			row[col.Name] = v
		}
		table.Rows = append(table.Rows, row)
	}

	for col, total := range warnings.Suppressed() {
		e.logger.Warn("Parse warnings suppressed",
			zap.String("dataset", string(schema.Name)),
			zap.String("column", col),
			zap.Int("total", total),
			zap.Int("logged", e.warnLimit),
		)
	}
	table.Warnings = warnings.Warnings()
	return table, nil
}

// convertField converts a raw field to the column type. Empty and NA fields
// are absent (nil). A failed conversion returns nil and the reason.
func convertField(typ dataset.ColumnType, raw string) (any, error) {
	if raw == "" || naValues[strings.TrimSpace(raw)] {
		return nil, nil
	}
	switch typ {
	case dataset.TypeInteger:
		s := strings.TrimSpace(raw)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt64 {
			return nil, fmt.Errorf("expected integer")
		}
		return int64(f), nil
	case dataset.TypeFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
			return nil, fmt.Errorf("expected number")
		}
		return f, nil
	default:
		return raw, nil
	}
}

// countingReader counts the bytes read through it
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
