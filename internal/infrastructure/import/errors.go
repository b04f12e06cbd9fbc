package csvimport

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ecomdw/etl/internal/domain/shared"
)

// Common extraction errors
var (
	// ErrEmptyFile is returned when the CSV file is empty
	ErrEmptyFile = errors.New("CSV file is empty")

	// ErrInvalidEncoding is returned when the file is not UTF-8
	ErrInvalidEncoding = errors.New("invalid file encoding")

	// ErrMissingHeader is returned when the CSV file has no header row
	ErrMissingHeader = errors.New("CSV file missing header row")

	// ErrMissingColumns is returned when required schema columns are absent
	ErrMissingColumns = errors.New("CSV file missing required columns")

	// ErrMalformedRow is returned when a row cannot be tokenized
	ErrMalformedRow = errors.New("malformed CSV row")
)

// DatasetError reports why one dataset could not be extracted
type DatasetError struct {
	Dataset  string
	Location string
	Err      error
}

// Error implements the error interface
func (e *DatasetError) Error() string {
	return fmt.Sprintf("extract %s from %s: %v", e.Dataset, e.Location, e.Err)
}

// Unwrap returns the underlying error
func (e *DatasetError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether the dataset file does not exist
func (e *DatasetError) IsNotFound() bool {
	return errors.Is(e.Err, shared.ErrNotFound)
}

// WarningCollection gathers the conversion warnings of one dataset and
// tells the caller which ones to log: the first logLimit per column.
type WarningCollection struct {
	warnings  []shared.ParseWarning
	logLimit  int
	perColumn map[string]int
}

// NewWarningCollection creates a new WarningCollection
func NewWarningCollection(logLimit int) *WarningCollection {
	if logLimit <= 0 {
		logLimit = DefaultWarningLogLimit
	}
	return &WarningCollection{
		logLimit:  logLimit,
		perColumn: make(map[string]int),
	}
}

// Add records a warning and reports whether it is within the log limit
func (wc *WarningCollection) Add(w shared.ParseWarning) bool {
	wc.warnings = append(wc.warnings, w)
	wc.perColumn[w.Column]++
	return wc.perColumn[w.Column] <= wc.logLimit
}

// Warnings returns every recorded warning
func (wc *WarningCollection) Warnings() []shared.ParseWarning {
	return wc.warnings
}

// TotalCount returns the number of recorded warnings
func (wc *WarningCollection) TotalCount() int {
	return len(wc.warnings)
}

// Suppressed returns the total per column for columns that went over the
// log limit
func (wc *WarningCollection) Suppressed() map[string]int {
	out := make(map[string]int)
	for col, n := range wc.perColumn {
		if n > wc.logLimit {
			out[col] = n
		}
	}
	return out
}

// String returns a one-line summary per column
func (wc *WarningCollection) String() string {
	if len(wc.warnings) == 0 {
		return "no warnings"
	}

	cols := make([]string, 0, len(wc.perColumn))
	for col := range wc.perColumn {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d warning(s)", len(wc.warnings))
	for _, col := range cols {
		fmt.Fprintf(&sb, "; %s: %d", col, wc.perColumn[col])
	}
	return sb.String()
}
