package shared

import (
	"fmt"
	"strings"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Error codes for the pipeline error taxonomy
const (
	ErrCodeSchemaDrift        = "SCHEMA_DRIFT"
	ErrCodeParseWarning       = "PARSE_WARNING"
	ErrCodeIntegrityGap       = "INTEGRITY_GAP"
	ErrCodePersistenceFailure = "PERSISTENCE_FAILURE"
)

// Common domain errors
var (
	ErrNotFound        = NewDomainError("NOT_FOUND", "Resource not found")
	ErrInvalidInput    = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrInvalidState    = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrMissingDataset  = NewDomainError("MISSING_DATASET", "Required dataset is not available")
	ErrUnknownDataset  = NewDomainError("UNKNOWN_DATASET", "Dataset is not one of the known sources")
	ErrPolicyNotFound  = NewDomainError("POLICY_NOT_FOUND", "No cleaning policy defined for dataset")
	ErrInvalidPolicy   = NewDomainError("INVALID_POLICY", "Cleaning policy is invalid")
	ErrOrphanedFactKey = NewDomainError("ORPHANED_FACT_KEY", "Fact table references missing dimension rows")
)

// SchemaDriftError reports unexpected or missing columns for a dataset.
// It is fatal for that dataset's run only.
type SchemaDriftError struct {
	Dataset    string
	Unexpected []string
	Missing    []string
}

// Error implements the error interface
func (e *SchemaDriftError) Error() string {
	var parts []string
	if len(e.Unexpected) > 0 {
		parts = append(parts, "unexpected columns ["+strings.Join(e.Unexpected, ", ")+"]")
	}
	if len(e.Missing) > 0 {
		parts = append(parts, "missing columns ["+strings.Join(e.Missing, ", ")+"]")
	}
	return fmt.Sprintf("schema drift in dataset %s: %s", e.Dataset, strings.Join(parts, "; "))
}

// Code returns the taxonomy code
func (e *SchemaDriftError) Code() string {
	return ErrCodeSchemaDrift
}

// ParseWarning records a field that failed type or date conversion.
// The field is treated as absent; the warning is never fatal.
type ParseWarning struct {
	Dataset string `json:"dataset"`
	Column  string `json:"column"`
	Row     int    `json:"row"`
	Value   string `json:"value,omitempty"`
	Reason  string `json:"reason"`
}

// Error implements the error interface
func (w ParseWarning) Error() string {
	return fmt.Sprintf("%s row %d, column '%s': %s (value %q)", w.Dataset, w.Row, w.Column, w.Reason, w.Value)
}

// IntegrityGap records a fact row whose dimension reference could not be
// resolved. The foreign key is nulled and the gap counted.
type IntegrityGap struct {
	OrderID    string `json:"order_id"`
	Key        string `json:"key"`
	NaturalKey string `json:"natural_key"`
}

// Error implements the error interface
func (g IntegrityGap) Error() string {
	return fmt.Sprintf("order %s: %s %q not found in dimension", g.OrderID, g.Key, g.NaturalKey)
}

// PersistenceError is returned when a warehouse transaction fails.
// Re-running is safe because every write is an upsert by natural key.
type PersistenceError struct {
	Phase string
	Table string
	Rows  int
	Err   error
}

// Error implements the error interface
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s phase failed on table %s (%d rows attempted): %v", e.Phase, e.Table, e.Rows, e.Err)
}

// Unwrap returns the underlying database error
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Code returns the taxonomy code
func (e *PersistenceError) Code() string {
	return ErrCodePersistenceFailure
}
