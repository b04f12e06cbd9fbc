package warehouse

import (
	"fmt"
	"time"

	"github.com/ecomdw/etl/internal/domain/shared"
	"github.com/google/uuid"
)

// RunStatus represents the status of a pipeline run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
)

// IsValid checks if the status is valid
func (s RunStatus) IsValid() bool {
	switch s {
	case RunStatusRunning, RunStatusSucceeded, RunStatusPartial, RunStatusFailed:
		return true
	}
	return false
}

// IsTerminal returns true if this is a terminal state
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusSucceeded || s == RunStatusPartial || s == RunStatusFailed
}

// RunCounts are the run-level data quality and volume counters
type RunCounts struct {
	RowsExtracted      int `json:"rows_extracted"`
	RowsStaged         int `json:"rows_staged"`
	DimensionRows      int `json:"dimension_rows"`
	FactRows           int `json:"fact_rows"`
	SchemaDrifts       int `json:"schema_drifts"`
	ParseWarnings      int `json:"parse_warnings"`
	IntegrityGaps      int `json:"integrity_gaps"`
	GeolocationDropped int `json:"geolocation_dropped"`
	OrdersWithoutItems int `json:"orders_without_items"`
	DeliveryOutliers   int `json:"delivery_outliers"`
}

// Run tracks one execution of the pipeline in the audit history
type Run struct {
	ID          uuid.UUID  `json:"id"`
	Status      RunStatus  `json:"status"`
	Source      string     `json:"source"`
	Counts      RunCounts  `json:"counts"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewRun creates a run in the running state
func NewRun(id uuid.UUID, source string) (*Run, error) {
	if id == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_RUN_ID", "Run ID cannot be empty")
	}
	if source == "" {
		return nil, shared.NewDomainError("INVALID_SOURCE", "Run source cannot be empty")
	}
	return &Run{
		ID:        id,
		Status:    RunStatusRunning,
		Source:    source,
		StartedAt: time.Now().UTC(),
	}, nil
}

// Succeed marks the run as completed without errors
func (r *Run) Succeed(counts RunCounts) error {
	if r.Status != RunStatusRunning {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot complete from state: %s", r.Status))
	}
	r.finish(RunStatusSucceeded, counts, "")
	return nil
}

// Fail marks the run as failed. partial is true when at least one phase
// committed before the failure.
func (r *Run) Fail(counts RunCounts, cause error, partial bool) error {
	if r.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot fail from terminal state: %s", r.Status))
	}
	status := RunStatusFailed
	if partial {
		status = RunStatusPartial
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	r.finish(status, counts, msg)
	return nil
}

func (r *Run) finish(status RunStatus, counts RunCounts, msg string) {
	now := time.Now().UTC()
	r.Status = status
	r.Counts = counts
	r.Error = msg
	r.CompletedAt = &now
}

// Duration returns the duration of the run
func (r *Run) Duration() time.Duration {
	end := time.Now().UTC()
	if r.CompletedAt != nil {
		end = *r.CompletedAt
	}
	return end.Sub(r.StartedAt)
}
