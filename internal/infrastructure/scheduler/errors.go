package scheduler

import "errors"

var (
	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrAlreadyRunning is returned when a run is requested while one is in progress
	ErrAlreadyRunning = errors.New("pipeline run already in progress")
)
