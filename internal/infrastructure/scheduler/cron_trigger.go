// Package scheduler triggers recurring pipeline runs on a cron expression.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// RunFunc executes one pipeline run
type RunFunc func(ctx context.Context) error

// CronTriggerConfig holds configuration for the cron trigger
type CronTriggerConfig struct {
	// Spec is a standard five field cron expression or a descriptor such as
	// "@daily" or "@every 1h"
	Spec string

	// RunTimeout bounds a single run; zero means no limit
	RunTimeout time.Duration
}

// DefaultCronTriggerConfig returns the default nightly schedule
func DefaultCronTriggerConfig() CronTriggerConfig {
	return CronTriggerConfig{
		Spec:       "0 2 * * *", // 2am
		RunTimeout: 2 * time.Hour,
	}
}

// Validate checks that the cron expression parses
func (c CronTriggerConfig) Validate() error {
	if c.Spec == "" {
		return fmt.Errorf("%w: cron expression is required", ErrInvalidConfig)
	}
	if _, err := cron.ParseStandard(c.Spec); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.RunTimeout < 0 {
		return fmt.Errorf("%w: run timeout cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// CronTrigger runs the pipeline on a schedule. At most one run is in
// progress; a tick that fires during a run is skipped.
type CronTrigger struct {
	config CronTriggerConfig
	run    RunFunc
	logger *zap.Logger

	mu        sync.Mutex
	cron      *cron.Cron
	entry     cron.EntryID
	cancel    context.CancelFunc
	isRunning bool

	busy    atomic.Bool
	started atomic.Int64
	failed  atomic.Int64
	skipped atomic.Int64
}

// NewCronTrigger creates a new cron trigger
func NewCronTrigger(config CronTriggerConfig, run RunFunc, logger *zap.Logger) (*CronTrigger, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("%w: run function is required", ErrInvalidConfig)
	}
	return &CronTrigger{
		config: config,
		run:    run,
		logger: logger.Named("scheduler"),
	}, nil
}

// Start schedules the runs. Runs use contexts derived from ctx.
func (c *CronTrigger) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isRunning {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	cr := cron.New()
	entry, err := cr.AddFunc(c.config.Spec, func() { c.tick(ctx) })
	if err != nil {
		cancel()
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	c.cron = cr
	c.entry = entry
	c.cancel = cancel
	c.isRunning = true
	cr.Start()

	c.logger.Info("Cron trigger started",
		zap.String("cron", c.config.Spec),
		zap.Duration("run_timeout", c.config.RunTimeout),
		zap.Time("next_run", cr.Entry(entry).Next),
	)
	return nil
}

// Stop stops scheduling, cancels an in-flight run and waits for it to
// return or for ctx to expire
func (c *CronTrigger) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = false
	cr := c.cron
	cancel := c.cancel
	c.mu.Unlock()

	cancel()
	done := cr.Stop()

	select {
	case <-done.Done():
		c.logger.Info("Cron trigger stopped",
			zap.Int64("runs", c.started.Load()),
			zap.Int64("failed", c.failed.Load()),
			zap.Int64("skipped", c.skipped.Load()),
		)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NextRun returns the next scheduled run time, zero when not started
func (c *CronTrigger) NextRun() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron == nil {
		return time.Time{}
	}
	return c.cron.Entry(c.entry).Next
}

// TriggerNow runs the pipeline immediately in the caller's goroutine unless
// a run is already in progress
func (c *CronTrigger) TriggerNow(ctx context.Context) error {
	if !c.busy.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer c.busy.Store(false)
	return c.execute(ctx)
}

// tick is the cron callback
func (c *CronTrigger) tick(ctx context.Context) {
	if !c.busy.CompareAndSwap(false, true) {
		c.skipped.Add(1)
		c.logger.Warn("Previous run still in progress, skipping scheduled run")
		return
	}
	defer c.busy.Store(false)

	if ctx.Err() != nil {
		return
	}
	// Failures are logged and counted; the schedule keeps going
	_ = c.execute(ctx)

	if next := c.NextRun(); !next.IsZero() {
		c.logger.Info("Next scheduled run", zap.Time("next_run", next))
	}
}

func (c *CronTrigger) execute(ctx context.Context) error {
	if c.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.RunTimeout)
		defer cancel()
	}

	c.started.Add(1)
	start := time.Now()
	c.logger.Info("Scheduled pipeline run starting")

	if err := c.run(ctx); err != nil {
		c.failed.Add(1)
		c.logger.Error("Scheduled pipeline run failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return err
	}

	c.logger.Info("Scheduled pipeline run completed", zap.Duration("elapsed", time.Since(start)))
	return nil
}

// Stats returns how many runs were started, failed and skipped
func (c *CronTrigger) Stats() (started, failed, skipped int64) {
	return c.started.Load(), c.failed.Load(), c.skipped.Load()
}
