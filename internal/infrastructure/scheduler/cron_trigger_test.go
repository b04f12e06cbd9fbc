package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestCronTriggerConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  CronTriggerConfig
		wantErr bool
	}{
		{"default", DefaultCronTriggerConfig(), false},
		{"descriptor", CronTriggerConfig{Spec: "@every 1h"}, false},
		{"empty spec", CronTriggerConfig{}, true},
		{"six fields", CronTriggerConfig{Spec: "0 0 2 * * *"}, true},
		{"garbage", CronTriggerConfig{Spec: "tomorrow"}, true},
		{"negative timeout", CronTriggerConfig{Spec: "@daily", RunTimeout: -time.Second}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewCronTrigger(t *testing.T) {
	_, err := NewCronTrigger(DefaultCronTriggerConfig(), nil, zap.NewNop())
	assert.ErrorIs(t, err, ErrInvalidConfig)

	trigger, err := NewCronTrigger(DefaultCronTriggerConfig(), func(context.Context) error { return nil }, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, trigger.NextRun().IsZero())
}

func TestCronTrigger_RunsOnSchedule(t *testing.T) {
	var runs atomic.Int32
	trigger, err := NewCronTrigger(CronTriggerConfig{Spec: "@every 1s"}, func(context.Context) error {
		runs.Add(1)
		return nil
	}, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, trigger.Start(context.Background()))
	// Starting twice is a no-op
	require.NoError(t, trigger.Start(context.Background()))
	assert.False(t, trigger.NextRun().IsZero())

	require.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, trigger.Stop(ctx))
	require.NoError(t, trigger.Stop(ctx))
}

func TestCronTrigger_LogsNextRunAfterTick(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	trigger, err := NewCronTrigger(CronTriggerConfig{Spec: "@every 1s"}, func(context.Context) error {
		return nil
	}, zap.New(core))
	require.NoError(t, err)

	require.NoError(t, trigger.Start(context.Background()))
	require.Eventually(t, func() bool {
		return recorded.FilterMessage("Next scheduled run").Len() >= 1
	}, 3*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, trigger.Stop(ctx))

	entry := recorded.FilterMessage("Next scheduled run").All()[0]
	next, ok := entry.ContextMap()["next_run"].(time.Time)
	require.True(t, ok)
	assert.True(t, next.After(entry.Time.Add(-time.Second)))
}

func TestCronTrigger_OneRunAtATime(t *testing.T) {
	release := make(chan struct{})
	var active, maxActive atomic.Int32
	trigger, err := NewCronTrigger(CronTriggerConfig{Spec: "@every 1s"}, func(ctx context.Context) error {
		n := active.Add(1)
		defer active.Add(-1)
		if n > maxActive.Load() {
			maxActive.Store(n)
		}
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, trigger.Start(context.Background()))
	require.Eventually(t, func() bool { return active.Load() == 1 }, 3*time.Second, 20*time.Millisecond)

	assert.ErrorIs(t, trigger.TriggerNow(context.Background()), ErrAlreadyRunning)
	require.Eventually(t, func() bool {
		_, _, skipped := trigger.Stats()
		return skipped >= 1
	}, 3*time.Second, 20*time.Millisecond)

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, trigger.Stop(ctx))
	assert.Equal(t, int32(1), maxActive.Load())
}

func TestCronTrigger_TriggerNow(t *testing.T) {
	t.Run("applies run timeout", func(t *testing.T) {
		trigger, err := NewCronTrigger(CronTriggerConfig{Spec: "@daily", RunTimeout: time.Minute}, func(ctx context.Context) error {
			deadline, ok := ctx.Deadline()
			require.True(t, ok)
			assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
			return nil
		}, zap.NewNop())
		require.NoError(t, err)
		require.NoError(t, trigger.TriggerNow(context.Background()))

		started, failed, _ := trigger.Stats()
		assert.Equal(t, int64(1), started)
		assert.Equal(t, int64(0), failed)
	})

	t.Run("counts failures", func(t *testing.T) {
		boom := errors.New("boom")
		trigger, err := NewCronTrigger(CronTriggerConfig{Spec: "@daily"}, func(context.Context) error {
			return boom
		}, zap.NewNop())
		require.NoError(t, err)

		assert.ErrorIs(t, trigger.TriggerNow(context.Background()), boom)
		_, failed, _ := trigger.Stats()
		assert.Equal(t, int64(1), failed)
	})
}
