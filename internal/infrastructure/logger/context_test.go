package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObserved() (*zap.Logger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return zap.New(core), recorded
}

func TestWithContext(t *testing.T) {
	logger := zap.NewExample()
	ctx := WithContext(context.Background(), logger)

	assert.Same(t, logger, FromContext(ctx))
}

func TestFromContext_NotFound(t *testing.T) {
	logger := FromContext(context.Background())
	require.NotNil(t, logger)

	// nop logger must not panic
	logger.Info("ignored")
}

func TestFromContext_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), LoggerKey, "not a logger")
	assert.NotNil(t, FromContext(ctx))
}

func TestWithRunID(t *testing.T) {
	base, recorded := newObserved()

	ctx, enriched := WithRunID(context.Background(), base, "run-1")
	enriched.Info("Run started")

	assert.Equal(t, "run-1", GetRunID(ctx))
	assert.Same(t, enriched, FromContext(ctx))

	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Equal(t, "run-1", logs[0].ContextMap()["run_id"])
}

func TestWithPhase_Chained(t *testing.T) {
	base, recorded := newObserved()

	ctx, logger := WithRunID(context.Background(), base, "run-2")
	ctx, logger = WithPhase(ctx, logger, "staging")

	assert.Equal(t, "run-2", GetRunID(ctx))
	assert.Equal(t, "staging", GetPhase(ctx))

	L(ctx).Info("Loading staging tables")

	logs := recorded.All()
	require.Len(t, logs, 1)
	fields := logs[0].ContextMap()
	assert.Equal(t, "run-2", fields["run_id"])
	assert.Equal(t, "staging", fields["phase"])
	assert.Same(t, logger, L(ctx).Zap())
}

func TestGetters_Empty(t *testing.T) {
	assert.Empty(t, GetRunID(context.Background()))
	assert.Empty(t, GetPhase(context.Background()))
}

func TestWithLogger_AddsContextFields(t *testing.T) {
	base, recorded := newObserved()

	ctx := context.WithValue(context.Background(), RunIDKey, "run-3")
	ctx = context.WithValue(ctx, PhaseKey, "analytics")

	WithLogger(ctx, base).Warn("Integrity gap", zap.String("key", "seller_key"))

	logs := recorded.All()
	require.Len(t, logs, 1)
	fields := logs[0].ContextMap()
	assert.Equal(t, "run-3", fields["run_id"])
	assert.Equal(t, "analytics", fields["phase"])
	assert.Equal(t, "seller_key", fields["key"])
}

func TestWithLogger_NoContextFields(t *testing.T) {
	base, recorded := newObserved()

	WithLogger(context.Background(), base).Info("plain")

	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Empty(t, logs[0].ContextMap())
}

func TestWithLogger_NilLogger(t *testing.T) {
	cl := WithLogger(context.Background(), nil)
	require.NotNil(t, cl)
	cl.Info("ignored")
}

func TestContextLogger_LevelsAndWith(t *testing.T) {
	base, recorded := newObserved()

	cl := WithLogger(context.Background(), base).With(zap.String("dataset", "orders"))
	cl.Debug("debug")
	cl.Info("info")
	cl.Warn("warn")
	cl.Error("error")

	logs := recorded.All()
	require.Len(t, logs, 4)
	levels := []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
	for i, entry := range logs {
		assert.Equal(t, levels[i], entry.Level)
		assert.Equal(t, "orders", entry.ContextMap()["dataset"])
	}
}
