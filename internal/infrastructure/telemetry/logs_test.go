package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerProvider_Disabled(t *testing.T) {
	base := zap.NewNop()

	for _, cfg := range []LogsConfig{
		{Enabled: false, CollectorEndpoint: "localhost:4317"},
		{Enabled: true},
	} {
		lp, err := NewLoggerProvider(context.Background(), cfg, base)
		require.NoError(t, err)
		assert.False(t, lp.IsEnabled())
		assert.Same(t, base, lp.Bridge(base, "etl", zapcore.InfoLevel))
		assert.NoError(t, lp.Shutdown(context.Background()))
	}
}

func TestLevelFilterCore(t *testing.T) {
	inner, logs := observer.New(zapcore.DebugLevel)
	core := &levelFilterCore{Core: inner, minLevel: zapcore.WarnLevel}
	log := zap.New(core).With(zap.String("run_id", "r1"))

	log.Info("Dataset extracted")
	log.Warn("Geolocation points dropped")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "Geolocation points dropped", entry.Message)
	assert.Equal(t, "r1", entry.ContextMap()["run_id"])
	assert.False(t, core.Enabled(zapcore.DebugLevel))
}
