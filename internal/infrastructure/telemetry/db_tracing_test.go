package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type tracedRow struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"size:100"`
}

func setupTracedDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&tracedRow{}))
	return db
}

func TestDefaultDBTracingConfig(t *testing.T) {
	cfg := DefaultDBTracingConfig()

	assert.False(t, cfg.Enabled)
	assert.False(t, cfg.LogFullSQL)
	assert.Equal(t, 200*time.Millisecond, cfg.SlowQueryThresh)
	assert.Equal(t, "postgresql", cfg.DBSystem)
}

func TestDBTracingPlugin_Register(t *testing.T) {
	t.Run("disabled registers nothing", func(t *testing.T) {
		db := setupTracedDB(t)
		require.NoError(t, NewDBTracingPlugin(DefaultDBTracingConfig(), zap.NewNop()).Register(db))
		assert.Nil(t, db.Callback().Create().Get("otel_timing:before_create"))
	})

	t.Run("statements become child spans", func(t *testing.T) {
		db := setupTracedDB(t)
		sr := tracetest.NewSpanRecorder()
		tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
		defer func() { _ = tp.Shutdown(context.Background()) }()

		cfg := DefaultDBTracingConfig()
		cfg.Enabled = true
		cfg.DBSystem = "sqlite"
		cfg.SlowQueryThresh = -1
		cfg.TracerProvider = tp
		require.NoError(t, NewDBTracingPlugin(cfg, zap.NewNop()).Register(db))

		ctx, parent := tp.Tracer("test").Start(context.Background(), "pipeline.staging")
		rows := []tracedRow{{Name: "a"}, {Name: "b"}}
		require.NoError(t, db.WithContext(ctx).Create(&rows).Error)
		parent.End()

		var insert sdktrace.ReadOnlySpan
		for _, s := range sr.Ended() {
			if s.Parent().SpanID() == parent.SpanContext().SpanID() {
				insert = s
			}
		}
		require.NotNil(t, insert, "insert span is a child of the phase span")

		attrs := attrMap(insert.Attributes())
		assert.Equal(t, int64(2), attrs["db.rows_affected"].AsInt64())
		assert.Equal(t, "traced_rows", attrs["db.sql.table"].AsString())
		assert.True(t, attrs["db.slow_query"].AsBool())
	})
}
