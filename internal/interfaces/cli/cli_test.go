package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ecomdw/etl/internal/application/pipeline"
	"github.com/ecomdw/etl/internal/domain/warehouse"
	"github.com/ecomdw/etl/internal/infrastructure/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ordersCSV = `order_id,customer_id,order_status,order_purchase_timestamp,order_approved_at,order_delivered_carrier_date,order_delivered_customer_date,order_estimated_delivery_date
o1,c1,delivered,2018-01-02 10:00:00,2018-01-02 11:00:00,2018-01-03 10:00:00,2018-01-06 10:00:00,2018-01-10 00:00:00
o2,c2,shipped,2018-01-05 09:30:00,,,,2018-01-20 00:00:00
`

// setupDataDir writes the orders dataset only; the other datasets are absent
func setupDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "olist_orders_dataset.csv"), []byte(ordersCSV), 0o600))
	t.Setenv("ETL_SOURCE_DATA_DIR", dir)
	t.Setenv("ETL_LOG_LEVEL", "error")
	t.Setenv("ETL_PIPELINE_LOAD_TO_DB", "false")
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootCommand_Tree(t *testing.T) {
	root := NewRootCommand()

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["run"])
	assert.True(t, names["verify"])
	assert.True(t, names["schedule"])

	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
	assert.NotNil(t, root.PersistentFlags().Lookup("log-level"))

	run, _, err := root.Find([]string{"run"})
	require.NoError(t, err)
	for _, f := range []string{"no-load", "migrate", "json"} {
		assert.NotNil(t, run.Flags().Lookup(f), f)
	}
}

func TestRunCommand_NoLoad(t *testing.T) {
	t.Run("prints dataset summary", func(t *testing.T) {
		setupDataDir(t)
		out, err := execute(t, "run", "--no-load")
		require.NoError(t, err)

		assert.Contains(t, out, "succeeded")
		assert.Contains(t, out, "DATASET")
		assert.Contains(t, out, "orders")
		assert.Contains(t, out, "rows extracted")
		assert.NotContains(t, out, "rows staged")
	})

	t.Run("json report", func(t *testing.T) {
		setupDataDir(t)
		out, err := execute(t, "run", "--no-load", "--json")
		require.NoError(t, err)

		var report pipeline.RunReport
		require.NoError(t, json.Unmarshal([]byte(out), &report))
		assert.Equal(t, warehouse.RunStatusSucceeded, report.Status)
		assert.False(t, report.Loaded)
		assert.Equal(t, 2, report.Counts.RowsExtracted)
	})

	t.Run("writes metrics textfile", func(t *testing.T) {
		setupDataDir(t)
		path := filepath.Join(t.TempDir(), "etl.prom")
		t.Setenv("ETL_METRICS_TEXTFILE_PATH", path)

		_, err := execute(t, "run", "--no-load")
		require.NoError(t, err)

		b, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(b), `ecomdw_etl_runs_total{status="succeeded"} 1`)
	})

	t.Run("missing data directory", func(t *testing.T) {
		setupDataDir(t)
		t.Setenv("ETL_SOURCE_DATA_DIR", filepath.Join(t.TempDir(), "absent"))

		_, err := execute(t, "run", "--no-load")
		assert.ErrorContains(t, err, "dataset source unavailable")
	})

	t.Run("missing orders fails the run", func(t *testing.T) {
		t.Setenv("ETL_SOURCE_DATA_DIR", t.TempDir())
		t.Setenv("ETL_LOG_LEVEL", "error")

		out, err := execute(t, "run", "--no-load")
		assert.Error(t, err)
		assert.Contains(t, out, "failed")
	})
}

func TestRunCommand_InvalidConfig(t *testing.T) {
	_, err := execute(t, "run", "--config", filepath.Join(t.TempDir(), "absent.toml"))
	assert.ErrorContains(t, err, "failed to load configuration")
}

func TestScheduleCommand_InvalidCron(t *testing.T) {
	setupDataDir(t)
	_, err := execute(t, "schedule", "--cron", "whenever")
	assert.ErrorIs(t, err, scheduler.ErrInvalidConfig)
}
