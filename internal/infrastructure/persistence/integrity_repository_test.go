package persistence

import (
	"context"
	"testing"

	"github.com/ecomdw/etl/internal/domain/shared"
	"github.com/ecomdw/etl/internal/domain/warehouse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestIntegrityRepository_Check(t *testing.T) {
	ctx := context.Background()

	t.Run("empty warehouse", func(t *testing.T) {
		db := setupWarehouseTestDB(t)
		repo := NewIntegrityRepository(db)

		report, err := repo.Check(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), report.TotalOrders)
		assert.Len(t, report.Keys, len(warehouse.ForeignKeys))
		assert.NoError(t, report.Err())
	})

	t.Run("coverage after a load with a gap", func(t *testing.T) {
		db := setupWarehouseTestDB(t)
		loader := NewWarehouseLoader(db, zap.NewNop())
		_, err := loader.LoadAnalytics(ctx, sampleDimensions(), []warehouse.OrderFact{
			sampleFact("o1", "c1"),
			sampleFact("o2", "ghost"),
		})
		require.NoError(t, err)

		report, err := NewIntegrityRepository(db).Check(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), report.TotalOrders)
		assert.Equal(t, int64(0), report.Orphans())
		assert.NoError(t, report.Err())
		assert.InDelta(t, 0.5, report.Coverage(warehouse.KeyCustomer), 1e-9)
		assert.InDelta(t, 1.0, report.Coverage(warehouse.KeyTime), 1e-9)
	})

	t.Run("detects orphaned references", func(t *testing.T) {
		db := setupWarehouseTestDB(t)
		loader := NewWarehouseLoader(db, zap.NewNop())
		_, err := loader.LoadAnalytics(ctx, sampleDimensions(), []warehouse.OrderFact{sampleFact("o1", "c1")})
		require.NoError(t, err)

		require.NoError(t, db.DB.Table(TableFactOrders).Where("order_id = ?", "o1").Update("seller_key", 9999).Error)

		report, err := NewIntegrityRepository(db).Check(ctx)
		require.NoError(t, err)
		for _, k := range report.Keys {
			if k.Key == warehouse.KeySeller {
				assert.Equal(t, int64(1), k.Orphans)
				assert.Equal(t, int64(1), k.NonNull)
			} else {
				assert.Zero(t, k.Orphans, k.Key)
			}
		}
		assert.ErrorIs(t, report.Err(), shared.ErrOrphanedFactKey)
	})
}
