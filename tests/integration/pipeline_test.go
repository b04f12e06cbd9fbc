package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ecomdw/etl/internal/application/pipeline"
	"github.com/ecomdw/etl/internal/application/transform"
	"github.com/ecomdw/etl/internal/domain/warehouse"
	csvimport "github.com/ecomdw/etl/internal/infrastructure/import"
	"github.com/ecomdw/etl/internal/infrastructure/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fixtures = map[string]string{
	"olist_customers_dataset.csv": `customer_id,customer_unique_id,customer_zip_code_prefix,customer_city,customer_state
c1,u1,1001,sao paulo,SP
c2,u2,2002,rio de janeiro,RJ
c3,u1,1001,sao paulo,SP
`,
	"olist_geolocation_dataset.csv": `geolocation_zip_code_prefix,geolocation_lat,geolocation_lng,geolocation_city,geolocation_state
1001,-23.5,-46.6,sao paulo,SP
1001,-23.7,-46.8,sao paulo,SP
2002,-22.9,-43.2,rio de janeiro,RJ
3003,-25.4,-49.3,curitiba,PR
`,
	"olist_sellers_dataset.csv": `seller_id,seller_zip_code_prefix,seller_city,seller_state
s1,3003,curitiba,PR
`,
	"olist_products_dataset.csv": `product_id,product_category_name,product_name_lenght,product_description_lenght,product_photos_qty,product_weight_g,product_length_cm,product_height_cm,product_width_cm
p1,beleza_saude,40,300,2,500,20,10,15
p2,,,,,,,,
`,
	"product_category_name_translation.csv": `product_category_name,product_category_name_english
beleza_saude,health_beauty
`,
	"olist_orders_dataset.csv": `order_id,customer_id,order_status,order_purchase_timestamp,order_approved_at,order_delivered_carrier_date,order_delivered_customer_date,order_estimated_delivery_date
o1,c1,delivered,2018-01-02 10:00:00,2018-01-02 11:00:00,2018-01-03 10:00:00,2018-01-06 10:00:00,2018-01-10 00:00:00
o2,c2,shipped,2018-01-05 09:30:00,2018-01-05 10:00:00,2018-01-06 08:00:00,,2018-01-20 00:00:00
o3,c3,delivered,2018-02-11 14:00:00,2018-02-11 15:00:00,2018-02-12 09:00:00,2018-02-20 12:00:00,2018-02-18 00:00:00
o4,c9,canceled,2018-03-01 08:00:00,,,,2018-03-15 00:00:00
`,
	"olist_order_items_dataset.csv": `order_id,order_item_id,product_id,seller_id,shipping_limit_date,price,freight_value
o1,1,p1,s1,2018-01-04 10:00:00,100.00,15.50
o2,1,p2,s1,2018-01-07 09:30:00,50.00,8.00
o3,1,p1,s1,2018-02-13 14:00:00,100.00,15.50
o3,2,p2,s1,2018-02-13 14:00:00,20.00,4.00
`,
	"olist_order_payments_dataset.csv": `order_id,payment_sequential,payment_type,payment_installments,payment_value
o1,1,credit_card,3,115.50
o2,1,boleto,1,58.00
o3,1,credit_card,2,100.00
o3,2,voucher,1,39.50
`,
	"olist_order_reviews_dataset.csv": `review_id,order_id,review_score,review_comment_title,review_comment_message,review_creation_date,review_answer_timestamp
r1,o1,5,,,2018-01-07 00:00:00,2018-01-08 10:00:00
r2,o3,2,,atrasou,2018-02-21 00:00:00,2018-02-22 10:00:00
`,
}

func writeFixtures(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range fixtures {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	return dir
}

func newService(t *testing.T, tdb *TestDB, dataDir string) *pipeline.Service {
	t.Helper()

	log := zap.NewNop()
	policies, err := transform.DefaultPolicies()
	require.NoError(t, err)

	db := tdb.Database
	return pipeline.NewService(
		csvimport.NewExtractor(csvimport.NewDirSource(dataDir), log),
		transform.NewTransformer(policies, transform.Options{}, log),
		log,
		pipeline.WithLoader(persistence.NewWarehouseLoader(db, log), persistence.NewRunRepository(db)),
		pipeline.WithMigrator(tdb.Migrate()),
	)
}

type factSnapshot struct {
	OrderID             string
	CustomerKey         *int64
	ProductKey          *int64
	SellerKey           *int64
	GeographyKey        *int64
	TimeID              *int64
	OrderItemsCount     int
	PaymentTypes        *string
	DeliveryDays        *int
	ReviewScore         *int64
	ItemsMissing        bool
	MaxInstallments     *int64
	MainProductCategory *string
}

func snapshotFacts(t *testing.T, tdb *TestDB) []factSnapshot {
	t.Helper()

	var rows []factSnapshot
	require.NoError(t, tdb.Database.DB.Table("analytics.fact_orders").
		Select("order_id, customer_key, product_key, seller_key, geography_key, time_id, order_items_count, payment_types, delivery_days, review_score, items_missing, max_installments, main_product_category").
		Order("order_id").
		Scan(&rows).Error)
	return rows
}

func warehouseCounts(tdb *TestDB) map[string]int64 {
	counts := map[string]int64{}
	for _, table := range []string{
		"staging.orders",
		"staging.order_items",
		"staging.customers",
		"analytics.dim_time",
		"analytics.dim_customers",
		"analytics.dim_products",
		"analytics.dim_sellers",
		"analytics.dim_geography",
		"analytics.fact_orders",
	} {
		counts[table] = tdb.Count(table)
	}
	return counts
}

func TestPipeline_EndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tdb := NewTestDB(t)
	svc := newService(t, tdb, writeFixtures(t))
	ctx := context.Background()

	report, err := svc.Run(ctx, pipeline.Options{Migrate: true})
	require.NoError(t, err)
	require.NotNil(t, report)

	t.Run("run report", func(t *testing.T) {
		assert.Equal(t, warehouse.RunStatusSucceeded, report.Status)
		assert.True(t, report.Loaded)
		assert.Equal(t, 4, report.Counts.FactRows)
		assert.Equal(t, 1, report.Counts.OrdersWithoutItems)
		assert.Positive(t, report.Counts.RowsStaged)
		assert.Positive(t, report.Counts.DimensionRows)
	})

	t.Run("one fact per order", func(t *testing.T) {
		facts := snapshotFacts(t, tdb)
		require.Len(t, facts, 4)

		o1 := facts[0]
		assert.Equal(t, "o1", o1.OrderID)
		assert.NotNil(t, o1.CustomerKey)
		assert.NotNil(t, o1.ProductKey)
		assert.NotNil(t, o1.SellerKey)
		assert.NotNil(t, o1.GeographyKey)
		assert.NotNil(t, o1.TimeID)
		require.NotNil(t, o1.DeliveryDays)
		assert.Equal(t, 4, *o1.DeliveryDays)
		require.NotNil(t, o1.ReviewScore)
		assert.Equal(t, int64(5), *o1.ReviewScore)

		o3 := facts[2]
		assert.Equal(t, 2, o3.OrderItemsCount)
		require.NotNil(t, o3.PaymentTypes)
		assert.Equal(t, "credit_card, voucher", *o3.PaymentTypes)
		require.NotNil(t, o3.MaxInstallments)
		assert.Equal(t, int64(2), *o3.MaxInstallments)
		require.NotNil(t, o3.MainProductCategory)
		assert.Equal(t, "health_beauty", *o3.MainProductCategory)

		o4 := facts[3]
		assert.True(t, o4.ItemsMissing)
		assert.Nil(t, o4.CustomerKey, "unknown customer is nulled")
		assert.Nil(t, o4.ProductKey)
	})

	t.Run("repeat customers", func(t *testing.T) {
		var repeat int64
		require.NoError(t, tdb.Database.DB.Table("analytics.dim_customers").
			Where("is_repeat_customer").Count(&repeat).Error)
		assert.Equal(t, int64(2), repeat, "c1 and c3 share a unique id")
	})

	t.Run("foreign keys resolve", func(t *testing.T) {
		integrity, err := persistence.NewIntegrityRepository(tdb.Database).Check(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(4), integrity.TotalOrders)
		assert.NoError(t, integrity.Err())
	})

	t.Run("rerun leaves the warehouse unchanged", func(t *testing.T) {
		countsBefore := warehouseCounts(tdb)
		factsBefore := snapshotFacts(t, tdb)

		again, err := svc.Run(ctx, pipeline.Options{Migrate: true})
		require.NoError(t, err)
		assert.Equal(t, warehouse.RunStatusSucceeded, again.Status)
		assert.NotEqual(t, report.RunID, again.RunID)

		assert.Equal(t, countsBefore, warehouseCounts(tdb))
		assert.Equal(t, factsBefore, snapshotFacts(t, tdb))
	})

	t.Run("run history", func(t *testing.T) {
		runs, err := persistence.NewRunRepository(tdb.Database).FindRecent(ctx, 10)
		require.NoError(t, err)
		require.Len(t, runs, 2)
		for _, run := range runs {
			assert.Equal(t, warehouse.RunStatusSucceeded, run.Status)
			assert.Equal(t, 4, run.Counts.FactRows)
			assert.NotNil(t, run.CompletedAt)
		}
	})
}

func TestPipeline_StagingReplacesSnapshot(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tdb := NewTestDB(t)
	dir := writeFixtures(t)
	svc := newService(t, tdb, dir)
	ctx := context.Background()

	_, err := svc.Run(ctx, pipeline.Options{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), tdb.Count("staging.orders"))

	// Dropping an order from the source shrinks the staging snapshot,
	// while the analytics layer keeps every order it has seen
	orders := fixtures["olist_orders_dataset.csv"]
	trimmed := orders[:len(orders)-len("o4,c9,canceled,2018-03-01 08:00:00,,,,2018-03-15 00:00:00\n")]
	require.NoError(t, os.WriteFile(filepath.Join(dir, "olist_orders_dataset.csv"), []byte(trimmed), 0o600))

	report, err := svc.Run(ctx, pipeline.Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Counts.FactRows)
	assert.Equal(t, int64(3), tdb.Count("staging.orders"))
	assert.Equal(t, int64(4), tdb.Count("analytics.fact_orders"))
}
