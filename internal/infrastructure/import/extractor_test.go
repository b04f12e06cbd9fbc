package csvimport

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ecomdw/etl/internal/domain/dataset"
	"github.com/ecomdw/etl/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestConvertField(t *testing.T) {
	tests := []struct {
		name    string
		typ     dataset.ColumnType
		raw     string
		want    any
		wantErr bool
	}{
		{"empty is absent", dataset.TypeInteger, "", nil, false},
		{"NA is absent", dataset.TypeFloat, "NaN", nil, false},
		{"integer", dataset.TypeInteger, "01310", int64(1310), false},
		{"integral float as integer", dataset.TypeInteger, "3.0", int64(3), false},
		{"fractional integer", dataset.TypeInteger, "3.5", nil, true},
		{"bad integer", dataset.TypeInteger, "abc", nil, true},
		{"float", dataset.TypeFloat, " 58.90 ", 58.9, false},
		{"bad float", dataset.TypeFloat, "12,5", nil, true},
		{"infinite float", dataset.TypeFloat, "Inf", nil, true},
		{"string kept raw", dataset.TypeString, " sao paulo ", " sao paulo ", false},
		{"whitespace string kept", dataset.TypeString, "   ", "   ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := convertField(tt.typ, tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractor_Extract(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "olist_order_items_dataset.csv",
		"\xEF\xBB\xBForder_id,order_item_id,product_id,seller_id,shipping_limit_date,price,freight_value\n"+
			"o1,1,p1,s1,2017-09-19 09:45:35,58.90,13.29\n"+
			"o1,2,p2,s1,2017-09-19 09:45:35,,13.29\n"+
			"o2,1,p3,s2,not a date,abc,8.72\n")

	ex := NewExtractor(NewDirSource(dir), zap.NewNop())
	table, err := ex.Extract(context.Background(), dataset.OrderItems)
	require.NoError(t, err)

	assert.Equal(t, dataset.OrderItems, table.Name)
	assert.Equal(t, filepath.Join(dir, "olist_order_items_dataset.csv"), table.Source)
	require.Len(t, table.Rows, 3)

	first := table.Rows[0]
	assert.Equal(t, "o1", first["order_id"])
	assert.Equal(t, int64(1), first["order_item_id"])
	assert.Equal(t, 58.9, first["price"])
	// date-like columns stay strings until cleaning
	assert.Equal(t, "2017-09-19 09:45:35", first["shipping_limit_date"])

	assert.Nil(t, table.Rows[1]["price"])
	assert.Nil(t, table.Rows[2]["price"])
	assert.Equal(t, "not a date", table.Rows[2]["shipping_limit_date"])

	require.Len(t, table.Warnings, 1)
	w := table.Warnings[0]
	assert.Equal(t, "order_items", w.Dataset)
	assert.Equal(t, "price", w.Column)
	assert.Equal(t, 4, w.Row)
	assert.Equal(t, "abc", w.Value)
}

func TestExtractor_KeepsHeaderSpelling(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sellers.csv", "Seller ID,Seller Zip Code Prefix,Seller City,Seller State,Rating\ns1,13023,campinas,SP,5\n")

	core, recorded := observer.New(zapcore.WarnLevel)
	ex := NewExtractor(NewDirSource(dir), zap.New(core),
		WithFiles(map[dataset.Name]string{dataset.Sellers: "sellers.csv"}))

	table, err := ex.Extract(context.Background(), dataset.Sellers)
	require.NoError(t, err)

	assert.Equal(t, []string{"Seller ID", "Seller Zip Code Prefix", "Seller City", "Seller State", "Rating"}, table.ColumnNames())
	assert.Equal(t, int64(13023), table.Rows[0]["Seller Zip Code Prefix"])
	assert.Equal(t, "5", table.Rows[0]["Rating"])

	logs := recorded.FilterMessage("Extra columns found").All()
	require.Len(t, logs, 1)
	assert.Equal(t, "sellers", logs[0].ContextMap()["dataset"])
}

func TestExtractor_ParserOptions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "olist_sellers_dataset.csv",
		"seller_id;seller_zip_code_prefix;seller_city;seller_state\ns1; 13023;campinas;SP\n")

	ex := NewExtractor(NewDirSource(dir), zap.NewNop(),
		WithParserOptions(WithDelimiter(';'), WithTrimSpace(true)))

	table, err := ex.Extract(context.Background(), dataset.Sellers)
	require.NoError(t, err)
	require.Equal(t, 1, table.Len())
	assert.Equal(t, int64(13023), table.Rows[0]["seller_zip_code_prefix"])
	assert.Equal(t, "campinas", table.Rows[0]["seller_city"])
	assert.Empty(t, table.Warnings)
}

func TestExtractor_MissingColumns(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "olist_sellers_dataset.csv", "seller_id,seller_city\ns1,campinas\n")

	ex := NewExtractor(NewDirSource(dir), zap.NewNop())
	_, err := ex.Extract(context.Background(), dataset.Sellers)

	var dsErr *DatasetError
	require.True(t, errors.As(err, &dsErr))
	assert.Equal(t, "sellers", dsErr.Dataset)
	assert.ErrorIs(t, err, ErrMissingColumns)
	assert.Contains(t, err.Error(), "seller_zip_code_prefix, seller_state")
}

func TestExtractor_WarningLogCap(t *testing.T) {
	dir := t.TempDir()
	rows := "geolocation_zip_code_prefix,geolocation_lat,geolocation_lng,geolocation_city,geolocation_state\n"
	for i := 0; i < 4; i++ {
		rows += "01037,bad,-46.64,sao paulo,SP\n"
	}
	writeFile(t, dir, "olist_geolocation_dataset.csv", rows)

	core, recorded := observer.New(zapcore.WarnLevel)
	ex := NewExtractor(NewDirSource(dir), zap.New(core), WithWarningLogLimit(2))

	table, err := ex.Extract(context.Background(), dataset.Geolocation)
	require.NoError(t, err)

	assert.Len(t, table.Warnings, 4)
	assert.Len(t, recorded.FilterMessage("Parse warning").All(), 2)
	summary := recorded.FilterMessage("Parse warnings suppressed").All()
	require.Len(t, summary, 1)
	assert.Equal(t, int64(4), summary[0].ContextMap()["total"])
}

func TestExtractor_ExtractAll(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "olist_orders_dataset.csv",
		"order_id,customer_id,order_status,order_purchase_timestamp,order_approved_at,"+
			"order_delivered_carrier_date,order_delivered_customer_date,order_estimated_delivery_date\n"+
			"o1,c1,delivered,2017-10-02 10:56:33,,,,2017-10-18 00:00:00\n")
	writeFile(t, dir, "product_category_name_translation.csv",
		"product_category_name,product_category_name_english\nbeleza_saude,health_beauty\n")
	writeFile(t, dir, "olist_customers_dataset.csv", "")

	ex := NewExtractor(NewDirSource(dir), zap.NewNop())
	result, err := ex.ExtractAll(context.Background())
	require.NoError(t, err)

	assert.Len(t, result.Tables, 2)
	assert.Equal(t, 2, result.Rows())
	assert.Len(t, result.Failures, len(dataset.All)-2)

	assert.ErrorIs(t, result.Failures[dataset.Customers], ErrEmptyFile)

	var dsErr *DatasetError
	require.True(t, errors.As(result.Failures[dataset.Products], &dsErr))
	assert.True(t, dsErr.IsNotFound())
	assert.ErrorIs(t, result.Failures[dataset.Products], shared.ErrNotFound)
}

func TestExtractor_ExtractAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ex := NewExtractor(NewDirSource(t.TempDir()), zap.NewNop())
	result, err := ex.ExtractAll(ctx)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDirSource_Check(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, NewDirSource(dir).Check())

	err := NewDirSource(filepath.Join(dir, "missing")).Check()
	assert.ErrorIs(t, err, shared.ErrNotFound)

	writeFile(t, dir, "file.csv", "a\n1\n")
	assert.Error(t, NewDirSource(filepath.Join(dir, "file.csv")).Check())
}
