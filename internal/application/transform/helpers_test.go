package transform

import (
	"testing"
	"time"

	"github.com/ecomdw/etl/internal/domain/dataset"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func rawTable(t *testing.T, name dataset.Name, rows ...dataset.Row) *dataset.Table {
	t.Helper()
	schema, ok := dataset.SchemaFor(name)
	require.True(t, ok)
	table := schema.NewTable("test")
	table.Rows = rows
	return table
}

func defaultPolicies(t *testing.T) Policies {
	t.Helper()
	p, err := DefaultPolicies()
	require.NoError(t, err)
	return p
}

func ts(s string) *time.Time {
	v, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		panic(err)
	}
	return &v
}

func money(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func i64(v int64) *int64 {
	return &v
}

func f64(v float64) *float64 {
	return &v
}

func item(orderID, productID, sellerID, price, freight string) dataset.OrderItem {
	return dataset.OrderItem{
		OrderID:   orderID,
		ProductID: productID,
		SellerID:  sellerID,
		Price:     money(price),
		Freight:   money(freight),
	}
}
