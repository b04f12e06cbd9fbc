package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"already canonical", "customer_id", "customer_id"},
		{"spaces and capitals", "Customer ID", "customer_id"},
		{"camel words keep letters", "OrderStatus", "orderstatus"},
		{"dashes collapse", "order--purchase - timestamp", "order_purchase_timestamp"},
		{"leading and trailing separators", "  _price_ ", "price"},
		{"digits kept", "Address Line 2", "address_line_2"},
		{"accented letters", "Preço Médio", "preço_médio"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Canonicalize(tt.in))
		})
	}
}

func TestName_IsValid(t *testing.T) {
	for _, n := range All {
		t.Run(string(n), func(t *testing.T) {
			assert.True(t, n.IsValid())
			_, ok := SchemaFor(n)
			assert.True(t, ok, "every source has a fixed schema")
		})
	}
	assert.False(t, Name("invoices").IsValid())

	_, err := ParseName("invoices")
	assert.Error(t, err)
	n, err := ParseName("orders")
	assert.NoError(t, err)
	assert.Equal(t, Orders, n)
}

func TestDefaultFiles(t *testing.T) {
	files := DefaultFiles()
	assert.Len(t, files, len(All))
	assert.Equal(t, "olist_orders_dataset.csv", files[Orders])
	assert.Equal(t, "product_category_name_translation.csv", files[CategoryTranslation])
}
