package transform

import (
	"fmt"
	"math"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Column names of the frames built while enriching and assembling
const (
	colRow            = "row"
	colOrderID        = "order_id"
	colCustomerUnique = "customer_unique_id"
	colSellerID       = "seller_id"
	colPrice          = "price"
	colFreight        = "freight_value"
	colCategory       = "product_category_name"
	colCategoryEN     = "product_category_name_english"
	colZip            = "zip_code_prefix"
	colLat            = "lat"
	colLng            = "lng"
)

// newFrame builds a DataFrame from equally sized named columns
func newFrame(name string, cols ...series.Series) (dataframe.DataFrame, error) {
	df := dataframe.New(cols...)
	if df.Err != nil {
		return df, fmt.Errorf("failed to build %s frame: %w", name, df.Err)
	}
	return df, nil
}

// aggregatedColumn is the name Groups.Aggregation gives its output column
func aggregatedColumn(col string, typ dataframe.AggregationType) string {
	return col + "_" + typ.String()
}

// countBy counts the rows of df per value of the string column key.
func countBy(df dataframe.DataFrame, key, col string) (map[string]int, error) {
	counts := make(map[string]int)
	if df.Nrow() == 0 {
		return counts, nil
	}

	groups := df.GroupBy(key)
	if groups.Err != nil {
		return nil, fmt.Errorf("failed to group by %s: %w", key, groups.Err)
	}
	agg := groups.Aggregation([]dataframe.AggregationType{dataframe.Aggregation_COUNT}, []string{col})
	if agg.Err != nil {
		return nil, fmt.Errorf("failed to count %s by %s: %w", col, key, agg.Err)
	}

	keys := agg.Col(key).Records()
	values := agg.Col(aggregatedColumn(col, dataframe.Aggregation_COUNT)).Float()
	for i, k := range keys {
		counts[k] = int(values[i])
	}
	return counts, nil
}

// distinctCounts counts the distinct non-empty values of col per non-empty
// value of key
func distinctCounts(df dataframe.DataFrame, key, col string) (map[string]int, error) {
	df = df.FilterAggregation(dataframe.And,
		dataframe.F{Colname: key, Comparator: series.Neq, Comparando: ""},
		dataframe.F{Colname: col, Comparator: series.Neq, Comparando: ""},
	)
	if df.Err != nil {
		return nil, fmt.Errorf("failed to filter %s: %w", col, df.Err)
	}
	if df.Nrow() == 0 {
		return make(map[string]int), nil
	}

	groups := df.GroupBy(key, col)
	if groups.Err != nil {
		return nil, fmt.Errorf("failed to group by %s, %s: %w", key, col, groups.Err)
	}
	pairs := groups.Aggregation([]dataframe.AggregationType{dataframe.Aggregation_COUNT}, []string{col})
	if pairs.Err != nil {
		return nil, fmt.Errorf("failed to pair %s with %s: %w", key, col, pairs.Err)
	}
	return countBy(pairs, key, col)
}

func floatOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
