package transform

import (
	"fmt"
	"time"

	"github.com/ecomdw/etl/internal/domain/dataset"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/shopspring/decimal"
)

// DefaultMaxDeliveryDays bounds plausible delivery durations
const DefaultMaxDeliveryDays = 365

// ItemSummary aggregates the items of one order
type ItemSummary struct {
	Total         decimal.Decimal
	TotalPrice    decimal.Decimal
	TotalFreight  decimal.Decimal
	Count         int
	UniqueSellers int
}

// OrderTotals computes Σ(price + freight) per order ID. Orders without
// items have no entry; callers must treat that as an absent total.
// Money is summed in decimal; the frame only groups the items.
func OrderTotals(items []dataset.OrderItem) (map[string]ItemSummary, error) {
	sums := make(map[string]ItemSummary)
	if len(items) == 0 {
		return sums, nil
	}

	orderIDs := make([]string, len(items))
	sellerIDs := make([]string, len(items))
	prices := make([]string, len(items))
	freights := make([]string, len(items))
	for i, item := range items {
		orderIDs[i] = item.OrderID
		sellerIDs[i] = item.SellerID
		prices[i] = decimalRecord(item.Price)
		freights[i] = decimalRecord(item.Freight)
	}
	df, err := newFrame("order items",
		series.New(orderIDs, series.String, colOrderID),
		series.New(sellerIDs, series.String, colSellerID),
		series.New(prices, series.String, colPrice),
		series.New(freights, series.String, colFreight),
	)
	if err != nil {
		return nil, err
	}
	df = df.Filter(dataframe.F{Colname: colOrderID, Comparator: series.Neq, Comparando: ""})
	if df.Err != nil {
		return nil, fmt.Errorf("failed to filter order items: %w", df.Err)
	}
	if df.Nrow() == 0 {
		return sums, nil
	}

	groups := df.GroupBy(colOrderID)
	if groups.Err != nil {
		return nil, fmt.Errorf("failed to group order items: %w", groups.Err)
	}
	for _, g := range groups.GetGroups() {
		var s ItemSummary
		if s.TotalPrice, err = sumDecimals(g.Col(colPrice).Records()); err != nil {
			return nil, err
		}
		if s.TotalFreight, err = sumDecimals(g.Col(colFreight).Records()); err != nil {
			return nil, err
		}
		s.Total = s.TotalPrice.Add(s.TotalFreight)
		sums[g.Col(colOrderID).Elem(0).String()] = s
	}

	counts, err := countBy(df, colOrderID, colSellerID)
	if err != nil {
		return nil, err
	}
	sellers, err := distinctCounts(df, colOrderID, colSellerID)
	if err != nil {
		return nil, err
	}
	for id, s := range sums {
		s.Count = counts[id]
		s.UniqueSellers = sellers[id]
		sums[id] = s
	}
	return sums, nil
}

func decimalRecord(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}

// sumDecimals adds decimal records, treating empty ones as zero
func sumDecimals(records []string) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, r := range records {
		if r == "" {
			continue
		}
		d, err := decimal.NewFromString(r)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to sum item value %q: %w", r, err)
		}
		total = total.Add(d)
	}
	return total, nil
}

// Delivery holds the derived delivery durations of one order
type Delivery struct {
	Days      *int
	DelayDays *int
	// Outlier is set when Days was computed but fell outside [0, max]
	Outlier bool
}

// DeliveryMetrics derives whole-day delivery duration and delay.
// Absent endpoints yield absent values. A duration below zero or above
// maxDays is treated as an outlier and left absent; the delay keeps
// negative values, which mean early delivery.
func DeliveryMetrics(o dataset.Order, maxDays int) Delivery {
	var d Delivery
	if o.DeliveredCustomerAt == nil {
		return d
	}
	if o.PurchasedAt != nil {
		days := wholeDays(o.DeliveredCustomerAt.Sub(*o.PurchasedAt))
		if days < 0 || days > maxDays {
			d.Outlier = true
		} else {
			d.Days = &days
		}
	}
	if o.EstimatedDeliveryAt != nil {
		delay := wholeDays(o.DeliveredCustomerAt.Sub(*o.EstimatedDeliveryAt))
		d.DelayDays = &delay
	}
	return d
}

// wholeDays floors a duration to whole days, rounding toward negative infinity
func wholeDays(d time.Duration) int {
	day := 24 * time.Hour
	n := d / day
	if d%day < 0 {
		n--
	}
	return int(n)
}
