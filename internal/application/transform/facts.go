package transform

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ecomdw/etl/internal/domain/dataset"
	"github.com/ecomdw/etl/internal/domain/warehouse"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// FactInputs are the cleaned and enriched datasets joined into facts.
// Orders is the driving table.
type FactInputs struct {
	Orders    []dataset.Order
	Items     []dataset.OrderItem
	Payments  []dataset.Payment
	Reviews   []dataset.Review
	Customers []EnrichedCustomer
	Products  []EnrichedProduct
	Sellers   []dataset.Seller
}

// AssemblyStats counts the data-quality events seen while assembling facts
type AssemblyStats struct {
	OrdersWithoutItems int
	DeliveryOutliers   int
	DuplicateOrders    int
	OrdersWithoutID    int
}

// FactAssembler is the Fact Assembler
type FactAssembler struct {
	logger          *zap.Logger
	maxDeliveryDays int
}

// NewFactAssembler creates a new FactAssembler
func NewFactAssembler(maxDeliveryDays int, logger *zap.Logger) *FactAssembler {
	if maxDeliveryDays <= 0 {
		maxDeliveryDays = DefaultMaxDeliveryDays
	}
	return &FactAssembler{
		logger:          logger.Named("facts"),
		maxDeliveryDays: maxDeliveryDays,
	}
}

// Assemble produces exactly one OrderFact per distinct order ID. Missing
// dimension data leaves the matching reference nil; no order is dropped.
func (a *FactAssembler) Assemble(in FactInputs) ([]warehouse.OrderFact, AssemblyStats, error) {
	var stats AssemblyStats

	totals, err := OrderTotals(in.Items)
	if err != nil {
		return nil, stats, fmt.Errorf("failed to total order items: %w", err)
	}
	mainItems := mainItemByOrder(in.Items)
	payments := groupPayments(in.Payments)
	reviews := groupReviews(in.Reviews)

	customers := make(map[string]EnrichedCustomer, len(in.Customers))
	for _, c := range in.Customers {
		if _, dup := customers[c.CustomerID]; !dup {
			customers[c.CustomerID] = c
		}
	}
	categories := make(map[string]string, len(in.Products))
	for _, p := range in.Products {
		if _, dup := categories[p.ProductID]; !dup {
			categories[p.ProductID] = p.CategoryNameEnglish
		}
	}

	facts := make([]warehouse.OrderFact, 0, len(in.Orders))
	seen := make(map[string]struct{}, len(in.Orders))
	for _, o := range in.Orders {
		if o.OrderID == "" {
			stats.OrdersWithoutID++
			continue
		}
		if _, dup := seen[o.OrderID]; dup {
			stats.DuplicateOrders++
			continue
		}
		seen[o.OrderID] = struct{}{}

		f := warehouse.OrderFact{
			OrderID:             o.OrderID,
			Status:              o.Status,
			PurchasedAt:         o.PurchasedAt,
			ApprovedAt:          o.ApprovedAt,
			DeliveredCarrierAt:  o.DeliveredCarrierAt,
			DeliveredCustomerAt: o.DeliveredCustomerAt,
			EstimatedDeliveryAt: o.EstimatedDeliveryAt,
		}

		if sum, ok := totals[o.OrderID]; ok {
			f.OrderTotal = decimal.NewNullDecimal(sum.Total)
			f.ItemsTotalPrice = decimal.NewNullDecimal(sum.TotalPrice)
			f.ItemsTotalFreight = decimal.NewNullDecimal(sum.TotalFreight)
			f.ItemsCount = sum.Count
			f.UniqueSellers = sum.UniqueSellers
		} else {
			f.ItemsMissing = true
			stats.OrdersWithoutItems++
			a.logger.Warn("Order has no items", zap.String("order_id", o.OrderID))
		}

		delivery := DeliveryMetrics(o, a.maxDeliveryDays)
		f.DeliveryDays = delivery.Days
		f.DeliveryDelayDays = delivery.DelayDays
		if delivery.Outlier {
			stats.DeliveryOutliers++
		}

		applyPayments(&f, payments[o.OrderID])
		applyReviews(&f, reviews[o.OrderID])

		if item, ok := mainItems[o.OrderID]; ok {
			if item.ProductID != "" {
				id := item.ProductID
				f.ProductRef = &id
				f.MainProductCategory = categories[id]
			}
			if item.SellerID != "" {
				id := item.SellerID
				f.SellerRef = &id
			}
		}

		if o.PurchasedAt != nil {
			key := warehouse.DateKeyOf(*o.PurchasedAt)
			f.TimeRef = &key
		}
		if o.CustomerID != "" {
			id := o.CustomerID
			f.CustomerRef = &id
			if c, ok := customers[id]; ok {
				geo := geographyKey(c.State, c.City, c.ZipCodePrefix)
				f.GeographyRef = &geo
			}
		}

		facts = append(facts, f)
	}

	a.logger.Info("Order facts assembled",
		zap.Int("facts", len(facts)),
		zap.Int("orders_without_items", stats.OrdersWithoutItems),
		zap.Int("delivery_outliers", stats.DeliveryOutliers),
		zap.Int("duplicate_orders", stats.DuplicateOrders),
	)
	return facts, stats, nil
}

// mainItemByOrder picks the item with the greatest line value per order.
// Ties keep the first-seen item.
func mainItemByOrder(items []dataset.OrderItem) map[string]dataset.OrderItem {
	main := make(map[string]dataset.OrderItem)
	for _, item := range items {
		if item.OrderID == "" {
			continue
		}
		cur, ok := main[item.OrderID]
		if !ok || item.LineValue().GreaterThan(cur.LineValue()) {
			main[item.OrderID] = item
		}
	}
	return main
}

func groupPayments(payments []dataset.Payment) map[string][]dataset.Payment {
	out := make(map[string][]dataset.Payment)
	for _, p := range payments {
		out[p.OrderID] = append(out[p.OrderID], p)
	}
	return out
}

func groupReviews(reviews []dataset.Review) map[string][]dataset.Review {
	out := make(map[string][]dataset.Review)
	for _, r := range reviews {
		out[r.OrderID] = append(out[r.OrderID], r)
	}
	return out
}

// applyPayments sums payment values, keeps the highest installment count and
// lists distinct payment types in payment_sequential order
func applyPayments(f *warehouse.OrderFact, payments []dataset.Payment) {
	if len(payments) == 0 {
		return
	}
	sorted := make([]dataset.Payment, len(payments))
	copy(sorted, payments)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Sequential, sorted[j].Sequential
		if a == nil || b == nil {
			return a != nil && b == nil
		}
		return *a < *b
	})

	total := decimal.Zero
	hasValue := false
	var types []string
	for _, p := range sorted {
		if p.Value.Valid {
			total = total.Add(p.Value.Decimal)
			hasValue = true
		}
		if p.Installments != nil && (f.MaxInstallments == nil || *p.Installments > *f.MaxInstallments) {
			n := *p.Installments
			f.MaxInstallments = &n
		}
		if p.Type != "" && !contains(types, p.Type) {
			types = append(types, p.Type)
		}
	}
	if hasValue {
		f.PaymentTotal = decimal.NewNullDecimal(total)
	}
	f.PaymentTypes = strings.Join(types, ", ")
}

// applyReviews takes the score of the latest review by creation date, ties
// broken by the highest score. Reviews without a creation date rank oldest.
func applyReviews(f *warehouse.OrderFact, reviews []dataset.Review) {
	f.ReviewCount = len(reviews)
	if len(reviews) == 0 {
		return
	}

	best := reviews[0]
	for _, r := range reviews {
		if r.HasComment() {
			f.HasReviewComment = true
		}
		if newerReview(r, best) {
			best = r
		}
	}
	if best.Score != nil {
		score := *best.Score
		f.ReviewScore = &score
	}
}

func newerReview(r, than dataset.Review) bool {
	switch {
	case r.CreatedAt == nil && than.CreatedAt != nil:
		return false
	case r.CreatedAt != nil && than.CreatedAt == nil:
		return true
	case r.CreatedAt != nil && !r.CreatedAt.Equal(*than.CreatedAt):
		return r.CreatedAt.After(*than.CreatedAt)
	}
	return scoreOf(r) > scoreOf(than)
}

func scoreOf(r dataset.Review) int64 {
	if r.Score == nil {
		return -1
	}
	return *r.Score
}

func geographyKey(state, city string, zip *int64) warehouse.GeographyKey {
	k := warehouse.GeographyKey{State: state, City: city}
	if zip != nil {
		k.ZipCodePrefix = *zip
	}
	return k
}
