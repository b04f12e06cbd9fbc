package transform

import (
	"fmt"

	"github.com/ecomdw/etl/internal/domain/dataset"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"go.uber.org/zap"
)

// Brazilian bounding box for geolocation validation
const (
	MinLatitude  = -33.75
	MaxLatitude  = 5.27
	MinLongitude = -73.98
	MaxLongitude = -34.79
)

// EnrichedCustomer is a cleaned customer with its repeat-purchase flag
type EnrichedCustomer struct {
	dataset.Customer
	IsRepeatCustomer bool
	TotalOrders      int
}

// EnrichedProduct is a cleaned product with its translated category
type EnrichedProduct struct {
	dataset.Product
	CategoryNameEnglish string
}

// Enricher is the Enrichment Engine
type Enricher struct {
	logger *zap.Logger
}

// NewEnricher creates a new Enricher
func NewEnricher(logger *zap.Logger) *Enricher {
	return &Enricher{logger: logger.Named("enrichment")}
}

// OrdersPerCustomer counts distinct order IDs per customer_unique_id.
// It is the dataset-wide pre-pass behind the repeat-customer flag.
func OrdersPerCustomer(orders []dataset.Order, customers []dataset.Customer) (map[string]int, error) {
	uniqueByCustomer := make(map[string]string, len(customers))
	for _, c := range customers {
		if c.CustomerID != "" && c.CustomerUniqueID != "" {
			uniqueByCustomer[c.CustomerID] = c.CustomerUniqueID
		}
	}

	uids := make([]string, 0, len(orders))
	orderIDs := make([]string, 0, len(orders))
	for _, o := range orders {
		uid, ok := uniqueByCustomer[o.CustomerID]
		if !ok {
			continue
		}
		uids = append(uids, uid)
		orderIDs = append(orderIDs, o.OrderID)
	}
	if len(uids) == 0 {
		return make(map[string]int), nil
	}

	df, err := newFrame("customer orders",
		series.New(uids, series.String, colCustomerUnique),
		series.New(orderIDs, series.String, colOrderID),
	)
	if err != nil {
		return nil, err
	}
	return distinctCounts(df, colCustomerUnique, colOrderID)
}

// Customers flags every customer whose unique ID appears on at least two
// distinct orders
func (e *Enricher) Customers(customers []dataset.Customer, orders []dataset.Order) ([]EnrichedCustomer, error) {
	counts, err := OrdersPerCustomer(orders, customers)
	if err != nil {
		return nil, err
	}

	out := make([]EnrichedCustomer, 0, len(customers))
	repeat := 0
	for _, c := range customers {
		n := counts[c.CustomerUniqueID]
		ec := EnrichedCustomer{Customer: c, TotalOrders: n, IsRepeatCustomer: n >= 2}
		if ec.IsRepeatCustomer {
			repeat++
		}
		out = append(out, ec)
	}

	e.logger.Info("Customers enriched",
		zap.Int("customers", len(out)),
		zap.Int("repeat_customers", repeat),
	)
	return out, nil
}

// Products left-joins the category translation; an untranslated category
// keeps its original name. The first translation of a category wins.
func (e *Enricher) Products(products []dataset.Product, translations []dataset.CategoryName) ([]EnrichedProduct, error) {
	if len(products) == 0 {
		return []EnrichedProduct{}, nil
	}

	rows := make([]int, len(products))
	categories := make([]string, len(products))
	for i, p := range products {
		rows[i] = i
		categories[i] = p.CategoryName
	}
	left, err := newFrame("products",
		series.New(rows, series.Int, colRow),
		series.New(categories, series.String, colCategory),
	)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(translations))
	english := make([]string, 0, len(translations))
	seen := make(map[string]struct{}, len(translations))
	for _, t := range translations {
		if _, dup := seen[t.Name]; dup {
			continue
		}
		seen[t.Name] = struct{}{}
		names = append(names, t.Name)
		english = append(english, t.EnglishName)
	}
	right, err := newFrame("category translation",
		series.New(names, series.String, colCategory),
		series.New(english, series.String, colCategoryEN),
	)
	if err != nil {
		return nil, err
	}

	joined := left.LeftJoin(right, colCategory)
	if joined.Err != nil {
		return nil, fmt.Errorf("failed to join category translation: %w", joined.Err)
	}
	joinedRows, err := joined.Col(colRow).Int()
	if err != nil {
		return nil, fmt.Errorf("failed to read joined products: %w", err)
	}
	translated := joined.Col(colCategoryEN)

	out := make([]EnrichedProduct, 0, len(products))
	untranslated := 0
	for i, row := range joinedRows {
		p := products[row]
		name := p.CategoryName
		if el := translated.Elem(i); el.IsNA() {
			untranslated++
		} else {
			name = el.String()
		}
		out = append(out, EnrichedProduct{Product: p, CategoryNameEnglish: name})
	}

	e.logger.Info("Products enriched",
		zap.Int("products", len(out)),
		zap.Int("untranslated", untranslated),
	)
	return out, nil
}

// Geolocation keeps the points inside the Brazilian bounding box, edges
// included, and returns how many were dropped. Points without coordinates
// are dropped as well.
func (e *Enricher) Geolocation(points []dataset.GeolocationPoint) ([]dataset.GeolocationPoint, int, error) {
	valid := make([]dataset.GeolocationPoint, 0, len(points))
	if len(points) > 0 {
		rows := make([]int, len(points))
		lats := make([]float64, len(points))
		lngs := make([]float64, len(points))
		for i, p := range points {
			rows[i] = i
			lats[i] = floatOrNaN(p.Lat)
			lngs[i] = floatOrNaN(p.Lng)
		}
		df, err := newFrame("geolocation",
			series.New(rows, series.Int, colRow),
			series.New(lats, series.Float, colLat),
			series.New(lngs, series.Float, colLng),
		)
		if err != nil {
			return nil, 0, err
		}

		inside := df.FilterAggregation(dataframe.And,
			dataframe.F{Colname: colLat, Comparator: series.GreaterEq, Comparando: MinLatitude},
			dataframe.F{Colname: colLat, Comparator: series.LessEq, Comparando: MaxLatitude},
			dataframe.F{Colname: colLng, Comparator: series.GreaterEq, Comparando: MinLongitude},
			dataframe.F{Colname: colLng, Comparator: series.LessEq, Comparando: MaxLongitude},
		)
		if inside.Err != nil {
			return nil, 0, fmt.Errorf("failed to filter geolocation: %w", inside.Err)
		}
		kept, err := inside.Col(colRow).Int()
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read filtered geolocation: %w", err)
		}
		for _, row := range kept {
			valid = append(valid, points[row])
		}
	}
	dropped := len(points) - len(valid)

	fields := []zap.Field{
		zap.Int("input", len(points)),
		zap.Int("valid", len(valid)),
		zap.Int("dropped", dropped),
	}
	if dropped > 0 {
		e.logger.Warn("Geolocation rows outside Brazil dropped", fields...)
	} else {
		e.logger.Info("Geolocation validated", fields...)
	}
	return valid, dropped, nil
}
