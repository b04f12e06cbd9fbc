package transform

import (
	"fmt"
	"sort"

	"github.com/ecomdw/etl/internal/domain/dataset"
	"github.com/ecomdw/etl/internal/domain/warehouse"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// DimensionInputs are the datasets the dimension rows are derived from
type DimensionInputs struct {
	Facts       []warehouse.OrderFact
	Customers   []EnrichedCustomer
	Products    []EnrichedProduct
	Sellers     []dataset.Seller
	Geolocation []dataset.GeolocationPoint
}

// BuildDimensions derives deduplicated dimension rows. Each natural key
// appears once; the first-seen row wins.
func BuildDimensions(in DimensionInputs) (warehouse.Dimensions, error) {
	var dims warehouse.Dimensions

	days := make(map[warehouse.DateKey]warehouse.TimeDim)
	for _, f := range in.Facts {
		if f.PurchasedAt == nil {
			continue
		}
		d := warehouse.NewTimeDim(*f.PurchasedAt)
		days[d.Key] = d
	}
	for _, d := range days {
		dims.Time = append(dims.Time, d)
	}
	sort.Slice(dims.Time, func(i, j int) bool { return dims.Time[i].Key < dims.Time[j].Key })

	geo, err := newGeographyBuilder(in.Geolocation)
	if err != nil {
		return dims, err
	}

	seenCustomers := make(map[string]struct{}, len(in.Customers))
	for _, c := range in.Customers {
		if c.CustomerID == "" {
			continue
		}
		if _, dup := seenCustomers[c.CustomerID]; dup {
			continue
		}
		seenCustomers[c.CustomerID] = struct{}{}
		dims.Customers = append(dims.Customers, warehouse.CustomerDim{
			CustomerID:       c.CustomerID,
			CustomerUniqueID: c.CustomerUniqueID,
			City:             c.City,
			State:            c.State,
			ZipCodePrefix:    c.ZipCodePrefix,
			IsRepeatCustomer: c.IsRepeatCustomer,
			TotalOrders:      c.TotalOrders,
		})
		geo.add(c.State, c.City, c.ZipCodePrefix)
	}

	seenProducts := make(map[string]struct{}, len(in.Products))
	for _, p := range in.Products {
		if p.ProductID == "" {
			continue
		}
		if _, dup := seenProducts[p.ProductID]; dup {
			continue
		}
		seenProducts[p.ProductID] = struct{}{}
		dims.Products = append(dims.Products, warehouse.ProductDim{
			ProductID:           p.ProductID,
			CategoryName:        p.CategoryName,
			CategoryNameEnglish: p.CategoryNameEnglish,
			PhotosQty:           p.PhotosQty,
			WeightG:             p.WeightG,
			LengthCM:            p.LengthCM,
			HeightCM:            p.HeightCM,
			WidthCM:             p.WidthCM,
		})
	}

	seenSellers := make(map[string]struct{}, len(in.Sellers))
	for _, s := range in.Sellers {
		if s.SellerID == "" {
			continue
		}
		if _, dup := seenSellers[s.SellerID]; dup {
			continue
		}
		seenSellers[s.SellerID] = struct{}{}
		dims.Sellers = append(dims.Sellers, warehouse.SellerDim{
			SellerID:      s.SellerID,
			City:          s.City,
			State:         s.State,
			ZipCodePrefix: s.ZipCodePrefix,
		})
		geo.add(s.State, s.City, s.ZipCodePrefix)
	}

	dims.Geography = geo.rows
	return dims, nil
}

type coord struct {
	lat, lng float64
}

// geographyBuilder collects distinct locations and attaches the mean
// coordinates of validated geolocation points sharing their zip prefix
type geographyBuilder struct {
	coords map[int64]coord
	seen   map[warehouse.GeographyKey]struct{}
	rows   []warehouse.GeographyDim
}

func newGeographyBuilder(points []dataset.GeolocationPoint) (*geographyBuilder, error) {
	b := &geographyBuilder{
		coords: make(map[int64]coord),
		seen:   make(map[warehouse.GeographyKey]struct{}),
	}

	var zips []int
	var lats, lngs []float64
	for _, p := range points {
		if p.ZipCodePrefix == nil || p.Lat == nil || p.Lng == nil {
			continue
		}
		zips = append(zips, int(*p.ZipCodePrefix))
		lats = append(lats, *p.Lat)
		lngs = append(lngs, *p.Lng)
	}
	if len(zips) == 0 {
		return b, nil
	}

	df, err := newFrame("geolocation",
		series.New(zips, series.Int, colZip),
		series.New(lats, series.Float, colLat),
		series.New(lngs, series.Float, colLng),
	)
	if err != nil {
		return nil, err
	}
	groups := df.GroupBy(colZip)
	if groups.Err != nil {
		return nil, fmt.Errorf("failed to group geolocation by zip: %w", groups.Err)
	}
	means := groups.Aggregation(
		[]dataframe.AggregationType{dataframe.Aggregation_MEAN, dataframe.Aggregation_MEAN},
		[]string{colLat, colLng},
	)
	if means.Err != nil {
		return nil, fmt.Errorf("failed to average geolocation: %w", means.Err)
	}

	keys, err := means.Col(colZip).Int()
	if err != nil {
		return nil, fmt.Errorf("failed to read geolocation zips: %w", err)
	}
	meanLats := means.Col(aggregatedColumn(colLat, dataframe.Aggregation_MEAN)).Float()
	meanLngs := means.Col(aggregatedColumn(colLng, dataframe.Aggregation_MEAN)).Float()
	for i, zip := range keys {
		b.coords[int64(zip)] = coord{lat: meanLats[i], lng: meanLngs[i]}
	}
	return b, nil
}

func (b *geographyBuilder) add(state, city string, zip *int64) {
	key := geographyKey(state, city, zip)
	if _, dup := b.seen[key]; dup {
		return
	}
	b.seen[key] = struct{}{}

	row := warehouse.GeographyDim{Key: key}
	if zip != nil {
		if c, ok := b.coords[*zip]; ok {
			lat, lng := c.lat, c.lng
			row.Lat = &lat
			row.Lng = &lng
		}
	}
	b.rows = append(b.rows, row)
}
