package warehouse

import (
	"fmt"
	"time"
)

// DateKey is the natural key of dim_time: a calendar date as YYYY-MM-DD
type DateKey string

// DateKeyOf returns the calendar date key of a timestamp
func DateKeyOf(t time.Time) DateKey {
	return DateKey(t.Format(time.DateOnly))
}

// GeographyKey is the natural key of dim_geography.
// ZipCodePrefix is 0 when the source location carries no zip prefix.
type GeographyKey struct {
	State         string
	City          string
	ZipCodePrefix int64
}

// String renders the key for logs and integrity gap reports
func (k GeographyKey) String() string {
	return fmt.Sprintf("%s|%s|%05d", k.State, k.City, k.ZipCodePrefix)
}

// TimeDim is a dim_time row
type TimeDim struct {
	Key       DateKey
	Date      time.Time
	Year      int
	Month     int
	Quarter   int
	DayOfWeek int
	DayName   string
}

// NewTimeDim derives calendar attributes for a date.
// DayOfWeek follows ISO numbering with Monday as 0.
func NewTimeDim(t time.Time) TimeDim {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return TimeDim{
		Key:       DateKeyOf(d),
		Date:      d,
		Year:      d.Year(),
		Month:     int(d.Month()),
		Quarter:   (int(d.Month())-1)/3 + 1,
		DayOfWeek: (int(d.Weekday()) + 6) % 7,
		DayName:   d.Weekday().String(),
	}
}

// CustomerDim is a dim_customers row keyed by customer_id
type CustomerDim struct {
	CustomerID       string
	CustomerUniqueID string
	City             string
	State            string
	ZipCodePrefix    *int64
	IsRepeatCustomer bool
	TotalOrders      int
}

// ProductDim is a dim_products row keyed by product_id
type ProductDim struct {
	ProductID           string
	CategoryName        string
	CategoryNameEnglish string
	PhotosQty           *float64
	WeightG             *float64
	LengthCM            *float64
	HeightCM            *float64
	WidthCM             *float64
}

// SellerDim is a dim_sellers row keyed by seller_id
type SellerDim struct {
	SellerID      string
	City          string
	State         string
	ZipCodePrefix *int64
}

// GeographyDim is a dim_geography row
type GeographyDim struct {
	Key GeographyKey
	Lat *float64
	Lng *float64
}

// Dimensions is the deduplicated dimension set of one load batch
type Dimensions struct {
	Time      []TimeDim
	Customers []CustomerDim
	Products  []ProductDim
	Sellers   []SellerDim
	Geography []GeographyDim
}
