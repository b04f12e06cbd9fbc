package models

import (
	"time"

	"github.com/ecomdw/etl/internal/domain/warehouse"
)

// TimeDimModel maps dim_time
type TimeDimModel struct {
	TimeID    int64     `gorm:"column:time_id;primaryKey;autoIncrement"`
	DateKey   string    `gorm:"column:date_key;type:varchar(10);uniqueIndex;not null"`
	OrderDate time.Time `gorm:"column:order_date;type:date;not null"`
	Year      int       `gorm:"column:order_year;not null"`
	Month     int       `gorm:"column:order_month;not null"`
	Quarter   int       `gorm:"column:order_quarter;not null"`
	DayOfWeek int       `gorm:"column:day_of_week;not null"`
	DayName   string    `gorm:"column:day_name;type:varchar(20);not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (TimeDimModel) TableName() string {
	return "dim_time"
}

// TimeDimModelFromDomain creates a persistence model from a dim_time row
func TimeDimModelFromDomain(d warehouse.TimeDim) *TimeDimModel {
	return &TimeDimModel{
		DateKey:   string(d.Key),
		OrderDate: d.Date,
		Year:      d.Year,
		Month:     d.Month,
		Quarter:   d.Quarter,
		DayOfWeek: d.DayOfWeek,
		DayName:   d.DayName,
	}
}

// CustomerDimModel maps dim_customers
type CustomerDimModel struct {
	CustomerKey      int64     `gorm:"column:customer_key;primaryKey;autoIncrement"`
	CustomerID       string    `gorm:"column:customer_id;type:varchar(50);uniqueIndex;not null"`
	CustomerUniqueID string    `gorm:"column:customer_unique_id;type:varchar(50);index"`
	City             string    `gorm:"column:customer_city;type:varchar(100)"`
	State            string    `gorm:"column:customer_state;type:varchar(50)"`
	ZipCodePrefix    *int64    `gorm:"column:customer_zip_code_prefix"`
	IsRepeatCustomer bool      `gorm:"column:is_repeat_customer;not null;default:false"`
	TotalOrders      int       `gorm:"column:total_orders;not null;default:0"`
	CreatedAt        time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CustomerDimModel) TableName() string {
	return "dim_customers"
}

// CustomerDimModelFromDomain creates a persistence model from a dim_customers row
func CustomerDimModelFromDomain(d warehouse.CustomerDim) *CustomerDimModel {
	return &CustomerDimModel{
		CustomerID:       d.CustomerID,
		CustomerUniqueID: d.CustomerUniqueID,
		City:             d.City,
		State:            d.State,
		ZipCodePrefix:    d.ZipCodePrefix,
		IsRepeatCustomer: d.IsRepeatCustomer,
		TotalOrders:      d.TotalOrders,
	}
}

// ProductDimModel maps dim_products
type ProductDimModel struct {
	ProductKey          int64     `gorm:"column:product_key;primaryKey;autoIncrement"`
	ProductID           string    `gorm:"column:product_id;type:varchar(50);uniqueIndex;not null"`
	CategoryName        string    `gorm:"column:product_category_name;type:varchar(100)"`
	CategoryNameEnglish string    `gorm:"column:product_category_name_english;type:varchar(100)"`
	PhotosQty           *float64  `gorm:"column:product_photos_qty"`
	WeightG             *float64  `gorm:"column:product_weight_g"`
	LengthCM            *float64  `gorm:"column:product_length_cm"`
	HeightCM            *float64  `gorm:"column:product_height_cm"`
	WidthCM             *float64  `gorm:"column:product_width_cm"`
	CreatedAt           time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProductDimModel) TableName() string {
	return "dim_products"
}

// ProductDimModelFromDomain creates a persistence model from a dim_products row
func ProductDimModelFromDomain(d warehouse.ProductDim) *ProductDimModel {
	return &ProductDimModel{
		ProductID:           d.ProductID,
		CategoryName:        d.CategoryName,
		CategoryNameEnglish: d.CategoryNameEnglish,
		PhotosQty:           d.PhotosQty,
		WeightG:             d.WeightG,
		LengthCM:            d.LengthCM,
		HeightCM:            d.HeightCM,
		WidthCM:             d.WidthCM,
	}
}

// SellerDimModel maps dim_sellers
type SellerDimModel struct {
	SellerKey     int64     `gorm:"column:seller_key;primaryKey;autoIncrement"`
	SellerID      string    `gorm:"column:seller_id;type:varchar(50);uniqueIndex;not null"`
	City          string    `gorm:"column:seller_city;type:varchar(100)"`
	State         string    `gorm:"column:seller_state;type:varchar(50)"`
	ZipCodePrefix *int64    `gorm:"column:seller_zip_code_prefix"`
	CreatedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SellerDimModel) TableName() string {
	return "dim_sellers"
}

// SellerDimModelFromDomain creates a persistence model from a dim_sellers row
func SellerDimModelFromDomain(d warehouse.SellerDim) *SellerDimModel {
	return &SellerDimModel{
		SellerID:      d.SellerID,
		City:          d.City,
		State:         d.State,
		ZipCodePrefix: d.ZipCodePrefix,
	}
}

// GeographyDimModel maps dim_geography. The natural key is the composite
// (state, city, zip_code_prefix).
type GeographyDimModel struct {
	GeographyKey  int64     `gorm:"column:geography_key;primaryKey;autoIncrement"`
	State         string    `gorm:"column:state;type:varchar(50);not null;uniqueIndex:idx_geography_natural_key,priority:1"`
	City          string    `gorm:"column:city;type:varchar(100);not null;uniqueIndex:idx_geography_natural_key,priority:2"`
	ZipCodePrefix int64     `gorm:"column:zip_code_prefix;not null;uniqueIndex:idx_geography_natural_key,priority:3"`
	Lat           *float64  `gorm:"column:lat"`
	Lng           *float64  `gorm:"column:lng"`
	CreatedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (GeographyDimModel) TableName() string {
	return "dim_geography"
}

// Key returns the natural key of the row
func (m *GeographyDimModel) Key() warehouse.GeographyKey {
	return warehouse.GeographyKey{State: m.State, City: m.City, ZipCodePrefix: m.ZipCodePrefix}
}

// GeographyDimModelFromDomain creates a persistence model from a dim_geography row
func GeographyDimModelFromDomain(d warehouse.GeographyDim) *GeographyDimModel {
	return &GeographyDimModel{
		State:         d.Key.State,
		City:          d.Key.City,
		ZipCodePrefix: d.Key.ZipCodePrefix,
		Lat:           d.Lat,
		Lng:           d.Lng,
	}
}
