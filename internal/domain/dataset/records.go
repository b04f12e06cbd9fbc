package dataset

import (
	"time"

	"github.com/shopspring/decimal"
)

// The record types below are typed views over cleaned tables. Optional
// fields use pointer or Null types; an absent source field stays absent.

// Order is a cleaned orders row
type Order struct {
	OrderID             string
	CustomerID          string
	Status              string
	PurchasedAt         *time.Time
	ApprovedAt          *time.Time
	DeliveredCarrierAt  *time.Time
	DeliveredCustomerAt *time.Time
	EstimatedDeliveryAt *time.Time
}

// OrderItem is a cleaned order_items row
type OrderItem struct {
	OrderID       string
	ItemSeq       *int64
	ProductID     string
	SellerID      string
	ShippingLimit *time.Time
	Price         decimal.NullDecimal
	Freight       decimal.NullDecimal
}

// LineValue is price plus freight with absent parts counted as zero
func (i OrderItem) LineValue() decimal.Decimal {
	v := decimal.Zero
	if i.Price.Valid {
		v = v.Add(i.Price.Decimal)
	}
	if i.Freight.Valid {
		v = v.Add(i.Freight.Decimal)
	}
	return v
}

// Payment is a cleaned order_payments row
type Payment struct {
	OrderID      string
	Sequential   *int64
	Type         string
	Installments *int64
	Value        decimal.NullDecimal
}

// Review is a cleaned order_reviews row
type Review struct {
	ReviewID       string
	OrderID        string
	Score          *int64
	CommentTitle   string
	CommentMessage string
	CreatedAt      *time.Time
	AnsweredAt     *time.Time
}

// HasComment reports whether the review carries a non-empty message
func (r Review) HasComment() bool {
	return r.CommentMessage != "" && r.CommentMessage != UnknownSentinel
}

// Customer is a cleaned customers row
type Customer struct {
	CustomerID       string
	CustomerUniqueID string
	ZipCodePrefix    *int64
	City             string
	State            string
}

// Product is a cleaned products row
type Product struct {
	ProductID         string
	CategoryName      string
	NameLength        *float64
	DescriptionLength *float64
	PhotosQty         *float64
	WeightG           *float64
	LengthCM          *float64
	HeightCM          *float64
	WidthCM           *float64
}

// Seller is a cleaned sellers row
type Seller struct {
	SellerID      string
	ZipCodePrefix *int64
	City          string
	State         string
}

// GeolocationPoint is a cleaned geolocation row
type GeolocationPoint struct {
	ZipCodePrefix *int64
	Lat           *float64
	Lng           *float64
	City          string
	State         string
}

// CategoryName is a cleaned category_translation row
type CategoryName struct {
	Name        string
	EnglishName string
}

// UnknownSentinel replaces missing string fields during cleaning
const UnknownSentinel = "unknown"

// DecodeOrders reads typed orders from a cleaned table
func DecodeOrders(t *Table) []Order {
	if t == nil {
		return nil
	}
	out := make([]Order, 0, len(t.Rows))
	for _, r := range t.Rows {
		out = append(out, Order{
			OrderID:             r.StringOr("order_id", ""),
			CustomerID:          r.StringOr("customer_id", ""),
			Status:              r.StringOr("order_status", UnknownSentinel),
			PurchasedAt:         timePtr(r, "order_purchase_timestamp"),
			ApprovedAt:          timePtr(r, "order_approved_at"),
			DeliveredCarrierAt:  timePtr(r, "order_delivered_carrier_date"),
			DeliveredCustomerAt: timePtr(r, "order_delivered_customer_date"),
			EstimatedDeliveryAt: timePtr(r, "order_estimated_delivery_date"),
		})
	}
	return out
}

// DecodeOrderItems reads typed order items from a cleaned table
func DecodeOrderItems(t *Table) []OrderItem {
	if t == nil {
		return nil
	}
	out := make([]OrderItem, 0, len(t.Rows))
	for _, r := range t.Rows {
		out = append(out, OrderItem{
			OrderID:       r.StringOr("order_id", ""),
			ItemSeq:       intPtr(r, "order_item_id"),
			ProductID:     r.StringOr("product_id", ""),
			SellerID:      r.StringOr("seller_id", ""),
			ShippingLimit: timePtr(r, "shipping_limit_date"),
			Price:         money(r, "price"),
			Freight:       money(r, "freight_value"),
		})
	}
	return out
}

// DecodePayments reads typed payments from a cleaned table
func DecodePayments(t *Table) []Payment {
	if t == nil {
		return nil
	}
	out := make([]Payment, 0, len(t.Rows))
	for _, r := range t.Rows {
		out = append(out, Payment{
			OrderID:      r.StringOr("order_id", ""),
			Sequential:   intPtr(r, "payment_sequential"),
			Type:         r.StringOr("payment_type", UnknownSentinel),
			Installments: intPtr(r, "payment_installments"),
			Value:        money(r, "payment_value"),
		})
	}
	return out
}

// DecodeReviews reads typed reviews from a cleaned table
func DecodeReviews(t *Table) []Review {
	if t == nil {
		return nil
	}
	out := make([]Review, 0, len(t.Rows))
	for _, r := range t.Rows {
		out = append(out, Review{
			ReviewID:       r.StringOr("review_id", ""),
			OrderID:        r.StringOr("order_id", ""),
			Score:          intPtr(r, "review_score"),
			CommentTitle:   r.StringOr("review_comment_title", ""),
			CommentMessage: r.StringOr("review_comment_message", ""),
			CreatedAt:      timePtr(r, "review_creation_date"),
			AnsweredAt:     timePtr(r, "review_answer_timestamp"),
		})
	}
	return out
}

// DecodeCustomers reads typed customers from a cleaned table
func DecodeCustomers(t *Table) []Customer {
	if t == nil {
		return nil
	}
	out := make([]Customer, 0, len(t.Rows))
	for _, r := range t.Rows {
		out = append(out, Customer{
			CustomerID:       r.StringOr("customer_id", ""),
			CustomerUniqueID: r.StringOr("customer_unique_id", ""),
			ZipCodePrefix:    intPtr(r, "customer_zip_code_prefix"),
			City:             r.StringOr("customer_city", UnknownSentinel),
			State:            r.StringOr("customer_state", UnknownSentinel),
		})
	}
	return out
}

// DecodeProducts reads typed products from a cleaned table
func DecodeProducts(t *Table) []Product {
	if t == nil {
		return nil
	}
	out := make([]Product, 0, len(t.Rows))
	for _, r := range t.Rows {
		out = append(out, Product{
			ProductID:         r.StringOr("product_id", ""),
			CategoryName:      r.StringOr("product_category_name", UnknownSentinel),
			NameLength:        floatPtr(r, "product_name_length"),
			DescriptionLength: floatPtr(r, "product_description_length"),
			PhotosQty:         floatPtr(r, "product_photos_qty"),
			WeightG:           floatPtr(r, "product_weight_g"),
			LengthCM:          floatPtr(r, "product_length_cm"),
			HeightCM:          floatPtr(r, "product_height_cm"),
			WidthCM:           floatPtr(r, "product_width_cm"),
		})
	}
	return out
}

// DecodeSellers reads typed sellers from a cleaned table
func DecodeSellers(t *Table) []Seller {
	if t == nil {
		return nil
	}
	out := make([]Seller, 0, len(t.Rows))
	for _, r := range t.Rows {
		out = append(out, Seller{
			SellerID:      r.StringOr("seller_id", ""),
			ZipCodePrefix: intPtr(r, "seller_zip_code_prefix"),
			City:          r.StringOr("seller_city", UnknownSentinel),
			State:         r.StringOr("seller_state", UnknownSentinel),
		})
	}
	return out
}

// DecodeGeolocation reads typed geolocation points from a cleaned table
func DecodeGeolocation(t *Table) []GeolocationPoint {
	if t == nil {
		return nil
	}
	out := make([]GeolocationPoint, 0, len(t.Rows))
	for _, r := range t.Rows {
		out = append(out, GeolocationPoint{
			ZipCodePrefix: intPtr(r, "geolocation_zip_code_prefix"),
			Lat:           floatPtr(r, "geolocation_lat"),
			Lng:           floatPtr(r, "geolocation_lng"),
			City:          r.StringOr("geolocation_city", UnknownSentinel),
			State:         r.StringOr("geolocation_state", UnknownSentinel),
		})
	}
	return out
}

// DecodeCategoryNames reads the category translation table
func DecodeCategoryNames(t *Table) []CategoryName {
	if t == nil {
		return nil
	}
	out := make([]CategoryName, 0, len(t.Rows))
	for _, r := range t.Rows {
		name, ok := r.String("product_category_name")
		if !ok {
			continue
		}
		english, ok := r.String("product_category_name_english")
		if !ok || english == UnknownSentinel {
			continue
		}
		out = append(out, CategoryName{Name: name, EnglishName: english})
	}
	return out
}

func timePtr(r Row, col string) *time.Time {
	if v, ok := r.Time(col); ok {
		return &v
	}
	return nil
}

func intPtr(r Row, col string) *int64 {
	if v, ok := r.Int(col); ok {
		return &v
	}
	return nil
}

func floatPtr(r Row, col string) *float64 {
	if v, ok := r.Float(col); ok {
		return &v
	}
	return nil
}

func money(r Row, col string) decimal.NullDecimal {
	if v, ok := r.Float(col); ok {
		return decimal.NewNullDecimal(decimal.NewFromFloat(v).Round(2))
	}
	return decimal.NullDecimal{}
}
