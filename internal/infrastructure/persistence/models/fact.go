package models

import (
	"time"

	"github.com/ecomdw/etl/internal/domain/warehouse"
	"github.com/shopspring/decimal"
)

// FactOrderModel maps fact_orders. Foreign keys are nullable surrogate keys.
type FactOrderModel struct {
	OrderID string `gorm:"column:order_id;type:varchar(50);primaryKey"`

	TimeID       *int64 `gorm:"column:time_id;index"`
	CustomerKey  *int64 `gorm:"column:customer_key;index"`
	ProductKey   *int64 `gorm:"column:product_key;index"`
	SellerKey    *int64 `gorm:"column:seller_key;index"`
	GeographyKey *int64 `gorm:"column:geography_key;index"`

	OrderStatus         string     `gorm:"column:order_status;type:varchar(20)"`
	PurchasedAt         *time.Time `gorm:"column:order_purchase_timestamp"`
	ApprovedAt          *time.Time `gorm:"column:order_approved_at"`
	DeliveredCarrierAt  *time.Time `gorm:"column:order_delivered_carrier_date"`
	DeliveredCustomerAt *time.Time `gorm:"column:order_delivered_customer_date"`
	EstimatedDeliveryAt *time.Time `gorm:"column:order_estimated_delivery_date"`

	OrderTotal        decimal.NullDecimal `gorm:"column:order_total;type:decimal(18,2)"`
	ItemsMissing      bool                `gorm:"column:items_missing;not null;default:false"`
	ItemsCount        int                 `gorm:"column:order_items_count;not null;default:0"`
	ItemsTotalPrice   decimal.NullDecimal `gorm:"column:items_total_price;type:decimal(18,2)"`
	ItemsTotalFreight decimal.NullDecimal `gorm:"column:items_total_freight;type:decimal(18,2)"`
	UniqueSellers     int                 `gorm:"column:unique_sellers;not null;default:0"`

	DeliveryDays      *int `gorm:"column:delivery_days"`
	DeliveryDelayDays *int `gorm:"column:delivery_delay_days"`

	PaymentTotal    decimal.NullDecimal `gorm:"column:payment_total;type:decimal(18,2)"`
	PaymentTypes    string              `gorm:"column:payment_types;type:varchar(200)"`
	MaxInstallments *int64              `gorm:"column:max_installments"`

	ReviewScore      *int64 `gorm:"column:review_score"`
	ReviewCount      int    `gorm:"column:review_count;not null;default:0"`
	HasReviewComment bool   `gorm:"column:has_review_comment;not null;default:false"`

	MainProductCategory string `gorm:"column:main_product_category;type:varchar(100)"`

	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (FactOrderModel) TableName() string {
	return "fact_orders"
}

// FactOrderModelFromDomain creates a persistence model from an order fact.
// Surrogate keys are left nil; the loader fills the ones it can resolve.
func FactOrderModelFromDomain(f warehouse.OrderFact) *FactOrderModel {
	return &FactOrderModel{
		OrderID:             f.OrderID,
		OrderStatus:         f.Status,
		PurchasedAt:         f.PurchasedAt,
		ApprovedAt:          f.ApprovedAt,
		DeliveredCarrierAt:  f.DeliveredCarrierAt,
		DeliveredCustomerAt: f.DeliveredCustomerAt,
		EstimatedDeliveryAt: f.EstimatedDeliveryAt,
		OrderTotal:          f.OrderTotal,
		ItemsMissing:        f.ItemsMissing,
		ItemsCount:          f.ItemsCount,
		ItemsTotalPrice:     f.ItemsTotalPrice,
		ItemsTotalFreight:   f.ItemsTotalFreight,
		UniqueSellers:       f.UniqueSellers,
		DeliveryDays:        f.DeliveryDays,
		DeliveryDelayDays:   f.DeliveryDelayDays,
		PaymentTotal:        f.PaymentTotal,
		PaymentTypes:        f.PaymentTypes,
		MaxInstallments:     f.MaxInstallments,
		ReviewScore:         f.ReviewScore,
		ReviewCount:         f.ReviewCount,
		HasReviewComment:    f.HasReviewComment,
		MainProductCategory: f.MainProductCategory,
	}
}

// FactForeignKeyColumns lists the surrogate key columns of fact_orders
var FactForeignKeyColumns = []string{"time_id", "customer_key", "product_key", "seller_key", "geography_key"}

// FactAttributeColumns lists the columns rewritten when a fact is upserted
var FactAttributeColumns = append(append([]string{}, FactForeignKeyColumns...),
	"order_status",
	"order_purchase_timestamp",
	"order_approved_at",
	"order_delivered_carrier_date",
	"order_delivered_customer_date",
	"order_estimated_delivery_date",
	"order_total",
	"items_missing",
	"order_items_count",
	"items_total_price",
	"items_total_freight",
	"unique_sellers",
	"delivery_days",
	"delivery_delay_days",
	"payment_total",
	"payment_types",
	"max_installments",
	"review_score",
	"review_count",
	"has_review_comment",
	"main_product_category",
)
