// Package warehouse holds the star-schema model produced by the transform
// engine: the consolidated order fact and its dimensions.
package warehouse

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderFact is one consolidated row per order_id.
// Dimension references are natural keys; the loader resolves them to
// surrogate keys and nulls any reference that cannot be resolved.
type OrderFact struct {
	OrderID string
	Status  string

	PurchasedAt         *time.Time
	ApprovedAt          *time.Time
	DeliveredCarrierAt  *time.Time
	DeliveredCustomerAt *time.Time
	EstimatedDeliveryAt *time.Time

	// OrderTotal is Σ(price + freight) over the order's items.
	// Absent when the order has no items; ItemsMissing flags that case.
	OrderTotal        decimal.NullDecimal
	ItemsMissing      bool
	ItemsCount        int
	ItemsTotalPrice   decimal.NullDecimal
	ItemsTotalFreight decimal.NullDecimal
	UniqueSellers     int

	DeliveryDays      *int
	DeliveryDelayDays *int

	PaymentTotal    decimal.NullDecimal
	PaymentTypes    string
	MaxInstallments *int64

	ReviewScore      *int64
	ReviewCount      int
	HasReviewComment bool

	MainProductCategory string

	TimeRef      *DateKey
	CustomerRef  *string
	ProductRef   *string
	SellerRef    *string
	GeographyRef *GeographyKey
}
