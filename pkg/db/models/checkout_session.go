package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// CheckoutLine is the priced snapshot of a cart line taken when the session opens.
type CheckoutLine struct {
	VariantID   int64           `json:"variantId"`
	ProductName string          `json:"productName"`
	VariantName string          `json:"variantName"`
	SKU         string          `json:"sku,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	WeightGrams int             `json:"weightGrams"`
}

// CheckoutSession records an in-progress checkout. Ref is the idempotency key used by
// payment confirmation.
type CheckoutSession struct {
	ID               int64                       `gorm:"column:id;primaryKey"`
	Ref              string                      `gorm:"column:ref;not null;uniqueIndex"`
	Email            string                      `gorm:"column:email;not null"`
	CustomerID       *string                     `gorm:"column:customer_id"`
	Status           enums.CheckoutSessionStatus `gorm:"column:status;type:text;not null;default:'open'"`
	Lines            []CheckoutLine              `gorm:"column:lines;type:jsonb;serializer:json;not null"`
	DiscountCode     *string                     `gorm:"column:discount_code"`
	ShippingCountry  string                      `gorm:"column:shipping_country;not null"`
	Subtotal         decimal.Decimal             `gorm:"column:subtotal;type:numeric(12,2);not null"`
	ShippingTotal    decimal.Decimal             `gorm:"column:shipping_total;type:numeric(12,2);not null"`
	DiscountTotal    decimal.Decimal             `gorm:"column:discount_total;type:numeric(12,2);not null"`
	TaxTotal         decimal.Decimal             `gorm:"column:tax_total;type:numeric(12,2);not null"`
	Total            decimal.Decimal             `gorm:"column:total;type:numeric(12,2);not null"`
	PaymentSessionID *string                     `gorm:"column:payment_session_id"`
	PaymentURL       *string                     `gorm:"column:payment_url"`
	ExpiresAt        time.Time                   `gorm:"column:expires_at;not null"`
	CreatedAt        time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}
