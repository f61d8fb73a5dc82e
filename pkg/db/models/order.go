package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Order is a confirmed purchase. Guest orders carry no CustomerID.
type Order struct {
	ID                 int64               `gorm:"column:id;primaryKey"`
	OrderNumber        string              `gorm:"column:order_number;not null;uniqueIndex"`
	CheckoutSessionRef *string             `gorm:"column:checkout_session_ref;uniqueIndex"`
	CustomerID         *string             `gorm:"column:customer_id;index"`
	Email              string              `gorm:"column:email;not null"`
	Status             enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentStatus      enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	Subtotal           decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null"`
	ShippingTotal      decimal.Decimal     `gorm:"column:shipping_total;type:numeric(12,2);not null"`
	DiscountTotal      decimal.Decimal     `gorm:"column:discount_total;type:numeric(12,2);not null"`
	TaxTotal           decimal.Decimal     `gorm:"column:tax_total;type:numeric(12,2);not null"`
	Total              decimal.Decimal     `gorm:"column:total;type:numeric(12,2);not null"`
	DiscountCode       *string             `gorm:"column:discount_code"`
	ShippingCountry    string              `gorm:"column:shipping_country;not null;default:''"`
	ShippedAt          *time.Time          `gorm:"column:shipped_at"`
	DeliveredAt        *time.Time          `gorm:"column:delivered_at"`
	Items              []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Events             []OrderEvent        `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
