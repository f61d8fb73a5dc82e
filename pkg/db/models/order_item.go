package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderItem snapshots a purchased line. Rows are never updated.
type OrderItem struct {
	ID        int64           `gorm:"column:id;primaryKey"`
	OrderID   int64           `gorm:"column:order_id;not null;index"`
	VariantID *int64          `gorm:"column:variant_id"`
	Name      string          `gorm:"column:name;not null"`
	SKU       string          `gorm:"column:sku;not null;default:''"`
	Quantity  int             `gorm:"column:quantity;not null"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}
