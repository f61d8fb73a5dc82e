package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductVariant is the purchasable unit. Stock never drops below zero.
type ProductVariant struct {
	ID                int64           `gorm:"column:id;primaryKey"`
	ProductID         int64           `gorm:"column:product_id;not null;index"`
	Name              string          `gorm:"column:name;not null"`
	SKU               *string         `gorm:"column:sku"`
	Price             decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Stock             int             `gorm:"column:stock;not null;default:0"`
	WeightGrams       int             `gorm:"column:weight_grams;not null;default:0"`
	LowStockThreshold int             `gorm:"column:low_stock_threshold;not null;default:5"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
