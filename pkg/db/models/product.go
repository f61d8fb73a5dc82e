package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Product is the catalog listing; price and stock live on its variants.
type Product struct {
	ID          int64               `gorm:"column:id;primaryKey"`
	Slug        string              `gorm:"column:slug;not null;uniqueIndex"`
	Name        string              `gorm:"column:name;not null"`
	Description string              `gorm:"column:description;not null;default:''"`
	BasePrice   decimal.Decimal     `gorm:"column:base_price;type:numeric(12,2);not null"`
	Status      enums.ProductStatus `gorm:"column:status;type:text;not null;default:'draft'"`
	Featured    bool                `gorm:"column:featured;not null;default:false"`
	CategoryID  *int64              `gorm:"column:category_id;index"`
	Category    *Category           `gorm:"foreignKey:CategoryID"`
	Variants    []ProductVariant    `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	Images      []ProductImage      `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
