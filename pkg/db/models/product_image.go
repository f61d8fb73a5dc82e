package models

import "time"

// ProductImage references an externally hosted image.
type ProductImage struct {
	ID        int64     `gorm:"column:id;primaryKey"`
	ProductID int64     `gorm:"column:product_id;not null;index"`
	URL       string    `gorm:"column:url;not null"`
	Alt       string    `gorm:"column:alt;not null;default:''"`
	Position  int       `gorm:"column:position;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
