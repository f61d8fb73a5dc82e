package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ShippingZone groups destination countries (ISO2) sharing a rate table.
type ShippingZone struct {
	ID        int64          `gorm:"column:id;primaryKey" json:"id"`
	Name      string         `gorm:"column:name;not null" json:"name"`
	Countries []string       `gorm:"column:countries;type:jsonb;serializer:json;not null" json:"countries"`
	Rates     []ShippingRate `gorm:"foreignKey:ZoneID;constraint:OnDelete:CASCADE" json:"rates"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// ShippingRate prices a weight band. A nil MaxWeightGrams is unbounded.
type ShippingRate struct {
	ID             int64           `gorm:"column:id;primaryKey" json:"id"`
	ZoneID         int64           `gorm:"column:zone_id;not null;index" json:"zoneId"`
	Name           string          `gorm:"column:name;not null" json:"name"`
	MinWeightGrams int             `gorm:"column:min_weight_grams;not null;default:0" json:"minWeightGrams"`
	MaxWeightGrams *int            `gorm:"column:max_weight_grams" json:"maxWeightGrams,omitempty"`
	Price          decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null" json:"price"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}
