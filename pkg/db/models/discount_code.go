package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// DiscountCode is an admin-managed promotion. UsesCount only ever grows.
type DiscountCode struct {
	ID            int64              `gorm:"column:id;primaryKey" json:"id"`
	Code          string             `gorm:"column:code;not null;uniqueIndex" json:"code"`
	Type          enums.DiscountType `gorm:"column:type;type:text;not null" json:"type"`
	Value         decimal.Decimal    `gorm:"column:value;type:numeric(12,2);not null" json:"value"`
	MinOrderValue *decimal.Decimal   `gorm:"column:min_order_value;type:numeric(12,2)" json:"minOrderValue,omitempty"`
	MaxUses       *int               `gorm:"column:max_uses" json:"maxUses,omitempty"`
	UsesCount     int                `gorm:"column:uses_count;not null;default:0" json:"usesCount"`
	StartsAt      *time.Time         `gorm:"column:starts_at" json:"startsAt,omitempty"`
	ExpiresAt     *time.Time         `gorm:"column:expires_at" json:"expiresAt,omitempty"`
	Active        bool               `gorm:"column:active;not null;default:true" json:"active"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}
