package models

import (
	"encoding/json"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// OrderEvent is an insert-only audit entry.
type OrderEvent struct {
	ID        int64                `gorm:"column:id;primaryKey"`
	OrderID   int64                `gorm:"column:order_id;not null;index"`
	Kind      enums.OrderEventKind `gorm:"column:kind;type:text;not null"`
	Payload   json.RawMessage      `gorm:"column:payload;type:jsonb"`
	CreatedAt time.Time            `gorm:"column:created_at;autoCreateTime"`
}
