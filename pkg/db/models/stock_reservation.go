package models

import "time"

// StockReservation holds variant stock for an open checkout session until ExpiresAt.
type StockReservation struct {
	ID                 int64     `gorm:"column:id;primaryKey"`
	VariantID          int64     `gorm:"column:variant_id;not null;index"`
	Quantity           int       `gorm:"column:quantity;not null"`
	ExpiresAt          time.Time `gorm:"column:expires_at;not null;index"`
	CheckoutSessionRef string    `gorm:"column:checkout_session_ref;not null;index"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime"`
}
