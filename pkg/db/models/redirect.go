package models

import "time"

// Redirect maps a legacy storefront path to its replacement.
type Redirect struct {
	ID         int64     `gorm:"column:id;primaryKey" json:"id"`
	FromPath   string    `gorm:"column:from_path;not null;uniqueIndex" json:"fromPath"`
	ToPath     string    `gorm:"column:to_path;not null" json:"toPath"`
	StatusCode int       `gorm:"column:status_code;not null;default:301" json:"statusCode"`
	Hits       int64     `gorm:"column:hits;not null;default:0" json:"hits"`
	Active     bool      `gorm:"column:active;not null;default:true" json:"active"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}
