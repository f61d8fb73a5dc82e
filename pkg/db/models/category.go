package models

import (
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Category groups products; ParentID allows a single level of nesting.
type Category struct {
	ID        int64                `gorm:"column:id;primaryKey" json:"id"`
	Slug      string               `gorm:"column:slug;not null;uniqueIndex" json:"slug"`
	Name      string               `gorm:"column:name;not null" json:"name"`
	ParentID  *int64               `gorm:"column:parent_id;index" json:"parentId,omitempty"`
	Position  int                  `gorm:"column:position;not null;default:0" json:"position"`
	Status    enums.CategoryStatus `gorm:"column:status;type:text;not null;default:'active'" json:"status"`
	Children  []Category           `gorm:"foreignKey:ParentID" json:"children,omitempty"`
	CreatedAt time.Time            `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time            `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}
