package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const MaxCategoryNameLength = 100

// Category groups products on the storefront.
type Category struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name        string    `gorm:"column:name;size:100;not null;uniqueIndex:ux_categories_name"`
	Slug        string    `gorm:"column:slug;size:100;not null;uniqueIndex:ux_categories_slug"`
	Description string    `gorm:"column:description;not null;default:''"`
	IsActive    bool      `gorm:"column:is_active;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
