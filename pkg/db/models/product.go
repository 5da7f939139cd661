package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	MaxProductNameLength = 200
	MinStock             = 0
	MaxStock             = 100000
)

var (
	MinPrice = decimal.RequireFromString("0.01")
	MaxPrice = decimal.RequireFromString("999999.99")
)

// Product is a sellable catalog entry.
type Product struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name        string          `gorm:"column:name;size:200;not null"`
	Slug        string          `gorm:"column:slug;size:200;not null;uniqueIndex:ux_products_slug"`
	CategoryID  uuid.UUID       `gorm:"column:category_id;type:uuid;not null;index"`
	Category    *Category       `gorm:"foreignKey:CategoryID;constraint:OnDelete:CASCADE"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null"`
	Description string          `gorm:"column:description;not null;default:''"`
	Image       *string         `gorm:"column:image"`
	IsAvailable bool            `gorm:"column:is_available;not null"`
	Stock       int             `gorm:"column:stock;not null;default:0"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// IsInStock holds iff the product is available and has at least one unit.
func (p Product) IsInStock() bool {
	return p.IsAvailable && p.Stock > 0
}

// CanPurchase reports whether qty units can currently be bought.
func (p Product) CanPurchase(qty int) bool {
	return p.IsAvailable && qty > 0 && p.Stock >= qty
}

// DisplayPrice formats the price for storefront listings.
func (p Product) DisplayPrice() string {
	return fmt.Sprintf("%s EUR", p.Price.StringFixed(2))
}
