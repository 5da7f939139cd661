package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	MinQuantity = 1
	MaxQuantity = 1000
)

// OrderItem is one purchased line. UnitPrice is the price at purchase time.
type OrderItem struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	Order     *Order          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;not null;index"`
	Product   *Product        `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	Quantity  int             `gorm:"column:quantity;not null"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(10,2);not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

func (i OrderItem) FinalPrice() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
