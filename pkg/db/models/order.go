package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Order is a placed purchase. UserID is cleared when the account is deleted;
// the order itself stays for the customer record.
type Order struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	UserID       *uuid.UUID        `gorm:"column:user_id;type:uuid;index"`
	User         *User             `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL"`
	CustomerID   uuid.UUID         `gorm:"column:customer_id;type:uuid;not null;index"`
	Customer     *Customer         `gorm:"foreignKey:CustomerID;constraint:OnDelete:CASCADE"`
	OrderNumber  string            `gorm:"column:order_number;size:20;not null;uniqueIndex:ux_orders_order_number"`
	Status       enums.OrderStatus `gorm:"column:status;size:20;not null;default:'pending';index"`
	TaxAmount    decimal.Decimal   `gorm:"column:tax_amount;type:numeric(10,2);not null;default:0"`
	ShippingCost decimal.Decimal   `gorm:"column:shipping_cost;type:numeric(10,2);not null;default:0"`
	Notes        string            `gorm:"column:notes;size:500;not null;default:''"`
	Items        []OrderItem       `gorm:"foreignKey:OrderID"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.Status == "" {
		o.Status = enums.OrderStatusPending
	}
	return nil
}

// TotalPrice sums item final prices. Tax and shipping are stored but not added.
func (o Order) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.FinalPrice())
	}
	return total
}

// CanBeCancelled reports whether the storefront may cancel the order.
func (o Order) CanBeCancelled() bool {
	return o.Status == enums.OrderStatusPending
}
