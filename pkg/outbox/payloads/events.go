package payloads

import (
	"time"

	"github.com/google/uuid"
)

// OrderLine is one purchased product inside an order event.
type OrderLine struct {
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	Quantity    int       `json:"quantity"`
	UnitPrice   string    `json:"unit_price"`
}

// OrderCreatedEvent is emitted when checkout commits a new order.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID   `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	CustomerID  uuid.UUID   `json:"customer_id"`
	Email       string      `json:"email"`
	UserID      *uuid.UUID  `json:"user_id,omitempty"`
	Total       string      `json:"total"`
	Items       []OrderLine `json:"items"`
}

// OrderCanceledEvent is emitted when a pending order is cancelled by its owner.
type OrderCanceledEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	CanceledAt  time.Time `json:"canceled_at"`
	Reason      string    `json:"reason,omitempty"`
}

// OrderExpiredEvent is emitted when a pending order outlives its TTL and is auto-cancelled.
type OrderExpiredEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	PlacedAt    time.Time `json:"placed_at"`
	ExpiredAt   time.Time `json:"expired_at"`
}
