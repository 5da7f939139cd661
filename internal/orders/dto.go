package orders

import (
	"time"

	"github.com/angelmondragon/storefront-backend/internal/customers"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/google/uuid"
)

// OrderItemDTO is one purchased line.
type OrderItemDTO struct {
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name,omitempty"`
	ProductSlug string    `json:"product_slug,omitempty"`
	Quantity    int       `json:"quantity"`
	UnitPrice   string    `json:"unit_price"`
	FinalPrice  string    `json:"final_price"`
}

// OrderDTO is the public shape of an order.
type OrderDTO struct {
	ID             uuid.UUID              `json:"id"`
	OrderNumber    string                 `json:"order_number"`
	Status         enums.OrderStatus      `json:"status"`
	Total          string                 `json:"total"`
	TaxAmount      string                 `json:"tax_amount"`
	ShippingCost   string                 `json:"shipping_cost"`
	Notes          string                 `json:"notes,omitempty"`
	CanBeCancelled bool                   `json:"can_be_cancelled"`
	Items          []OrderItemDTO         `json:"items"`
	Customer       *customers.CustomerDTO `json:"customer,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// OrderListDTO is one page of order history.
type OrderListDTO struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

func NewOrderDTO(o *models.Order) OrderDTO {
	dto := OrderDTO{
		ID:             o.ID,
		OrderNumber:    o.OrderNumber,
		Status:         o.Status,
		Total:          o.TotalPrice().StringFixed(2),
		TaxAmount:      o.TaxAmount.StringFixed(2),
		ShippingCost:   o.ShippingCost.StringFixed(2),
		Notes:          o.Notes,
		CanBeCancelled: o.CanBeCancelled(),
		Items:          make([]OrderItemDTO, 0, len(o.Items)),
		Customer:       customers.FromModel(o.Customer),
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
	for _, item := range o.Items {
		line := OrderItemDTO{
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice.StringFixed(2),
			FinalPrice: item.FinalPrice().StringFixed(2),
		}
		if item.Product != nil {
			line.ProductName = item.Product.Name
			line.ProductSlug = item.Product.Slug
		}
		dto.Items = append(dto.Items, line)
	}
	return dto
}
