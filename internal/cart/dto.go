package cart

import "github.com/angelmondragon/storefront-backend/internal/catalog"

// ItemDTO is the public shape of a resolved cart line.
type ItemDTO struct {
	Product      catalog.ProductDTO `json:"product"`
	Quantity     int                `json:"quantity"`
	UnitPrice    string             `json:"unit_price"`
	CurrentPrice string             `json:"current_price"`
	PriceChanged bool               `json:"price_changed"`
	Subtotal     string             `json:"subtotal"`
}

// SummaryDTO is the cart view returned to the storefront.
type SummaryDTO struct {
	Items     []ItemDTO `json:"items"`
	Total     string    `json:"total"`
	ItemCount int       `json:"item_count"`
}

func NewSummaryDTO(s *Summary) SummaryDTO {
	dto := SummaryDTO{Items: []ItemDTO{}, Total: "0.00"}
	if s == nil {
		return dto
	}
	dto.Total = s.Total.StringFixed(2)
	dto.ItemCount = s.ItemCount
	for _, item := range s.Items {
		dto.Items = append(dto.Items, ItemDTO{
			Product:      catalog.NewProductDTO(item.Product),
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice.StringFixed(2),
			CurrentPrice: item.CurrentPrice.StringFixed(2),
			PriceChanged: !item.UnitPrice.Equal(item.CurrentPrice),
			Subtotal:     item.Subtotal.StringFixed(2),
		})
	}
	return dto
}
