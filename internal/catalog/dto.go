package catalog

import (
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/google/uuid"
)

// CategoryDTO is the public shape of a category.
type CategoryDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
}

// ProductDTO is the public shape of a product in listings.
type ProductDTO struct {
	ID           uuid.UUID    `json:"id"`
	Name         string       `json:"name"`
	Slug         string       `json:"slug"`
	Price        string       `json:"price"`
	DisplayPrice string       `json:"display_price"`
	Description  string       `json:"description"`
	Image        *string      `json:"image,omitempty"`
	InStock      bool         `json:"in_stock"`
	Stock        int          `json:"stock"`
	Category     *CategoryDTO `json:"category,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// ProductDetail adds related products to a single product view.
type ProductDetail struct {
	Product ProductDTO   `json:"product"`
	Related []ProductDTO `json:"related"`
}

// ProductListResult wraps one page of products.
type ProductListResult struct {
	Products []ProductDTO        `json:"products"`
	Page     pagination.PageMeta `json:"page"`
}

// CreateCategoryInput holds the payload to create a category.
type CreateCategoryInput struct {
	Name        string
	Slug        string
	Description string
	IsActive    bool
}

// CreateProductInput holds the payload to create a product.
type CreateProductInput struct {
	Name        string
	Slug        string
	CategoryID  uuid.UUID
	Price       string
	Description string
	Image       *string
	IsAvailable bool
	Stock       int
}

func NewCategoryDTO(c models.Category) CategoryDTO {
	return CategoryDTO{
		ID:          c.ID,
		Name:        c.Name,
		Slug:        c.Slug,
		Description: c.Description,
	}
}

func NewProductDTO(p models.Product) ProductDTO {
	dto := ProductDTO{
		ID:           p.ID,
		Name:         p.Name,
		Slug:         p.Slug,
		Price:        p.Price.StringFixed(2),
		DisplayPrice: p.DisplayPrice(),
		Description:  p.Description,
		Image:        p.Image,
		InStock:      p.IsInStock(),
		Stock:        p.Stock,
		CreatedAt:    p.CreatedAt,
	}
	if p.Category != nil {
		category := NewCategoryDTO(*p.Category)
		dto.Category = &category
	}
	return dto
}
