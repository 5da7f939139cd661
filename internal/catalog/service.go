package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/slug"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const relatedProductsLimit = 4

// Service exposes storefront catalog reads and the admin/seed writes.
type Service interface {
	ListCategories(ctx context.Context) ([]CategoryDTO, error)
	ListProducts(ctx context.Context, categorySlug, search string, page int) (*ProductListResult, error)
	GetProduct(ctx context.Context, slug string) (*ProductDetail, error)
	CreateCategory(ctx context.Context, input CreateCategoryInput) (*CategoryDTO, error)
	CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error)
	IncreaseStock(ctx context.Context, productID uuid.UUID, qty int) error
}

type service struct {
	repo *Repository
}

// NewService constructs a catalog service.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ListCategories(ctx context.Context) ([]CategoryDTO, error) {
	rows, err := s.repo.ListActiveCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	out := make([]CategoryDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, NewCategoryDTO(row))
	}
	return out, nil
}

func (s *service) ListProducts(ctx context.Context, categorySlug, search string, page int) (*ProductListResult, error) {
	p := pagination.NewPage(page, pagination.CatalogPageSize)
	rows, total, err := s.repo.ListAvailableProducts(ctx, ProductFilter{
		CategorySlug: categorySlug,
		Search:       search,
		Page:         p,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	result := &ProductListResult{
		Products: make([]ProductDTO, 0, len(rows)),
		Page:     p.Meta(total),
	}
	for _, row := range rows {
		result.Products = append(result.Products, NewProductDTO(row))
	}
	return result, nil
}

func (s *service) GetProduct(ctx context.Context, productSlug string) (*ProductDetail, error) {
	product, err := s.repo.FindAvailableBySlug(ctx, strings.TrimSpace(productSlug))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	related, err := s.repo.ListRelated(ctx, *product, relatedProductsLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load related products")
	}

	detail := &ProductDetail{
		Product: NewProductDTO(*product),
		Related: make([]ProductDTO, 0, len(related)),
	}
	for _, row := range related {
		detail.Related = append(detail.Related, NewProductDTO(row))
	}
	return detail, nil
}

func (s *service) CreateCategory(ctx context.Context, input CreateCategoryInput) (*CategoryDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" || len(name) > models.MaxCategoryNameLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category name must be 1-100 characters")
	}

	categorySlug, err := s.resolveSlug(ctx, "categories", input.Slug, name, models.MaxCategoryNameLength)
	if err != nil {
		return nil, err
	}

	category := &models.Category{
		Name:        name,
		Slug:        categorySlug,
		Description: strings.TrimSpace(input.Description),
		IsActive:    input.IsActive,
	}
	if err := s.repo.CreateCategory(ctx, category); err != nil {
		switch {
		case isUnique(err, "ux_categories_name", "categories.name"):
			return nil, duplicate("category", "name", name)
		case isUnique(err, "ux_categories_slug", "categories.slug"):
			return nil, duplicate("category", "slug", categorySlug)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create category")
	}
	dto := NewCategoryDTO(*category)
	return &dto, nil
}

func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" || len(name) > models.MaxProductNameLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name must be 1-200 characters")
	}
	price, err := decimal.NewFromString(strings.TrimSpace(input.Price))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be a decimal amount")
	}
	if price.LessThan(models.MinPrice) || price.GreaterThan(models.MaxPrice) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price out of range").
			WithDetails(map[string]string{"min": models.MinPrice.StringFixed(2), "max": models.MaxPrice.StringFixed(2)})
	}
	if input.Stock < models.MinStock || input.Stock > models.MaxStock {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock out of range")
	}

	category, err := s.findCategory(ctx, input.CategoryID)
	if err != nil {
		return nil, err
	}

	productSlug, err := s.resolveSlug(ctx, "products", input.Slug, name, models.MaxProductNameLength)
	if err != nil {
		return nil, err
	}

	product := &models.Product{
		Name:        name,
		Slug:        productSlug,
		CategoryID:  category.ID,
		Price:       price.Round(2),
		Description: strings.TrimSpace(input.Description),
		Image:       input.Image,
		IsAvailable: input.IsAvailable,
		Stock:       input.Stock,
	}
	if err := s.repo.CreateProduct(ctx, product); err != nil {
		if isUnique(err, "ux_products_slug", "products.slug") {
			return nil, duplicate("product", "slug", productSlug)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	product.Category = category
	dto := NewProductDTO(*product)
	return &dto, nil
}

func (s *service) IncreaseStock(ctx context.Context, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	ok, err := s.repo.IncreaseStock(ctx, productID, qty)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increase stock")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return nil
}

func (s *service) findCategory(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	category, err := s.repo.FindCategoryByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "category does not exist").
				WithDetails(map[string]string{"category_id": id.String()})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
	}
	return category, nil
}

// resolveSlug keeps an explicit slug as given; derived slugs get a numeric suffix on collision.
func (s *service) resolveSlug(ctx context.Context, table, explicit, name string, max int) (string, error) {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		taken, err := s.repo.SlugTaken(ctx, table, explicit)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check slug")
		}
		if taken {
			return "", pkgerrors.New(pkgerrors.CodeConflict, "slug already in use").
				WithDetails(map[string]string{"slug": explicit})
		}
		return explicit, nil
	}

	base := slug.Truncate(slug.Make(name), max-4)
	if base == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "name does not produce a usable slug")
	}
	candidate := base
	for i := 2; i < 100; i++ {
		taken, err := s.repo.SlugTaken(ctx, table, candidate)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check slug")
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return "", pkgerrors.New(pkgerrors.CodeConflict, "could not derive a unique slug")
}

// isUnique matches the Postgres index name or the SQLite column reference.
func isUnique(err error, names ...string) bool {
	for _, name := range names {
		if db.IsUniqueViolation(err, name) {
			return true
		}
	}
	return false
}

func duplicate(kind, field, value string) error {
	return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("%s %s already exists", kind, field)).
		WithDetails(map[string]string{"field": field, "value": value})
}
