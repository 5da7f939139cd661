package catalog

import (
	"context"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProductFilter narrows the storefront listing.
type ProductFilter struct {
	CategorySlug string
	Search       string
	Page         pagination.Page
}

// Repository persists categories and products.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) ListActiveCategories(ctx context.Context) ([]models.Category, error) {
	var rows []models.Category
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name ASC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) FindCategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *Repository) FindCategoryByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

// ListAvailableProducts returns one page of available products plus the total match count.
func (r *Repository) ListAvailableProducts(ctx context.Context, filter ProductFilter) ([]models.Product, int64, error) {
	var total int64
	if err := r.filtered(ctx, filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Product
	err := r.filtered(ctx, filter).
		Preload("Category").
		Order("products.created_at DESC").
		Order("products.id DESC").
		Offset(filter.Page.Offset()).
		Limit(filter.Page.Size).
		Find(&rows).Error
	return rows, total, err
}

func (r *Repository) filtered(ctx context.Context, filter ProductFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.Product{}).Where("products.is_available = ?", true)
	if slug := strings.TrimSpace(filter.CategorySlug); slug != "" {
		query = query.Joins("JOIN categories ON categories.id = products.category_id").
			Where("categories.slug = ?", slug)
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		pattern := "%" + strings.ToLower(term) + "%"
		query = query.Where("LOWER(products.name) LIKE ? OR LOWER(products.description) LIKE ?", pattern, pattern)
	}
	return query
}

func (r *Repository) FindAvailableBySlug(ctx context.Context, slug string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Category").
		Where("slug = ? AND is_available = ?", slug, true).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FindProductByID loads a product regardless of availability.
func (r *Repository) FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindProductsByIDs returns the products that still exist, keyed by id.
func (r *Repository) FindProductsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := make(map[uuid.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

func (r *Repository) ListRelated(ctx context.Context, product models.Product, limit int) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Where("category_id = ? AND is_available = ? AND id <> ?", product.CategoryID, true, product.ID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) CreateCategory(ctx context.Context, category *models.Category) error {
	return r.db.WithContext(ctx).Create(category).Error
}

func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *Repository) SlugTaken(ctx context.Context, table, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Table(table).Where("slug = ?", slug).Count(&count).Error
	return count > 0, err
}

// DecrementStock removes qty units only when the product is available and has enough stock.
// It reports false when the guard rejected the update.
func (r *Repository) DecrementStock(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND is_available = ? AND stock >= ?", productID, true, qty).
		Update("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// IncreaseStock adds qty units. It reports false when the product no longer exists.
func (r *Repository) IncreaseStock(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Update("stock", gorm.Expr("stock + ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Reserve runs the guarded decrement on tx.
func (r *Repository) Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) (bool, error) {
	return r.WithTx(tx).DecrementStock(ctx, productID, qty)
}

// Release puts qty units back on tx. A product deleted in the meantime is skipped.
func (r *Repository) Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	_, err := r.WithTx(tx).IncreaseStock(ctx, productID, qty)
	return err
}
