// Package dbtest opens throwaway SQLite databases carrying the storefront schema.
package dbtest

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Open returns an isolated in-memory database with every storefront table migrated.
// Foreign keys are enforced so cascade rules behave as they do on Postgres.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:sf_%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	if err := conn.AutoMigrate(
		&models.Category{},
		&models.Product{},
		&models.User{},
		&models.Customer{},
		&models.Order{},
		&models.OrderItem{},
		&models.OutboxEvent{},
	); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// shared-cache memory databases vanish with their last connection
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}

// MustCategory inserts an active category.
func MustCategory(t testing.TB, conn *gorm.DB, name string) *models.Category {
	t.Helper()
	category := &models.Category{
		Name:     name,
		Slug:     fmt.Sprintf("%s-%s", name, uuid.NewString()[:8]),
		IsActive: true,
	}
	if err := conn.Create(category).Error; err != nil {
		t.Fatalf("create category: %v", err)
	}
	return category
}

// ProductOption tweaks a fixture product before insert.
type ProductOption func(*models.Product)

func WithStock(stock int) ProductOption {
	return func(p *models.Product) { p.Stock = stock }
}

func Unavailable() ProductOption {
	return func(p *models.Product) { p.IsAvailable = false }
}

func WithDescription(d string) ProductOption {
	return func(p *models.Product) { p.Description = d }
}

// MustProduct inserts an available product priced at price with 10 units unless overridden.
func MustProduct(t testing.TB, conn *gorm.DB, categoryID uuid.UUID, name, price string, opts ...ProductOption) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:        name,
		Slug:        fmt.Sprintf("p-%s", uuid.NewString()),
		CategoryID:  categoryID,
		Price:       decimal.RequireFromString(price),
		IsAvailable: true,
		Stock:       10,
	}
	for _, opt := range opts {
		opt(product)
	}
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}

// ReloadProduct reads the product back from the database.
func ReloadProduct(t testing.TB, conn *gorm.DB, id uuid.UUID) models.Product {
	t.Helper()
	var product models.Product
	if err := conn.First(&product, "id = ?", id).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	return product
}

// MustCustomer inserts a customer with a fixed Milan address.
func MustCustomer(t testing.TB, conn *gorm.DB, email string) *models.Customer {
	t.Helper()
	customer := &models.Customer{
		FirstName:  "Test",
		LastName:   "Customer",
		Email:      email,
		Address:    "Via Roma 1",
		City:       "Milano",
		PostalCode: "20100",
		Country:    "IT",
	}
	if err := conn.Create(customer).Error; err != nil {
		t.Fatalf("create customer: %v", err)
	}
	return customer
}

// MustUser inserts an active user with an unusable password hash.
func MustUser(t testing.TB, conn *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		FirstName:    "Test",
		LastName:     "User",
		IsActive:     true,
	}
	if err := conn.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

// OrderLine is one fixture order item priced at the product's current price.
type OrderLine struct {
	Product  *models.Product
	Quantity int
}

// OrderSpec describes a fixture order.
type OrderSpec struct {
	Number    string
	Customer  *models.Customer
	UserID    *uuid.UUID
	Status    enums.OrderStatus
	CreatedAt time.Time
	Lines     []OrderLine
}

// MustOrder inserts an order with its items. Stock is not touched.
func MustOrder(t testing.TB, conn *gorm.DB, in OrderSpec) *models.Order {
	t.Helper()
	if in.Status == "" {
		in.Status = enums.OrderStatusPending
	}
	order := &models.Order{
		UserID:      in.UserID,
		CustomerID:  in.Customer.ID,
		OrderNumber: in.Number,
		Status:      in.Status,
		CreatedAt:   in.CreatedAt,
	}
	for _, line := range in.Lines {
		order.Items = append(order.Items, models.OrderItem{
			ProductID: line.Product.ID,
			Quantity:  line.Quantity,
			UnitPrice: line.Product.Price,
			CreatedAt: in.CreatedAt,
		})
	}
	if err := conn.Create(order).Error; err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order
}
