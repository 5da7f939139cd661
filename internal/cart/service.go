package cart

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service mutates and resolves the session cart.
type Service interface {
	Add(ctx context.Context, sessionID string, productID uuid.UUID, qty int) error
	Remove(ctx context.Context, sessionID string, productID uuid.UUID) (bool, error)
	UpdateQuantity(ctx context.Context, sessionID string, productID uuid.UUID, qty int) error
	Items(ctx context.Context, sessionID string) ([]Item, error)
	Summary(ctx context.Context, sessionID string) (*Summary, error)
	Total(ctx context.Context, sessionID string) (decimal.Decimal, error)
	ItemCount(ctx context.Context, sessionID string) (int, error)
	Clear(ctx context.Context, sessionID string) error
}

type productLoader interface {
	FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindProductsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

// Item is a cart line resolved against the live product.
type Item struct {
	Product      models.Product
	Quantity     int
	UnitPrice    decimal.Decimal
	CurrentPrice decimal.Decimal
	Subtotal     decimal.Decimal
}

// Summary is the pruned cart with its derived totals.
type Summary struct {
	Items     []Item
	Total     decimal.Decimal
	ItemCount int
}

type service struct {
	store    Store
	products productLoader
}

// NewService constructs a cart service.
func NewService(store Store, products productLoader) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	return &service{store: store, products: products}, nil
}

func (s *service) Add(ctx context.Context, sessionID string, productID uuid.UUID, qty int) error {
	if err := validateQuantity(qty); err != nil {
		return err
	}
	product, err := s.products.FindProductByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.CanPurchase(qty) {
		return unavailable(product)
	}

	cart, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}
	if line, ok := cart.Lines[productID.String()]; ok && line.Quantity+qty > models.MaxQuantity {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("a cart line holds at most %d units", models.MaxQuantity))
	}
	cart.add(product.ID, qty, product.Price)
	return s.save(ctx, sessionID, cart)
}

func (s *service) Remove(ctx context.Context, sessionID string, productID uuid.UUID) (bool, error) {
	cart, err := s.load(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if !cart.remove(productID) {
		return false, nil
	}
	if err := s.save(ctx, sessionID, cart); err != nil {
		return false, err
	}
	return true, nil
}

func (s *service) UpdateQuantity(ctx context.Context, sessionID string, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		removed, err := s.Remove(ctx, sessionID, productID)
		if err != nil {
			return err
		}
		if !removed {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product is not in the cart")
		}
		return nil
	}
	if err := validateQuantity(qty); err != nil {
		return err
	}
	cart, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}
	if _, ok := cart.Lines[productID.String()]; !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product is not in the cart")
	}

	product, err := s.products.FindProductByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeUnavailable, "product is no longer sold")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.CanPurchase(qty) {
		return unavailable(product)
	}

	cart.setQuantity(productID, qty)
	return s.save(ctx, sessionID, cart)
}

// Items resolves every line against current products. Lines whose product is
// gone are dropped and the pruned cart is written back.
func (s *service) Items(ctx context.Context, sessionID string) ([]Item, error) {
	cart, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return []Item{}, nil
	}

	ids := make([]uuid.UUID, 0, len(cart.Lines))
	dirty := false
	for key := range cart.Lines {
		id, parseErr := uuid.Parse(key)
		if parseErr != nil {
			delete(cart.Lines, key)
			dirty = true
			continue
		}
		ids = append(ids, id)
	}

	found, err := s.products.FindProductsByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart products")
	}

	items := make([]Item, 0, len(ids))
	for _, id := range ids {
		key := id.String()
		product, ok := found[id]
		if !ok {
			delete(cart.Lines, key)
			dirty = true
			continue
		}
		line := cart.Lines[key]
		unitPrice, parseErr := decimal.NewFromString(line.Price)
		if parseErr != nil {
			unitPrice = product.Price
			line.Price = product.Price.StringFixed(2)
			cart.Lines[key] = line
			dirty = true
		}
		items = append(items, Item{
			Product:      product,
			Quantity:     line.Quantity,
			UnitPrice:    unitPrice,
			CurrentPrice: product.Price,
			Subtotal:     unitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))),
		})
	}

	if dirty {
		if err := s.save(ctx, sessionID, cart); err != nil {
			return nil, err
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Product.Name != items[j].Product.Name {
			return items[i].Product.Name < items[j].Product.Name
		}
		return items[i].Product.ID.String() < items[j].Product.ID.String()
	})
	return items, nil
}

func (s *service) Summary(ctx context.Context, sessionID string) (*Summary, error) {
	items, err := s.Items(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	summary := &Summary{Items: items, Total: decimal.Zero}
	for _, item := range items {
		summary.Total = summary.Total.Add(item.Subtotal)
		summary.ItemCount += item.Quantity
	}
	return summary, nil
}

func (s *service) Total(ctx context.Context, sessionID string) (decimal.Decimal, error) {
	summary, err := s.Summary(ctx, sessionID)
	if err != nil {
		return decimal.Zero, err
	}
	return summary.Total, nil
}

// ItemCount counts units over the pruned view, the same one Items and Total use.
func (s *service) ItemCount(ctx context.Context, sessionID string) (int, error) {
	summary, err := s.Summary(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	return summary.ItemCount, nil
}

func (s *service) Clear(ctx context.Context, sessionID string) error {
	if err := requireSession(sessionID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, sessionID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

func (s *service) load(ctx context.Context, sessionID string) (*Cart, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	cart, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return cart, nil
}

func (s *service) save(ctx context.Context, sessionID string, cart *Cart) error {
	if err := s.store.Save(ctx, sessionID, cart); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
	}
	return nil
}

func requireSession(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart session is required")
	}
	return nil
}

func validateQuantity(qty int) error {
	if qty < models.MinQuantity || qty > models.MaxQuantity {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity must be between %d and %d", models.MinQuantity, models.MaxQuantity)).
			WithDetails(map[string]any{"quantity": qty})
	}
	return nil
}

func unavailable(product *models.Product) error {
	return pkgerrors.New(pkgerrors.CodeUnavailable, "product is not available in the requested quantity").
		WithDetails(map[string]any{
			"product_id": product.ID.String(),
			"available":  product.IsAvailable,
			"stock":      product.Stock,
		})
}
