package checkout

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/customers"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	defaultAttempts = 5

	orderNumberConstraint = "ux_orders_order_number"
	orderNumberColumn     = "orders.order_number"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type cartReader interface {
	Items(ctx context.Context, sessionID string) ([]cart.Item, error)
	Clear(ctx context.Context, sessionID string) error
}

// Service turns a session cart into a pending order.
type Service interface {
	Checkout(ctx context.Context, input Input) (*Result, error)
}

// ServiceParams groups the checkout dependencies.
type ServiceParams struct {
	Tx             txRunner
	Cart           cartReader
	Customers      *customers.Repository
	Catalog        *catalog.Repository
	Orders         orders.Repository
	Outbox         outboxPublisher
	Numbers        NumberAllocator
	Metrics        *metrics.ShopMetrics
	Logger         *logger.Logger
	Attempts       int
	DefaultCountry string
}

type service struct {
	tx             txRunner
	cart           cartReader
	customers      *customers.Repository
	catalog        *catalog.Repository
	orders         orders.Repository
	outbox         outboxPublisher
	numbers        NumberAllocator
	metrics        *metrics.ShopMetrics
	logg           *logger.Logger
	attempts       int
	defaultCountry string
}

// NewService wires the checkout orchestrator.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Cart == nil:
		return nil, fmt.Errorf("cart service required")
	case params.Customers == nil:
		return nil, fmt.Errorf("customers repository required")
	case params.Catalog == nil:
		return nil, fmt.Errorf("catalog repository required")
	case params.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case params.Numbers == nil:
		return nil, fmt.Errorf("order number allocator required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	attempts := params.Attempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	country := params.DefaultCountry
	if country == "" {
		country = "IT"
	}
	return &service{
		tx:             params.Tx,
		cart:           params.Cart,
		customers:      params.Customers,
		catalog:        params.Catalog,
		orders:         params.Orders,
		outbox:         params.Outbox,
		numbers:        params.Numbers,
		metrics:        params.Metrics,
		logg:           params.Logger,
		attempts:       attempts,
		defaultCountry: country,
	}, nil
}

// Checkout reserves stock, writes the customer, order, items and order_created
// event in one transaction, and clears the cart once that commits. A collision
// on the order number retries the whole transaction with a fresh number.
func (s *service) Checkout(ctx context.Context, input Input) (*Result, error) {
	in := input.normalize(s.defaultCountry)
	if err := in.validate(); err != nil {
		return nil, err
	}

	items, err := s.cart.Items(ctx, in.SessionID)
	if err != nil {
		s.metrics.IncCheckout(metrics.CheckoutOutcomeError)
		return nil, err
	}
	if len(items) == 0 {
		s.metrics.IncCheckout(metrics.CheckoutOutcomeEmptyCart)
		return nil, pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
	}
	lines := sortedLines(items)

	order, err := s.placeWithRetries(ctx, in, lines, s.attempts)
	if err != nil {
		return nil, err
	}
	if order == nil && s.resyncNumbers(ctx) {
		order, err = s.placeWithRetries(ctx, in, lines, 1)
		if err != nil {
			return nil, err
		}
	}
	if order == nil {
		s.metrics.IncCheckout(metrics.CheckoutOutcomeConflict)
		return nil, pkgerrors.New(pkgerrors.CodeOrderNumber, "could not allocate a unique order number").
			WithDetails(map[string]any{"attempts": s.attempts})
	}

	if err := s.cart.Clear(ctx, in.SessionID); err != nil {
		s.logg.Error(s.logg.WithFields(ctx, map[string]any{
			"order_number": order.OrderNumber,
		}), "clear cart after checkout", err)
	}

	s.metrics.IncCheckout(metrics.CheckoutOutcomeCreated)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
		"customer_id":  order.CustomerID.String(),
		"items":        len(order.Items),
	}), "order placed")

	itemCount := 0
	for _, item := range order.Items {
		itemCount += item.Quantity
	}
	return &Result{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Total:       orderTotal(order.Items).StringFixed(2),
		ItemCount:   itemCount,
	}, nil
}

// placeWithRetries draws a number and places the order up to attempts times.
// A nil order with a nil error means every attempt collided on the number.
func (s *service) placeWithRetries(ctx context.Context, in Input, lines []line, attempts int) (*models.Order, error) {
	for attempt := 1; attempt <= attempts; attempt++ {
		number, err := s.numbers.Next(ctx)
		if err != nil {
			s.metrics.IncCheckout(metrics.CheckoutOutcomeError)
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate order number")
		}

		order, err := s.place(ctx, in, number, lines)
		if err == nil {
			return order, nil
		}
		if isOrderNumberConflict(err) {
			s.metrics.IncOrderNumberCollision()
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"order_number": number,
				"attempt":      attempt,
			}), "order number collision, retrying checkout")
			continue
		}
		if pkgerrors.IsCode(err, pkgerrors.CodeUnavailable) {
			s.metrics.IncCheckout(metrics.CheckoutOutcomeUnavailable)
		} else {
			s.metrics.IncCheckout(metrics.CheckoutOutcomeError)
		}
		return nil, err
	}
	return nil, nil
}

// resyncNumbers lifts the order number counter to the latest stored order after
// repeated collisions. It reports whether another attempt is worth making.
func (s *service) resyncNumbers(ctx context.Context) bool {
	resyncer, ok := s.numbers.(numberResyncer)
	if !ok {
		return false
	}
	latest, err := s.orders.LatestOrderNumber(ctx)
	if err == nil {
		err = resyncer.Resync(ctx, latest)
	}
	if err != nil {
		s.logg.Error(ctx, "resync order number counter", err)
		return false
	}
	s.logg.Warn(s.logg.WithField(ctx, "latest_order_number", latest), "order number counter resynced")
	return true
}

type line struct {
	productID uuid.UUID
	name      string
	quantity  int
}

// sortedLines orders the cart by product id so concurrent checkouts lock
// product rows in the same order.
func sortedLines(items []cart.Item) []line {
	out := make([]line, 0, len(items))
	for _, item := range items {
		out = append(out, line{productID: item.Product.ID, name: item.Product.Name, quantity: item.Quantity})
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].productID[:], out[j].productID[:]) < 0
	})
	return out
}

func (s *service) place(ctx context.Context, in Input, number string, lines []line) (*models.Order, error) {
	var placed *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		customer, created, err := s.customers.WithTx(tx).GetOrCreateByEmail(ctx, in.customer())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "get or create customer")
		}

		ids := make([]uuid.UUID, 0, len(lines))
		for _, l := range lines {
			ok, err := s.catalog.Reserve(ctx, tx, l.productID, l.quantity)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve stock")
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeUnavailable, "product is not available in the requested quantity").
					WithDetails(map[string]any{
						"product_id": l.productID,
						"name":       l.name,
						"quantity":   l.quantity,
					})
			}
			ids = append(ids, l.productID)
		}

		live, err := s.catalog.WithTx(tx).FindProductsByIDs(ctx, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
		}

		order := &models.Order{
			UserID:      in.UserID,
			CustomerID:  customer.ID,
			OrderNumber: number,
			Status:      enums.OrderStatusPending,
			Notes:       in.Notes,
			Items:       make([]models.OrderItem, 0, len(lines)),
		}
		eventLines := make([]payloads.OrderLine, 0, len(lines))
		for _, l := range lines {
			product, ok := live[l.productID]
			if !ok {
				return pkgerrors.New(pkgerrors.CodeUnavailable, "product no longer exists").
					WithDetails(map[string]any{"product_id": l.productID, "name": l.name})
			}
			order.Items = append(order.Items, models.OrderItem{
				ProductID: product.ID,
				Quantity:  l.quantity,
				UnitPrice: product.Price,
			})
			eventLines = append(eventLines, payloads.OrderLine{
				ProductID:   product.ID,
				ProductName: product.Name,
				Quantity:    l.quantity,
				UnitPrice:   product.Price.StringFixed(2),
			})
		}

		if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			if isOrderNumberConflict(err) {
				return err
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert order")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actorFor(in),
			OccurredAt:    order.CreatedAt,
			Data: payloads.OrderCreatedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				CustomerID:  customer.ID,
				Email:       customer.Email,
				UserID:      in.UserID,
				Total:       orderTotal(order.Items).StringFixed(2),
				Items:       eventLines,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order_created")
		}

		if created {
			s.logg.Info(s.logg.WithFields(ctx, map[string]any{
				"customer_id": customer.ID.String(),
			}), "customer created at checkout")
		}
		placed = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return placed, nil
}

func actorFor(in Input) *outbox.ActorRef {
	if in.UserID != nil {
		id := *in.UserID
		return &outbox.ActorRef{Kind: outbox.ActorKindUser, UserID: &id, SessionID: in.SessionID}
	}
	return &outbox.ActorRef{Kind: outbox.ActorKindCustomer, SessionID: in.SessionID}
}

// isOrderNumberConflict matches the unique index on orders.order_number. Postgres
// reports the index name; sqlite reports the column.
func isOrderNumberConflict(err error) bool {
	var typed *pkgerrors.Error
	if errors.As(err, &typed) {
		return false
	}
	return db.IsUniqueViolation(err, orderNumberConstraint) || db.IsUniqueViolation(err, orderNumberColumn)
}
