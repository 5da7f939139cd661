package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/customers"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

const (
	expiryBatchLimit = 200

	cancelOriginCustomer = "customer"
	cancelOriginExpiry   = "expiry"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// InventoryReleaser returns stock when an order is cancelled.
type InventoryReleaser interface {
	Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

// Service defines the order lifecycle operations.
type Service interface {
	Cancel(ctx context.Context, input CancelInput) (*OrderDTO, error)
	ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderListDTO, error)
	GetByNumber(ctx context.Context, query ConfirmationQuery) (*OrderDTO, error)
	ExpireStalePending(ctx context.Context, cutoff time.Time) (int, error)
}

// CancelInput identifies the order and the signed-in user asking to cancel it.
type CancelInput struct {
	OrderID     uuid.UUID
	ActorUserID uuid.UUID
	Reason      string
}

// ConfirmationQuery selects an order for the confirmation page. The viewer must
// either own the order or know the email it was placed with.
type ConfirmationQuery struct {
	OrderNumber string
	ViewerID    *uuid.UUID
	Email       string
}

// ServiceParams groups the order service dependencies.
type ServiceParams struct {
	Repository Repository
	Tx         txRunner
	Outbox     outboxPublisher
	Inventory  InventoryReleaser
	Metrics    *metrics.ShopMetrics
	Logger     *logger.Logger
	Now        func() time.Time
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outboxPublisher
	inventory InventoryReleaser
	metrics   *metrics.ShopMetrics
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds the order lifecycle service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory releaser required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:      params.Repository,
		tx:        params.Tx,
		outbox:    params.Outbox,
		inventory: params.Inventory,
		metrics:   params.Metrics,
		logg:      params.Logger,
		now:       now,
	}, nil
}

// Cancel moves a pending order owned by the actor to cancelled and restores stock.
func (s *service) Cancel(ctx context.Context, input CancelInput) (*OrderDTO, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var cancelled *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		authorize := func(order *models.Order) error {
			if order.UserID == nil || *order.UserID != input.ActorUserID {
				return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
			}
			return nil
		}
		build := func(order *models.Order, at time.Time) outbox.DomainEvent {
			actorID := input.ActorUserID
			return outbox.DomainEvent{
				EventType:     enums.EventOrderCanceled,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Actor:         &outbox.ActorRef{Kind: outbox.ActorKindUser, UserID: &actorID},
				OccurredAt:    at,
				Data: payloads.OrderCanceledEvent{
					OrderID:     order.ID,
					OrderNumber: order.OrderNumber,
					CanceledAt:  at,
					Reason:      strings.TrimSpace(input.Reason),
				},
			}
		}
		var err error
		cancelled, err = s.cancelInTx(ctx, tx, input.OrderID, authorize, build)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncCancellation(cancelOriginCustomer)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":     cancelled.ID.String(),
		"order_number": cancelled.OrderNumber,
	}), "order cancelled by customer")

	dto := NewOrderDTO(cancelled)
	return &dto, nil
}

// cancelInTx is the shared pending -> cancelled transition. It locks the order,
// checks authorize, flips the status, releases stock and writes the event.
func (s *service) cancelInTx(
	ctx context.Context,
	tx *gorm.DB,
	orderID uuid.UUID,
	authorize func(*models.Order) error,
	build func(*models.Order, time.Time) outbox.DomainEvent,
) (*models.Order, error) {
	repo := s.repo.WithTx(tx)
	order, err := repo.FindByIDForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if authorize != nil {
		if err := authorize(order); err != nil {
			return nil, err
		}
	}
	if !order.CanBeCancelled() {
		return nil, stateConflict(order)
	}

	moved, err := repo.TransitionStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusCancelled)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if !moved {
		return nil, stateConflict(order)
	}

	for _, item := range order.Items {
		if err := s.inventory.Release(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore stock")
		}
	}

	at := s.now().UTC()
	order.Status = enums.OrderStatusCancelled
	order.UpdatedAt = at
	if err := s.outbox.Emit(ctx, tx, build(order, at)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order event")
	}
	return order, nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderListDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	list, err := s.repo.ListForUser(ctx, userID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	out := &OrderListDTO{
		Orders:     make([]OrderDTO, 0, len(list.Orders)),
		NextCursor: list.NextCursor,
	}
	for i := range list.Orders {
		out.Orders = append(out.Orders, NewOrderDTO(&list.Orders[i]))
	}
	return out, nil
}

func (s *service) GetByNumber(ctx context.Context, query ConfirmationQuery) (*OrderDTO, error) {
	number := strings.ToUpper(strings.TrimSpace(query.OrderNumber))
	if number == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number required")
	}
	order, err := s.repo.FindByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if !canView(order, query) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	dto := NewOrderDTO(order)
	return &dto, nil
}

// ExpireStalePending cancels every pending order placed before cutoff. Each order
// runs in its own transaction so one failure does not block the rest; failures
// are combined into the returned error.
func (s *service) ExpireStalePending(ctx context.Context, cutoff time.Time) (int, error) {
	stale, err := s.repo.FindPendingBefore(ctx, cutoff, expiryBatchLimit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale orders")
	}

	var errs error
	expired := 0
	for _, candidate := range stale {
		placedAt := candidate.CreatedAt
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			_, err := s.cancelInTx(ctx, tx, candidate.ID, nil, func(order *models.Order, at time.Time) outbox.DomainEvent {
				return outbox.DomainEvent{
					EventType:     enums.EventOrderExpired,
					AggregateType: enums.AggregateOrder,
					AggregateID:   order.ID,
					Actor:         &outbox.ActorRef{Kind: outbox.ActorKindSystem},
					OccurredAt:    at,
					Data: payloads.OrderExpiredEvent{
						OrderID:     order.ID,
						OrderNumber: order.OrderNumber,
						PlacedAt:    placedAt,
						ExpiredAt:   at,
					},
				}
			})
			return err
		})
		if err != nil {
			// the order left pending in the meantime
			if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) || pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", candidate.OrderNumber, err))
			continue
		}
		expired++
		s.metrics.IncCancellation(cancelOriginExpiry)
	}

	if expired > 0 {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"expired": expired,
			"cutoff":  cutoff.UTC().Format(time.RFC3339),
		}), "expired stale pending orders")
	}
	return expired, errs
}

func canView(order *models.Order, query ConfirmationQuery) bool {
	if query.ViewerID != nil && order.UserID != nil && *order.UserID == *query.ViewerID {
		return true
	}
	email := customers.NormalizeEmail(query.Email)
	return email != "" && order.Customer != nil && order.Customer.Email == email
}

func stateConflict(order *models.Order) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "only pending orders can be cancelled").
		WithDetails(map[string]any{"status": order.Status})
}
