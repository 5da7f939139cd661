package orders

import (
	"context"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines persistence operations for orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus) (bool, error)
	FindPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	LatestOrderNumber(ctx context.Context) (string, error)
}

// OrderList is one cursor page of a user's order history.
type OrderList struct {
	Orders     []models.Order
	NextCursor string
}
