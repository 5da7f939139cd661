package cart

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// AddItemRequest adds a product to the cart. Quantity defaults to 1.
type AddItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  *int      `json:"quantity,omitempty"`
}

// UpdateItemRequest overwrites a line quantity; zero or less removes the line.
type UpdateItemRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

type countResponse struct {
	ItemCount int `json:"item_count"`
}

type removeResponse struct {
	Removed bool `json:"removed"`
}

func (r AddItemRequest) quantity() int {
	if r.Quantity == nil {
		return 1
	}
	return *r.Quantity
}

func sessionFromRequest(r *http.Request) (string, error) {
	sessionID := middleware.CartSessionFromContext(r.Context())
	if sessionID == "" {
		return "", pkgerrors.New(pkgerrors.CodeInternal, "cart session missing")
	}
	return sessionID, nil
}

func productIDParam(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "productId"))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id").
			WithDetails(map[string]string{"product_id": "must be a uuid"})
	}
	return id, nil
}
