package checkout

import (
	"strings"

	"github.com/angelmondragon/storefront-backend/internal/customers"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Input is the checkout form. UserID and SessionID are filled from the request
// context, never from the body.
type Input struct {
	FirstName  string `json:"first_name" validate:"required,max=100"`
	LastName   string `json:"last_name" validate:"required,max=100"`
	Email      string `json:"email" validate:"required,email,max=255"`
	Phone      string `json:"phone" validate:"omitempty,max=20"`
	Address    string `json:"address" validate:"required,max=200"`
	PostalCode string `json:"postal_code" validate:"required,max=10"`
	City       string `json:"city" validate:"required,max=100"`
	Country    string `json:"country" validate:"omitempty,max=100"`
	Notes      string `json:"notes" validate:"omitempty,max=500"`

	UserID    *uuid.UUID `json:"-"`
	SessionID string     `json:"-"`
}

// Result is returned once the order is committed.
type Result struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Total       string    `json:"total"`
	ItemCount   int       `json:"item_count"`
}

func (in Input) normalize(defaultCountry string) Input {
	out := in
	out.FirstName = strings.TrimSpace(in.FirstName)
	out.LastName = strings.TrimSpace(in.LastName)
	out.Email = customers.NormalizeEmail(in.Email)
	out.Phone = strings.TrimSpace(in.Phone)
	out.Address = strings.TrimSpace(in.Address)
	out.PostalCode = strings.TrimSpace(in.PostalCode)
	out.City = strings.TrimSpace(in.City)
	out.Country = strings.TrimSpace(in.Country)
	if out.Country == "" {
		out.Country = defaultCountry
	}
	out.Notes = strings.TrimSpace(in.Notes)
	return out
}

// validate mirrors the request checks run by the HTTP layer.
func (in Input) validate() error {
	missing := make([]string, 0)
	for field, value := range map[string]string{
		"first_name":  in.FirstName,
		"last_name":   in.LastName,
		"email":       in.Email,
		"address":     in.Address,
		"postal_code": in.PostalCode,
		"city":        in.City,
	} {
		if value == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		fields := make(map[string]string, len(missing))
		for _, field := range missing {
			fields[field] = "required"
		}
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout details incomplete").WithDetails(fields)
	}
	if !strings.Contains(in.Email, "@") {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid email").
			WithDetails(map[string]string{"email": "email"})
	}
	if len(in.Notes) > 500 {
		return pkgerrors.New(pkgerrors.CodeValidation, "notes too long").
			WithDetails(map[string]string{"notes": "max"})
	}
	if in.SessionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart session required")
	}
	return nil
}

func (in Input) customer() models.Customer {
	c := models.Customer{
		FirstName:  in.FirstName,
		LastName:   in.LastName,
		Email:      in.Email,
		Address:    in.Address,
		City:       in.City,
		PostalCode: in.PostalCode,
		Country:    in.Country,
	}
	if in.Phone != "" {
		phone := in.Phone
		c.Phone = &phone
	}
	return c
}

func orderTotal(items []models.OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.FinalPrice())
	}
	return total
}
