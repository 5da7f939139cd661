package customers

import (
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/google/uuid"
)

// CustomerDTO is the contact block shown on an order confirmation.
type CustomerDTO struct {
	ID          uuid.UUID `json:"id"`
	FullName    string    `json:"full_name"`
	Email       string    `json:"email"`
	Phone       *string   `json:"phone,omitempty"`
	FullAddress string    `json:"full_address"`
}

func FromModel(c *models.Customer) *CustomerDTO {
	if c == nil {
		return nil
	}
	return &CustomerDTO{
		ID:          c.ID,
		FullName:    c.FullName(),
		Email:       c.Email,
		Phone:       c.Phone,
		FullAddress: c.FullAddress(),
	}
}
