package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Customer holds the contact and shipping details captured at checkout.
// Email is the identity key.
type Customer struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	FirstName  string    `gorm:"column:first_name;size:100;not null"`
	LastName   string    `gorm:"column:last_name;size:100;not null"`
	Email      string    `gorm:"column:email;size:255;not null;uniqueIndex:ux_customers_email"`
	Phone      *string   `gorm:"column:phone;size:20"`
	Address    string    `gorm:"column:address;size:200;not null"`
	City       string    `gorm:"column:city;size:100;not null"`
	PostalCode string    `gorm:"column:postal_code;size:10;not null"`
	Country    string    `gorm:"column:country;size:100;not null;default:'IT'"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Customer) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (c Customer) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

func (c Customer) FullAddress() string {
	return fmt.Sprintf("%s, %s %s, %s", c.Address, c.PostalCode, c.City, c.Country)
}
