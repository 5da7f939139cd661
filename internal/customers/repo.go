package customers

import (
	"context"
	"errors"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists checkout customers.
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

// NormalizeEmail is the identity key form of an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// GetOrCreateByEmail returns the customer owning candidate.Email, inserting
// candidate when none exists. An existing record is returned untouched even if
// the submitted contact details differ. created reports whether a row was inserted.
func (r *Repository) GetOrCreateByEmail(ctx context.Context, candidate models.Customer) (*models.Customer, bool, error) {
	candidate.Email = NormalizeEmail(candidate.Email)

	existing, err := r.FindByEmail(ctx, candidate.Email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).
		Create(&candidate)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 0 {
		// lost an insert race; the winner's row is authoritative
		existing, err := r.FindByEmail(ctx, candidate.Email)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	return &candidate, true, nil
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&customer).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.WithContext(ctx).First(&customer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}
