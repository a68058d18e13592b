package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jkariuki/nyumbani-backend/pkg/db/models"
	"github.com/jkariuki/nyumbani-backend/pkg/enums"
)

// ListFilter narrows a payment listing.
type ListFilter struct {
	PropertyID   *uuid.UUID
	ApartmentID  *uuid.UUID
	Status       *enums.PaymentStatus
	MonthPaidFor string
	From         *time.Time
	To           *time.Time
}

// Repository exposes payment persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a payments repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateWithTx inserts a payment inside a caller-managed transaction. The
// transaction_id unique index rejects a second insert for the same receipt.
func (r *Repository) CreateWithTx(tx *gorm.DB, payment *models.Payment) error {
	return tx.Create(payment).Error
}

// FindByID loads a payment, returning nil when no row matches.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).First(&payment, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindByTransactionID resolves a payment by its gateway receipt, returning
// nil when the receipt has never been seen.
func (r *Repository) FindByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// ListByLandlord returns payments across a landlord's properties, newest
// payment first.
func (r *Repository) ListByLandlord(ctx context.Context, landlordID uuid.UUID, filter ListFilter) ([]*models.Payment, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Joins("JOIN apartments ON apartments.id = payments.apartment_id").
		Joins("JOIN properties ON properties.id = apartments.property_id").
		Where("properties.landlord_id = ?", landlordID)

	if filter.PropertyID != nil {
		query = query.Where("apartments.property_id = ?", *filter.PropertyID)
	}
	if filter.ApartmentID != nil {
		query = query.Where("payments.apartment_id = ?", *filter.ApartmentID)
	}
	if filter.Status != nil {
		query = query.Where("payments.status = ?", *filter.Status)
	}
	if filter.MonthPaidFor != "" {
		query = query.Where("payments.month_paid_for = ?", filter.MonthPaidFor)
	}
	if filter.From != nil {
		query = query.Where("payments.payment_date >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("payments.payment_date <= ?", *filter.To)
	}

	var payments []*models.Payment
	if err := query.Order("payments.payment_date DESC").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

// ListByProperty returns all payments for units of one property.
func (r *Repository) ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]*models.Payment, error) {
	var payments []*models.Payment
	err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Joins("JOIN apartments ON apartments.id = payments.apartment_id").
		Where("apartments.property_id = ?", propertyID).
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

// HasCompletedPayment reports whether a tenant has a completed payment for
// the billing month.
func (r *Repository) HasCompletedPayment(ctx context.Context, tenantID uuid.UUID, monthYear string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("tenant_id = ? AND month_paid_for = ? AND status = ?", tenantID, monthYear, enums.PaymentStatusCompleted).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CountApartmentsByLandlord counts units across a landlord's properties.
func (r *Repository) CountApartmentsByLandlord(ctx context.Context, landlordID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Apartment{}).
		Joins("JOIN properties ON properties.id = apartments.property_id").
		Where("properties.landlord_id = ?", landlordID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
