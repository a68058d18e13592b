package tenants

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jkariuki/nyumbani-backend/pkg/db/models"
	"github.com/jkariuki/nyumbani-backend/pkg/enums"
)

// Repository exposes tenant persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a tenants repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateWithTx inserts a new tenant inside a caller-managed transaction.
func (r *Repository) CreateWithTx(tx *gorm.DB, tenant *models.Tenant) error {
	return tx.Create(tenant).Error
}

// FindByID loads a tenant, returning nil when no row matches.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	var tenant models.Tenant
	err := r.db.WithContext(ctx).First(&tenant, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

// FindByIDs loads the tenants matching the given ids, skipping misses.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Tenant, error) {
	var tenants []*models.Tenant
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&tenants).Error
	if err != nil {
		return nil, err
	}
	return tenants, nil
}

// FindActiveByApartment returns the apartment's current occupant, or nil when
// the unit is vacant. The partial unique index on active tenants guarantees
// at most one row.
func (r *Repository) FindActiveByApartment(ctx context.Context, apartmentID uuid.UUID) (*models.Tenant, error) {
	var tenant models.Tenant
	err := r.db.WithContext(ctx).
		Where("apartment_id = ? AND status = ?", apartmentID, enums.TenantStatusActive).
		First(&tenant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

// FindActiveByLandlord lists active tenants across all of a landlord's
// properties.
func (r *Repository) FindActiveByLandlord(ctx context.Context, landlordID uuid.UUID) ([]*models.Tenant, error) {
	var tenants []*models.Tenant
	err := r.db.WithContext(ctx).
		Joins("JOIN apartments ON apartments.id = tenants.apartment_id").
		Joins("JOIN properties ON properties.id = apartments.property_id").
		Where("properties.landlord_id = ? AND tenants.status = ?", landlordID, enums.TenantStatusActive).
		Find(&tenants).Error
	if err != nil {
		return nil, err
	}
	return tenants, nil
}

// FindActiveByProperty lists active tenants within one property.
func (r *Repository) FindActiveByProperty(ctx context.Context, propertyID uuid.UUID) ([]*models.Tenant, error) {
	var tenants []*models.Tenant
	err := r.db.WithContext(ctx).
		Joins("JOIN apartments ON apartments.id = tenants.apartment_id").
		Where("apartments.property_id = ? AND tenants.status = ?", propertyID, enums.TenantStatusActive).
		Find(&tenants).Error
	if err != nil {
		return nil, err
	}
	return tenants, nil
}

// FindByLandlord lists all tenants (any status) across a landlord's
// properties.
func (r *Repository) FindByLandlord(ctx context.Context, landlordID uuid.UUID) ([]*models.Tenant, error) {
	var tenants []*models.Tenant
	err := r.db.WithContext(ctx).
		Joins("JOIN apartments ON apartments.id = tenants.apartment_id").
		Joins("JOIN properties ON properties.id = apartments.property_id").
		Where("properties.landlord_id = ?", landlordID).
		Order("tenants.created_at ASC").
		Find(&tenants).Error
	if err != nil {
		return nil, err
	}
	return tenants, nil
}

// Update persists field changes on an existing tenant.
func (r *Repository) Update(ctx context.Context, tenant *models.Tenant) error {
	return r.db.WithContext(ctx).Save(tenant).Error
}

// UpdateWithTx is Update inside a caller-managed transaction.
func (r *Repository) UpdateWithTx(tx *gorm.DB, tenant *models.Tenant) error {
	return tx.Save(tenant).Error
}
