package properties

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jkariuki/nyumbani-backend/pkg/db/models"
	"github.com/jkariuki/nyumbani-backend/pkg/enums"
)

// Repository exposes property persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a properties repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new property.
func (r *Repository) Create(ctx context.Context, property *models.Property) error {
	return r.db.WithContext(ctx).Create(property).Error
}

// FindByID loads a property, returning nil when no row matches.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	var property models.Property
	err := r.db.WithContext(ctx).First(&property, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &property, nil
}

// FindByLandlord lists all properties owned by the landlord.
func (r *Repository) FindByLandlord(ctx context.Context, landlordID uuid.UUID) ([]*models.Property, error) {
	var properties []*models.Property
	err := r.db.WithContext(ctx).
		Where("landlord_id = ?", landlordID).
		Order("created_at ASC").
		Find(&properties).Error
	if err != nil {
		return nil, err
	}
	return properties, nil
}

// Update persists field changes on an existing property.
func (r *Repository) Update(ctx context.Context, property *models.Property) error {
	return r.db.WithContext(ctx).Save(property).Error
}

// Delete removes a property row.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Property{}, "id = ?", id).Error
}

// CountApartments returns total and occupied unit counts for a property.
func (r *Repository) CountApartments(ctx context.Context, propertyID uuid.UUID) (total int64, occupied int64, err error) {
	base := r.db.WithContext(ctx).Model(&models.Apartment{}).Where("property_id = ?", propertyID)
	if err = base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return 0, 0, err
	}
	err = base.Session(&gorm.Session{}).
		Where("status = ?", enums.ApartmentStatusOccupied).
		Count(&occupied).Error
	if err != nil {
		return 0, 0, err
	}
	return total, occupied, nil
}
