package apartments

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jkariuki/nyumbani-backend/pkg/db/models"
	"github.com/jkariuki/nyumbani-backend/pkg/enums"
)

// Repository exposes apartment persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an apartments repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new apartment.
func (r *Repository) Create(ctx context.Context, apartment *models.Apartment) error {
	return r.db.WithContext(ctx).Create(apartment).Error
}

// FindByID loads an apartment, returning nil when no row matches.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Apartment, error) {
	var apartment models.Apartment
	err := r.db.WithContext(ctx).First(&apartment, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &apartment, nil
}

// FindByReference resolves the unit a bill reference points at, returning
// nil when no unit carries the reference.
func (r *Repository) FindByReference(ctx context.Context, reference string) (*models.Apartment, error) {
	var apartment models.Apartment
	err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&apartment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &apartment, nil
}

// FindByProperty lists a property's apartments, optionally narrowed to one
// occupancy status.
func (r *Repository) FindByProperty(ctx context.Context, propertyID uuid.UUID, status *enums.ApartmentStatus) ([]*models.Apartment, error) {
	query := r.db.WithContext(ctx).Where("property_id = ?", propertyID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var apartments []*models.Apartment
	if err := query.Order("reference ASC").Find(&apartments).Error; err != nil {
		return nil, err
	}
	return apartments, nil
}

// Update persists field changes on an existing apartment.
func (r *Repository) Update(ctx context.Context, apartment *models.Apartment) error {
	return r.db.WithContext(ctx).Save(apartment).Error
}

// UpdateStatus moves an apartment between occupancy states.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.ApartmentStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Apartment{}).
		Where("id = ?", id).
		UpdateColumn("status", status).Error
}

// UpdateStatusWithTx is UpdateStatus inside a caller-managed transaction.
func (r *Repository) UpdateStatusWithTx(tx *gorm.DB, id uuid.UUID, status enums.ApartmentStatus) error {
	return tx.Model(&models.Apartment{}).
		Where("id = ?", id).
		UpdateColumn("status", status).Error
}

// Delete removes an apartment row.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Apartment{}, "id = ?", id).Error
}
