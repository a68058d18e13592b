package invoices

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jkariuki/nyumbani-backend/pkg/db/models"
	"github.com/jkariuki/nyumbani-backend/pkg/enums"
	"github.com/jkariuki/nyumbani-backend/pkg/pagination"
)

// ListFilter narrows an invoice listing.
type ListFilter struct {
	TenantID    *uuid.UUID
	ApartmentID *uuid.UUID
	MonthYear   string
	Status      *enums.InvoiceStatus
	From        *time.Time
	To          *time.Time
}

// Repository exposes invoice persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an invoices repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new invoice.
func (r *Repository) Create(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

// FindByID loads an invoice, returning nil when no row matches.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).First(&invoice, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// FindByTenantMonth returns the tenant's invoice for a billing month, nil
// when none exists.
func (r *Repository) FindByTenantMonth(ctx context.Context, tenantID uuid.UUID, monthYear string) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND month_year = ?", tenantID, monthYear).
		First(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// MarkPaidByTenantMonthWithTx links a payment to the tenant's pending
// invoice for a billing month inside a caller-managed transaction. The
// status guard in the WHERE clause makes the write conditional: once an
// invoice is paid its payment link never changes, so a concurrent linker
// simply affects zero rows. Reports whether an invoice was linked.
func (r *Repository) MarkPaidByTenantMonthWithTx(tx *gorm.DB, tenantID uuid.UUID, monthYear string, paymentID uuid.UUID) (bool, error) {
	result := tx.Model(&models.Invoice{}).
		Where("tenant_id = ? AND month_year = ? AND status = ?", tenantID, monthYear, enums.InvoiceStatusPending).
		Updates(map[string]any{
			"status":     enums.InvoiceStatusPaid,
			"payment_id": paymentID,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListByLandlord returns invoices for a landlord's tenants, newest first.
// One buffer row beyond the normalized limit is fetched so the caller can
// detect whether a next page exists.
func (r *Repository) ListByLandlord(ctx context.Context, landlordID uuid.UUID, filter ListFilter, pag pagination.Params) ([]*models.Invoice, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Joins("JOIN tenants ON tenants.id = invoices.tenant_id").
		Joins("JOIN apartments ON apartments.id = tenants.apartment_id").
		Joins("JOIN properties ON properties.id = apartments.property_id").
		Where("properties.landlord_id = ?", landlordID)

	query = applyFilter(query, filter)

	cursor, err := pagination.ParseCursor(pag.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where("(invoices.created_at, invoices.id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var invoices []*models.Invoice
	err = query.
		Order("invoices.created_at DESC, invoices.id DESC").
		Limit(pagination.LimitWithBuffer(pag.Limit)).
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

// ListByTenant returns one tenant's invoices, newest first.
func (r *Repository) ListByTenant(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]*models.Invoice, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("invoices.tenant_id = ?", tenantID)

	query = applyFilter(query, filter)

	var invoices []*models.Invoice
	if err := query.Order("invoices.created_at DESC").Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

func applyFilter(query *gorm.DB, filter ListFilter) *gorm.DB {
	if filter.TenantID != nil {
		query = query.Where("invoices.tenant_id = ?", *filter.TenantID)
	}
	if filter.ApartmentID != nil {
		query = query.Where("invoices.apartment_id = ?", *filter.ApartmentID)
	}
	if filter.MonthYear != "" {
		query = query.Where("invoices.month_year = ?", filter.MonthYear)
	}
	if filter.Status != nil {
		query = query.Where("invoices.status = ?", *filter.Status)
	}
	if filter.From != nil {
		query = query.Where("invoices.created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("invoices.created_at <= ?", *filter.To)
	}
	return query
}

// Update persists field changes on an existing invoice.
func (r *Repository) Update(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Save(invoice).Error
}

// Delete removes an invoice row.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Invoice{}, "id = ?", id).Error
}
