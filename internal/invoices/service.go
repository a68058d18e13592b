package invoices

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jkariuki/nyumbani-backend/pkg/db"
	"github.com/jkariuki/nyumbani-backend/pkg/db/models"
	"github.com/jkariuki/nyumbani-backend/pkg/enums"
	pkgerrors "github.com/jkariuki/nyumbani-backend/pkg/errors"
	"github.com/jkariuki/nyumbani-backend/pkg/logger"
	"github.com/jkariuki/nyumbani-backend/pkg/pagination"
)

const (
	monthLayout             = "2006-01"
	invoiceNumberCharset    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	invoiceNumberLength     = 6
	invoiceNumberConstraint = "idx_invoices_invoice_number"
	tenantMonthConstraint   = "idx_invoices_tenant_month"
)

type invoiceRepository interface {
	Create(ctx context.Context, invoice *models.Invoice) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	FindByTenantMonth(ctx context.Context, tenantID uuid.UUID, monthYear string) (*models.Invoice, error)
	ListByLandlord(ctx context.Context, landlordID uuid.UUID, filter ListFilter, pag pagination.Params) ([]*models.Invoice, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]*models.Invoice, error)
	Update(ctx context.Context, invoice *models.Invoice) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type tenantRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
}

type apartmentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Apartment, error)
}

type propertyRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Property, error)
}

type paymentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
}

type CreateInvoiceInput struct {
	TenantID     uuid.UUID       `json:"tenant_id" validate:"required"`
	MonthYear    string          `json:"month_year" validate:"required"`
	RentAmount   decimal.Decimal `json:"rent_amount" validate:"required"`
	LateFee      decimal.Decimal `json:"late_fee"`
	OtherCharges decimal.Decimal `json:"other_charges"`
	DueDate      time.Time       `json:"due_date"`
}

type UpdateInvoiceInput struct {
	RentAmount   *decimal.Decimal `json:"rent_amount"`
	LateFee      *decimal.Decimal `json:"late_fee"`
	OtherCharges *decimal.Decimal `json:"other_charges"`
	DueDate      *time.Time       `json:"due_date"`
}

// InvoiceDetail pairs an invoice with the payment that satisfied it, when
// one exists.
type InvoiceDetail struct {
	Invoice *models.Invoice `json:"invoice"`
	Payment *models.Payment `json:"payment,omitempty"`
}

type ServiceParams struct {
	Repo          invoiceRepository
	TenantRepo    tenantRepository
	ApartmentRepo apartmentRepository
	PropertyRepo  propertyRepository
	PaymentRepo   paymentRepository
	Logger        *logger.Logger
}

type Service struct {
	repo          invoiceRepository
	tenantRepo    tenantRepository
	apartmentRepo apartmentRepository
	propertyRepo  propertyRepository
	paymentRepo   paymentRepository
	logger        *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "invoice repo required")
	}
	if params.TenantRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tenant repo required")
	}
	if params.ApartmentRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "apartment repo required")
	}
	if params.PropertyRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "property repo required")
	}
	if params.PaymentRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment repo required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		repo:          params.Repo,
		tenantRepo:    params.TenantRepo,
		apartmentRepo: params.ApartmentRepo,
		propertyRepo:  params.PropertyRepo,
		paymentRepo:   params.PaymentRepo,
		logger:        params.Logger,
	}, nil
}

// Create bills a tenant for one month. One invoice per tenant per month;
// the composite unique index backstops a racing duplicate.
func (s *Service) Create(ctx context.Context, landlordID uuid.UUID, input CreateInvoiceInput) (*models.Invoice, error) {
	month, err := time.Parse(monthLayout, input.MonthYear)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "month_year must be in YYYY-MM format")
	}
	if !input.RentAmount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rent_amount must be positive")
	}
	if input.LateFee.IsNegative() || input.OtherCharges.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "charges cannot be negative")
	}

	tenant, err := s.ownedTenant(ctx, landlordID, input.TenantID)
	if err != nil {
		return nil, err
	}

	monthYear := month.Format(monthLayout)
	existing, err := s.repo.FindByTenantMonth(ctx, tenant.ID, monthYear)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup invoice")
	}
	if existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "invoice for this month already exists")
	}

	dueDate := input.DueDate
	if dueDate.IsZero() {
		dueDate = time.Date(month.Year(), month.Month(), 10, 0, 0, 0, 0, time.UTC)
	}

	invoice := &models.Invoice{
		TenantID:      tenant.ID,
		ApartmentID:   tenant.ApartmentID,
		InvoiceNumber: generateInvoiceNumber(),
		MonthYear:     monthYear,
		RentAmount:    input.RentAmount,
		LateFee:       input.LateFee,
		OtherCharges:  input.OtherCharges,
		TotalAmount:   input.RentAmount.Add(input.LateFee).Add(input.OtherCharges),
		DueDate:       dueDate,
		Status:        enums.InvoiceStatusPending,
	}

	if err := s.repo.Create(ctx, invoice); err != nil {
		if db.IsUniqueViolation(err, tenantMonthConstraint) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "invoice for this month already exists")
		}
		if db.IsUniqueViolation(err, invoiceNumberConstraint) {
			// Regenerate once on the astronomically unlikely collision.
			invoice.InvoiceNumber = generateInvoiceNumber()
			if retryErr := s.repo.Create(ctx, invoice); retryErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, retryErr, "create invoice")
			}
			return invoice, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create invoice")
	}

	s.logger.Info(s.logger.WithField(ctx, "invoice_number", invoice.InvoiceNumber), "invoice created")
	return invoice, nil
}

// ListPage is one page of invoices. NextCursor is empty on the last page.
type ListPage struct {
	Invoices   []*models.Invoice `json:"invoices"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

// List returns invoices across the landlord's tenants, cursor-paginated.
func (s *Service) List(ctx context.Context, landlordID uuid.UUID, filter ListFilter, pag pagination.Params) (*ListPage, error) {
	invoices, err := s.repo.ListByLandlord(ctx, landlordID, filter, pag)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list invoices")
	}

	page := &ListPage{Invoices: invoices}
	limit := pagination.NormalizeLimit(pag.Limit)
	if len(invoices) > limit {
		page.Invoices = invoices[:limit]
		last := page.Invoices[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return page, nil
}

// Get loads one invoice with its linked payment, enforcing ownership.
func (s *Service) Get(ctx context.Context, landlordID, invoiceID uuid.UUID) (*InvoiceDetail, error) {
	invoice, err := s.owned(ctx, landlordID, invoiceID)
	if err != nil {
		return nil, err
	}

	detail := &InvoiceDetail{Invoice: invoice}
	if invoice.PaymentID != nil {
		payment, err := s.paymentRepo.FindByID(ctx, *invoice.PaymentID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup payment")
		}
		detail.Payment = payment
	}
	return detail, nil
}

// Update changes invoice amounts and recomputes the total. Paid invoices are
// immutable.
func (s *Service) Update(ctx context.Context, landlordID, invoiceID uuid.UUID, input UpdateInvoiceInput) (*models.Invoice, error) {
	invoice, err := s.owned(ctx, landlordID, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.Status == enums.InvoiceStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "paid invoices cannot be changed")
	}

	if input.RentAmount != nil {
		if !input.RentAmount.IsPositive() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "rent_amount must be positive")
		}
		invoice.RentAmount = *input.RentAmount
	}
	if input.LateFee != nil {
		if input.LateFee.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "late_fee cannot be negative")
		}
		invoice.LateFee = *input.LateFee
	}
	if input.OtherCharges != nil {
		if input.OtherCharges.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "other_charges cannot be negative")
		}
		invoice.OtherCharges = *input.OtherCharges
	}
	if input.DueDate != nil {
		invoice.DueDate = *input.DueDate
	}

	invoice.TotalAmount = invoice.RentAmount.Add(invoice.LateFee).Add(invoice.OtherCharges)

	if err := s.repo.Update(ctx, invoice); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update invoice")
	}
	return invoice, nil
}

// MarkPaid manually links an invoice to a recorded payment, for cash and
// bank settlements the gateway never sees.
func (s *Service) MarkPaid(ctx context.Context, landlordID, invoiceID, paymentID uuid.UUID) (*models.Invoice, error) {
	invoice, err := s.owned(ctx, landlordID, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.Status == enums.InvoiceStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "invoice is already paid")
	}

	payment, err := s.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup payment")
	}
	if payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}

	invoice.Status = enums.InvoiceStatusPaid
	invoice.PaymentID = &payment.ID

	if err := s.repo.Update(ctx, invoice); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark invoice paid")
	}
	return invoice, nil
}

// Delete removes an unpaid, unlinked invoice.
func (s *Service) Delete(ctx context.Context, landlordID, invoiceID uuid.UUID) error {
	invoice, err := s.owned(ctx, landlordID, invoiceID)
	if err != nil {
		return err
	}
	if invoice.Status == enums.InvoiceStatusPaid {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "paid invoices cannot be deleted")
	}
	if invoice.PaymentID != nil {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "invoice is linked to a payment")
	}

	if err := s.repo.Delete(ctx, invoice.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete invoice")
	}
	return nil
}

func (s *Service) owned(ctx context.Context, landlordID, invoiceID uuid.UUID) (*models.Invoice, error) {
	invoice, err := s.repo.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup invoice")
	}
	if invoice == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
	}
	if _, err := s.ownedTenant(ctx, landlordID, invoice.TenantID); err != nil {
		return nil, err
	}
	return invoice, nil
}

func (s *Service) ownedTenant(ctx context.Context, landlordID, tenantID uuid.UUID) (*models.Tenant, error) {
	tenant, err := s.tenantRepo.FindByID(ctx, tenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup tenant")
	}
	if tenant == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tenant not found")
	}
	if tenant.ApartmentID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "tenant is not in your properties")
	}
	apartment, err := s.apartmentRepo.FindByID(ctx, *tenant.ApartmentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup apartment")
	}
	if apartment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "apartment not found")
	}
	property, err := s.propertyRepo.FindByID(ctx, apartment.PropertyID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup property")
	}
	if property == nil || property.LandlordID != landlordID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "you do not own this property")
	}
	return tenant, nil
}

func generateInvoiceNumber() string {
	buf := make([]byte, invoiceNumberLength)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the host is broken; fall back to time.
		return fmt.Sprintf("INV-%06d", time.Now().UnixNano()%1000000)
	}
	for i, b := range buf {
		buf[i] = invoiceNumberCharset[int(b)%len(invoiceNumberCharset)]
	}
	return "INV-" + string(buf)
}
