package payments

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jkariuki/nyumbani-backend/pkg/db/models"
	"github.com/jkariuki/nyumbani-backend/pkg/enums"
	pkgerrors "github.com/jkariuki/nyumbani-backend/pkg/errors"
	"github.com/jkariuki/nyumbani-backend/pkg/logger"
	"github.com/jkariuki/nyumbani-backend/pkg/mpesa"
)

type paymentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error)
	ListByLandlord(ctx context.Context, landlordID uuid.UUID, filter ListFilter) ([]*models.Payment, error)
	ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]*models.Payment, error)
	CountApartmentsByLandlord(ctx context.Context, landlordID uuid.UUID) (int64, error)
}

type tenantRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
}

type apartmentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Apartment, error)
}

type propertyRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Property, error)
	FindByLandlord(ctx context.Context, landlordID uuid.UUID) ([]*models.Property, error)
}

type stkClient interface {
	STKPush(ctx context.Context, phone string, amount decimal.Decimal, accountReference, description string) (*mpesa.STKPushResponse, error)
	QueryStatus(ctx context.Context, checkoutRequestID string) (*mpesa.STKQueryResponse, error)
}

// PaymentView is a payment enriched with the names a landlord dashboard
// renders.
type PaymentView struct {
	models.Payment
	TenantName         string `json:"tenant_name,omitempty"`
	ApartmentReference string `json:"apartment_reference"`
	PropertyName       string `json:"property_name"`
	PropertyAddress    string `json:"property_address"`
}

// ListResult is a payment listing plus its aggregate counts.
type ListResult struct {
	Payments       []PaymentView   `json:"payments"`
	TotalCount     int             `json:"total_count"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	CompletedCount int             `json:"completed_count"`
	PendingCount   int             `json:"pending_count"`
	PartialCount   int             `json:"partial_count"`
}

// Summary is the landlord-wide collection picture, optionally narrowed to a
// billing month.
type Summary struct {
	TotalProperties   int             `json:"total_properties"`
	TotalApartments   int64           `json:"total_apartments"`
	TotalPayments     int             `json:"total_payments"`
	CompletedPayments int             `json:"completed_payments"`
	PendingPayments   int             `json:"pending_payments"`
	PartialPayments   int             `json:"partial_payments"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	ExpectedRevenue   decimal.Decimal `json:"expected_revenue"`
	CollectionRate    string          `json:"collection_rate"`
	MonthYear         string          `json:"month_year"`
}

// PropertyBreakdown is the per-property rollup.
type PropertyBreakdown struct {
	PropertyID        uuid.UUID       `json:"property_id"`
	PropertyName      string          `json:"property_name"`
	PropertyAddress   string          `json:"property_address"`
	TotalUnits        int             `json:"total_units"`
	TotalPayments     int             `json:"total_payments"`
	CompletedPayments int             `json:"completed_payments"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
}

// VerifyResult reports whether a gateway receipt is on record.
type VerifyResult struct {
	Exists  bool         `json:"exists"`
	Payment *PaymentView `json:"payment,omitempty"`
}

type STKPushInput struct {
	TenantID    uuid.UUID        `json:"tenant_id" validate:"required"`
	Amount      *decimal.Decimal `json:"amount"`
	Phone       *string          `json:"phone"`
	Description string           `json:"description"`
}

type ServiceParams struct {
	Repo          paymentRepository
	TenantRepo    tenantRepository
	ApartmentRepo apartmentRepository
	PropertyRepo  propertyRepository
	Gateway       stkClient
	Logger        *logger.Logger
}

// Service is the landlord-facing read side of payments, plus STK push
// initiation. Payment rows are only ever created by reconciliation.
type Service struct {
	repo          paymentRepository
	tenantRepo    tenantRepository
	apartmentRepo apartmentRepository
	propertyRepo  propertyRepository
	gateway       stkClient
	logger        *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment repo required")
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
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		repo:          params.Repo,
		tenantRepo:    params.TenantRepo,
		apartmentRepo: params.ApartmentRepo,
		propertyRepo:  params.PropertyRepo,
		gateway:       params.Gateway,
		logger:        params.Logger,
	}, nil
}

// List returns a landlord's payments with aggregate counts. A property
// filter pointing at someone else's property is rejected.
func (s *Service) List(ctx context.Context, landlordID uuid.UUID, filter ListFilter) (*ListResult, error) {
	if filter.PropertyID != nil {
		property, err := s.propertyRepo.FindByID(ctx, *filter.PropertyID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup property")
		}
		if property == nil || property.LandlordID != landlordID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "you do not own this property")
		}
	}

	payments, err := s.repo.ListByLandlord(ctx, landlordID, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments")
	}

	result := &ListResult{
		Payments:    make([]PaymentView, 0, len(payments)),
		TotalCount:  len(payments),
		TotalAmount: decimal.Zero,
	}
	for _, payment := range payments {
		view, err := s.enrich(ctx, payment)
		if err != nil {
			return nil, err
		}
		result.Payments = append(result.Payments, *view)
		result.TotalAmount = result.TotalAmount.Add(payment.Amount)
		switch payment.Status {
		case enums.PaymentStatusCompleted:
			result.CompletedCount++
		case enums.PaymentStatusPending:
			result.PendingCount++
		case enums.PaymentStatusPartial:
			result.PartialCount++
		}
	}
	return result, nil
}

// Get loads one payment, enforcing ownership through its apartment.
func (s *Service) Get(ctx context.Context, landlordID, paymentID uuid.UUID) (*PaymentView, error) {
	payment, err := s.repo.FindByID(ctx, paymentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup payment")
	}
	if payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}
	if err := s.assertOwnership(ctx, landlordID, payment.ApartmentID); err != nil {
		return nil, err
	}
	return s.enrich(ctx, payment)
}

// Summary computes landlord-wide collection statistics. The collection rate
// is the share of payment events that settled in full.
func (s *Service) Summary(ctx context.Context, landlordID uuid.UUID, monthYear string) (*Summary, error) {
	properties, err := s.propertyRepo.FindByLandlord(ctx, landlordID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list properties")
	}

	summary := &Summary{
		TotalProperties: len(properties),
		TotalRevenue:    decimal.Zero,
		ExpectedRevenue: decimal.Zero,
		CollectionRate:  "0.00%",
		MonthYear:       monthYear,
	}
	if monthYear == "" {
		summary.MonthYear = "All time"
	}
	if len(properties) == 0 {
		return summary, nil
	}

	summary.TotalApartments, err = s.repo.CountApartmentsByLandlord(ctx, landlordID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count apartments")
	}

	payments, err := s.repo.ListByLandlord(ctx, landlordID, ListFilter{MonthPaidFor: monthYear})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments")
	}

	summary.TotalPayments = len(payments)
	for _, payment := range payments {
		summary.ExpectedRevenue = summary.ExpectedRevenue.Add(payment.Amount)
		switch payment.Status {
		case enums.PaymentStatusCompleted:
			summary.CompletedPayments++
			summary.TotalRevenue = summary.TotalRevenue.Add(payment.Amount)
		case enums.PaymentStatusPending:
			summary.PendingPayments++
		case enums.PaymentStatusPartial:
			summary.PartialPayments++
		}
	}
	if summary.TotalPayments > 0 {
		rate := decimal.NewFromInt(int64(summary.CompletedPayments)).
			Div(decimal.NewFromInt(int64(summary.TotalPayments))).
			Mul(decimal.NewFromInt(100))
		summary.CollectionRate = rate.StringFixed(2) + "%"
	}
	return summary, nil
}

// ByProperty rolls payments up per property.
func (s *Service) ByProperty(ctx context.Context, landlordID uuid.UUID) ([]PropertyBreakdown, error) {
	properties, err := s.propertyRepo.FindByLandlord(ctx, landlordID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list properties")
	}

	breakdowns := make([]PropertyBreakdown, 0, len(properties))
	for _, property := range properties {
		payments, err := s.repo.ListByProperty(ctx, property.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments")
		}

		breakdown := PropertyBreakdown{
			PropertyID:      property.ID,
			PropertyName:    property.Name,
			PropertyAddress: property.Address,
			TotalUnits:      property.TotalUnits,
			TotalPayments:   len(payments),
			TotalRevenue:    decimal.Zero,
		}
		for _, payment := range payments {
			if payment.Status == enums.PaymentStatusCompleted {
				breakdown.CompletedPayments++
				breakdown.TotalRevenue = breakdown.TotalRevenue.Add(payment.Amount)
			}
		}
		breakdowns = append(breakdowns, breakdown)
	}
	return breakdowns, nil
}

// Verify looks a gateway receipt up for support inquiries.
func (s *Service) Verify(ctx context.Context, landlordID uuid.UUID, receipt string) (*VerifyResult, error) {
	receipt = strings.TrimSpace(receipt)
	if receipt == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "receipt number is required")
	}

	payment, err := s.repo.FindByTransactionID(ctx, receipt)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup payment")
	}
	if payment == nil {
		return &VerifyResult{Exists: false}, nil
	}
	if err := s.assertOwnership(ctx, landlordID, payment.ApartmentID); err != nil {
		return nil, err
	}
	view, err := s.enrich(ctx, payment)
	if err != nil {
		return nil, err
	}
	return &VerifyResult{Exists: true, Payment: view}, nil
}

// InitiateSTK asks the gateway to prompt a tenant's handset for payment.
// Amount defaults to the tenant's monthly rent and phone to the tenant's
// registered number; the account reference is always the apartment's bill
// reference so the resulting callback resolves to the right unit.
func (s *Service) InitiateSTK(ctx context.Context, landlordID uuid.UUID, input STKPushInput) (*mpesa.STKPushResponse, error) {
	if s.gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway unavailable")
	}

	tenant, err := s.tenantRepo.FindByID(ctx, input.TenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup tenant")
	}
	if tenant == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tenant not found")
	}
	if tenant.ApartmentID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "tenant has no apartment")
	}
	apartment, err := s.ownedApartment(ctx, landlordID, *tenant.ApartmentID)
	if err != nil {
		return nil, err
	}

	amount := tenant.MonthlyRent
	if input.Amount != nil {
		if !input.Amount.IsPositive() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
		}
		amount = *input.Amount
	}

	phone := tenant.Phone
	if input.Phone != nil && strings.TrimSpace(*input.Phone) != "" {
		phone = *input.Phone
	}

	description := strings.TrimSpace(input.Description)
	if description == "" {
		description = "Rent payment for " + apartment.Reference
	}

	resp, err := s.gateway.STKPush(ctx, phone, amount, apartment.Reference, description)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stk push")
	}

	s.logger.Info(s.logger.WithApartment(ctx, apartment.Reference), "stk push initiated")
	return resp, nil
}

// QueryStatus asks the gateway for the state of an earlier STK push.
func (s *Service) QueryStatus(ctx context.Context, checkoutRequestID string) (*mpesa.STKQueryResponse, error) {
	if s.gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway unavailable")
	}
	checkoutRequestID = strings.TrimSpace(checkoutRequestID)
	if checkoutRequestID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout request id is required")
	}
	resp, err := s.gateway.QueryStatus(ctx, checkoutRequestID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stk query")
	}
	return resp, nil
}

func (s *Service) enrich(ctx context.Context, payment *models.Payment) (*PaymentView, error) {
	view := &PaymentView{Payment: *payment}

	apartment, err := s.apartmentRepo.FindByID(ctx, payment.ApartmentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup apartment")
	}
	if apartment != nil {
		view.ApartmentReference = apartment.Reference
		property, err := s.propertyRepo.FindByID(ctx, apartment.PropertyID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup property")
		}
		if property != nil {
			view.PropertyName = property.Name
			view.PropertyAddress = property.Address
		}
	}

	if payment.TenantID != nil {
		tenant, err := s.tenantRepo.FindByID(ctx, *payment.TenantID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup tenant")
		}
		if tenant != nil {
			view.TenantName = tenant.Name
		}
	}
	return view, nil
}

func (s *Service) assertOwnership(ctx context.Context, landlordID, apartmentID uuid.UUID) error {
	_, err := s.ownedApartment(ctx, landlordID, apartmentID)
	return err
}

func (s *Service) ownedApartment(ctx context.Context, landlordID, apartmentID uuid.UUID) (*models.Apartment, error) {
	apartment, err := s.apartmentRepo.FindByID(ctx, apartmentID)
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
	return apartment, nil
}
