package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jkariuki/nyumbani-backend/pkg/config"
	"github.com/jkariuki/nyumbani-backend/pkg/db/models"
	pkgerrors "github.com/jkariuki/nyumbani-backend/pkg/errors"
	"github.com/jkariuki/nyumbani-backend/pkg/logger"
)

const defaultRentDueDay = 10

type tenantRepository interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Tenant, error)
	FindActiveByLandlord(ctx context.Context, landlordID uuid.UUID) ([]*models.Tenant, error)
	FindActiveByProperty(ctx context.Context, propertyID uuid.UUID) ([]*models.Tenant, error)
}

type apartmentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Apartment, error)
}

type propertyRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Property, error)
	FindByLandlord(ctx context.Context, landlordID uuid.UUID) ([]*models.Property, error)
}

type paymentRepository interface {
	HasCompletedPayment(ctx context.Context, tenantID uuid.UUID, monthYear string) (bool, error)
}

type messageSender interface {
	Send(ctx context.Context, phone, message string) error
}

// DeliveryResult is the per-tenant outcome of a notification batch.
type DeliveryResult struct {
	TenantID uuid.UUID `json:"tenant_id"`
	Phone    string    `json:"phone"`
	Status   string    `json:"status"`
	Error    string    `json:"error,omitempty"`
}

const (
	deliverySent   = "sent"
	deliveryFailed = "failed"
)

type ServiceParams struct {
	TenantRepo    tenantRepository
	ApartmentRepo apartmentRepository
	PropertyRepo  propertyRepository
	PaymentRepo   paymentRepository
	Sender        messageSender
	Billing       config.BillingConfig
	Paybill       string
	Logger        *logger.Logger
}

// Service renders and dispatches tenant SMS: payment confirmations fired by
// reconciliation, and the landlord-triggered reminder and notice batches.
type Service struct {
	tenantRepo    tenantRepository
	apartmentRepo apartmentRepository
	propertyRepo  propertyRepository
	paymentRepo   paymentRepository
	sender        messageSender
	paybill       string
	rentDueDay    int
	logger        *logger.Logger
	now           func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
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
	if params.Sender == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "sms sender required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}

	rentDueDay := params.Billing.RentDueDay
	if rentDueDay < 1 || rentDueDay > 28 {
		rentDueDay = defaultRentDueDay
	}

	return &Service{
		tenantRepo:    params.TenantRepo,
		apartmentRepo: params.ApartmentRepo,
		propertyRepo:  params.PropertyRepo,
		paymentRepo:   params.PaymentRepo,
		sender:        params.Sender,
		paybill:       params.Paybill,
		rentDueDay:    rentDueDay,
		logger:        params.Logger,
		now:           time.Now,
	}, nil
}

// PaymentConfirmation texts the tenant that a full payment was received.
func (s *Service) PaymentConfirmation(ctx context.Context, payment *models.Payment, tenant *models.Tenant, apartment *models.Apartment) error {
	house, err := s.houseNameFor(ctx, apartment)
	if err != nil {
		return err
	}
	message := renderConfirmation(tenant.Name, payment.Amount, house, payment.TransactionID)
	return s.sender.Send(ctx, tenant.Phone, message)
}

// PartialPaymentNotice texts the tenant the remaining balance after an
// underpayment.
func (s *Service) PartialPaymentNotice(ctx context.Context, payment *models.Payment, tenant *models.Tenant, apartment *models.Apartment) error {
	house, err := s.houseNameFor(ctx, apartment)
	if err != nil {
		return err
	}
	balance := tenant.MonthlyRent.Sub(payment.Amount)
	message := renderPartialNotice(tenant.Name, payment.Amount, tenant.MonthlyRent, balance, house)
	return s.sender.Send(ctx, tenant.Phone, message)
}

// SendCustom delivers a landlord-written message to the named tenants.
// Tenants outside the landlord's properties are reported as failed, never
// messaged.
func (s *Service) SendCustom(ctx context.Context, landlordID uuid.UUID, tenantIDs []uuid.UUID, message string) ([]DeliveryResult, error) {
	if message == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message is required")
	}
	if len(tenantIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one tenant id is required")
	}

	tenants, err := s.tenantRepo.FindByIDs(ctx, tenantIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup tenants")
	}

	owned, err := s.ownedPropertySet(ctx, landlordID)
	if err != nil {
		return nil, err
	}

	results := make([]DeliveryResult, 0, len(tenants))
	for _, tenant := range tenants {
		if !s.tenantOwnedBy(ctx, tenant, owned) {
			results = append(results, DeliveryResult{
				TenantID: tenant.ID,
				Phone:    tenant.Phone,
				Status:   deliveryFailed,
				Error:    "tenant does not belong to your properties",
			})
			continue
		}
		results = append(results, s.deliver(ctx, tenant, message))
	}
	return results, nil
}

// SendReminders texts a rent reminder to the named tenants. A zero dueDate
// defaults to the configured due day of the current month.
func (s *Service) SendReminders(ctx context.Context, landlordID uuid.UUID, tenantIDs []uuid.UUID, dueDate time.Time) ([]DeliveryResult, error) {
	if len(tenantIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one tenant id is required")
	}
	if dueDate.IsZero() {
		dueDate = s.defaultDueDate()
	}

	tenants, err := s.tenantRepo.FindByIDs(ctx, tenantIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup tenants")
	}

	owned, err := s.ownedPropertySet(ctx, landlordID)
	if err != nil {
		return nil, err
	}

	results := make([]DeliveryResult, 0, len(tenants))
	for _, tenant := range tenants {
		if !s.tenantOwnedBy(ctx, tenant, owned) {
			continue
		}
		results = append(results, s.deliverReminder(ctx, tenant, dueDate))
	}
	return results, nil
}

// SendBulkReminders texts every active tenant in the given property, or in
// all of the landlord's properties when propertyID is nil.
func (s *Service) SendBulkReminders(ctx context.Context, landlordID uuid.UUID, propertyID *uuid.UUID, dueDate time.Time) ([]DeliveryResult, error) {
	if dueDate.IsZero() {
		dueDate = s.defaultDueDate()
	}

	var (
		tenants []*models.Tenant
		err     error
	)
	if propertyID != nil {
		property, perr := s.propertyRepo.FindByID(ctx, *propertyID)
		if perr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, perr, "lookup property")
		}
		if property == nil || property.LandlordID != landlordID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "you do not own this property")
		}
		tenants, err = s.tenantRepo.FindActiveByProperty(ctx, *propertyID)
	} else {
		tenants, err = s.tenantRepo.FindActiveByLandlord(ctx, landlordID)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup tenants")
	}

	results := make([]DeliveryResult, 0, len(tenants))
	for _, tenant := range tenants {
		results = append(results, s.deliverReminder(ctx, tenant, dueDate))
	}
	return results, nil
}

// SendOverdueNotices texts every active tenant of the landlord who has no
// completed payment for the current month once the due day has passed.
func (s *Service) SendOverdueNotices(ctx context.Context, landlordID uuid.UUID) ([]DeliveryResult, error) {
	now := s.now()
	dueDate := time.Date(now.Year(), now.Month(), s.rentDueDay, 0, 0, 0, 0, now.Location())
	if !now.After(dueDate) {
		return []DeliveryResult{}, nil
	}
	daysOverdue := int(now.Sub(dueDate).Hours() / 24)
	currentMonth := now.Format("2006-01")

	tenants, err := s.tenantRepo.FindActiveByLandlord(ctx, landlordID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup tenants")
	}

	results := make([]DeliveryResult, 0, len(tenants))
	for _, tenant := range tenants {
		paid, err := s.paymentRepo.HasCompletedPayment(ctx, tenant.ID, currentMonth)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check payment")
		}
		if paid {
			continue
		}

		house, err := s.houseNameForTenant(ctx, tenant)
		if err != nil {
			s.logger.Error(ctx, "resolve house name", err)
			continue
		}
		message := renderOverdueNotice(tenant.Name, tenant.MonthlyRent, house, daysOverdue, s.paybill)
		results = append(results, s.deliver(ctx, tenant, message))
	}
	return results, nil
}

func (s *Service) deliverReminder(ctx context.Context, tenant *models.Tenant, dueDate time.Time) DeliveryResult {
	house, reference, err := s.houseAndReferenceForTenant(ctx, tenant)
	if err != nil {
		return DeliveryResult{TenantID: tenant.ID, Phone: tenant.Phone, Status: deliveryFailed, Error: err.Error()}
	}
	message := renderReminder(tenant.Name, tenant.MonthlyRent, house, dueDate, s.paybill, reference)
	return s.deliver(ctx, tenant, message)
}

func (s *Service) deliver(ctx context.Context, tenant *models.Tenant, message string) DeliveryResult {
	result := DeliveryResult{TenantID: tenant.ID, Phone: tenant.Phone, Status: deliverySent}
	if err := s.sender.Send(ctx, tenant.Phone, message); err != nil {
		s.logger.Error(s.logger.WithField(ctx, "tenant_id", tenant.ID.String()), "sms delivery failed", err)
		result.Status = deliveryFailed
		result.Error = err.Error()
	}
	return result
}

func (s *Service) defaultDueDate() time.Time {
	now := s.now()
	return time.Date(now.Year(), now.Month(), s.rentDueDay, 0, 0, 0, 0, now.Location())
}

func (s *Service) ownedPropertySet(ctx context.Context, landlordID uuid.UUID) (map[uuid.UUID]struct{}, error) {
	properties, err := s.propertyRepo.FindByLandlord(ctx, landlordID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup properties")
	}
	owned := make(map[uuid.UUID]struct{}, len(properties))
	for _, property := range properties {
		owned[property.ID] = struct{}{}
	}
	return owned, nil
}

func (s *Service) tenantOwnedBy(ctx context.Context, tenant *models.Tenant, owned map[uuid.UUID]struct{}) bool {
	if tenant.ApartmentID == nil {
		return false
	}
	apartment, err := s.apartmentRepo.FindByID(ctx, *tenant.ApartmentID)
	if err != nil || apartment == nil {
		return false
	}
	_, ok := owned[apartment.PropertyID]
	return ok
}

func (s *Service) houseNameFor(ctx context.Context, apartment *models.Apartment) (string, error) {
	if apartment == nil {
		return "", pkgerrors.New(pkgerrors.CodeInternal, "apartment required")
	}
	property, err := s.propertyRepo.FindByID(ctx, apartment.PropertyID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup property")
	}
	if property == nil {
		return apartment.Reference, nil
	}
	return houseName(property.Name, apartment.Reference), nil
}

func (s *Service) houseNameForTenant(ctx context.Context, tenant *models.Tenant) (string, error) {
	house, _, err := s.houseAndReferenceForTenant(ctx, tenant)
	return house, err
}

func (s *Service) houseAndReferenceForTenant(ctx context.Context, tenant *models.Tenant) (string, string, error) {
	if tenant.ApartmentID == nil {
		return "", "", pkgerrors.New(pkgerrors.CodeStateConflict, "tenant has no apartment")
	}
	apartment, err := s.apartmentRepo.FindByID(ctx, *tenant.ApartmentID)
	if err != nil {
		return "", "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup apartment")
	}
	if apartment == nil {
		return "", "", pkgerrors.New(pkgerrors.CodeNotFound, "apartment not found")
	}
	house, err := s.houseNameFor(ctx, apartment)
	if err != nil {
		return "", "", err
	}
	return house, apartment.Reference, nil
}
