package tenants

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/jkariuki/nyumbani-backend/pkg/db"
	"github.com/jkariuki/nyumbani-backend/pkg/db/models"
	"github.com/jkariuki/nyumbani-backend/pkg/enums"
	pkgerrors "github.com/jkariuki/nyumbani-backend/pkg/errors"
	"github.com/jkariuki/nyumbani-backend/pkg/logger"
	"github.com/jkariuki/nyumbani-backend/pkg/mpesa"
)

const activeTenantConstraint = "idx_tenants_active_apartment"

type tenantRepository interface {
	CreateWithTx(tx *gorm.DB, tenant *models.Tenant) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	FindActiveByApartment(ctx context.Context, apartmentID uuid.UUID) (*models.Tenant, error)
	FindByLandlord(ctx context.Context, landlordID uuid.UUID) ([]*models.Tenant, error)
	Update(ctx context.Context, tenant *models.Tenant) error
	UpdateWithTx(tx *gorm.DB, tenant *models.Tenant) error
}

type apartmentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Apartment, error)
	UpdateStatusWithTx(tx *gorm.DB, id uuid.UUID, status enums.ApartmentStatus) error
}

type propertyRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Property, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type CreateTenantInput struct {
	ApartmentID         uuid.UUID        `json:"apartment_id" validate:"required"`
	Name                string           `json:"name" validate:"required"`
	Email               string           `json:"email" validate:"required,email"`
	Phone               string           `json:"phone" validate:"required"`
	LeaseStartDate      time.Time        `json:"lease_start_date" validate:"required"`
	MonthlyRent         *decimal.Decimal `json:"monthly_rent"`
	SecurityDepositPaid decimal.Decimal  `json:"security_deposit_paid"`
	EmergencyContact    *string          `json:"emergency_contact"`
	IDNumber            *string          `json:"id_number"`
}

type UpdateTenantInput struct {
	Name             *string          `json:"name"`
	Email            *string          `json:"email"`
	Phone            *string          `json:"phone"`
	MonthlyRent      *decimal.Decimal `json:"monthly_rent"`
	EmergencyContact *string          `json:"emergency_contact"`
	IDNumber         *string          `json:"id_number"`
	Status           *string          `json:"status"`
}

type ServiceParams struct {
	Repo              tenantRepository
	ApartmentRepo     apartmentRepository
	PropertyRepo      propertyRepository
	TransactionRunner txRunner
	Logger            *logger.Logger
}

type Service struct {
	repo          tenantRepository
	apartmentRepo apartmentRepository
	propertyRepo  propertyRepository
	txRunner      txRunner
	logger        *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tenant repo required")
	}
	if params.ApartmentRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "apartment repo required")
	}
	if params.PropertyRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "property repo required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		repo:          params.Repo,
		apartmentRepo: params.ApartmentRepo,
		propertyRepo:  params.PropertyRepo,
		txRunner:      params.TransactionRunner,
		logger:        params.Logger,
	}, nil
}

// Create leases a vacant apartment to a new tenant. MonthlyRent is copied
// from the apartment at lease time unless overridden, so later rent changes
// never reclassify old payments. The insert and the apartment status flip
// share one transaction; the active-tenant partial index backstops a racing
// second lease.
func (s *Service) Create(ctx context.Context, landlordID uuid.UUID, input CreateTenantInput) (*models.Tenant, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	phone, err := mpesa.NormalizePhone(input.Phone)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid phone")
	}
	if input.LeaseStartDate.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lease_start_date is required")
	}

	apartment, err := s.ownedApartment(ctx, landlordID, input.ApartmentID)
	if err != nil {
		return nil, err
	}

	occupant, err := s.repo.FindActiveByApartment(ctx, apartment.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup occupant")
	}
	if occupant != nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "apartment already has an active tenant")
	}

	rent := apartment.RentAmount
	if input.MonthlyRent != nil {
		if !input.MonthlyRent.IsPositive() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "monthly_rent must be positive")
		}
		rent = *input.MonthlyRent
	}

	apartmentID := apartment.ID
	tenant := &models.Tenant{
		ApartmentID:         &apartmentID,
		Name:                name,
		Email:               strings.ToLower(strings.TrimSpace(input.Email)),
		Phone:               "+" + phone,
		LeaseStartDate:      input.LeaseStartDate,
		MonthlyRent:         rent,
		SecurityDepositPaid: input.SecurityDepositPaid,
		EmergencyContact:    input.EmergencyContact,
		IDNumber:            input.IDNumber,
		Status:              enums.TenantStatusActive,
	}

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.CreateWithTx(tx, tenant); err != nil {
			return err
		}
		return s.apartmentRepo.UpdateStatusWithTx(tx, apartment.ID, enums.ApartmentStatusOccupied)
	})
	if err != nil {
		if db.IsUniqueViolation(err, activeTenantConstraint) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "apartment already has an active tenant")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create tenant")
	}

	s.logger.Info(s.logger.WithField(ctx, "tenant_id", tenant.ID.String()), "tenant created")
	return tenant, nil
}

// List returns every tenant across the landlord's properties.
func (s *Service) List(ctx context.Context, landlordID uuid.UUID) ([]*models.Tenant, error) {
	tenants, err := s.repo.FindByLandlord(ctx, landlordID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tenants")
	}
	return tenants, nil
}

// Get loads one tenant, enforcing ownership through the apartment's property.
func (s *Service) Get(ctx context.Context, landlordID, tenantID uuid.UUID) (*models.Tenant, error) {
	return s.owned(ctx, landlordID, tenantID)
}

func (s *Service) Update(ctx context.Context, landlordID, tenantID uuid.UUID, input UpdateTenantInput) (*models.Tenant, error) {
	tenant, err := s.owned(ctx, landlordID, tenantID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
		}
		tenant.Name = name
	}
	if input.Email != nil {
		tenant.Email = strings.ToLower(strings.TrimSpace(*input.Email))
	}
	if input.Phone != nil {
		phone, err := mpesa.NormalizePhone(*input.Phone)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid phone")
		}
		tenant.Phone = "+" + phone
	}
	if input.MonthlyRent != nil {
		if !input.MonthlyRent.IsPositive() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "monthly_rent must be positive")
		}
		tenant.MonthlyRent = *input.MonthlyRent
	}
	if input.EmergencyContact != nil {
		tenant.EmergencyContact = input.EmergencyContact
	}
	if input.IDNumber != nil {
		tenant.IDNumber = input.IDNumber
	}
	if input.Status != nil {
		status, err := enums.ParseTenantStatus(*input.Status)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
		}
		if status == enums.TenantStatusFormer {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "use the end-lease operation to move a tenant out")
		}
		tenant.Status = status
	}

	if err := s.repo.Update(ctx, tenant); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update tenant")
	}
	return tenant, nil
}

// EndLease moves a tenant out: status flips to former, the lease end date is
// stamped, and the apartment goes back to vacant in the same transaction.
func (s *Service) EndLease(ctx context.Context, landlordID, tenantID uuid.UUID, endDate time.Time) (*models.Tenant, error) {
	tenant, err := s.owned(ctx, landlordID, tenantID)
	if err != nil {
		return nil, err
	}
	if tenant.Status == enums.TenantStatusFormer {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "lease already ended")
	}
	if endDate.IsZero() {
		endDate = time.Now()
	}

	tenant.Status = enums.TenantStatusFormer
	tenant.LeaseEndDate = &endDate
	apartmentID := tenant.ApartmentID

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.UpdateWithTx(tx, tenant); err != nil {
			return err
		}
		if apartmentID != nil {
			return s.apartmentRepo.UpdateStatusWithTx(tx, *apartmentID, enums.ApartmentStatusVacant)
		}
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "end lease")
	}

	s.logger.Info(s.logger.WithField(ctx, "tenant_id", tenant.ID.String()), "lease ended")
	return tenant, nil
}

func (s *Service) owned(ctx context.Context, landlordID, tenantID uuid.UUID) (*models.Tenant, error) {
	tenant, err := s.repo.FindByID(ctx, tenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup tenant")
	}
	if tenant == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tenant not found")
	}
	if tenant.ApartmentID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "tenant is not in your properties")
	}
	if _, err := s.ownedApartment(ctx, landlordID, *tenant.ApartmentID); err != nil {
		return nil, err
	}
	return tenant, nil
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
