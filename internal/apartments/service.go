package apartments

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jkariuki/nyumbani-backend/pkg/db"
	"github.com/jkariuki/nyumbani-backend/pkg/db/models"
	"github.com/jkariuki/nyumbani-backend/pkg/enums"
	pkgerrors "github.com/jkariuki/nyumbani-backend/pkg/errors"
	"github.com/jkariuki/nyumbani-backend/pkg/logger"
)

const referenceConstraint = "idx_apartments_reference"

type apartmentRepository interface {
	Create(ctx context.Context, apartment *models.Apartment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Apartment, error)
	FindByReference(ctx context.Context, reference string) (*models.Apartment, error)
	FindByProperty(ctx context.Context, propertyID uuid.UUID, status *enums.ApartmentStatus) ([]*models.Apartment, error)
	Update(ctx context.Context, apartment *models.Apartment) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type propertyRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Property, error)
}

type CreateApartmentInput struct {
	PropertyID    uuid.UUID       `json:"property_id" validate:"required"`
	Reference     string          `json:"reference" validate:"required"`
	ApartmentType *string         `json:"apartment_type"`
	RentAmount    decimal.Decimal `json:"rent_amount" validate:"required"`
	DepositAmount decimal.Decimal `json:"deposit_amount"`
	SizeSqft      *int            `json:"size_sqft"`
	Features      *string         `json:"features"`
}

type UpdateApartmentInput struct {
	ApartmentType *string          `json:"apartment_type"`
	RentAmount    *decimal.Decimal `json:"rent_amount"`
	DepositAmount *decimal.Decimal `json:"deposit_amount"`
	SizeSqft      *int             `json:"size_sqft"`
	Features      *string          `json:"features"`
	Status        *string          `json:"status"`
}

type ServiceParams struct {
	Repo         apartmentRepository
	PropertyRepo propertyRepository
	Logger       *logger.Logger
}

type Service struct {
	repo         apartmentRepository
	propertyRepo propertyRepository
	logger       *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "apartment repo required")
	}
	if params.PropertyRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "property repo required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		repo:         params.Repo,
		propertyRepo: params.PropertyRepo,
		logger:       params.Logger,
	}, nil
}

// Create registers a unit under a landlord's property. The bill reference
// must be unique across the whole deployment so a gateway callback can
// resolve it without any other context.
func (s *Service) Create(ctx context.Context, landlordID uuid.UUID, input CreateApartmentInput) (*models.Apartment, error) {
	reference := strings.TrimSpace(input.Reference)
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference is required")
	}
	if !input.RentAmount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rent_amount must be positive")
	}
	if input.DepositAmount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "deposit_amount cannot be negative")
	}

	if _, err := s.ownedProperty(ctx, landlordID, input.PropertyID); err != nil {
		return nil, err
	}

	apartment := &models.Apartment{
		PropertyID:    input.PropertyID,
		Reference:     reference,
		ApartmentType: input.ApartmentType,
		RentAmount:    input.RentAmount,
		DepositAmount: input.DepositAmount,
		SizeSqft:      input.SizeSqft,
		Features:      input.Features,
		Status:        enums.ApartmentStatusVacant,
	}
	if err := s.repo.Create(ctx, apartment); err != nil {
		if db.IsUniqueViolation(err, referenceConstraint) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "reference already in use")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create apartment")
	}

	s.logger.Info(s.logger.WithApartment(ctx, apartment.Reference), "apartment created")
	return apartment, nil
}

// ListByProperty returns the apartments of an owned property, optionally
// narrowed to one occupancy status.
func (s *Service) ListByProperty(ctx context.Context, landlordID, propertyID uuid.UUID, status *enums.ApartmentStatus) ([]*models.Apartment, error) {
	if _, err := s.ownedProperty(ctx, landlordID, propertyID); err != nil {
		return nil, err
	}
	apartments, err := s.repo.FindByProperty(ctx, propertyID, status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list apartments")
	}
	return apartments, nil
}

// Get loads one apartment, enforcing ownership through its property.
func (s *Service) Get(ctx context.Context, landlordID, apartmentID uuid.UUID) (*models.Apartment, error) {
	return s.owned(ctx, landlordID, apartmentID)
}

func (s *Service) Update(ctx context.Context, landlordID, apartmentID uuid.UUID, input UpdateApartmentInput) (*models.Apartment, error) {
	apartment, err := s.owned(ctx, landlordID, apartmentID)
	if err != nil {
		return nil, err
	}

	if input.RentAmount != nil {
		if !input.RentAmount.IsPositive() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "rent_amount must be positive")
		}
		apartment.RentAmount = *input.RentAmount
	}
	if input.DepositAmount != nil {
		if input.DepositAmount.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "deposit_amount cannot be negative")
		}
		apartment.DepositAmount = *input.DepositAmount
	}
	if input.ApartmentType != nil {
		apartment.ApartmentType = input.ApartmentType
	}
	if input.SizeSqft != nil {
		apartment.SizeSqft = input.SizeSqft
	}
	if input.Features != nil {
		apartment.Features = input.Features
	}
	if input.Status != nil {
		status, err := enums.ParseApartmentStatus(*input.Status)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
		}
		apartment.Status = status
	}

	if err := s.repo.Update(ctx, apartment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update apartment")
	}
	return apartment, nil
}

// Delete removes a vacant apartment. Occupied units must be vacated first.
func (s *Service) Delete(ctx context.Context, landlordID, apartmentID uuid.UUID) error {
	apartment, err := s.owned(ctx, landlordID, apartmentID)
	if err != nil {
		return err
	}
	if apartment.Status == enums.ApartmentStatusOccupied {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "apartment is occupied")
	}
	if err := s.repo.Delete(ctx, apartment.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete apartment")
	}
	return nil
}

func (s *Service) owned(ctx context.Context, landlordID, apartmentID uuid.UUID) (*models.Apartment, error) {
	apartment, err := s.repo.FindByID(ctx, apartmentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup apartment")
	}
	if apartment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "apartment not found")
	}
	if _, err := s.ownedProperty(ctx, landlordID, apartment.PropertyID); err != nil {
		return nil, err
	}
	return apartment, nil
}

func (s *Service) ownedProperty(ctx context.Context, landlordID, propertyID uuid.UUID) (*models.Property, error) {
	property, err := s.propertyRepo.FindByID(ctx, propertyID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup property")
	}
	if property == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "property not found")
	}
	if property.LandlordID != landlordID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "you do not own this property")
	}
	return property, nil
}
