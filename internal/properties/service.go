package properties

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/jkariuki/nyumbani-backend/pkg/db/models"
	"github.com/jkariuki/nyumbani-backend/pkg/enums"
	pkgerrors "github.com/jkariuki/nyumbani-backend/pkg/errors"
	"github.com/jkariuki/nyumbani-backend/pkg/logger"
)

type propertyRepository interface {
	Create(ctx context.Context, property *models.Property) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Property, error)
	FindByLandlord(ctx context.Context, landlordID uuid.UUID) ([]*models.Property, error)
	Update(ctx context.Context, property *models.Property) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountApartments(ctx context.Context, propertyID uuid.UUID) (int64, int64, error)
}

type CreatePropertyInput struct {
	Name       string  `json:"name" validate:"required"`
	Address    string  `json:"address" validate:"required"`
	City       *string `json:"city"`
	TotalUnits int     `json:"total_units" validate:"gte=0"`
}

type UpdatePropertyInput struct {
	Name       *string `json:"name"`
	Address    *string `json:"address"`
	City       *string `json:"city"`
	TotalUnits *int    `json:"total_units"`
	Status     *string `json:"status"`
}

// PropertyView is a property plus its live occupancy counts.
type PropertyView struct {
	models.Property
	ApartmentCount int64 `json:"apartment_count"`
	OccupiedCount  int64 `json:"occupied_count"`
	VacantCount    int64 `json:"vacant_count"`
}

type ServiceParams struct {
	Repo   propertyRepository
	Logger *logger.Logger
}

type Service struct {
	repo   propertyRepository
	logger *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "property repo required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{repo: params.Repo, logger: params.Logger}, nil
}

func (s *Service) Create(ctx context.Context, landlordID uuid.UUID, input CreatePropertyInput) (*models.Property, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	address := strings.TrimSpace(input.Address)
	if address == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address is required")
	}

	property := &models.Property{
		LandlordID: landlordID,
		Name:       name,
		Address:    address,
		City:       input.City,
		TotalUnits: input.TotalUnits,
		Status:     enums.PropertyStatusActive,
	}
	if err := s.repo.Create(ctx, property); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create property")
	}

	s.logger.Info(s.logger.WithField(ctx, "property_id", property.ID.String()), "property created")
	return property, nil
}

// List returns the landlord's properties with occupancy counts.
func (s *Service) List(ctx context.Context, landlordID uuid.UUID) ([]PropertyView, error) {
	properties, err := s.repo.FindByLandlord(ctx, landlordID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list properties")
	}

	views := make([]PropertyView, 0, len(properties))
	for _, property := range properties {
		total, occupied, err := s.repo.CountApartments(ctx, property.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count apartments")
		}
		views = append(views, PropertyView{
			Property:       *property,
			ApartmentCount: total,
			OccupiedCount:  occupied,
			VacantCount:    total - occupied,
		})
	}
	return views, nil
}

// Get loads one property, enforcing landlord ownership.
func (s *Service) Get(ctx context.Context, landlordID, propertyID uuid.UUID) (*PropertyView, error) {
	property, err := s.owned(ctx, landlordID, propertyID)
	if err != nil {
		return nil, err
	}
	total, occupied, err := s.repo.CountApartments(ctx, property.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count apartments")
	}
	return &PropertyView{
		Property:       *property,
		ApartmentCount: total,
		OccupiedCount:  occupied,
		VacantCount:    total - occupied,
	}, nil
}

func (s *Service) Update(ctx context.Context, landlordID, propertyID uuid.UUID, input UpdatePropertyInput) (*models.Property, error) {
	property, err := s.owned(ctx, landlordID, propertyID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
		}
		property.Name = name
	}
	if input.Address != nil {
		address := strings.TrimSpace(*input.Address)
		if address == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "address cannot be empty")
		}
		property.Address = address
	}
	if input.City != nil {
		property.City = input.City
	}
	if input.TotalUnits != nil {
		if *input.TotalUnits < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "total_units cannot be negative")
		}
		property.TotalUnits = *input.TotalUnits
	}
	if input.Status != nil {
		status, err := enums.ParsePropertyStatus(*input.Status)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
		}
		property.Status = status
	}

	if err := s.repo.Update(ctx, property); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update property")
	}
	return property, nil
}

// Delete removes a property with no remaining apartments.
func (s *Service) Delete(ctx context.Context, landlordID, propertyID uuid.UUID) error {
	property, err := s.owned(ctx, landlordID, propertyID)
	if err != nil {
		return err
	}

	total, _, err := s.repo.CountApartments(ctx, property.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count apartments")
	}
	if total > 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "property still has apartments")
	}

	if err := s.repo.Delete(ctx, property.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete property")
	}
	return nil
}

func (s *Service) owned(ctx context.Context, landlordID, propertyID uuid.UUID) (*models.Property, error) {
	property, err := s.repo.FindByID(ctx, propertyID)
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
