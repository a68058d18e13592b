package apartments

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jkariuki/nyumbani-backend/pkg/db/models"
	"github.com/jkariuki/nyumbani-backend/pkg/enums"
	pkgerrors "github.com/jkariuki/nyumbani-backend/pkg/errors"
	"github.com/jkariuki/nyumbani-backend/pkg/logger"
)

type stubRepo struct {
	byID       map[uuid.UUID]*models.Apartment
	byProperty []*models.Apartment
	createErr  error
	deleted    []uuid.UUID
}

func newStubRepo() *stubRepo {
	return &stubRepo{byID: map[uuid.UUID]*models.Apartment{}}
}

func (s *stubRepo) Create(_ context.Context, apartment *models.Apartment) error {
	if s.createErr != nil {
		return s.createErr
	}
	apartment.ID = uuid.New()
	s.byID[apartment.ID] = apartment
	return nil
}

func (s *stubRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Apartment, error) {
	return s.byID[id], nil
}

func (s *stubRepo) FindByReference(_ context.Context, reference string) (*models.Apartment, error) {
	for _, apartment := range s.byID {
		if apartment.Reference == reference {
			return apartment, nil
		}
	}
	return nil, nil
}

func (s *stubRepo) FindByProperty(_ context.Context, _ uuid.UUID, status *enums.ApartmentStatus) ([]*models.Apartment, error) {
	if status == nil {
		return s.byProperty, nil
	}
	var matched []*models.Apartment
	for _, apartment := range s.byProperty {
		if apartment.Status == *status {
			matched = append(matched, apartment)
		}
	}
	return matched, nil
}

func (s *stubRepo) Update(_ context.Context, apartment *models.Apartment) error {
	s.byID[apartment.ID] = apartment
	return nil
}

func (s *stubRepo) Delete(_ context.Context, id uuid.UUID) error {
	s.deleted = append(s.deleted, id)
	delete(s.byID, id)
	return nil
}

type stubPropertyRepo struct {
	byID map[uuid.UUID]*models.Property
}

func (s *stubPropertyRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Property, error) {
	return s.byID[id], nil
}

type fixture struct {
	service    *Service
	repo       *stubRepo
	landlordID uuid.UUID
	property   *models.Property
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	landlordID := uuid.New()
	property := &models.Property{ID: uuid.New(), LandlordID: landlordID, Name: "Sunrise Heights"}

	repo := newStubRepo()
	service, err := NewService(ServiceParams{
		Repo:         repo,
		PropertyRepo: &stubPropertyRepo{byID: map[uuid.UUID]*models.Property{property.ID: property}},
		Logger:       logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	require.NoError(t, err)

	return &fixture{service: service, repo: repo, landlordID: landlordID, property: property}
}

func TestCreateApartment(t *testing.T) {
	fix := newFixture(t)

	apartment, err := fix.service.Create(context.Background(), fix.landlordID, CreateApartmentInput{
		PropertyID: fix.property.ID,
		Reference:  " A12 ",
		RentAmount: decimal.NewFromInt(25000),
	})
	require.NoError(t, err)

	assert.Equal(t, "A12", apartment.Reference)
	assert.Equal(t, enums.ApartmentStatusVacant, apartment.Status)
}

func TestCreateApartmentDuplicateReference(t *testing.T) {
	fix := newFixture(t)
	fix.repo.createErr = errors.New(`ERROR: duplicate key value violates unique constraint "idx_apartments_reference" (SQLSTATE 23505)`)

	_, err := fix.service.Create(context.Background(), fix.landlordID, CreateApartmentInput{
		PropertyID: fix.property.ID,
		Reference:  "A12",
		RentAmount: decimal.NewFromInt(25000),
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())
}

func TestCreateApartmentValidation(t *testing.T) {
	fix := newFixture(t)

	_, err := fix.service.Create(context.Background(), fix.landlordID, CreateApartmentInput{
		PropertyID: fix.property.ID,
		Reference:  "",
		RentAmount: decimal.NewFromInt(25000),
	})
	require.Error(t, err)

	_, err = fix.service.Create(context.Background(), fix.landlordID, CreateApartmentInput{
		PropertyID: fix.property.ID,
		Reference:  "A12",
		RentAmount: decimal.Zero,
	})
	require.Error(t, err)
}

func TestCreateApartmentForeignProperty(t *testing.T) {
	fix := newFixture(t)

	_, err := fix.service.Create(context.Background(), uuid.New(), CreateApartmentInput{
		PropertyID: fix.property.ID,
		Reference:  "A12",
		RentAmount: decimal.NewFromInt(25000),
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.As(err).Code())
}

func TestUpdateApartmentRent(t *testing.T) {
	fix := newFixture(t)
	apartment := &models.Apartment{
		ID:         uuid.New(),
		PropertyID: fix.property.ID,
		Reference:  "A12",
		RentAmount: decimal.NewFromInt(25000),
		Status:     enums.ApartmentStatusVacant,
	}
	fix.repo.byID[apartment.ID] = apartment

	rent := decimal.NewFromInt(27000)
	updated, err := fix.service.Update(context.Background(), fix.landlordID, apartment.ID, UpdateApartmentInput{
		RentAmount: &rent,
	})
	require.NoError(t, err)
	assert.True(t, updated.RentAmount.Equal(rent))
}

func TestDeleteOccupiedApartmentRefused(t *testing.T) {
	fix := newFixture(t)
	apartment := &models.Apartment{
		ID:         uuid.New(),
		PropertyID: fix.property.ID,
		Reference:  "A12",
		Status:     enums.ApartmentStatusOccupied,
	}
	fix.repo.byID[apartment.ID] = apartment

	err := fix.service.Delete(context.Background(), fix.landlordID, apartment.ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
	assert.Empty(t, fix.repo.deleted)
}

func TestDeleteVacantApartment(t *testing.T) {
	fix := newFixture(t)
	apartment := &models.Apartment{
		ID:         uuid.New(),
		PropertyID: fix.property.ID,
		Reference:  "A12",
		Status:     enums.ApartmentStatusVacant,
	}
	fix.repo.byID[apartment.ID] = apartment

	require.NoError(t, fix.service.Delete(context.Background(), fix.landlordID, apartment.ID))
	assert.Equal(t, []uuid.UUID{apartment.ID}, fix.repo.deleted)
}
