package tenants

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/jkariuki/nyumbani-backend/pkg/db/models"
	"github.com/jkariuki/nyumbani-backend/pkg/enums"
	pkgerrors "github.com/jkariuki/nyumbani-backend/pkg/errors"
	"github.com/jkariuki/nyumbani-backend/pkg/logger"
)

type stubTenantRepo struct {
	byID      map[uuid.UUID]*models.Tenant
	active    map[uuid.UUID]*models.Tenant
	createErr error
	created   []*models.Tenant
}

func newStubTenantRepo() *stubTenantRepo {
	return &stubTenantRepo{
		byID:   map[uuid.UUID]*models.Tenant{},
		active: map[uuid.UUID]*models.Tenant{},
	}
}

func (s *stubTenantRepo) CreateWithTx(_ *gorm.DB, tenant *models.Tenant) error {
	if s.createErr != nil {
		return s.createErr
	}
	tenant.ID = uuid.New()
	s.byID[tenant.ID] = tenant
	s.created = append(s.created, tenant)
	return nil
}

func (s *stubTenantRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Tenant, error) {
	return s.byID[id], nil
}

func (s *stubTenantRepo) FindActiveByApartment(_ context.Context, apartmentID uuid.UUID) (*models.Tenant, error) {
	return s.active[apartmentID], nil
}

func (s *stubTenantRepo) FindByLandlord(_ context.Context, _ uuid.UUID) ([]*models.Tenant, error) {
	out := make([]*models.Tenant, 0, len(s.byID))
	for _, tenant := range s.byID {
		out = append(out, tenant)
	}
	return out, nil
}

func (s *stubTenantRepo) Update(_ context.Context, tenant *models.Tenant) error {
	s.byID[tenant.ID] = tenant
	return nil
}

func (s *stubTenantRepo) UpdateWithTx(_ *gorm.DB, tenant *models.Tenant) error {
	s.byID[tenant.ID] = tenant
	return nil
}

type stubApartmentRepo struct {
	byID     map[uuid.UUID]*models.Apartment
	statuses map[uuid.UUID]enums.ApartmentStatus
}

func (s *stubApartmentRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Apartment, error) {
	return s.byID[id], nil
}

func (s *stubApartmentRepo) UpdateStatusWithTx(_ *gorm.DB, id uuid.UUID, status enums.ApartmentStatus) error {
	s.statuses[id] = status
	return nil
}

type stubPropertyRepo struct {
	byID map[uuid.UUID]*models.Property
}

func (s *stubPropertyRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Property, error) {
	return s.byID[id], nil
}

type stubTxRunner struct{}

func (s *stubTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fixture struct {
	service    *Service
	repo       *stubTenantRepo
	apartments *stubApartmentRepo
	landlordID uuid.UUID
	apartment  *models.Apartment
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	landlordID := uuid.New()
	property := &models.Property{ID: uuid.New(), LandlordID: landlordID, Name: "Sunrise Heights"}
	apartment := &models.Apartment{
		ID:         uuid.New(),
		PropertyID: property.ID,
		Reference:  "A12",
		RentAmount: decimal.NewFromInt(25000),
		Status:     enums.ApartmentStatusVacant,
	}

	repo := newStubTenantRepo()
	apartments := &stubApartmentRepo{
		byID:     map[uuid.UUID]*models.Apartment{apartment.ID: apartment},
		statuses: map[uuid.UUID]enums.ApartmentStatus{},
	}

	service, err := NewService(ServiceParams{
		Repo:              repo,
		ApartmentRepo:     apartments,
		PropertyRepo:      &stubPropertyRepo{byID: map[uuid.UUID]*models.Property{property.ID: property}},
		TransactionRunner: &stubTxRunner{},
		Logger:            logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	require.NoError(t, err)

	return &fixture{
		service:    service,
		repo:       repo,
		apartments: apartments,
		landlordID: landlordID,
		apartment:  apartment,
	}
}

func validInput(apartmentID uuid.UUID) CreateTenantInput {
	return CreateTenantInput{
		ApartmentID:    apartmentID,
		Name:           "Wanjiku Kamau",
		Email:          "Wanjiku@Example.com",
		Phone:          "0712345678",
		LeaseStartDate: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreateTenantLeasesVacantApartment(t *testing.T) {
	fix := newFixture(t)

	tenant, err := fix.service.Create(context.Background(), fix.landlordID, validInput(fix.apartment.ID))
	require.NoError(t, err)

	assert.Equal(t, "+254712345678", tenant.Phone)
	assert.Equal(t, "wanjiku@example.com", tenant.Email)
	assert.Equal(t, enums.TenantStatusActive, tenant.Status)

	// Rent denormalized from the apartment at lease time.
	assert.True(t, tenant.MonthlyRent.Equal(decimal.NewFromInt(25000)))

	assert.Equal(t, enums.ApartmentStatusOccupied, fix.apartments.statuses[fix.apartment.ID])
}

func TestCreateTenantRentOverride(t *testing.T) {
	fix := newFixture(t)

	input := validInput(fix.apartment.ID)
	rent := decimal.NewFromInt(22000)
	input.MonthlyRent = &rent

	tenant, err := fix.service.Create(context.Background(), fix.landlordID, input)
	require.NoError(t, err)
	assert.True(t, tenant.MonthlyRent.Equal(rent))
}

func TestCreateTenantOccupiedApartmentRefused(t *testing.T) {
	fix := newFixture(t)
	fix.repo.active[fix.apartment.ID] = &models.Tenant{ID: uuid.New()}

	_, err := fix.service.Create(context.Background(), fix.landlordID, validInput(fix.apartment.ID))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
}

func TestCreateTenantInsertRaceReportsStateConflict(t *testing.T) {
	fix := newFixture(t)
	fix.repo.createErr = errors.New(`ERROR: duplicate key value violates unique constraint "idx_tenants_active_apartment" (SQLSTATE 23505)`)

	_, err := fix.service.Create(context.Background(), fix.landlordID, validInput(fix.apartment.ID))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
}

func TestCreateTenantInvalidPhone(t *testing.T) {
	fix := newFixture(t)

	input := validInput(fix.apartment.ID)
	input.Phone = "12345"

	_, err := fix.service.Create(context.Background(), fix.landlordID, input)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestCreateTenantForeignApartment(t *testing.T) {
	fix := newFixture(t)

	_, err := fix.service.Create(context.Background(), uuid.New(), validInput(fix.apartment.ID))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.As(err).Code())
}

func TestUpdateTenantCannotSetFormer(t *testing.T) {
	fix := newFixture(t)
	tenant, err := fix.service.Create(context.Background(), fix.landlordID, validInput(fix.apartment.ID))
	require.NoError(t, err)

	former := "former"
	_, err = fix.service.Update(context.Background(), fix.landlordID, tenant.ID, UpdateTenantInput{Status: &former})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
}

func TestEndLeaseVacatesApartment(t *testing.T) {
	fix := newFixture(t)
	tenant, err := fix.service.Create(context.Background(), fix.landlordID, validInput(fix.apartment.ID))
	require.NoError(t, err)

	endDate := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	ended, err := fix.service.EndLease(context.Background(), fix.landlordID, tenant.ID, endDate)
	require.NoError(t, err)

	assert.Equal(t, enums.TenantStatusFormer, ended.Status)
	require.NotNil(t, ended.LeaseEndDate)
	assert.Equal(t, endDate, *ended.LeaseEndDate)
	assert.Equal(t, enums.ApartmentStatusVacant, fix.apartments.statuses[fix.apartment.ID])
}

func TestEndLeaseTwiceRefused(t *testing.T) {
	fix := newFixture(t)
	tenant, err := fix.service.Create(context.Background(), fix.landlordID, validInput(fix.apartment.ID))
	require.NoError(t, err)

	_, err = fix.service.EndLease(context.Background(), fix.landlordID, tenant.ID, time.Time{})
	require.NoError(t, err)

	_, err = fix.service.EndLease(context.Background(), fix.landlordID, tenant.ID, time.Time{})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
}
