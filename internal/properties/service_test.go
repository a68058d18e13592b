package properties

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jkariuki/nyumbani-backend/pkg/db/models"
	"github.com/jkariuki/nyumbani-backend/pkg/enums"
	pkgerrors "github.com/jkariuki/nyumbani-backend/pkg/errors"
	"github.com/jkariuki/nyumbani-backend/pkg/logger"
)

type stubRepo struct {
	byID       map[uuid.UUID]*models.Property
	byLandlord []*models.Property
	counts     map[uuid.UUID][2]int64
	deleted    []uuid.UUID
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		byID:   map[uuid.UUID]*models.Property{},
		counts: map[uuid.UUID][2]int64{},
	}
}

func (s *stubRepo) Create(_ context.Context, property *models.Property) error {
	property.ID = uuid.New()
	s.byID[property.ID] = property
	return nil
}

func (s *stubRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Property, error) {
	return s.byID[id], nil
}

func (s *stubRepo) FindByLandlord(_ context.Context, _ uuid.UUID) ([]*models.Property, error) {
	return s.byLandlord, nil
}

func (s *stubRepo) Update(_ context.Context, property *models.Property) error {
	s.byID[property.ID] = property
	return nil
}

func (s *stubRepo) Delete(_ context.Context, id uuid.UUID) error {
	s.deleted = append(s.deleted, id)
	delete(s.byID, id)
	return nil
}

func (s *stubRepo) CountApartments(_ context.Context, propertyID uuid.UUID) (int64, int64, error) {
	counts := s.counts[propertyID]
	return counts[0], counts[1], nil
}

func newTestService(t *testing.T, repo *stubRepo) *Service {
	t.Helper()
	service, err := NewService(ServiceParams{
		Repo:   repo,
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	require.NoError(t, err)
	return service
}

func TestCreateProperty(t *testing.T) {
	repo := newStubRepo()
	service := newTestService(t, repo)
	landlordID := uuid.New()

	property, err := service.Create(context.Background(), landlordID, CreatePropertyInput{
		Name:       "  Sunrise Heights  ",
		Address:    "Ngong Road, Nairobi",
		TotalUnits: 12,
	})
	require.NoError(t, err)

	assert.Equal(t, "Sunrise Heights", property.Name)
	assert.Equal(t, landlordID, property.LandlordID)
	assert.Equal(t, enums.PropertyStatusActive, property.Status)
}

func TestCreatePropertyRequiresNameAndAddress(t *testing.T) {
	service := newTestService(t, newStubRepo())

	_, err := service.Create(context.Background(), uuid.New(), CreatePropertyInput{Address: "x"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = service.Create(context.Background(), uuid.New(), CreatePropertyInput{Name: "x"})
	require.Error(t, err)
}

func TestListIncludesOccupancyCounts(t *testing.T) {
	repo := newStubRepo()
	landlordID := uuid.New()
	property := &models.Property{ID: uuid.New(), LandlordID: landlordID, Name: "Sunrise"}
	repo.byLandlord = []*models.Property{property}
	repo.counts[property.ID] = [2]int64{10, 7}

	service := newTestService(t, repo)

	views, err := service.List(context.Background(), landlordID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, int64(10), views[0].ApartmentCount)
	assert.Equal(t, int64(7), views[0].OccupiedCount)
	assert.Equal(t, int64(3), views[0].VacantCount)
}

func TestGetForeignPropertyForbidden(t *testing.T) {
	repo := newStubRepo()
	property := &models.Property{ID: uuid.New(), LandlordID: uuid.New(), Name: "Elsewhere"}
	repo.byID[property.ID] = property

	service := newTestService(t, repo)

	_, err := service.Get(context.Background(), uuid.New(), property.ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.As(err).Code())
}

func TestGetMissingPropertyNotFound(t *testing.T) {
	service := newTestService(t, newStubRepo())

	_, err := service.Get(context.Background(), uuid.New(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestUpdatePropertyStatus(t *testing.T) {
	repo := newStubRepo()
	landlordID := uuid.New()
	property := &models.Property{ID: uuid.New(), LandlordID: landlordID, Name: "Sunrise", Status: enums.PropertyStatusActive}
	repo.byID[property.ID] = property

	service := newTestService(t, repo)

	status := "inactive"
	updated, err := service.Update(context.Background(), landlordID, property.ID, UpdatePropertyInput{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, enums.PropertyStatusInactive, updated.Status)

	bad := "demolished"
	_, err = service.Update(context.Background(), landlordID, property.ID, UpdatePropertyInput{Status: &bad})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestDeletePropertyWithApartmentsRefused(t *testing.T) {
	repo := newStubRepo()
	landlordID := uuid.New()
	property := &models.Property{ID: uuid.New(), LandlordID: landlordID, Name: "Sunrise"}
	repo.byID[property.ID] = property
	repo.counts[property.ID] = [2]int64{4, 2}

	service := newTestService(t, repo)

	err := service.Delete(context.Background(), landlordID, property.ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
	assert.Empty(t, repo.deleted)
}

func TestDeleteEmptyProperty(t *testing.T) {
	repo := newStubRepo()
	landlordID := uuid.New()
	property := &models.Property{ID: uuid.New(), LandlordID: landlordID, Name: "Sunrise"}
	repo.byID[property.ID] = property

	service := newTestService(t, repo)

	require.NoError(t, service.Delete(context.Background(), landlordID, property.ID))
	assert.Equal(t, []uuid.UUID{property.ID}, repo.deleted)
}
