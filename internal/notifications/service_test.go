package notifications

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

	"github.com/jkariuki/nyumbani-backend/pkg/config"
	"github.com/jkariuki/nyumbani-backend/pkg/db/models"
	"github.com/jkariuki/nyumbani-backend/pkg/enums"
	"github.com/jkariuki/nyumbani-backend/pkg/logger"
)

type sentMessage struct {
	Phone   string
	Message string
}

type stubSender struct {
	sent []sentMessage
	err  error
}

func (s *stubSender) Send(_ context.Context, phone, message string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentMessage{Phone: phone, Message: message})
	return nil
}

type stubTenantRepo struct {
	byID     map[uuid.UUID]*models.Tenant
	active   []*models.Tenant
	byIDsErr error
}

func (s *stubTenantRepo) FindByIDs(_ context.Context, ids []uuid.UUID) ([]*models.Tenant, error) {
	if s.byIDsErr != nil {
		return nil, s.byIDsErr
	}
	out := make([]*models.Tenant, 0, len(ids))
	for _, id := range ids {
		if tenant, ok := s.byID[id]; ok {
			out = append(out, tenant)
		}
	}
	return out, nil
}

func (s *stubTenantRepo) FindActiveByLandlord(_ context.Context, _ uuid.UUID) ([]*models.Tenant, error) {
	return s.active, nil
}

func (s *stubTenantRepo) FindActiveByProperty(_ context.Context, _ uuid.UUID) ([]*models.Tenant, error) {
	return s.active, nil
}

type stubApartmentRepo struct {
	byID map[uuid.UUID]*models.Apartment
}

func (s *stubApartmentRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Apartment, error) {
	return s.byID[id], nil
}

type stubPropertyRepo struct {
	byID       map[uuid.UUID]*models.Property
	byLandlord []*models.Property
}

func (s *stubPropertyRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Property, error) {
	return s.byID[id], nil
}

func (s *stubPropertyRepo) FindByLandlord(_ context.Context, _ uuid.UUID) ([]*models.Property, error) {
	return s.byLandlord, nil
}

type stubPaymentRepo struct {
	paid map[uuid.UUID]bool
}

func (s *stubPaymentRepo) HasCompletedPayment(_ context.Context, tenantID uuid.UUID, _ string) (bool, error) {
	return s.paid[tenantID], nil
}

type smsFixture struct {
	service    *Service
	sender     *stubSender
	tenants    *stubTenantRepo
	apartments *stubApartmentRepo
	properties *stubPropertyRepo
	payments   *stubPaymentRepo

	landlordID uuid.UUID
	property   *models.Property
	apartment  *models.Apartment
	tenant     *models.Tenant
}

func newSMSFixture(t *testing.T) *smsFixture {
	t.Helper()

	landlordID := uuid.New()
	property := &models.Property{
		ID:         uuid.New(),
		LandlordID: landlordID,
		Name:       "Sunrise Heights",
	}
	apartmentID := uuid.New()
	apartment := &models.Apartment{
		ID:         apartmentID,
		PropertyID: property.ID,
		Reference:  "A12",
		RentAmount: decimal.NewFromInt(25000),
	}
	tenant := &models.Tenant{
		ID:          uuid.New(),
		ApartmentID: &apartmentID,
		Name:        "Wanjiku Kamau",
		Phone:       "+254712345678",
		MonthlyRent: decimal.NewFromInt(25000),
		Status:      enums.TenantStatusActive,
	}

	fix := &smsFixture{
		sender: &stubSender{},
		tenants: &stubTenantRepo{
			byID:   map[uuid.UUID]*models.Tenant{tenant.ID: tenant},
			active: []*models.Tenant{tenant},
		},
		apartments: &stubApartmentRepo{byID: map[uuid.UUID]*models.Apartment{apartment.ID: apartment}},
		properties: &stubPropertyRepo{
			byID:       map[uuid.UUID]*models.Property{property.ID: property},
			byLandlord: []*models.Property{property},
		},
		payments:   &stubPaymentRepo{paid: map[uuid.UUID]bool{}},
		landlordID: landlordID,
		property:   property,
		apartment:  apartment,
		tenant:     tenant,
	}

	service, err := NewService(ServiceParams{
		TenantRepo:    fix.tenants,
		ApartmentRepo: fix.apartments,
		PropertyRepo:  fix.properties,
		PaymentRepo:   fix.payments,
		Sender:        fix.sender,
		Billing:       config.BillingConfig{RentDueDay: 10},
		Paybill:       "174379",
		Logger:        logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	require.NoError(t, err)

	service.now = func() time.Time {
		return time.Date(2025, 7, 20, 9, 0, 0, 0, time.UTC)
	}

	fix.service = service
	return fix
}

func TestPaymentConfirmationMessage(t *testing.T) {
	fix := newSMSFixture(t)

	payment := &models.Payment{
		Amount:        decimal.NewFromInt(25000),
		TransactionID: "TGH7YUXK1M",
	}

	err := fix.service.PaymentConfirmation(context.Background(), payment, fix.tenant, fix.apartment)
	require.NoError(t, err)

	require.Len(t, fix.sender.sent, 1)
	assert.Equal(t, "+254712345678", fix.sender.sent[0].Phone)
	assert.Equal(t,
		"Dear Wanjiku Kamau, we have received your payment of KES 25,000 for Sunrise Heights - A12. M-Pesa Ref: TGH7YUXK1M. Thank you!",
		fix.sender.sent[0].Message,
	)
}

func TestPartialPaymentNoticeIncludesBalance(t *testing.T) {
	fix := newSMSFixture(t)

	payment := &models.Payment{
		Amount:        decimal.NewFromInt(15000),
		TransactionID: "TGH7YUXK1M",
	}

	err := fix.service.PartialPaymentNotice(context.Background(), payment, fix.tenant, fix.apartment)
	require.NoError(t, err)

	require.Len(t, fix.sender.sent, 1)
	assert.Equal(t,
		"Dear Wanjiku Kamau, we received KES 15,000 for Sunrise Heights - A12. Your balance is KES 10,000 out of KES 25,000. Please pay the remaining amount soon.",
		fix.sender.sent[0].Message,
	)
}

func TestSendCustomRejectsForeignTenants(t *testing.T) {
	fix := newSMSFixture(t)

	otherApartmentID := uuid.New()
	fix.apartments.byID[otherApartmentID] = &models.Apartment{
		ID:         otherApartmentID,
		PropertyID: uuid.New(), // not one of the landlord's
		Reference:  "Z1",
	}
	outsider := &models.Tenant{
		ID:          uuid.New(),
		ApartmentID: &otherApartmentID,
		Name:        "Otieno Odhiambo",
		Phone:       "+254700000001",
	}
	fix.tenants.byID[outsider.ID] = outsider

	results, err := fix.service.SendCustom(context.Background(), fix.landlordID,
		[]uuid.UUID{fix.tenant.ID, outsider.ID}, "Water will be off on Saturday morning.")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, deliverySent, results[0].Status)
	assert.Equal(t, deliveryFailed, results[1].Status)
	assert.NotEmpty(t, results[1].Error)

	// Only the owned tenant was messaged.
	require.Len(t, fix.sender.sent, 1)
	assert.Equal(t, fix.tenant.Phone, fix.sender.sent[0].Phone)
}

func TestSendCustomRequiresMessageAndTenants(t *testing.T) {
	fix := newSMSFixture(t)

	_, err := fix.service.SendCustom(context.Background(), fix.landlordID, []uuid.UUID{fix.tenant.ID}, "")
	require.Error(t, err)

	_, err = fix.service.SendCustom(context.Background(), fix.landlordID, nil, "hello")
	require.Error(t, err)
}

func TestSendRemindersDefaultsDueDate(t *testing.T) {
	fix := newSMSFixture(t)

	results, err := fix.service.SendReminders(context.Background(), fix.landlordID,
		[]uuid.UUID{fix.tenant.ID}, time.Time{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, deliverySent, results[0].Status)

	require.Len(t, fix.sender.sent, 1)
	message := fix.sender.sent[0].Message
	assert.Contains(t, message, "due on July 10, 2025")
	assert.Contains(t, message, "Paybill 174379")
	assert.Contains(t, message, "Account: A12")
}

func TestSendBulkRemindersForeignPropertyForbidden(t *testing.T) {
	fix := newSMSFixture(t)

	foreign := &models.Property{ID: uuid.New(), LandlordID: uuid.New(), Name: "Elsewhere Court"}
	fix.properties.byID[foreign.ID] = foreign

	_, err := fix.service.SendBulkReminders(context.Background(), fix.landlordID, &foreign.ID, time.Time{})
	require.Error(t, err)
	assert.Empty(t, fix.sender.sent)
}

func TestSendBulkRemindersAllProperties(t *testing.T) {
	fix := newSMSFixture(t)

	results, err := fix.service.SendBulkReminders(context.Background(), fix.landlordID, nil, time.Time{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, deliverySent, results[0].Status)
}

func TestSendOverdueNoticesSkipsPaidTenants(t *testing.T) {
	fix := newSMSFixture(t)
	fix.payments.paid[fix.tenant.ID] = true

	results, err := fix.service.SendOverdueNotices(context.Background(), fix.landlordID)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, fix.sender.sent)
}

func TestSendOverdueNoticesComputesDaysOverdue(t *testing.T) {
	fix := newSMSFixture(t)

	results, err := fix.service.SendOverdueNotices(context.Background(), fix.landlordID)
	require.NoError(t, err)
	require.Len(t, results, 1)

	require.Len(t, fix.sender.sent, 1)
	assert.Contains(t, fix.sender.sent[0].Message, "10 days overdue")
	assert.Contains(t, fix.sender.sent[0].Message, "Paybill 174379")
}

func TestSendOverdueNoticesBeforeDueDayDoesNothing(t *testing.T) {
	fix := newSMSFixture(t)
	fix.service.now = func() time.Time {
		return time.Date(2025, 7, 5, 9, 0, 0, 0, time.UTC)
	}

	results, err := fix.service.SendOverdueNotices(context.Background(), fix.landlordID)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDeliveryFailureReported(t *testing.T) {
	fix := newSMSFixture(t)
	fix.sender.err = errors.New("gateway unavailable")

	results, err := fix.service.SendCustom(context.Background(), fix.landlordID,
		[]uuid.UUID{fix.tenant.ID}, "hello")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, deliveryFailed, results[0].Status)
	assert.Contains(t, results[0].Error, "gateway unavailable")
}

func TestFormatKES(t *testing.T) {
	cases := map[string]string{
		"0":        "0",
		"950":      "950",
		"25000":    "25,000",
		"25000.49": "25,000",
		"1250000":  "1,250,000",
	}
	for input, want := range cases {
		got := formatKES(decimal.RequireFromString(input))
		assert.Equal(t, want, got, "input %s", input)
	}
}
