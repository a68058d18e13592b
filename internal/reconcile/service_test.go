package reconcile

import (
	"bytes"
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
	"github.com/jkariuki/nyumbani-backend/pkg/logger"
)

type stubApartmentRepo struct {
	apartment *models.Apartment
	err       error
}

func (s *stubApartmentRepo) FindByReference(_ context.Context, _ string) (*models.Apartment, error) {
	return s.apartment, s.err
}

type stubTenantRepo struct {
	tenant *models.Tenant
	err    error
}

func (s *stubTenantRepo) FindActiveByApartment(_ context.Context, _ uuid.UUID) (*models.Tenant, error) {
	return s.tenant, s.err
}

type stubPaymentRepo struct {
	existing  *models.Payment
	createErr error
	created   []*models.Payment
}

func (s *stubPaymentRepo) FindByTransactionID(_ context.Context, _ string) (*models.Payment, error) {
	return s.existing, nil
}

func (s *stubPaymentRepo) CreateWithTx(_ *gorm.DB, payment *models.Payment) error {
	if s.createErr != nil {
		return s.createErr
	}
	payment.ID = uuid.New()
	s.created = append(s.created, payment)
	return nil
}

type stubInvoiceRepo struct {
	pending   *models.Invoice
	markCalls int
	markErr   error
}

func (s *stubInvoiceRepo) MarkPaidByTenantMonthWithTx(_ *gorm.DB, _ uuid.UUID, _ string, paymentID uuid.UUID) (bool, error) {
	s.markCalls++
	if s.markErr != nil {
		return false, s.markErr
	}
	if s.pending == nil || s.pending.Status != enums.InvoiceStatusPending {
		return false, nil
	}
	id := paymentID
	s.pending.Status = enums.InvoiceStatusPaid
	s.pending.PaymentID = &id
	return true, nil
}

type stubTxRunner struct {
	err error
}

func (s *stubTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	if err := fn(nil); err != nil {
		return err
	}
	return s.err
}

type stubNotifier struct {
	confirmations int
	partials      int
	err           error
}

func (s *stubNotifier) PaymentConfirmation(_ context.Context, _ *models.Payment, _ *models.Tenant, _ *models.Apartment) error {
	s.confirmations++
	return s.err
}

func (s *stubNotifier) PartialPaymentNotice(_ context.Context, _ *models.Payment, _ *models.Tenant, _ *models.Apartment) error {
	s.partials++
	return s.err
}

type engineFixture struct {
	service    *Service
	apartments *stubApartmentRepo
	tenants    *stubTenantRepo
	payments   *stubPaymentRepo
	invoices   *stubInvoiceRepo
	notifier   *stubNotifier
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	apartmentID := uuid.New()
	tenantID := uuid.New()

	fix := &engineFixture{
		apartments: &stubApartmentRepo{apartment: &models.Apartment{
			ID:         apartmentID,
			Reference:  "APT-3B",
			RentAmount: decimal.NewFromInt(25000),
		}},
		tenants: &stubTenantRepo{tenant: &models.Tenant{
			ID:          tenantID,
			Name:        "Wanjiku Kamau",
			Phone:       "+254712345678",
			MonthlyRent: decimal.NewFromInt(25000),
			Status:      enums.TenantStatusActive,
		}},
		payments: &stubPaymentRepo{},
		invoices: &stubInvoiceRepo{},
		notifier: &stubNotifier{},
	}

	service, err := NewService(ServiceParams{
		ApartmentRepo:     fix.apartments,
		TenantRepo:        fix.tenants,
		PaymentRepo:       fix.payments,
		InvoiceRepo:       fix.invoices,
		TransactionRunner: &stubTxRunner{},
		Notifier:          fix.notifier,
		Logger:            logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	require.NoError(t, err)

	service.now = func() time.Time {
		return time.Date(2025, 7, 20, 12, 0, 0, 0, time.UTC)
	}
	service.dispatch = func(fn func()) { fn() }

	fix.service = service
	return fix
}

func newEvent() *PaymentEvent {
	return &PaymentEvent{
		TransactionID: "TGH7YUXK1M",
		BillReference: "APT-3B",
		Amount:        decimal.NewFromInt(25000),
		Phone:         "254712345678",
		TransTime:     "20250715103045",
		PayerName:     "WANJIKU KAMAU",
	}
}

func TestProcessRecordsFullPayment(t *testing.T) {
	fix := newEngineFixture(t)

	result, err := fix.service.Process(context.Background(), newEvent())
	require.NoError(t, err)

	assert.Equal(t, OutcomeRecorded, result.Outcome)
	require.NotNil(t, result.Payment)
	assert.Equal(t, enums.PaymentStatusCompleted, result.Payment.Status)
	require.NotNil(t, result.Payment.TenantID)
	assert.Equal(t, fix.tenants.tenant.ID, *result.Payment.TenantID)
	assert.Equal(t, "2025-07", result.Payment.MonthPaidFor)
	assert.Equal(t, time.Date(2025, 7, 15, 10, 30, 45, 0, time.UTC), result.Payment.PaymentDate)
	require.NotNil(t, result.Payment.PhoneNumber)
	assert.Equal(t, "+254712345678", *result.Payment.PhoneNumber)

	require.Len(t, fix.payments.created, 1)
	assert.Equal(t, 1, fix.notifier.confirmations)
	assert.Equal(t, 0, fix.notifier.partials)
}

func TestProcessAmountEqualToRentIsCompleted(t *testing.T) {
	fix := newEngineFixture(t)
	fix.tenants.tenant.MonthlyRent = decimal.RequireFromString("25000.00")

	event := newEvent()
	event.Amount = decimal.NewFromInt(25000)

	result, err := fix.service.Process(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusCompleted, result.Payment.Status)
}

func TestProcessUnderpaymentIsPartial(t *testing.T) {
	fix := newEngineFixture(t)

	event := newEvent()
	event.Amount = decimal.NewFromInt(15000)

	result, err := fix.service.Process(context.Background(), event)
	require.NoError(t, err)

	assert.Equal(t, OutcomeRecorded, result.Outcome)
	assert.Equal(t, enums.PaymentStatusPartial, result.Payment.Status)

	// Partial payments never touch invoices.
	assert.Equal(t, 0, fix.invoices.markCalls)

	assert.Equal(t, 0, fix.notifier.confirmations)
	assert.Equal(t, 1, fix.notifier.partials)
}

func TestProcessVacantApartmentRecordsPending(t *testing.T) {
	fix := newEngineFixture(t)
	fix.tenants.tenant = nil

	result, err := fix.service.Process(context.Background(), newEvent())
	require.NoError(t, err)

	assert.Equal(t, OutcomeRecorded, result.Outcome)
	assert.Equal(t, enums.PaymentStatusPending, result.Payment.Status)
	assert.Nil(t, result.Payment.TenantID)

	// No tenant, no one to text.
	assert.Equal(t, 0, fix.notifier.confirmations)
	assert.Equal(t, 0, fix.notifier.partials)
}

func TestProcessUnknownReferenceDiscards(t *testing.T) {
	fix := newEngineFixture(t)
	fix.apartments.apartment = nil

	result, err := fix.service.Process(context.Background(), newEvent())
	require.NoError(t, err)

	assert.Equal(t, OutcomeUnresolved, result.Outcome)
	assert.Nil(t, result.Payment)
	assert.Empty(t, fix.payments.created)
	assert.Equal(t, 0, fix.notifier.confirmations)
}

func TestProcessDuplicateTransactionIgnored(t *testing.T) {
	fix := newEngineFixture(t)
	fix.payments.existing = &models.Payment{TransactionID: "TGH7YUXK1M"}

	result, err := fix.service.Process(context.Background(), newEvent())
	require.NoError(t, err)

	assert.Equal(t, OutcomeDuplicate, result.Outcome)
	assert.Empty(t, fix.payments.created)
	assert.Equal(t, 0, fix.notifier.confirmations)
}

func TestProcessInsertRaceReportsDuplicate(t *testing.T) {
	fix := newEngineFixture(t)
	fix.payments.createErr = errors.New(`ERROR: duplicate key value violates unique constraint "idx_payments_transaction_id" (SQLSTATE 23505)`)

	result, err := fix.service.Process(context.Background(), newEvent())
	require.NoError(t, err)

	assert.Equal(t, OutcomeDuplicate, result.Outcome)
	assert.Equal(t, 0, fix.notifier.confirmations)
}

func TestProcessLinksPendingInvoiceOnFullPayment(t *testing.T) {
	fix := newEngineFixture(t)
	fix.invoices.pending = &models.Invoice{
		ID:        uuid.New(),
		MonthYear: "2025-07",
		Status:    enums.InvoiceStatusPending,
	}

	result, err := fix.service.Process(context.Background(), newEvent())
	require.NoError(t, err)

	assert.Equal(t, enums.InvoiceStatusPaid, fix.invoices.pending.Status)
	require.NotNil(t, fix.invoices.pending.PaymentID)
	assert.Equal(t, result.Payment.ID, *fix.invoices.pending.PaymentID)
}

func TestProcessSecondReceiptKeepsInvoiceLink(t *testing.T) {
	fix := newEngineFixture(t)
	fix.invoices.pending = &models.Invoice{
		ID:        uuid.New(),
		MonthYear: "2025-07",
		Status:    enums.InvoiceStatusPending,
	}

	first, err := fix.service.Process(context.Background(), newEvent())
	require.NoError(t, err)

	// A second full payment for the same tenant and month under a fresh
	// receipt clears the transaction-id constraint but must not steal the
	// settled invoice's link.
	second := newEvent()
	second.TransactionID = "TGH8ZPQR2N"
	result, err := fix.service.Process(context.Background(), second)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRecorded, result.Outcome)

	require.Len(t, fix.payments.created, 2)
	assert.Equal(t, 2, fix.invoices.markCalls)
	assert.Equal(t, enums.InvoiceStatusPaid, fix.invoices.pending.Status)
	require.NotNil(t, fix.invoices.pending.PaymentID)
	assert.Equal(t, first.Payment.ID, *fix.invoices.pending.PaymentID)
}

func TestProcessNoPendingInvoiceIsFine(t *testing.T) {
	fix := newEngineFixture(t)
	fix.invoices.pending = nil

	result, err := fix.service.Process(context.Background(), newEvent())
	require.NoError(t, err)

	assert.Equal(t, OutcomeRecorded, result.Outcome)
	assert.Equal(t, 1, fix.invoices.markCalls)
}

func TestProcessInvoiceUpdateFailureFailsTransaction(t *testing.T) {
	fix := newEngineFixture(t)
	fix.invoices.pending = &models.Invoice{ID: uuid.New(), Status: enums.InvoiceStatusPending}
	fix.invoices.markErr = errors.New("write timeout")

	_, err := fix.service.Process(context.Background(), newEvent())
	require.Error(t, err)
	assert.Equal(t, 0, fix.notifier.confirmations)
}

func TestProcessUnparseableTransTimeFallsBack(t *testing.T) {
	fix := newEngineFixture(t)

	event := newEvent()
	event.TransTime = "not-a-timestamp"

	result, err := fix.service.Process(context.Background(), event)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 7, 20, 12, 0, 0, 0, time.UTC), result.Payment.PaymentDate)
	assert.Equal(t, "2025-07", result.Payment.MonthPaidFor)
}

func TestProcessUnparseableTransTimeWarnsWithEventFields(t *testing.T) {
	fix := newEngineFixture(t)
	var logs bytes.Buffer
	fix.service.logger = logger.New(logger.Options{ServiceName: "test", Output: &logs})

	event := newEvent()
	event.TransTime = "not-a-timestamp"

	_, err := fix.service.Process(context.Background(), event)
	require.NoError(t, err)

	out := logs.String()
	assert.Contains(t, out, "unparseable transaction time")
	assert.Contains(t, out, `"transaction_id":"TGH7YUXK1M"`)
	assert.Contains(t, out, `"apartment_ref":"APT-3B"`)
}

func TestProcessMissingFieldsRejected(t *testing.T) {
	fix := newEngineFixture(t)

	event := newEvent()
	event.TransactionID = "   "
	_, err := fix.service.Process(context.Background(), event)
	require.Error(t, err)

	event = newEvent()
	event.BillReference = ""
	_, err = fix.service.Process(context.Background(), event)
	require.Error(t, err)

	event = newEvent()
	event.Amount = decimal.Zero
	_, err = fix.service.Process(context.Background(), event)
	require.Error(t, err)
}

func TestProcessNotificationFailureDoesNotUnwindPayment(t *testing.T) {
	fix := newEngineFixture(t)
	fix.notifier.err = errors.New("sms gateway unavailable")

	result, err := fix.service.Process(context.Background(), newEvent())
	require.NoError(t, err)
	assert.Equal(t, OutcomeRecorded, result.Outcome)
	require.Len(t, fix.payments.created, 1)
}

func TestProcessStoresRawPhoneWhenUnnormalizable(t *testing.T) {
	fix := newEngineFixture(t)

	event := newEvent()
	event.Phone = "12345"

	result, err := fix.service.Process(context.Background(), event)
	require.NoError(t, err)
	require.NotNil(t, result.Payment.PhoneNumber)
	assert.Equal(t, "12345", *result.Payment.PhoneNumber)
}
