package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jkariuki/nyumbani-backend/pkg/db"
	"github.com/jkariuki/nyumbani-backend/pkg/db/models"
	"github.com/jkariuki/nyumbani-backend/pkg/enums"
	pkgerrors "github.com/jkariuki/nyumbani-backend/pkg/errors"
	"github.com/jkariuki/nyumbani-backend/pkg/logger"
	"github.com/jkariuki/nyumbani-backend/pkg/metrics"
	"github.com/jkariuki/nyumbani-backend/pkg/mpesa"
)

const transactionIDConstraint = "idx_payments_transaction_id"

// Outcome classifies what the engine did with an event.
type Outcome string

const (
	OutcomeRecorded   Outcome = "recorded"
	OutcomeDuplicate  Outcome = "duplicate"
	OutcomeUnresolved Outcome = "unresolved"
)

// Result reports the engine's decision. Payment is set only when a row was
// recorded by this call.
type Result struct {
	Outcome Outcome
	Payment *models.Payment
}

type apartmentRepository interface {
	FindByReference(ctx context.Context, reference string) (*models.Apartment, error)
}

type tenantRepository interface {
	FindActiveByApartment(ctx context.Context, apartmentID uuid.UUID) (*models.Tenant, error)
}

type paymentRepository interface {
	FindByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error)
	CreateWithTx(tx *gorm.DB, payment *models.Payment) error
}

type invoiceRepository interface {
	MarkPaidByTenantMonthWithTx(tx *gorm.DB, tenantID uuid.UUID, monthYear string, paymentID uuid.UUID) (bool, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Notifier delivers payment messages. Implementations must be safe to call
// from a detached goroutine.
type Notifier interface {
	PaymentConfirmation(ctx context.Context, payment *models.Payment, tenant *models.Tenant, apartment *models.Apartment) error
	PartialPaymentNotice(ctx context.Context, payment *models.Payment, tenant *models.Tenant, apartment *models.Apartment) error
}

type ServiceParams struct {
	ApartmentRepo     apartmentRepository
	TenantRepo        tenantRepository
	PaymentRepo       paymentRepository
	InvoiceRepo       invoiceRepository
	TransactionRunner txRunner
	Notifier          Notifier
	Metrics           *metrics.ReconciliationMetrics
	Logger            *logger.Logger
}

// Service is the payment reconciliation engine. One call per gateway event;
// the transaction_id unique constraint is the sole mutual exclusion, so two
// racing deliveries of the same receipt both land on a single row.
type Service struct {
	apartmentRepo apartmentRepository
	tenantRepo    tenantRepository
	paymentRepo   paymentRepository
	invoiceRepo   invoiceRepository
	txRunner      txRunner
	notifier      Notifier
	metrics       *metrics.ReconciliationMetrics
	logger        *logger.Logger
	now           func() time.Time

	// dispatch runs post-commit side effects; replaced in tests to run
	// synchronously.
	dispatch func(fn func())
}

func NewService(params ServiceParams) (*Service, error) {
	if params.ApartmentRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "apartment repo required")
	}
	if params.TenantRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tenant repo required")
	}
	if params.PaymentRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment repo required")
	}
	if params.InvoiceRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "invoice repo required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		apartmentRepo: params.ApartmentRepo,
		tenantRepo:    params.TenantRepo,
		paymentRepo:   params.PaymentRepo,
		invoiceRepo:   params.InvoiceRepo,
		txRunner:      params.TransactionRunner,
		notifier:      params.Notifier,
		metrics:       params.Metrics,
		logger:        params.Logger,
		now:           time.Now,
		dispatch:      func(fn func()) { go fn() },
	}, nil
}

// Process reconciles one inbound payment event. Duplicate and unresolved
// events return a Result, not an error: the gateway must still be acked.
func (s *Service) Process(ctx context.Context, event *PaymentEvent) (*Result, error) {
	if event == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment event required")
	}
	event.Normalize()
	if event.TransactionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}
	if event.BillReference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bill reference required")
	}
	if !event.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	ctx = s.logger.WithTransactionID(ctx, event.TransactionID)
	ctx = s.logger.WithApartment(ctx, event.BillReference)

	// Cheap pre-check; the constraint below is the real guarantee.
	existing, err := s.paymentRepo.FindByTransactionID(ctx, event.TransactionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup payment")
	}
	if existing != nil {
		s.logger.Warn(ctx, "duplicate transaction ignored")
		s.metrics.IncOutcome(metrics.OutcomeDuplicate)
		return &Result{Outcome: OutcomeDuplicate}, nil
	}

	apartment, err := s.apartmentRepo.FindByReference(ctx, event.BillReference)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup apartment")
	}
	if apartment == nil {
		// Money arrived for an unknown unit. The event is discarded and the
		// operator alerted; the gateway is still acked so it stops retrying.
		s.logger.Warn(ctx, "payment received for unknown bill reference, discarding")
		s.metrics.IncOutcome(metrics.OutcomeUnresolved)
		return &Result{Outcome: OutcomeUnresolved}, nil
	}

	tenant, err := s.tenantRepo.FindActiveByApartment(ctx, apartment.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup tenant")
	}

	payment := s.buildPayment(ctx, event, apartment, tenant)

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.paymentRepo.CreateWithTx(tx, payment); err != nil {
			return err
		}
		if payment.Status == enums.PaymentStatusCompleted && tenant != nil {
			return s.linkInvoice(tx, payment, tenant.ID)
		}
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err, transactionIDConstraint) {
			// Lost the insert race to a concurrent delivery of the same
			// receipt. The winner recorded it; this is a duplicate success.
			s.logger.Warn(ctx, "duplicate transaction lost insert race")
			s.metrics.IncOutcome(metrics.OutcomeDuplicate)
			return &Result{Outcome: OutcomeDuplicate}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist payment")
	}

	s.logger.Info(ctx, "payment recorded")
	s.metrics.IncOutcome(metrics.OutcomeRecorded)

	s.notifyPostCommit(ctx, payment, tenant, apartment)

	return &Result{Outcome: OutcomeRecorded, Payment: payment}, nil
}

func (s *Service) buildPayment(ctx context.Context, event *PaymentEvent, apartment *models.Apartment, tenant *models.Tenant) *models.Payment {
	paymentDate, fellBack := event.PaymentDate(s.now())
	if fellBack {
		s.logger.Warn(ctx, "unparseable transaction time, using current time")
	}

	payment := &models.Payment{
		ApartmentID:   apartment.ID,
		TransactionID: event.TransactionID,
		Amount:        event.Amount,
		PaymentMethod: enums.PaymentMethodMpesa,
		PaymentDate:   paymentDate,
		MonthPaidFor:  paymentDate.Format("2006-01"),
		Status:        enums.PaymentStatusPending,
		RawPayload:    event.RawPayload,
	}

	if phone, err := mpesa.NormalizePhone(event.Phone); err == nil {
		formatted := "+" + phone
		payment.PhoneNumber = &formatted
	} else if event.Phone != "" {
		raw := event.Phone
		payment.PhoneNumber = &raw
	}

	if tenant != nil {
		tenantID := tenant.ID
		payment.TenantID = &tenantID
		// Classification is decided once at creation and never recomputed.
		if event.Amount.Cmp(tenant.MonthlyRent) < 0 {
			payment.Status = enums.PaymentStatusPartial
		} else {
			payment.Status = enums.PaymentStatusCompleted
		}
	}

	return payment
}

// linkInvoice settles the tenant's pending invoice for the paid month, in
// the same transaction as the payment insert. The repo write is conditional
// on the invoice still being pending, so when two distinct receipts for the
// same tenant and month race, only the first settles it and the link is
// never overwritten. A missing invoice is not an error; many tenants pay
// without one.
func (s *Service) linkInvoice(tx *gorm.DB, payment *models.Payment, tenantID uuid.UUID) error {
	_, err := s.invoiceRepo.MarkPaidByTenantMonthWithTx(tx, tenantID, payment.MonthPaidFor, payment.ID)
	return err
}

// notifyPostCommit fires exactly one notification per recorded payment.
// Delivery is fire-and-forget: a failed send never unwinds the payment.
func (s *Service) notifyPostCommit(ctx context.Context, payment *models.Payment, tenant *models.Tenant, apartment *models.Apartment) {
	if s.notifier == nil || tenant == nil {
		return
	}
	if payment.Status != enums.PaymentStatusCompleted && payment.Status != enums.PaymentStatusPartial {
		return
	}

	// Detach from the request context so the in-flight send survives the
	// HTTP response.
	sendCtx := context.WithoutCancel(ctx)
	status := payment.Status

	s.dispatch(func() {
		var err error
		switch status {
		case enums.PaymentStatusCompleted:
			err = s.notifier.PaymentConfirmation(sendCtx, payment, tenant, apartment)
		case enums.PaymentStatusPartial:
			err = s.notifier.PartialPaymentNotice(sendCtx, payment, tenant, apartment)
		}
		if err != nil {
			s.logger.Error(sendCtx, "payment notification failed", err)
			s.metrics.IncSMSFailed()
			return
		}
		s.metrics.IncSMSSent()
	})
}
