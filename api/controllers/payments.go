package controllers

import (
	"net/http"
	"strings"

	"github.com/jkariuki/nyumbani-backend/api/responses"
	"github.com/jkariuki/nyumbani-backend/api/validators"
	"github.com/jkariuki/nyumbani-backend/internal/payments"
	"github.com/jkariuki/nyumbani-backend/pkg/enums"
	pkgerrors "github.com/jkariuki/nyumbani-backend/pkg/errors"
	"github.com/jkariuki/nyumbani-backend/pkg/logger"

	"github.com/go-chi/chi/v5"
)

// PaymentList returns the landlord's payments with aggregate counts,
// optionally filtered by property, apartment, status, month, or date range.
func PaymentList(svc *payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		landlordID, err := authenticatedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter, err := paymentListFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), landlordID, filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// PaymentDetail returns one payment with tenant and property context.
func PaymentDetail(svc *payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		landlordID, err := authenticatedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		paymentID, err := pathUUID(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Get(r.Context(), landlordID, paymentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, view)
	}
}

// PaymentSummary returns the landlord-wide collection picture, optionally
// narrowed to one billing month via ?month_year=YYYY-MM.
func PaymentSummary(svc *payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		landlordID, err := authenticatedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		monthYear := strings.TrimSpace(r.URL.Query().Get("month_year"))
		summary, err := svc.Summary(r.Context(), landlordID, monthYear)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, summary)
	}
}

// PaymentByProperty returns the per-property revenue rollup.
func PaymentByProperty(svc *payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		landlordID, err := authenticatedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		breakdown, err := svc.ByProperty(r.Context(), landlordID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, breakdown)
	}
}

// PaymentVerify reports whether a gateway receipt is on record.
func PaymentVerify(svc *payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		landlordID, err := authenticatedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		receipt := strings.TrimSpace(chi.URLParam(r, "transactionId"))
		if receipt == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required"))
			return
		}

		result, err := svc.Verify(r.Context(), landlordID, receipt)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// PaymentSTKPush asks the gateway to prompt a tenant's phone for payment.
func PaymentSTKPush(svc *payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		landlordID, err := authenticatedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload payments.STKPushInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp, err := svc.InitiateSTK(r.Context(), landlordID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, resp)
	}
}

type stkQueryRequest struct {
	CheckoutRequestID string `json:"checkout_request_id" validate:"required"`
}

// PaymentSTKQuery checks the status of a previously initiated STK push.
func PaymentSTKQuery(svc *payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		if _, err := authenticatedUserID(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload stkQueryRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp, err := svc.QueryStatus(r.Context(), payload.CheckoutRequestID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, resp)
	}
}

func paymentListFilter(r *http.Request) (payments.ListFilter, error) {
	filter := payments.ListFilter{}
	query := r.URL.Query()

	if id, err := queryUUID(query.Get("property_id"), "property_id"); err != nil {
		return filter, err
	} else if id != nil {
		filter.PropertyID = id
	}
	if id, err := queryUUID(query.Get("apartment_id"), "apartment_id"); err != nil {
		return filter, err
	} else if id != nil {
		filter.ApartmentID = id
	}

	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status, err := enums.ParsePaymentStatus(raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
		}
		filter.Status = &status
	}

	filter.MonthPaidFor = strings.TrimSpace(query.Get("month_paid_for"))

	if t, err := queryDate(query.Get("from"), "from"); err != nil {
		return filter, err
	} else if t != nil {
		filter.From = t
	}
	if t, err := queryDate(query.Get("to"), "to"); err != nil {
		return filter, err
	} else if t != nil {
		filter.To = t
	}

	return filter, nil
}
