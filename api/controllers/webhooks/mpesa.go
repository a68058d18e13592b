package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jkariuki/nyumbani-backend/internal/reconcile"
	"github.com/jkariuki/nyumbani-backend/pkg/logger"
)

// ReconcileService is the engine surface the callback ingestor needs.
type ReconcileService interface {
	Process(ctx context.Context, event *reconcile.PaymentEvent) (*reconcile.Result, error)
}

// darajaAck is the acknowledgement envelope Daraja expects. ResultCode 0
// accepts the delivery; any other value asks the gateway to retry.
type darajaAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

// c2bConfirmation mirrors the Daraja C2B confirmation payload. TransAmount
// arrives as a JSON string.
type c2bConfirmation struct {
	TransactionType   string          `json:"TransactionType"`
	TransID           string          `json:"TransID"`
	TransTime         string          `json:"TransTime"`
	TransAmount       decimal.Decimal `json:"TransAmount"`
	BusinessShortCode string          `json:"BusinessShortCode"`
	BillRefNumber     string          `json:"BillRefNumber"`
	InvoiceNumber     string          `json:"InvoiceNumber"`
	OrgAccountBalance string          `json:"OrgAccountBalance"`
	ThirdPartyTransID string          `json:"ThirdPartyTransID"`
	MSISDN            string          `json:"MSISDN"`
	FirstName         string          `json:"FirstName"`
	MiddleName        string          `json:"MiddleName"`
	LastName          string          `json:"LastName"`
}

// MpesaC2BCallback ingests paybill confirmation events. The gateway retries
// on anything other than a ResultCode 0 ack, so reconciliation outcomes that
// must not be retried (duplicates, unknown references) still ack with 0.
func MpesaC2BCallback(engine ReconcileService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if engine == nil {
			writeDarajaAck(w, http.StatusInternalServerError, 1, "Service unavailable")
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeDarajaAck(w, http.StatusBadRequest, 1, "Unreadable payload")
			return
		}

		var payload c2bConfirmation
		if err := json.Unmarshal(body, &payload); err != nil {
			if logg != nil {
				logg.Warn(ctx, "malformed mpesa callback payload")
			}
			writeDarajaAck(w, http.StatusBadRequest, 1, "Invalid payload")
			return
		}

		if reason := validateConfirmation(payload); reason != "" {
			if logg != nil {
				logg.Warn(logg.WithField(ctx, "reason", reason), "rejected mpesa callback")
			}
			writeDarajaAck(w, http.StatusOK, 1, reason)
			return
		}

		event := &reconcile.PaymentEvent{
			TransactionID: payload.TransID,
			BillReference: payload.BillRefNumber,
			Amount:        payload.TransAmount,
			Phone:         payload.MSISDN,
			TransTime:     payload.TransTime,
			PayerName:     payerName(payload),
			RawPayload:    json.RawMessage(body),
		}
		event.Normalize()

		if _, err := engine.Process(ctx, event); err != nil {
			if logg != nil {
				logg.Error(logg.WithTransactionID(ctx, event.TransactionID), "reconciliation failed", err)
			}
			// Non-zero ack so the gateway redelivers; the unique constraint
			// makes the retry safe.
			writeDarajaAck(w, http.StatusOK, 1, "Processing failed")
			return
		}

		writeDarajaAck(w, http.StatusOK, 0, "Accepted")
	}
}

func validateConfirmation(payload c2bConfirmation) string {
	if strings.TrimSpace(payload.TransID) == "" {
		return "TransID is required"
	}
	if strings.TrimSpace(payload.BillRefNumber) == "" {
		return "BillRefNumber is required"
	}
	if !payload.TransAmount.IsPositive() {
		return "TransAmount must be positive"
	}
	return ""
}

func payerName(payload c2bConfirmation) string {
	parts := []string{}
	for _, part := range []string{payload.FirstName, payload.MiddleName, payload.LastName} {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, " ")
}

type stkCallbackEnvelope struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// MpesaSTKCallback receives STK push result notifications. These are
// advisory: the money lands through the C2B confirmation, so this handler
// only logs the outcome.
func MpesaSTKCallback(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var envelope stkCallbackEnvelope
		if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
			writeDarajaAck(w, http.StatusBadRequest, 1, "Invalid payload")
			return
		}

		if logg != nil {
			cb := envelope.Body.StkCallback
			ctx = logg.WithFields(ctx, map[string]any{
				"checkout_request_id": cb.CheckoutRequestID,
				"result_code":         cb.ResultCode,
				"result_desc":         cb.ResultDesc,
			})
			if cb.ResultCode == 0 {
				logg.Info(ctx, "stk push completed")
			} else {
				logg.Warn(ctx, "stk push did not complete")
			}
		}

		writeDarajaAck(w, http.StatusOK, 0, "Callback processed")
	}
}

func writeDarajaAck(w http.ResponseWriter, status, code int, desc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(darajaAck{ResultCode: code, ResultDesc: desc})
}
