package reconcile

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// transTimeLayout is the gateway's YYYYMMDDHHMMSS timestamp format.
const transTimeLayout = "20060102150405"

// PaymentEvent is a normalized inbound collection event. Controllers build
// one from the gateway callback; nothing upstream of the engine touches
// persistence.
type PaymentEvent struct {
	TransactionID string
	BillReference string
	Amount        decimal.Decimal
	Phone         string
	TransTime     string
	PayerName     string
	RawPayload    json.RawMessage
}

// Normalize trims the identifying fields in place.
func (e *PaymentEvent) Normalize() {
	e.TransactionID = strings.TrimSpace(e.TransactionID)
	e.BillReference = strings.TrimSpace(e.BillReference)
	e.Phone = strings.TrimSpace(e.Phone)
	e.PayerName = strings.TrimSpace(e.PayerName)
	e.TransTime = strings.TrimSpace(e.TransTime)
}

// PaymentDate parses the gateway timestamp, falling back to now when the
// gateway sends an unparseable value. The boolean reports whether the
// fallback was taken.
func (e *PaymentEvent) PaymentDate(now time.Time) (time.Time, bool) {
	parsed, err := time.Parse(transTimeLayout, e.TransTime)
	if err != nil {
		return now, true
	}
	return parsed, false
}
