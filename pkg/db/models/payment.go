package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jkariuki/nyumbani-backend/pkg/enums"
)

// Payment is one received payment event. TransactionID carries the gateway
// receipt and its unique index is the sole mutual exclusion against
// duplicate callback delivery; concurrent inserts for the same receipt race
// to the constraint and the loser reports a duplicate.
type Payment struct {
	ID            uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID      *uuid.UUID          `gorm:"column:tenant_id;type:uuid;index"`
	ApartmentID   uuid.UUID           `gorm:"column:apartment_id;type:uuid;not null;index"`
	TransactionID string              `gorm:"column:transaction_id;not null;uniqueIndex:idx_payments_transaction_id"`
	Amount        decimal.Decimal     `gorm:"column:amount;type:numeric(10,2);not null"`
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;type:payment_method;not null;default:'mpesa'"`
	PhoneNumber   *string             `gorm:"column:phone_number"`
	PaymentDate   time.Time           `gorm:"column:payment_date;type:date;not null"`
	MonthPaidFor  string              `gorm:"column:month_paid_for;type:varchar(7);not null;index"`
	Status        enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'pending'"`
	LateFee       decimal.Decimal     `gorm:"column:late_fee;type:numeric(10,2);not null;default:0"`
	RawPayload    json.RawMessage     `gorm:"column:raw_payload;type:jsonb"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
