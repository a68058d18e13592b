package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jkariuki/nyumbani-backend/pkg/enums"
)

// Invoice bills one tenant for one month. PaymentID is set exactly once,
// inside the same transaction that records the satisfying payment.
type Invoice struct {
	ID            uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID      uuid.UUID           `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex:idx_invoices_tenant_month"`
	ApartmentID   *uuid.UUID          `gorm:"column:apartment_id;type:uuid;index"`
	InvoiceNumber string              `gorm:"column:invoice_number;not null;uniqueIndex"`
	MonthYear     string              `gorm:"column:month_year;type:varchar(7);not null;uniqueIndex:idx_invoices_tenant_month"`
	RentAmount    decimal.Decimal     `gorm:"column:rent_amount;type:numeric(10,2);not null"`
	LateFee       decimal.Decimal     `gorm:"column:late_fee;type:numeric(10,2);not null;default:0"`
	OtherCharges  decimal.Decimal     `gorm:"column:other_charges;type:numeric(10,2);not null;default:0"`
	TotalAmount   decimal.Decimal     `gorm:"column:total_amount;type:numeric(10,2);not null"`
	DueDate       time.Time           `gorm:"column:due_date;type:date;not null"`
	Status        enums.InvoiceStatus `gorm:"column:status;type:invoice_status;not null;default:'pending'"`
	PaymentID     *uuid.UUID          `gorm:"column:payment_id;type:uuid"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
