package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jkariuki/nyumbani-backend/pkg/enums"
)

// Tenant is a lease occupant. MonthlyRent is denormalized from the apartment
// at lease creation so later rent changes never reclassify old payments.
type Tenant struct {
	ID                  uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID              *uuid.UUID         `gorm:"column:user_id;type:uuid;index"`
	ApartmentID         *uuid.UUID         `gorm:"column:apartment_id;type:uuid;index"`
	Name                string             `gorm:"column:name;not null"`
	Email               string             `gorm:"column:email;not null"`
	Phone               string             `gorm:"column:phone;not null"`
	LeaseStartDate      time.Time          `gorm:"column:lease_start_date;type:date;not null"`
	LeaseEndDate        *time.Time         `gorm:"column:lease_end_date;type:date"`
	MonthlyRent         decimal.Decimal    `gorm:"column:monthly_rent;type:numeric(10,2);not null"`
	SecurityDepositPaid decimal.Decimal    `gorm:"column:security_deposit_paid;type:numeric(10,2);not null;default:0"`
	EmergencyContact    *string            `gorm:"column:emergency_contact"`
	IDNumber            *string            `gorm:"column:id_number"`
	Status              enums.TenantStatus `gorm:"column:status;type:tenant_status;not null;default:'active'"`
	CreatedAt           time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
