package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jkariuki/nyumbani-backend/pkg/enums"
)

// Apartment is a rentable unit. Reference is the bill reference tenants key
// into the payment gateway (for example "A12"); it is unique across the
// deployment so a callback can resolve the unit without any other context.
type Apartment struct {
	ID            uuid.UUID             `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	PropertyID    uuid.UUID             `gorm:"column:property_id;type:uuid;not null;index"`
	Reference     string                `gorm:"column:reference;not null;uniqueIndex"`
	ApartmentType *string               `gorm:"column:apartment_type"`
	RentAmount    decimal.Decimal       `gorm:"column:rent_amount;type:numeric(10,2);not null"`
	DepositAmount decimal.Decimal       `gorm:"column:deposit_amount;type:numeric(10,2);not null;default:0"`
	SizeSqft      *int                  `gorm:"column:size_sqft"`
	Features      *string               `gorm:"column:features;type:text"`
	Status        enums.ApartmentStatus `gorm:"column:status;type:apartment_status;not null;default:'vacant'"`
	CreatedAt     time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
