package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/jkariuki/nyumbani-backend/pkg/enums"
)

// Property is a landlord-managed building.
type Property struct {
	ID         uuid.UUID            `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	LandlordID uuid.UUID            `gorm:"column:landlord_id;type:uuid;not null;index"`
	Name       string               `gorm:"column:name;not null"`
	Address    string               `gorm:"column:address;type:text;not null"`
	City       *string              `gorm:"column:city"`
	TotalUnits int                  `gorm:"column:total_units;not null;default:0"`
	Status     enums.PropertyStatus `gorm:"column:status;type:property_status;not null;default:'active'"`
	CreatedAt  time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
