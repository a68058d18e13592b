package enums

import "fmt"

// ApartmentStatus tracks unit occupancy.
type ApartmentStatus string

const (
	ApartmentStatusVacant      ApartmentStatus = "vacant"
	ApartmentStatusOccupied    ApartmentStatus = "occupied"
	ApartmentStatusMaintenance ApartmentStatus = "maintenance"
)

var validApartmentStatuses = []ApartmentStatus{
	ApartmentStatusVacant,
	ApartmentStatusOccupied,
	ApartmentStatusMaintenance,
}

// IsValid reports whether the value is a known ApartmentStatus.
func (a ApartmentStatus) IsValid() bool {
	for _, candidate := range validApartmentStatuses {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseApartmentStatus converts raw input into an ApartmentStatus.
func ParseApartmentStatus(value string) (ApartmentStatus, error) {
	for _, candidate := range validApartmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid apartment status %q", value)
}
