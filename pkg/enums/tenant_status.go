package enums

import "fmt"

// TenantStatus describes the lease lifecycle. At most one tenant per
// apartment may be active at a time.
type TenantStatus string

const (
	TenantStatusActive TenantStatus = "active"
	TenantStatusNotice TenantStatus = "notice"
	TenantStatusFormer TenantStatus = "former"
)

var validTenantStatuses = []TenantStatus{
	TenantStatusActive,
	TenantStatusNotice,
	TenantStatusFormer,
}

// IsValid reports whether the value is a known TenantStatus.
func (t TenantStatus) IsValid() bool {
	for _, candidate := range validTenantStatuses {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTenantStatus converts raw input into a TenantStatus.
func ParseTenantStatus(value string) (TenantStatus, error) {
	for _, candidate := range validTenantStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid tenant status %q", value)
}
