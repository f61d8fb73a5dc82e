package enums

import "fmt"

// CategoryStatus controls storefront visibility of a category.
type CategoryStatus string

const (
	CategoryStatusActive CategoryStatus = "active"
	CategoryStatusHidden CategoryStatus = "hidden"
)

var validCategoryStatuses = []CategoryStatus{
	CategoryStatusActive,
	CategoryStatusHidden,
}

// String implements fmt.Stringer.
func (v CategoryStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is a known CategoryStatus.
func (v CategoryStatus) IsValid() bool {
	for _, candidate := range validCategoryStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseCategoryStatus converts raw input into a CategoryStatus.
func ParseCategoryStatus(value string) (CategoryStatus, error) {
	for _, candidate := range validCategoryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid category status %q", value)
}
