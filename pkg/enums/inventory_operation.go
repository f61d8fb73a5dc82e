package enums

import "fmt"

// InventoryOperation is a bulk stock mutation.
type InventoryOperation string

const (
	InventoryOperationIncrement InventoryOperation = "increment"
	InventoryOperationDecrement InventoryOperation = "decrement"
	InventoryOperationSet       InventoryOperation = "set"
)

var validInventoryOperations = []InventoryOperation{
	InventoryOperationIncrement,
	InventoryOperationDecrement,
	InventoryOperationSet,
}

// String implements fmt.Stringer.
func (v InventoryOperation) String() string {
	return string(v)
}

// IsValid reports whether the value is a known InventoryOperation.
func (v InventoryOperation) IsValid() bool {
	for _, candidate := range validInventoryOperations {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseInventoryOperation converts raw input into a InventoryOperation.
func ParseInventoryOperation(value string) (InventoryOperation, error) {
	for _, candidate := range validInventoryOperations {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid inventory operation %q", value)
}
