package enums

import "fmt"

// OrderEventKind labels an entry in the order audit log.
type OrderEventKind string

const (
	OrderEventKindCreated            OrderEventKind = "created"
	OrderEventKindPaymentReceived    OrderEventKind = "payment_received"
	OrderEventKindStatusChanged      OrderEventKind = "status_changed"
	OrderEventKindNoteAdded          OrderEventKind = "note_added"
	OrderEventKindNotificationFailed OrderEventKind = "notification_failed"
)

var validOrderEventKinds = []OrderEventKind{
	OrderEventKindCreated,
	OrderEventKindPaymentReceived,
	OrderEventKindStatusChanged,
	OrderEventKindNoteAdded,
	OrderEventKindNotificationFailed,
}

// String implements fmt.Stringer.
func (v OrderEventKind) String() string {
	return string(v)
}

// IsValid reports whether the value is a known OrderEventKind.
func (v OrderEventKind) IsValid() bool {
	for _, candidate := range validOrderEventKinds {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseOrderEventKind converts raw input into a OrderEventKind.
func ParseOrderEventKind(value string) (OrderEventKind, error) {
	for _, candidate := range validOrderEventKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order event kind %q", value)
}
