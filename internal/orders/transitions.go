package orders

import "github.com/angelmondragon/storefront-backend/pkg/enums"

var forwardTransitions = map[enums.OrderStatus]enums.OrderStatus{
	enums.OrderStatusPending:    enums.OrderStatusProcessing,
	enums.OrderStatusProcessing: enums.OrderStatusShipped,
	enums.OrderStatusShipped:    enums.OrderStatusDelivered,
}

// IsTerminal reports whether no further transition is allowed from status.
func IsTerminal(status enums.OrderStatus) bool {
	switch status {
	case enums.OrderStatusDelivered, enums.OrderStatusCancelled, enums.OrderStatusRefunded:
		return true
	}
	return false
}

// CanTransition reports whether an order may move from one status to another.
// Staying on the same status is not a transition.
func CanTransition(from, to enums.OrderStatus) bool {
	if from == to || !to.IsValid() || IsTerminal(from) {
		return false
	}
	if to == enums.OrderStatusCancelled || to == enums.OrderStatusRefunded {
		return true
	}
	next, ok := forwardTransitions[from]
	return ok && next == to
}
