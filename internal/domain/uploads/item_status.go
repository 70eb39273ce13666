package uploads

import "fmt"

// ItemStatus represents the lifecycle state of a single upload item.
type ItemStatus string

const (
	// ItemStatusPending indicates the item has a write permission issued but
	// the client has not started transferring bytes yet.
	ItemStatusPending ItemStatus = "PENDING"

	// ItemStatusInProgress indicates the client reported the transfer started.
	ItemStatusInProgress ItemStatus = "IN_PROGRESS"

	// ItemStatusDone indicates the transfer finished successfully.
	ItemStatusDone ItemStatus = "DONE"

	// ItemStatusFailed indicates the transfer failed or was abandoned.
	ItemStatusFailed ItemStatus = "FAILED"

	// ItemStatusUnspecified indicates an unknown or invalid status.
	ItemStatusUnspecified ItemStatus = "UNSPECIFIED"
)

// ParseItemStatus converts a string to its ItemStatus equivalent.
func ParseItemStatus(s string) ItemStatus {
	switch s {
	case string(ItemStatusPending):
		return ItemStatusPending
	case string(ItemStatusInProgress):
		return ItemStatusInProgress
	case string(ItemStatusDone):
		return ItemStatusDone
	case string(ItemStatusFailed):
		return ItemStatusFailed
	default:
		return ItemStatusUnspecified
	}
}

// String returns the string representation of the status.
func (s ItemStatus) String() string { return string(s) }

// IsTerminal returns true if the status cannot change again.
func (s ItemStatus) IsTerminal() bool {
	return s == ItemStatusDone || s == ItemStatusFailed
}

// validateTransition checks if a status change is valid and returns an error
// if the transition is not allowed.
func (s ItemStatus) validateTransition(target ItemStatus) error {
	if !s.isValidTransition(target) {
		return fmt.Errorf("invalid item status transition from %s to %s", s, target)
	}
	return nil
}

// isValidTransition defines the allowed item status state machine.
// Pending can only begin, and only an in-progress transfer can finish.
// A pending item may fail directly when the client abandons it before
// starting the transfer.
func (s ItemStatus) isValidTransition(target ItemStatus) bool {
	switch s {
	case ItemStatusPending:
		return target == ItemStatusInProgress || target == ItemStatusFailed
	case ItemStatusInProgress:
		return target == ItemStatusDone || target == ItemStatusFailed
	default:
		return false
	}
}
