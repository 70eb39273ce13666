package uploads

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrJobNotFound indicates the requested job does not exist or is not
	// visible to the caller.
	ErrJobNotFound = errors.New("job not found")

	// ErrItemNotFound indicates the requested item does not exist or is not
	// visible to the caller.
	ErrItemNotFound = errors.New("item not found")

	// ErrContention indicates a counter update kept losing the optimistic
	// concurrency race and the retry budget was exhausted.
	ErrContention = errors.New("job counter update contention")

	// ErrJobFinalized indicates an item transition arrived after the job
	// already reached a terminal status.
	ErrJobFinalized = errors.New("job already finalized")

	// ErrInvalidRequest indicates a batch request that fails semantic
	// validation, such as an empty batch or one over the size cap.
	ErrInvalidRequest = errors.New("invalid batch request")
)

// InvalidTransitionError indicates an item status change that the lifecycle
// state machine does not allow, such as completing an item twice.
type InvalidTransitionError struct {
	ItemID uuid.UUID
	From   ItemStatus
	To     ItemStatus
}

// NewInvalidTransitionError creates an error describing a rejected transition.
func NewInvalidTransitionError(itemID uuid.UUID, from, to ItemStatus) *InvalidTransitionError {
	return &InvalidTransitionError{ItemID: itemID, From: from, To: to}
}

// Error implements the error interface.
func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("item %s: invalid transition from %s to %s", e.ItemID, e.From, e.To)
}
