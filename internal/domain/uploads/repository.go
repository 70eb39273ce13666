package uploads

import (
	"context"

	"github.com/google/uuid"
)

// JobRepository defines the persistence operations for upload jobs.
type JobRepository interface {
	// CreateJobWithItems persists a new job and all of its items in one
	// atomic operation.
	CreateJobWithItems(ctx context.Context, job *Job, items []*Item) error

	// GetJob retrieves a job by ID, including its current counters and
	// version. Returns ErrJobNotFound when no such job exists.
	GetJob(ctx context.Context, jobID uuid.UUID) (*Job, error)

	// UpdateJobStatus writes the job's counters, status, version and
	// timestamps, conditioned on the version the job was read at. It
	// returns false without error when another writer got there first.
	UpdateJobStatus(ctx context.Context, job *Job) (bool, error)

	// GetJobDetail retrieves a job together with all of its items.
	GetJobDetail(ctx context.Context, jobID uuid.UUID) (*JobDetail, error)
}

// ItemRepository defines the persistence operations for upload items.
type ItemRepository interface {
	// GetItem retrieves an item by ID. Returns ErrItemNotFound when no
	// such item exists.
	GetItem(ctx context.Context, itemID uuid.UUID) (*Item, error)

	// TransitionItem conditionally moves an item to a new status. The
	// write succeeds only when the item's current status is one of the
	// allowed source statuses, and the previous status is returned so the
	// caller can aggregate the change exactly once. A failed condition
	// yields ErrItemNotFound or an InvalidTransitionError.
	TransitionItem(ctx context.Context, itemID uuid.UUID, allowed []ItemStatus, to ItemStatus) (ItemStatus, error)
}
