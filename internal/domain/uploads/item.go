package uploads

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Item represents a single file within an upload job. Each item owns its
// lifecycle state independently; job level counters are derived from item
// transitions.
type Item struct {
	itemID  uuid.UUID
	jobID   uuid.UUID
	ownerID string

	name        string
	size        int64
	contentType string

	bucket    string
	objectKey string

	status    ItemStatus
	createdAt time.Time
	timeline  *Timeline
}

// NewItem creates a pending item for the given job. The object key is
// derived from the job and item identifiers so concurrent uploads never
// collide even when clients reuse file names.
func NewItem(jobID uuid.UUID, ownerID, name string, size int64, contentType, bucket string) *Item {
	itemID := uuid.New()
	timeline := NewTimeline(NewTimeProvider())
	return &Item{
		itemID:      itemID,
		jobID:       jobID,
		ownerID:     ownerID,
		name:        name,
		size:        size,
		contentType: contentType,
		bucket:      bucket,
		objectKey:   ObjectKey(jobID, itemID, name),
		status:      ItemStatusPending,
		createdAt:   timeline.LastUpdate(),
		timeline:    timeline,
	}
}

// ReconstructItem creates an item from persisted state.
func ReconstructItem(
	itemID, jobID uuid.UUID,
	ownerID, name string,
	size int64,
	contentType, bucket, objectKey string,
	status ItemStatus,
	createdAt, startedAt, completedAt, lastUpdate time.Time,
) *Item {
	return &Item{
		itemID:      itemID,
		jobID:       jobID,
		ownerID:     ownerID,
		name:        name,
		size:        size,
		contentType: contentType,
		bucket:      bucket,
		objectKey:   objectKey,
		status:      status,
		createdAt:   createdAt,
		timeline:    ReconstructTimeline(startedAt, completedAt, lastUpdate),
	}
}

// ObjectKey derives the destination key for an item within the store.
func ObjectKey(jobID, itemID uuid.UUID, name string) string {
	return fmt.Sprintf("jobs/%s/items/%s/%s", jobID, itemID, name)
}

// ItemID returns the item's unique identifier.
func (i *Item) ItemID() uuid.UUID { return i.itemID }

// JobID returns the identifier of the job the item belongs to.
func (i *Item) JobID() uuid.UUID { return i.jobID }

// OwnerID returns the identifier of the principal that created the job.
func (i *Item) OwnerID() string { return i.ownerID }

// Name returns the client supplied file name.
func (i *Item) Name() string { return i.name }

// Size returns the declared size in bytes.
func (i *Item) Size() int64 { return i.size }

// ContentType returns the declared media type.
func (i *Item) ContentType() string { return i.contentType }

// Bucket returns the destination bucket.
func (i *Item) Bucket() string { return i.bucket }

// ObjectKey returns the destination key within the bucket.
func (i *Item) ObjectKey() string { return i.objectKey }

// Status returns the item's current lifecycle status.
func (i *Item) Status() ItemStatus { return i.status }

// CreatedAt returns when the item was created.
func (i *Item) CreatedAt() time.Time { return i.createdAt }

// StartedAt returns when the transfer started.
func (i *Item) StartedAt() time.Time { return i.timeline.StartedAt() }

// CompletedAt returns when the item reached a terminal state.
func (i *Item) CompletedAt() time.Time { return i.timeline.CompletedAt() }

// LastUpdate returns the most recent activity timestamp.
func (i *Item) LastUpdate() time.Time { return i.timeline.LastUpdate() }

// Begin marks the item as in progress.
func (i *Item) Begin() error {
	if err := i.status.validateTransition(ItemStatusInProgress); err != nil {
		return NewInvalidTransitionError(i.itemID, i.status, ItemStatusInProgress)
	}
	i.status = ItemStatusInProgress
	i.timeline.MarkStarted()
	return nil
}

// Complete marks the item as done.
func (i *Item) Complete() error {
	if err := i.status.validateTransition(ItemStatusDone); err != nil {
		return NewInvalidTransitionError(i.itemID, i.status, ItemStatusDone)
	}
	i.status = ItemStatusDone
	i.timeline.MarkCompleted()
	return nil
}

// Fail marks the item as failed. Both pending and in-progress items can fail.
func (i *Item) Fail() error {
	if err := i.status.validateTransition(ItemStatusFailed); err != nil {
		return NewInvalidTransitionError(i.itemID, i.status, ItemStatusFailed)
	}
	i.status = ItemStatusFailed
	i.timeline.MarkCompleted()
	return nil
}
