package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/upload-armada/internal/domain/uploads"
)

func createJobWithItems(t *testing.T, store *Store, total int) (*uploads.Job, []*uploads.Item) {
	t.Helper()

	job := uploads.NewJob("owner-1", total)
	items := make([]*uploads.Item, total)
	for i := range items {
		items[i] = uploads.NewItem(job.JobID(), job.OwnerID(), "file.bin", 128, "application/octet-stream", "uploads")
	}
	require.NoError(t, store.CreateJobWithItems(context.Background(), job, items))
	return job, items
}

func TestStoreCreateAndGetJob(t *testing.T) {
	store := NewStore()
	job, _ := createJobWithItems(t, store, 2)

	got, err := store.GetJob(context.Background(), job.JobID())
	require.NoError(t, err)

	assert.Equal(t, job.JobID(), got.JobID())
	assert.Equal(t, job.OwnerID(), got.OwnerID())
	assert.Equal(t, 2, got.Counters().Pending())
	assert.Equal(t, uploads.JobStatusActive, got.Status())
	assert.Equal(t, int64(0), got.Version())
}

func TestStoreGetJobNotFound(t *testing.T) {
	store := NewStore()

	_, err := store.GetJob(context.Background(), uuid.New())
	assert.ErrorIs(t, err, uploads.ErrJobNotFound)
}

func TestStoreUpdateJobStatusVersionGate(t *testing.T) {
	store := NewStore()
	job, _ := createJobWithItems(t, store, 1)
	ctx := context.Background()

	read1, err := store.GetJob(ctx, job.JobID())
	require.NoError(t, err)
	read2, err := store.GetJob(ctx, job.JobID())
	require.NoError(t, err)

	require.NoError(t, read1.ApplyItemTransition(uploads.ItemStatusPending, uploads.ItemStatusInProgress))
	ok, err := store.UpdateJobStatus(ctx, read1)
	require.NoError(t, err)
	assert.True(t, ok, "first writer wins")

	require.NoError(t, read2.ApplyItemTransition(uploads.ItemStatusPending, uploads.ItemStatusInProgress))
	ok, err = store.UpdateJobStatus(ctx, read2)
	require.NoError(t, err)
	assert.False(t, ok, "stale version must be rejected")

	fresh, err := store.GetJob(ctx, job.JobID())
	require.NoError(t, err)
	assert.Equal(t, int64(1), fresh.Version())
	assert.Equal(t, 1, fresh.Counters().InProgress())
}

func TestStoreTransitionItem(t *testing.T) {
	store := NewStore()
	_, items := createJobWithItems(t, store, 1)
	ctx := context.Background()
	itemID := items[0].ItemID()

	prev, err := store.TransitionItem(ctx, itemID,
		[]uploads.ItemStatus{uploads.ItemStatusPending}, uploads.ItemStatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, uploads.ItemStatusPending, prev)

	got, err := store.GetItem(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, uploads.ItemStatusInProgress, got.Status())
	assert.False(t, got.StartedAt().IsZero())
}

func TestStoreTransitionItemRejectsDisallowedSource(t *testing.T) {
	store := NewStore()
	_, items := createJobWithItems(t, store, 1)
	ctx := context.Background()
	itemID := items[0].ItemID()

	_, err := store.TransitionItem(ctx, itemID,
		[]uploads.ItemStatus{uploads.ItemStatusPending}, uploads.ItemStatusInProgress)
	require.NoError(t, err)

	// Replaying the same transition finds the item already moved.
	_, err = store.TransitionItem(ctx, itemID,
		[]uploads.ItemStatus{uploads.ItemStatusPending}, uploads.ItemStatusInProgress)
	var ite *uploads.InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, uploads.ItemStatusInProgress, ite.From)
}

func TestStoreTransitionItemNotFound(t *testing.T) {
	store := NewStore()

	_, err := store.TransitionItem(context.Background(), uuid.New(),
		[]uploads.ItemStatus{uploads.ItemStatusPending}, uploads.ItemStatusInProgress)
	assert.ErrorIs(t, err, uploads.ErrItemNotFound)
}

func TestStoreGetJobDetail(t *testing.T) {
	store := NewStore()
	job, items := createJobWithItems(t, store, 3)

	detail, err := store.GetJobDetail(context.Background(), job.JobID())
	require.NoError(t, err)

	assert.Equal(t, job.JobID(), detail.Job.JobID())
	require.Len(t, detail.Items, len(items))
	for _, item := range detail.Items {
		assert.Equal(t, job.JobID(), item.JobID())
		assert.Equal(t, uploads.ItemStatusPending, item.Status())
	}
}
