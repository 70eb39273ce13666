package uploads

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockTimeProvider lets tests control the clock.
type mockTimeProvider struct{ now time.Time }

func (m *mockTimeProvider) Now() time.Time { return m.now }

func (m *mockTimeProvider) Advance(d time.Duration) { m.now = m.now.Add(d) }

func TestNewItem(t *testing.T) {
	jobID := uuid.New()

	item := NewItem(jobID, "owner-1", "report.pdf", 2048, "application/pdf", "uploads")

	assert.NotEqual(t, uuid.Nil, item.ItemID())
	assert.Equal(t, jobID, item.JobID())
	assert.Equal(t, "owner-1", item.OwnerID())
	assert.Equal(t, "report.pdf", item.Name())
	assert.Equal(t, int64(2048), item.Size())
	assert.Equal(t, "application/pdf", item.ContentType())
	assert.Equal(t, "uploads", item.Bucket())
	assert.Equal(t, ItemStatusPending, item.Status())
	assert.False(t, item.CreatedAt().IsZero())
	assert.True(t, item.StartedAt().IsZero())
	assert.True(t, item.CompletedAt().IsZero())
}

func TestObjectKeyIsCollisionFree(t *testing.T) {
	jobID := uuid.New()

	a := NewItem(jobID, "owner-1", "photo.jpg", 10, "image/jpeg", "uploads")
	b := NewItem(jobID, "owner-1", "photo.jpg", 10, "image/jpeg", "uploads")

	assert.NotEqual(t, a.ObjectKey(), b.ObjectKey(),
		"items with the same name must not share an object key")
	assert.Contains(t, a.ObjectKey(), jobID.String())
	assert.Contains(t, a.ObjectKey(), a.ItemID().String())
	assert.Contains(t, a.ObjectKey(), "photo.jpg")
}

func TestItemTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    ItemStatus
		apply   func(*Item) error
		want    ItemStatus
		wantErr bool
	}{
		{name: "pending begins", from: ItemStatusPending, apply: (*Item).Begin, want: ItemStatusInProgress},
		{name: "pending fails", from: ItemStatusPending, apply: (*Item).Fail, want: ItemStatusFailed},
		{name: "pending cannot complete", from: ItemStatusPending, apply: (*Item).Complete, wantErr: true},
		{name: "in progress completes", from: ItemStatusInProgress, apply: (*Item).Complete, want: ItemStatusDone},
		{name: "in progress fails", from: ItemStatusInProgress, apply: (*Item).Fail, want: ItemStatusFailed},
		{name: "in progress cannot begin again", from: ItemStatusInProgress, apply: (*Item).Begin, wantErr: true},
		{name: "done cannot complete again", from: ItemStatusDone, apply: (*Item).Complete, wantErr: true},
		{name: "done cannot fail", from: ItemStatusDone, apply: (*Item).Fail, wantErr: true},
		{name: "failed cannot complete", from: ItemStatusFailed, apply: (*Item).Complete, wantErr: true},
		{name: "failed cannot begin", from: ItemStatusFailed, apply: (*Item).Begin, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := NewItem(uuid.New(), "owner-1", "f.bin", 1, "application/octet-stream", "uploads")
			item.status = tt.from

			err := tt.apply(item)
			if tt.wantErr {
				require.Error(t, err)
				var ite *InvalidTransitionError
				require.ErrorAs(t, err, &ite)
				assert.Equal(t, tt.from, item.Status(), "status must not change on a rejected transition")
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, item.Status())
		})
	}
}

func TestItemTimelineOnTransitions(t *testing.T) {
	item := NewItem(uuid.New(), "owner-1", "f.bin", 1, "application/octet-stream", "uploads")

	require.NoError(t, item.Begin())
	assert.False(t, item.StartedAt().IsZero())
	assert.True(t, item.CompletedAt().IsZero())

	require.NoError(t, item.Complete())
	assert.False(t, item.CompletedAt().IsZero())
}

func TestParseItemStatus(t *testing.T) {
	assert.Equal(t, ItemStatusPending, ParseItemStatus("PENDING"))
	assert.Equal(t, ItemStatusInProgress, ParseItemStatus("IN_PROGRESS"))
	assert.Equal(t, ItemStatusDone, ParseItemStatus("DONE"))
	assert.Equal(t, ItemStatusFailed, ParseItemStatus("FAILED"))
	assert.Equal(t, ItemStatusUnspecified, ParseItemStatus("bogus"))
}
