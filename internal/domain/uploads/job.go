package uploads

import (
	"time"

	"github.com/google/uuid"
)

// Job represents a batch of uploads tracked as a unit. Its counters and
// status are derived from item transitions; the version field supports
// optimistic concurrency when concurrent item transitions race to update
// the same job row.
type Job struct {
	jobID   uuid.UUID
	ownerID string

	total    int
	counters JobCounters

	status  JobStatus
	version int64

	timeline *Timeline
}

// NewJob creates an active job with every item pending.
func NewJob(ownerID string, total int) *Job {
	timeline := NewTimeline(NewTimeProvider())
	timeline.MarkStarted()

	return &Job{
		jobID:    uuid.New(),
		ownerID:  ownerID,
		total:    total,
		counters: NewJobCounters(total),
		status:   JobStatusActive,
		version:  0,
		timeline: timeline,
	}
}

// ReconstructJob creates a job from persisted state.
func ReconstructJob(
	jobID uuid.UUID,
	ownerID string,
	total int,
	counters JobCounters,
	status JobStatus,
	version int64,
	startedAt, endedAt, lastUpdate time.Time,
) *Job {
	return &Job{
		jobID:    jobID,
		ownerID:  ownerID,
		total:    total,
		counters: counters,
		status:   status,
		version:  version,
		timeline: ReconstructTimeline(startedAt, endedAt, lastUpdate),
	}
}

// JobID returns the job's unique identifier.
func (j *Job) JobID() uuid.UUID { return j.jobID }

// OwnerID returns the identifier of the principal that created the job.
func (j *Job) OwnerID() string { return j.ownerID }

// Total returns the number of items in the batch.
func (j *Job) Total() int { return j.total }

// Counters returns the per-state item counts.
func (j *Job) Counters() JobCounters { return j.counters }

// Status returns the job's current derived status.
func (j *Job) Status() JobStatus { return j.status }

// Version returns the optimistic concurrency token for the job row.
func (j *Job) Version() int64 { return j.version }

// StartedAt returns when the job was created.
func (j *Job) StartedAt() time.Time { return j.timeline.StartedAt() }

// EndedAt returns when the job reached a terminal status, or the zero
// time while it is still active.
func (j *Job) EndedAt() time.Time { return j.timeline.CompletedAt() }

// LastUpdate returns the most recent activity timestamp.
func (j *Job) LastUpdate() time.Time { return j.timeline.LastUpdate() }

// ApplyItemTransition folds a single item status change into the job's
// counters and re-derives the job status. It rejects changes against a job
// that already reached a terminal status.
func (j *Job) ApplyItemTransition(from, to ItemStatus) error {
	if j.status.IsTerminal() {
		return ErrJobFinalized
	}

	counters, err := j.counters.OnItemStatusChanged(from, to)
	if err != nil {
		return err
	}

	j.counters = counters
	j.status = counters.DeriveStatus()
	if j.status.IsTerminal() {
		j.timeline.MarkCompleted()
	} else {
		j.timeline.UpdateLastUpdate()
	}

	return nil
}
