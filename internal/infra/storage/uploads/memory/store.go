// Package memory provides in-memory implementations of the upload
// repositories, used in tests and local development. The stores keep
// snapshots rather than live aggregates so version-conditioned writes
// behave the same way they do against postgres.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/upload-armada/internal/domain/uploads"
)

var (
	_ uploads.JobRepository  = (*Store)(nil)
	_ uploads.ItemRepository = (*Store)(nil)
)

type jobRecord struct {
	ownerID    string
	total      int
	counters   uploads.JobCounters
	status     uploads.JobStatus
	version    int64
	startedAt  time.Time
	endedAt    time.Time
	lastUpdate time.Time
}

type itemRecord struct {
	jobID       uuid.UUID
	ownerID     string
	name        string
	size        int64
	contentType string
	bucket      string
	objectKey   string
	status      uploads.ItemStatus
	createdAt   time.Time
	startedAt   time.Time
	completedAt time.Time
	lastUpdate  time.Time
}

// Store implements both upload repositories against process memory.
type Store struct {
	mu    sync.RWMutex
	jobs  map[uuid.UUID]*jobRecord
	items map[uuid.UUID]*itemRecord
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		jobs:  make(map[uuid.UUID]*jobRecord),
		items: make(map[uuid.UUID]*itemRecord),
	}
}

// CreateJobWithItems persists a job and its items atomically.
func (s *Store) CreateJobWithItems(_ context.Context, job *uploads.Job, items []*uploads.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[job.JobID()] = &jobRecord{
		ownerID:    job.OwnerID(),
		total:      job.Total(),
		counters:   job.Counters(),
		status:     job.Status(),
		version:    job.Version(),
		startedAt:  job.StartedAt(),
		endedAt:    job.EndedAt(),
		lastUpdate: job.LastUpdate(),
	}

	for _, item := range items {
		s.items[item.ItemID()] = &itemRecord{
			jobID:       item.JobID(),
			ownerID:     item.OwnerID(),
			name:        item.Name(),
			size:        item.Size(),
			contentType: item.ContentType(),
			bucket:      item.Bucket(),
			objectKey:   item.ObjectKey(),
			status:      item.Status(),
			createdAt:   item.CreatedAt(),
			startedAt:   item.StartedAt(),
			completedAt: item.CompletedAt(),
			lastUpdate:  item.LastUpdate(),
		}
	}

	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(_ context.Context, jobID uuid.UUID) (*uploads.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.jobs[jobID]
	if !ok {
		return nil, uploads.ErrJobNotFound
	}
	return reconstructJob(jobID, rec), nil
}

// UpdateJobStatus writes the job's counters and status, conditioned on the
// version the job was read at.
func (s *Store) UpdateJobStatus(_ context.Context, job *uploads.Job) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.jobs[job.JobID()]
	if !ok {
		return false, nil
	}
	if rec.version != job.Version() {
		return false, nil
	}

	rec.counters = job.Counters()
	rec.status = job.Status()
	rec.version++
	rec.endedAt = job.EndedAt()
	rec.lastUpdate = job.LastUpdate()

	return true, nil
}

// GetJobDetail retrieves a job together with all of its items.
func (s *Store) GetJobDetail(_ context.Context, jobID uuid.UUID) (*uploads.JobDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.jobs[jobID]
	if !ok {
		return nil, uploads.ErrJobNotFound
	}

	var items []*uploads.Item
	for itemID, ir := range s.items {
		if ir.jobID == jobID {
			items = append(items, reconstructItem(itemID, ir))
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].ItemID().String() < items[j].ItemID().String()
	})

	return &uploads.JobDetail{Job: reconstructJob(jobID, rec), Items: items}, nil
}

// GetItem retrieves an item by ID.
func (s *Store) GetItem(_ context.Context, itemID uuid.UUID) (*uploads.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.items[itemID]
	if !ok {
		return nil, uploads.ErrItemNotFound
	}
	return reconstructItem(itemID, rec), nil
}

// TransitionItem conditionally moves an item to a new status, returning the
// previous status on success.
func (s *Store) TransitionItem(
	_ context.Context,
	itemID uuid.UUID,
	allowed []uploads.ItemStatus,
	to uploads.ItemStatus,
) (uploads.ItemStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.items[itemID]
	if !ok {
		return uploads.ItemStatusUnspecified, uploads.ErrItemNotFound
	}

	permitted := false
	for _, st := range allowed {
		if rec.status == st {
			permitted = true
			break
		}
	}
	if !permitted {
		return uploads.ItemStatusUnspecified, uploads.NewInvalidTransitionError(itemID, rec.status, to)
	}

	prev := rec.status
	now := time.Now()
	rec.status = to
	rec.lastUpdate = now
	switch {
	case to == uploads.ItemStatusInProgress:
		rec.startedAt = now
	case to.IsTerminal():
		rec.completedAt = now
	}

	return prev, nil
}

func reconstructJob(jobID uuid.UUID, rec *jobRecord) *uploads.Job {
	return uploads.ReconstructJob(jobID, rec.ownerID, rec.total, rec.counters,
		rec.status, rec.version, rec.startedAt, rec.endedAt, rec.lastUpdate)
}

func reconstructItem(itemID uuid.UUID, rec *itemRecord) *uploads.Item {
	return uploads.ReconstructItem(itemID, rec.jobID, rec.ownerID, rec.name,
		rec.size, rec.contentType, rec.bucket, rec.objectKey, rec.status,
		rec.createdAt, rec.startedAt, rec.completedAt, rec.lastUpdate)
}
