package uploads

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/upload-armada/internal/domain/uploads"
	"github.com/ahrav/upload-armada/pkg/common/logger"
)

// TransitionResult reports the outcome of an item lifecycle transition,
// including the job state as written by the aggregation.
type TransitionResult struct {
	ItemID     uuid.UUID
	ItemStatus uploads.ItemStatus
	Job        *uploads.Job
}

// LifecycleService drives item status transitions. The item level
// conditional write is the idempotency gate: aggregation into job counters
// only runs for transitions that actually moved the item, so a replayed or
// racing request can never be counted twice.
type LifecycleService struct {
	itemRepo   uploads.ItemRepository
	aggregator *JobAggregator

	logger *logger.Logger
	tracer trace.Tracer
}

// NewLifecycleService creates a lifecycle service.
func NewLifecycleService(
	itemRepo uploads.ItemRepository,
	aggregator *JobAggregator,
	log *logger.Logger,
	tracer trace.Tracer,
) *LifecycleService {
	return &LifecycleService{
		itemRepo:   itemRepo,
		aggregator: aggregator,
		logger:     log,
		tracer:     tracer,
	}
}

// Begin marks an item as in progress.
func (s *LifecycleService) Begin(ctx context.Context, ownerID string, itemID uuid.UUID) (TransitionResult, error) {
	return s.transition(ctx, "lifecycle.begin", ownerID, itemID,
		[]uploads.ItemStatus{uploads.ItemStatusPending}, uploads.ItemStatusInProgress)
}

// Complete marks an item as done. Only an in-progress item can complete.
func (s *LifecycleService) Complete(ctx context.Context, ownerID string, itemID uuid.UUID) (TransitionResult, error) {
	return s.transition(ctx, "lifecycle.complete", ownerID, itemID,
		[]uploads.ItemStatus{uploads.ItemStatusInProgress}, uploads.ItemStatusDone)
}

// Fail marks an item as failed. Both pending and in-progress items can
// fail, so clients can abandon an upload they never started.
func (s *LifecycleService) Fail(ctx context.Context, ownerID string, itemID uuid.UUID) (TransitionResult, error) {
	return s.transition(ctx, "lifecycle.fail", ownerID, itemID,
		[]uploads.ItemStatus{uploads.ItemStatusPending, uploads.ItemStatusInProgress}, uploads.ItemStatusFailed)
}

func (s *LifecycleService) transition(
	ctx context.Context,
	spanName string,
	ownerID string,
	itemID uuid.UUID,
	allowed []uploads.ItemStatus,
	to uploads.ItemStatus,
) (TransitionResult, error) {
	ctx, span := s.tracer.Start(ctx, spanName,
		trace.WithAttributes(
			attribute.String("item_id", itemID.String()),
			attribute.String("to_status", to.String()),
		))
	defer span.End()

	item, err := s.itemRepo.GetItem(ctx, itemID)
	if err != nil {
		return TransitionResult{}, err
	}

	// Non-owners learn nothing, not even that the item exists.
	if item.OwnerID() != ownerID {
		return TransitionResult{}, uploads.ErrItemNotFound
	}

	prev, err := s.itemRepo.TransitionItem(ctx, itemID, allowed, to)
	if err != nil {
		return TransitionResult{}, err
	}

	job, err := s.aggregator.ApplyTransition(ctx, item.JobID(), prev, to)
	if err != nil {
		// The item write stands; only the counter fold failed.
		s.logger.Error(ctx, "item moved but job aggregation failed",
			"item_id", itemID.String(), "job_id", item.JobID().String(), "err", err)
		return TransitionResult{}, err
	}

	return TransitionResult{ItemID: itemID, ItemStatus: to, Job: job}, nil
}
