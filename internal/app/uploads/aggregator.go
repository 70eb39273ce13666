// Package uploads implements the application services for the upload
// gateway: issuing batches, driving item lifecycle transitions and folding
// those transitions into job counters.
package uploads

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/upload-armada/internal/domain/uploads"
	"github.com/ahrav/upload-armada/pkg/common/logger"
)

const (
	// aggregateMaxRetries bounds how many times a counter update is retried
	// when concurrent item transitions race on the same job row.
	aggregateMaxRetries = 8

	// aggregateInitialInterval is the first backoff interval between
	// retries of a lost counter update.
	aggregateInitialInterval = 5 * time.Millisecond
)

// JobAggregator folds item status changes into job level counters using
// optimistic concurrency. Each attempt reads the job fresh, applies the
// delta in memory and writes back conditioned on the version it read. A
// lost race is retried with backoff against the new row state.
type JobAggregator struct {
	jobRepo uploads.JobRepository

	logger *logger.Logger
	tracer trace.Tracer
}

// NewJobAggregator creates an aggregator over the given job repository.
func NewJobAggregator(jobRepo uploads.JobRepository, log *logger.Logger, tracer trace.Tracer) *JobAggregator {
	return &JobAggregator{jobRepo: jobRepo, logger: log, tracer: tracer}
}

// ApplyTransition records a single item status change on the item's job and
// returns the job as written. Because the caller already won the item level
// transition, every change reaches the counters exactly once; only the
// write order is contended here.
func (a *JobAggregator) ApplyTransition(
	ctx context.Context,
	jobID uuid.UUID,
	from, to uploads.ItemStatus,
) (*uploads.Job, error) {
	ctx, span := a.tracer.Start(ctx, "job_aggregator.apply_transition",
		trace.WithAttributes(
			attribute.String("job_id", jobID.String()),
			attribute.String("from_status", from.String()),
			attribute.String("to_status", to.String()),
		))
	defer span.End()

	var job *uploads.Job

	errVersionConflict := errors.New("job version conflict")

	operation := func() error {
		current, err := a.jobRepo.GetJob(ctx, jobID)
		if err != nil {
			return backoff.Permanent(err)
		}

		if err := current.ApplyItemTransition(from, to); err != nil {
			// A transition arriving after the job went terminal is dropped
			// rather than surfaced; the item write already stands.
			if errors.Is(err, uploads.ErrJobFinalized) {
				a.logger.Warn(ctx, "dropping item transition against finalized job",
					"job_id", jobID.String(), "from", from.String(), "to", to.String())
				job = current
				return nil
			}
			return backoff.Permanent(err)
		}

		updated, err := a.jobRepo.UpdateJobStatus(ctx, current)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("update job %s: %w", jobID, err))
		}
		if !updated {
			return errVersionConflict
		}

		job = current
		return nil
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = aggregateInitialInterval

	policy := backoff.WithContext(backoff.WithMaxRetries(expBackoff, aggregateMaxRetries), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		if errors.Is(err, errVersionConflict) {
			a.logger.Warn(ctx, "job counter update lost the retry budget",
				"job_id", jobID.String(), "from", from.String(), "to", to.String())
			return nil, uploads.ErrContention
		}
		return nil, err
	}

	return job, nil
}
