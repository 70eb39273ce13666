package uploads

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/upload-armada/internal/domain/uploads"
	"github.com/ahrav/upload-armada/pkg/common"
	"github.com/ahrav/upload-armada/pkg/common/logger"
)

const (
	// maxBatchSize caps how many items a single batch may carry.
	maxBatchSize = 500

	// defaultSignConcurrency bounds how many permissions are signed in
	// parallel for one batch.
	defaultSignConcurrency = 16
)

// ItemRequest describes one file the client intends to upload.
type ItemRequest struct {
	Name        string
	Size        int64
	ContentType string
}

// ItemGrant pairs an issued item with its write permission. SignError is
// set when minting the permission failed; the item stays pending and the
// client can fail it or request a fresh batch.
type ItemGrant struct {
	ItemID     uuid.UUID
	Name       string
	Bucket     string
	ObjectKey  string
	Permission *uploads.WritePermission
	SignError  string
}

// BatchGrant is the result of issuing a batch: the tracking job plus one
// grant per requested item.
type BatchGrant struct {
	JobID  uuid.UUID
	Status uploads.JobStatus
	Total  int
	Items  []ItemGrant
}

// BatchIssuer creates upload jobs and mints write permissions for their
// items. Permissions are signed concurrently under a rate limit so a large
// batch cannot starve the signer.
type BatchIssuer struct {
	jobRepo uploads.JobRepository
	signer  uploads.StorageSigner

	bucket        string
	permissionTTL time.Duration

	signLimiter *common.RateLimiter
	concurrency int

	logger *logger.Logger
	tracer trace.Tracer
}

// NewBatchIssuer creates a batch issuer writing into the given bucket with
// permissions valid for ttl.
func NewBatchIssuer(
	jobRepo uploads.JobRepository,
	signer uploads.StorageSigner,
	bucket string,
	ttl time.Duration,
	signLimiter *common.RateLimiter,
	log *logger.Logger,
	tracer trace.Tracer,
) *BatchIssuer {
	return &BatchIssuer{
		jobRepo:       jobRepo,
		signer:        signer,
		bucket:        bucket,
		permissionTTL: ttl,
		signLimiter:   signLimiter,
		concurrency:   defaultSignConcurrency,
		logger:        log,
		tracer:        tracer,
	}
}

// IssueBatch creates a job tracking the requested items and returns a write
// permission per item. The job and items are persisted before any signing
// happens, so a signing failure never leaves an untracked permission.
func (s *BatchIssuer) IssueBatch(ctx context.Context, ownerID string, reqs []ItemRequest) (BatchGrant, error) {
	ctx, span := s.tracer.Start(ctx, "batch_issuer.issue_batch",
		trace.WithAttributes(
			attribute.String("owner_id", ownerID),
			attribute.Int("item_count", len(reqs)),
		))
	defer span.End()

	if len(reqs) == 0 {
		return BatchGrant{}, fmt.Errorf("%w: batch is empty", uploads.ErrInvalidRequest)
	}
	if len(reqs) > maxBatchSize {
		return BatchGrant{}, fmt.Errorf("%w: batch of %d exceeds the cap of %d",
			uploads.ErrInvalidRequest, len(reqs), maxBatchSize)
	}
	for _, req := range reqs {
		if req.Name == "" {
			return BatchGrant{}, fmt.Errorf("%w: item name is required", uploads.ErrInvalidRequest)
		}
		if req.Size <= 0 {
			return BatchGrant{}, fmt.Errorf("%w: item %q must have a positive size", uploads.ErrInvalidRequest, req.Name)
		}
	}

	job := uploads.NewJob(ownerID, len(reqs))
	items := make([]*uploads.Item, len(reqs))
	for i, req := range reqs {
		items[i] = uploads.NewItem(job.JobID(), ownerID, req.Name, req.Size, req.ContentType, s.bucket)
	}

	if err := s.jobRepo.CreateJobWithItems(ctx, job, items); err != nil {
		return BatchGrant{}, fmt.Errorf("create job %s: %w", job.JobID(), err)
	}

	grants := make([]ItemGrant, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, item := range items {
		g.Go(func() error {
			if s.signLimiter != nil {
				if err := s.signLimiter.Wait(gctx); err != nil {
					return err
				}
			}

			grant := ItemGrant{
				ItemID:    item.ItemID(),
				Name:      item.Name(),
				Bucket:    item.Bucket(),
				ObjectKey: item.ObjectKey(),
			}

			perm, err := s.signer.SignUpload(gctx, item.Bucket(), item.ObjectKey(), item.ContentType(), s.permissionTTL)
			if err != nil {
				// The item stays tracked; the client can fail it or ask
				// for a fresh batch.
				s.logger.Error(gctx, "failed to sign upload permission",
					"job_id", job.JobID().String(), "item_id", item.ItemID().String(), "err", err)
				grant.SignError = err.Error()
			} else {
				grant.Permission = &perm
			}

			grants[i] = grant
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return BatchGrant{}, fmt.Errorf("sign batch %s: %w", job.JobID(), err)
	}

	s.logger.Info(ctx, "issued upload batch",
		"job_id", job.JobID().String(), "owner_id", ownerID, "items", len(items))

	return BatchGrant{
		JobID:  job.JobID(),
		Status: job.Status(),
		Total:  job.Total(),
		Items:  grants,
	}, nil
}
