package uploads

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/upload-armada/internal/domain/uploads"
)

// StatusQueryService answers job status queries.
type StatusQueryService struct {
	jobRepo uploads.JobRepository
	tracer  trace.Tracer
}

// NewStatusQueryService creates a status query service.
func NewStatusQueryService(jobRepo uploads.JobRepository, tracer trace.Tracer) *StatusQueryService {
	return &StatusQueryService{jobRepo: jobRepo, tracer: tracer}
}

// GetJobStatus returns a job with its items. Jobs belonging to a different
// owner are reported as not found.
func (s *StatusQueryService) GetJobStatus(ctx context.Context, ownerID string, jobID uuid.UUID) (*uploads.JobDetail, error) {
	ctx, span := s.tracer.Start(ctx, "status_query.get_job_status",
		trace.WithAttributes(attribute.String("job_id", jobID.String())))
	defer span.End()

	detail, err := s.jobRepo.GetJobDetail(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if detail.Job.OwnerID() != ownerID {
		return nil, uploads.ErrJobNotFound
	}

	return detail, nil
}
