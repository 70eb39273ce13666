// Package postgres provides postgres-backed implementations of the upload
// repositories.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/upload-armada/internal/domain/uploads"
	"github.com/ahrav/upload-armada/internal/infra/storage"
)

var _ uploads.JobRepository = (*JobStore)(nil)

// JobStore provides persistent storage for upload jobs in PostgreSQL.
type JobStore struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

// NewJobStore creates a new postgres-backed job store.
func NewJobStore(pool *pgxpool.Pool, tracer trace.Tracer) *JobStore {
	return &JobStore{pool: pool, tracer: tracer}
}

// CreateJobWithItems persists a job together with all of its items in a
// single transaction.
func (s *JobStore) CreateJobWithItems(ctx context.Context, job *uploads.Job, items []*uploads.Item) error {
	dbAttrs := []attribute.KeyValue{
		attribute.String("job_id", job.JobID().String()),
		attribute.Int("item_count", len(items)),
	}
	return storage.ExecuteAndTrace(ctx, s.tracer, "postgres.create_job_with_items", dbAttrs, func(ctx context.Context) error {
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		counters := job.Counters()
		_, err = tx.Exec(ctx, `
			INSERT INTO upload_jobs (job_id, owner_id, total, pending, in_progress, done, failed, status, version, started_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			job.JobID(), job.OwnerID(), job.Total(),
			counters.Pending(), counters.InProgress(), counters.Done(), counters.Failed(),
			job.Status().String(), job.Version(), job.StartedAt(), job.LastUpdate(),
		)
		if err != nil {
			return fmt.Errorf("insert job: %w", err)
		}

		batch := &pgx.Batch{}
		for _, item := range items {
			batch.Queue(`
				INSERT INTO upload_items (item_id, job_id, owner_id, name, size, content_type, bucket, object_key, status, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
				item.ItemID(), item.JobID(), item.OwnerID(), item.Name(), item.Size(),
				item.ContentType(), item.Bucket(), item.ObjectKey(),
				item.Status().String(), item.CreatedAt(), item.LastUpdate(),
			)
		}

		results := tx.SendBatch(ctx, batch)
		for range items {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("insert item: %w", err)
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("close batch: %w", err)
		}

		return tx.Commit(ctx)
	})
}

// GetJob retrieves a job by ID.
func (s *JobStore) GetJob(ctx context.Context, jobID uuid.UUID) (*uploads.Job, error) {
	dbAttrs := []attribute.KeyValue{attribute.String("job_id", jobID.String())}

	var job *uploads.Job
	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.get_job", dbAttrs, func(ctx context.Context) error {
		row := s.pool.QueryRow(ctx, `
			SELECT job_id, owner_id, total, pending, in_progress, done, failed, status, version, started_at, ended_at, updated_at
			FROM upload_jobs
			WHERE job_id = $1`, jobID)

		var err error
		job, err = scanJob(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// UpdateJobStatus writes the job's counters, status and timestamps,
// conditioned on the version the job was read at. The version advances by
// one on success. Returns false without error when the row has moved on
// since the read.
func (s *JobStore) UpdateJobStatus(ctx context.Context, job *uploads.Job) (bool, error) {
	dbAttrs := []attribute.KeyValue{
		attribute.String("job_id", job.JobID().String()),
		attribute.Int64("version", job.Version()),
	}

	var updated bool
	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.update_job_status", dbAttrs, func(ctx context.Context) error {
		counters := job.Counters()

		var endedAt *time.Time
		if !job.EndedAt().IsZero() {
			t := job.EndedAt()
			endedAt = &t
		}

		tag, err := s.pool.Exec(ctx, `
			UPDATE upload_jobs
			SET pending = $2,
			    in_progress = $3,
			    done = $4,
			    failed = $5,
			    status = $6,
			    version = version + 1,
			    ended_at = $7,
			    updated_at = $8
			WHERE job_id = $1 AND version = $9`,
			job.JobID(),
			counters.Pending(), counters.InProgress(), counters.Done(), counters.Failed(),
			job.Status().String(), endedAt, job.LastUpdate(), job.Version(),
		)
		if err != nil {
			return fmt.Errorf("update job: %w", err)
		}

		updated = tag.RowsAffected() == 1
		return nil
	})
	if err != nil {
		return false, err
	}
	return updated, nil
}

// GetJobDetail retrieves a job together with all of its items.
func (s *JobStore) GetJobDetail(ctx context.Context, jobID uuid.UUID) (*uploads.JobDetail, error) {
	dbAttrs := []attribute.KeyValue{attribute.String("job_id", jobID.String())}

	var detail *uploads.JobDetail
	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.get_job_detail", dbAttrs, func(ctx context.Context) error {
		row := s.pool.QueryRow(ctx, `
			SELECT job_id, owner_id, total, pending, in_progress, done, failed, status, version, started_at, ended_at, updated_at
			FROM upload_jobs
			WHERE job_id = $1`, jobID)

		job, err := scanJob(row)
		if err != nil {
			return err
		}

		rows, err := s.pool.Query(ctx, `
			SELECT item_id, job_id, owner_id, name, size, content_type, bucket, object_key, status, created_at, started_at, completed_at, updated_at
			FROM upload_items
			WHERE job_id = $1
			ORDER BY item_id`, jobID)
		if err != nil {
			return fmt.Errorf("query items: %w", err)
		}
		defer rows.Close()

		var items []*uploads.Item
		for rows.Next() {
			item, err := scanItem(rows)
			if err != nil {
				return err
			}
			items = append(items, item)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate items: %w", err)
		}

		detail = &uploads.JobDetail{Job: job, Items: items}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func scanJob(row pgx.Row) (*uploads.Job, error) {
	var (
		jobID                              uuid.UUID
		ownerID, status                    string
		total, pending, inProg, done, fail int
		version                            int64
		startedAt, updatedAt               time.Time
		endedAt                            *time.Time
	)
	err := row.Scan(&jobID, &ownerID, &total, &pending, &inProg, &done, &fail,
		&status, &version, &startedAt, &endedAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, uploads.ErrJobNotFound
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}

	return uploads.ReconstructJob(
		jobID, ownerID, total,
		uploads.ReconstructJobCounters(pending, inProg, done, fail),
		uploads.ParseJobStatus(status), version,
		startedAt, timeOrZero(endedAt), updatedAt,
	), nil
}

func scanItem(row pgx.Row) (*uploads.Item, error) {
	var (
		itemID, jobID uuid.UUID

		ownerID, name, contentType, bucket, objKey, status string

		size                   int64
		startedAt, completedAt *time.Time
		createdAt, updatedAt   time.Time
	)
	err := row.Scan(&itemID, &jobID, &ownerID, &name, &size, &contentType,
		&bucket, &objKey, &status, &createdAt, &startedAt, &completedAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, uploads.ErrItemNotFound
		}
		return nil, fmt.Errorf("scan item: %w", err)
	}

	return uploads.ReconstructItem(
		itemID, jobID, ownerID, name, size, contentType, bucket, objKey,
		uploads.ParseItemStatus(status),
		createdAt, timeOrZero(startedAt), timeOrZero(completedAt), updatedAt,
	), nil
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
