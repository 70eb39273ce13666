package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/upload-armada/internal/domain/uploads"
	"github.com/ahrav/upload-armada/internal/infra/storage"
)

var _ uploads.ItemRepository = (*ItemStore)(nil)

// ItemStore provides persistent storage for upload items in PostgreSQL.
type ItemStore struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

// NewItemStore creates a new postgres-backed item store.
func NewItemStore(pool *pgxpool.Pool, tracer trace.Tracer) *ItemStore {
	return &ItemStore{pool: pool, tracer: tracer}
}

// GetItem retrieves an item by ID.
func (s *ItemStore) GetItem(ctx context.Context, itemID uuid.UUID) (*uploads.Item, error) {
	dbAttrs := []attribute.KeyValue{attribute.String("item_id", itemID.String())}

	var item *uploads.Item
	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.get_item", dbAttrs, func(ctx context.Context) error {
		row := s.pool.QueryRow(ctx, `
			SELECT item_id, job_id, owner_id, name, size, content_type, bucket, object_key, status, created_at, started_at, completed_at, updated_at
			FROM upload_items
			WHERE item_id = $1`, itemID)

		var err error
		item, err = scanItem(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// TransitionItem conditionally moves an item to a new status in a single
// statement. The row is only written when its current status is one of the
// allowed sources, which makes the transition the idempotency gate: a
// replayed request finds the row already moved and gets a rejection instead
// of a second write.
func (s *ItemStore) TransitionItem(
	ctx context.Context,
	itemID uuid.UUID,
	allowed []uploads.ItemStatus,
	to uploads.ItemStatus,
) (uploads.ItemStatus, error) {
	dbAttrs := []attribute.KeyValue{
		attribute.String("item_id", itemID.String()),
		attribute.String("to_status", to.String()),
	}

	allowedStrs := make([]string, len(allowed))
	for i, st := range allowed {
		allowedStrs[i] = st.String()
	}

	var prev uploads.ItemStatus
	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.transition_item", dbAttrs, func(ctx context.Context) error {
		var prevStr string
		err := s.pool.QueryRow(ctx, `
			UPDATE upload_items u
			SET status = ($2::text)::upload_item_status,
			    started_at = CASE WHEN $2::text = 'IN_PROGRESS' THEN NOW() ELSE u.started_at END,
			    completed_at = CASE WHEN $2::text IN ('DONE', 'FAILED') THEN NOW() ELSE u.completed_at END,
			    updated_at = NOW()
			FROM (
				SELECT item_id, status AS prev_status
				FROM upload_items
				WHERE item_id = $1
				FOR UPDATE
			) old
			WHERE u.item_id = old.item_id AND old.prev_status::text = ANY($3::text[])
			RETURNING old.prev_status`,
			itemID, to.String(), allowedStrs,
		).Scan(&prevStr)

		if err == nil {
			prev = uploads.ParseItemStatus(prevStr)
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("transition item: %w", err)
		}

		// The condition failed. Distinguish a missing row from a
		// disallowed transition.
		var current string
		err = s.pool.QueryRow(ctx,
			`SELECT status FROM upload_items WHERE item_id = $1`, itemID,
		).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return uploads.ErrItemNotFound
		}
		if err != nil {
			return fmt.Errorf("read item status: %w", err)
		}

		return uploads.NewInvalidTransitionError(itemID, uploads.ParseItemStatus(current), to)
	})
	if err != nil {
		return uploads.ItemStatusUnspecified, err
	}
	return prev, nil
}
