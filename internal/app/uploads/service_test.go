package uploads

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/upload-armada/internal/domain/uploads"
	"github.com/ahrav/upload-armada/internal/infra/storage"
	"github.com/ahrav/upload-armada/internal/infra/storage/uploads/memory"
	"github.com/ahrav/upload-armada/pkg/common/logger"
)

type stubSigner struct {
	mu     sync.Mutex
	signed int
	err    error
}

func (s *stubSigner) SignUpload(_ context.Context, bucket, objectKey, _ string, ttl time.Duration) (uploads.WritePermission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return uploads.WritePermission{}, s.err
	}
	s.signed++
	return uploads.WritePermission{
		URL:       "https://store.internal/" + bucket + "/" + objectKey + "?token=stub",
		Method:    "PUT",
		ExpiresAt: time.Now().Add(ttl),
	}, nil
}

type testEnv struct {
	store     *memory.Store
	issuer    *BatchIssuer
	lifecycle *LifecycleService
	query     *StatusQueryService
	signer    *stubSigner
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.NewStore()
	log := logger.New(io.Discard, logger.LevelInfo, "test", nil)
	tracer := storage.NoOpTracer()
	sgnr := &stubSigner{}

	aggregator := NewJobAggregator(store, log, tracer)

	return &testEnv{
		store:     store,
		issuer:    NewBatchIssuer(store, sgnr, "uploads", 15*time.Minute, nil, log, tracer),
		lifecycle: NewLifecycleService(store, aggregator, log, tracer),
		query:     NewStatusQueryService(store, tracer),
		signer:    sgnr,
	}
}

func issueBatch(t *testing.T, env *testEnv, owner string, n int) BatchGrant {
	t.Helper()

	reqs := make([]ItemRequest, n)
	for i := range reqs {
		reqs[i] = ItemRequest{Name: "file.bin", Size: 1024, ContentType: "application/octet-stream"}
	}
	grant, err := env.issuer.IssueBatch(context.Background(), owner, reqs)
	require.NoError(t, err)
	return grant
}

func TestIssueBatch(t *testing.T) {
	env := newTestEnv(t)

	grant := issueBatch(t, env, "owner-1", 3)

	assert.NotEqual(t, uuid.Nil, grant.JobID)
	assert.Equal(t, uploads.JobStatusActive, grant.Status)
	assert.Equal(t, 3, grant.Total)
	require.Len(t, grant.Items, 3)
	for _, item := range grant.Items {
		assert.NotEqual(t, uuid.Nil, item.ItemID)
		require.NotNil(t, item.Permission)
		assert.Equal(t, "PUT", item.Permission.Method)
		assert.Empty(t, item.SignError)
	}
	assert.Equal(t, 3, env.signer.signed)

	detail, err := env.query.GetJobStatus(context.Background(), "owner-1", grant.JobID)
	require.NoError(t, err)
	assert.Equal(t, 3, detail.Job.Counters().Pending())
}

func TestIssueBatchValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.issuer.IssueBatch(ctx, "owner-1", nil)
	assert.ErrorIs(t, err, uploads.ErrInvalidRequest)

	_, err = env.issuer.IssueBatch(ctx, "owner-1", make([]ItemRequest, maxBatchSize+1))
	assert.ErrorIs(t, err, uploads.ErrInvalidRequest)

	_, err = env.issuer.IssueBatch(ctx, "owner-1", []ItemRequest{{Name: "", Size: 1}})
	assert.ErrorIs(t, err, uploads.ErrInvalidRequest)

	_, err = env.issuer.IssueBatch(ctx, "owner-1", []ItemRequest{{Name: "a", Size: -1}})
	assert.ErrorIs(t, err, uploads.ErrInvalidRequest)

	_, err = env.issuer.IssueBatch(ctx, "owner-1", []ItemRequest{{Name: "empty.bin", Size: 0}})
	assert.ErrorIs(t, err, uploads.ErrInvalidRequest)
}

func TestIssueBatchSignFailureKeepsJob(t *testing.T) {
	env := newTestEnv(t)
	env.signer.err = errors.New("keystore unavailable")

	grant := issueBatch(t, env, "owner-1", 2)

	for _, item := range grant.Items {
		assert.Nil(t, item.Permission)
		assert.NotEmpty(t, item.SignError)
	}

	// The job is still tracked so the client can fail the items.
	detail, err := env.query.GetJobStatus(context.Background(), "owner-1", grant.JobID)
	require.NoError(t, err)
	assert.Equal(t, 2, detail.Job.Counters().Pending())
}

func TestLifecycleAllItemsSucceed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	grant := issueBatch(t, env, "owner-1", 2)

	for _, item := range grant.Items {
		res, err := env.lifecycle.Begin(ctx, "owner-1", item.ItemID)
		require.NoError(t, err)
		assert.Equal(t, uploads.ItemStatusInProgress, res.ItemStatus)

		res, err = env.lifecycle.Complete(ctx, "owner-1", item.ItemID)
		require.NoError(t, err)
		assert.Equal(t, uploads.ItemStatusDone, res.ItemStatus)
	}

	detail, err := env.query.GetJobStatus(ctx, "owner-1", grant.JobID)
	require.NoError(t, err)
	assert.Equal(t, uploads.JobStatusCompleted, detail.Job.Status())
	assert.Equal(t, 2, detail.Job.Counters().Done())
	assert.False(t, detail.Job.EndedAt().IsZero())
}

func TestLifecycleMixedOutcome(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	grant := issueBatch(t, env, "owner-1", 3)

	// One completes, one fails mid-transfer, one is abandoned while pending.
	_, err := env.lifecycle.Begin(ctx, "owner-1", grant.Items[0].ItemID)
	require.NoError(t, err)
	_, err = env.lifecycle.Complete(ctx, "owner-1", grant.Items[0].ItemID)
	require.NoError(t, err)

	_, err = env.lifecycle.Begin(ctx, "owner-1", grant.Items[1].ItemID)
	require.NoError(t, err)
	_, err = env.lifecycle.Fail(ctx, "owner-1", grant.Items[1].ItemID)
	require.NoError(t, err)

	_, err = env.lifecycle.Fail(ctx, "owner-1", grant.Items[2].ItemID)
	require.NoError(t, err)

	detail, err := env.query.GetJobStatus(ctx, "owner-1", grant.JobID)
	require.NoError(t, err)
	assert.Equal(t, uploads.JobStatusPartiallyFailed, detail.Job.Status())
	assert.Equal(t, 1, detail.Job.Counters().Done())
	assert.Equal(t, 2, detail.Job.Counters().Failed())
	assert.True(t, detail.Job.Counters().IsBalanced(3))
}

func TestLifecycleReplayedCompleteCountsOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	grant := issueBatch(t, env, "owner-1", 1)
	itemID := grant.Items[0].ItemID

	_, err := env.lifecycle.Begin(ctx, "owner-1", itemID)
	require.NoError(t, err)
	_, err = env.lifecycle.Complete(ctx, "owner-1", itemID)
	require.NoError(t, err)

	// A retried completion is rejected at the item gate and never reaches
	// the counters.
	_, err = env.lifecycle.Complete(ctx, "owner-1", itemID)
	var ite *uploads.InvalidTransitionError
	require.ErrorAs(t, err, &ite)

	detail, err := env.query.GetJobStatus(ctx, "owner-1", grant.JobID)
	require.NoError(t, err)
	assert.Equal(t, 1, detail.Job.Counters().Done())
	assert.Equal(t, uploads.JobStatusCompleted, detail.Job.Status())
}

func TestLifecycleCompleteWithoutBeginRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	grant := issueBatch(t, env, "owner-1", 1)

	_, err := env.lifecycle.Complete(ctx, "owner-1", grant.Items[0].ItemID)
	var ite *uploads.InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, uploads.ItemStatusPending, ite.From)
}

func TestLifecycleNonOwnerSeesNotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	grant := issueBatch(t, env, "owner-1", 1)

	_, err := env.lifecycle.Begin(ctx, "owner-2", grant.Items[0].ItemID)
	assert.ErrorIs(t, err, uploads.ErrItemNotFound)

	_, err = env.query.GetJobStatus(ctx, "owner-2", grant.JobID)
	assert.ErrorIs(t, err, uploads.ErrJobNotFound)
}

func TestLifecycleUnknownItem(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.lifecycle.Begin(context.Background(), "owner-1", uuid.New())
	assert.ErrorIs(t, err, uploads.ErrItemNotFound)
}

func TestConcurrentTransitionsAggregateExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const total = 100
	grant := issueBatch(t, env, "owner-1", total)

	var wg sync.WaitGroup
	for i, item := range grant.Items {
		wg.Add(1)
		go func(i int, itemID uuid.UUID) {
			defer wg.Done()

			if _, err := env.lifecycle.Begin(ctx, "owner-1", itemID); err != nil {
				t.Error(err)
				return
			}
			if i%4 == 0 {
				if _, err := env.lifecycle.Fail(ctx, "owner-1", itemID); err != nil {
					t.Error(err)
				}
				return
			}
			if _, err := env.lifecycle.Complete(ctx, "owner-1", itemID); err != nil {
				t.Error(err)
			}
		}(i, item.ItemID)
	}
	wg.Wait()

	detail, err := env.query.GetJobStatus(ctx, "owner-1", grant.JobID)
	require.NoError(t, err)

	counters := detail.Job.Counters()
	assert.Equal(t, 0, counters.Outstanding())
	assert.Equal(t, 25, counters.Failed())
	assert.Equal(t, 75, counters.Done())
	assert.True(t, counters.IsBalanced(total))
	assert.Equal(t, uploads.JobStatusPartiallyFailed, detail.Job.Status())
	assert.False(t, detail.Job.EndedAt().IsZero())
}

func TestConcurrentBeginsOnOneItemAdmitOne(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	grant := issueBatch(t, env, "owner-1", 2)
	itemID := grant.Items[0].ItemID

	const racers = 16

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := env.lifecycle.Begin(ctx, "owner-1", itemID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			default:
				var ite *uploads.InvalidTransitionError
				if assert.ErrorAs(t, err, &ite) {
					rejected++
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, racers-1, rejected)

	detail, err := env.query.GetJobStatus(ctx, "owner-1", grant.JobID)
	require.NoError(t, err)
	assert.Equal(t, 1, detail.Job.Counters().InProgress())
	assert.Equal(t, 1, detail.Job.Counters().Pending())
	assert.True(t, detail.Job.Counters().IsBalanced(2))
}

func TestTransitionAfterJobFinalizedRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	grant := issueBatch(t, env, "owner-1", 1)
	itemID := grant.Items[0].ItemID

	_, err := env.lifecycle.Fail(ctx, "owner-1", itemID)
	require.NoError(t, err)

	// The item gate rejects first; the terminal job is never touched.
	_, err = env.lifecycle.Begin(ctx, "owner-1", itemID)
	var ite *uploads.InvalidTransitionError
	require.ErrorAs(t, err, &ite)

	detail, err := env.query.GetJobStatus(ctx, "owner-1", grant.JobID)
	require.NoError(t, err)
	assert.Equal(t, uploads.JobStatusPartiallyFailed, detail.Job.Status())
	assert.Equal(t, int64(1), detail.Job.Version())
}
