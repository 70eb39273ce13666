// Package uploads provides the batch upload endpoints.
package uploads

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/upload-armada/internal/api/errs"
	appuploads "github.com/ahrav/upload-armada/internal/app/uploads"
	"github.com/ahrav/upload-armada/internal/domain/uploads"
	"github.com/ahrav/upload-armada/pkg/common/logger"
	"github.com/ahrav/upload-armada/pkg/web"
)

// ownerHeader carries the identity of the calling principal. The gateway in
// front of this service authenticates the caller and injects the header.
const ownerHeader = "X-Owner-ID"

// Config contains the dependencies needed by the upload handlers.
type Config struct {
	Log       *logger.Logger
	Issuer    *appuploads.BatchIssuer
	Lifecycle *appuploads.LifecycleService
	Query     *appuploads.StatusQueryService
}

// Routes binds all the upload endpoints.
func Routes(app *web.App, cfg Config) {
	app.HandlerFunc(http.MethodPost, "", "/v1/batches", createBatch(cfg))
	app.HandlerFunc(http.MethodPut, "", "/v1/items/{item_id}/begin", transition(cfg, (*appuploads.LifecycleService).Begin))
	app.HandlerFunc(http.MethodPut, "", "/v1/items/{item_id}/complete", transition(cfg, (*appuploads.LifecycleService).Complete))
	app.HandlerFunc(http.MethodPut, "", "/v1/items/{item_id}/fail", transition(cfg, (*appuploads.LifecycleService).Fail))
	app.HandlerFunc(http.MethodGet, "", "/v1/jobs/{job_id}/status", jobStatus(cfg))
}

// batchItemRequest describes one file in a batch request.
type batchItemRequest struct {
	Name        string `json:"name" validate:"required,max=1024"`
	Size        int64  `json:"size" validate:"gt=0"`
	ContentType string `json:"content_type" validate:"max=255"`
}

// batchRequest represents the request payload for creating a batch.
type batchRequest struct {
	Items []batchItemRequest `json:"items" validate:"required,min=1,max=500,dive"`
}

// permissionResponse is the signed write permission handed to the client.
type permissionResponse struct {
	URL       string            `json:"url"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers,omitempty"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// batchItemResponse pairs an issued item with its permission.
type batchItemResponse struct {
	ItemID    string              `json:"item_id"`
	Name      string              `json:"name"`
	Bucket    string              `json:"bucket"`
	ObjectKey string              `json:"object_key"`
	Upload    *permissionResponse `json:"upload,omitempty"`
	SignError string              `json:"sign_error,omitempty"`
}

// batchResponse represents the response for creating a batch.
type batchResponse struct {
	JobID  string              `json:"job_id"`
	Status string              `json:"status"`
	Total  int                 `json:"total"`
	Items  []batchItemResponse `json:"items"`
}

// Encode implements the web.Encoder interface.
func (br batchResponse) Encode() ([]byte, string, error) {
	data, err := json.Marshal(br)
	if err != nil {
		return nil, "", err
	}
	return data, "application/json", nil
}

// HTTPStatus implements the web.HTTPStatusSetter interface.
func (br batchResponse) HTTPStatus() int { return http.StatusCreated }

// jobSummary reports a job's counters and derived status.
type jobSummary struct {
	JobID      string     `json:"job_id"`
	Status     string     `json:"status"`
	Total      int        `json:"total"`
	Pending    int        `json:"pending"`
	InProgress int        `json:"in_progress"`
	Done       int        `json:"done"`
	Failed     int        `json:"failed"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
}

// transitionResponse represents the response for an item transition.
type transitionResponse struct {
	ItemID string     `json:"item_id"`
	Status string     `json:"status"`
	Job    jobSummary `json:"job"`
}

// Encode implements the web.Encoder interface.
func (tr transitionResponse) Encode() ([]byte, string, error) {
	data, err := json.Marshal(tr)
	if err != nil {
		return nil, "", err
	}
	return data, "application/json", nil
}

// itemStatusResponse reports one item inside a job status response.
type itemStatusResponse struct {
	ItemID      string     `json:"item_id"`
	Name        string     `json:"name"`
	Size        int64      `json:"size"`
	ContentType string     `json:"content_type,omitempty"`
	ObjectKey   string     `json:"object_key"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// statusResponse represents the response for a job status query.
type statusResponse struct {
	Job   jobSummary           `json:"job"`
	Items []itemStatusResponse `json:"items"`
}

// Encode implements the web.Encoder interface.
func (sr statusResponse) Encode() ([]byte, string, error) {
	data, err := json.Marshal(sr)
	if err != nil {
		return nil, "", err
	}
	return data, "application/json", nil
}

func createBatch(cfg Config) web.HandlerFunc {
	return func(ctx context.Context, r *http.Request) web.Encoder {
		ownerID, encErr := owner(r)
		if encErr != nil {
			return encErr
		}

		var req batchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return errs.New(errs.InvalidArgument, err)
		}
		if err := errs.Check(req); err != nil {
			return errs.New(errs.InvalidArgument, err)
		}

		items := make([]appuploads.ItemRequest, len(req.Items))
		for i, it := range req.Items {
			items[i] = appuploads.ItemRequest{
				Name:        it.Name,
				Size:        it.Size,
				ContentType: it.ContentType,
			}
		}

		grant, err := cfg.Issuer.IssueBatch(ctx, ownerID, items)
		if err != nil {
			return mapError(err)
		}

		return toBatchResponse(grant)
	}
}

func transition(
	cfg Config,
	op func(*appuploads.LifecycleService, context.Context, string, uuid.UUID) (appuploads.TransitionResult, error),
) web.HandlerFunc {
	return func(ctx context.Context, r *http.Request) web.Encoder {
		ownerID, encErr := owner(r)
		if encErr != nil {
			return encErr
		}

		itemID, err := uuid.Parse(web.Param(r, "item_id"))
		if err != nil {
			return errs.Newf(errs.InvalidArgument, "invalid item id: %s", err)
		}

		res, err := op(cfg.Lifecycle, ctx, ownerID, itemID)
		if err != nil {
			return mapError(err)
		}

		return transitionResponse{
			ItemID: res.ItemID.String(),
			Status: res.ItemStatus.String(),
			Job:    toJobSummary(res.Job),
		}
	}
}

func jobStatus(cfg Config) web.HandlerFunc {
	return func(ctx context.Context, r *http.Request) web.Encoder {
		ownerID, encErr := owner(r)
		if encErr != nil {
			return encErr
		}

		jobID, err := uuid.Parse(web.Param(r, "job_id"))
		if err != nil {
			return errs.Newf(errs.InvalidArgument, "invalid job id: %s", err)
		}

		detail, err := cfg.Query.GetJobStatus(ctx, ownerID, jobID)
		if err != nil {
			return mapError(err)
		}

		resp := statusResponse{Job: toJobSummary(detail.Job)}
		for _, item := range detail.Items {
			resp.Items = append(resp.Items, itemStatusResponse{
				ItemID:      item.ItemID().String(),
				Name:        item.Name(),
				Size:        item.Size(),
				ContentType: item.ContentType(),
				ObjectKey:   item.ObjectKey(),
				Status:      item.Status().String(),
				CreatedAt:   item.CreatedAt(),
				StartedAt:   timePtr(item.StartedAt()),
				CompletedAt: timePtr(item.CompletedAt()),
			})
		}

		return resp
	}
}

// owner extracts the calling principal from the request headers.
func owner(r *http.Request) (string, web.Encoder) {
	ownerID := r.Header.Get(ownerHeader)
	if ownerID == "" {
		return "", errs.Newf(errs.Unauthenticated, "missing %s header", ownerHeader)
	}
	return ownerID, nil
}

// mapError converts domain errors into API errors.
func mapError(err error) web.Encoder {
	var ite *uploads.InvalidTransitionError

	switch {
	case errors.Is(err, uploads.ErrJobNotFound), errors.Is(err, uploads.ErrItemNotFound):
		return errs.New(errs.NotFound, err)
	case errors.As(err, &ite):
		return errs.New(errs.FailedPrecondition, err)
	case errors.Is(err, uploads.ErrContention):
		return errs.New(errs.Aborted, err)
	case errors.Is(err, uploads.ErrInvalidRequest):
		return errs.New(errs.InvalidArgument, err)
	default:
		return errs.New(errs.Internal, err)
	}
}

func toBatchResponse(grant appuploads.BatchGrant) batchResponse {
	resp := batchResponse{
		JobID:  grant.JobID.String(),
		Status: grant.Status.String(),
		Total:  grant.Total,
	}

	for _, item := range grant.Items {
		ir := batchItemResponse{
			ItemID:    item.ItemID.String(),
			Name:      item.Name,
			Bucket:    item.Bucket,
			ObjectKey: item.ObjectKey,
			SignError: item.SignError,
		}
		if item.Permission != nil {
			ir.Upload = &permissionResponse{
				URL:       item.Permission.URL,
				Method:    item.Permission.Method,
				Headers:   item.Permission.Headers,
				ExpiresAt: item.Permission.ExpiresAt,
			}
		}
		resp.Items = append(resp.Items, ir)
	}

	return resp
}

func toJobSummary(job *uploads.Job) jobSummary {
	counters := job.Counters()
	return jobSummary{
		JobID:      job.JobID().String(),
		Status:     job.Status().String(),
		Total:      job.Total(),
		Pending:    counters.Pending(),
		InProgress: counters.InProgress(),
		Done:       counters.Done(),
		Failed:     counters.Failed(),
		StartedAt:  job.StartedAt(),
		EndedAt:    timePtr(job.EndedAt()),
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
