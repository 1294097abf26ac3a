package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/kiranshivaraju/logdigest/internal/api/middleware"
	"github.com/kiranshivaraju/logdigest/internal/api/response"
	"github.com/kiranshivaraju/logdigest/internal/store"
	"github.com/kiranshivaraju/logdigest/pkg/models"
)

// BatchTrigger starts one asynchronous pipeline run for a tenant.
type BatchTrigger interface {
	TriggerBatch(ctx context.Context, tenantID uuid.UUID) (*models.Job, error)
}

// JobGetter looks up a previously triggered job.
type JobGetter interface {
	GetJob(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.Job, error)
}

// NewCreateBatchHandler returns an http.HandlerFunc for POST /api/v1/batches.
// It triggers one pipeline run and returns the job immediately; callers poll
// GET /api/v1/batches/{jobID} for the result.
func NewCreateBatchHandler(svc BatchTrigger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		job, err := svc.TriggerBatch(r.Context(), tenantID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to trigger batch", nil)
			return
		}

		response.Accepted(w, job)
	}
}

// NewGetBatchHandler returns an http.HandlerFunc for GET /api/v1/batches/{jobID}.
func NewGetBatchHandler(jobs JobGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid job ID", nil)
			return
		}

		job, err := jobs.GetJob(r.Context(), jobID, tenantID)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch job", nil)
			return
		}

		response.JSON(w, job)
	}
}
