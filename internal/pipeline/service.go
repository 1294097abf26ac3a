package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/logdigest/pkg/models"
)

// JobStore is the narrow persistence view Service needs: creating a job
// record and moving it through its lifecycle as the background run
// progresses.
type JobStore interface {
	CreateJob(ctx context.Context, job *models.Job) error
	MarkJobRunning(ctx context.Context, id uuid.UUID) error
	MarkJobCompleted(ctx context.Context, id uuid.UUID, analysisIDs []string) error
	MarkJobFailed(ctx context.Context, id uuid.UUID, errMsg string) error
	CreateAnalysisResult(ctx context.Context, tenantID uuid.UUID, result models.AnalysisResult) error
}

// JobCache receives the job's status at each lifecycle step. Service only
// writes to it; polling reads the job from the store.
type JobCache interface {
	SetJobStatus(ctx context.Context, jobID uuid.UUID, status string, ttl time.Duration) error
}

// Service wraps a Pipeline with the async job machinery: TriggerBatch
// returns a Job immediately and runs the pipeline in the background.
type Service struct {
	pipeline *Pipeline
	store    JobStore
	cache    JobCache
	jobTTL   time.Duration
}

// NewService builds a Service around an already-constructed Pipeline.
func NewService(p *Pipeline, st JobStore, ca JobCache, jobTTL time.Duration) *Service {
	if jobTTL <= 0 {
		jobTTL = 30 * time.Minute
	}
	return &Service{pipeline: p, store: st, cache: ca, jobTTL: jobTTL}
}

// TriggerBatch creates a pending Job for tenantID and dispatches the
// pipeline run in a background goroutine, returning immediately.
func (s *Service) TriggerBatch(ctx context.Context, tenantID uuid.UUID) (*models.Job, error) {
	job := &models.Job{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Type:      "batch_ingest",
		Status:    models.JobStatusPending,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}

	_ = s.cache.SetJobStatus(ctx, job.ID, models.JobStatusPending, s.jobTTL)

	go s.runBatch(job.ID, tenantID)

	return job, nil
}

// runBatch performs the pipeline run in a goroutine. It recovers from
// panics and always marks the job completed or failed.
func (s *Service) runBatch(jobID uuid.UUID, tenantID uuid.UUID) {
	ctx := context.Background()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in pipeline run", "error", r, "job_id", jobID)
			_ = s.store.MarkJobFailed(ctx, jobID, fmt.Sprintf("panic: %v", r))
			_ = s.cache.SetJobStatus(ctx, jobID, models.JobStatusFailed, s.jobTTL)
		}
	}()

	_ = s.store.MarkJobRunning(ctx, jobID)
	_ = s.cache.SetJobStatus(ctx, jobID, models.JobStatusRunning, s.jobTTL)

	results, err := s.pipeline.Run(ctx, tenantID.String())
	if err != nil {
		slog.Error("pipeline run failed", "error", err, "job_id", jobID)
		_ = s.store.MarkJobFailed(ctx, jobID, err.Error())
		_ = s.cache.SetJobStatus(ctx, jobID, models.JobStatusFailed, s.jobTTL)
		return
	}

	analysisIDs := make([]string, 0, len(results))
	for _, r := range results {
		if err := s.store.CreateAnalysisResult(ctx, tenantID, r); err != nil {
			slog.Error("persisting analysis result failed", "error", err, "job_id", jobID, "analysis_id", r.AnalysisID)
			_ = s.store.MarkJobFailed(ctx, jobID, fmt.Sprintf("persisting result %s: %v", r.AnalysisID, err))
			_ = s.cache.SetJobStatus(ctx, jobID, models.JobStatusFailed, s.jobTTL)
			return
		}
		analysisIDs = append(analysisIDs, r.AnalysisID)
	}

	_ = s.store.MarkJobCompleted(ctx, jobID, analysisIDs)
	_ = s.cache.SetJobStatus(ctx, jobID, models.JobStatusCompleted, s.jobTTL)
}
