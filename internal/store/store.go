package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/logdigest/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through
// here: it is the audit ledger behind the async job API, not a cache of
// the in-process pipeline's decisions.
type Store interface {
	Ping(ctx context.Context) error
	GetDefaultTenant(ctx context.Context) (*models.Tenant, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, tenantID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error

	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.Job, error)
	MarkJobRunning(ctx context.Context, id uuid.UUID) error
	MarkJobCompleted(ctx context.Context, id uuid.UUID, analysisIDs []string) error
	MarkJobFailed(ctx context.Context, id uuid.UUID, errMsg string) error

	CreateAnalysisResult(ctx context.Context, tenantID uuid.UUID, result models.AnalysisResult) error
	GetAnalysisResult(ctx context.Context, tenantID uuid.UUID, analysisID string) (*models.AnalysisResult, error)
	ListRecentAnalysisResults(ctx context.Context, tenantID uuid.UUID, since time.Time, limit int) ([]models.AnalysisResult, error)

	UpsertClusters(ctx context.Context, tenantID uuid.UUID, clusters []models.Cluster) error
	ListClusters(ctx context.Context, filter ClusterFilter) ([]models.ClusterRecord, int, error)
	GetCluster(ctx context.Context, tenantID uuid.UUID, id uuid.UUID) (*models.ClusterRecord, error)
}

// ClusterFilter scopes ListClusters. Zero-value Level/Since mean
// "unfiltered"; zero-value Page/Limit fall back to PostgresStore defaults.
type ClusterFilter struct {
	TenantID  uuid.UUID
	LevelRank int
	HasLevel  bool
	Since     time.Time
	Page      int
	Limit     int
}
