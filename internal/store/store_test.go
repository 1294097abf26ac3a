package store_test

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/logdigest/internal/store"
	"github.com/kiranshivaraju/logdigest/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// migrationsDir returns the absolute path to the migrations directory.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool + cleanup.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("logdigest_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	err = store.RunMigrations(connStr, migrationsDir())
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

// defaultTenantID returns the UUID of the seeded default tenant.
func defaultTenantID(t *testing.T, s store.Store) uuid.UUID {
	t.Helper()
	tenant, err := s.GetDefaultTenant(context.Background())
	require.NoError(t, err)
	return tenant.ID
}

// --- Tenant Tests ---

func TestGetDefaultTenant(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	tenant, err := s.GetDefaultTenant(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "default", tenant.Name)
	assert.NotEqual(t, uuid.Nil, tenant.ID)
}

// --- API Key Tests ---

func TestAPIKey_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)

	now := time.Now().UTC().Truncate(time.Microsecond)
	key := &models.APIKey{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Name:      "test-key",
		KeyHash:   "bcrypt-hash-here",
		KeyPrefix: "ld_abcd",
		Scopes:    []string{"ingest", "read"},
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.CreateAPIKey(ctx, key)
	require.NoError(t, err)

	keys, err := s.GetAPIKeyByPrefix(ctx, "ld_abcd")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, key.ID, keys[0].ID)
	assert.Equal(t, "test-key", keys[0].Name)
}

func TestAPIKey_List(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)
	now := time.Now().UTC().Truncate(time.Microsecond)

	for i := 0; i < 3; i++ {
		err := s.CreateAPIKey(ctx, &models.APIKey{
			ID:        uuid.New(),
			TenantID:  tenantID,
			Name:      "key-" + uuid.NewString()[:4],
			KeyHash:   "hash-" + uuid.NewString()[:4],
			KeyPrefix: "ld_" + uuid.NewString()[:4],
			Scopes:    []string{"read"},
			CreatedAt: now,
			UpdatedAt: now,
		})
		require.NoError(t, err)
	}

	keys, err := s.ListAPIKeys(ctx, tenantID)
	require.NoError(t, err)
	assert.Len(t, keys, 3)
}

func TestAPIKey_Revoke(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)
	now := time.Now().UTC().Truncate(time.Microsecond)

	key := &models.APIKey{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Name:      "revoke-me",
		KeyHash:   "hash",
		KeyPrefix: "ld_revk",
		Scopes:    []string{"read"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateAPIKey(ctx, key))

	err := s.RevokeAPIKey(ctx, key.ID, tenantID)
	require.NoError(t, err)

	keys, err := s.ListAPIKeys(ctx, tenantID)
	require.NoError(t, err)
	assert.Empty(t, keys)

	keys, err = s.GetAPIKeyByPrefix(ctx, "ld_revk")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestAPIKey_RevokeNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	err := s.RevokeAPIKey(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAPIKey_UpdateLastUsed(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)
	now := time.Now().UTC().Truncate(time.Microsecond)

	key := &models.APIKey{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Name:      "usage-key",
		KeyHash:   "hash",
		KeyPrefix: "ld_used",
		Scopes:    []string{"read"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateAPIKey(ctx, key))

	err := s.UpdateAPIKeyLastUsed(ctx, key.ID)
	require.NoError(t, err)

	keys, err := s.GetAPIKeyByPrefix(ctx, "ld_used")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.NotNil(t, keys[0].LastUsedAt)
}

func TestAPIKey_DuplicateID(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)
	now := time.Now().UTC().Truncate(time.Microsecond)

	id := uuid.New()
	key := &models.APIKey{
		ID: id, TenantID: tenantID, Name: "dup1", KeyHash: "h1", KeyPrefix: "ld_dup1",
		Scopes: []string{"read"}, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.CreateAPIKey(ctx, key))

	key2 := &models.APIKey{
		ID: id, TenantID: tenantID, Name: "dup2", KeyHash: "h2", KeyPrefix: "ld_dup2",
		Scopes: []string{"read"}, CreatedAt: now, UpdatedAt: now,
	}
	err := s.CreateAPIKey(ctx, key2)
	assert.ErrorIs(t, err, store.ErrDuplicateKey)
}

// --- Job Tests ---

func TestJob_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)
	now := time.Now().UTC().Truncate(time.Microsecond)

	job := &models.Job{
		ID: uuid.New(), TenantID: tenantID, Type: "batch_ingest",
		Status: models.JobStatusPending, CreatedAt: now, UpdatedAt: now,
	}
	err := s.CreateJob(ctx, job)
	require.NoError(t, err)

	got, err := s.GetJob(ctx, job.ID, tenantID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, got.Status)
	assert.Nil(t, got.StartedAt)
}

func TestJob_GetNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	_, err := s.GetJob(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestJob_MarkRunning(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)
	now := time.Now().UTC().Truncate(time.Microsecond)

	job := &models.Job{
		ID: uuid.New(), TenantID: tenantID, Type: "batch_ingest",
		Status: models.JobStatusPending, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.CreateJob(ctx, job))

	err := s.MarkJobRunning(ctx, job.ID)
	require.NoError(t, err)

	got, err := s.GetJob(ctx, job.ID, tenantID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusRunning, got.Status)
	assert.NotNil(t, got.StartedAt)
}

func TestJob_MarkCompleted(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)
	now := time.Now().UTC().Truncate(time.Microsecond)

	job := &models.Job{
		ID: uuid.New(), TenantID: tenantID, Type: "batch_ingest",
		Status: models.JobStatusPending, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.CreateJob(ctx, job))
	require.NoError(t, s.MarkJobRunning(ctx, job.ID))

	analysisIDs := []string{uuid.NewString(), uuid.NewString()}
	err := s.MarkJobCompleted(ctx, job.ID, analysisIDs)
	require.NoError(t, err)

	got, err := s.GetJob(ctx, job.ID, tenantID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)
	assert.ElementsMatch(t, analysisIDs, got.AnalysisIDs)
}

func TestJob_MarkFailed(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)
	now := time.Now().UTC().Truncate(time.Microsecond)

	job := &models.Job{
		ID: uuid.New(), TenantID: tenantID, Type: "batch_ingest",
		Status: models.JobStatusPending, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.CreateJob(ctx, job))
	require.NoError(t, s.MarkJobRunning(ctx, job.ID))

	err := s.MarkJobFailed(ctx, job.ID, "timeout")
	require.NoError(t, err)

	got, err := s.GetJob(ctx, job.ID, tenantID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.NotNil(t, got.CompletedAt)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "timeout", *got.ErrorMessage)
}

func TestJob_InvalidTransition(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)
	now := time.Now().UTC().Truncate(time.Microsecond)

	job := &models.Job{
		ID: uuid.New(), TenantID: tenantID, Type: "batch_ingest",
		Status: models.JobStatusPending, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.CreateJob(ctx, job))

	err := s.MarkJobCompleted(ctx, job.ID, nil) // pending -> completed is invalid
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid job status transition")
}

func TestJob_MarkRunningNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	err := s.MarkJobRunning(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// --- Analysis Result Tests ---

func TestAnalysisResult_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)
	now := time.Now().UTC().Truncate(time.Microsecond)

	result := models.AnalysisResult{
		AnalysisID: uuid.NewString(),
		Summary:    "3 clusters found",
		Clusters: []models.Cluster{
			{Signature: "sig-a", Count: 4, LevelRank: 3, RepresentativeLog: "boom", Timestamps: []time.Time{now}},
		},
		TotalLogsProcessed: 10,
		TotalClustersFound: 1,
		ProcessedAt:        now,
	}

	err := s.CreateAnalysisResult(ctx, tenantID, result)
	require.NoError(t, err)

	got, err := s.GetAnalysisResult(ctx, tenantID, result.AnalysisID)
	require.NoError(t, err)
	assert.Equal(t, result.AnalysisID, got.AnalysisID)
	assert.Equal(t, result.Summary, got.Summary)
	require.Len(t, got.Clusters, 1)
	assert.Equal(t, "sig-a", got.Clusters[0].Signature)
}

func TestAnalysisResult_GetNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	_, err := s.GetAnalysisResult(context.Background(), uuid.New(), uuid.NewString())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAnalysisResult_ListRecent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)
	now := time.Now().UTC().Truncate(time.Microsecond)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.CreateAnalysisResult(ctx, tenantID, models.AnalysisResult{
			AnalysisID:          uuid.NewString(),
			Summary:             "summary",
			TotalLogsProcessed:  5,
			TotalClustersFound:  0,
			ProcessedAt:         now,
		}))
	}

	results, err := s.ListRecentAnalysisResults(ctx, tenantID, now.Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

// --- Cluster Tests ---

func TestCluster_UpsertInsert(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)
	now := time.Now().UTC().Truncate(time.Microsecond)

	err := s.UpsertClusters(ctx, tenantID, []models.Cluster{
		{Signature: "fp-abc123", Count: 5, LevelRank: 3, RepresentativeLog: "NullPointerException at line 42", Timestamps: []time.Time{now}},
	})
	require.NoError(t, err)

	records, total, err := s.ListClusters(ctx, store.ClusterFilter{TenantID: tenantID, Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, records, 1)
	assert.Equal(t, "fp-abc123", records[0].Signature)
	assert.Equal(t, 5, records[0].TotalCount)
}

func TestCluster_UpsertMergesRunningTotal(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)
	now := time.Now().UTC().Truncate(time.Microsecond)

	require.NoError(t, s.UpsertClusters(ctx, tenantID, []models.Cluster{
		{Signature: "fp-merge", Count: 3, LevelRank: 3, RepresentativeLog: "first error", Timestamps: []time.Time{now}},
	}))

	later := now.Add(5 * time.Minute)
	require.NoError(t, s.UpsertClusters(ctx, tenantID, []models.Cluster{
		{Signature: "fp-merge", Count: 7, LevelRank: 3, RepresentativeLog: "second error", Timestamps: []time.Time{later}},
	}))

	records, _, err := s.ListClusters(ctx, store.ClusterFilter{TenantID: tenantID, Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 10, records[0].TotalCount) // 3 + 7
}

func TestCluster_GetByID(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)
	now := time.Now().UTC().Truncate(time.Microsecond)

	require.NoError(t, s.UpsertClusters(ctx, tenantID, []models.Cluster{
		{Signature: "fp-get", Count: 1, LevelRank: 2, RepresentativeLog: "warn msg", Timestamps: []time.Time{now}},
	}))

	records, _, err := s.ListClusters(ctx, store.ClusterFilter{TenantID: tenantID, Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, records, 1)

	got, err := s.GetCluster(ctx, tenantID, records[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "fp-get", got.Signature)
}

func TestCluster_GetNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	_, err := s.GetCluster(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCluster_ListWithLevelFilter(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)
	now := time.Now().UTC().Truncate(time.Microsecond)

	require.NoError(t, s.UpsertClusters(ctx, tenantID, []models.Cluster{
		{Signature: "fp-error", Count: 1, LevelRank: 3, RepresentativeLog: "ERROR msg", Timestamps: []time.Time{now}},
		{Signature: "fp-warn", Count: 1, LevelRank: 2, RepresentativeLog: "WARN msg", Timestamps: []time.Time{now}},
	}))

	records, total, err := s.ListClusters(ctx, store.ClusterFilter{
		TenantID: tenantID, LevelRank: 3, HasLevel: true, Page: 1, Limit: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, records, 1)
	assert.Equal(t, 3, records[0].LevelRank)
}

// --- Ping Test ---

func TestPing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	err := s.Ping(context.Background())
	assert.NoError(t, err)
}
