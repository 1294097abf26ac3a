package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/logdigest/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Tenants ---

func (s *PostgresStore) GetDefaultTenant(ctx context.Context) (*models.Tenant, error) {
	var t models.Tenant
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, loki_org_id, created_at, updated_at FROM tenants WHERE name = 'default' LIMIT 1`,
	).Scan(&t.ID, &t.Name, &t.LokiOrgID, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get default tenant: %w", err)
	}
	return &t, nil
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.TenantID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, tenant_id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.TenantID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context, tenantID uuid.UUID) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE tenant_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.TenantID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`, id, tenantID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Jobs ---

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, tenant_id, type, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		job.ID, job.TenantID, job.Type, job.Status, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.Job, error) {
	var j models.Job
	err := s.pool.QueryRow(ctx,
		`SELECT id, tenant_id, type, status, analysis_ids, error_message, started_at, completed_at, created_at, updated_at
		 FROM jobs WHERE id = $1 AND tenant_id = $2`, id, tenantID,
	).Scan(&j.ID, &j.TenantID, &j.Type, &j.Status, &j.AnalysisIDs, &j.ErrorMessage,
		&j.StartedAt, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &j, nil
}

var validTransitions = map[string][]string{
	models.JobStatusPending: {models.JobStatusRunning},
	models.JobStatusRunning: {models.JobStatusCompleted, models.JobStatusFailed},
}

func (s *PostgresStore) transitionJob(ctx context.Context, id uuid.UUID, status string, mutate func(args []any, argIdx int) (string, []any)) error {
	var currentStatus string
	err := s.pool.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1`, id).Scan(&currentStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get job status: %w", err)
	}

	valid := false
	for _, allowed := range validTransitions[currentStatus] {
		if allowed == status {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid job status transition: %s -> %s", currentStatus, status)
	}

	now := time.Now().UTC()
	query := `UPDATE jobs SET status = $2, updated_at = $3`
	args := []any{id, status, now}
	argIdx := 4

	if status == models.JobStatusRunning {
		query += fmt.Sprintf(", started_at = $%d", argIdx)
		args = append(args, now)
		argIdx++
	}
	if status == models.JobStatusCompleted || status == models.JobStatusFailed {
		query += fmt.Sprintf(", completed_at = $%d", argIdx)
		args = append(args, now)
		argIdx++
	}
	if mutate != nil {
		var extra string
		extra, args = mutate(args, argIdx)
		query += extra
	}

	query += " WHERE id = $1"
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkJobRunning(ctx context.Context, id uuid.UUID) error {
	return s.transitionJob(ctx, id, models.JobStatusRunning, nil)
}

func (s *PostgresStore) MarkJobCompleted(ctx context.Context, id uuid.UUID, analysisIDs []string) error {
	return s.transitionJob(ctx, id, models.JobStatusCompleted, func(args []any, argIdx int) (string, []any) {
		return fmt.Sprintf(", analysis_ids = $%d", argIdx), append(args, analysisIDs)
	})
}

func (s *PostgresStore) MarkJobFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	return s.transitionJob(ctx, id, models.JobStatusFailed, func(args []any, argIdx int) (string, []any) {
		return fmt.Sprintf(", error_message = $%d", argIdx), append(args, errMsg)
	})
}

// --- Analysis Results ---

func (s *PostgresStore) CreateAnalysisResult(ctx context.Context, tenantID uuid.UUID, result models.AnalysisResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal analysis result: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO analysis_results (id, tenant_id, analysis_id, summary, total_logs_processed, total_clusters_found, processed_at, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.New(), tenantID, result.AnalysisID, result.Summary, result.TotalLogsProcessed,
		result.TotalClustersFound, result.ProcessedAt, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("create analysis result: %w", err)
	}

	if err := s.UpsertClusters(ctx, tenantID, result.Clusters); err != nil {
		return fmt.Errorf("upsert clusters for analysis result: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAnalysisResult(ctx context.Context, tenantID uuid.UUID, analysisID string) (*models.AnalysisResult, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM analysis_results WHERE tenant_id = $1 AND analysis_id = $2`, tenantID, analysisID,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis result: %w", err)
	}

	var r models.AnalysisResult
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, fmt.Errorf("unmarshal analysis result: %w", err)
	}
	return &r, nil
}

func (s *PostgresStore) ListRecentAnalysisResults(ctx context.Context, tenantID uuid.UUID, since time.Time, limit int) ([]models.AnalysisResult, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT payload FROM analysis_results
		 WHERE tenant_id = $1 AND processed_at >= $2
		 ORDER BY processed_at DESC LIMIT $3`, tenantID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent analysis results: %w", err)
	}
	defer rows.Close()

	var results []models.AnalysisResult
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan analysis result: %w", err)
		}
		var r models.AnalysisResult
		if err := json.Unmarshal(payload, &r); err != nil {
			return nil, fmt.Errorf("unmarshal analysis result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// --- Clusters ---

// UpsertClusters folds each batch-scoped Cluster into the tenant's
// running ClusterRecord: first occurrence of a signature seeds the row,
// later occurrences add to its running total.
func (s *PostgresStore) UpsertClusters(ctx context.Context, tenantID uuid.UUID, clusters []models.Cluster) error {
	if len(clusters) == 0 {
		return nil
	}

	now := time.Now().UTC()
	for _, c := range clusters {
		firstSeen, lastSeen := now, now
		if len(c.Timestamps) > 0 {
			firstSeen, lastSeen = c.Timestamps[0], c.Timestamps[0]
			for _, ts := range c.Timestamps {
				if ts.Before(firstSeen) {
					firstSeen = ts
				}
				if ts.After(lastSeen) {
					lastSeen = ts
				}
			}
		}

		_, err := s.pool.Exec(ctx,
			`INSERT INTO clusters (id, tenant_id, signature, level_rank, representative_log, total_count, first_seen_at, last_seen_at, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
			 ON CONFLICT (tenant_id, signature) DO UPDATE SET
			   total_count = clusters.total_count + EXCLUDED.total_count,
			   last_seen_at = GREATEST(clusters.last_seen_at, EXCLUDED.last_seen_at),
			   updated_at = EXCLUDED.updated_at`,
			uuid.New(), tenantID, c.Signature, c.LevelRank, c.RepresentativeLog, c.Count, firstSeen, lastSeen, now)
		if err != nil {
			return fmt.Errorf("upsert cluster %q: %w", c.Signature, err)
		}
	}
	return nil
}

func (s *PostgresStore) ListClusters(ctx context.Context, filter ClusterFilter) ([]models.ClusterRecord, int, error) {
	conditions := []string{"tenant_id = $1"}
	args := []any{filter.TenantID}
	argIdx := 2

	if filter.HasLevel {
		conditions = append(conditions, fmt.Sprintf("level_rank = $%d", argIdx))
		args = append(args, filter.LevelRank)
		argIdx++
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, fmt.Sprintf("last_seen_at >= $%d", argIdx))
		args = append(args, filter.Since)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM clusters WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count clusters: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	query := fmt.Sprintf(
		`SELECT id, tenant_id, signature, level_rank, representative_log, total_count, first_seen_at, last_seen_at, created_at, updated_at
		 FROM clusters WHERE %s ORDER BY last_seen_at DESC LIMIT $%d OFFSET $%d`,
		where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list clusters: %w", err)
	}
	defer rows.Close()

	var records []models.ClusterRecord
	for rows.Next() {
		var c models.ClusterRecord
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Signature, &c.LevelRank, &c.RepresentativeLog,
			&c.TotalCount, &c.FirstSeenAt, &c.LastSeenAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan cluster: %w", err)
		}
		c.BaselineRate = baselineRate(c)
		records = append(records, c)
	}
	return records, total, rows.Err()
}

func (s *PostgresStore) GetCluster(ctx context.Context, tenantID uuid.UUID, id uuid.UUID) (*models.ClusterRecord, error) {
	var c models.ClusterRecord
	err := s.pool.QueryRow(ctx,
		`SELECT id, tenant_id, signature, level_rank, representative_log, total_count, first_seen_at, last_seen_at, created_at, updated_at
		 FROM clusters WHERE id = $1 AND tenant_id = $2`, id, tenantID,
	).Scan(&c.ID, &c.TenantID, &c.Signature, &c.LevelRank, &c.RepresentativeLog,
		&c.TotalCount, &c.FirstSeenAt, &c.LastSeenAt, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cluster: %w", err)
	}
	c.BaselineRate = baselineRate(c)
	return &c, nil
}

// baselineRate is total_count spread evenly over the cluster's observed
// lifetime, in events per hour. A cluster seen within the same hour uses
// that hour as its window rather than dividing by zero.
func baselineRate(c models.ClusterRecord) float64 {
	hours := c.LastSeenAt.Sub(c.FirstSeenAt).Hours()
	if hours < 1 {
		hours = 1
	}
	return float64(c.TotalCount) / hours
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
