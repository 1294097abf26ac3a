package models

import (
	"time"

	"github.com/google/uuid"
)

// Cluster groups every event observed for one signature within a single
// batch. Count always equals len(Timestamps); RepresentativeLog and
// LevelRank are fixed by the first event and never mutated afterward.
type Cluster struct {
	Signature         string      `json:"signature"`
	Count             int         `json:"count"`
	LevelRank         int         `json:"level_rank"`
	RepresentativeLog string      `json:"representative_log"`
	Timestamps        []time.Time `json:"timestamps"`
}

// ClusterRecord is the persisted, cross-batch view of a signature: a
// running total across every batch ever seen for a tenant, plus the
// recurrence bookkeeping the HTTP API surfaces as an informational
// anomaly score. It never feeds back into the in-process Alert Filter.
type ClusterRecord struct {
	ID                uuid.UUID `db:"id"                  json:"id"`
	TenantID          uuid.UUID `db:"tenant_id"            json:"tenant_id"`
	Signature         string    `db:"signature"            json:"signature"`
	LevelRank         int       `db:"level_rank"           json:"level_rank"`
	RepresentativeLog string    `db:"representative_log"   json:"representative_log"`
	TotalCount        int       `db:"total_count"          json:"total_count"`
	BaselineRate      float64   `db:"baseline_rate"        json:"baseline_rate"`
	FirstSeenAt       time.Time `db:"first_seen_at"        json:"first_seen_at"`
	LastSeenAt        time.Time `db:"last_seen_at"         json:"last_seen_at"`
	CreatedAt         time.Time `db:"created_at"           json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"            json:"updated_at"`
}

// AnomalyScore is current_rate / baseline_rate, the recurrence signal
// SPEC_FULL's supplemented cluster-detail endpoint surfaces. It is
// informational only: it never substitutes for the Alert Filter's
// AlertDecision.
func (c ClusterRecord) AnomalyScore(currentRate float64) float64 {
	if c.BaselineRate <= 0 {
		return 0
	}
	return currentRate / c.BaselineRate
}
