package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/logdigest/internal/aggregator"
	mw "github.com/kiranshivaraju/logdigest/internal/api/middleware"
	"github.com/kiranshivaraju/logdigest/internal/api/response"
	"github.com/kiranshivaraju/logdigest/pkg/models"
)

const defaultDigestWindow = 24 * time.Hour
const defaultDigestLimit = 100

// RecentResultsLister supplies the AnalysisResults a digest is folded from.
type RecentResultsLister interface {
	ListRecentAnalysisResults(ctx context.Context, tenantID uuid.UUID, since time.Time, limit int) ([]models.AnalysisResult, error)
}

// NewGetDigestHandler returns an http.HandlerFunc for GET /api/v1/digest.
// The digest is computed on demand from recent AnalysisResults; it is never
// persisted as its own row. Supported query params: since (RFC3339,
// defaults to 24h ago), limit.
func NewGetDigestHandler(store RecentResultsLister, synth aggregator.Synthesizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		since := time.Now().UTC().Add(-defaultDigestWindow)
		if raw := r.URL.Query().Get("since"); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid since, expected RFC3339", nil)
				return
			}
			since = t
		}

		limit := defaultDigestLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid limit", nil)
				return
			}
			limit = n
		}

		results, err := store.ListRecentAnalysisResults(r.Context(), tenantID, since, limit)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch recent results", nil)
			return
		}

		digest := aggregator.Aggregate(r.Context(), results, synth)
		response.JSON(w, digest)
	}
}
