package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/kiranshivaraju/logdigest/internal/api/middleware"
	"github.com/kiranshivaraju/logdigest/internal/api/response"
	"github.com/kiranshivaraju/logdigest/internal/store"
	"github.com/kiranshivaraju/logdigest/pkg/models"
)

// ClusterLister lists a tenant's persisted cluster records.
type ClusterLister interface {
	ListClusters(ctx context.Context, filter store.ClusterFilter) ([]models.ClusterRecord, int, error)
}

// ClusterGetter fetches a single persisted cluster record.
type ClusterGetter interface {
	GetCluster(ctx context.Context, tenantID uuid.UUID, id uuid.UUID) (*models.ClusterRecord, error)
}

const defaultClusterPageLimit = 20

// NewListClustersHandler returns an http.HandlerFunc for GET /api/v1/clusters.
// Supported query params: level (int), since (RFC3339), page, limit.
func NewListClustersHandler(lister ClusterLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		filter := store.ClusterFilter{TenantID: tenantID, Page: 1, Limit: defaultClusterPageLimit}

		q := r.URL.Query()
		if lvl := q.Get("level"); lvl != "" {
			n, err := strconv.Atoi(lvl)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid level", nil)
				return
			}
			filter.LevelRank = n
			filter.HasLevel = true
		}
		if since := q.Get("since"); since != "" {
			t, err := time.Parse(time.RFC3339, since)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid since, expected RFC3339", nil)
				return
			}
			filter.Since = t
		}
		if page := q.Get("page"); page != "" {
			n, err := strconv.Atoi(page)
			if err != nil || n < 1 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid page", nil)
				return
			}
			filter.Page = n
		}
		if limit := q.Get("limit"); limit != "" {
			n, err := strconv.Atoi(limit)
			if err != nil || n < 1 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid limit", nil)
				return
			}
			filter.Limit = n
		}

		records, total, err := lister.ListClusters(r.Context(), filter)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list clusters", nil)
			return
		}

		response.Collection(w, records, response.PaginationMeta{
			Page:    filter.Page,
			Limit:   filter.Limit,
			Total:   total,
			HasNext: filter.Page*filter.Limit < total,
		})
	}
}

// clusterDetail embeds a ClusterRecord with its computed anomaly score.
type clusterDetail struct {
	models.ClusterRecord
	CurrentRate float64 `json:"current_rate"`
	AnomalyScore float64 `json:"anomaly_score"`
}

// NewGetClusterHandler returns an http.HandlerFunc for
// GET /api/v1/clusters/{clusterID}. The optional current_rate query
// parameter (events/hour) drives the informational anomaly score;
// omitted or zero yields a zero score.
func NewGetClusterHandler(getter ClusterGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		clusterID, err := uuid.Parse(chi.URLParam(r, "clusterID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid cluster ID", nil)
			return
		}

		record, err := getter.GetCluster(r.Context(), tenantID, clusterID)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Cluster not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch cluster", nil)
			return
		}

		var currentRate float64
		if raw := r.URL.Query().Get("current_rate"); raw != "" {
			currentRate, err = strconv.ParseFloat(raw, 64)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid current_rate", nil)
				return
			}
		}

		response.JSON(w, clusterDetail{
			ClusterRecord: *record,
			CurrentRate:   currentRate,
			AnomalyScore:  record.AnomalyScore(currentRate),
		})
	}
}
