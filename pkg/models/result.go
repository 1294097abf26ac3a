package models

import "time"

// AnalysisResult is the output of clustering + filtering one batch.
type AnalysisResult struct {
	AnalysisID          string    `json:"analysis_id"`
	Summary             string    `json:"summary"`
	Clusters            []Cluster `json:"clusters"`
	TotalLogsProcessed  int       `json:"total_logs_processed"`
	TotalClustersFound  int       `json:"total_clusters_found"`
	ProcessedAt         time.Time `json:"processed_at"`
}

// Digest has the same shape as AnalysisResult; it is the output of folding
// several AnalysisResults together. AnalysisID is
// "consolidated-digest" + the concatenated input IDs.
type Digest AnalysisResult
