package mlclient

// ClusterDocumentsRequest — параметры кластеризации документов владельца.
type ClusterDocumentsRequest struct {
	UserID         string   `json:"user_id"`
	DocumentIDs    []string `json:"document_ids,omitempty"`
	ForceRecluster bool     `json:"force_recluster,omitempty"`
}

type ClusterInfo struct {
	ClusterID int      `json:"cluster_id"`
	Label     string   `json:"label"`
	Size      int      `json:"size"`
	Keywords  []string `json:"keywords"`
	CreatedAt *string  `json:"created_at,omitempty"`
}

type ClusterResult struct {
	Success           bool          `json:"success"`
	UserID            string        `json:"user_id"`
	TotalDocuments    int           `json:"total_documents"`
	TotalClusters     int           `json:"total_clusters,omitempty"`
	NumClusters       int           `json:"num_clusters,omitempty"`
	NumOutliers       int           `json:"num_outliers,omitempty"`
	OutlierPercentage float64       `json:"outlier_percentage,omitempty"`
	Clusters          []ClusterInfo `json:"clusters"`
}

// ExtractTopicsRequest — параметры тематического моделирования.
type ExtractTopicsRequest struct {
	UserID      string   `json:"user_id"`
	NumTopics   int      `json:"num_topics,omitempty"`
	DocumentIDs []string `json:"document_ids,omitempty"`
}

type TopicInfo struct {
	TopicID       int      `json:"topic_id"`
	Label         string   `json:"label"`
	Keywords      []string `json:"keywords"`
	DocumentCount int      `json:"document_count"`
}

type TopicsResult struct {
	Success        bool        `json:"success"`
	UserID         string      `json:"user_id"`
	TotalDocuments int         `json:"total_documents"`
	NumTopics      int         `json:"num_topics"`
	NumOutliers    int         `json:"num_outliers"`
	Topics         []TopicInfo `json:"topics"`
}

// RecommendSimilarRequest — параметры подбора похожих документов.
type RecommendSimilarRequest struct {
	DocumentID string `json:"document_id"`
	TopK       int    `json:"top_k,omitempty"`
	UserID     string `json:"user_id,omitempty"`
}

type RecommendationInfo struct {
	DocumentID      string  `json:"document_id"`
	Filename        string  `json:"filename"`
	SimilarityScore float64 `json:"similarity_score"`
	Rank            int     `json:"rank"`
}

type RecommendationsResult struct {
	Success         bool                 `json:"success"`
	DocumentID      string               `json:"document_id"`
	Recommendations []RecommendationInfo `json:"recommendations"`
}

// UpdateVisualizationRequest — параметры пересчёта карты документов.
type UpdateVisualizationRequest struct {
	UserID      string `json:"user_id"`
	ForceUpdate bool   `json:"force_update,omitempty"`
}

type VisualizationPoint struct {
	DocumentID   string  `json:"document_id"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	ClusterID    int     `json:"cluster_id"`
	ClusterLabel string  `json:"cluster_label"`
	Filename     string  `json:"filename"`
}

type VisualizationResult struct {
	Success     bool                 `json:"success"`
	UserID      string               `json:"user_id"`
	TotalPoints int                  `json:"total_points"`
	Points      []VisualizationPoint `json:"points"`
}

// ServiceStatus — ответ действия status.
type ServiceStatus struct {
	Service  string   `json:"service"`
	Version  string   `json:"version"`
	Status   string   `json:"status"`
	Features []string `json:"features"`
}
