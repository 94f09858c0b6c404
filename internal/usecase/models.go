package usecase

import (
	"time"

	"github.com/DRSN-tech/ml-service/internal/domain"
	"github.com/google/uuid"
)

// CLUSTERING

// ClusterDocumentsReq — запрос на кластеризацию документов пользователя.
type ClusterDocumentsReq struct {
	UserID         string   `json:"user_id"`
	DocumentIDs    []string `json:"document_ids"`
	ForceRecluster bool     `json:"force_recluster"`
}

// ClusterInfo — краткое описание кластера в ответе кластеризации.
type ClusterInfo struct {
	ClusterID int      `json:"cluster_id"`
	Label     string   `json:"label"`
	Size      int      `json:"size"`
	Keywords  []string `json:"keywords"`
}

type ClusterDocumentsRes struct {
	Success           bool          `json:"success"`
	UserID            string        `json:"user_id"`
	TotalDocuments    int           `json:"total_documents"`
	NumClusters       int           `json:"num_clusters"`
	NumOutliers       int           `json:"num_outliers"`
	OutlierPercentage float64       `json:"outlier_percentage"`
	Clusters          []ClusterInfo `json:"clusters"`
}

type GetClustersReq struct {
	UserID string `json:"user_id"`
}

// StoredClusterInfo — кластер из хранилища, с временем создания.
type StoredClusterInfo struct {
	ClusterID int      `json:"cluster_id"`
	Label     string   `json:"label"`
	Size      int      `json:"size"`
	Keywords  []string `json:"keywords"`
	CreatedAt *string  `json:"created_at"`
}

type GetClustersRes struct {
	Success       bool                `json:"success"`
	UserID        string              `json:"user_id"`
	TotalClusters int                 `json:"total_clusters"`
	Clusters      []StoredClusterInfo `json:"clusters"`
}

// TOPIC MODELING

type ExtractTopicsReq struct {
	UserID      string   `json:"user_id"`
	NumTopics   int      `json:"num_topics"`
	DocumentIDs []string `json:"document_ids"`
}

type TopicInfo struct {
	TopicID       int      `json:"topic_id"`
	Label         string   `json:"label"`
	Keywords      []string `json:"keywords"`
	DocumentCount int      `json:"document_count"`
}

type ExtractTopicsRes struct {
	Success        bool        `json:"success"`
	UserID         string      `json:"user_id"`
	TotalDocuments int         `json:"total_documents"`
	NumTopics      int         `json:"num_topics"`
	NumOutliers    int         `json:"num_outliers"`
	Topics         []TopicInfo `json:"topics"`
}

// RECOMMENDATIONS

type RecommendSimilarReq struct {
	DocumentID string `json:"document_id"`
	TopK       int    `json:"top_k"`
	UserID     string `json:"user_id"`
}

type RecommendationInfo struct {
	DocumentID      string  `json:"document_id"`
	Filename        string  `json:"filename"`
	SimilarityScore float64 `json:"similarity_score"`
	Rank            int     `json:"rank"`
}

type RecommendSimilarRes struct {
	Success         bool                 `json:"success"`
	DocumentID      string               `json:"document_id"`
	Recommendations []RecommendationInfo `json:"recommendations"`
}

// VISUALIZATION

type UpdateVisualizationReq struct {
	UserID      string `json:"user_id"`
	ForceUpdate bool   `json:"force_update"`
}

type GetVisualizationReq struct {
	UserID string `json:"user_id"`
}

type VisualizationPointInfo struct {
	DocumentID   string  `json:"document_id"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	ClusterID    int     `json:"cluster_id"`
	ClusterLabel string  `json:"cluster_label"`
	Filename     string  `json:"filename"`
}

type VisualizationRes struct {
	Success     bool                     `json:"success"`
	UserID      string                   `json:"user_id"`
	TotalPoints int                      `json:"total_points"`
	Points      []VisualizationPointInfo `json:"points"`
}

// INFRASTRUCTURE

// AnalysisCompletedEvent — событие о завершённом анализе для шины событий.
type AnalysisCompletedEvent struct {
	EventID        string    `json:"event_id"`
	UserID         string    `json:"user_id"`
	Operation      string    `json:"operation"`
	TotalDocuments int       `json:"total_documents"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// MAPPERS

func NewAnalysisCompletedEvent(userID, operation string, totalDocuments int) *AnalysisCompletedEvent {
	return &AnalysisCompletedEvent{
		EventID:        uuid.NewString(),
		UserID:         userID,
		Operation:      operation,
		TotalDocuments: totalDocuments,
		OccurredAt:     time.Now().UTC(),
	}
}

func NewRecommendationInfo(rec domain.Recommendation) RecommendationInfo {
	return RecommendationInfo{
		DocumentID:      rec.RecommendedDocumentID,
		Filename:        rec.Filename,
		SimilarityScore: rec.SimilarityScore,
		Rank:            rec.Rank,
	}
}

func NewVisualizationRes(userID string, points []domain.VisualizationPoint) *VisualizationRes {
	infos := make([]VisualizationPointInfo, 0, len(points))
	for _, p := range points {
		label := p.ClusterLabel
		if label == "" {
			label = "Sin cluster"
		}
		infos = append(infos, VisualizationPointInfo{
			DocumentID:   p.DocumentID,
			X:            p.X,
			Y:            p.Y,
			ClusterID:    p.ClusterID,
			ClusterLabel: label,
			Filename:     p.Filename,
		})
	}

	return &VisualizationRes{
		Success:     true,
		UserID:      userID,
		TotalPoints: len(infos),
		Points:      infos,
	}
}
