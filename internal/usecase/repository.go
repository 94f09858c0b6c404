package usecase

import (
	"context"

	"github.com/DRSN-tech/ml-service/internal/domain"
)

// EmbeddingSource — источник предрассчитанных векторов документов (read-only).
// Реализуется поверх pgvector-таблиц или Qdrant в зависимости от конфигурации.
type EmbeddingSource interface {
	// ListByOwner возвращает по одному вектору на документ владельца.
	ListByOwner(ctx context.Context, ownerID string) ([]domain.EmbeddingRecord, error)
	// GetByDocumentID возвращает вектор документа и его владельца.
	// ownerID может быть пустым — тогда источник сам определяет владельца.
	GetByDocumentID(ctx context.Context, ownerID, documentID string) (*domain.EmbeddingRecord, string, error)
}

// MetadataSource отдаёт метаданные документов из внешней таблицы documents.
type MetadataSource interface {
	GetDocumentsMeta(ctx context.Context, documentIDs []string) (map[string]domain.DocumentMeta, error)
}

type ClusterRepository interface {
	DeleteByOwner(ctx context.Context, ownerID string) error
	Upsert(ctx context.Context, cluster *domain.Cluster) (*domain.Cluster, error)
	AssignDocuments(ctx context.Context, ownerID string, assignments []domain.ClusterAssignment) error
	GetByOwner(ctx context.Context, ownerID string) ([]domain.Cluster, error)
	// GetDocumentClusterLabels возвращает номер кластера каждого документа,
	// -1 для документов без кластера.
	GetDocumentClusterLabels(ctx context.Context, ownerID string, documentIDs []string) (map[string]int, error)
}

type TopicRepository interface {
	DeleteByOwner(ctx context.Context, ownerID string) error
	Upsert(ctx context.Context, topic *domain.Topic) (*domain.Topic, error)
	AssignDocuments(ctx context.Context, ownerID string, assignments []domain.TopicAssignment) error
}

type VisualizationRepository interface {
	UpsertPoints(ctx context.Context, points []domain.VisualizationPoint) error
	// GetByOwner возвращает точки с денормализованными меткой кластера и именем файла.
	GetByOwner(ctx context.Context, ownerID string) ([]domain.VisualizationPoint, error)
}

type RecommendationRepository interface {
	Replace(ctx context.Context, documentID string, recommendations []domain.Recommendation) error
	GetByDocument(ctx context.Context, documentID string, topK int) ([]domain.Recommendation, error)
}

// CacheRepository — горячий кэш рекомендаций поверх Redis.
type CacheRepository interface {
	GetRecommendations(ctx context.Context, documentID string, topK int) ([]domain.Recommendation, error)
	SetRecommendations(ctx context.Context, documentID string, recommendations []domain.Recommendation) error
	DeleteRecommendations(ctx context.Context, documentIDs []string) error
}
