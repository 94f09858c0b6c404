package converter

import "time"

// ClusterModel представляет запись таблицы ml_clusters в PostgreSQL.
type ClusterModel struct {
	ID        int64      `db:"id"`
	UserID    string     `db:"user_id"`
	ClusterID int        `db:"cluster_id"`
	Label     string     `db:"label"`
	Size      int        `db:"size"`
	Keywords  []string   `db:"keywords"`
	Centroid  []float64  `db:"centroid"`
	CreatedAt *time.Time `db:"created_at"`
	UpdatedAt *time.Time `db:"updated_at"`
}

// TopicModel представляет запись таблицы ml_topics в PostgreSQL.
type TopicModel struct {
	ID            int64      `db:"id"`
	UserID        string     `db:"user_id"`
	TopicID       int        `db:"topic_id"`
	Label         string     `db:"label"`
	Keywords      []string   `db:"keywords"`
	DocumentCount int        `db:"document_count"`
	CreatedAt     *time.Time `db:"created_at"`
	UpdatedAt     *time.Time `db:"updated_at"`
}

// VisualizationModel представляет запись таблицы ml_visualizations с
// денормализованными меткой кластера и именем файла.
type VisualizationModel struct {
	UserID       string  `db:"user_id"`
	DocumentID   string  `db:"document_id"`
	X            float64 `db:"x"`
	Y            float64 `db:"y"`
	ClusterID    *int    `db:"cluster_id"`
	ClusterLabel *string `db:"cluster_label"`
	Filename     *string `db:"filename"`
}

// RecommendationModel представляет запись таблицы ml_recommendations.
type RecommendationModel struct {
	DocumentID            string  `db:"document_id"`
	RecommendedDocumentID string  `db:"recommended_document_id"`
	SimilarityScore       float64 `db:"similarity_score"`
	Rank                  int     `db:"rank"`
	Filename              *string `db:"filename"`
}

// DocumentMetaModel представляет запись внешней таблицы documents.
type DocumentMetaModel struct {
	ID         string     `db:"id"`
	Filename   *string    `db:"filename"`
	Pages      *int       `db:"pages"`
	FileSizeMB *float64   `db:"file_size_mb"`
	CreatedAt  *time.Time `db:"created_at"`
}
