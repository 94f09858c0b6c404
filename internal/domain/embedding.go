package domain

import "time"

// EmbeddingRecord — предрассчитанный embedding-вектор документа.
// Читается из общего хранилища, пайплайн не имеет к нему доступа на запись.
type EmbeddingRecord struct {
	DocumentID string
	Vector     []float64
}

func NewEmbeddingRecord(documentID string, vector []float64) *EmbeddingRecord {
	return &EmbeddingRecord{
		DocumentID: documentID,
		Vector:     vector,
	}
}

// DocumentMeta — метаданные документа из таблицы documents.
type DocumentMeta struct {
	Filename   string
	Pages      int
	FileSizeMB float64
	CreatedAt  *time.Time
}
