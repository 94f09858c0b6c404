package qdrant

import (
	"context"

	"github.com/DRSN-tech/ml-service/internal/cfg"
	"github.com/DRSN-tech/ml-service/internal/domain"
	"github.com/DRSN-tech/ml-service/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/qdrant/go-client/qdrant"
)

const scrollPageSize = 256

// EmbeddingRepo читает embedding-векторы документов из Qdrant.
// Каждому владельцу соответствует отдельная коллекция с его идентификатором
// в имени; вектор хранится в точке, идентификатор документа — в payload.
type EmbeddingRepo struct {
	client *qdrant.Client
	cfg    *cfg.QdrantCfg
}

func NewEmbeddingRepo(client *qdrant.Client, cfg *cfg.QdrantCfg) *EmbeddingRepo {
	return &EmbeddingRepo{
		client: client,
		cfg:    cfg,
	}
}

// ListByOwner постранично вычитывает все точки коллекции владельца.
func (q *EmbeddingRepo) ListByOwner(ctx context.Context, ownerID string) ([]domain.EmbeddingRecord, error) {
	result := make([]domain.EmbeddingRecord, 0)

	var offset *qdrant.PointId
	for {
		resp, err := q.client.GetPointsClient().Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: q.collectionName(ownerID),
			Limit:          qdrant.PtrOf(uint32(scrollPageSize)),
			Offset:         offset,
			WithVectors:    qdrant.NewWithVectors(true),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		for _, point := range resp.GetResult() {
			record, ok := q.toRecord(point)
			if !ok {
				continue
			}
			result = append(result, record)
		}

		offset = resp.GetNextPageOffset()
		if offset == nil {
			break
		}
	}

	return result, nil
}

// GetByDocumentID возвращает вектор документа из коллекции владельца.
// Источник Qdrant не умеет искать документ по всем коллекциям, поэтому
// владелец обязателен.
func (q *EmbeddingRepo) GetByDocumentID(ctx context.Context, ownerID, documentID string) (*domain.EmbeddingRecord, string, error) {
	if ownerID == "" {
		return nil, "", &e.DomainError{Message: "user_id es requerido"}
	}

	resp, err := q.client.GetPointsClient().Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: q.collectionName(ownerID),
		Limit:          qdrant.PtrOf(uint32(1)),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("document_id", documentID),
			},
		},
		WithVectors: qdrant.NewWithVectors(true),
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, "", e.Wrap(whereami.WhereAmI(), err)
	}

	points := resp.GetResult()
	if len(points) == 0 {
		return nil, "", nil
	}

	record, ok := q.toRecord(points[0])
	if !ok {
		return nil, "", nil
	}

	return &record, ownerID, nil
}

// toRecord собирает EmbeddingRecord из точки Qdrant. Точки без вектора или
// без document_id в payload пропускаются.
func (q *EmbeddingRepo) toRecord(point *qdrant.RetrievedPoint) (domain.EmbeddingRecord, bool) {
	documentID := point.GetPayload()["document_id"].GetStringValue()
	if documentID == "" {
		return domain.EmbeddingRecord{}, false
	}

	data := point.GetVectors().GetVector().GetData()
	if len(data) == 0 {
		return domain.EmbeddingRecord{}, false
	}

	vector := make([]float64, len(data))
	for i, v := range data {
		vector[i] = float64(v)
	}

	return *domain.NewEmbeddingRecord(documentID, vector), true
}

// collectionName возвращает имя коллекции владельца.
func (q *EmbeddingRepo) collectionName(ownerID string) string {
	return q.cfg.CollectionName + "_" + ownerID
}
