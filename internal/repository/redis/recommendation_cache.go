package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/DRSN-tech/ml-service/internal/cfg"
	"github.com/DRSN-tech/ml-service/internal/domain"
	"github.com/DRSN-tech/ml-service/pkg/clients"
	"github.com/DRSN-tech/ml-service/pkg/e"
	"github.com/DRSN-tech/ml-service/pkg/logger"
	"github.com/jimlawless/whereami"
)

// recommendationModel — запись рекомендации в Redis-кэше.
type recommendationModel struct {
	DocumentID            string  `json:"document_id"`
	RecommendedDocumentID string  `json:"recommended_document_id"`
	Filename              string  `json:"filename"`
	SimilarityScore       float64 `json:"similarity_score"`
	Rank                  int     `json:"rank"`
}

// CacheRepo — горячий кэш рекомендаций. Список рекомендаций базового
// документа хранится одним JSON-значением с TTL.
type CacheRepo struct {
	client *clients.RedisClient
	cfg    *cfg.RedisCfg
	logger logger.Logger
}

func NewCacheRepo(client *clients.RedisClient, cfg *cfg.RedisCfg, logger logger.Logger) *CacheRepo {
	return &CacheRepo{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

// GetRecommendations возвращает закэшированные рекомендации документа.
// Промах кэша — пустой список без ошибки.
func (r *CacheRepo) GetRecommendations(ctx context.Context, documentID string, topK int) ([]domain.Recommendation, error) {
	data, err := r.client.Client.Get(ctx, r.recommendationKey(documentID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		r.logger.Warnf("Redis GET failed: %v", e.Wrap(whereami.WhereAmI(), err))
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	var models []recommendationModel
	if err := json.Unmarshal(data, &models); err != nil {
		r.logger.Warnf("Redis unmarshal failed: %v", e.Wrap(whereami.WhereAmI(), err))
		if err := r.client.Client.Del(context.Background(), r.recommendationKey(documentID)).Err(); err != nil {
			r.logger.Warnf("Redis del failed: %v", e.Wrap(whereami.WhereAmI(), err))
		}
		return nil, nil
	}

	if len(models) > topK {
		models = models[:topK]
	}

	result := make([]domain.Recommendation, len(models))
	for i, m := range models {
		result[i] = domain.Recommendation{
			DocumentID:            m.DocumentID,
			RecommendedDocumentID: m.RecommendedDocumentID,
			Filename:              m.Filename,
			SimilarityScore:       m.SimilarityScore,
			Rank:                  m.Rank,
		}
	}

	return result, nil
}

// SetRecommendations кэширует рекомендации документа с TTL.
// Ошибка записи логируется и не считается фатальной.
func (r *CacheRepo) SetRecommendations(ctx context.Context, documentID string, recommendations []domain.Recommendation) error {
	models := make([]recommendationModel, len(recommendations))
	for i, rec := range recommendations {
		models[i] = recommendationModel{
			DocumentID:            rec.DocumentID,
			RecommendedDocumentID: rec.RecommendedDocumentID,
			Filename:              rec.Filename,
			SimilarityScore:       rec.SimilarityScore,
			Rank:                  rec.Rank,
		}
	}

	data, err := json.Marshal(models)
	if err != nil {
		r.logger.Warnf("Failed to marshal recommendations for caching (document_id: %s): %v",
			documentID, e.Wrap(whereami.WhereAmI(), err))
		return nil
	}

	key := r.recommendationKey(documentID)
	if err := r.client.Client.Set(ctx, key, data, r.cfg.RecommendationTTL).Err(); err != nil {
		r.logger.Warnf("Redis SET failed: %v", e.Wrap(whereami.WhereAmI(), err))
	}

	return nil
}

// DeleteRecommendations удаляет рекомендации документов из кэша.
func (r *CacheRepo) DeleteRecommendations(ctx context.Context, documentIDs []string) error {
	if len(documentIDs) == 0 {
		return nil
	}

	keys := make([]string, len(documentIDs))
	for i, id := range documentIDs {
		keys[i] = r.recommendationKey(id)
	}

	if err := r.client.Client.Del(ctx, keys...).Err(); err != nil {
		r.logger.Warnf("Redis DEL failed: %v", e.Wrap(whereami.WhereAmI(), err))
	}

	return nil
}

// recommendationKey возвращает Redis-ключ рекомендаций документа.
func (r *CacheRepo) recommendationKey(documentID string) string {
	return fmt.Sprintf("rec:%s", documentID)
}
