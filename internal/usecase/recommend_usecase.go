package usecase

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/DRSN-tech/ml-service/internal/domain"
	"github.com/DRSN-tech/ml-service/pkg/e"
	transaction "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/jackc/pgx/v5"
	"gonum.org/v1/gonum/floats"
)

const cacheWriteTimeout = 500 * time.Millisecond

// RecommendSimilar возвращает документы, похожие на заданный. Результат
// читается сквозь кэш: Redis, затем таблица рекомендаций, и лишь при промахе
// пересчитывается по embedding-векторам.
func (u *AnalysisUseCase) RecommendSimilar(ctx context.Context, req *RecommendSimilarReq) (*RecommendSimilarRes, error) {
	const op = "AnalysisUseCase.RecommendSimilar"

	if strings.TrimSpace(req.DocumentID) == "" {
		return nil, &e.DomainError{Message: "document_id es requerido"}
	}

	topK := req.TopK
	if topK <= 0 {
		topK = u.recommendCfg.TopK
	}

	// Горячий кэш
	cached, err := u.cacheRepo.GetRecommendations(ctx, req.DocumentID, topK)
	if err != nil {
		u.logger.Warnf("Failed to read recommendation cache: %v", e.Wrap(op, err))
	}
	if len(cached) > 0 {
		u.logger.Debugf("Retornando %d recomendaciones desde cache", len(cached))
		return newRecommendSimilarRes(req.DocumentID, cached), nil
	}

	// Кэш в Postgres
	stored, err := u.recRepo.GetByDocument(ctx, req.DocumentID, topK)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	if len(stored) > 0 {
		u.cacheInBackground(op, req.DocumentID, stored)
		return newRecommendSimilarRes(req.DocumentID, stored), nil
	}

	// Полный пересчёт; параллельные запросы одного документа схлопываются.
	v, err, _ := u.group.Do("rec:"+req.DocumentID, func() (any, error) {
		recommendations, err := u.calculateSimilar(ctx, req.UserID, req.DocumentID, topK)
		if err != nil {
			return nil, e.Wrap(op, err)
		}
		if len(recommendations) == 0 {
			return nil, &e.DomainError{Message: "No se encontraron documentos similares"}
		}

		if err := u.saveRecommendations(ctx, req.DocumentID, recommendations); err != nil {
			return nil, e.Wrap(op, err)
		}
		u.cacheInBackground(op, req.DocumentID, recommendations)

		return recommendations, nil
	})
	if err != nil {
		return nil, err
	}
	recommendations := v.([]domain.Recommendation)

	u.logger.Infof("Calculadas %d recomendaciones para document_id=%s",
		len(recommendations), req.DocumentID)

	return newRecommendSimilarRes(req.DocumentID, recommendations), nil
}

// calculateSimilar ранжирует документы владельца по косинусной близости
// к базовому документу.
func (u *AnalysisUseCase) calculateSimilar(ctx context.Context, ownerID, documentID string, topK int) ([]domain.Recommendation, error) {
	base, resolvedOwner, err := u.embeddings.GetByDocumentID(ctx, ownerID, documentID)
	if err != nil {
		return nil, err
	}
	if base == nil {
		return nil, nil
	}

	records, err := u.embeddings.ListByOwner(ctx, resolvedOwner)
	if err != nil {
		return nil, err
	}

	type scored struct {
		documentID string
		score      float64
	}

	candidates := make([]scored, 0, len(records))
	for _, rec := range records {
		if rec.DocumentID == documentID {
			continue
		}
		score := cosineSimilarity(base.Vector, rec.Vector)
		if score < u.recommendCfg.SimilarityThreshold {
			continue
		}
		candidates = append(candidates, scored{documentID: rec.DocumentID, score: score})
	}

	// Детерминированный порядок: по убыванию близости, затем по id документа.
	sort.Slice(candidates, func(a, b int) bool {
		if candidates[a].score != candidates[b].score {
			return candidates[a].score > candidates[b].score
		}
		return candidates[a].documentID < candidates[b].documentID
	})

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.documentID
	}
	meta, err := u.metadata.GetDocumentsMeta(ctx, ids)
	if err != nil {
		return nil, err
	}

	recommendations := make([]domain.Recommendation, len(candidates))
	for i, c := range candidates {
		filename := "Sin nombre"
		if m, ok := meta[c.documentID]; ok && m.Filename != "" {
			filename = m.Filename
		}
		recommendations[i] = domain.Recommendation{
			DocumentID:            documentID,
			RecommendedDocumentID: c.documentID,
			Filename:              filename,
			SimilarityScore:       round4(c.score),
			Rank:                  i + 1,
		}
	}

	return recommendations, nil
}

// saveRecommendations заменяет сохранённые рекомендации базового документа.
func (u *AnalysisUseCase) saveRecommendations(ctx context.Context, documentID string, recommendations []domain.Recommendation) error {
	ctx, tx, err := transaction.NewTransaction(ctx, pgx.TxOptions{}, u.dbPool)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil && tx.IsActive() {
			tx.Rollback(ctx)
		}
	}()
	ctx = context.WithValue(ctx, "tx", tx.Transaction())

	if err = u.recRepo.Replace(ctx, documentID, recommendations); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// cacheInBackground фоново записывает рекомендации в горячий кэш.
func (u *AnalysisUseCase) cacheInBackground(op, documentID string, recommendations []domain.Recommendation) {
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), cacheWriteTimeout)
		defer cancel()

		if err := u.cacheRepo.SetRecommendations(bgCtx, documentID, recommendations); err != nil {
			u.logger.Warnf("Failed to cache recommendations in background: %v", e.Wrap(op, err))
		}
	}()
}

func newRecommendSimilarRes(documentID string, recommendations []domain.Recommendation) *RecommendSimilarRes {
	infos := make([]RecommendationInfo, 0, len(recommendations))
	for _, rec := range recommendations {
		infos = append(infos, NewRecommendationInfo(rec))
	}

	return &RecommendSimilarRes{
		Success:         true,
		DocumentID:      documentID,
		Recommendations: infos,
	}
}

// cosineSimilarity возвращает косинусную близость двух векторов,
// 0 для вырожденных.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	na := floats.Norm(a, 2)
	nb := floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}

	return floats.Dot(a, b) / (na * nb)
}
