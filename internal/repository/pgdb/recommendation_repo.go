package pgdb

import (
	"context"

	"github.com/DRSN-tech/ml-service/internal/domain"
	"github.com/DRSN-tech/ml-service/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/ml-service/pkg/e"
	"github.com/DRSN-tech/ml-service/pkg/tr"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

// RecommendationRepo реализует постоянный кэш рекомендаций поверх PostgreSQL.
type RecommendationRepo struct {
	pool *pgxpool.Pool
	conv converter.RecommendationConverter
}

func NewRecommendationRepo(pool *pgxpool.Pool, conv converter.RecommendationConverter) *RecommendationRepo {
	return &RecommendationRepo{
		pool: pool,
		conv: conv,
	}
}

// Replace заменяет сохранённые рекомендации базового документа.
func (r *RecommendationRepo) Replace(ctx context.Context, documentID string, recommendations []domain.Recommendation) error {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	_, err = tx.Exec(ctx, `DELETE FROM ml_recommendations WHERE document_id = $1`, documentID)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	query := `
		INSERT INTO ml_recommendations (document_id, recommended_document_id, similarity_score, rank)
		VALUES ($1, $2, $3, $4)
	`

	for _, rec := range recommendations {
		_, err = tx.Exec(ctx, query, documentID, rec.RecommendedDocumentID, rec.SimilarityScore, rec.Rank)
		if err != nil {
			return e.Wrap(whereami.WhereAmI(), err)
		}
	}

	return nil
}

// GetByDocument возвращает сохранённые рекомендации в порядке ранга.
func (r *RecommendationRepo) GetByDocument(ctx context.Context, documentID string, topK int) ([]domain.Recommendation, error) {
	query := `
		SELECT
			r.document_id,
			r.recommended_document_id,
			r.similarity_score,
			r.rank,
			d.filename
		FROM ml_recommendations r
		LEFT JOIN documents d ON r.recommended_document_id = d.id::text
		WHERE r.document_id = $1
		ORDER BY r.rank
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, documentID, topK)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	result := make([]domain.Recommendation, 0)
	for rows.Next() {
		var model converter.RecommendationModel
		err := rows.Scan(
			&model.DocumentID, &model.RecommendedDocumentID,
			&model.SimilarityScore, &model.Rank, &model.Filename,
		)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		result = append(result, *r.conv.ToEntity(&model))
	}
	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return result, nil
}
