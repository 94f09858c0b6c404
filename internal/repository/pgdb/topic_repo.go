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

// TopicRepo реализует хранилище тем поверх PostgreSQL.
type TopicRepo struct {
	pool *pgxpool.Pool
	conv converter.TopicConverter
}

func NewTopicRepo(pool *pgxpool.Pool, conv converter.TopicConverter) *TopicRepo {
	return &TopicRepo{
		pool: pool,
		conv: conv,
	}
}

// DeleteByOwner удаляет все темы владельца вместе с привязками документов.
func (r *TopicRepo) DeleteByOwner(ctx context.Context, ownerID string) error {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	_, err = tx.Exec(ctx, `DELETE FROM ml_topics WHERE user_id = $1`, ownerID)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// Upsert идемпотентно сохраняет тему по паре (user_id, topic_id).
func (r *TopicRepo) Upsert(ctx context.Context, topic *domain.Topic) (*domain.Topic, error) {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	query := `
		INSERT INTO ml_topics (user_id, topic_id, label, keywords, document_count)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, topic_id)
		DO UPDATE SET
			label = EXCLUDED.label,
			keywords = EXCLUDED.keywords,
			document_count = EXCLUDED.document_count,
			updated_at = NOW()
		RETURNING id, user_id, topic_id, label, keywords, document_count, created_at, updated_at
	`

	in := r.conv.ToModel(topic)

	var model converter.TopicModel
	err = tx.QueryRow(ctx, query, in.UserID, in.TopicID, in.Label, in.Keywords, in.DocumentCount).
		Scan(
			&model.ID, &model.UserID, &model.TopicID, &model.Label,
			&model.Keywords, &model.DocumentCount, &model.CreatedAt, &model.UpdatedAt,
		)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return r.conv.ToEntity(&model), nil
}

// AssignDocuments сохраняет основную тему каждого документа владельца.
func (r *TopicRepo) AssignDocuments(ctx context.Context, ownerID string, assignments []domain.TopicAssignment) error {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	pkByTopic, err := r.topicPKs(ctx, ownerID)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO ml_document_topics (document_id, topic_id, probability)
		VALUES ($1, $2, $3)
		ON CONFLICT (document_id, topic_id)
		DO UPDATE SET probability = EXCLUDED.probability
	`

	for _, a := range assignments {
		pk, ok := pkByTopic[a.TopicID]
		if !ok {
			continue
		}

		_, err = tx.Exec(ctx, query, a.DocumentID, pk, a.Probability)
		if err != nil {
			return e.Wrap(whereami.WhereAmI(), err)
		}
	}

	return nil
}

// topicPKs возвращает суррогатные ключи тем владельца по их номерам.
func (r *TopicRepo) topicPKs(ctx context.Context, ownerID string) (map[int]int64, error) {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	rows, err := tx.Query(ctx, `SELECT id, topic_id FROM ml_topics WHERE user_id = $1`, ownerID)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	pks := make(map[int]int64)
	for rows.Next() {
		var id int64
		var topicID int
		if err := rows.Scan(&id, &topicID); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		pks[topicID] = id
	}
	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return pks, nil
}
