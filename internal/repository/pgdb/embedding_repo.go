package pgdb

import (
	"context"
	"errors"

	"github.com/DRSN-tech/ml-service/internal/domain"
	"github.com/DRSN-tech/ml-service/pkg/e"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

// EmbeddingRepo читает embedding-векторы документов из таблиц langchain_*.
// Эти таблицы наполняет сервис обработки документов, здесь они read-only.
type EmbeddingRepo struct {
	pool *pgxpool.Pool
}

func NewEmbeddingRepo(pool *pgxpool.Pool) *EmbeddingRepo {
	return &EmbeddingRepo{pool: pool}
}

// ListByOwner возвращает по последнему вектору на каждый документ владельца.
// Имя коллекции langchain совпадает с идентификатором владельца.
func (r *EmbeddingRepo) ListByOwner(ctx context.Context, ownerID string) ([]domain.EmbeddingRecord, error) {
	query := `
		SELECT DISTINCT ON (lpe.document)
			lpe.document,
			lpe.embedding::text
		FROM langchain_pg_embedding lpe
		JOIN langchain_pg_collection lpc ON lpe.collection_id = lpc.uuid
		WHERE lpc.name = $1
		  AND lpe.document IS NOT NULL
		ORDER BY lpe.document, lpe.id DESC
	`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	result := make([]domain.EmbeddingRecord, 0)
	for rows.Next() {
		var documentID, rawVector string
		if err := rows.Scan(&documentID, &rawVector); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		vector, err := parseVector(rawVector)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		result = append(result, *domain.NewEmbeddingRecord(documentID, vector))
	}
	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return result, nil
}

// GetByDocumentID возвращает вектор документа и имя его коллекции (владельца).
// При пустом ownerID владелец определяется по самому документу.
func (r *EmbeddingRepo) GetByDocumentID(ctx context.Context, ownerID, documentID string) (*domain.EmbeddingRecord, string, error) {
	query := `
		SELECT lpe.embedding::text, lpc.name
		FROM langchain_pg_embedding lpe
		JOIN langchain_pg_collection lpc ON lpe.collection_id = lpc.uuid
		WHERE lpe.document = $1
		  AND ($2 = '' OR lpc.name = $2)
		ORDER BY lpe.id DESC
		LIMIT 1
	`

	var rawVector, resolvedOwner string
	err := r.pool.QueryRow(ctx, query, documentID, ownerID).Scan(&rawVector, &resolvedOwner)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", e.Wrap(whereami.WhereAmI(), err)
	}

	vector, err := parseVector(rawVector)
	if err != nil {
		return nil, "", e.Wrap(whereami.WhereAmI(), err)
	}

	return domain.NewEmbeddingRecord(documentID, vector), resolvedOwner, nil
}
