package pgdb

import (
	"context"

	"github.com/DRSN-tech/ml-service/internal/domain"
	"github.com/DRSN-tech/ml-service/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/ml-service/pkg/e"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

// MetadataRepo читает метаданные документов из внешней таблицы documents.
type MetadataRepo struct {
	pool *pgxpool.Pool
	conv converter.DocumentMetaConverter
}

func NewMetadataRepo(pool *pgxpool.Pool, conv converter.DocumentMetaConverter) *MetadataRepo {
	return &MetadataRepo{
		pool: pool,
		conv: conv,
	}
}

// GetDocumentsMeta возвращает метаданные документов по их идентификаторам.
// Документы без записи в таблице отсутствуют в результате.
func (r *MetadataRepo) GetDocumentsMeta(ctx context.Context, documentIDs []string) (map[string]domain.DocumentMeta, error) {
	if len(documentIDs) == 0 {
		return map[string]domain.DocumentMeta{}, nil
	}

	query := `
		SELECT id::text, filename, pages, file_size_mb, created_at
		FROM documents
		WHERE id::text = ANY($1)
	`

	rows, err := r.pool.Query(ctx, query, documentIDs)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	result := make(map[string]domain.DocumentMeta, len(documentIDs))
	for rows.Next() {
		var model converter.DocumentMetaModel
		if err := rows.Scan(&model.ID, &model.Filename, &model.Pages, &model.FileSizeMB, &model.CreatedAt); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		result[model.ID] = r.conv.ToEntity(&model)
	}
	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return result, nil
}
