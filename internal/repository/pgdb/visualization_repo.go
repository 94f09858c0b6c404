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

// VisualizationRepo реализует хранилище 2D-координат поверх PostgreSQL.
type VisualizationRepo struct {
	pool *pgxpool.Pool
	conv converter.VisualizationConverter
}

func NewVisualizationRepo(pool *pgxpool.Pool, conv converter.VisualizationConverter) *VisualizationRepo {
	return &VisualizationRepo{
		pool: pool,
		conv: conv,
	}
}

// UpsertPoints идемпотентно сохраняет координаты по паре (user_id, document_id).
func (r *VisualizationRepo) UpsertPoints(ctx context.Context, points []domain.VisualizationPoint) error {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	query := `
		INSERT INTO ml_visualizations (user_id, document_id, x, y, cluster_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, document_id)
		DO UPDATE SET
			x = EXCLUDED.x,
			y = EXCLUDED.y,
			cluster_id = EXCLUDED.cluster_id,
			updated_at = NOW()
	`

	for _, p := range points {
		_, err = tx.Exec(ctx, query, p.OwnerID, p.DocumentID, p.X, p.Y, p.ClusterID)
		if err != nil {
			return e.Wrap(whereami.WhereAmI(), err)
		}
	}

	return nil
}

// GetByOwner возвращает точки владельца с меткой кластера и именем файла.
func (r *VisualizationRepo) GetByOwner(ctx context.Context, ownerID string) ([]domain.VisualizationPoint, error) {
	query := `
		SELECT
			v.user_id,
			v.document_id,
			v.x,
			v.y,
			v.cluster_id,
			c.label AS cluster_label,
			d.filename
		FROM ml_visualizations v
		LEFT JOIN ml_clusters c ON v.cluster_id = c.cluster_id AND c.user_id = v.user_id
		LEFT JOIN documents d ON v.document_id = d.id::text
		WHERE v.user_id = $1
		ORDER BY v.document_id
	`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	result := make([]domain.VisualizationPoint, 0)
	for rows.Next() {
		var model converter.VisualizationModel
		err := rows.Scan(
			&model.UserID, &model.DocumentID, &model.X, &model.Y,
			&model.ClusterID, &model.ClusterLabel, &model.Filename,
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
