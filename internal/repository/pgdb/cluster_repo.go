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

// ClusterRepo реализует хранилище кластеров поверх PostgreSQL.
// Методы записи выполняются в транзакции из контекста.
type ClusterRepo struct {
	pool *pgxpool.Pool
	conv converter.ClusterConverter
}

func NewClusterRepo(pool *pgxpool.Pool, conv converter.ClusterConverter) *ClusterRepo {
	return &ClusterRepo{
		pool: pool,
		conv: conv,
	}
}

// DeleteByOwner удаляет все кластеры владельца. Привязки документов удаляются
// каскадно по внешнему ключу.
func (r *ClusterRepo) DeleteByOwner(ctx context.Context, ownerID string) error {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	_, err = tx.Exec(ctx, `DELETE FROM ml_clusters WHERE user_id = $1`, ownerID)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// Upsert идемпотентно сохраняет кластер по паре (user_id, cluster_id).
func (r *ClusterRepo) Upsert(ctx context.Context, cluster *domain.Cluster) (*domain.Cluster, error) {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	query := `
		INSERT INTO ml_clusters (user_id, cluster_id, label, size, keywords, centroid)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, cluster_id)
		DO UPDATE SET
			label = EXCLUDED.label,
			size = EXCLUDED.size,
			keywords = EXCLUDED.keywords,
			centroid = EXCLUDED.centroid,
			updated_at = NOW()
		RETURNING id, user_id, cluster_id, label, size, keywords, centroid, created_at, updated_at
	`

	in := r.conv.ToModel(cluster)

	var model converter.ClusterModel
	err = tx.QueryRow(ctx, query, in.UserID, in.ClusterID, in.Label, in.Size, in.Keywords, in.Centroid).
		Scan(
			&model.ID, &model.UserID, &model.ClusterID, &model.Label,
			&model.Size, &model.Keywords, &model.Centroid, &model.CreatedAt, &model.UpdatedAt,
		)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return r.conv.ToEntity(&model), nil
}

// AssignDocuments сохраняет привязки документов владельца к его кластерам.
// Привязка хранит суррогатный ключ кластера; для выбросов он NULL.
func (r *ClusterRepo) AssignDocuments(ctx context.Context, ownerID string, assignments []domain.ClusterAssignment) error {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	pkByCluster, err := r.clusterPKs(ctx, ownerID)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO ml_document_clusters (document_id, cluster_id, probability, is_outlier)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (document_id)
		DO UPDATE SET
			cluster_id = EXCLUDED.cluster_id,
			probability = EXCLUDED.probability,
			is_outlier = EXCLUDED.is_outlier
	`

	for _, a := range assignments {
		var clusterPK *int64
		if !a.IsOutlier {
			pk, ok := pkByCluster[a.ClusterID]
			if !ok {
				continue
			}
			clusterPK = &pk
		}

		_, err = tx.Exec(ctx, query, a.DocumentID, clusterPK, a.Probability, a.IsOutlier)
		if err != nil {
			return e.Wrap(whereami.WhereAmI(), err)
		}
	}

	return nil
}

// GetByOwner возвращает кластеры владельца в порядке номеров.
func (r *ClusterRepo) GetByOwner(ctx context.Context, ownerID string) ([]domain.Cluster, error) {
	query := `
		SELECT id, user_id, cluster_id, label, size, keywords, centroid, created_at, updated_at
		FROM ml_clusters
		WHERE user_id = $1
		ORDER BY cluster_id
	`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	result := make([]domain.Cluster, 0)
	for rows.Next() {
		var model converter.ClusterModel
		err := rows.Scan(
			&model.ID, &model.UserID, &model.ClusterID, &model.Label,
			&model.Size, &model.Keywords, &model.Centroid, &model.CreatedAt, &model.UpdatedAt,
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

// GetDocumentClusterLabels возвращает номер кластера каждого документа.
// Документы без привязки получают -1.
func (r *ClusterRepo) GetDocumentClusterLabels(ctx context.Context, ownerID string, documentIDs []string) (map[string]int, error) {
	query := `
		SELECT dc.document_id, c.cluster_id
		FROM ml_document_clusters dc
		JOIN ml_clusters c ON dc.cluster_id = c.id
		WHERE c.user_id = $1
		  AND dc.document_id = ANY($2)
	`

	rows, err := r.pool.Query(ctx, query, ownerID, documentIDs)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	labels := make(map[string]int, len(documentIDs))
	for rows.Next() {
		var documentID string
		var clusterID int
		if err := rows.Scan(&documentID, &clusterID); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		labels[documentID] = clusterID
	}
	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	for _, documentID := range documentIDs {
		if _, ok := labels[documentID]; !ok {
			labels[documentID] = domain.OutlierLabel
		}
	}

	return labels, nil
}

// clusterPKs возвращает суррогатные ключи кластеров владельца по их номерам.
func (r *ClusterRepo) clusterPKs(ctx context.Context, ownerID string) (map[int]int64, error) {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	rows, err := tx.Query(ctx, `SELECT id, cluster_id FROM ml_clusters WHERE user_id = $1`, ownerID)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	pks := make(map[int]int64)
	for rows.Next() {
		var id int64
		var clusterID int
		if err := rows.Scan(&id, &clusterID); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		pks[clusterID] = id
	}
	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return pks, nil
}
