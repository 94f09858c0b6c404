package usecase

import (
	"context"

	"github.com/DRSN-tech/ml-service/internal/domain"
	"github.com/DRSN-tech/ml-service/internal/ml"
	"github.com/DRSN-tech/ml-service/pkg/e"
	transaction "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/jackc/pgx/v5"
)

// UpdateVisualization генерирует 2D-координаты документов владельца.
// Без force_update возвращает уже сохранённую визуализацию, если она есть.
func (u *AnalysisUseCase) UpdateVisualization(ctx context.Context, req *UpdateVisualizationReq) (*VisualizationRes, error) {
	const op = "AnalysisUseCase.UpdateVisualization"

	if err := requireUserID(req.UserID); err != nil {
		return nil, err
	}

	if !req.ForceUpdate {
		points, err := u.vizRepo.GetByOwner(ctx, req.UserID)
		if err != nil {
			return nil, e.Wrap(op, err)
		}
		if len(points) > 0 {
			u.logger.Debugf("Retornando visualización existente (%d puntos)", len(points))
			return NewVisualizationRes(req.UserID, points), nil
		}
	}

	v, err, _ := u.group.Do("viz:"+req.UserID, func() (any, error) {
		return u.updateVisualization(ctx, op, req)
	})
	if err != nil {
		return nil, err
	}

	return v.(*VisualizationRes), nil
}

// GetVisualization возвращает визуализацию владельца, генерируя её при
// отсутствии.
func (u *AnalysisUseCase) GetVisualization(ctx context.Context, req *GetVisualizationReq) (*VisualizationRes, error) {
	return u.UpdateVisualization(ctx, &UpdateVisualizationReq{UserID: req.UserID})
}

func (u *AnalysisUseCase) updateVisualization(ctx context.Context, op string, req *UpdateVisualizationReq) (*VisualizationRes, error) {
	u.logger.Infof("Generando visualización 2D para user_id=%s", req.UserID)

	records, err := u.embeddings.ListByOwner(ctx, req.UserID)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	if len(records) == 0 {
		return nil, &e.DomainError{
			Message: "No se encontraron documentos para user_id=" + req.UserID,
		}
	}

	docIDs := make([]string, len(records))
	vectors := make([][]float64, len(records))
	for i, rec := range records {
		docIDs[i] = rec.DocumentID
		vectors[i] = rec.Vector
	}

	coordinates, err := ml.NewReducerForVisualization(u.reducerCfg).FitTransform(vectors)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	labels, err := u.documentClusterLabels(ctx, req.UserID, docIDs)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	points := make([]domain.VisualizationPoint, len(docIDs))
	for i, docID := range docIDs {
		points[i] = *domain.NewVisualizationPoint(
			req.UserID, docID, coordinates[i][0], coordinates[i][1], labels[docID],
		)
	}

	err = u.saveVisualization(ctx, points)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	// Перечитываем с денормализованными метками кластеров и именами файлов.
	saved, err := u.vizRepo.GetByOwner(ctx, req.UserID)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	u.publishCompleted(ctx, op, req.UserID, operationVisualization, len(docIDs))
	u.logger.Infof("Visualización generada: user_id=%s puntos=%d", req.UserID, len(saved))

	return NewVisualizationRes(req.UserID, saved), nil
}

// documentClusterLabels возвращает номер кластера каждого документа,
// -1 при отсутствии кластеризации.
func (u *AnalysisUseCase) documentClusterLabels(ctx context.Context, ownerID string, docIDs []string) (map[string]int, error) {
	clusters, err := u.clusterRepo.GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	if len(clusters) == 0 {
		labels := make(map[string]int, len(docIDs))
		for _, docID := range docIDs {
			labels[docID] = domain.OutlierLabel
		}
		return labels, nil
	}

	return u.clusterRepo.GetDocumentClusterLabels(ctx, ownerID, docIDs)
}

func (u *AnalysisUseCase) saveVisualization(ctx context.Context, points []domain.VisualizationPoint) error {
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

	if err = u.vizRepo.UpsertPoints(ctx, points); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
