package usecase

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/DRSN-tech/ml-service/internal/cfg"
	"github.com/DRSN-tech/ml-service/internal/domain"
	"github.com/DRSN-tech/ml-service/internal/ml"
	"github.com/DRSN-tech/ml-service/pkg/e"
	"github.com/DRSN-tech/ml-service/pkg/logger"
	transaction "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/singleflight"
)

// Минимальное число документов для запуска кластеризации.
const minDocumentsForClustering = 3

// Названия операций в событиях analysis.completed.
const (
	operationClustering    = "clustering"
	operationTopicModeling = "topic_modeling"
	operationVisualization = "visualization"
)

// AnalysisUseCase реализует пайплайн анализа документов: кластеризацию,
// извлечение тем, рекомендации и 2D-визуализацию.
type AnalysisUseCase struct {
	embeddings  EmbeddingSource
	metadata    MetadataSource
	clusterRepo ClusterRepository
	topicRepo   TopicRepository
	vizRepo     VisualizationRepository
	recRepo     RecommendationRepository
	cacheRepo   CacheRepository
	events      EventProducer
	dbPool      transaction.Transactional
	logger      logger.Logger

	reducerCfg   *cfg.ReducerCfg
	clustererCfg *cfg.ClustererCfg
	topicsCfg    *cfg.TopicsCfg
	recommendCfg *cfg.RecommendCfg

	// Подавляет параллельные пересчёты по одному владельцу.
	group singleflight.Group
}

func NewAnalysisUC(
	embeddings EmbeddingSource,
	metadata MetadataSource,
	clusterRepo ClusterRepository,
	topicRepo TopicRepository,
	vizRepo VisualizationRepository,
	recRepo RecommendationRepository,
	cacheRepo CacheRepository,
	events EventProducer,
	dbPool transaction.Transactional,
	logger logger.Logger,
	config *cfg.Config,
) *AnalysisUseCase {
	return &AnalysisUseCase{
		embeddings:   embeddings,
		metadata:     metadata,
		clusterRepo:  clusterRepo,
		topicRepo:    topicRepo,
		vizRepo:      vizRepo,
		recRepo:      recRepo,
		cacheRepo:    cacheRepo,
		events:       events,
		dbPool:       dbPool,
		logger:       logger,
		reducerCfg:   config.Reducer,
		clustererCfg: config.Clusterer,
		topicsCfg:    config.Topics,
		recommendCfg: config.Recommend,
	}
}

// ClusterDocuments выполняет полный цикл кластеризации документов владельца:
// чтение embeddings, снижение размерности, плотностную кластеризацию,
// генерацию меток и атомарную замену результатов в хранилище.
func (u *AnalysisUseCase) ClusterDocuments(ctx context.Context, req *ClusterDocumentsReq) (*ClusterDocumentsRes, error) {
	const op = "AnalysisUseCase.ClusterDocuments"

	if err := requireUserID(req.UserID); err != nil {
		return nil, err
	}

	v, err, _ := u.group.Do("cluster:"+req.UserID, func() (any, error) {
		return u.clusterDocuments(ctx, op, req)
	})
	if err != nil {
		return nil, err
	}

	return v.(*ClusterDocumentsRes), nil
}

func (u *AnalysisUseCase) clusterDocuments(ctx context.Context, op string, req *ClusterDocumentsReq) (*ClusterDocumentsRes, error) {
	u.logger.Infof("Iniciando clustering para user_id=%s", req.UserID)

	docIDs, vectors, err := u.loadEmbeddings(ctx, req.UserID, req.DocumentIDs)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	reduced, err := ml.NewReducerForClustering(u.reducerCfg).FitTransform(vectors)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	clusterer := ml.NewClusterer(u.clustererCfg)
	labels, probabilities, err := clusterer.Fit(reduced)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	stats, err := clusterer.Statistics()
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	centroids, err := clusterer.Centroids()
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	meta, err := u.metadata.GetDocumentsMeta(ctx, docIDs)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	labeler := ml.NewLabeler()
	clusters := make([]domain.Cluster, 0, stats.NumClusters)
	for _, clusterID := range stats.ClusterIDs {
		filenames := clusterFilenames(docIDs, labels, clusterID, meta)
		clusters = append(clusters, *domain.NewCluster(
			req.UserID,
			clusterID,
			labeler.ClusterLabel(clusterID, filenames),
			stats.ClusterSizes[clusterID],
			labeler.Keywords(filenames),
			centroids[clusterID],
		))
	}

	assignments := make([]domain.ClusterAssignment, len(docIDs))
	for i, docID := range docIDs {
		assignments[i] = *domain.NewClusterAssignment(docID, labels[i], probabilities[i])
	}

	err = u.saveClusters(ctx, req.UserID, clusters, assignments, req.ForceRecluster)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	// Пересчёт по требованию означает, что embeddings могли измениться —
	// горячий кэш рекомендаций по этим документам больше не актуален.
	if req.ForceRecluster {
		if err := u.cacheRepo.DeleteRecommendations(ctx, docIDs); err != nil {
			u.logger.Warnf("Failed to invalidate recommendation cache: %v", e.Wrap(op, err))
		}
	}

	u.publishCompleted(ctx, op, req.UserID, operationClustering, len(docIDs))
	u.logger.Infof("Clustering completado: user_id=%s clusters=%d outliers=%d",
		req.UserID, stats.NumClusters, stats.NumOutliers)

	clusterInfos := make([]ClusterInfo, 0, len(clusters))
	for _, c := range clusters {
		clusterInfos = append(clusterInfos, ClusterInfo{
			ClusterID: c.ClusterID,
			Label:     c.Label,
			Size:      c.Size,
			Keywords:  c.Keywords,
		})
	}

	return &ClusterDocumentsRes{
		Success:           true,
		UserID:            req.UserID,
		TotalDocuments:    len(docIDs),
		NumClusters:       stats.NumClusters,
		NumOutliers:       stats.NumOutliers,
		OutlierPercentage: round2(stats.OutlierPercentage),
		Clusters:          clusterInfos,
	}, nil
}

// saveClusters атомарно заменяет кластеры владельца и привязки его документов.
func (u *AnalysisUseCase) saveClusters(
	ctx context.Context,
	ownerID string,
	clusters []domain.Cluster,
	assignments []domain.ClusterAssignment,
	deleteExisting bool,
) error {
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

	if deleteExisting {
		if err = u.clusterRepo.DeleteByOwner(ctx, ownerID); err != nil {
			return err
		}
	}

	for i := range clusters {
		if _, err = u.clusterRepo.Upsert(ctx, &clusters[i]); err != nil {
			return err
		}
	}

	if err = u.clusterRepo.AssignDocuments(ctx, ownerID, assignments); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetClusters возвращает сохранённые кластеры владельца без пересчёта.
func (u *AnalysisUseCase) GetClusters(ctx context.Context, req *GetClustersReq) (*GetClustersRes, error) {
	const op = "AnalysisUseCase.GetClusters"

	if err := requireUserID(req.UserID); err != nil {
		return nil, err
	}

	clusters, err := u.clusterRepo.GetByOwner(ctx, req.UserID)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	infos := make([]StoredClusterInfo, 0, len(clusters))
	for _, c := range clusters {
		infos = append(infos, StoredClusterInfo{
			ClusterID: c.ClusterID,
			Label:     c.Label,
			Size:      c.Size,
			Keywords:  c.Keywords,
			CreatedAt: formatTime(c.CreatedAt),
		})
	}

	return &GetClustersRes{
		Success:       true,
		UserID:        req.UserID,
		TotalClusters: len(infos),
		Clusters:      infos,
	}, nil
}

// loadEmbeddings читает embeddings владельца и применяет фильтр по документам.
func (u *AnalysisUseCase) loadEmbeddings(ctx context.Context, ownerID string, documentIDs []string) ([]string, [][]float64, error) {
	records, err := u.embeddings.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, nil, err
	}

	if len(records) == 0 {
		return nil, nil, &e.DomainError{
			Message: fmt.Sprintf("No se encontraron documentos para user_id=%s", ownerID),
		}
	}

	if len(documentIDs) > 0 {
		records = filterRecords(records, documentIDs)
	}

	if len(records) < minDocumentsForClustering {
		return nil, nil, &e.DomainError{
			Message: fmt.Sprintf(
				"Se necesitan al menos %d documentos para clustering (encontrados: %d)",
				minDocumentsForClustering, len(records),
			),
		}
	}

	docIDs := make([]string, len(records))
	vectors := make([][]float64, len(records))
	for i, rec := range records {
		docIDs[i] = rec.DocumentID
		vectors[i] = rec.Vector
	}

	return docIDs, vectors, nil
}

// publishCompleted отправляет событие о завершённом анализе. Ошибка публикации
// не прерывает запрос.
func (u *AnalysisUseCase) publishCompleted(ctx context.Context, op, userID, operation string, totalDocuments int) {
	if u.events == nil {
		return
	}

	event := NewAnalysisCompletedEvent(userID, operation, totalDocuments)
	if err := u.events.PublishAnalysisCompleted(ctx, event); err != nil {
		u.logger.Warnf("Failed to publish analysis event: %v", e.Wrap(op, err))
	}
}

func requireUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return &e.DomainError{Message: "user_id es requerido"}
	}
	return nil
}

func filterRecords(records []domain.EmbeddingRecord, documentIDs []string) []domain.EmbeddingRecord {
	wanted := make(map[string]struct{}, len(documentIDs))
	for _, id := range documentIDs {
		wanted[id] = struct{}{}
	}

	filtered := make([]domain.EmbeddingRecord, 0, len(documentIDs))
	for _, rec := range records {
		if _, ok := wanted[rec.DocumentID]; ok {
			filtered = append(filtered, rec)
		}
	}
	return filtered
}

// clusterFilenames собирает имена файлов документов указанного кластера.
func clusterFilenames(docIDs []string, labels []int, clusterID int, meta map[string]domain.DocumentMeta) []string {
	filenames := make([]string, 0, len(docIDs))
	for i, docID := range docIDs {
		if labels[i] != clusterID {
			continue
		}
		if m, ok := meta[docID]; ok {
			filenames = append(filenames, m.Filename)
		}
	}
	return filenames
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
