package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/DRSN-tech/ml-service/internal/domain"
	"github.com/DRSN-tech/ml-service/internal/ml"
	"github.com/DRSN-tech/ml-service/pkg/e"
	transaction "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/jackc/pgx/v5"
	"gonum.org/v1/gonum/floats"
)

// ExtractTopics извлекает темы документов владельца: группирует документы
// плотностной кластеризацией в сниженной размерности и строит по каждой группе
// ключевые слова методом class-based TF-IDF.
func (u *AnalysisUseCase) ExtractTopics(ctx context.Context, req *ExtractTopicsReq) (*ExtractTopicsRes, error) {
	const op = "AnalysisUseCase.ExtractTopics"

	if err := requireUserID(req.UserID); err != nil {
		return nil, err
	}

	// Ключ по владельцу: конкурирующие запросы с разным num_topics не должны
	// параллельно перезаписывать темы одного пользователя.
	v, err, _ := u.group.Do("topics:"+req.UserID, func() (any, error) {
		return u.extractTopics(ctx, op, req)
	})
	if err != nil {
		return nil, err
	}

	return v.(*ExtractTopicsRes), nil
}

func (u *AnalysisUseCase) extractTopics(ctx context.Context, op string, req *ExtractTopicsReq) (*ExtractTopicsRes, error) {
	u.logger.Infof("Extrayendo temas para user_id=%s", req.UserID)

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

	// Запрошенное число тем достигается слиянием ближайших групп.
	if req.NumTopics > 0 {
		labels = mergeToTopicCount(labels, reduced, req.NumTopics)
	}

	meta, err := u.metadata.GetDocumentsMeta(ctx, docIDs)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	// Тексты документов недоступны пайплайну, темы строятся по именам файлов.
	docsByClass := make(map[int][]string)
	numOutliers := 0
	for i, docID := range docIDs {
		document := fmt.Sprintf("Doc %s", docID)
		if m, ok := meta[docID]; ok && m.Filename != "" {
			document = m.Filename
		}
		docsByClass[labels[i]] = append(docsByClass[labels[i]], document)
		if labels[i] == domain.OutlierLabel {
			numOutliers++
		}
	}

	model := ml.NewTopicModel(u.topicsCfg.TopNWords, u.topicsCfg.Language)
	summaries := model.Extract(docsByClass)

	topics := make([]domain.Topic, 0, len(summaries))
	for _, s := range summaries {
		topics = append(topics, *domain.NewTopic(req.UserID, s.TopicID, s.Label, s.Keywords, s.DocumentCount))
	}

	assignments := make([]domain.TopicAssignment, 0, len(docIDs))
	for i, docID := range docIDs {
		if labels[i] == domain.OutlierLabel {
			continue
		}
		prob := probabilities[i]
		assignments = append(assignments, domain.TopicAssignment{
			DocumentID:  docID,
			TopicID:     labels[i],
			Probability: &prob,
		})
	}

	err = u.saveTopics(ctx, req.UserID, topics, assignments)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	u.publishCompleted(ctx, op, req.UserID, operationTopicModeling, len(docIDs))
	u.logger.Infof("Temas extraídos: user_id=%s topics=%d outliers=%d",
		req.UserID, len(topics), numOutliers)

	topicInfos := make([]TopicInfo, 0, len(topics))
	for _, t := range topics {
		topicInfos = append(topicInfos, TopicInfo{
			TopicID:       t.TopicID,
			Label:         t.Label,
			Keywords:      t.Keywords,
			DocumentCount: t.DocumentCount,
		})
	}

	return &ExtractTopicsRes{
		Success:        true,
		UserID:         req.UserID,
		TotalDocuments: len(docIDs),
		NumTopics:      len(topics),
		NumOutliers:    numOutliers,
		Topics:         topicInfos,
	}, nil
}

// saveTopics атомарно заменяет темы владельца и привязки его документов.
// Существующие темы удаляются всегда: набор тем между запусками несравним.
func (u *AnalysisUseCase) saveTopics(
	ctx context.Context,
	ownerID string,
	topics []domain.Topic,
	assignments []domain.TopicAssignment,
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

	if err = u.topicRepo.DeleteByOwner(ctx, ownerID); err != nil {
		return err
	}

	for i := range topics {
		if _, err = u.topicRepo.Upsert(ctx, &topics[i]); err != nil {
			return err
		}
	}

	if err = u.topicRepo.AssignDocuments(ctx, ownerID, assignments); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// mergeToTopicCount сливает группы до целевого числа: наименьшая группа
// присоединяется к группе с ближайшим центроидом, пока групп не станет target.
// Итоговые метки перенумеровываются в 0..k-1; шум (-1) не участвует.
func mergeToTopicCount(labels []int, points [][]float64, target int) []int {
	sizes := make(map[int]int)
	centroids := make(map[int][]float64)
	for i, label := range labels {
		if label == domain.OutlierLabel {
			continue
		}
		if centroids[label] == nil {
			centroids[label] = make([]float64, len(points[i]))
		}
		floats.Add(centroids[label], points[i])
		sizes[label]++
	}
	for label, sum := range centroids {
		floats.Scale(1/float64(sizes[label]), sum)
	}

	if len(sizes) <= target {
		return renumberLabels(labels)
	}

	merged := make(map[int]int) // старая метка -> актуальная
	for len(sizes) > target {
		smallest := smallestCluster(sizes)

		nearest, nearestDist := -1, 0.0
		for label, centroid := range centroids {
			if label == smallest {
				continue
			}
			d := floats.Distance(centroids[smallest], centroid, 2)
			if nearest == -1 || d < nearestDist {
				nearest, nearestDist = label, d
			}
		}

		// Взвешенное слияние центроидов.
		total := float64(sizes[smallest] + sizes[nearest])
		for j := range centroids[nearest] {
			centroids[nearest][j] = (centroids[nearest][j]*float64(sizes[nearest]) +
				centroids[smallest][j]*float64(sizes[smallest])) / total
		}
		sizes[nearest] += sizes[smallest]

		merged[smallest] = nearest
		delete(sizes, smallest)
		delete(centroids, smallest)
	}

	result := make([]int, len(labels))
	for i, label := range labels {
		for {
			next, ok := merged[label]
			if !ok {
				break
			}
			label = next
		}
		result[i] = label
	}

	return renumberLabels(result)
}

// smallestCluster возвращает метку наименьшей группы, при равенстве — меньшую.
func smallestCluster(sizes map[int]int) int {
	best, bestSize := -1, 0
	for label, size := range sizes {
		if best == -1 || size < bestSize || (size == bestSize && label < best) {
			best, bestSize = label, size
		}
	}
	return best
}

// renumberLabels сжимает метки в непрерывный диапазон 0..k-1, сохраняя
// порядок возрастания исходных меток.
func renumberLabels(labels []int) []int {
	unique := make(map[int]struct{})
	for _, label := range labels {
		if label != domain.OutlierLabel {
			unique[label] = struct{}{}
		}
	}

	ordered := make([]int, 0, len(unique))
	for label := range unique {
		ordered = append(ordered, label)
	}
	sort.Ints(ordered)

	mapping := make(map[int]int, len(ordered))
	for i, label := range ordered {
		mapping[label] = i
	}

	result := make([]int, len(labels))
	for i, label := range labels {
		if label == domain.OutlierLabel {
			result[i] = domain.OutlierLabel
			continue
		}
		result[i] = mapping[label]
	}
	return result
}
