package converter

import (
	"github.com/DRSN-tech/ml-service/internal/domain"
)

// ClusterConverter преобразует сущности Cluster между domain и моделью PostgreSQL.
type ClusterConverter struct{}

func (ClusterConverter) ToModel(entity *domain.Cluster) *ClusterModel {
	return &ClusterModel{
		ID:        entity.ID,
		UserID:    entity.OwnerID,
		ClusterID: entity.ClusterID,
		Label:     entity.Label,
		Size:      entity.Size,
		Keywords:  entity.Keywords,
		Centroid:  entity.Centroid,
		CreatedAt: entity.CreatedAt,
		UpdatedAt: entity.UpdatedAt,
	}
}

func (ClusterConverter) ToEntity(model *ClusterModel) *domain.Cluster {
	return &domain.Cluster{
		ID:        model.ID,
		OwnerID:   model.UserID,
		ClusterID: model.ClusterID,
		Label:     model.Label,
		Size:      model.Size,
		Keywords:  model.Keywords,
		Centroid:  model.Centroid,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

// TopicConverter преобразует сущности Topic между domain и моделью PostgreSQL.
type TopicConverter struct{}

func (TopicConverter) ToModel(entity *domain.Topic) *TopicModel {
	return &TopicModel{
		ID:            entity.ID,
		UserID:        entity.OwnerID,
		TopicID:       entity.TopicID,
		Label:         entity.Label,
		Keywords:      entity.Keywords,
		DocumentCount: entity.DocumentCount,
		CreatedAt:     entity.CreatedAt,
		UpdatedAt:     entity.UpdatedAt,
	}
}

func (TopicConverter) ToEntity(model *TopicModel) *domain.Topic {
	return &domain.Topic{
		ID:            model.ID,
		OwnerID:       model.UserID,
		TopicID:       model.TopicID,
		Label:         model.Label,
		Keywords:      model.Keywords,
		DocumentCount: model.DocumentCount,
		CreatedAt:     model.CreatedAt,
		UpdatedAt:     model.UpdatedAt,
	}
}

// VisualizationConverter преобразует точки визуализации между domain и моделью.
type VisualizationConverter struct{}

func (VisualizationConverter) ToEntity(model *VisualizationModel) *domain.VisualizationPoint {
	point := &domain.VisualizationPoint{
		OwnerID:    model.UserID,
		DocumentID: model.DocumentID,
		X:          model.X,
		Y:          model.Y,
		ClusterID:  domain.OutlierLabel,
	}
	if model.ClusterID != nil {
		point.ClusterID = *model.ClusterID
	}
	if model.ClusterLabel != nil {
		point.ClusterLabel = *model.ClusterLabel
	}
	if model.Filename != nil {
		point.Filename = *model.Filename
	}
	return point
}

// RecommendationConverter преобразует рекомендации между domain и моделью.
type RecommendationConverter struct{}

func (RecommendationConverter) ToEntity(model *RecommendationModel) *domain.Recommendation {
	rec := &domain.Recommendation{
		DocumentID:            model.DocumentID,
		RecommendedDocumentID: model.RecommendedDocumentID,
		SimilarityScore:       model.SimilarityScore,
		Rank:                  model.Rank,
	}
	if model.Filename != nil && *model.Filename != "" {
		rec.Filename = *model.Filename
	} else {
		rec.Filename = "Sin nombre"
	}
	return rec
}

// DocumentMetaConverter преобразует метаданные документов из внешней таблицы.
type DocumentMetaConverter struct{}

func (DocumentMetaConverter) ToEntity(model *DocumentMetaModel) domain.DocumentMeta {
	meta := domain.DocumentMeta{CreatedAt: model.CreatedAt}
	if model.Filename != nil {
		meta.Filename = *model.Filename
	}
	if model.Pages != nil {
		meta.Pages = *model.Pages
	}
	if model.FileSizeMB != nil {
		meta.FileSizeMB = *model.FileSizeMB
	}
	return meta
}
