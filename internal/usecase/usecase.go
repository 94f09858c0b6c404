package usecase

import "context"

type AnalysisUC interface {
	ClusterDocuments(ctx context.Context, req *ClusterDocumentsReq) (*ClusterDocumentsRes, error)
	GetClusters(ctx context.Context, req *GetClustersReq) (*GetClustersRes, error)
	ExtractTopics(ctx context.Context, req *ExtractTopicsReq) (*ExtractTopicsRes, error)
	RecommendSimilar(ctx context.Context, req *RecommendSimilarReq) (*RecommendSimilarRes, error)
	UpdateVisualization(ctx context.Context, req *UpdateVisualizationReq) (*VisualizationRes, error)
	GetVisualization(ctx context.Context, req *GetVisualizationReq) (*VisualizationRes, error)
}
