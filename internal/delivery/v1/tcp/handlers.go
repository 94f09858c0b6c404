package tcp

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/DRSN-tech/ml-service/internal/usecase"
	"github.com/DRSN-tech/ml-service/pkg/e"
)

const (
	serviceName    = "services_ML"
	serviceVersion = "1.0.0"
)

// domainFailure — отказ предметной области внутри успешного транспортного
// ответа.
type domainFailure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type pingResult struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

type statusResult struct {
	Service  string   `json:"service"`
	Version  string   `json:"version"`
	Status   string   `json:"status"`
	Features []string `json:"features"`
}

// RegisterHandlers привязывает действия протокола к сценариям анализа.
func RegisterHandlers(server *Server, uc usecase.AnalysisUC) {
	server.RegisterHandler(ActionClusterDocuments, handle(uc.ClusterDocuments))
	server.RegisterHandler(ActionGetClusters, handle(uc.GetClusters))
	server.RegisterHandler(ActionExtractTopics, handle(uc.ExtractTopics))
	server.RegisterHandler(ActionRecommendSimilar, handle(uc.RecommendSimilar))
	server.RegisterHandler(ActionUpdateVisualization, handle(uc.UpdateVisualization))
	server.RegisterHandler(ActionGetVisualization, handle(uc.GetVisualization))

	server.RegisterHandler(ActionAnalyzeTrends, func(_ context.Context, _ json.RawMessage) (any, error) {
		return domainFailure{Error: "Análisis temporal no implementado aún"}, nil
	})

	server.RegisterHandler(ActionPing, func(_ context.Context, _ json.RawMessage) (any, error) {
		return pingResult{Message: "pong", Status: "healthy"}, nil
	})

	server.RegisterHandler(ActionStatus, func(_ context.Context, _ json.RawMessage) (any, error) {
		return statusResult{
			Service: serviceName,
			Version: serviceVersion,
			Status:  "running",
			Features: []string{
				"clustering",
				"topic_modeling",
				"recommendations",
				"visualization",
				"temporal_analysis",
			},
		}, nil
	})
}

// handle адаптирует метод сценария к HandlerFunc: ошибка сценария кладётся
// в тело результата ({"success": false}), транспортный статус остаётся
// успешным.
func handle[Req any, Res any](call func(ctx context.Context, req *Req) (*Res, error)) HandlerFunc {
	return func(ctx context.Context, data json.RawMessage) (any, error) {
		var req Req
		if len(data) > 0 {
			if err := json.Unmarshal(data, &req); err != nil {
				return nil, err
			}
		}

		res, err := call(ctx, &req)
		if err != nil {
			return failureFromErr(err), nil
		}

		return res, nil
	}
}

func failureFromErr(err error) domainFailure {
	var domainErr *e.DomainError
	if errors.As(err, &domainErr) {
		return domainFailure{Error: domainErr.Message}
	}
	return domainFailure{Error: err.Error()}
}
