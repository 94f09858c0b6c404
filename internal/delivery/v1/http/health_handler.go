package http

import (
	"encoding/json"
	"net/http"

	"github.com/DRSN-tech/ml-service/pkg/logger"
)

const (
	serviceName    = "services_ML"
	serviceVersion = "1.0.0"
)

// HealthHandler отвечает на служебные HTTP-запросы: живость и описание
// сервиса. Основной интерфейс анализа — TCP-протокол, HTTP служит панелям
// мониторинга.
type HealthHandler struct {
	logger logger.Logger
}

func NewHealthHandler(logger logger.Logger) *HealthHandler {
	return &HealthHandler{logger: logger}
}

func (h *HealthHandler) root(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"service": serviceName,
		"version": serviceVersion,
	})
}

func (h *HealthHandler) health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": serviceName,
	})
}

func (h *HealthHandler) info(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"service": serviceName,
		"version": serviceVersion,
		"status":  "running",
		"features": []string{
			"clustering",
			"topic_modeling",
			"recommendations",
			"visualization",
			"temporal_analysis",
		},
	})
}

func (h *HealthHandler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warnf("запись HTTP-ответа: %v", err)
	}
}
