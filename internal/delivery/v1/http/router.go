package http

import (
	"github.com/go-chi/chi/v5"

	"github.com/DRSN-tech/ml-service/pkg/logger"
)

type Router struct {
	router *chi.Mux
	logger logger.Logger
}

func NewRouter(router *chi.Mux, logger logger.Logger) *Router {
	return &Router{router: router, logger: logger}
}

// Init регистрирует служебные эндпоинты сервиса анализа.
func (r *Router) Init() {
	handler := NewHealthHandler(r.logger)

	r.router.Get("/", handler.root)
	r.router.Get("/health", handler.health)
	r.router.Get("/info", handler.info)
}
