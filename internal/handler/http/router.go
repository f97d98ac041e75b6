package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vasiliy-maslov/storefront-checkout/internal/metrics"
)

type RouteRegistrar interface {
	RegisterRoutes(router chi.Router)
}

// NewRouter mounts the handlers behind the shared middleware stack.
func NewRouter(handlers ...RouteRegistrar) *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(metrics.Middleware)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	router.Method(http.MethodGet, "/metrics", metrics.Handler())

	for _, h := range handlers {
		h.RegisterRoutes(router)
	}

	return router
}
