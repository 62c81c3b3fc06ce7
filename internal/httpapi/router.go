// Package httpapi обслуживает служебные HTTP-эндпоинты и REST-просмотр каталога.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	healthcheck "github.com/vladislavdragonenkov/petshop/internal/health"
)

// NewRouter собирает маршруты: /metrics, пробы здоровья и /api/v1 каталога.
// Обработчик обёрнут в otelhttp, поэтому входящий traceparent продолжается.
func NewRouter(h *Handler, health *healthcheck.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(accessLog(h.logger))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/livez", healthcheck.LivenessHandler)
	if health != nil {
		r.Get("/healthz", health.ServeHTTP)
		r.Get("/readyz", health.ReadinessHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/pets", h.ListPets)
		r.Get("/pets/{petID}", h.GetPet)
	})

	return otelhttp.NewHandler(r, "petshop-http")
}
