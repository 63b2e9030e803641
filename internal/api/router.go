package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/api/handler"
	apimw "github.com/Prodelaya/youtube-AIsummary-sub001/internal/api/middleware"
	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/queue"
	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/service"
)

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(
	svc *service.SummaryService,
	q *queue.Queue,
	reg prometheus.Gatherer,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)          // recover panics, return 500
	r.Use(chimw.RealIP)             // trust X-Forwarded-For / X-Real-IP
	r.Use(chimw.RequestSize(1<<20)) // 1 MB max request body
	r.Use(apimw.CorrelationID)      // X-Correlation-ID inject / echo
	r.Use(apimw.RequestLogger(logger))

	// --- handler instances ---
	vh := handler.NewVideoHandler(svc, logger)
	qh := handler.NewQueueHandler(q)
	hh := handler.NewHealthHandler()

	// --- routes ---
	r.Get("/health", hh.Health)

	// Raw Prometheus scrape endpoint (for Prometheus server / Grafana)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/videos", vh.Submit)
		r.Get("/videos/{id}", vh.GetByID)
		r.Get("/videos/{id}/summary", vh.GetSummary)
		r.Post("/videos/{id}/requeue", vh.Requeue)

		r.Get("/sources/{id}/summaries", vh.Recent)

		r.Get("/stats", vh.Stats)
		r.Get("/queue", qh.GetQueue)
	})

	return r
}
