package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ahmethakanbesel/mining-reports/internal/job"
	"github.com/ahmethakanbesel/mining-reports/internal/observability"
	"github.com/ahmethakanbesel/mining-reports/internal/report"
)

// Services are the dependencies behind the HTTP surface.
type Services struct {
	Jobs    *job.Service
	Reports *report.Registry
	// Metrics mounts /metrics when set.
	Metrics bool
}

// NewHandler creates the full HTTP handler with routes and middleware.
// Exported for use in tests (e.g., httptest.NewServer).
func NewHandler(svc Services) http.Handler {
	return newRouter(svc)
}

func newRouter(svc Services) http.Handler {
	h := &handler{
		jobSvc:  svc.Jobs,
		reports: svc.Reports,
	}

	r := chi.NewRouter()

	// Middleware stack: recovery -> requestID -> logging
	r.Use(recovery, requestID, logging)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/health", h.health)
	if svc.Metrics {
		r.Method(http.MethodGet, "/metrics", observability.MetricsHandler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/report-types", h.listReportTypes)
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", h.submitJob)
			r.Get("/", h.listJobs)
			r.Get("/{id}", h.getJob)
			r.Get("/{id}/artifact", h.getArtifact)
		})
	})

	return r
}
