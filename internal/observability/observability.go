package observability

import (
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	JobsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "report_jobs_submitted_total",
		Help: "The total number of submitted report jobs",
	}, []string{"type"})

	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "report_jobs_processed_total",
		Help: "The total number of report jobs that reached a terminal state",
	}, []string{"type", "status"}) // status: COMPLETED, FAILED

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "report_job_duration_seconds",
		Help:    "Duration of report job execution.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 15),
	}, []string{"type"})

	ArtifactRows = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "report_artifact_rows",
		Help:    "Number of rows written per artifact.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	}, []string{"type"})

	JobsAbandoned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "report_jobs_abandoned_total",
		Help: "Pending jobs marked failed by the reaper",
	})
)

// NewLogger creates a JSON logger writing to stdout at the given level.
func NewLogger(level string) *slog.Logger {
	return newLogger(os.Stdout, level)
}

func newLogger(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

// ParseLevel maps debug|info|warn|error to a slog level. Anything else is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// MetricsHandler exposes the default Prometheus registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
