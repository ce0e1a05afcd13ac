// Package metrics – liczniki Prometheusa dla synchronizacji, importu, obrazków i API.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dopi2woo"

var (
	syncRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Total number of full catalog syncs.",
		},
		[]string{"type", "status"},
	)
	syncDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Duration of full catalog syncs.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"type"},
	)
	importItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_items_total",
			Help:      "Imported catalog items by outcome.",
		},
		[]string{"outcome"},
	)
	imagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "images_total",
			Help:      "Image resolutions by result.",
		},
		[]string{"result"},
	)
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		},
		[]string{"method", "endpoint", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of HTTP request durations.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"method", "endpoint", "status"},
	)
)

func init() {
	prometheus.MustRegister(syncRunsTotal, syncDuration, importItemsTotal, imagesTotal, httpRequestsTotal, httpRequestDuration)
}

// Wyniki pozycji importu.
const (
	OutcomeCreated  = "created"
	OutcomeUpdated  = "updated"
	OutcomeRestored = "restored"
	OutcomeInvalid  = "invalid"
	OutcomeFailed   = "failed"
)

// Wyniki rozwiązywania obrazków.
const (
	ImageReused     = "reused"
	ImageDownloaded = "downloaded"
	ImageFailed     = "failed"
)

func RecordSync(kind, status string, d time.Duration) {
	syncRunsTotal.WithLabelValues(kind, status).Inc()
	syncDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func RecordItem(outcome string) {
	importItemsTotal.WithLabelValues(outcome).Inc()
}

func RecordImage(result string) {
	imagesTotal.WithLabelValues(result).Inc()
}

// RecordRequest zapisuje metryki dla żądania HTTP.
func RecordRequest(method, endpoint string, statusCode int, duration time.Duration) {
	status := classifyStatus(statusCode)
	httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
}

func classifyStatus(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "2xx"
	case statusCode >= 300 && statusCode < 400:
		return "3xx"
	case statusCode >= 400 && statusCode < 500:
		return "4xx"
	case statusCode >= 500 && statusCode < 600:
		return "5xx"
	}
	return "unknown"
}

// Handler eksportuje metryki (GET /metrics).
func Handler() http.Handler {
	return promhttp.Handler()
}
