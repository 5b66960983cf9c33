// internal/metrics/metrics.go

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geofinder_http_requests_total",
		Help: "Total HTTP requests by route and status",
	}, []string{"method", "route", "status"})
	RequestDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "geofinder_http_request_duration_ms",
		Help:    "HTTP request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	}, []string{"route"})
	GenerationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geofinder_generations_total",
		Help: "Total generated place batches",
	})
	PlacesGeneratedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geofinder_places_generated_total",
		Help: "Total generated places by category",
	}, []string{"category"})
	SelectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geofinder_selections_total",
		Help: "Total place selections by category",
	}, []string{"category"})
	SessionsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geofinder_sessions_created_total",
		Help: "Total created sessions",
	})
	SessionsExpiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geofinder_sessions_expired_total",
		Help: "Total sessions removed by the idle sweep",
	})
	EventPublishFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geofinder_event_publish_failures_total",
		Help: "Total session events that could not be published",
	}, []string{"type"})
)

func init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDurationMs)
	prometheus.MustRegister(GenerationsTotal)
	prometheus.MustRegister(PlacesGeneratedTotal)
	prometheus.MustRegister(SelectionsTotal)
	prometheus.MustRegister(SessionsCreatedTotal)
	prometheus.MustRegister(SessionsExpiredTotal)
	prometheus.MustRegister(EventPublishFailuresTotal)
}

// Handler exposes the registered collectors for scraping
func Handler() http.Handler { return promhttp.Handler() }
