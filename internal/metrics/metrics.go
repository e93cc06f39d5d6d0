package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	ResultsSaved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "results_saved_total",
			Help: "Results persisted, by the store that accepted them",
		},
		[]string{"store"},
	)

	StoreFallback = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_fallback_total",
			Help: "Operations served by the local store after a remote failure",
		},
		[]string{"op"},
	)

	SessionsReset = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessions_reset_total",
			Help: "Sessions reset, by reason",
		},
		[]string{"reason"},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sessions_active",
			Help: "Sessions held in memory",
		},
	)
)

var once sync.Once

// Init registers all collectors with the default registry. Safe to call more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(RequestCounter, RequestDuration, ResultsSaved, StoreFallback, SessionsReset, ActiveSessions)
	})
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
