package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Shared HTTP metrics.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets, // [0.005..10]
		},
		[]string{"method", "path", "status"},
	)
)

// Inference metrics. Model loads are counted separately from
// classifications so a reload storm is visible on its own.
var (
	inferenceTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inference_requests_total",
			Help: "Classification requests by outcome.",
		},
		[]string{"outcome"},
	)

	inferenceDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "inference_duration_seconds",
		Help:    "Classification latency (preprocess through scoring).",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	})

	modelLoadsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "inference_model_loads_total",
		Help: "Number of times model weights were loaded from the blob store.",
	})

	loadedModel = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "inference_loaded_model",
			Help: "Set to 1 for the artifact currently held in the inference cache.",
		},
		[]string{"artifact_id"},
	)

	readyGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "service_ready",
		Help: "1 when the service reports ready, 0 otherwise.",
	})
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		inferenceTotal, inferenceDuration, modelLoadsTotal, loadedModel,
		readyGauge,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetReady flips the readiness gauge.
func SetReady(ready bool) {
	if ready {
		readyGauge.Set(1)
		return
	}
	readyGauge.Set(0)
}

// ObserveInference records one classification outcome and, when the call
// reached scoring, its latency.
func ObserveInference(outcome string, d time.Duration) {
	inferenceTotal.WithLabelValues(outcome).Inc()
	if d > 0 {
		inferenceDuration.Observe(d.Seconds())
	}
}

// ModelLoaded records a completed weight load and marks the artifact as the
// cached one.
func ModelLoaded(artifactID string) {
	modelLoadsTotal.Inc()
	loadedModel.Reset()
	loadedModel.WithLabelValues(artifactID).Set(1)
}

// CanonicalPath collapses per-artifact path segments so metric label
// cardinality stays bounded.
func CanonicalPath(path string) string {
	if path == "" {
		return "/"
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	const prefix = "/api/admin/models/"
	if rest, ok := strings.CutPrefix(path, prefix); ok && rest != "" {
		parts := strings.Split(rest, "/")
		switch len(parts) {
		case 1:
			return prefix + ":id"
		case 2:
			if parts[1] == "toggle" || parts[1] == "activate" {
				return prefix + ":id/" + parts[1]
			}
		}
	}
	return path
}

// Instrument wraps a handler with RPS/latency/in-flight accounting.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// statusWriter captures the response code for labelling.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
