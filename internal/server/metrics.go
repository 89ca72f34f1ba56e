// Package server — metrics.go registers all Prometheus metrics for the HTTP
// server and exposes helpers used by handlers and middleware.
package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// ingestDocumentsTotal counts completed ingestions, partitioned by
	// outcome: "ok" or "error".
	ingestDocumentsTotal *prometheus.CounterVec

	// ingestChunksTotal counts chunks indexed by successful ingestions.
	ingestChunksTotal prometheus.Counter

	// ingestDurationSeconds records wall-clock duration of successful
	// ingestions from upload receipt to index persistence.
	ingestDurationSeconds prometheus.Histogram

	// queryRequestsTotal counts search and answer requests, partitioned by
	// kind ("search" or "answer") and outcome ("ok" or "error").
	queryRequestsTotal *prometheus.CounterVec

	// queryDurationSeconds records latency of successful search and answer
	// requests, partitioned by kind.
	queryDurationSeconds *prometheus.HistogramVec

	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, path, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers all server metrics against reg and returns the
// populated serverMetrics. promauto.With(reg) is used so that each call
// registers into the provided registry rather than the global default —
// this keeps unit tests hermetic.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		ingestDocumentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatkb",
			Subsystem: "ingest",
			Name:      "documents_total",
			Help:      "Total number of document ingestions completed, partitioned by outcome.",
		}, []string{"outcome"}),

		ingestChunksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "chatkb",
			Subsystem: "ingest",
			Name:      "chunks_total",
			Help:      "Total number of chunks indexed by successful ingestions.",
		}),

		ingestDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "chatkb",
			Subsystem: "ingest",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of successful ingestions, upload receipt to index persistence.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}),

		queryRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatkb",
			Subsystem: "query",
			Name:      "requests_total",
			Help:      "Total number of search and answer requests, partitioned by kind and outcome.",
		}, []string{"kind", "outcome"}),

		queryDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chatkb",
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "Latency of successful search and answer requests.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"kind"}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatkb",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, path, and status code.",
		}, []string{"method", "path", "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chatkb",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

// httpMetrics is an [http.Handler] middleware that records request count and
// latency for every route. All API paths are fixed strings, so the path label
// stays low-cardinality.
func (s *Server) httpMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		start := time.Now()
		next.ServeHTTP(rw, r)

		s.metrics.httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rw.status)).Inc()
		s.metrics.httpDurationSeconds.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}
