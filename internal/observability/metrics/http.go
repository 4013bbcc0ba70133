package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	retrievalAttempts         *prometheus.HistogramVec
	evidenceItems             *prometheus.HistogramVec
	insufficientEvidenceTotal *prometheus.CounterVec
	discoveryPoolSize         *prometheus.HistogramVec
	discoverySelected         *prometheus.HistogramVec
	llmTokensTotal            *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ra",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ra",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ra",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	retrievalAttempts := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ra",
			Subsystem: "retrieval",
			Name:      "loop_attempts",
			Help:      "Retrieval loop attempts per question.",
			Buckets:   []float64{1, 2, 3, 4, 5},
		},
		[]string{"service", "outcome"},
	)
	evidenceItems := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ra",
			Subsystem: "retrieval",
			Name:      "evidence_items",
			Help:      "Evidence items in the final retrieval result.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service"},
	)
	insufficientEvidenceTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ra",
			Subsystem: "retrieval",
			Name:      "insufficient_evidence_total",
			Help:      "Questions answered with an insufficient-evidence result.",
		},
		[]string{"service"},
	)
	discoveryPoolSize := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ra",
			Subsystem: "discovery",
			Name:      "pool_size",
			Help:      "Raw candidate pool size per discovery request.",
			Buckets:   []float64{0, 5, 10, 20, 40, 80},
		},
		[]string{"service"},
	)
	discoverySelected := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ra",
			Subsystem: "discovery",
			Name:      "selected_papers",
			Help:      "Papers selected per discovery request.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8},
		},
		[]string{"service"},
	)
	llmTokensTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ra",
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "LLM tokens consumed per endpoint.",
		},
		[]string{"service", "endpoint"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		retrievalAttempts,
		evidenceItems,
		insufficientEvidenceTotal,
		discoveryPoolSize,
		discoverySelected,
		llmTokensTotal,
	)

	return &HTTPServerMetrics{
		registry:                  registry,
		requestTotal:              requestTotal,
		requestDuration:           requestDuration,
		requestInFlight:           requestInFlight,
		retrievalAttempts:         retrievalAttempts,
		evidenceItems:             evidenceItems,
		insufficientEvidenceTotal: insufficientEvidenceTotal,
		discoveryPoolSize:         discoveryPoolSize,
		discoverySelected:         discoverySelected,
		llmTokensTotal:            llmTokensTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{document_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordRetrievalRun(service string, accepted bool, attempts, evidenceCount int) {
	outcome := "accepted"
	if !accepted {
		outcome = "exhausted"
		m.insufficientEvidenceTotal.WithLabelValues(service).Inc()
	}
	m.retrievalAttempts.WithLabelValues(service, outcome).Observe(float64(attempts))
	m.evidenceItems.WithLabelValues(service).Observe(float64(evidenceCount))
}

func (m *HTTPServerMetrics) RecordDiscovery(service string, poolSize, selected int) {
	m.discoveryPoolSize.WithLabelValues(service).Observe(float64(poolSize))
	m.discoverySelected.WithLabelValues(service).Observe(float64(selected))
}

func (m *HTTPServerMetrics) RecordTokenUsage(service, endpoint string, tokens int) {
	if tokens > 0 {
		m.llmTokensTotal.WithLabelValues(service, endpoint).Add(float64(tokens))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
