package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	processTotal    *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	processInFlight prometheus.Gauge
	queueLagSeconds prometheus.Histogram
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ra",
			Subsystem: "worker",
			Name:      "document_process_total",
			Help:      "Total document processing runs by outcome.",
		},
		[]string{"service", "outcome"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ra",
			Subsystem: "worker",
			Name:      "document_process_duration_seconds",
			Help:      "Document processing duration in seconds.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"service", "outcome"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ra",
			Subsystem: "worker",
			Name:      "documents_in_flight",
			Help:      "Documents currently being processed.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLagSeconds := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ra",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between upload and the start of processing.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(processTotal, processDuration, processInFlight, queueLagSeconds)

	return &WorkerMetrics{
		registry:        registry,
		processTotal:    processTotal,
		processDuration: processDuration,
		processInFlight: processInFlight,
		queueLagSeconds: queueLagSeconds,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartDocument marks a document as in flight and returns a finish
// callback that records the outcome and duration.
func (m *WorkerMetrics) StartDocument(service string) func(outcome string) {
	start := time.Now()
	m.processInFlight.Inc()
	return func(outcome string) {
		m.processInFlight.Dec()
		m.processTotal.WithLabelValues(service, outcome).Inc()
		m.processDuration.WithLabelValues(service, outcome).Observe(time.Since(start).Seconds())
	}
}

func (m *WorkerMetrics) ObserveQueueLag(uploadedAt time.Time) {
	if uploadedAt.IsZero() {
		return
	}
	lag := time.Since(uploadedAt).Seconds()
	if lag < 0 {
		lag = 0
	}
	m.queueLagSeconds.Observe(lag)
}
