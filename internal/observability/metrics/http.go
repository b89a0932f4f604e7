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

const namespace = "brokerdocs"

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	analysisTotal    *prometheus.CounterVec
	analysisDuration *prometheus.HistogramVec
	analysisPages    *prometheus.HistogramVec
	ledgerExports    *prometheus.CounterVec
	uploadsTotal     *prometheus.CounterVec
	unauthorizedHits *prometheus.CounterVec
	breakerChanges   *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	analysisTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "requests_total",
			Help:      "Total document analysis requests by mode and status.",
		},
		[]string{"service", "mode", "status"},
	)
	analysisDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "duration_seconds",
			Help:      "Synchronous analysis duration in seconds, including remote polling.",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
		},
		[]string{"service", "status"},
	)
	analysisPages := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "document_pages",
			Help:      "Page count of analyzed PDF documents.",
			Buckets:   []float64{1, 2, 3, 5, 10, 20, 50},
		},
		[]string{"service"},
	)
	ledgerExports := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "exports_total",
			Help:      "Total ledger workbook exports by status.",
		},
		[]string{"service", "status"},
	)
	uploadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "uploads_total",
			Help:      "Total files received in upload requests by request outcome.",
		},
		[]string{"service", "status"},
	)
	unauthorizedHits := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "unauthorized_total",
			Help:      "Total requests rejected because the stored credential was refused.",
		},
		[]string{"service"},
	)
	breakerChanges := newBreakerTransitions()

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		analysisTotal,
		analysisDuration,
		analysisPages,
		ledgerExports,
		uploadsTotal,
		unauthorizedHits,
		breakerChanges,
	)

	return &HTTPServerMetrics{
		registry:         registry,
		requestTotal:     requestTotal,
		requestDuration:  requestDuration,
		requestInFlight:  requestInFlight,
		analysisTotal:    analysisTotal,
		analysisDuration: analysisDuration,
		analysisPages:    analysisPages,
		ledgerExports:    ledgerExports,
		uploadsTotal:     uploadsTotal,
		unauthorizedHits: unauthorizedHits,
		breakerChanges:   breakerChanges,
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

// normalizePath collapses identifiers so label cardinality stays bounded.
func normalizePath(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 3 || segments[0] != "v1" {
		return path
	}
	switch segments[1] {
	case "clients":
		segments[2] = "{clientId}"
		if len(segments) >= 5 && segments[3] == "documents" {
			segments[4] = "{documentId}"
		}
	case "analysis-jobs":
		segments[2] = "{jobId}"
	case "profiles":
		segments[2] = "{customerId}"
	default:
		return path
	}
	return "/" + strings.Join(segments, "/")
}

func (m *HTTPServerMetrics) RecordAnalysis(service, mode string, duration time.Duration, err error) {
	status := statusLabel(err)
	m.analysisTotal.WithLabelValues(service, mode, status).Inc()
	if mode == "sync" {
		m.analysisDuration.WithLabelValues(service, status).Observe(duration.Seconds())
	}
}

func (m *HTTPServerMetrics) RecordAnalysisPages(service string, pages int) {
	if pages <= 0 {
		return
	}
	m.analysisPages.WithLabelValues(service).Observe(float64(pages))
}

func (m *HTTPServerMetrics) RecordLedgerExport(service string, err error) {
	m.ledgerExports.WithLabelValues(service, statusLabel(err)).Inc()
}

// RecordUploadBatch counts the files of one upload request under the
// request's outcome.
func (m *HTTPServerMetrics) RecordUploadBatch(service string, files int, err error) {
	if files <= 0 {
		return
	}
	m.uploadsTotal.WithLabelValues(service, statusLabel(err)).Add(float64(files))
}

func (m *HTTPServerMetrics) RecordUnauthorized(service string) {
	m.unauthorizedHits.WithLabelValues(service).Inc()
}

// BreakerObserver returns a callback suitable for resilience.Config.OnStateChange.
func (m *HTTPServerMetrics) BreakerObserver(service string) func(remote, from, to string) {
	return breakerObserver(m.breakerChanges, service)
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
