package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPCollector exposes Prometheus metrics for inbound HTTP requests.
type HTTPCollector struct {
	registry        *prometheus.Registry
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
}

// NewHTTPCollector constructs a collector with default histograms/counters.
func NewHTTPCollector() (*HTTPCollector, error) {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "skyguard",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for inbound HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skyguard",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of inbound HTTP requests.",
	}, []string{"method", "path", "status"})

	if err := registry.Register(requestDuration); err != nil {
		return nil, err
	}

	if err := registry.Register(requestTotal); err != nil {
		return nil, err
	}

	return &HTTPCollector{
		registry:        registry,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
	}, nil
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *HTTPCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry so other collectors can share the
// same /metrics endpoint.
func (c *HTTPCollector) Registry() *prometheus.Registry {
	return c.registry
}

// InstrumentHandler wraps the provided handler to record HTTP metrics.
func (c *HTTPCollector) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.status)
		path := r.URL.Path

		c.requestTotal.WithLabelValues(r.Method, path, status).Inc()
		c.requestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// EngineCollector exposes Prometheus metrics for the consensus engine. A nil
// collector is a valid no-op so tests can run without a registry.
type EngineCollector struct {
	reportsIngested  *prometheus.CounterVec
	targetsCreated   *prometheus.CounterVec
	targetsConfirmed *prometheus.CounterVec
	targetsRejected  *prometheus.CounterVec
	trustUpdates     *prometheus.CounterVec
	lockTimeouts     prometheus.Counter
}

// NewEngineCollector constructs and registers the engine counters.
func NewEngineCollector(registry *prometheus.Registry) (*EngineCollector, error) {
	c := &EngineCollector{
		reportsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "skyguard",
			Subsystem: "engine",
			Name:      "reports_ingested_total",
			Help:      "Total number of reports accepted by ingest.",
		}, []string{"target_type"}),
		targetsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "skyguard",
			Subsystem: "engine",
			Name:      "targets_created_total",
			Help:      "Total number of new target clusters created.",
		}, []string{"target_type"}),
		targetsConfirmed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "skyguard",
			Subsystem: "engine",
			Name:      "targets_confirmed_total",
			Help:      "Total number of targets reaching confirmed.",
		}, []string{"target_type"}),
		targetsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "skyguard",
			Subsystem: "engine",
			Name:      "targets_rejected_total",
			Help:      "Total number of targets reaching rejected.",
		}, []string{"target_type"}),
		trustUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "skyguard",
			Subsystem: "engine",
			Name:      "trust_updates_total",
			Help:      "Total number of reporter trust adjustments applied.",
		}, []string{"outcome"}),
		lockTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "skyguard",
			Subsystem: "engine",
			Name:      "lock_timeouts_total",
			Help:      "Total number of per-target lock acquisition timeouts.",
		}),
	}

	collectors := []prometheus.Collector{
		c.reportsIngested,
		c.targetsCreated,
		c.targetsConfirmed,
		c.targetsRejected,
		c.trustUpdates,
		c.lockTimeouts,
	}
	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// ReportIngested counts an accepted report.
func (c *EngineCollector) ReportIngested(targetType string) {
	if c == nil {
		return
	}
	c.reportsIngested.WithLabelValues(targetType).Inc()
}

// TargetCreated counts a new target cluster.
func (c *EngineCollector) TargetCreated(targetType string) {
	if c == nil {
		return
	}
	c.targetsCreated.WithLabelValues(targetType).Inc()
}

// TargetConfirmed counts a confirmed transition.
func (c *EngineCollector) TargetConfirmed(targetType string) {
	if c == nil {
		return
	}
	c.targetsConfirmed.WithLabelValues(targetType).Inc()
}

// TargetRejected counts a rejected transition.
func (c *EngineCollector) TargetRejected(targetType string) {
	if c == nil {
		return
	}
	c.targetsRejected.WithLabelValues(targetType).Inc()
}

// TrustUpdated counts one applied trust adjustment.
func (c *EngineCollector) TrustUpdated(outcome string) {
	if c == nil {
		return
	}
	c.trustUpdates.WithLabelValues(outcome).Inc()
}

// LockTimeout counts a per-target lock acquisition timeout.
func (c *EngineCollector) LockTimeout() {
	if c == nil {
		return
	}
	c.lockTimeouts.Inc()
}
