// Package observability holds the Prometheus metrics surface of the
// service.
package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	globalCollector *Collector
	collectorMutex  sync.Mutex
)

// Collector holds all Prometheus metrics for the application
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Editor metrics
	DiagramsSaved   prometheus.Counter
	DiagramsDeleted prometheus.Counter
	NodesAdded      prometheus.Counter
	NodesDeleted    prometheus.Counter
	SharesResolved  *prometheus.CounterVec

	// Gateway metrics
	SignIns *prometheus.CounterVec
}

// NewCollector creates the metrics collector. A process-wide singleton
// avoids duplicate registration when the container is rebuilt in tests.
func NewCollector(namespace string) *Collector {
	collectorMutex.Lock()
	defer collectorMutex.Unlock()

	if globalCollector != nil {
		return globalCollector
	}

	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
	httpDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	diagramsSaved := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagrams_saved_total",
			Help:      "Total number of diagram save operations",
		},
	)
	diagramsDeleted := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagrams_deleted_total",
			Help:      "Total number of diagrams deleted",
		},
	)
	nodesAdded := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nodes_added_total",
			Help:      "Total number of nodes added",
		},
	)
	nodesDeleted := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nodes_deleted_total",
			Help:      "Total number of nodes deleted",
		},
	)
	sharesResolved := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shares_resolved_total",
			Help:      "Share invitations by resolution outcome",
		},
		[]string{"outcome"},
	)
	signIns := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sign_ins_total",
			Help:      "Sign-in attempts by result",
		},
		[]string{"result"},
	)

	registry.MustRegister(
		httpRequests,
		httpDuration,
		diagramsSaved,
		diagramsDeleted,
		nodesAdded,
		nodesDeleted,
		sharesResolved,
		signIns,
	)

	globalCollector = &Collector{
		registry:        registry,
		HTTPRequests:    httpRequests,
		HTTPDuration:    httpDuration,
		DiagramsSaved:   diagramsSaved,
		DiagramsDeleted: diagramsDeleted,
		NodesAdded:      nodesAdded,
		NodesDeleted:    nodesDeleted,
		SharesResolved:  sharesResolved,
		SignIns:         signIns,
	}
	return globalCollector
}

// ResetForTesting resets the global collector for testing purposes
func ResetForTesting() {
	collectorMutex.Lock()
	defer collectorMutex.Unlock()
	globalCollector = nil
}

// Handler exposes the collector's registry for scraping
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latencies per route pattern
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		c.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(wrapper.status)).Inc()
		c.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
