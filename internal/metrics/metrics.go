package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "phwatch"

// Registry holds all Prometheus metrics for phwatch.
// Every method is safe on a nil *Registry, which records nothing.
// ⭐ SSOT: metric names are declared here only
type Registry struct {
	reg *prometheus.Registry

	// Store access
	StoreRequests *prometheus.CounterVec
	StoreLatency  *prometheus.HistogramVec
	BreakerState  *prometheus.GaugeVec

	// Fetch cache
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	// Market state
	ActiveContracts    prometheus.Gauge
	StructureDates     prometheus.Gauge
	StructureContracts prometheus.Gauge
	StructureDuration  prometheus.Histogram

	// HTTP + websocket
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	WSClients    prometheus.Gauge

	// Scheduler
	JobRuns *prometheus.CounterVec
}

// New creates a registry with Go runtime and process collectors attached
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		StoreRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_requests_total",
				Help:      "Store calls by backend, operation and result",
			},
			[]string{"backend", "op", "result"},
		),

		StoreLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_request_duration_seconds",
				Help:      "Store call latency in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"backend", "op"},
		),

		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"breaker"},
		),

		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Fetch cache hits by cache",
			},
			[]string{"cache"},
		),

		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Fetch cache misses by cache",
			},
			[]string{"cache"},
		),

		ActiveContracts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_contracts",
			Help:      "Contracts on the live board at the last refresh",
		}),

		StructureDates: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "structure_dates",
			Help:      "Trading dates in the current market structure",
		}),

		StructureContracts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "structure_contracts",
			Help:      "Contracts in the current market structure",
		}),

		StructureDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "structure_build_duration_seconds",
			Help:      "Market structure build time in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),

		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),

		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_clients",
			Help:      "Connected websocket clients",
		}),

		JobRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "job_runs_total",
				Help:      "Scheduled job runs by job and status",
			},
			[]string{"job", "status"},
		),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.StoreRequests,
		r.StoreLatency,
		r.BreakerState,
		r.CacheHits,
		r.CacheMisses,
		r.ActiveContracts,
		r.StructureDates,
		r.StructureContracts,
		r.StructureDuration,
		r.HTTPRequests,
		r.HTTPDuration,
		r.WSClients,
		r.JobRuns,
	)

	return r
}

// Handler exposes the registry in the Prometheus text format
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Gatherer returns the underlying registry for tests
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// ObserveStore records one store call
func (r *Registry) ObserveStore(backend, op string, start time.Time, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.StoreRequests.WithLabelValues(backend, op, result).Inc()
	r.StoreLatency.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
}

// SetBreakerState records a circuit breaker transition
func (r *Registry) SetBreakerState(name string, state int) {
	if r == nil {
		return
	}
	r.BreakerState.WithLabelValues(name).Set(float64(state))
}

// CacheHit counts a fetch cache hit
func (r *Registry) CacheHit(cache string) {
	if r == nil {
		return
	}
	r.CacheHits.WithLabelValues(cache).Inc()
}

// CacheMiss counts a fetch cache miss
func (r *Registry) CacheMiss(cache string) {
	if r == nil {
		return
	}
	r.CacheMisses.WithLabelValues(cache).Inc()
}

// SetActiveContracts records the live board size
func (r *Registry) SetActiveContracts(n int) {
	if r == nil {
		return
	}
	r.ActiveContracts.Set(float64(n))
}

// ObserveStructure records one market structure build
func (r *Registry) ObserveStructure(dates, contracts int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.StructureDates.Set(float64(dates))
	r.StructureContracts.Set(float64(contracts))
	r.StructureDuration.Observe(elapsed.Seconds())
}

// ObserveHTTP records one served request
func (r *Registry) ObserveHTTP(route, method, status string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.HTTPRequests.WithLabelValues(route, method, status).Inc()
	r.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// SetWSClients records the number of websocket subscribers
func (r *Registry) SetWSClients(n int) {
	if r == nil {
		return
	}
	r.WSClients.Set(float64(n))
}

// JobRun counts one scheduled job execution
func (r *Registry) JobRun(job string, success bool) {
	if r == nil {
		return
	}
	status := "success"
	if !success {
		status = "failed"
	}
	r.JobRuns.WithLabelValues(job, status).Inc()
}
