// Package metrics tracks per-tenant poller statistics and exports them to
// Prometheus.
package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Invocation kinds.
const (
	KindEvent = "event"
	KindHTTP  = "http"
)

// Invocation outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeFallback = "fallback"
)

// PollerMetrics tracks invocation statistics for every tenant poller.
type PollerMetrics struct {
	mu sync.RWMutex

	tenants map[string]*TenantStats
	active  int

	invocationsTotal *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	fetchErrorsTotal *prometheus.CounterVec
	duplicatesTotal  *prometheus.CounterVec
	activePollers    prometheus.Gauge

	registerer prometheus.Registerer
	registered bool
}

// TenantStats holds the counters of a single tenant.
type TenantStats struct {
	Invocations      uint64    `json:"invocations"`
	Failures         uint64    `json:"failures"`
	Fallbacks        uint64    `json:"fallbacks"`
	Duplicates       uint64    `json:"duplicates"`
	FetchErrors      uint64    `json:"fetch_errors"`
	Running          bool      `json:"running"`
	LastInvocationAt time.Time `json:"last_invocation_at,omitempty"`
}

// Snapshot is a point-in-time view of all poller metrics.
type Snapshot struct {
	ActivePollers    int                     `json:"active_pollers"`
	TotalInvocations uint64                  `json:"total_invocations"`
	TotalFailures    uint64                  `json:"total_failures"`
	Tenants          map[string]*TenantStats `json:"tenants"`
	CollectedAt      time.Time               `json:"collected_at"`
}

func newCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lambdabridge",
			Subsystem: "poller",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func newHistogramVec(name, help string, buckets []float64, labels []string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lambdabridge",
			Subsystem: "poller",
			Name:      name,
			Help:      help,
			Buckets:   buckets,
		},
		labels,
	)
}

// New creates a PollerMetrics collector. A nil registerer means the default
// Prometheus registerer.
func New(registerer prometheus.Registerer) *PollerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &PollerMetrics{
		tenants:          make(map[string]*TenantStats),
		registerer:       registerer,
		invocationsTotal: newCounterVec("invocations_total", "Invocations processed, by kind and outcome", []string{"tenant", "kind", "outcome"}),
		dispatchDuration: newHistogramVec("dispatch_duration_seconds", "Time spent in the dispatch target", prometheus.DefBuckets, []string{"tenant", "kind"}),
		fetchErrorsTotal: newCounterVec("fetch_errors_total", "Failed calls to /invocation/next", []string{"tenant"}),
		duplicatesTotal:  newCounterVec("duplicates_total", "Request ids handed out more than once", []string{"tenant"}),
		activePollers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lambdabridge",
			Subsystem: "poller",
			Name:      "active",
			Help:      "Number of running tenant pollers",
		}),
	}
}

// Register registers the Prometheus collectors. Safe to call multiple times.
func (m *PollerMetrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		m.invocationsTotal,
		m.dispatchDuration,
		m.fetchErrorsTotal,
		m.duplicatesTotal,
		m.activePollers,
	}
	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return err
			}
		}
	}

	m.registered = true
	return nil
}

// PollerStarted marks tenant as running.
func (m *PollerMetrics) PollerStarted(tenant string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := m.getOrCreate(tenant)
	if !stats.Running {
		stats.Running = true
		m.active++
	}
	m.activePollers.Set(float64(m.active))
}

// PollerStopped marks tenant as no longer running.
func (m *PollerMetrics) PollerStopped(tenant string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := m.getOrCreate(tenant)
	if stats.Running {
		stats.Running = false
		m.active--
	}
	m.activePollers.Set(float64(m.active))
}

// RecordInvocation records one processed invocation.
func (m *PollerMetrics) RecordInvocation(tenant, kind, outcome string, took time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := m.getOrCreate(tenant)
	stats.LastInvocationAt = time.Now()
	switch outcome {
	case OutcomeFallback:
		stats.Fallbacks++
	case OutcomeError:
		stats.Invocations++
		stats.Failures++
	default:
		stats.Invocations++
	}

	m.invocationsTotal.WithLabelValues(tenant, kind, outcome).Inc()
	if outcome != OutcomeFallback {
		m.dispatchDuration.WithLabelValues(tenant, kind).Observe(took.Seconds())
	}
}

// RecordDuplicate records a request id that had already been dispatched.
func (m *PollerMetrics) RecordDuplicate(tenant string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.getOrCreate(tenant).Duplicates++
	m.duplicatesTotal.WithLabelValues(tenant).Inc()
}

// RecordFetchError records a failed /invocation/next call.
func (m *PollerMetrics) RecordFetchError(tenant string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.getOrCreate(tenant).FetchErrors++
	m.fetchErrorsTotal.WithLabelValues(tenant).Inc()
}

// Snapshot returns a copy of all tenant statistics.
func (m *PollerMetrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := Snapshot{
		ActivePollers: m.active,
		Tenants:       make(map[string]*TenantStats, len(m.tenants)),
		CollectedAt:   time.Now(),
	}
	for tenant, stats := range m.tenants {
		cp := *stats
		snapshot.Tenants[tenant] = &cp
		snapshot.TotalInvocations += stats.Invocations
		snapshot.TotalFailures += stats.Failures
	}
	return snapshot
}

// Tenant returns a copy of one tenant's statistics, or nil if unknown.
func (m *PollerMetrics) Tenant(tenant string) *TenantStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats, ok := m.tenants[tenant]
	if !ok {
		return nil
	}
	cp := *stats
	return &cp
}

func (m *PollerMetrics) getOrCreate(tenant string) *TenantStats {
	if stats, ok := m.tenants[tenant]; ok {
		return stats
	}
	stats := &TenantStats{}
	m.tenants[tenant] = stats
	return stats
}

// Reset clears all metrics (useful for testing).
func (m *PollerMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tenants = make(map[string]*TenantStats)
	m.active = 0
	m.invocationsTotal.Reset()
	m.dispatchDuration.Reset()
	m.fetchErrorsTotal.Reset()
	m.duplicatesTotal.Reset()
	m.activePollers.Set(0)
}
