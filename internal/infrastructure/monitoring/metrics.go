package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "constellation"

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Pipeline metrics
	PipelinesActive   prometheus.Gauge
	PipelinesSpawned  prometheus.Counter
	PipelinesRetained prometheus.Gauge
	EventLoopsSpawned prometheus.Counter
	SpawnFailures     prometheus.Counter

	// Navigation metrics
	Navigations     *prometheus.CounterVec
	Traversals      *prometheus.CounterVec
	StaleDiscarded  prometheus.Counter
	Crashes         prometheus.Counter
	HangAlerts      prometheus.Counter
	MailboxDepth    prometheus.Gauge
	MessagesHandled *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge

	startTime time.Time

	// Snapshot for the JSON health endpoint
	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current values for JSON responses
type Snapshot struct {
	TotalRequests   int64   `json:"total_requests"`
	TotalErrors     int64   `json:"total_errors"`
	PipelinesActive int64   `json:"pipelines_active"`
	Crashes         int64   `json:"crashes"`
	UptimeSeconds   float64 `json:"uptime_seconds"`
}

// NewMetrics registers the collectors with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{startTime: time.Now()}

	m.RequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	m.RequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	m.PipelinesActive = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "pipelines_active",
		Help:      "Number of live pipelines",
	})
	m.PipelinesSpawned = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pipelines_spawned_total",
		Help:      "Total number of pipelines created",
	})
	m.PipelinesRetained = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "pipelines_retained",
		Help:      "Number of inactive pipelines kept for traversal",
	})
	m.EventLoopsSpawned = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "event_loops_spawned_total",
		Help:      "Total number of content threads spawned",
	})
	m.SpawnFailures = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "spawn_failures_total",
		Help:      "Total number of failed content thread spawns",
	})

	m.Navigations = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "navigations_total",
			Help:      "Navigations started, by kind",
		},
		[]string{"kind"},
	)
	m.Traversals = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "traversals_total",
			Help:      "History traversals, by direction",
		},
		[]string{"direction"},
	)
	m.StaleDiscarded = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stale_responses_total",
		Help:      "Responses discarded because their navigation was superseded",
	})
	m.Crashes = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pipeline_crashes_total",
		Help:      "Pipeline crashes handled",
	})
	m.HangAlerts = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "hang_alerts_total",
		Help:      "Hang alerts reported by the hang monitor",
	})
	m.MailboxDepth = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "mailbox_depth",
		Help:      "Messages waiting in the constellation mailbox",
	})
	m.MessagesHandled = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Mailbox messages handled, by type",
		},
		[]string{"type"},
	)

	m.WSConnections = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ws_connections",
		Help:      "Number of active event stream connections",
	})

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "uptime_seconds",
		Help:      "Service uptime in seconds",
	}, func() float64 {
		return time.Since(m.startTime).Seconds()
	})

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status[0] == '4' || status[0] == '5' {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// SetPipelinesActive sets the live pipeline gauge
func (m *Metrics) SetPipelinesActive(count int) {
	if m == nil {
		return
	}
	m.PipelinesActive.Set(float64(count))
	m.mu.Lock()
	m.snapshot.PipelinesActive = int64(count)
	m.mu.Unlock()
}

// SetPipelinesRetained sets the retained pipeline gauge
func (m *Metrics) SetPipelinesRetained(count int) {
	if m == nil {
		return
	}
	m.PipelinesRetained.Set(float64(count))
}

// IncPipelinesSpawned counts a created pipeline
func (m *Metrics) IncPipelinesSpawned() {
	if m == nil {
		return
	}
	m.PipelinesSpawned.Inc()
}

// IncEventLoopsSpawned counts a spawned content thread
func (m *Metrics) IncEventLoopsSpawned() {
	if m == nil {
		return
	}
	m.EventLoopsSpawned.Inc()
}

// IncSpawnFailures counts a failed spawn
func (m *Metrics) IncSpawnFailures() {
	if m == nil {
		return
	}
	m.SpawnFailures.Inc()
}

// RecordNavigation counts a navigation of the given kind (load, replace, iframe, top_level, reload)
func (m *Metrics) RecordNavigation(kind string) {
	if m == nil {
		return
	}
	m.Navigations.WithLabelValues(kind).Inc()
}

// RecordTraversal counts a history traversal
func (m *Metrics) RecordTraversal(direction string) {
	if m == nil {
		return
	}
	m.Traversals.WithLabelValues(direction).Inc()
}

// IncStaleDiscarded counts a suppressed stale response
func (m *Metrics) IncStaleDiscarded() {
	if m == nil {
		return
	}
	m.StaleDiscarded.Inc()
}

// IncCrashes counts a handled crash
func (m *Metrics) IncCrashes() {
	if m == nil {
		return
	}
	m.Crashes.Inc()
	m.mu.Lock()
	m.snapshot.Crashes++
	m.mu.Unlock()
}

// IncHangAlerts counts a hang alert
func (m *Metrics) IncHangAlerts() {
	if m == nil {
		return
	}
	m.HangAlerts.Inc()
}

// SetMailboxDepth records the mailbox backlog
func (m *Metrics) SetMailboxDepth(depth int) {
	if m == nil {
		return
	}
	m.MailboxDepth.Set(float64(depth))
}

// RecordMessage counts a handled mailbox message
func (m *Metrics) RecordMessage(kind string) {
	if m == nil {
		return
	}
	m.MessagesHandled.WithLabelValues(kind).Inc()
}

// IncWSConnections increments event stream connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

// DecWSConnections decrements event stream connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}

// Snapshot returns the current JSON-friendly values
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.snapshot
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
