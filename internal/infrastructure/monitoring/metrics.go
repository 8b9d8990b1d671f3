package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Policy metrics
	DecisionsTotal   *prometheus.CounterVec
	DecisionDuration *prometheus.HistogramVec

	// Rule metrics
	RuleReloads prometheus.Counter
	RuleCount   *prometheus.GaugeVec

	// Userscript metrics
	ScriptsLoaded   prometheus.Gauge
	InjectionsTotal *prometheus.CounterVec
	CapabilityCalls *prometheus.CounterVec
	PaywallApplied  prometheus.Counter

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	registry *prometheus.Registry

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests  int64
	TotalErrors    int64
	TotalDecisions int64
	TotalBlocked   int64
	TotalDuration  float64 // sum of all request durations
	RequestCount   int64   // count for averaging
}

// NewMetrics creates a new metrics collector with its own registry, so
// multiple instances can coexist in one process.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		registry:  registry,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "engine_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		DecisionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_policy_decisions_total",
				Help: "Total number of policy decisions",
			},
			[]string{"event", "verdict", "reason"},
		),
		DecisionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "engine_policy_decision_duration_seconds",
				Help:    "Policy decision duration in seconds",
				Buckets: []float64{.00001, .0001, .001, .01, .1},
			},
			[]string{"event"},
		),

		RuleReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "engine_rule_reloads_total",
				Help: "Total number of rule set reloads",
			},
		),
		RuleCount: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "engine_rules",
				Help: "Number of loaded rules per category",
			},
			[]string{"category"},
		),

		ScriptsLoaded: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "engine_userscripts_loaded",
				Help: "Number of loaded userscripts",
			},
		),
		InjectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_userscript_injections_total",
				Help: "Total number of userscript injections",
			},
			[]string{"status"},
		),
		CapabilityCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_capability_calls_total",
				Help: "Total number of userscript capability calls",
			},
			[]string{"capability"},
		),
		PaywallApplied: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "engine_paywall_techniques_applied_total",
				Help: "Total number of paywall techniques applied",
			},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "engine_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),

		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "engine_uptime_seconds",
				Help: "Engine uptime in seconds",
			},
		),
	}

	// Start uptime updater
	go m.updateUptime()

	return m
}

// Registry returns the backing Prometheus registry for exposition.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// updateUptime continuously updates the uptime metric
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	// Update snapshot
	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.TotalDuration += duration.Seconds()
	m.snapshot.RequestCount++
	if len(status) > 0 && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordDecision records a policy decision
func (m *Metrics) RecordDecision(event, verdict, reason string, duration time.Duration, blocked bool) {
	m.DecisionsTotal.WithLabelValues(event, verdict, reason).Inc()
	m.DecisionDuration.WithLabelValues(event).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalDecisions++
	if blocked {
		m.snapshot.TotalBlocked++
	}
	m.mu.Unlock()
}

// RecordRuleReload records a rule reload with per-category counts
func (m *Metrics) RecordRuleReload(counts map[string]int) {
	m.RuleReloads.Inc()
	for category, n := range counts {
		m.RuleCount.WithLabelValues(category).Set(float64(n))
	}
}

// SetScriptsLoaded sets the number of loaded userscripts
func (m *Metrics) SetScriptsLoaded(count int) {
	m.ScriptsLoaded.Set(float64(count))
}

// RecordInjection records one userscript injection attempt
func (m *Metrics) RecordInjection(ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	m.InjectionsTotal.WithLabelValues(status).Inc()
}

// RecordCapabilityCall records one capability bridge call
func (m *Metrics) RecordCapabilityCall(capability string) {
	m.CapabilityCalls.WithLabelValues(capability).Inc()
}

// RecordPaywallApplied adds applied paywall techniques
func (m *Metrics) RecordPaywallApplied(count int) {
	m.PaywallApplied.Add(float64(count))
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
}

// Snapshot returns current aggregate values for the JSON status API
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}
