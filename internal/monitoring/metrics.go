// Package monitoring exposes Prometheus metrics describing transport health.
package monitoring

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Send outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeRetry   = "retry"
	OutcomeFailure = "failure"
)

// Metrics holds all Prometheus metrics for a transport instance.
//
// Metrics live on a private registry: the SDK may be embedded in hosts that
// register their own collectors, and a second SDK instance must not panic on
// duplicate registration.
type Metrics struct {
	EventsEmitted *prometheus.CounterVec
	SendAttempts  *prometheus.CounterVec
	EventsDropped prometheus.Counter
	PendingEvents prometheus.Gauge
	FlushDuration prometheus.Histogram
	BreakerState  prometheus.Gauge

	registry *prometheus.Registry

	// Snapshot values for cheap programmatic access.
	mu       sync.RWMutex
	snapshot Snapshot
}

// Snapshot holds current counter values for programmatic access.
type Snapshot struct {
	Emitted int64
	Dropped int64
	Pending int64
}

// NewMetrics creates a metrics collector on a private registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		EventsEmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beacon_events_emitted_total",
				Help: "Total number of events handed to the transport",
			},
			[]string{"type"},
		),
		SendAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beacon_send_attempts_total",
				Help: "Collector call attempts by outcome",
			},
			[]string{"outcome"},
		),
		EventsDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "beacon_events_dropped_total",
				Help: "Events discarded after retry exhaustion",
			},
		),
		PendingEvents: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "beacon_pending_events",
				Help: "Events dispatched but not yet settled",
			},
		),
		FlushDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "beacon_flush_duration_seconds",
				Help:    "Time spent draining pending events",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10, 30},
			},
		),
		BreakerState: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "beacon_breaker_state",
				Help: "Collector circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
		),
	}
}

// Registry returns the private registry, for hosts that want to scrape it.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordEmitted counts an event of the given type entering the transport.
func (m *Metrics) RecordEmitted(eventType string) {
	m.EventsEmitted.WithLabelValues(eventType).Inc()
	m.mu.Lock()
	m.snapshot.Emitted++
	m.mu.Unlock()
}

// RecordAttempt counts a collector call attempt.
func (m *Metrics) RecordAttempt(outcome string) {
	m.SendAttempts.WithLabelValues(outcome).Inc()
}

// RecordDropped counts an event discarded after retry exhaustion.
func (m *Metrics) RecordDropped() {
	m.EventsDropped.Inc()
	m.mu.Lock()
	m.snapshot.Dropped++
	m.mu.Unlock()
}

// SetPending tracks the current number of unsettled events.
func (m *Metrics) SetPending(n int) {
	m.PendingEvents.Set(float64(n))
	m.mu.Lock()
	m.snapshot.Pending = int64(n)
	m.mu.Unlock()
}

// ObserveFlush records the duration of a flush in seconds.
func (m *Metrics) ObserveFlush(seconds float64) {
	m.FlushDuration.Observe(seconds)
}

// SetBreakerState records the breaker state as a numeric gauge.
func (m *Metrics) SetBreakerState(state int) {
	m.BreakerState.Set(float64(state))
}

// GetSnapshot returns current counter values.
func (m *Metrics) GetSnapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}
