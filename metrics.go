package gemini

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus instrumentation for a Manager. It is
// ambient observability, not part of the coherence protocol itself; a
// Manager built without metrics (nil) simply skips incrementing these.
type Metrics struct {
	EventsPublished *prometheus.CounterVec
	EventsApplied   *prometheus.CounterVec
	EventsDropped   *prometheus.CounterVec
	BulkDegraded    *prometheus.CounterVec
	SendFailures    *prometheus.CounterVec
	Connected       prometheus.Gauge
}

// NewMetrics constructs and registers a Metrics set against reg. Pass
// prometheus.DefaultRegisterer to use the global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cachebus_events_published_total",
			Help: "Cache coherence events published to the cache topic.",
		}, []string{"type", "action"}),
		EventsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cachebus_events_applied_total",
			Help: "Cache coherence events applied to the local store.",
		}, []string{"type", "action"}),
		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cachebus_events_dropped_total",
			Help: "Cache coherence events dropped on receipt, by reason.",
		}, []string{"reason"}),
		BulkDegraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cachebus_bulk_degraded_total",
			Help: "Bulk relation mutations degraded to RESET for exceeding maximumRelationSize.",
		}, []string{"relation_action"}),
		SendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cachebus_send_failures_total",
			Help: "Transport failures encountered while publishing an event.",
		}, []string{"type", "action"}),
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cachebus_connected",
			Help: "1 if the Manager's publish and subscribe connections are both up, 0 otherwise.",
		}),
	}

	reg.MustRegister(m.EventsPublished, m.EventsApplied, m.EventsDropped, m.BulkDegraded, m.SendFailures, m.Connected)

	return m
}
