package timing

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/storyviz/internal/ir"
)

// Metrics exports per-beat timing to Prometheus. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	beats    *prometheus.CounterVec
	expected *prometheus.HistogramVec
	measured *prometheus.HistogramVec
	events   *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		beats: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storyviz_beats_total",
				Help: "Total number of beats executed.",
			},
			[]string{"mode", "action"},
		),
		expected: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "storyviz_beat_expected_seconds",
				Help:    "Computed beat duration, in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"mode"},
		),
		measured: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "storyviz_beat_measured_seconds",
				Help:    "Wall-clock time spent executing a beat, in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"mode"},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storyviz_events_dispatched_total",
				Help: "Total number of visualization events routed through bindings.",
			},
			[]string{"event_type"},
		),
	}
	reg.MustRegister(m.beats, m.expected, m.measured, m.events)
	return m
}

// Observe records one timing record.
func (m *Metrics) Observe(rec ir.TimingRecord) {
	if m == nil {
		return
	}
	mode := string(rec.Mode)
	m.beats.WithLabelValues(mode, rec.Action).Inc()
	m.expected.WithLabelValues(mode).Observe(rec.Expected)
	m.measured.WithLabelValues(mode).Observe(rec.Measured)
}

// EventDispatched counts one routed event.
func (m *Metrics) EventDispatched(eventType string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(eventType).Inc()
}
