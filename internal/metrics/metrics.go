// Package metrics exposes dispatch counters on a Prometheus
// registerer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Sink records dispatch lifecycle events in Prometheus metrics. A nil
// *Sink is valid and drops every record, so callers never have to
// guard their instrumentation.
type Sink struct {
	sensorReadings prometheus.Counter
	assignments    *prometheus.CounterVec
	timeouts       prometheus.Counter
	cleanings      prometheus.Counter
	routeFallbacks prometheus.Counter
}

// NewSink registers the dispatch collectors on reg. If reg is nil the
// default registerer is used; already-registered collectors are
// reused.
func NewSink(reg prometheus.Registerer) (*Sink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &Sink{
		sensorReadings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sensor_readings_total",
			Help: "Total number of sensor readings ingested",
		}),
		assignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_assignments_total",
			Help: "Total number of assignment attempts by trigger and outcome",
		}, []string{"trigger", "reason"}),
		timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_timeouts_total",
			Help: "Total number of assignments reclaimed by the timeout supervisor",
		}),
		cleanings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cleanings_completed_total",
			Help: "Total number of completed bin cleanings",
		}),
		routeFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "route_fallbacks_total",
			Help: "Total number of routes served by the straight-line fallback",
		}),
	}

	collectors := []prometheus.Collector{
		s.sensorReadings, s.assignments, s.timeouts, s.cleanings, s.routeFallbacks,
	}
	for i, c := range collectors {
		if err := reg.Register(c); err != nil {
			are, ok := err.(prometheus.AlreadyRegisteredError)
			if !ok {
				return nil, err
			}
			collectors[i] = are.ExistingCollector
		}
	}
	s.sensorReadings = collectors[0].(prometheus.Counter)
	s.assignments = collectors[1].(*prometheus.CounterVec)
	s.timeouts = collectors[2].(prometheus.Counter)
	s.cleanings = collectors[3].(prometheus.Counter)
	s.routeFallbacks = collectors[4].(prometheus.Counter)
	return s, nil
}

func (s *Sink) RecordSensorReading() {
	if s == nil {
		return
	}
	s.sensorReadings.Inc()
}

func (s *Sink) RecordAssignment(trigger, reason string) {
	if s == nil {
		return
	}
	s.assignments.WithLabelValues(trigger, reason).Inc()
}

func (s *Sink) RecordTimeout() {
	if s == nil {
		return
	}
	s.timeouts.Inc()
}

func (s *Sink) RecordCleaning() {
	if s == nil {
		return
	}
	s.cleanings.Inc()
}

func (s *Sink) RecordRouteFallback() {
	if s == nil {
		return
	}
	s.routeFallbacks.Inc()
}
