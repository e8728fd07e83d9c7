// Package metrics instruments the bridge for Prometheus. A nil *Bridge is
// valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Bridge struct {
	registeredObjects prometheus.Gauge
	registrations     prometheus.Counter
	unregistrations   prometheus.Counter
	positionUpdates   prometheus.Counter
	eventsPosted      *prometheus.CounterVec
	engineErrors      *prometheus.CounterVec
	tickDuration      prometheus.Histogram
	activeListeners   prometheus.Gauge
}

// New creates the bridge collectors and registers them with reg.
func New(reg prometheus.Registerer) *Bridge {
	m := &Bridge{
		registeredObjects: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rrbridge",
			Subsystem: "registry",
			Name:      "registered_objects",
			Help:      "Objects currently registered with the audio engine",
		}),
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rrbridge",
			Subsystem: "registry",
			Name:      "registrations_total",
			Help:      "Total objects registered with the audio engine",
		}),
		unregistrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rrbridge",
			Subsystem: "registry",
			Name:      "unregistrations_total",
			Help:      "Total objects unregistered from the audio engine",
		}),
		positionUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rrbridge",
			Subsystem: "sync",
			Name:      "position_updates_total",
			Help:      "Total set-position calls issued",
		}),
		eventsPosted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rrbridge",
			Subsystem: "dispatch",
			Name:      "events_posted_total",
			Help:      "Events posted, by result",
		}, []string{"result"}),
		engineErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rrbridge",
			Subsystem: "engine",
			Name:      "errors_total",
			Help:      "Failed engine calls, by operation",
		}, []string{"op"}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rrbridge",
			Subsystem: "loop",
			Name:      "tick_duration_seconds",
			Help:      "Wall time spent running one tick of the bridge systems",
			Buckets:   []float64{.0001, .0005, .001, .002, .004, .008, .016, .033, .066},
		}),
		activeListeners: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rrbridge",
			Subsystem: "listener",
			Name:      "active_listeners",
			Help:      "Objects in the active listener set",
		}),
	}
	reg.MustRegister(
		m.registeredObjects, m.registrations, m.unregistrations, m.positionUpdates,
		m.eventsPosted, m.engineErrors, m.tickDuration, m.activeListeners,
	)
	return m
}

func (m *Bridge) ObjectRegistered() {
	if m == nil {
		return
	}
	m.registrations.Inc()
	m.registeredObjects.Inc()
}

func (m *Bridge) ObjectUnregistered() {
	if m == nil {
		return
	}
	m.unregistrations.Inc()
	m.registeredObjects.Dec()
}

// ObjectsCleared resets the gauge after the engine dropped every object.
func (m *Bridge) ObjectsCleared() {
	if m == nil {
		return
	}
	m.registeredObjects.Set(0)
}

func (m *Bridge) PositionsSent(n int) {
	if m == nil || n == 0 {
		return
	}
	m.positionUpdates.Add(float64(n))
}

func (m *Bridge) EventPosted(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.eventsPosted.WithLabelValues(result).Inc()
}

func (m *Bridge) EngineError(op string) {
	if m == nil {
		return
	}
	m.engineErrors.WithLabelValues(op).Inc()
}

func (m *Bridge) ObserveTick(d time.Duration) {
	if m == nil {
		return
	}
	m.tickDuration.Observe(d.Seconds())
}

func (m *Bridge) ListenersActive(n int) {
	if m == nil {
		return
	}
	m.activeListeners.Set(float64(n))
}
