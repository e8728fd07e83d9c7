package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestBridgeCollectors(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObjectRegistered()
	m.ObjectRegistered()
	m.ObjectUnregistered()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.registeredObjects))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.registrations))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.unregistrations))

	m.ObjectsCleared()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.registeredObjects))

	m.PositionsSent(3)
	m.PositionsSent(0)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.positionUpdates))

	m.EventPosted(true)
	m.EventPosted(false)
	m.EventPosted(false)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsPosted.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.eventsPosted.WithLabelValues("error")))

	m.EngineError("SetPosition")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.engineErrors.WithLabelValues("SetPosition")))

	m.ListenersActive(2)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.activeListeners))

	m.ObserveTick(time.Millisecond)
	assert.Equal(t, 1, testutil.CollectAndCount(m.tickDuration))
}

func TestNilBridgeRecordsNothing(t *testing.T) {
	var m *Bridge
	assert.NotPanics(t, func() {
		m.ObjectRegistered()
		m.ObjectUnregistered()
		m.ObjectsCleared()
		m.PositionsSent(1)
		m.EventPosted(true)
		m.EngineError("x")
		m.ObserveTick(time.Second)
		m.ListenersActive(1)
	})
}
