package event

import (
	"testing"

	"github.com/rrbridge/rrbridge/internal/engine"
	"github.com/stretchr/testify/assert"
)

func TestBusDeliversNextTick(t *testing.T) {
	b := NewBus()
	var got []engine.ObjectID
	Subscribe(b, func(e EventEnded) { got = append(got, e.Object) })

	Emit(b, EventEnded{Object: 1})
	assert.Empty(t, Pending[EventEnded](b), "not readable in the tick it was emitted")
	b.DispatchAll()
	assert.Empty(t, got)

	b.SwapBuffers()
	Emit(b, EventEnded{Object: 2})
	assert.Len(t, Pending[EventEnded](b), 1)
	b.DispatchAll()
	assert.Equal(t, []engine.ObjectID{1}, got)

	b.SwapBuffers()
	b.DispatchAll()
	assert.Equal(t, []engine.ObjectID{1, 2}, got)

	b.SwapBuffers()
	assert.Empty(t, Pending[EventEnded](b))
}

func TestBusDispatchOrderFollowsFirstEmit(t *testing.T) {
	b := NewBus()
	var order []string
	Subscribe(b, func(EmitterSilenced) { order = append(order, "silenced") })
	Subscribe(b, func(EventDuration) { order = append(order, "duration") })

	Emit(b, EventDuration{})
	Emit(b, EmitterSilenced{})
	Emit(b, EventDuration{})
	b.SwapBuffers()
	b.DispatchAll()
	assert.Equal(t, []string{"duration", "duration", "silenced"}, order)
}
