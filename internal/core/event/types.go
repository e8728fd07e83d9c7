package event

import (
	"github.com/rrbridge/rrbridge/internal/core/ecs"
	"github.com/rrbridge/rrbridge/internal/engine"
)

// Bridge events, emitted during tick N and delivered at the start of tick N+1.

// EventEnded is emitted when a playing instance finished on an emitter.
type EventEnded struct {
	Entity    ecs.EntityID
	Object    engine.ObjectID
	PlayingID engine.PlayingID
	Event     uint32
}

// EventDuration reports the estimated duration of a freshly posted instance.
type EventDuration struct {
	Entity    ecs.EntityID
	Object    engine.ObjectID
	PlayingID engine.PlayingID
	Duration  float64 // seconds
}

// EmitterSilenced is emitted when a despawn-on-silent emitter is queued for destruction.
type EmitterSilenced struct {
	Entity ecs.EntityID
	Object engine.ObjectID
}
