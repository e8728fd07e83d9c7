package component

import (
	"github.com/rrbridge/rrbridge/internal/core/ecs"
	"github.com/rrbridge/rrbridge/internal/engine"
	"github.com/rrbridge/rrbridge/internal/registry"
)

// Transform is an entity's world-space pose in simulation coordinates.
type Transform struct {
	Position engine.Vec3
	Rotation engine.Quat
}

func (t *Transform) Pose() registry.Pose {
	return registry.Pose{Position: t.Position, Rotation: t.Rotation}
}

// Name overrides the engine-side debug label.
type Name struct {
	Value string
}

// Emitter makes an entity a sound source. With AutoPost set, Event is posted
// right after the object is registered.
type Emitter struct {
	Event    engine.EventRef
	Flags    engine.CallbackFlags
	AutoPost bool
	Looping  bool
	// DespawnOnSilent destroys the entity once nothing plays on it anymore.
	DespawnOnSilent bool
}

// Listener makes an entity a hearing point. The first Default listener joins
// the active listener set automatically.
type Listener struct {
	Default bool
}

// Stores groups the component stores the audio systems read.
type Stores struct {
	Transform *ecs.Store[Transform]
	Name      *ecs.Store[Name]
	Emitter   *ecs.Store[Emitter]
	Listener  *ecs.Store[Listener]
}

// NewStores creates every store in w so destroyed entities lose their
// components.
func NewStores(w *ecs.World) *Stores {
	return &Stores{
		Transform: ecs.NewStoreIn[Transform](w),
		Name:      ecs.NewStoreIn[Name](w),
		Emitter:   ecs.NewStoreIn[Emitter](w),
		Listener:  ecs.NewStoreIn[Listener](w),
	}
}

// Label returns the entity's Name, or "" to let the registry pick one.
func (s *Stores) Label(e ecs.EntityID) string {
	if n, ok := s.Name.Get(e); ok {
		return n.Value
	}
	return ""
}
