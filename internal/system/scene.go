package system

import (
	"github.com/rrbridge/rrbridge/internal/component"
	"github.com/rrbridge/rrbridge/internal/core/ecs"
	"github.com/rrbridge/rrbridge/internal/engine"
	"github.com/rrbridge/rrbridge/internal/scripting"
)

// DefaultListenerKey is the scene key of the listener spawned at startup.
const DefaultListenerKey = "default_listener"

// Scene maps scenario keys to live entities.
type Scene struct {
	world *ecs.World
	st    *component.Stores
	keys  map[string]ecs.EntityID
}

func NewScene(world *ecs.World, st *component.Stores) *Scene {
	return &Scene{world: world, st: st, keys: make(map[string]ecs.EntityID)}
}

// Entity returns the live entity behind key. Keys of destroyed entities are
// forgotten on lookup.
func (s *Scene) Entity(key string) (ecs.EntityID, bool) {
	e, ok := s.keys[key]
	if !ok {
		return 0, false
	}
	if !s.world.Alive(e) {
		delete(s.keys, key)
		return 0, false
	}
	return e, true
}

// Spawn creates the entity described by sp. Spawning an existing key
// updates that entity in place.
func (s *Scene) Spawn(sp scripting.Spawn) ecs.EntityID {
	e, ok := s.Entity(sp.Key)
	if !ok {
		e = s.world.CreateEntity()
		if sp.Key != "" {
			s.keys[sp.Key] = e
		}
	}

	s.st.Transform.Set(e, &component.Transform{
		Position: engine.Vec3{X: float32(sp.X), Y: float32(sp.Y), Z: float32(sp.Z)},
		Rotation: engine.QuatFromYaw(float32(sp.Yaw)),
	})
	if sp.Name != "" {
		s.st.Name.Set(e, &component.Name{Value: sp.Name})
	}

	switch sp.Kind {
	case "listener":
		s.st.Listener.Set(e, &component.Listener{Default: sp.Default})
	default:
		em := &component.Emitter{
			Looping:         sp.Looping,
			DespawnOnSilent: sp.DespawnOnSilent,
		}
		if sp.Event != "" {
			em.Event = engine.EventName(sp.Event)
			em.AutoPost = sp.AutoPost
		}
		s.st.Emitter.Set(e, em)
	}
	return e
}

// SpawnDefaultListener creates the listener that every bridge starts with.
func (s *Scene) SpawnDefaultListener() ecs.EntityID {
	return s.Spawn(scripting.Spawn{Key: DefaultListenerKey, Kind: "listener", Default: true})
}

// Move rewrites the transform of key's entity.
func (s *Scene) Move(key string, pos engine.Vec3, yaw float32) bool {
	e, ok := s.Entity(key)
	if !ok {
		return false
	}
	t, ok := s.st.Transform.Get(e)
	if !ok {
		return false
	}
	t.Position = pos
	t.Rotation = engine.QuatFromYaw(yaw)
	return true
}

// Despawn queues key's entity for destruction at the end of the tick.
func (s *Scene) Despawn(key string) bool {
	e, ok := s.Entity(key)
	if !ok {
		return false
	}
	s.world.MarkForDestruction(e)
	delete(s.keys, key)
	return true
}
