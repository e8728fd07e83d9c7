package system

import (
	"fmt"
	"time"

	coresys "github.com/rrbridge/rrbridge/internal/core/system"
	"github.com/rrbridge/rrbridge/internal/dispatch"
	"github.com/rrbridge/rrbridge/internal/engine"
	"github.com/rrbridge/rrbridge/internal/lifecycle"
	"github.com/rrbridge/rrbridge/internal/registry"
	"github.com/rrbridge/rrbridge/internal/scripting"
	"go.uber.org/zap"
)

// ScenarioSystem drives the simulation from a Lua scene: it applies the
// commands update(t, dt) returns to entities and their engine objects.
// Phase 1 (Simulate).
type ScenarioSystem struct {
	lua   *scripting.Engine
	scene *Scene
	ctrl  *lifecycle.Controller
	reg   *registry.Registry
	disp  *dispatch.Dispatcher
	log   *zap.Logger
	t     time.Duration
}

func NewScenarioSystem(lua *scripting.Engine, scene *Scene, ctrl *lifecycle.Controller, reg *registry.Registry, disp *dispatch.Dispatcher, log *zap.Logger) *ScenarioSystem {
	return &ScenarioSystem{lua: lua, scene: scene, ctrl: ctrl, reg: reg, disp: disp, log: log}
}

func (s *ScenarioSystem) Phase() coresys.Phase { return coresys.PhaseSimulate }

// Start runs the scene's setup(): loads its banks and spawns its entities.
func (s *ScenarioSystem) Start() error {
	sc, err := s.lua.Setup()
	if err != nil {
		return err
	}
	for _, bank := range sc.Banks {
		if _, err := s.ctrl.LoadBank(bank); err != nil {
			return fmt.Errorf("scene bank: %w", err)
		}
	}
	for _, sp := range sc.Spawns {
		e := s.scene.Spawn(sp)
		s.log.Debug("scene entity spawned", zap.String("key", sp.Key), zap.String("kind", sp.Kind), zap.Stringer("entity", e))
	}
	return nil
}

func (s *ScenarioSystem) Update(dt time.Duration) {
	s.t += dt
	for _, cmd := range s.lua.Update(s.t.Seconds(), dt.Seconds()) {
		s.apply(cmd)
	}
}

func (s *ScenarioSystem) apply(cmd scripting.Command) {
	switch cmd.Type {
	case "move":
		pos := engine.Vec3{X: float32(cmd.X), Y: float32(cmd.Y), Z: float32(cmd.Z)}
		if !s.scene.Move(cmd.Key, pos, float32(cmd.Yaw)) {
			s.log.Debug("move of unknown scene entity", zap.String("key", cmd.Key))
		}
	case "spawn":
		if cmd.Spawn != nil {
			s.scene.Spawn(*cmd.Spawn)
		}
	case "despawn":
		s.scene.Despawn(cmd.Key)
	case "post_at":
		pose := registry.Pose{
			Position: engine.Vec3{X: float32(cmd.X), Y: float32(cmd.Y), Z: float32(cmd.Z)},
			Rotation: engine.QuatFromYaw(float32(cmd.Yaw)),
		}
		if _, err := s.disp.PostAt(engine.EventName(cmd.Event), pose, 0); err != nil {
			s.log.Warn("scene command failed", zap.String("type", cmd.Type), zap.String("event", cmd.Event), zap.Error(err))
		}
	case "rtpc", "post", "stop":
		id, ok := s.object(cmd.Key)
		if !ok {
			// Not registered yet: entities spawned this tick register in PhaseRegister.
			s.log.Debug("scene command on unregistered entity", zap.String("type", cmd.Type), zap.String("key", cmd.Key))
			return
		}
		var err error
		switch cmd.Type {
		case "rtpc":
			err = s.disp.SetParameter(id, cmd.Name, float32(cmd.Value))
		case "post":
			_, err = s.disp.PostEvent(id, engine.EventName(cmd.Event), cmd.Looping)
		case "stop":
			err = s.disp.Stop(id)
		}
		if err != nil {
			s.log.Warn("scene command failed", zap.String("type", cmd.Type), zap.String("key", cmd.Key), zap.Error(err))
		}
	default:
		s.log.Warn("unknown scene command", zap.String("type", cmd.Type))
	}
}

func (s *ScenarioSystem) object(key string) (engine.ObjectID, bool) {
	e, ok := s.scene.Entity(key)
	if !ok {
		return engine.InvalidObjectID, false
	}
	return s.reg.Lookup(e)
}
