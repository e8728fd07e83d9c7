package system

import (
	"errors"
	"time"

	"github.com/rrbridge/rrbridge/internal/component"
	"github.com/rrbridge/rrbridge/internal/core/ecs"
	"github.com/rrbridge/rrbridge/internal/core/event"
	coresys "github.com/rrbridge/rrbridge/internal/core/system"
	"github.com/rrbridge/rrbridge/internal/dispatch"
	"github.com/rrbridge/rrbridge/internal/engine"
	"github.com/rrbridge/rrbridge/internal/lifecycle"
	"github.com/rrbridge/rrbridge/internal/registry"
	"github.com/rrbridge/rrbridge/internal/transform"
	"go.uber.org/zap"
)

// EventSystem makes last tick's bridge events readable and delivers them to
// subscribers. Phase 0 (Events).
type EventSystem struct {
	bus *event.Bus
}

func NewEventSystem(bus *event.Bus) *EventSystem { return &EventSystem{bus: bus} }

func (s *EventSystem) Phase() coresys.Phase { return coresys.PhaseEvents }

func (s *EventSystem) Update(_ time.Duration) {
	s.bus.SwapBuffers()
	s.bus.DispatchAll()
}

// SyncSystem pushes dirty poses. Phase 3 (Sync).
type SyncSystem struct {
	sync *transform.Sync
	log  *zap.Logger
}

func NewSyncSystem(sync *transform.Sync, log *zap.Logger) *SyncSystem {
	return &SyncSystem{sync: sync, log: log}
}

func (s *SyncSystem) Phase() coresys.Phase { return coresys.PhaseSync }

func (s *SyncSystem) Update(_ time.Duration) {
	if _, err := s.sync.Tick(); err != nil && !errors.Is(err, lifecycle.ErrNotReady) {
		s.log.Error("position sync failed", zap.Error(err))
	}
}

// DispatchSystem posts the events queued for emitters registered this tick.
// Phase 4 (Dispatch).
type DispatchSystem struct {
	disp  *dispatch.Dispatcher
	posts *PostQueue
	log   *zap.Logger
}

func NewDispatchSystem(disp *dispatch.Dispatcher, posts *PostQueue, log *zap.Logger) *DispatchSystem {
	return &DispatchSystem{disp: disp, posts: posts, log: log}
}

func (s *DispatchSystem) Phase() coresys.Phase { return coresys.PhaseDispatch }

func (s *DispatchSystem) Update(_ time.Duration) {
	for _, p := range s.posts.items {
		if _, err := s.disp.Post(p.id, p.event, p.flags, p.looping); err != nil {
			s.log.Warn("auto-post failed", zap.Stringer("entity", p.entity), zap.Stringer("event", p.event), zap.Error(err))
		}
	}
	clear(s.posts.items)
	s.posts.items = s.posts.items[:0]
}

// CallbackSystem drains engine notifications, retires finished instances and
// re-emits them on the bus for the next tick. Phase 4 (Dispatch).
type CallbackSystem struct {
	host registry.Host
	reg  *registry.Registry
	disp *dispatch.Dispatcher
	bus  *event.Bus
	fn   func(engine.Callback)
}

func NewCallbackSystem(host registry.Host, reg *registry.Registry, disp *dispatch.Dispatcher, bus *event.Bus) *CallbackSystem {
	s := &CallbackSystem{host: host, reg: reg, disp: disp, bus: bus}
	s.fn = s.handle
	return s
}

func (s *CallbackSystem) Phase() coresys.Phase { return coresys.PhaseDispatch }

func (s *CallbackSystem) Update(_ time.Duration) {
	if s.host.Ready() != nil {
		return
	}
	s.host.Engine().DrainCallbacks(s.fn)
}

func (s *CallbackSystem) handle(cb engine.Callback) {
	s.disp.HandleCallback(cb)
	obj, ok := s.reg.Get(cb.Object)
	if !ok {
		return // object already gone
	}
	switch cb.Type {
	case engine.CallbackEndOfEvent:
		event.Emit(s.bus, event.EventEnded{Entity: obj.Entity, Object: cb.Object, PlayingID: cb.PlayingID, Event: cb.Event})
	case engine.CallbackDuration:
		event.Emit(s.bus, event.EventDuration{Entity: obj.Entity, Object: cb.Object, PlayingID: cb.PlayingID, Duration: cb.Duration.Seconds()})
	}
}

// SilenceSystem despawns emitters flagged DespawnOnSilent once their last
// playing instance ended. Phase 0 (Events), after EventSystem.
type SilenceSystem struct {
	world *ecs.World
	st    *component.Stores
	reg   *registry.Registry
	disp  *dispatch.Dispatcher
	bus   *event.Bus
	log   *zap.Logger
}

func NewSilenceSystem(world *ecs.World, st *component.Stores, reg *registry.Registry, disp *dispatch.Dispatcher, bus *event.Bus, log *zap.Logger) *SilenceSystem {
	return &SilenceSystem{world: world, st: st, reg: reg, disp: disp, bus: bus, log: log}
}

func (s *SilenceSystem) Phase() coresys.Phase { return coresys.PhaseEvents }

func (s *SilenceSystem) Update(_ time.Duration) {
	for _, ev := range event.Pending[event.EventEnded](s.bus) {
		em, ok := s.st.Emitter.Get(ev.Entity)
		if !ok || !em.DespawnOnSilent || !s.world.Alive(ev.Entity) {
			continue
		}
		if id, ok := s.reg.Lookup(ev.Entity); !ok || id != ev.Object || s.disp.IsPlaying(id) {
			continue
		}
		s.world.MarkForDestruction(ev.Entity)
		event.Emit(s.bus, event.EmitterSilenced{Entity: ev.Entity, Object: ev.Object})
		s.log.Debug("despawning silent emitter", zap.Stringer("entity", ev.Entity), zap.Uint64("object", uint64(ev.Object)))
	}
}

// RenderSystem asks the engine to process one audio frame. Phase 5 (Render).
type RenderSystem struct {
	ctrl *lifecycle.Controller
	log  *zap.Logger
}

func NewRenderSystem(ctrl *lifecycle.Controller, log *zap.Logger) *RenderSystem {
	return &RenderSystem{ctrl: ctrl, log: log}
}

func (s *RenderSystem) Phase() coresys.Phase { return coresys.PhaseRender }

func (s *RenderSystem) Update(_ time.Duration) {
	if err := s.ctrl.RenderAudio(); err != nil && !errors.Is(err, lifecycle.ErrNotReady) {
		s.log.Error("render audio failed", zap.Error(err))
	}
}
