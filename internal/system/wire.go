package system

import (
	"github.com/rrbridge/rrbridge/internal/component"
	"github.com/rrbridge/rrbridge/internal/core/ecs"
	"github.com/rrbridge/rrbridge/internal/core/event"
	coresys "github.com/rrbridge/rrbridge/internal/core/system"
	"github.com/rrbridge/rrbridge/internal/diag"
	"github.com/rrbridge/rrbridge/internal/dispatch"
	"github.com/rrbridge/rrbridge/internal/lifecycle"
	"github.com/rrbridge/rrbridge/internal/listener"
	"github.com/rrbridge/rrbridge/internal/metrics"
	"github.com/rrbridge/rrbridge/internal/registry"
	"github.com/rrbridge/rrbridge/internal/scripting"
	"github.com/rrbridge/rrbridge/internal/transform"
	"go.uber.org/zap"
)

// Options tune the bridge built by NewBridge.
type Options struct {
	Reuse        registry.ReusePolicy
	MaxListeners int
	UnitScale    float32
	Recorder     diag.Recorder
	Metrics      *metrics.Bridge
}

// Bridge is the simulation world plus every bridge component, with their
// systems registered on one runner.
type Bridge struct {
	World     *ecs.World
	Stores    *component.Stores
	Bus       *event.Bus
	Runner    *coresys.Runner
	Scene     *Scene
	Ctrl      *lifecycle.Controller
	Registry  *registry.Registry
	Listeners *listener.Set
	Sync      *transform.Sync
	Dispatch  *dispatch.Dispatcher
	Posts     *PostQueue
	log       *zap.Logger
}

// NewBridge builds the bridge around ctrl. Engine-side bookkeeping is
// dropped when ctrl terminates, so a later Init starts from a clean slate
// and re-registers the surviving entities.
func NewBridge(ctrl *lifecycle.Controller, opts Options, log *zap.Logger) *Bridge {
	if opts.Recorder == nil {
		opts.Recorder = diag.Nop{}
	}
	if opts.MaxListeners <= 0 {
		opts.MaxListeners = 8
	}
	if opts.UnitScale == 0 {
		opts.UnitScale = 1
	}

	w := ecs.NewWorld()
	st := component.NewStores(w)
	bus := event.NewBus()

	reg := registry.New(ctrl, opts.Reuse, log.Named("registry"),
		registry.WithRecorder(opts.Recorder), registry.WithMetrics(opts.Metrics))
	ls := listener.New(ctrl, reg, opts.MaxListeners, log.Named("listener"),
		listener.WithRecorder(opts.Recorder), listener.WithMetrics(opts.Metrics))
	sync := transform.New(ctrl, reg, ls, log.Named("sync"),
		transform.WithRecorder(opts.Recorder), transform.WithMetrics(opts.Metrics), transform.WithScale(opts.UnitScale))
	disp := dispatch.New(ctrl, reg, log.Named("dispatch"),
		dispatch.WithRecorder(opts.Recorder), dispatch.WithMetrics(opts.Metrics), dispatch.WithScale(opts.UnitScale))

	b := &Bridge{
		World:     w,
		Stores:    st,
		Bus:       bus,
		Runner:    coresys.NewRunner(),
		Scene:     NewScene(w, st),
		Ctrl:      ctrl,
		Registry:  reg,
		Listeners: ls,
		Sync:      sync,
		Dispatch:  disp,
		Posts:     &PostQueue{},
		log:       log,
	}

	b.Runner.Register(
		NewEventSystem(bus),
		NewSilenceSystem(w, st, reg, disp, bus, log),
		NewReconcileSystem(ctrl, st, reg, ls, b.Posts, log),
		NewSyncSystem(sync, log),
		NewDispatchSystem(disp, b.Posts, log),
		NewCallbackSystem(ctrl, reg, disp, bus),
		NewRenderSystem(ctrl, log),
		NewCleanupSystem(w, reg),
	)

	ctrl.OnTerm(func() {
		ls.Reset()
		disp.Reset()
		reg.Clear()
		clear(b.Posts.items)
		b.Posts.items = b.Posts.items[:0]
	})
	return b
}

// AddScenario attaches a Lua scene to the simulation phase.
func (b *Bridge) AddScenario(lua *scripting.Engine) *ScenarioSystem {
	s := NewScenarioSystem(lua, b.Scene, b.Ctrl, b.Registry, b.Dispatch, b.log)
	b.Runner.Register(s)
	return s
}

// AddJournal flushes journal every intervalTicks ticks.
func (b *Bridge) AddJournal(journal *diag.Journal, intervalTicks int) *PersistenceSystem {
	s := NewPersistenceSystem(journal, b.log, intervalTicks)
	b.Runner.Register(s)
	return s
}
