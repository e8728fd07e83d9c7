package system

import (
	"time"

	"github.com/rrbridge/rrbridge/internal/component"
	"github.com/rrbridge/rrbridge/internal/core/ecs"
	coresys "github.com/rrbridge/rrbridge/internal/core/system"
	"github.com/rrbridge/rrbridge/internal/engine"
	"github.com/rrbridge/rrbridge/internal/listener"
	"github.com/rrbridge/rrbridge/internal/registry"
	"go.uber.org/zap"
)

// PostQueue holds events to post on freshly registered emitters. It is filled
// in the register phase and drained in the dispatch phase of the same tick,
// after the emitter's first pose went out.
type PostQueue struct {
	items []queuedPost
}

type queuedPost struct {
	entity  ecs.EntityID
	id      engine.ObjectID
	event   engine.EventRef
	flags   engine.CallbackFlags
	looping bool
}

func (q *PostQueue) Len() int { return len(q.items) }

// ReconcileSystem makes the engine's object set follow the entities that
// carry a Transform and an Emitter or Listener, and copies changed
// transforms into the registry.
// Phase 2 (Register).
type ReconcileSystem struct {
	host      registry.Host
	st        *component.Stores
	reg       *registry.Registry
	listeners *listener.Set
	posts     *PostQueue
	log       *zap.Logger

	cands []registry.Candidate
}

func NewReconcileSystem(host registry.Host, st *component.Stores, reg *registry.Registry, listeners *listener.Set, posts *PostQueue, log *zap.Logger) *ReconcileSystem {
	return &ReconcileSystem{
		host:      host,
		st:        st,
		reg:       reg,
		listeners: listeners,
		posts:     posts,
		log:       log,
		cands:     make([]registry.Candidate, 0, 64),
	}
}

func (s *ReconcileSystem) Phase() coresys.Phase { return coresys.PhaseRegister }

func (s *ReconcileSystem) Update(_ time.Duration) {
	if s.host.Ready() != nil {
		return
	}

	s.cands = s.cands[:0]
	ecs.Each2(s.st.Listener, s.st.Transform, func(e ecs.EntityID, _ *component.Listener, t *component.Transform) {
		s.cands = append(s.cands, registry.Candidate{Entity: e, Kind: registry.KindListener, Label: s.st.Label(e), Pose: t.Pose()})
	})
	ecs.Each2(s.st.Emitter, s.st.Transform, func(e ecs.EntityID, _ *component.Emitter, t *component.Transform) {
		if s.st.Listener.Has(e) {
			return // listener wins
		}
		s.cands = append(s.cands, registry.Candidate{Entity: e, Kind: registry.KindEmitter, Label: s.st.Label(e), Pose: t.Pose()})
	})

	diff, err := s.reg.Reconcile(s.cands)
	if err != nil {
		s.log.Warn("reconcile incomplete", zap.Error(err))
	}

	for i := range s.cands {
		s.reg.SetPose(s.cands[i].Entity, s.cands[i].Pose)
	}

	for _, b := range diff.Added {
		switch b.Kind {
		case registry.KindListener:
			l, ok := s.st.Listener.Get(b.Entity)
			if !ok || !l.Default {
				continue
			}
			if err := s.listeners.Add(b.ID); err != nil {
				s.log.Error("could not activate default listener", zap.Uint64("object", uint64(b.ID)), zap.Error(err))
			}
		case registry.KindEmitter:
			em, ok := s.st.Emitter.Get(b.Entity)
			if !ok || !em.AutoPost || em.Event.IsZero() {
				continue
			}
			s.posts.items = append(s.posts.items, queuedPost{
				entity:  b.Entity,
				id:      b.ID,
				event:   em.Event,
				flags:   em.Flags,
				looping: em.Looping,
			})
		}
	}
}
