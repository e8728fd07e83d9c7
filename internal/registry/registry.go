// Package registry maps simulation entities to engine object ids and owns the
// ordering of create/destroy calls against the engine.
package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rrbridge/rrbridge/internal/core/ecs"
	"github.com/rrbridge/rrbridge/internal/diag"
	"github.com/rrbridge/rrbridge/internal/engine"
	"github.com/rrbridge/rrbridge/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

var ErrNotRegistered = errors.New("object not registered")

// Host is the engine lifecycle as seen by the registry.
type Host interface {
	Ready() error
	Engine() engine.Engine
}

type Kind uint8

const (
	KindEmitter Kind = iota
	KindListener
)

func (k Kind) String() string {
	if k == KindListener {
		return "Listener"
	}
	return "Emitter"
}

// Pose is a world-space pose in simulation coordinates (right-handed, Y up).
type Pose struct {
	Position engine.Vec3
	Rotation engine.Quat
}

// RegisteredObject is one entity known to the engine.
type RegisteredObject struct {
	ID     engine.ObjectID
	Entity ecs.EntityID
	Kind   Kind
	Label  string
	Pose   Pose
	Dirty  bool // pose changed since the last successful sync
}

// Candidate is an entity that currently qualifies for registration.
type Candidate struct {
	Entity ecs.EntityID
	Kind   Kind
	Label  string
	Pose   Pose
}

// Binding pairs an entity with its object id.
type Binding struct {
	Entity ecs.EntityID
	ID     engine.ObjectID
	Kind   Kind
}

// Diff is the outcome of one Reconcile pass. Its slices are reused by the
// next pass.
type Diff struct {
	Added   []Binding
	Removed []Binding
}

type slot struct {
	obj  RegisteredObject
	live bool
	seen uint64
}

// Registry owns every RegisteredObject. It is driven from the tick goroutine only.
type Registry struct {
	host  Host
	alloc *Allocator
	log   *zap.Logger
	rec   diag.Recorder
	m     *metrics.Bridge

	slots    []slot
	free     []int
	byEntity map[ecs.EntityID]int
	byID     map[engine.ObjectID]int

	pass     uint64
	diff     Diff
	onRemove []func(RegisteredObject)
}

type Option func(*Registry)

func WithRecorder(r diag.Recorder) Option { return func(g *Registry) { g.rec = r } }
func WithMetrics(m *metrics.Bridge) Option { return func(g *Registry) { g.m = m } }

func New(host Host, policy ReusePolicy, log *zap.Logger, opts ...Option) *Registry {
	r := &Registry{
		host:     host,
		alloc:    NewAllocator(policy),
		log:      log,
		rec:      diag.Nop{},
		slots:    make([]slot, 0, 256),
		free:     make([]int, 0, 64),
		byEntity: make(map[ecs.EntityID]int, 256),
		byID:     make(map[engine.ObjectID]int, 256),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// OnUnregister registers fn to run before the engine destroy call of every
// unregistered object, while its id is still valid engine-side.
func (r *Registry) OnUnregister(fn func(RegisteredObject)) {
	r.onRemove = append(r.onRemove, fn)
}

// Register binds e to a fresh object id and creates the object in the engine.
// Registering an already bound entity returns its existing id.
func (r *Registry) Register(e ecs.EntityID, kind Kind, label string, pose Pose) (engine.ObjectID, error) {
	if err := r.host.Ready(); err != nil {
		return engine.InvalidObjectID, err
	}
	if i, ok := r.byEntity[e]; ok {
		return r.slots[i].obj.ID, nil
	}

	label = NormalizeLabel(label)
	if label == "" {
		label = fmt.Sprintf("Rr%s_%d", kind, e.Index())
	}

	id := r.alloc.Acquire()
	if err := r.host.Engine().CreateObject(id, label); err != nil {
		r.alloc.Release(id)
		r.m.EngineError("CreateObject")
		r.rec.Record(diag.New(diag.KindObject, "CreateObject", id, err))
		return engine.InvalidObjectID, fmt.Errorf("register %s %s: %w", kind, e, err)
	}

	i := r.newSlot()
	r.slots[i] = slot{
		obj: RegisteredObject{
			ID:     id,
			Entity: e,
			Kind:   kind,
			Label:  label,
			Pose:   pose,
			Dirty:  true,
		},
		live: true,
		seen: r.pass,
	}
	r.byEntity[e] = i
	r.byID[id] = i
	r.m.ObjectRegistered()
	r.log.Debug("object registered",
		zap.Uint64("object", uint64(id)),
		zap.Stringer("entity", e),
		zap.String("label", label))
	return id, nil
}

func (r *Registry) newSlot() int {
	if n := len(r.free); n > 0 {
		i := r.free[n-1]
		r.free = r.free[:n-1]
		return i
	}
	r.slots = append(r.slots, slot{})
	return len(r.slots) - 1
}

// Unregister destroys e's object in the engine and only then releases its id.
// Unknown entities are ignored. Outside Running nothing happens and the
// binding is kept.
func (r *Registry) Unregister(e ecs.EntityID) (engine.ObjectID, bool) {
	if r.host.Ready() != nil {
		return engine.InvalidObjectID, false
	}
	i, ok := r.byEntity[e]
	if !ok {
		return engine.InvalidObjectID, false
	}
	obj := r.slots[i].obj
	for _, fn := range r.onRemove {
		fn(obj)
	}
	r.host.Engine().DestroyObject(obj.ID)

	delete(r.byEntity, e)
	delete(r.byID, obj.ID)
	r.slots[i] = slot{}
	r.free = append(r.free, i)
	r.alloc.Release(obj.ID)

	r.m.ObjectUnregistered()
	r.log.Debug("object unregistered", zap.Uint64("object", uint64(obj.ID)), zap.Stringer("entity", e))
	return obj.ID, true
}

// Reconcile makes the registered set equal to current. Listener candidates
// are registered before emitters, then every bound entity absent from
// current is unregistered. A bound entity whose kind changed is unregistered
// and registered again under the new kind. Registration failures are collected and do not
// stop the pass; the failed entity is retried on the next pass.
func (r *Registry) Reconcile(current []Candidate) (*Diff, error) {
	r.diff.Added = r.diff.Added[:0]
	r.diff.Removed = r.diff.Removed[:0]
	if err := r.host.Ready(); err != nil {
		return &r.diff, err
	}
	r.pass++

	var errs []error
	for _, kind := range [...]Kind{KindListener, KindEmitter} {
		for k := range current {
			c := &current[k]
			if c.Kind != kind {
				continue
			}
			if i, ok := r.byEntity[c.Entity]; ok {
				old := r.slots[i].obj
				if old.Kind == c.Kind {
					r.slots[i].seen = r.pass
					continue
				}
				// Changing role rebuilds the engine object under the new kind.
				r.Unregister(c.Entity)
				r.diff.Removed = append(r.diff.Removed, Binding{Entity: old.Entity, ID: old.ID, Kind: old.Kind})
			}
			id, err := r.Register(c.Entity, c.Kind, c.Label, c.Pose)
			if err != nil {
				r.log.Error("object registration failed", zap.Stringer("entity", c.Entity), zap.Error(err))
				errs = append(errs, err)
				continue
			}
			r.diff.Added = append(r.diff.Added, Binding{Entity: c.Entity, ID: id, Kind: c.Kind})
		}
	}

	for i := range r.slots {
		s := &r.slots[i]
		if !s.live || s.seen == r.pass {
			continue
		}
		b := Binding{Entity: s.obj.Entity, ID: s.obj.ID, Kind: s.obj.Kind}
		r.Unregister(b.Entity)
		r.diff.Removed = append(r.diff.Removed, b)
	}

	return &r.diff, errors.Join(errs...)
}

// AcquireTransient reserves an id for an engine object that is bound to no
// entity and lives only for the duration of one call.
func (r *Registry) AcquireTransient() engine.ObjectID { return r.alloc.Acquire() }

// ReleaseTransient returns an id from AcquireTransient. The engine object
// must already be destroyed.
func (r *Registry) ReleaseTransient(id engine.ObjectID) { r.alloc.Release(id) }

// SetPose records a new pose for e's object and marks it dirty if it changed.
func (r *Registry) SetPose(e ecs.EntityID, p Pose) bool {
	i, ok := r.byEntity[e]
	if !ok {
		return false
	}
	obj := &r.slots[i].obj
	if obj.Pose == p {
		return false
	}
	obj.Pose = p
	obj.Dirty = true
	return true
}

// EachDirty visits dirty objects in slot order. Returning true from fn clears
// the object's dirty flag. fn must not register or unregister objects.
func (r *Registry) EachDirty(fn func(obj *RegisteredObject) bool) {
	for i := range r.slots {
		s := &r.slots[i]
		if !s.live || !s.obj.Dirty {
			continue
		}
		if fn(&s.obj) {
			s.obj.Dirty = false
		}
	}
}

// Lookup returns the object id bound to e.
func (r *Registry) Lookup(e ecs.EntityID) (engine.ObjectID, bool) {
	i, ok := r.byEntity[e]
	if !ok {
		return engine.InvalidObjectID, false
	}
	return r.slots[i].obj.ID, true
}

// Get returns a copy of the object registered under id.
func (r *Registry) Get(id engine.ObjectID) (RegisteredObject, bool) {
	i, ok := r.byID[id]
	if !ok {
		return RegisteredObject{}, false
	}
	return r.slots[i].obj, true
}

func (r *Registry) Contains(id engine.ObjectID) bool {
	_, ok := r.byID[id]
	return ok
}

func (r *Registry) Len() int { return len(r.byID) }

// IDs returns the registered ids in slot order.
func (r *Registry) IDs() []engine.ObjectID {
	ids := make([]engine.ObjectID, 0, len(r.byID))
	for i := range r.slots {
		if r.slots[i].live {
			ids = append(ids, r.slots[i].obj.ID)
		}
	}
	return ids
}

// EndTick releases ids quarantined during the tick.
func (r *Registry) EndTick() {
	r.alloc.EndTick()
}

// Clear drops every binding without calling the engine or the unregister
// hooks. Used when the engine itself is about to destroy all objects.
func (r *Registry) Clear() {
	r.slots = r.slots[:0]
	r.free = r.free[:0]
	clear(r.byEntity)
	clear(r.byID)
	r.alloc.Reset()
	r.m.ObjectsCleared()
}

// NormalizeLabel folds full-width forms, composes to NFC and trims spaces so
// the engine's profiler shows one spelling per name.
func NormalizeLabel(s string) string {
	return strings.TrimSpace(norm.NFC.String(width.Fold.String(s)))
}
