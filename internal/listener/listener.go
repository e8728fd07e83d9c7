// Package listener keeps the engine's active listener set: the registered
// objects whose poses the 3D mixer uses as ears.
package listener

import (
	"errors"
	"fmt"

	"github.com/rrbridge/rrbridge/internal/diag"
	"github.com/rrbridge/rrbridge/internal/engine"
	"github.com/rrbridge/rrbridge/internal/metrics"
	"github.com/rrbridge/rrbridge/internal/registry"
	"go.uber.org/zap"
)

var ErrTooManyListeners = errors.New("too many listeners")

type Set struct {
	host registry.Host
	reg  *registry.Registry
	max  int
	log  *zap.Logger
	rec  diag.Recorder
	m    *metrics.Bridge

	active []engine.ObjectID
	poses  map[engine.ObjectID]engine.Transform
}

type Option func(*Set)

func WithRecorder(r diag.Recorder) Option  { return func(s *Set) { s.rec = r } }
func WithMetrics(m *metrics.Bridge) Option { return func(s *Set) { s.m = m } }

// New creates an empty listener set holding at most max listeners and hooks
// it to reg so unregistered objects leave the set first.
func New(host registry.Host, reg *registry.Registry, max int, log *zap.Logger, opts ...Option) *Set {
	s := &Set{
		host:   host,
		reg:    reg,
		max:    max,
		log:    log,
		rec:    diag.Nop{},
		active: make([]engine.ObjectID, 0, max),
		poses:  make(map[engine.ObjectID]engine.Transform, max),
	}
	for _, o := range opts {
		o(s)
	}
	reg.OnUnregister(func(obj registry.RegisteredObject) { s.Drop(obj.ID) })
	return s
}

func (s *Set) Max() int { return s.max }

// SetListeners replaces the active set. Every id must be registered and the
// count must not exceed Max; duplicates are collapsed.
func (s *Set) SetListeners(ids []engine.ObjectID) error {
	if err := s.host.Ready(); err != nil {
		return err
	}
	next := make([]engine.ObjectID, 0, len(ids))
	for _, id := range ids {
		if !s.reg.Contains(id) {
			return fmt.Errorf("listener %d: %w", id, registry.ErrNotRegistered)
		}
		if !contains(next, id) {
			next = append(next, id)
		}
	}
	if len(next) > s.max {
		return fmt.Errorf("%w: %d requested, engine supports %d", ErrTooManyListeners, len(next), s.max)
	}
	return s.apply(next)
}

// Add appends one registered object to the active set.
func (s *Set) Add(id engine.ObjectID) error {
	if s.Contains(id) {
		return nil
	}
	next := make([]engine.ObjectID, 0, len(s.active)+1)
	next = append(next, s.active...)
	return s.SetListeners(append(next, id))
}

func (s *Set) apply(next []engine.ObjectID) error {
	if err := s.host.Engine().SetListeners(next); err != nil {
		s.m.EngineError("SetListeners")
		return fmt.Errorf("set listeners: %w", err)
	}
	for id := range s.poses {
		if !contains(next, id) {
			delete(s.poses, id)
		}
	}
	s.active = append(s.active[:0], next...)
	s.m.ListenersActive(len(s.active))
	s.log.Debug("active listeners changed", zap.Int("count", len(s.active)))
	return nil
}

// Drop removes id from the active set, re-issuing the reduced set to the
// engine. Called before a listener object is destroyed.
func (s *Set) Drop(id engine.ObjectID) {
	if !s.Contains(id) {
		return
	}
	next := make([]engine.ObjectID, 0, len(s.active))
	for _, a := range s.active {
		if a != id {
			next = append(next, a)
		}
	}
	if err := s.host.Ready(); err != nil {
		s.active = append(s.active[:0], next...)
		delete(s.poses, id)
		return
	}
	if err := s.apply(next); err != nil {
		s.log.Error("could not drop listener", zap.Uint64("object", uint64(id)), zap.Error(err))
		s.rec.Record(diag.New(diag.KindListener, "SetListeners", id, err))
		s.active = append(s.active[:0], next...)
		delete(s.poses, id)
	}
}

// Reset forgets the set without calling the engine.
func (s *Set) Reset() {
	s.active = s.active[:0]
	clear(s.poses)
	s.m.ListenersActive(0)
}

func (s *Set) Contains(id engine.ObjectID) bool { return contains(s.active, id) }

// Active returns a copy of the active listener ids.
func (s *Set) Active() []engine.ObjectID {
	out := make([]engine.ObjectID, len(s.active))
	copy(out, s.active)
	return out
}

// UpdatePose records the last pose synced for a listener.
func (s *Set) UpdatePose(id engine.ObjectID, t engine.Transform) {
	if s.Contains(id) {
		s.poses[id] = t
	}
}

// Pose returns the last synced pose of a listener.
func (s *Set) Pose(id engine.ObjectID) (engine.Transform, bool) {
	t, ok := s.poses[id]
	return t, ok
}

func contains(ids []engine.ObjectID, id engine.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
