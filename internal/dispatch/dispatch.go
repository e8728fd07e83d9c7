// Package dispatch posts audio events on registered objects and tracks the
// playing instances they start.
package dispatch

import (
	"fmt"

	"github.com/rrbridge/rrbridge/internal/diag"
	"github.com/rrbridge/rrbridge/internal/engine"
	"github.com/rrbridge/rrbridge/internal/metrics"
	"github.com/rrbridge/rrbridge/internal/registry"
	"github.com/rrbridge/rrbridge/internal/transform"
	"go.uber.org/zap"
)

// Playing is one instance started by PostEvent. Looping is the caller's hint
// that the instance will not end by itself and needs a matching stop.
type Playing struct {
	ID      engine.PlayingID
	Event   engine.EventRef
	Looping bool
}

type Dispatcher struct {
	host  registry.Host
	reg   *registry.Registry
	log   *zap.Logger
	rec   diag.Recorder
	m     *metrics.Bridge
	scale float32

	playing map[engine.ObjectID][]Playing
	owner   map[engine.PlayingID]engine.ObjectID
}

type Option func(*Dispatcher)

func WithRecorder(r diag.Recorder) Option  { return func(d *Dispatcher) { d.rec = r } }
func WithMetrics(m *metrics.Bridge) Option { return func(d *Dispatcher) { d.m = m } }

// WithScale sets the unit scale used for PostAt positions (default 1).
func WithScale(scale float32) Option { return func(d *Dispatcher) { d.scale = scale } }

// New creates a dispatcher and hooks it to reg: an object's playing
// instances are stopped before the object is destroyed.
func New(host registry.Host, reg *registry.Registry, log *zap.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		host:    host,
		reg:     reg,
		log:     log,
		rec:     diag.Nop{},
		scale:   1,
		playing: make(map[engine.ObjectID][]Playing, 64),
		owner:   make(map[engine.PlayingID]engine.ObjectID, 64),
	}
	for _, o := range opts {
		o(d)
	}
	reg.OnUnregister(d.release)
	return d
}

// PostEvent posts ev on a registered object, requesting an end-of-event
// notification so the instance can be retired.
func (d *Dispatcher) PostEvent(id engine.ObjectID, ev engine.EventRef, looping bool) (engine.PlayingID, error) {
	return d.Post(id, ev, 0, looping)
}

// Post is PostEvent with extra callback flags; callbacks other than
// end-of-event are forwarded to the simulation as bridge events.
func (d *Dispatcher) Post(id engine.ObjectID, ev engine.EventRef, flags engine.CallbackFlags, looping bool) (engine.PlayingID, error) {
	if err := d.host.Ready(); err != nil {
		return engine.InvalidPlayingID, err
	}
	if !d.reg.Contains(id) {
		d.m.EventPosted(false)
		return engine.InvalidPlayingID, fmt.Errorf("post %s on %d: %w", ev, id, registry.ErrNotRegistered)
	}
	pid, err := d.host.Engine().PostEvent(id, ev, flags|engine.CallbackEndOfEvent)
	if err != nil {
		d.m.EventPosted(false)
		d.m.EngineError("PostEvent")
		d.rec.Record(diag.New(diag.KindEvent, "PostEvent "+ev.String(), id, err))
		d.log.Error("could not post event", zap.Stringer("event", ev), zap.Uint64("object", uint64(id)), zap.Error(err))
		return engine.InvalidPlayingID, fmt.Errorf("post %s on %d: %w", ev, id, err)
	}
	d.playing[id] = append(d.playing[id], Playing{ID: pid, Event: ev, Looping: looping})
	d.owner[pid] = id
	d.m.EventPosted(true)
	d.log.Debug("event posted",
		zap.Stringer("event", ev),
		zap.Uint64("object", uint64(id)),
		zap.Uint32("playing", uint32(pid)))
	return pid, nil
}

// PostAt posts ev fire-and-forget at pose. A temporary object is created,
// positioned, posted on and destroyed within the call; its id comes from the
// registry's allocator and goes back to it afterwards. The instance is not
// tracked and raises no simulation events.
func (d *Dispatcher) PostAt(ev engine.EventRef, pose registry.Pose, flags engine.CallbackFlags) (engine.PlayingID, error) {
	if err := d.host.Ready(); err != nil {
		return engine.InvalidPlayingID, err
	}
	id := d.reg.AcquireTransient()
	pid, err := d.postAt(id, ev, pose, flags)
	d.reg.ReleaseTransient(id)
	if err != nil {
		d.m.EventPosted(false)
		d.log.Error("could not post event at location", zap.Stringer("event", ev), zap.Stringer("at", pose.Position), zap.Error(err))
		return engine.InvalidPlayingID, fmt.Errorf("post %s at %s: %w", ev, pose.Position, err)
	}
	d.m.EventPosted(true)
	d.log.Debug("event posted at location",
		zap.Stringer("event", ev),
		zap.Stringer("at", pose.Position),
		zap.Uint32("playing", uint32(pid)))
	return pid, nil
}

func (d *Dispatcher) postAt(id engine.ObjectID, ev engine.EventRef, pose registry.Pose, flags engine.CallbackFlags) (engine.PlayingID, error) {
	eng := d.host.Engine()
	if err := eng.CreateObject(id, "RrPostAt_"+ev.String()); err != nil {
		d.engineError("CreateObject", ev, id, err)
		return engine.InvalidPlayingID, err
	}
	defer eng.DestroyObject(id)

	if err := eng.SetPosition(id, transform.Convert(pose, d.scale)); err != nil {
		d.engineError("SetPosition", ev, id, err)
		return engine.InvalidPlayingID, err
	}
	pid, err := eng.PostEvent(id, ev, flags)
	if err != nil {
		d.engineError("PostEvent", ev, id, err)
		return engine.InvalidPlayingID, err
	}
	return pid, nil
}

func (d *Dispatcher) engineError(op string, ev engine.EventRef, id engine.ObjectID, err error) {
	d.m.EngineError(op)
	d.rec.Record(diag.New(diag.KindEvent, op+" "+ev.String(), id, err))
}

// Stop stops everything playing on id.
func (d *Dispatcher) Stop(id engine.ObjectID) error {
	if err := d.host.Ready(); err != nil {
		return err
	}
	if !d.reg.Contains(id) {
		return fmt.Errorf("stop %d: %w", id, registry.ErrNotRegistered)
	}
	d.host.Engine().StopAll(id)
	d.forget(id)
	return nil
}

// StopPlaying stops one playing instance, typically a looping one.
func (d *Dispatcher) StopPlaying(pid engine.PlayingID) error {
	if err := d.host.Ready(); err != nil {
		return err
	}
	if _, ok := d.owner[pid]; !ok {
		return nil
	}
	d.host.Engine().StopPlaying(pid)
	d.retire(pid)
	return nil
}

// SetParameter sets a game parameter (RTPC) scoped to one object.
func (d *Dispatcher) SetParameter(id engine.ObjectID, name string, value float32) error {
	if err := d.host.Ready(); err != nil {
		return err
	}
	if !d.reg.Contains(id) {
		return fmt.Errorf("set %s on %d: %w", name, id, registry.ErrNotRegistered)
	}
	if err := d.host.Engine().SetRTPC(name, value, id); err != nil {
		d.m.EngineError("SetRTPC")
		return fmt.Errorf("set %s on %d: %w", name, id, err)
	}
	return nil
}

// HandleCallback retires instances whose end-of-event notification arrived.
func (d *Dispatcher) HandleCallback(cb engine.Callback) {
	if cb.Type.Has(engine.CallbackEndOfEvent) {
		d.retire(cb.PlayingID)
	}
}

// Playing returns the instances still playing on id.
func (d *Dispatcher) Playing(id engine.ObjectID) []Playing {
	ps := d.playing[id]
	out := make([]Playing, len(ps))
	copy(out, ps)
	return out
}

func (d *Dispatcher) IsPlaying(id engine.ObjectID) bool {
	return len(d.playing[id]) > 0
}

// Reset drops all bookkeeping without calling the engine.
func (d *Dispatcher) Reset() {
	clear(d.playing)
	clear(d.owner)
}

func (d *Dispatcher) retire(pid engine.PlayingID) {
	id, ok := d.owner[pid]
	if !ok {
		return
	}
	delete(d.owner, pid)
	ps := d.playing[id]
	for i, p := range ps {
		if p.ID == pid {
			ps = append(ps[:i], ps[i+1:]...)
			break
		}
	}
	if len(ps) == 0 {
		delete(d.playing, id)
		return
	}
	d.playing[id] = ps
}

func (d *Dispatcher) forget(id engine.ObjectID) {
	for _, p := range d.playing[id] {
		delete(d.owner, p.ID)
	}
	delete(d.playing, id)
}

// release stops whatever still plays on an object about to be destroyed.
func (d *Dispatcher) release(obj registry.RegisteredObject) {
	if d.IsPlaying(obj.ID) {
		d.host.Engine().StopAll(obj.ID)
		d.log.Debug("stopped emitter because it got unregistered", zap.Uint64("object", uint64(obj.ID)))
	}
	d.forget(obj.ID)
}
