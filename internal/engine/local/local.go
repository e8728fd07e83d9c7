// Package local is an in-process engine.Engine. It keeps the object, listener
// and playing-instance tables a real sound engine keeps, reads soundbank
// manifests from disk and advances a clock on every rendered frame. It does
// not mix audio.
package local

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rrbridge/rrbridge/internal/data"
	"github.com/rrbridge/rrbridge/internal/engine"
	"github.com/rrbridge/rrbridge/internal/settings"
	"go.uber.org/zap"
)

type subsystem int

const (
	subMemory subsystem = iota
	subStreaming
	subPlatform
	subCore
	subMusic
	subComm
	subCount
)

var subNames = [subCount]string{"memory", "streaming", "platform", "core", "music", "comm"}

// requires lists the subsystem that must be up before each one.
var requires = [subCount]subsystem{
	subMemory:    -1,
	subStreaming: subMemory,
	subPlatform:  subStreaming,
	subCore:      subPlatform,
	subMusic:     subCore,
	subComm:      subCore,
}

// ObjectInfo is a snapshot of one engine-side game object.
type ObjectInfo struct {
	ID         engine.ObjectID
	Label      string
	Transform  engine.Transform
	Positioned bool
}

// Instance is a snapshot of one playing instance.
type Instance struct {
	ID        engine.PlayingID
	Object    engine.ObjectID
	Event     string
	Loop      bool
	Remaining time.Duration
}

type object struct {
	label      string
	transform  engine.Transform
	positioned bool
}

type eventDef struct {
	name     string
	bank     engine.BankHandle
	loop     bool
	duration time.Duration
}

type instance struct {
	id        engine.PlayingID
	obj       engine.ObjectID
	event     uint32
	flags     engine.CallbackFlags
	loop      bool
	remaining time.Duration
}

type rtpcKey struct {
	name string
	obj  engine.ObjectID
}

// Engine is safe for concurrent use; callbacks are delivered outside its lock.
type Engine struct {
	log *zap.Logger

	mu        sync.Mutex
	up        [subCount]bool
	banksPath string
	language  string
	rate      uint32
	frame     time.Duration
	clock     time.Duration

	objects   map[engine.ObjectID]*object
	listeners []engine.ObjectID

	banks      map[engine.BankHandle]*data.BankManifest
	bankByName map[string]engine.BankHandle
	nextBank   engine.BankHandle
	events     map[uint32]*eventDef

	playing     []*instance
	nextPlaying engine.PlayingID
	callbacks   []engine.Callback
	rtpc        map[rtpcKey]float32

	fail map[string]engine.Result
}

func New(log *zap.Logger) *Engine {
	return &Engine{
		log:        log,
		objects:    make(map[engine.ObjectID]*object),
		banks:      make(map[engine.BankHandle]*data.BankManifest),
		bankByName: make(map[string]engine.BankHandle),
		events:     make(map[uint32]*eventDef),
		rtpc:       make(map[rtpcKey]float32),
		fail:       make(map[string]engine.Result),
	}
}

// FailOn makes every later call of op fail with r until ClearFailures.
func (e *Engine) FailOn(op string, r engine.Result) {
	e.mu.Lock()
	e.fail[op] = r
	e.mu.Unlock()
}

func (e *Engine) ClearFailures() {
	e.mu.Lock()
	clear(e.fail)
	e.mu.Unlock()
}

func (e *Engine) injected(op string) error {
	if r, ok := e.fail[op]; ok {
		return engine.Errorf(op, r, "injected")
	}
	return nil
}

func (e *Engine) initSub(op string, s subsystem) error {
	if err := e.injected(op); err != nil {
		return err
	}
	if e.up[s] {
		return engine.Errorf(op, engine.ResultAlreadyInitialized, "%s", subNames[s])
	}
	if dep := requires[s]; dep >= 0 && !e.up[dep] {
		return engine.Errorf(op, engine.ResultNotInitialized, "%s requires %s", subNames[s], subNames[dep])
	}
	e.up[s] = true
	return nil
}

func (e *Engine) termSub(s subsystem) {
	for other, dep := range requires {
		if dep == s && e.up[other] {
			e.log.Warn("terminating audio subsystem while a dependent is up",
				zap.String("subsystem", subNames[s]),
				zap.String("dependent", subNames[other]))
		}
	}
	e.up[s] = false
}

func (e *Engine) InitMemory(m settings.MemSettings) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if m.PoolSize == 0 {
		return engine.Errorf("InitMemory", engine.ResultInsufficientMemory, "empty pool")
	}
	return e.initSub("InitMemory", subMemory)
}

func (e *Engine) TermMemory() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.termSub(subMemory)
}

func (e *Engine) InitStreaming(_ settings.StreamSettings, _ settings.DeviceSettings, banksPath, language string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.initSub("InitStreaming", subStreaming); err != nil {
		return err
	}
	e.banksPath = banksPath
	e.language = language
	return nil
}

func (e *Engine) TermStreaming() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.termSub(subStreaming)
	e.banksPath = ""
}

func (e *Engine) InitPlatform(p settings.PlatformSettings) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p.SampleRate == 0 {
		return engine.Errorf("InitPlatform", engine.ResultInvalidParameter, "sample rate 0")
	}
	if err := e.initSub("InitPlatform", subPlatform); err != nil {
		return err
	}
	e.rate = p.SampleRate
	return nil
}

func (e *Engine) TermPlatform() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.termSub(subPlatform)
}

func (e *Engine) InitCore(s settings.InitSettings) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s.NumSamplesPerFrame == 0 {
		return engine.Errorf("InitCore", engine.ResultInvalidParameter, "0 samples per frame")
	}
	if err := e.initSub("InitCore", subCore); err != nil {
		return err
	}
	e.frame = time.Duration(s.NumSamplesPerFrame) * time.Second / time.Duration(e.rate)
	e.clock = 0
	return nil
}

func (e *Engine) TermCore() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.termSub(subCore)
	clear(e.objects)
	e.listeners = nil
	e.playing = nil
	e.callbacks = nil
	clear(e.banks)
	clear(e.bankByName)
	clear(e.events)
	clear(e.rtpc)
}

func (e *Engine) InitMusic(settings.MusicSettings) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initSub("InitMusic", subMusic)
}

func (e *Engine) TermMusic() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.termSub(subMusic)
}

func (e *Engine) InitComm(c settings.CommSettings) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.initSub("InitComm", subComm); err != nil {
		return err
	}
	e.log.Info("authoring tool connection available",
		zap.String("network", c.AppNetworkName),
		zap.Uint16("discovery_port", c.DiscoveryPort))
	return nil
}

func (e *Engine) TermComm() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.termSub(subComm)
}

func (e *Engine) requireCore(op string) error {
	if err := e.injected(op); err != nil {
		return err
	}
	if !e.up[subCore] {
		return engine.Errorf(op, engine.ResultNotInitialized, "sound engine is not initialized")
	}
	return nil
}

func (e *Engine) LoadBank(name string) (engine.BankHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireCore("LoadBank"); err != nil {
		return 0, err
	}
	if h, ok := e.bankByName[name]; ok {
		return h, nil
	}
	m, err := data.LoadBank(e.banksPath, name)
	if err != nil {
		return 0, engine.Errorf("LoadBank", engine.ResultFileNotFound, "%v", err)
	}
	for _, ev := range m.Events {
		if prev, ok := e.events[engine.ShortID(ev.Name)]; ok {
			return 0, engine.Errorf("LoadBank", engine.ResultBankReadError,
				"event %s already provided by %s", ev.Name, e.banks[prev.bank].Bank)
		}
	}

	e.nextBank++
	h := e.nextBank
	e.banks[h] = m
	e.bankByName[name] = h
	for _, ev := range m.Events {
		e.events[engine.ShortID(ev.Name)] = &eventDef{
			name:     ev.Name,
			bank:     h,
			loop:     ev.Loop,
			duration: ev.Duration,
		}
	}
	e.log.Debug("bank loaded", zap.String("bank", name), zap.Int("events", len(m.Events)))
	return h, nil
}

func (e *Engine) UnloadBank(h engine.BankHandle) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireCore("UnloadBank"); err != nil {
		return err
	}
	m, ok := e.banks[h]
	if !ok {
		return engine.Errorf("UnloadBank", engine.ResultInvalidID, "bank %d", h)
	}
	for id, ev := range e.events {
		if ev.bank == h {
			delete(e.events, id)
		}
	}
	for name, bh := range e.bankByName {
		if bh == h {
			delete(e.bankByName, name)
		}
	}
	delete(e.banks, h)
	e.log.Debug("bank unloaded", zap.String("bank", m.Bank))
	return nil
}

func (e *Engine) CreateObject(id engine.ObjectID, label string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireCore("CreateObject"); err != nil {
		return err
	}
	if id == engine.InvalidObjectID {
		return engine.Errorf("CreateObject", engine.ResultInvalidID, "object id 0 is reserved")
	}
	if _, ok := e.objects[id]; ok {
		return engine.Errorf("CreateObject", engine.ResultInvalidID, "object %d already exists", id)
	}
	e.objects[id] = &object{label: label}
	return nil
}

func (e *Engine) DestroyObject(id engine.ObjectID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.objects[id]; !ok {
		return
	}
	delete(e.objects, id)
	e.dropListenerLocked(id)
}

func (e *Engine) DestroyAllObjects() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireCore("DestroyAllObjects"); err != nil {
		return err
	}
	e.stopLocked(engine.InvalidObjectID)
	clear(e.objects)
	e.listeners = nil
	return nil
}

func (e *Engine) dropListenerLocked(id engine.ObjectID) {
	kept := e.listeners[:0]
	for _, l := range e.listeners {
		if l != id {
			kept = append(kept, l)
		}
	}
	e.listeners = kept
}

func (e *Engine) SetPosition(id engine.ObjectID, t engine.Transform) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireCore("SetPosition"); err != nil {
		return err
	}
	obj, ok := e.objects[id]
	if !ok {
		return engine.Errorf("SetPosition", engine.ResultIDNotFound, "object %d", id)
	}
	if t.Front.Len() == 0 || t.Top.Len() == 0 {
		return engine.Errorf("SetPosition", engine.ResultInvalidParameter, "degenerate orientation")
	}
	obj.transform = t
	obj.positioned = true
	return nil
}

func (e *Engine) SetListeners(ids []engine.ObjectID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireCore("SetListeners"); err != nil {
		return err
	}
	for _, id := range ids {
		if _, ok := e.objects[id]; !ok {
			return engine.Errorf("SetListeners", engine.ResultIDNotFound, "object %d", id)
		}
	}
	e.listeners = append(e.listeners[:0], ids...)
	return nil
}

func (e *Engine) PostEvent(id engine.ObjectID, ev engine.EventRef, flags engine.CallbackFlags) (engine.PlayingID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireCore("PostEvent"); err != nil {
		return engine.InvalidPlayingID, err
	}
	if _, ok := e.objects[id]; !ok {
		return engine.InvalidPlayingID, engine.Errorf("PostEvent", engine.ResultIDNotFound, "object %d", id)
	}
	def, ok := e.events[ev.ShortID()]
	if !ok {
		return engine.InvalidPlayingID, engine.Errorf("PostEvent", engine.ResultIDNotFound, "event %s", ev)
	}

	e.nextPlaying++
	in := &instance{
		id:        e.nextPlaying,
		obj:       id,
		event:     ev.ShortID(),
		flags:     flags,
		loop:      def.loop,
		remaining: def.duration,
	}
	e.playing = append(e.playing, in)
	if flags.Has(engine.CallbackDuration) {
		e.callbacks = append(e.callbacks, engine.Callback{
			Type:      engine.CallbackDuration,
			PlayingID: in.id,
			Object:    id,
			Event:     in.event,
			Duration:  def.duration,
		})
	}
	return in.id, nil
}

func (e *Engine) StopAll(id engine.ObjectID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked(id)
}

// stopLocked ends every instance on id, or on every object for id 0.
func (e *Engine) stopLocked(id engine.ObjectID) {
	kept := e.playing[:0]
	for _, in := range e.playing {
		if id == engine.InvalidObjectID || in.obj == id {
			e.endLocked(in)
			continue
		}
		kept = append(kept, in)
	}
	clear(e.playing[len(kept):])
	e.playing = kept
}

func (e *Engine) StopPlaying(pid engine.PlayingID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, in := range e.playing {
		if in.id == pid {
			e.endLocked(in)
			e.playing = append(e.playing[:i], e.playing[i+1:]...)
			return
		}
	}
}

func (e *Engine) endLocked(in *instance) {
	if in.flags.Has(engine.CallbackEndOfEvent) {
		e.callbacks = append(e.callbacks, engine.Callback{
			Type:      engine.CallbackEndOfEvent,
			PlayingID: in.id,
			Object:    in.obj,
			Event:     in.event,
		})
	}
}

// SetRTPC sets a game parameter on one object, or globally for id 0.
func (e *Engine) SetRTPC(name string, value float32, id engine.ObjectID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireCore("SetRTPC"); err != nil {
		return err
	}
	if id != engine.InvalidObjectID {
		if _, ok := e.objects[id]; !ok {
			return engine.Errorf("SetRTPC", engine.ResultIDNotFound, "object %d", id)
		}
	}
	e.rtpc[rtpcKey{name: name, obj: id}] = value
	return nil
}

// RenderAudio advances the clock by one frame and retires finished
// non-looping instances.
func (e *Engine) RenderAudio() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireCore("RenderAudio"); err != nil {
		return err
	}
	e.clock += e.frame
	kept := e.playing[:0]
	for _, in := range e.playing {
		if !in.loop {
			in.remaining -= e.frame
			if in.remaining <= 0 {
				e.endLocked(in)
				continue
			}
		}
		kept = append(kept, in)
	}
	clear(e.playing[len(kept):])
	e.playing = kept
	return nil
}

func (e *Engine) DrainCallbacks(fn func(engine.Callback)) {
	e.mu.Lock()
	cbs := e.callbacks
	e.callbacks = nil
	e.mu.Unlock()
	for _, cb := range cbs {
		fn(cb)
	}
}

// Objects returns every live object ordered by id.
func (e *Engine) Objects() []ObjectInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]ObjectInfo, 0, len(e.objects))
	for id, o := range e.objects {
		out = append(out, ObjectInfo{ID: id, Label: o.label, Transform: o.transform, Positioned: o.positioned})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (e *Engine) Object(id engine.ObjectID) (ObjectInfo, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.objects[id]
	if !ok {
		return ObjectInfo{}, false
	}
	return ObjectInfo{ID: id, Label: o.label, Transform: o.transform, Positioned: o.positioned}, true
}

func (e *Engine) Listeners() []engine.ObjectID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]engine.ObjectID(nil), e.listeners...)
}

// Playing returns the live instances in post order.
func (e *Engine) Playing() []Instance {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Instance, 0, len(e.playing))
	for _, in := range e.playing {
		name := fmt.Sprintf("#%d", in.event)
		if def, ok := e.events[in.event]; ok {
			name = def.name
		}
		out = append(out, Instance{ID: in.id, Object: in.obj, Event: name, Loop: in.loop, Remaining: in.remaining})
	}
	return out
}

// RTPC returns the last value set for name on id.
func (e *Engine) RTPC(name string, id engine.ObjectID) (float32, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.rtpc[rtpcKey{name: name, obj: id}]
	return v, ok
}

// Banks returns the loaded bank names, sorted.
func (e *Engine) Banks() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.bankByName))
	for name := range e.bankByName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Up reports which subsystems are initialized, in init order.
func (e *Engine) Up() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []string
	for s := subsystem(0); s < subCount; s++ {
		if e.up[s] {
			out = append(out, subNames[s])
		}
	}
	return out
}

func (e *Engine) Clock() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock
}

func (e *Engine) Language() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.language
}

var _ engine.Engine = (*Engine)(nil)
