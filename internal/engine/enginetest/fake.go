// Package enginetest provides a recording engine.Engine for tests.
package enginetest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rrbridge/rrbridge/internal/engine"
	"github.com/rrbridge/rrbridge/internal/settings"
)

// Fake records every call as a short string and keeps just enough state to
// reject calls against unknown objects, the way a real engine would.
type Fake struct {
	Calls   []string
	Objects map[engine.ObjectID]string

	// Fail makes the named operation return the given error.
	Fail map[string]error
	// Panic makes the named operation panic.
	Panic map[string]bool

	nextPlaying engine.PlayingID
	nextBank    engine.BankHandle
	callbacks   []engine.Callback
}

func New() *Fake {
	return &Fake{
		Objects: make(map[engine.ObjectID]string),
		Fail:    make(map[string]error),
		Panic:   make(map[string]bool),
	}
}

func (f *Fake) call(op string, format string, args ...any) error {
	f.Calls = append(f.Calls, op+"("+fmt.Sprintf(format, args...)+")")
	if f.Panic[op] {
		panic("enginetest: " + op)
	}
	return f.Fail[op]
}

// Reset forgets recorded calls.
func (f *Fake) Reset() { f.Calls = f.Calls[:0] }

// CallsTo returns the recorded calls of one operation.
func (f *Fake) CallsTo(op string) []string {
	var out []string
	for _, c := range f.Calls {
		if strings.HasPrefix(c, op+"(") {
			out = append(out, c)
		}
	}
	return out
}

// ObjectIDs returns the live object ids in ascending order.
func (f *Fake) ObjectIDs() []engine.ObjectID {
	ids := make([]engine.ObjectID, 0, len(f.Objects))
	for id := range f.Objects {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Callback queues a callback returned by the next DrainCallbacks.
func (f *Fake) Callback(cb engine.Callback) { f.callbacks = append(f.callbacks, cb) }

func (f *Fake) InitMemory(settings.MemSettings) error { return f.call("InitMemory", "") }
func (f *Fake) TermMemory()                           { _ = f.call("TermMemory", "") }
func (f *Fake) InitStreaming(_ settings.StreamSettings, _ settings.DeviceSettings, banksPath, language string) error {
	return f.call("InitStreaming", "%s,%s", banksPath, language)
}
func (f *Fake) TermStreaming()                            { _ = f.call("TermStreaming", "") }
func (f *Fake) InitPlatform(settings.PlatformSettings) error { return f.call("InitPlatform", "") }
func (f *Fake) TermPlatform()                             { _ = f.call("TermPlatform", "") }
func (f *Fake) InitCore(settings.InitSettings) error      { return f.call("InitCore", "") }
func (f *Fake) TermCore()                                 { _ = f.call("TermCore", "") }
func (f *Fake) InitMusic(settings.MusicSettings) error    { return f.call("InitMusic", "") }
func (f *Fake) TermMusic()                                { _ = f.call("TermMusic", "") }
func (f *Fake) InitComm(settings.CommSettings) error      { return f.call("InitComm", "") }
func (f *Fake) TermComm()                                 { _ = f.call("TermComm", "") }

func (f *Fake) LoadBank(name string) (engine.BankHandle, error) {
	if err := f.call("LoadBank", "%s", name); err != nil {
		return 0, err
	}
	f.nextBank++
	return f.nextBank, nil
}

func (f *Fake) UnloadBank(h engine.BankHandle) error { return f.call("UnloadBank", "%d", h) }

func (f *Fake) CreateObject(id engine.ObjectID, label string) error {
	if err := f.call("CreateObject", "%d,%s", id, label); err != nil {
		return err
	}
	if _, ok := f.Objects[id]; ok {
		return engine.Errorf("CreateObject", engine.ResultInvalidID, "object %d already registered", id)
	}
	f.Objects[id] = label
	return nil
}

func (f *Fake) DestroyObject(id engine.ObjectID) {
	_ = f.call("DestroyObject", "%d", id)
	delete(f.Objects, id)
}

func (f *Fake) DestroyAllObjects() error {
	if err := f.call("DestroyAllObjects", ""); err != nil {
		return err
	}
	clear(f.Objects)
	return nil
}

func (f *Fake) SetPosition(id engine.ObjectID, t engine.Transform) error {
	if err := f.call("SetPosition", "%d,%s", id, t.Position); err != nil {
		return err
	}
	if _, ok := f.Objects[id]; !ok {
		return engine.Errorf("SetPosition", engine.ResultIDNotFound, "object %d", id)
	}
	return nil
}

func (f *Fake) SetListeners(ids []engine.ObjectID) error {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(uint64(id))
	}
	if err := f.call("SetListeners", "%s", strings.Join(parts, ",")); err != nil {
		return err
	}
	for _, id := range ids {
		if _, ok := f.Objects[id]; !ok {
			return engine.Errorf("SetListeners", engine.ResultIDNotFound, "object %d", id)
		}
	}
	return nil
}

func (f *Fake) PostEvent(id engine.ObjectID, ev engine.EventRef, flags engine.CallbackFlags) (engine.PlayingID, error) {
	if err := f.call("PostEvent", "%d,%s", id, ev); err != nil {
		return engine.InvalidPlayingID, err
	}
	if _, ok := f.Objects[id]; !ok {
		return engine.InvalidPlayingID, engine.Errorf("PostEvent", engine.ResultIDNotFound, "object %d", id)
	}
	f.nextPlaying++
	return f.nextPlaying, nil
}

func (f *Fake) StopAll(id engine.ObjectID)       { _ = f.call("StopAll", "%d", id) }
func (f *Fake) StopPlaying(pid engine.PlayingID) { _ = f.call("StopPlaying", "%d", pid) }

func (f *Fake) SetRTPC(name string, value float32, id engine.ObjectID) error {
	return f.call("SetRTPC", "%s,%g,%d", name, value, id)
}

func (f *Fake) RenderAudio() error { return f.call("RenderAudio", "") }

func (f *Fake) DrainCallbacks(fn func(engine.Callback)) {
	cbs := f.callbacks
	f.callbacks = nil
	for _, cb := range cbs {
		fn(cb)
	}
}

// Host serves a Fake to components that check readiness before every call.
type Host struct {
	Err error
	Eng *Fake
}

func NewHost() *Host { return &Host{Eng: New()} }

func (h *Host) Ready() error          { return h.Err }
func (h *Host) Engine() engine.Engine { return h.Eng }
