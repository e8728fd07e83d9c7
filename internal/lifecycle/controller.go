// Package lifecycle owns process-wide initialization and teardown of the
// audio engine. Everything that talks to the engine goes through a
// Controller and checks Ready first.
package lifecycle

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sync/atomic"

	"github.com/rrbridge/rrbridge/internal/diag"
	"github.com/rrbridge/rrbridge/internal/engine"
	"github.com/rrbridge/rrbridge/internal/settings"
	"go.uber.org/zap"
)

type State int32

const (
	Uninitialized State = iota
	Initializing
	Running
	Terminating
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Running:
		return "running"
	case Terminating:
		return "terminating"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

var (
	ErrNotReady       = errors.New("audio engine not ready")
	ErrAlreadyRunning = errors.New("audio engine already running")
	ErrBusy           = errors.New("audio engine lifecycle transition in progress")
	ErrEngineInUse    = errors.New("another audio engine instance is running")
)

// running is the process-wide guard: at most one Controller is Running.
var running atomic.Pointer[Controller]

// Controller drives the engine through
// Uninitialized → Initializing → Running → Terminating → Uninitialized.
// It has a single writer (the embedding application's main loop); concurrent
// transitions fail fast with ErrBusy.
type Controller struct {
	eng   engine.Engine
	log   *zap.Logger
	rec   diag.Recorder
	state atomic.Int32

	settings  settings.Settings
	completed []Step
	banks     map[string]engine.BankHandle
	onTerm    []func()
}

type Option func(*Controller)

// WithRecorder sets where swallowed teardown failures are recorded.
func WithRecorder(r diag.Recorder) Option {
	return func(c *Controller) { c.rec = r }
}

func New(eng engine.Engine, log *zap.Logger, opts ...Option) *Controller {
	c := &Controller{
		eng:   eng,
		log:   log,
		rec:   diag.Nop{},
		banks: make(map[string]engine.BankHandle),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Controller) State() State { return State(c.state.Load()) }

// Ready returns nil iff the engine is Running.
func (c *Controller) Ready() error {
	if c.State() != Running {
		return ErrNotReady
	}
	return nil
}

// Engine returns the engine handle. Callers must check Ready before use.
func (c *Controller) Engine() engine.Engine { return c.eng }

// Settings returns the bundle the engine was initialized with.
func (c *Controller) Settings() settings.Settings { return c.settings }

// OnTerm registers fn to run at the start of Term, while the engine is still
// up, so dependents can drop their engine-side bookkeeping.
func (c *Controller) OnTerm(fn func()) {
	c.onTerm = append(c.onTerm, fn)
}

// Init brings the engine up. Steps run in strict order; a failing step unwinds
// every completed step in reverse and the controller returns to Uninitialized.
func (c *Controller) Init(s settings.Settings) error {
	if !c.state.CompareAndSwap(int32(Uninitialized), int32(Initializing)) {
		if c.State() == Running {
			return ErrAlreadyRunning
		}
		return ErrBusy
	}
	if !running.CompareAndSwap(nil, c) {
		c.state.Store(int32(Uninitialized))
		return ErrEngineInUse
	}

	c.settings = s
	c.completed = c.completed[:0]
	for _, step := range c.steps(s) {
		if err := c.initStep(step, s); err != nil {
			c.log.Error("audio engine init failed", zap.Stringer("step", step), zap.Error(err))
			c.rec.Record(diag.New(diag.KindStartup, step.String(), engine.InvalidObjectID, err))
			c.unwind()
			running.CompareAndSwap(c, nil)
			c.state.Store(int32(Uninitialized))
			return &StepError{Step: step, Err: err}
		}
		c.completed = append(c.completed, step)
		c.log.Debug("audio subsystem initialized", zap.Stringer("step", step))
	}

	c.state.Store(int32(Running))
	c.log.Info("audio engine running", zap.Int("steps", len(c.completed)))
	return nil
}

func (c *Controller) steps(s settings.Settings) []Step {
	steps := []Step{StepMemory, StepStreaming, StepPlatform, StepCore, StepMusic}
	if s.Comm.Enabled {
		steps = append(steps, StepComm)
	}
	return steps
}

// initStep runs one step, turning an engine panic into an ordinary step
// failure so the unwind path still runs.
func (c *Controller) initStep(step Step, s settings.Settings) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return c.runStep(step, s)
}

func (c *Controller) runStep(step Step, s settings.Settings) error {
	switch step {
	case StepMemory:
		if err := s.Memory.Validate(); err != nil {
			return err
		}
		return c.eng.InitMemory(s.Memory)
	case StepStreaming:
		if err := s.Stream.Validate(); err != nil {
			return err
		}
		if err := s.Device.Validate(); err != nil {
			return err
		}
		if err := s.Plugin.Validate(); err != nil {
			return err
		}
		return c.eng.InitStreaming(s.Stream, s.Device, BanksPath(s.Plugin.BanksLocation), s.Plugin.InitLanguage)
	case StepPlatform:
		if err := s.Platform.Validate(); err != nil {
			return err
		}
		return c.eng.InitPlatform(s.Platform)
	case StepCore:
		if err := s.Init.Validate(); err != nil {
			return err
		}
		return c.eng.InitCore(s.Init)
	case StepMusic:
		if err := s.Music.Validate(); err != nil {
			return err
		}
		return c.eng.InitMusic(s.Music)
	case StepComm:
		if err := s.Comm.Validate(); err != nil {
			return err
		}
		return c.eng.InitComm(s.Comm)
	}
	return fmt.Errorf("unknown init step %d", int(step))
}

func (c *Controller) termStep(step Step) {
	switch step {
	case StepMemory:
		c.eng.TermMemory()
	case StepStreaming:
		c.eng.TermStreaming()
	case StepPlatform:
		c.eng.TermPlatform()
	case StepCore:
		c.eng.TermCore()
	case StepMusic:
		c.eng.TermMusic()
	case StepComm:
		c.eng.TermComm()
	}
}

// unwind tears down completed steps in reverse order.
func (c *Controller) unwind() {
	for i := len(c.completed) - 1; i >= 0; i-- {
		step := c.completed[i]
		c.safely("term "+step.String(), func() error {
			c.termStep(step)
			return nil
		})
		c.log.Debug("audio subsystem terminated", zap.Stringer("step", step))
	}
	c.completed = c.completed[:0]
}

// Term tears the engine down. It is a no-op unless Running, never returns an
// error and never panics; failures are logged and recorded.
func (c *Controller) Term() {
	if !c.state.CompareAndSwap(int32(Running), int32(Terminating)) {
		return
	}

	for _, fn := range c.onTerm {
		c.safely("term hook", func() error {
			fn()
			return nil
		})
	}

	c.safely("stop all", func() error {
		c.eng.StopAll(engine.InvalidObjectID)
		return nil
	})
	c.safely("destroy all objects", c.eng.DestroyAllObjects)
	c.log.Debug("all objects stopped and unregistered")

	for name, h := range c.banks {
		c.safely("unload bank "+name, func() error { return c.eng.UnloadBank(h) })
	}
	clear(c.banks)

	c.unwind()

	running.CompareAndSwap(c, nil)
	c.state.Store(int32(Uninitialized))
	c.log.Info("audio engine terminated")
}

// safely runs fn, swallowing both errors and panics into the diagnostics log.
func (c *Controller) safely(op string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			c.log.Error("audio engine teardown panicked", zap.String("op", op), zap.Error(err))
			c.rec.Record(diag.New(diag.KindTeardown, op, engine.InvalidObjectID, err))
		}
	}()
	if err := fn(); err != nil {
		c.log.Warn("audio engine teardown failed", zap.String("op", op), zap.Error(err))
		c.rec.Record(diag.New(diag.KindTeardown, op, engine.InvalidObjectID, err))
	}
}

// LoadBank loads a soundbank by name; loading an already loaded bank returns
// its existing handle.
func (c *Controller) LoadBank(name string) (engine.BankHandle, error) {
	if err := c.Ready(); err != nil {
		return 0, err
	}
	if h, ok := c.banks[name]; ok {
		return h, nil
	}
	h, err := c.eng.LoadBank(name)
	if err != nil {
		return 0, fmt.Errorf("load bank %s: %w", name, err)
	}
	c.banks[name] = h
	c.log.Debug("soundbank loaded", zap.String("bank", name))
	return h, nil
}

func (c *Controller) UnloadBank(name string) error {
	if err := c.Ready(); err != nil {
		return err
	}
	h, ok := c.banks[name]
	if !ok {
		return nil
	}
	delete(c.banks, name)
	if err := c.eng.UnloadBank(h); err != nil {
		return fmt.Errorf("unload bank %s: %w", name, err)
	}
	return nil
}

// LoadInitBank loads the configured init bank, which every other bank needs.
func (c *Controller) LoadInitBank() error {
	name := c.settings.Plugin.InitBank
	if name == "" {
		return nil
	}
	if _, err := c.LoadBank(name); err != nil {
		c.log.Error("init bank could not be loaded; there will be no audio", zap.String("bank", name))
		return err
	}
	return nil
}

// RenderAudio asks the engine to process one audio frame.
func (c *Controller) RenderAudio() error {
	if err := c.Ready(); err != nil {
		return err
	}
	return c.eng.RenderAudio()
}

// BanksPath appends the platform folder the bank generator writes into.
func BanksPath(location string) string {
	return filepath.Join(location, platformDir())
}

func platformDir() string {
	switch runtime.GOOS {
	case "windows":
		return "Windows"
	case "darwin":
		return "Mac"
	default:
		return "Linux"
	}
}
