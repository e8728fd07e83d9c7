package transform

import (
	"github.com/rrbridge/rrbridge/internal/diag"
	"github.com/rrbridge/rrbridge/internal/listener"
	"github.com/rrbridge/rrbridge/internal/metrics"
	"github.com/rrbridge/rrbridge/internal/registry"
	"go.uber.org/zap"
)

// Sync sends one set-position call per dirty object per tick.
type Sync struct {
	host      registry.Host
	reg       *registry.Registry
	listeners *listener.Set
	scale     float32
	log       *zap.Logger
	rec       diag.Recorder
	m         *metrics.Bridge

	sent   int
	failed int
	visit  func(obj *registry.RegisteredObject) bool
}

type Option func(*Sync)

func WithRecorder(r diag.Recorder) Option  { return func(s *Sync) { s.rec = r } }
func WithMetrics(m *metrics.Bridge) Option { return func(s *Sync) { s.m = m } }

// WithScale sets the simulation-unit to engine-unit factor (default 1).
func WithScale(scale float32) Option { return func(s *Sync) { s.scale = scale } }

func New(host registry.Host, reg *registry.Registry, listeners *listener.Set, log *zap.Logger, opts ...Option) *Sync {
	s := &Sync{
		host:      host,
		reg:       reg,
		listeners: listeners,
		scale:     1,
		log:       log,
		rec:       diag.Nop{},
	}
	for _, o := range opts {
		o(s)
	}
	s.visit = s.push
	return s
}

// Tick pushes every dirty pose. Clean objects are skipped before any engine
// call. A failed update keeps the object dirty for the next tick and does not
// stop the pass.
func (s *Sync) Tick() (int, error) {
	if err := s.host.Ready(); err != nil {
		return 0, err
	}
	s.sent, s.failed = 0, 0
	s.reg.EachDirty(s.visit)
	s.m.PositionsSent(s.sent)
	if s.failed > 0 {
		s.log.Warn("position sync incomplete", zap.Int("failed", s.failed), zap.Int("sent", s.sent))
	}
	return s.sent, nil
}

func (s *Sync) push(obj *registry.RegisteredObject) bool {
	t := Convert(obj.Pose, s.scale)
	if err := s.host.Engine().SetPosition(obj.ID, t); err != nil {
		s.failed++
		s.m.EngineError("SetPosition")
		s.rec.Record(diag.New(diag.KindObject, "SetPosition", obj.ID, err))
		s.log.Error("could not set object position", zap.Uint64("object", uint64(obj.ID)), zap.Error(err))
		return false
	}
	s.sent++
	if s.listeners != nil {
		s.listeners.UpdatePose(obj.ID, t)
	}
	return true
}
