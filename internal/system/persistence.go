package system

import (
	"context"
	"time"

	coresys "github.com/rrbridge/rrbridge/internal/core/system"
	"github.com/rrbridge/rrbridge/internal/diag"
	"go.uber.org/zap"
)

// PersistenceSystem periodically flushes the diagnostics journal to its sink.
// Phase 6 (Persist).
type PersistenceSystem struct {
	journal   *diag.Journal
	log       *zap.Logger
	tickCount int
	interval  int // flush every N ticks
}

func NewPersistenceSystem(journal *diag.Journal, log *zap.Logger, intervalTicks int) *PersistenceSystem {
	if intervalTicks <= 0 {
		intervalTicks = 1
	}
	return &PersistenceSystem{
		journal:  journal,
		log:      log,
		interval: intervalTicks,
	}
}

func (s *PersistenceSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *PersistenceSystem) Update(_ time.Duration) {
	s.tickCount++
	if s.tickCount < s.interval {
		return
	}
	s.tickCount = 0
	s.flush()
}

// FlushNow writes whatever is buffered immediately. Called for graceful
// shutdown after the engine is terminated, so teardown failures are kept.
func (s *PersistenceSystem) FlushNow() {
	s.flush()
}

func (s *PersistenceSystem) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.journal.Flush(ctx); err != nil {
		s.log.Error("diagnostics journal flush failed", zap.Error(err))
	}
}
