package system

import (
	"time"

	"github.com/rrbridge/rrbridge/internal/core/ecs"
	coresys "github.com/rrbridge/rrbridge/internal/core/system"
	"github.com/rrbridge/rrbridge/internal/registry"
)

// CleanupSystem flushes the deferred entity destruction queue at tick end and
// closes the registry's tick, releasing quarantined object ids.
// Phase 7 (Cleanup).
type CleanupSystem struct {
	world *ecs.World
	reg   *registry.Registry
}

func NewCleanupSystem(world *ecs.World, reg *registry.Registry) *CleanupSystem {
	return &CleanupSystem{world: world, reg: reg}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(_ time.Duration) {
	s.world.FlushDestroyQueue()
	s.reg.EndTick()
}
