package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseEvents   Phase = iota // 0: deliver last tick's bridge events
	PhaseSimulate              // 1: game logic moves, spawns and despawns entities
	PhaseRegister              // 2: reconcile engine objects with the entity set
	PhaseSync                  // 3: push dirty poses to the engine
	PhaseDispatch              // 4: post events, drain engine callbacks
	PhaseRender                // 5: render one audio frame
	PhasePersist               // 6: diagnostics journal flush
	PhaseCleanup               // 7: destroy queued entities
)

var phaseNames = [...]string{"events", "simulate", "register", "sync", "dispatch", "render", "persist", "cleanup"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// System is the interface every ECS system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
