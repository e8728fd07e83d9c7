package registry

import (
	"fmt"
	"strings"

	"github.com/rrbridge/rrbridge/internal/engine"
)

// ReusePolicy decides when a released object id may be handed out again.
type ReusePolicy int

const (
	// ReuseDeferred quarantines released ids until EndTick, so an id freed in
	// a tick is never reused in that same tick.
	ReuseDeferred ReusePolicy = iota
	// ReuseImmediate makes a released id available to the next Acquire.
	ReuseImmediate
	// ReuseNever never hands out an id twice.
	ReuseNever
)

func (p ReusePolicy) String() string {
	switch p {
	case ReuseDeferred:
		return "deferred"
	case ReuseImmediate:
		return "immediate"
	case ReuseNever:
		return "never"
	}
	return fmt.Sprintf("ReusePolicy(%d)", int(p))
}

// ParseReusePolicy accepts "deferred", "immediate" or "never".
func ParseReusePolicy(s string) (ReusePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "deferred":
		return ReuseDeferred, nil
	case "immediate":
		return ReuseImmediate, nil
	case "never":
		return ReuseNever, nil
	}
	return 0, fmt.Errorf("unknown id reuse policy %q", s)
}

// Allocator hands out object ids starting at 1. Released ids are recycled
// LIFO according to the policy.
type Allocator struct {
	policy     ReusePolicy
	next       engine.ObjectID
	free       []engine.ObjectID
	quarantine []engine.ObjectID
}

func NewAllocator(policy ReusePolicy) *Allocator {
	return &Allocator{
		policy:     policy,
		next:       1,
		free:       make([]engine.ObjectID, 0, 64),
		quarantine: make([]engine.ObjectID, 0, 64),
	}
}

func (a *Allocator) Policy() ReusePolicy { return a.policy }

func (a *Allocator) Acquire() engine.ObjectID {
	if n := len(a.free); n > 0 {
		id := a.free[n-1]
		a.free = a.free[:n-1]
		return id
	}
	id := a.next
	a.next++
	return id
}

// Release returns id to the pool. The caller must already have issued the
// engine-side destroy for it.
func (a *Allocator) Release(id engine.ObjectID) {
	switch a.policy {
	case ReuseImmediate:
		a.free = append(a.free, id)
	case ReuseDeferred:
		a.quarantine = append(a.quarantine, id)
	}
}

// EndTick makes ids released during the tick available again.
func (a *Allocator) EndTick() {
	if len(a.quarantine) == 0 {
		return
	}
	a.free = append(a.free, a.quarantine...)
	a.quarantine = a.quarantine[:0]
}

// Reset forgets every allocation; used once the engine dropped all objects.
func (a *Allocator) Reset() {
	a.next = 1
	a.free = a.free[:0]
	a.quarantine = a.quarantine[:0]
}
