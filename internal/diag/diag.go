// Package diag records engine-side failures that are not surfaced to callers
// (teardown errors, per-object sync failures) so they can be inspected later.
package diag

import (
	"sync"
	"time"

	"github.com/rrbridge/rrbridge/internal/engine"
)

type Kind string

const (
	KindStartup  Kind = "startup"
	KindTeardown Kind = "teardown"
	KindObject   Kind = "object"
	KindEvent    Kind = "event"
	KindListener Kind = "listener"
)

// Entry is one recorded failure.
type Entry struct {
	Time   time.Time
	Kind   Kind
	Op     string
	Object engine.ObjectID
	Err    string
}

// Recorder accepts diagnostics entries. Implementations must not block the tick.
type Recorder interface {
	Record(e Entry)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Record(Entry) {}

// New builds an Entry stamped with the current time.
func New(kind Kind, op string, obj engine.ObjectID, err error) Entry {
	e := Entry{Time: time.Now(), Kind: kind, Op: op, Object: obj}
	if err != nil {
		e.Err = err.Error()
	}
	return e
}

// Ring keeps the most recent entries in memory.
type Ring struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
}

func NewRing(size int) *Ring {
	if size <= 0 {
		size = 256
	}
	return &Ring{entries: make([]Entry, size)}
}

func (r *Ring) Record(e Entry) {
	r.mu.Lock()
	r.entries[r.next] = e
	r.next++
	if r.next == len(r.entries) {
		r.next = 0
		r.full = true
	}
	r.mu.Unlock()
}

// Entries returns the retained entries, oldest first.
func (r *Ring) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		out := make([]Entry, r.next)
		copy(out, r.entries[:r.next])
		return out
	}
	out := make([]Entry, 0, len(r.entries))
	out = append(out, r.entries[r.next:]...)
	return append(out, r.entries[:r.next]...)
}

// Tee fans entries out to several recorders.
type Tee []Recorder

func (t Tee) Record(e Entry) {
	for _, r := range t {
		r.Record(e)
	}
}
