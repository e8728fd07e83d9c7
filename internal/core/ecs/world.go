package ecs

// World owns the entity pool, every component store created through
// NewStoreIn, and the destroy queue. Entities marked for destruction live
// until FlushDestroyQueue, which the cleanup system runs last in the tick,
// so every system of a tick sees the same entity set.
type World struct {
	pool   *EntityPool
	stores []Removable

	pending   []EntityID
	destroyed []EntityID
}

func NewWorld() *World {
	return &World{
		pool:      NewEntityPool(),
		stores:    make([]Removable, 0, 8),
		pending:   make([]EntityID, 0, 64),
		destroyed: make([]EntityID, 0, 64),
	}
}

// NewStoreIn creates a store owned by w: a destroyed entity loses its
// component in it.
func NewStoreIn[T any](w *World) *Store[T] {
	s := NewStore[T]()
	w.stores = append(w.stores, s)
	return s
}

func (w *World) CreateEntity() EntityID { return w.pool.Create() }

func (w *World) Alive(id EntityID) bool { return w.pool.Alive(id) }

// MarkForDestruction queues id; marking twice is harmless.
func (w *World) MarkForDestruction(id EntityID) {
	w.pending = append(w.pending, id)
}

// FlushDestroyQueue strips queued entities from every store and frees their
// pool slots. Stale or already destroyed ids are skipped.
func (w *World) FlushDestroyQueue() {
	w.destroyed = w.destroyed[:0]
	for _, id := range w.pending {
		if !w.pool.Alive(id) {
			continue
		}
		for _, s := range w.stores {
			s.Remove(id)
		}
		w.pool.Destroy(id)
		w.destroyed = append(w.destroyed, id)
	}
	w.pending = w.pending[:0]
}

// Destroyed lists the entities destroyed by the last flush. The slice is
// reused by the next flush.
func (w *World) Destroyed() []EntityID {
	return w.destroyed
}
