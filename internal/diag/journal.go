package diag

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Sink persists a batch of entries for one session.
type Sink interface {
	WriteJournal(ctx context.Context, session uuid.UUID, entries []Entry) error
}

// Journal buffers entries and writes them to a Sink in batches. Record never
// touches the sink; Flush is called from the persist phase and at shutdown.
type Journal struct {
	mu      sync.Mutex
	sink    Sink
	session uuid.UUID
	pending []Entry
	limit   int
	dropped int
	log     *zap.Logger
}

// NewJournal creates a journal with a fresh time-ordered session id. At most
// limit entries are buffered between flushes; the excess is counted and dropped.
func NewJournal(sink Sink, limit int, log *zap.Logger) (*Journal, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("journal session id: %w", err)
	}
	if limit <= 0 {
		limit = 1024
	}
	return &Journal{
		sink:    sink,
		session: id,
		pending: make([]Entry, 0, 64),
		limit:   limit,
		log:     log,
	}, nil
}

func (j *Journal) Session() uuid.UUID { return j.session }

func (j *Journal) Record(e Entry) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.pending) >= j.limit {
		j.dropped++
		return
	}
	j.pending = append(j.pending, e)
}

// Flush writes all buffered entries in one batch. On failure the batch is
// kept and retried on the next flush.
func (j *Journal) Flush(ctx context.Context) error {
	j.mu.Lock()
	if len(j.pending) == 0 {
		j.mu.Unlock()
		return nil
	}
	batch := make([]Entry, len(j.pending))
	copy(batch, j.pending)
	dropped := j.dropped
	j.mu.Unlock()

	if err := j.sink.WriteJournal(ctx, j.session, batch); err != nil {
		return fmt.Errorf("flush journal: %w", err)
	}

	j.mu.Lock()
	j.pending = append(j.pending[:0], j.pending[len(batch):]...)
	j.dropped -= dropped
	j.mu.Unlock()

	if dropped > 0 {
		j.log.Warn("diagnostics journal overflowed", zap.Int("dropped", dropped))
	}
	return nil
}
