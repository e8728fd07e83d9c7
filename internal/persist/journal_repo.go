package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rrbridge/rrbridge/internal/diag"
	"github.com/rrbridge/rrbridge/internal/engine"
)

type JournalRepo struct {
	db *DB
}

func NewJournalRepo(db *DB) *JournalRepo {
	return &JournalRepo{db: db}
}

// WriteJournal writes a batch of entries in a single transaction, so a
// failed flush leaves nothing behind and can be retried whole.
func (r *JournalRepo) WriteJournal(ctx context.Context, session uuid.UUID, entries []diag.Entry) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("journal begin: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(
			`INSERT INTO diag_journal (session_id, recorded, kind, op, object_id, error)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			session, e.Time, string(e.Kind), e.Op, int64(e.Object), e.Err,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("journal insert: %w", err)
	}

	return tx.Commit(ctx)
}

// Recent returns the newest limit entries of a session, oldest first. A nil
// session selects every session.
func (r *JournalRepo) Recent(ctx context.Context, session uuid.UUID, limit int) ([]diag.Entry, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT recorded, kind, op, object_id, error FROM (
		   SELECT id, recorded, kind, op, object_id, error FROM diag_journal
		   WHERE $1::uuid IS NULL OR session_id = $1
		   ORDER BY id DESC LIMIT $2
		 ) t ORDER BY id`,
		nullable(session), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("journal query: %w", err)
	}
	defer rows.Close()

	var out []diag.Entry
	for rows.Next() {
		var (
			e    diag.Entry
			kind string
			obj  int64
		)
		if err := rows.Scan(&e.Time, &kind, &e.Op, &obj, &e.Err); err != nil {
			return nil, fmt.Errorf("journal scan: %w", err)
		}
		e.Kind = diag.Kind(kind)
		e.Object = engine.ObjectID(obj)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune deletes entries recorded before cutoff.
func (r *JournalRepo) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM diag_journal WHERE recorded < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("journal prune: %w", err)
	}
	return tag.RowsAffected(), nil
}

func nullable(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}

var _ diag.Sink = (*JournalRepo)(nil)
