package persist

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rrbridge/rrbridge/internal/config"
	"github.com/rrbridge/rrbridge/internal/diag"
	"github.com/rrbridge/rrbridge/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// openTestDB connects to RRBRIDGE_TEST_DSN or skips.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("RRBRIDGE_TEST_DSN")
	if dsn == "" {
		t.Skip("RRBRIDGE_TEST_DSN not set")
	}
	db, err := NewDB(context.Background(), config.DatabaseConfig{
		DSN:             dsn,
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func TestJournalRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewJournalRepo(db)

	v, err := SchemaVersion(ctx, db.Pool)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, v, int64(1))

	j, err := diag.NewJournal(repo, 16, zap.NewNop())
	require.NoError(t, err)
	j.Record(diag.New(diag.KindTeardown, "term music", engine.InvalidObjectID, errors.New("boom")))
	j.Record(diag.New(diag.KindObject, "SetPosition", 7, engine.ErrIDNotFound))
	require.NoError(t, j.Flush(ctx))

	got, err := repo.Recent(ctx, j.Session(), 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, diag.KindTeardown, got[0].Kind)
	assert.Equal(t, "term music", got[0].Op)
	assert.Equal(t, engine.ObjectID(7), got[1].Object)
	assert.Contains(t, got[1].Err, "IDNotFound")

	none, err := repo.Recent(ctx, uuid.New(), 10)
	require.NoError(t, err)
	assert.Empty(t, none)

	n, err := repo.Prune(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(2))
}
