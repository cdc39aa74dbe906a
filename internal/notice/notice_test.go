package notice

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestEmitAndSince(t *testing.T) {
	ctx := context.Background()
	db := openMemDB(t)

	s, err := New(ctx, db, "")
	require.NoError(t, err)

	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, s.EmitTrap64(ctx, 42, 7, base))
	require.NoError(t, s.EmitSubnetUp(ctx, base.Add(time.Minute)))
	require.NoError(t, s.EmitErrorBanner(ctx, "errors during initialization", base.Add(2*time.Minute)))

	all, err := s.Since(ctx, base)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.EqualValues(t, 42, all[0].GUID)
	assert.EqualValues(t, 7, all[0].LID)
	assert.Equal(t, "SUBNET UP", all[1].Message)

	onlyLast, err := s.Since(ctx, base.Add(90*time.Second))
	require.NoError(t, err)
	require.Len(t, onlyLast, 1)
}

func TestPurge(t *testing.T) {
	ctx := context.Background()
	db := openMemDB(t)
	s, err := New(ctx, db, "")
	require.NoError(t, err)

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, s.EmitTrap64(ctx, 1, 1, old))
	require.NoError(t, s.EmitTrap64(ctx, 2, 2, time.Now()))

	n, err := s.Purge(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	remaining, err := s.Since(ctx, old)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}
