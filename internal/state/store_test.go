package state_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"AgentConsole/internal/state"
	"AgentConsole/internal/telemetry"
)

func exerciseStore(t *testing.T, s state.Store) {
	t.Helper()
	ctx := context.Background()

	token, err := s.Token(ctx)
	require.NoError(t, err)
	require.Empty(t, token)

	require.NoError(t, s.SetToken(ctx, "tok-1"))
	require.NoError(t, s.SetSessionID(ctx, "sess-1"))
	require.NoError(t, s.SetSessionID(ctx, "sess-2"))

	token, err = s.Token(ctx)
	require.NoError(t, err)
	require.Equal(t, "tok-1", token)

	sid, err := s.SessionID(ctx)
	require.NoError(t, err)
	require.Equal(t, "sess-2", sid)

	require.NoError(t, s.Clear(ctx))

	token, err = s.Token(ctx)
	require.NoError(t, err)
	require.Empty(t, token)
	sid, err = s.SessionID(ctx)
	require.NoError(t, err)
	require.Empty(t, sid)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, state.NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	db, err := telemetry.InitDB(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	defer db.Close()

	exerciseStore(t, state.NewSQLiteStore(db))
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	db, err := telemetry.InitDB(path)
	require.NoError(t, err)
	require.NoError(t, state.NewSQLiteStore(db).SetToken(ctx, "persisted"))
	require.NoError(t, db.Close())

	db, err = telemetry.InitDB(path)
	require.NoError(t, err)
	defer db.Close()

	token, err := state.NewSQLiteStore(db).Token(ctx)
	require.NoError(t, err)
	require.Equal(t, "persisted", token)
}
