// Package state persists the client's auth token and active session id
// between runs.
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	KeyToken     = "auth_token"
	KeySessionID = "session_id"
)

// Store is the persistent client state. Missing keys read as "".
type Store interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	SessionID(ctx context.Context) (string, error)
	SetSessionID(ctx context.Context, id string) error
	// Clear removes both the token and the session id.
	Clear(ctx context.Context) error
}

// SQLiteStore keeps state in the client_state table created by telemetry.InitDB.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an initialized database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM client_state WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStore) set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO client_state (key, value, updated_at) VALUES (?, ?, ?)",
		key, value, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Token(ctx context.Context) (string, error) {
	return s.get(ctx, KeyToken)
}

func (s *SQLiteStore) SetToken(ctx context.Context, token string) error {
	return s.set(ctx, KeyToken, token)
}

func (s *SQLiteStore) SessionID(ctx context.Context) (string, error) {
	return s.get(ctx, KeySessionID)
}

func (s *SQLiteStore) SetSessionID(ctx context.Context, id string) error {
	return s.set(ctx, KeySessionID, id)
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM client_state WHERE key IN (?, ?)", KeyToken, KeySessionID); err != nil {
		return fmt.Errorf("failed to clear state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// MemoryStore is a Store held in memory, for tests and throwaway runs.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) get(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[key]
}

func (m *MemoryStore) set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

func (m *MemoryStore) Token(context.Context) (string, error) { return m.get(KeyToken), nil }

func (m *MemoryStore) SetToken(_ context.Context, token string) error {
	m.set(KeyToken, token)
	return nil
}

func (m *MemoryStore) SessionID(context.Context) (string, error) { return m.get(KeySessionID), nil }

func (m *MemoryStore) SetSessionID(_ context.Context, id string) error {
	m.set(KeySessionID, id)
	return nil
}

func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, KeyToken)
	delete(m.values, KeySessionID)
	return nil
}
