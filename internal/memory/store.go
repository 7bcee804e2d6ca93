// Package memory persists per-user conversation history so the answer
// engine can resolve follow-up questions against prior turns.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Roles for conversation turns.
const (
	RoleHuman     = "human"
	RoleAssistant = "assistant"
)

// DefaultMaxTurns bounds how much history is retained per conversation.
const DefaultMaxTurns = 200

// Turn is a single utterance in a conversation.
type Turn struct {
	ID        string
	Role      string
	Content   string
	CreatedAt time.Time
}

// Store persists conversations keyed by (tenant, user).
type Store struct {
	db       *sql.DB
	maxTurns int

	mu    sync.Mutex
	locks map[convKey]*sync.Mutex
}

type convKey struct {
	tenantID int64
	userID   string
}

// Open opens the conversation store at the given path, creating the
// schema if needed. maxTurns <= 0 selects DefaultMaxTurns.
func Open(path string, maxTurns int) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}

	s := &Store{db: db, maxTurns: maxTurns, locks: make(map[convKey]*sync.Mutex)}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) init() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("pragma failed: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			tenant_id INTEGER NOT NULL,
			user_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			UNIQUE(tenant_id, user_id, position)
		);
		CREATE INDEX IF NOT EXISTS idx_conversations_key
			ON conversations(tenant_id, user_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("schema creation failed: %w", err)
	}

	return nil
}

// Lock serializes access to one conversation. The returned function
// releases the lock. Callers hold it across the load-generate-save
// cycle so concurrent messages from the same user cannot interleave.
func (s *Store) Lock(tenantID int64, userID string) func() {
	key := convKey{tenantID, userID}

	s.mu.Lock()
	m, ok := s.locks[key]
	if !ok {
		m = &sync.Mutex{}
		s.locks[key] = m
	}
	s.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// Load returns the conversation for (tenant, user) in order, oldest
// first. A conversation that does not exist yet is an empty slice.
func (s *Store) Load(ctx context.Context, tenantID int64, userID string) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, created_at
		FROM conversations
		WHERE tenant_id = ? AND user_id = ?
		ORDER BY position`,
		tenantID, userID)
	if err != nil {
		return nil, fmt.Errorf("memory: load failed: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("memory: scan failed: %w", err)
		}
		turns = append(turns, t)
	}

	return turns, rows.Err()
}

// Append adds turns to the end of the conversation, trimming the
// oldest entries once the conversation exceeds the retention limit.
func (s *Store) Append(ctx context.Context, tenantID int64, userID string, turns ...Turn) error {
	existing, err := s.Load(ctx, tenantID, userID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for i := range turns {
		if turns[i].ID == "" {
			turns[i].ID = uuid.New().String()
		}
		if turns[i].CreatedAt.IsZero() {
			turns[i].CreatedAt = now
		}
	}

	all := append(existing, turns...)
	if len(all) > s.maxTurns {
		all = all[len(all)-s.maxTurns:]
	}

	return s.save(ctx, tenantID, userID, all)
}

// Clear deletes the conversation for (tenant, user).
func (s *Store) Clear(ctx context.Context, tenantID int64, userID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM conversations WHERE tenant_id = ? AND user_id = ?",
		tenantID, userID)
	if err != nil {
		return fmt.Errorf("memory: clear failed: %w", err)
	}
	return nil
}

// save rewrites the conversation in a single transaction so positions
// stay dense after trimming.
func (s *Store) save(ctx context.Context, tenantID int64, userID string, turns []Turn) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM conversations WHERE tenant_id = ? AND user_id = ?",
		tenantID, userID); err != nil {
		return fmt.Errorf("memory: save failed: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO conversations (id, tenant_id, user_id, position, role, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, t := range turns {
		if _, err := stmt.ExecContext(ctx,
			t.ID, tenantID, userID, i, t.Role, t.Content, t.CreatedAt); err != nil {
			return fmt.Errorf("memory: save failed: %w", err)
		}
	}

	return tx.Commit()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
