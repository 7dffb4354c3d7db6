// Package sqlite persists the attempt audit trail in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/askdf/askdf/pkg/store"
)

// Store implements AttemptStore using SQLite.
type Store struct {
	db *sql.DB
}

// Verify interface compliance at compile time.
var _ store.AttemptStore = (*Store)(nil)

// New opens (or creates) a SQLite database at the given path and runs migrations.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS attempts (
		id TEXT PRIMARY KEY,
		turn_id TEXT NOT NULL,
		ordinal INTEGER NOT NULL,
		backend TEXT NOT NULL DEFAULT '',
		script TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT '',
		failure_stage TEXT NOT NULL DEFAULT '',
		failure_detail TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_attempts_turn ON attempts(turn_id, ordinal);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) RecordAttempt(ctx context.Context, a store.Attempt) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attempts (id, turn_id, ordinal, backend, script, state, failure_stage, failure_detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.TurnID, a.Ordinal, a.Backend, a.Script,
		a.State, a.FailureStage, a.FailureDetail, a.CreatedAt,
	)
	return err
}

func (s *Store) ListAttempts(ctx context.Context, turnID string) ([]store.Attempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, turn_id, ordinal, backend, script, state, failure_stage, failure_detail, created_at
		 FROM attempts WHERE turn_id=? ORDER BY ordinal ASC`, turnID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []store.Attempt
	for rows.Next() {
		var a store.Attempt
		if err := rows.Scan(&a.ID, &a.TurnID, &a.Ordinal, &a.Backend, &a.Script,
			&a.State, &a.FailureStage, &a.FailureDetail, &a.CreatedAt,
		); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
