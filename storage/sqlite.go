// Package storage provides the SQLite turn journal.
//
// Information Hiding:
// - SQLite connection management hidden behind interface
// - Schema details encapsulated
// - Thread-safe via sql.DB's built-in connection pooling

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SqliteJournal implements Journal using SQLite.
type SqliteJournal struct {
	db *sql.DB
}

// OpenSqliteJournal opens or creates a journal database at path.
// Creates parent directories if they don't exist.
func OpenSqliteJournal(path string) (*SqliteJournal, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	return newSqliteJournal(db)
}

// NewSqliteJournalInMemory creates an in-memory journal (useful for testing).
func NewSqliteJournalInMemory() (*SqliteJournal, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	return newSqliteJournal(db)
}

func newSqliteJournal(db *sql.DB) (*SqliteJournal, error) {
	j := &SqliteJournal{db: db}
	if err := j.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return j, nil
}

// Close closes the database connection.
func (j *SqliteJournal) Close() error {
	return j.db.Close()
}

func (j *SqliteJournal) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE TABLE IF NOT EXISTS turns (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			turn_index INTEGER NOT NULL,
			started_at INTEGER NOT NULL,
			stream INTEGER NOT NULL,
			retrieval_mode TEXT NOT NULL,
			retrieval_active INTEGER NOT NULL,
			keyword_query TEXT NOT NULL,
			strategy TEXT NOT NULL,
			chunk_count INTEGER NOT NULL,
			chars INTEGER NOT NULL,
			tokens INTEGER,
			elapsed_ms INTEGER NOT NULL,
			error TEXT NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE,
			UNIQUE(session_id, turn_index)
		);

		CREATE INDEX IF NOT EXISTS idx_turns_session
		ON turns(session_id, turn_index);

		CREATE TABLE IF NOT EXISTS turn_trace (
			turn_id TEXT NOT NULL,
			line_index INTEGER NOT NULL,
			line TEXT NOT NULL,
			PRIMARY KEY (turn_id, line_index),
			FOREIGN KEY (turn_id) REFERENCES turns(id) ON DELETE CASCADE
		);
	`

	_, err := j.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Record appends one turn and its trace lines.
func (j *SqliteJournal) Record(ctx context.Context, rec TurnRecord) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// defer tx.Rollback() is safe even after Commit() - it becomes a no-op
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO sessions (session_id) VALUES (?)",
		rec.SessionID)
	if err != nil {
		return fmt.Errorf("failed to ensure session: %w", err)
	}

	var tokens sql.NullInt64
	if rec.Tokens != nil {
		tokens = sql.NullInt64{Int64: int64(*rec.Tokens), Valid: true}
	}

	turnID := uuid.NewString()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO turns (id, session_id, turn_index, started_at, stream, retrieval_mode,
			retrieval_active, keyword_query, strategy, chunk_count, chars, tokens, elapsed_ms, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		turnID, rec.SessionID, rec.TurnIndex, rec.StartedAt.UnixMilli(), rec.Stream, rec.RetrievalMode,
		rec.RetrievalActive, rec.KeywordQuery, rec.Strategy, rec.ChunkCount, rec.Chars, tokens,
		rec.Elapsed.Milliseconds(), rec.Error)
	if err != nil {
		return fmt.Errorf("failed to insert turn: %w", err)
	}

	if len(rec.Trace) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			"INSERT INTO turn_trace (turn_id, line_index, line) VALUES (?, ?, ?)")
		if err != nil {
			return fmt.Errorf("failed to prepare trace statement: %w", err)
		}
		defer stmt.Close()

		for i, line := range rec.Trace {
			if _, err := stmt.ExecContext(ctx, turnID, i, line); err != nil {
				return fmt.Errorf("failed to insert trace line: %w", err)
			}
		}
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE sessions SET updated_at = datetime('now') WHERE session_id = ?",
		rec.SessionID)
	if err != nil {
		return fmt.Errorf("failed to update session timestamp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Turns loads every record of a session in turn order.
// Returns empty slice if the session doesn't exist.
func (j *SqliteJournal) Turns(ctx context.Context, sessionID string) ([]TurnRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, turn_index, started_at, stream, retrieval_mode, retrieval_active, keyword_query,
			strategy, chunk_count, chars, tokens, elapsed_ms, error
		FROM turns WHERE session_id = ? ORDER BY turn_index ASC`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	records := []TurnRecord{}
	var ids []string
	for rows.Next() {
		var (
			id        string
			rec       TurnRecord
			startedAt int64
			elapsedMS int64
			tokens    sql.NullInt64
		)
		err := rows.Scan(&id, &rec.TurnIndex, &startedAt, &rec.Stream, &rec.RetrievalMode,
			&rec.RetrievalActive, &rec.KeywordQuery, &rec.Strategy, &rec.ChunkCount, &rec.Chars,
			&tokens, &elapsedMS, &rec.Error)
		if err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		rec.SessionID = sessionID
		rec.StartedAt = time.UnixMilli(startedAt)
		rec.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		if tokens.Valid {
			n := int(tokens.Int64)
			rec.Tokens = &n
		}
		records = append(records, rec)
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating turns: %w", err)
	}
	rows.Close()

	for i, id := range ids {
		trace, err := j.trace(ctx, id)
		if err != nil {
			return nil, err
		}
		records[i].Trace = trace
	}
	return records, nil
}

func (j *SqliteJournal) trace(ctx context.Context, turnID string) ([]string, error) {
	rows, err := j.db.QueryContext(ctx,
		"SELECT line FROM turn_trace WHERE turn_id = ? ORDER BY line_index ASC",
		turnID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trace: %w", err)
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("failed to scan trace line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trace: %w", err)
	}
	return lines, nil
}

// Sessions lists session IDs, most recently updated first.
func (j *SqliteJournal) Sessions(ctx context.Context) ([]string, error) {
	rows, err := j.db.QueryContext(ctx,
		"SELECT session_id FROM sessions ORDER BY updated_at DESC, created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []string{} // Start with empty slice, not nil
	for rows.Next() {
		var sessionID string
		if err := rows.Scan(&sessionID); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, sessionID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return sessions, nil
}
