// Package storage provides the turn journal abstraction.
//
// Information Hiding:
// - Journal backend hidden behind interface
// - Allows swapping between no-op and SQLite without API changes
//
// A journal records how each turn went (retrieval, throughput, errors). It
// never stores message content.

package storage

import (
	"context"
	"time"
)

// TurnRecord is the diagnostic summary of one turn.
type TurnRecord struct {
	SessionID string
	TurnIndex int
	StartedAt time.Time

	Stream          bool
	RetrievalMode   string
	RetrievalActive bool
	KeywordQuery    string
	Strategy        string
	ChunkCount      int
	Trace           []string

	Chars   int
	Tokens  *int
	Elapsed time.Duration

	// Error is the turn-level failure text, empty on success.
	Error string
}

// Journal stores turn records.
type Journal interface {
	// Record appends one turn.
	Record(ctx context.Context, rec TurnRecord) error

	// Close releases resources.
	Close() error
}

// JournalReader reads recorded turns back.
type JournalReader interface {
	// Sessions lists session ids, most recently updated first.
	Sessions(ctx context.Context) ([]string, error)

	// Turns returns one session's records in turn order.
	Turns(ctx context.Context, sessionID string) ([]TurnRecord, error)
}

// NopJournal discards every record.
type NopJournal struct{}

func (NopJournal) Record(context.Context, TurnRecord) error { return nil }

func (NopJournal) Close() error { return nil }

var (
	_ Journal       = NopJournal{}
	_ Journal       = (*SqliteJournal)(nil)
	_ JournalReader = (*SqliteJournal)(nil)
)
