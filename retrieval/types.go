// Package retrieval decides, per user turn, whether and how to query the
// document search tool and turns its hits into prompt context.
//
// Information Hiding:
// - Query rewriting strategies and their fallback order
// - Trace wording
// - Context block layout
//
// Retrieval never fails a turn. Every problem ends up as a trace line on an
// inactive Result.
package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultTopK is the number of chunks requested when the caller leaves it
// unset.
const DefaultTopK = 4

// Mode selects how the user's question becomes a search query.
type Mode string

const (
	// ModeRaw searches with the question verbatim.
	ModeRaw Mode = "raw"
	// ModeHeuristic searches with locally extracted keywords.
	ModeHeuristic Mode = "heuristic"
	// ModeLLM asks a model to summarize the question into keywords.
	ModeLLM Mode = "llm"
)

// ParseMode parses a mode name (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeRaw, ModeHeuristic, ModeLLM:
		return m, nil
	default:
		return "", fmt.Errorf("unknown retrieval mode %q (want raw, heuristic or llm)", s)
	}
}

// Request describes one retrieval attempt.
type Request struct {
	Query   string
	Enabled bool
	Mode    Mode
	TopK    int
}

// Chunk is one search hit.
type Chunk struct {
	Source string  `json:"source"`
	Text   string  `json:"text"`
	Score  float64 `json:"score,omitempty"`
	URL    string  `json:"url,omitempty"`
}

// SearchResult is what the search tool returns.
type SearchResult struct {
	Query     string   `json:"query,omitempty"`
	TopK      int      `json:"top_k,omitempty"`
	ElapsedMS int64    `json:"elapsed_ms,omitempty"`
	Chunks    []Chunk  `json:"chunks"`
	Context   string   `json:"context,omitempty"`
	Trace     []string `json:"trace,omitempty"`
}

// Result is the outcome of Retrieve.
type Result struct {
	Active       bool
	Chunks       []Chunk
	Context      string
	Trace        []string
	KeywordQuery string
	Strategy     string
	Elapsed      time.Duration
}

// Tool is the document search collaborator.
type Tool interface {
	// Available reports whether the tool can currently be called.
	Available(ctx context.Context) bool
	// Search returns up to topK chunks relevant to query.
	Search(ctx context.Context, query string, topK int) (*SearchResult, error)
}

// TraceCarrier is implemented by errors that carry server-side trace lines.
type TraceCarrier interface {
	TraceLines() []string
}
