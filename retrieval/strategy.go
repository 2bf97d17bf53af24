package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/richinex/ragchat/keywords"
)

// Outcome is the result of one rewrite attempt. Reason explains a failure.
type Outcome struct {
	OK     bool
	Value  string
	Reason string
}

func ok(v string) Outcome { return Outcome{OK: true, Value: v} }

func fail(format string, args ...any) Outcome {
	return Outcome{Reason: fmt.Sprintf(format, args...)}
}

// Strategy rewrites a question into a search query.
type Strategy interface {
	Name() string
	Rewrite(ctx context.Context, query string) Outcome
}

// Verbatim passes the question through unchanged. It never fails and ends
// every chain.
type Verbatim struct{}

func (Verbatim) Name() string { return "verbatim" }

func (Verbatim) Rewrite(_ context.Context, query string) Outcome {
	return ok(query)
}

// Heuristic extracts keywords locally.
type Heuristic struct {
	MaxTokens int
}

func (Heuristic) Name() string { return "keywords" }

func (h Heuristic) Rewrite(_ context.Context, query string) Outcome {
	kw := keywords.Extract(query, h.MaxTokens)
	if kw == "" {
		return fail("keyword extraction produced no keywords")
	}
	return ok(kw)
}

// Summarizing asks a model for keywords.
type Summarizing struct {
	Summarizer Summarizer
}

func (Summarizing) Name() string { return "llm" }

func (s Summarizing) Rewrite(ctx context.Context, query string) Outcome {
	if s.Summarizer == nil {
		return fail("no keyword model configured")
	}
	kw, err := s.Summarizer.Summarize(ctx, query)
	if err != nil {
		return fail("keyword model failed: %v", err)
	}
	if strings.TrimSpace(kw) == "" {
		return fail("keyword model returned nothing")
	}
	return ok(kw)
}

// Chain returns the ordered strategies for mode. Unknown modes behave like
// ModeRaw.
func Chain(mode Mode, s Summarizer) []Strategy {
	switch mode {
	case ModeHeuristic:
		return []Strategy{Heuristic{MaxTokens: keywords.DefaultMaxTokens}, Verbatim{}}
	case ModeLLM:
		return []Strategy{Summarizing{Summarizer: s}, Verbatim{}}
	default:
		return []Strategy{Verbatim{}}
	}
}
