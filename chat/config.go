// Session configuration types.
//
// Information Hiding:
// - Default sampling values hidden
// - Per-turn toggles separated from per-session settings

package chat

import (
	"github.com/richinex/ragchat/retrieval"
)

// Config holds the settings that stay fixed for a session.
type Config struct {
	// Model is sent with every completion request.
	Model string

	Temperature float64
	TopP        float64

	// MaxTokens of 0 leaves the limit to the server.
	MaxTokens int
}

// DefaultConfig returns the stock sampling parameters.
func DefaultConfig() Config {
	return Config{
		Model:       "qwen3-0.6b",
		Temperature: 0.7,
		TopP:        0.9,
	}
}

// Options are the toggles of one turn.
type Options struct {
	Stream         bool
	EnableThinking bool

	// ShowReasoning is consulted by views, not by the session.
	ShowReasoning bool

	Retrieval bool
	Mode      retrieval.Mode
	TopK      int
}

// DefaultOptions streams with thinking on and retrieval off.
func DefaultOptions() Options {
	return Options{
		Stream:         true,
		EnableThinking: true,
		Mode:           retrieval.ModeRaw,
		TopK:           retrieval.DefaultTopK,
	}
}

func (o Options) retrievalRequest(query string) retrieval.Request {
	return retrieval.Request{
		Query:   query,
		Enabled: o.Retrieval,
		Mode:    o.Mode,
		TopK:    o.TopK,
	}
}
