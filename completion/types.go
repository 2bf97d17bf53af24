// Package completion speaks the chat completion endpoint of the server.
//
// Information Hiding:
// - Endpoint path and wire field names
// - Streaming framing (delegated to the stream package)
// - Mapping of non-2xx and network failures to typed errors
package completion

import (
	"encoding/json"

	"github.com/richinex/ragchat/llm"
)

// RAGModeClient tells the server that retrieval already happened on the
// client and the system prompt carries the context.
const RAGModeClient = "client"

// Request is the body of a completion call.
type Request struct {
	Model          string            `json:"model"`
	Messages       []llm.ChatMessage `json:"messages"`
	Stream         bool              `json:"stream"`
	EnableThinking bool              `json:"enable_thinking"`
	RAGMode        string            `json:"rag_mode"`
	Temperature    float64           `json:"temperature"`
	TopP           float64           `json:"top_p"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
}

// Usage is the token accounting reported by the server.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Memory is the server's process memory report.
type Memory struct {
	RSSBytes     int64 `json:"rss_bytes"`
	HWMBytes     int64 `json:"hwm_bytes"`
	KVCacheBytes int64 `json:"kv_cache_bytes"`
}

// Response is a non-streaming completion result.
type Response struct {
	ID      string `json:"id,omitempty"`
	Model   string `json:"model,omitempty"`
	Choices []struct {
		Message      llm.ChatMessage `json:"message"`
		FinishReason string          `json:"finish_reason,omitempty"`
	} `json:"choices"`
	Usage *Usage  `json:"usage,omitempty"`
	Mem   *Memory `json:"mem,omitempty"`

	// RAG is the server-side retrieval payload. The client retrieves on its
	// own and does not interpret it.
	RAG json.RawMessage `json:"rag,omitempty"`
}

// Content returns the first choice's message text.
func (r *Response) Content() string {
	if len(r.Choices) > 0 {
		return r.Choices[0].Message.Content
	}
	return ""
}

// Chunk is one streamed frame.
type Chunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason,omitempty"`
	} `json:"choices"`
	Usage *Usage          `json:"usage,omitempty"`
	Mem   *Memory         `json:"mem,omitempty"`
	RAG   json.RawMessage `json:"rag,omitempty"`
}

// Delta returns the incremental text carried by the chunk.
func (c *Chunk) Delta() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].Delta.Content
	}
	return ""
}

// CompletionTokens returns the generated token count when the chunk reports
// usage.
func (c *Chunk) CompletionTokens() (int, bool) {
	if c.Usage == nil {
		return 0, false
	}
	return c.Usage.CompletionTokens, true
}
