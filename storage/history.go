// Package storage provides the conversation history of a chat session and
// an optional diagnostic journal of its turns.
//
// Information Hiding:
// - Slice ownership hidden: callers only ever see copies
// - Thread-safe access via RWMutex hidden behind methods
// - History lives only as long as the process

package storage

import (
	"sync"

	"github.com/richinex/ragchat/llm"
)

// History is an append-only, in-memory conversation.
type History struct {
	mu       sync.RWMutex
	messages []llm.ChatMessage
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{}
}

// Append adds turns at the end.
func (h *History) Append(msgs ...llm.ChatMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.messages = append(h.messages, msgs...)
}

// Messages returns a copy of every turn in order.
// Returns an empty slice (not nil) for a new history.
func (h *History) Messages() []llm.ChatMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()

	copied := make([]llm.ChatMessage, len(h.messages))
	copy(copied, h.messages)
	return copied
}

// Len returns the number of turns.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.messages)
}
