package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/richinex/ragchat/completion"
	"github.com/richinex/ragchat/llm"
	"github.com/richinex/ragchat/render"
)

// SummaryPrompt is the system instruction for keyword summarization.
const SummaryPrompt = "Extract concise search keywords from the user question. " +
	"Output only the keywords separated by spaces."

const (
	summaryMaxTokens = 32
	summaryTTL       = 10 * time.Minute
)

// Summarizer turns a question into a space-separated keyword string.
type Summarizer interface {
	Summarize(ctx context.Context, query string) (string, error)
}

func summaryMessages(query string) []llm.ChatMessage {
	return []llm.ChatMessage{
		llm.SystemMessage(SummaryPrompt),
		llm.UserMessage(query),
	}
}

// cleanSummary drops reasoning spans and collapses whitespace.
func cleanSummary(raw string) string {
	return strings.Join(strings.Fields(render.Answer(raw)), " ")
}

// CompletionSummarizer uses the chat server itself, non-streaming and with
// thinking disabled.
type CompletionSummarizer struct {
	client *completion.Client
	model  string
}

// NewCompletionSummarizer creates a summarizer backed by the chat server.
func NewCompletionSummarizer(client *completion.Client, model string) *CompletionSummarizer {
	return &CompletionSummarizer{client: client, model: model}
}

func (s *CompletionSummarizer) Summarize(ctx context.Context, query string) (string, error) {
	resp, err := s.client.Complete(ctx, completion.Request{
		Model:          s.model,
		Messages:       summaryMessages(query),
		EnableThinking: false,
		RAGMode:        completion.RAGModeClient,
		Temperature:    0,
		TopP:           1,
		MaxTokens:      summaryMaxTokens,
	})
	if err != nil {
		return "", err
	}
	return cleanSummary(resp.Content()), nil
}

// ProviderSummarizer uses a hosted model through an llm.Provider.
type ProviderSummarizer struct {
	provider llm.Provider
}

// NewProviderSummarizer creates a summarizer backed by provider.
func NewProviderSummarizer(provider llm.Provider) *ProviderSummarizer {
	return &ProviderSummarizer{provider: provider}
}

func (s *ProviderSummarizer) Summarize(ctx context.Context, query string) (string, error) {
	resp, err := s.provider.Chat(ctx, summaryMessages(query))
	if err != nil {
		return "", fmt.Errorf("%s: %w", s.provider.Name(), err)
	}
	return cleanSummary(resp.Content), nil
}

// CachedSummarizer remembers successful summaries per query.
type CachedSummarizer struct {
	next  Summarizer
	cache *gocache.Cache
}

// NewCachedSummarizer wraps next with a ten-minute cache.
func NewCachedSummarizer(next Summarizer) *CachedSummarizer {
	return &CachedSummarizer{
		next:  next,
		cache: gocache.New(summaryTTL, 2*summaryTTL),
	}
}

func (s *CachedSummarizer) Summarize(ctx context.Context, query string) (string, error) {
	key := strings.TrimSpace(query)
	if v, found := s.cache.Get(key); found {
		return v.(string), nil
	}
	kw, err := s.next.Summarize(ctx, query)
	if err != nil {
		return "", err
	}
	if kw != "" {
		s.cache.SetDefault(key, kw)
	}
	return kw, nil
}
