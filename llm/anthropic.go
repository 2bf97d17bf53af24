// Anthropic Provider implementation using official anthropic-sdk-go.
//
// Information Hiding:
// - API endpoint and authentication
// - Request shape of a one-shot keyword request (single retry, stop at a blank line)
// - System prompt lifted out of the message list

package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// keywordStop ends a keyword answer at the first blank line.
var keywordStop = []string{"\n\n"}

// AnthropicProvider implements the Provider interface for Anthropic Claude.
type AnthropicProvider struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewAnthropicProvider creates a new Anthropic provider. An empty baseURL
// uses the public API.
func NewAnthropicProvider(apiKey, baseURL, model string, maxTokens uint32, temperature float32) *AnthropicProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(1),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &AnthropicProvider{
		client:      anthropic.NewClient(opts...),
		model:       model,
		maxTokens:   int64(maxTokens),
		temperature: float64(temperature),
	}
}

// Name returns the provider name.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Model returns the current model.
func (p *AnthropicProvider) Model() string {
	return p.model
}

// Chat sends one Messages request and returns the joined text blocks.
func (p *AnthropicProvider) Chat(ctx context.Context, messages []ChatMessage) (LLMResponse, error) {
	turns, system := splitAnthropicSystem(messages)
	if len(turns) == 0 {
		return LLMResponse{}, fmt.Errorf("anthropic: no user message to send")
	}

	params := anthropic.MessageNewParams{
		Model:         anthropic.Model(p.model),
		MaxTokens:     p.maxTokens,
		Messages:      turns,
		Temperature:   anthropic.Float(p.temperature),
		StopSequences: keywordStop,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return LLMResponse{}, fmt.Errorf("anthropic messages request failed: %w", err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(tb.Text)
		}
	}

	in, out := message.Usage.InputTokens, message.Usage.OutputTokens
	var usage *TokenUsage
	if in > 0 || out > 0 {
		usage = &TokenUsage{
			PromptTokens:     uint32(in),
			CompletionTokens: uint32(out),
			TotalTokens:      uint32(in + out),
		}
	}

	return LLMResponse{Content: strings.TrimSpace(text.String()), Usage: usage}, nil
}

// splitAnthropicSystem moves system messages into the separate system
// field. Several system messages are joined with blank lines.
func splitAnthropicSystem(messages []ChatMessage) ([]anthropic.MessageParam, string) {
	var turns []anthropic.MessageParam
	var system []string

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, msg.Content)
		case RoleUser:
			turns = append(turns, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case RoleAssistant:
			turns = append(turns, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	return turns, strings.Join(system, "\n\n")
}

var _ Provider = (*AnthropicProvider)(nil)
