// DeepSeek Provider implementation using go-openai library.
//
// DeepSeek exposes an OpenAI-compatible API under a different base URL, so
// the provider is an OpenAIProvider with its own name and endpoint.

package llm

const deepseekBaseURL = "https://api.deepseek.com/v1"

// NewDeepSeekProvider creates a new DeepSeek provider.
func NewDeepSeekProvider(apiKey, model string, maxTokens uint32, temperature float32) *OpenAIProvider {
	p := NewOpenAIProvider(apiKey, deepseekBaseURL, model, maxTokens, temperature)
	p.name = "deepseek"
	return p
}
