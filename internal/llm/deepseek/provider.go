package deepseek

import (
	"github.com/Rrens/text-to-dashboard/internal/llm/openai"
)

// DefaultBaseURL is the DeepSeek OpenAI-compatible endpoint
const DefaultBaseURL = "https://api.deepseek.com/v1"

// NewProvider creates a DeepSeek provider. DeepSeek speaks the OpenAI chat protocol,
// so requests go through the OpenAI client pointed at baseURL.
func NewProvider(apiKey, defaultModel, baseURL string) *openai.Provider {
	if defaultModel == "" {
		defaultModel = "deepseek-chat"
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return openai.NewProvider(apiKey, defaultModel,
		openai.WithName("deepseek"),
		openai.WithBaseURL(baseURL),
		openai.WithModels("deepseek-chat", "deepseek-coder", "deepseek-reasoner"),
	)
}
