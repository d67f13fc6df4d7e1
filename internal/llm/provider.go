package llm

import "context"

// Completion is the raw text an LLM returned for one prompt
type Completion struct {
	Text       string
	Model      string
	TokensUsed int
	LatencyMs  int64
}

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider identifier
	Name() string

	// AvailableModels returns list of supported models
	AvailableModels() []string

	// DefaultModel returns the default model
	DefaultModel() string

	// IsConfigured checks if provider has valid credentials
	IsConfigured() bool

	// Complete sends prompt to model and returns the text completion.
	// An empty model selects DefaultModel.
	Complete(ctx context.Context, prompt string, model string) (*Completion, error)
}
