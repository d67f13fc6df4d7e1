package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Rrens/text-to-dashboard/internal/llm"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const systemPrompt = "You are a data analyst who writes SQL and chart specifications. Follow the requested output format exactly."

// Provider implements llm.Provider for OpenAI and OpenAI-compatible chat APIs
type Provider struct {
	name         string
	apiKey       string
	defaultModel string
	models       []string
	client       openai.Client
}

// Option customizes a Provider
type Option func(*settings)

type settings struct {
	name    string
	baseURL string
	models  []string
	timeout time.Duration
}

// WithBaseURL points the client at an OpenAI-compatible endpoint
func WithBaseURL(u string) Option {
	return func(s *settings) { s.baseURL = u }
}

// WithName overrides the provider identifier
func WithName(name string) Option {
	return func(s *settings) { s.name = name }
}

// WithModels overrides the advertised model list
func WithModels(models ...string) Option {
	return func(s *settings) { s.models = models }
}

// NewProvider creates a new OpenAI provider
func NewProvider(apiKey, defaultModel string, opts ...Option) *Provider {
	s := settings{
		name:    "openai",
		timeout: 120 * time.Second,
		models: []string{
			"gpt-4o",
			"gpt-4o-mini",
			"gpt-4-turbo",
			"gpt-3.5-turbo",
		},
	}
	for _, opt := range opts {
		opt(&s)
	}
	if defaultModel == "" {
		defaultModel = s.models[0]
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(s.timeout),
	}
	if s.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(strings.TrimRight(s.baseURL, "/")+"/"))
	}

	return &Provider{
		name:         s.name,
		apiKey:       apiKey,
		defaultModel: defaultModel,
		models:       s.models,
		client:       openai.NewClient(clientOpts...),
	}
}

// Name returns the provider identifier
func (p *Provider) Name() string {
	return p.name
}

// AvailableModels returns list of supported models
func (p *Provider) AvailableModels() []string {
	return p.models
}

// DefaultModel returns the default model
func (p *Provider) DefaultModel() string {
	return p.defaultModel
}

// IsConfigured checks if provider has valid credentials
func (p *Provider) IsConfigured() bool {
	return p.apiKey != ""
}

// Complete sends prompt as a single user message
func (p *Provider) Complete(ctx context.Context, prompt string, model string) (*llm.Completion, error) {
	if model == "" {
		model = p.defaultModel
	}

	start := time.Now()
	completion, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		return nil, fmt.Errorf("%s completion failed: %w", p.name, err)
	}

	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("no response from %s", p.name)
	}

	return &llm.Completion{
		Text:       completion.Choices[0].Message.Content,
		Model:      model,
		TokensUsed: int(completion.Usage.TotalTokens),
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}
