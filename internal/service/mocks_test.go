package service

import (
	"context"

	"github.com/Rrens/text-to-dashboard/internal/domain"
	"github.com/Rrens/text-to-dashboard/internal/llm"
	"github.com/stretchr/testify/mock"
)

// MockLLMProvider mocks the llm.Provider interface
type MockLLMProvider struct {
	mock.Mock
}

func (m *MockLLMProvider) Name() string {
	return "mock"
}

func (m *MockLLMProvider) AvailableModels() []string {
	return []string{"mock-model"}
}

func (m *MockLLMProvider) DefaultModel() string {
	return "mock-model"
}

func (m *MockLLMProvider) IsConfigured() bool {
	return true
}

func (m *MockLLMProvider) Complete(ctx context.Context, prompt string, model string) (*llm.Completion, error) {
	args := m.Called(ctx, prompt, model)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.Completion), args.Error(1)
}

// MockSQLCache mocks the SQLCache interface
type MockSQLCache struct {
	mock.Mock
}

func (m *MockSQLCache) Get(ctx context.Context, provider, model, prompt string) (*domain.SQLResponse, error) {
	args := m.Called(ctx, provider, model, prompt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SQLResponse), args.Error(1)
}

func (m *MockSQLCache) Set(ctx context.Context, provider, model, prompt string, resp *domain.SQLResponse) error {
	args := m.Called(ctx, provider, model, prompt, resp)
	return args.Error(0)
}

func newRouter(provider llm.Provider) *llm.Router {
	router := llm.NewRouter(provider.Name())
	router.RegisterProvider(provider)
	return router
}
