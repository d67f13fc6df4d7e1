package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Rrens/text-to-dashboard/internal/domain"
	"github.com/Rrens/text-to-dashboard/internal/llm"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// SQLCache stores generated SQL keyed by provider, model and prompt
type SQLCache interface {
	Get(ctx context.Context, provider, model, prompt string) (*domain.SQLResponse, error)
	Set(ctx context.Context, provider, model, prompt string, resp *domain.SQLResponse) error
}

// QueryService handles text-to-SQL generation. Generated SQL is returned, never executed.
type QueryService struct {
	llmRouter     *llm.Router
	schemaContext string
	dialect       string
	cache         SQLCache
}

// NewQueryService creates a new query service. cache may be nil.
func NewQueryService(llmRouter *llm.Router, schemaContext, dialect string, cache SQLCache) *QueryService {
	return &QueryService{
		llmRouter:     llmRouter,
		schemaContext: schemaContext,
		dialect:       dialect,
		cache:         cache,
	}
}

// GenerateSQL translates a natural-language question into SQL
func (s *QueryService) GenerateSQL(ctx context.Context, req domain.SQLRequest) (*domain.SQLResponse, error) {
	requestID := uuid.New().String()
	startTime := time.Now()

	provider, err := s.llmRouter.GetProvider(req.LLMProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to get LLM provider: %w", err)
	}

	modelName := req.LLMModel
	if modelName == "" {
		modelName = provider.DefaultModel()
	}

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, provider.Name(), modelName, req.Prompt)
		if err != nil {
			log.Warn().Err(err).Msg("sql cache read failed")
		} else if cached != nil {
			cached.RequestID = requestID
			cached.Prompt = req.Prompt
			log.Debug().Str("request_id", requestID).Msg("sql served from cache")
			return cached, nil
		}
	}

	prompt := llm.BuildSQLPrompt(llm.SQLPrompt{
		Question:      req.Prompt,
		SchemaContext: s.schemaContext,
		Dialect:       s.dialect,
	})

	completion, err := provider.Complete(ctx, prompt, modelName)
	if err != nil {
		return nil, fmt.Errorf("failed to generate SQL: %w", err)
	}

	sql := llm.ExtractSQL(completion.Text)
	if sql == "" {
		return nil, fmt.Errorf("%w: empty SQL in completion", llm.ErrParse)
	}

	log.Debug().
		Str("request_id", requestID).
		Str("sql", sql).
		Int("tokens_used", completion.TokensUsed).
		Msg("LLM response received")

	response := &domain.SQLResponse{
		RequestID: requestID,
		Prompt:    req.Prompt,
		SQL:       sql,
		Metadata: &domain.LLMMetadata{
			LLMProvider:     provider.Name(),
			LLMModel:        modelName,
			LLMLatencyMs:    completion.LatencyMs,
			TokensUsed:      completion.TokensUsed,
			ExecutionTimeMs: time.Since(startTime).Milliseconds(),
		},
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, provider.Name(), modelName, req.Prompt, response); err != nil {
			log.Warn().Err(err).Msg("sql cache write failed")
		}
	}

	return response, nil
}
