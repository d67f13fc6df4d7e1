package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Rrens/text-to-dashboard/internal/config"
	"github.com/Rrens/text-to-dashboard/internal/domain"
	"github.com/Rrens/text-to-dashboard/internal/llm"
	"github.com/Rrens/text-to-dashboard/internal/observability"
	"github.com/Rrens/text-to-dashboard/internal/superset"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const defaultTitlePrefix = "Dashboard: "

// DashboardService turns natural-language prompts into Superset dashboards and
// reads existing dashboards and charts back
type DashboardService struct {
	llmRouter     *llm.Router
	cfg           config.SupersetConfig
	schemaContext string
	sessionOpts   []superset.Option
	assemblerOpts []superset.AssemblerOption
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(llmRouter *llm.Router, cfg config.SupersetConfig, schemaContext string) *DashboardService {
	return &DashboardService{
		llmRouter:     llmRouter,
		cfg:           cfg,
		schemaContext: schemaContext,
	}
}

// WithSessionOptions applies opts to every Superset session the service opens
func (s *DashboardService) WithSessionOptions(opts ...superset.Option) *DashboardService {
	s.sessionOpts = append(s.sessionOpts, opts...)
	return s
}

// WithAssemblerOptions applies opts to every assembler the service creates
func (s *DashboardService) WithAssemblerOptions(opts ...superset.AssemblerOption) *DashboardService {
	s.assemblerOpts = append(s.assemblerOpts, opts...)
	return s
}

// newAssembler opens a fresh, unauthenticated session. Sessions are never shared
// between requests.
func (s *DashboardService) newAssembler() *superset.Assembler {
	session := superset.NewSession(superset.SessionConfig{
		BaseURL:  s.cfg.BaseURL,
		Username: s.cfg.Username,
		Password: s.cfg.Password,
		Timeout:  s.cfg.Timeout,
	}, s.sessionOpts...)

	opts := append([]superset.AssemblerOption{superset.WithPublicURL(s.cfg.PublicURL)}, s.assemblerOpts...)
	return superset.NewAssembler(session, s.cfg.Schema, opts...)
}

// DefaultTitle derives a dashboard title from the first 50 characters of prompt
func DefaultTitle(prompt string) string {
	runes := []rune(prompt)
	if len(runes) > 50 {
		runes = runes[:50]
	}
	return defaultTitlePrefix + string(runes)
}

// GenerateDashboard asks the LLM for chart specs and materializes them as a dashboard.
// On failure no dashboard id is returned.
func (s *DashboardService) GenerateDashboard(ctx context.Context, req domain.DashboardRequest) (result *domain.DashboardResult, err error) {
	requestID := uuid.New().String()
	startTime := time.Now()

	logger := log.With().Str("request_id", requestID).Logger()

	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "failure"
			logger.Error().Err(err).Msg("dashboard generation failed")
		}
		observability.ObserveDashboard(outcome)
		observability.ObserveStage("total", time.Since(startTime))
	}()

	provider, err := s.llmRouter.GetProvider(req.LLMProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to get LLM provider: %w", err)
	}

	modelName := req.LLMModel
	if modelName == "" {
		modelName = provider.DefaultModel()
	}

	logger.Info().
		Str("provider", provider.Name()).
		Str("model", modelName).
		Str("prompt", req.Prompt).
		Msg("generating dashboard")

	llmStart := time.Now()
	specs, err := llm.GenerateChartSpecs(ctx, provider, modelName, req.Prompt, s.schemaContext)
	observability.ObserveStage("llm", time.Since(llmStart))
	if err != nil {
		return nil, err
	}

	title := req.Title
	if title == "" {
		title = DefaultTitle(req.Prompt)
	}

	databaseID := req.DatabaseID
	if databaseID == 0 {
		databaseID = s.cfg.DatabaseID
	}

	supersetStart := time.Now()
	dashboard, err := s.newAssembler().CreateDashboard(ctx, title, specs.Specs, databaseID)
	observability.ObserveStage("superset", time.Since(supersetStart))
	if err != nil {
		return nil, fmt.Errorf("failed to create dashboard: %w", err)
	}

	return &domain.DashboardResult{
		RequestID:     requestID,
		DashboardID:   dashboard.ID,
		DashboardURL:  dashboard.URL,
		Title:         dashboard.Title,
		Charts:        dashboard.Charts,
		LayoutDropped: dashboard.LayoutDropped,
		Metadata: &domain.LLMMetadata{
			LLMProvider:     provider.Name(),
			LLMModel:        modelName,
			LLMLatencyMs:    specs.Completion.LatencyMs,
			TokensUsed:      specs.Completion.TokensUsed,
			ExecutionTimeMs: time.Since(startTime).Milliseconds(),
		},
	}, nil
}

// ListDashboards returns one page of dashboards
func (s *DashboardService) ListDashboards(ctx context.Context, page, pageSize int) ([]domain.DashboardSummary, error) {
	return s.newAssembler().List(ctx, page, pageSize)
}

// GetDashboard returns a dashboard by id
func (s *DashboardService) GetDashboard(ctx context.Context, id int) (*domain.DashboardSummary, error) {
	return s.newAssembler().Get(ctx, id)
}

// DashboardCharts returns the charts placed on a dashboard
func (s *DashboardService) DashboardCharts(ctx context.Context, dashboardID int) ([]domain.Chart, error) {
	return s.newAssembler().Charts().ByDashboard(ctx, dashboardID)
}

// ListCharts returns one page of charts, filtered by name when term is set
func (s *DashboardService) ListCharts(ctx context.Context, term string, page, pageSize int) ([]domain.Chart, error) {
	charts := s.newAssembler().Charts()
	if term != "" {
		return charts.Search(ctx, term, page, pageSize)
	}
	return charts.List(ctx, page, pageSize)
}

// GetChart returns a chart by id
func (s *DashboardService) GetChart(ctx context.Context, id int) (*domain.Chart, error) {
	return s.newAssembler().Charts().Get(ctx, id)
}

// ChartData runs a chart's query; formData overrides the params stored on the chart
func (s *DashboardService) ChartData(ctx context.Context, id int, formData json.RawMessage) (json.RawMessage, error) {
	return s.newAssembler().Charts().Data(ctx, id, formData)
}
