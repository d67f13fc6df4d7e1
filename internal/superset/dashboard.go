package superset

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Rrens/text-to-dashboard/internal/domain"
	"github.com/Rrens/text-to-dashboard/internal/observability"
	"github.com/rs/zerolog/log"
)

const (
	datasetPrefix = "auto_dataset"
	slugLength    = 20
)

// LayoutNode is one entry of a dashboard position_json
type LayoutNode struct {
	Type     string         `json:"type"`
	ID       int            `json:"id"`
	Children []string       `json:"children"`
	Meta     LayoutMeta     `json:"meta"`
	Parents  []string       `json:"parents"`
	Position LayoutPosition `json:"position"`
}

type LayoutMeta struct {
	ChartID int `json:"chartId"`
}

type LayoutPosition struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Layout stacks charts vertically: chart i sits at row i, column 0
func Layout(chartIDs []int) map[string]LayoutNode {
	layout := make(map[string]LayoutNode, len(chartIDs))
	for i, id := range chartIDs {
		layout[strconv.Itoa(id)] = LayoutNode{
			Type:     "CHART",
			ID:       id,
			Children: []string{},
			Meta:     LayoutMeta{ChartID: id},
			Parents:  []string{},
			Position: LayoutPosition{Row: i, Col: 0},
		}
	}
	return layout
}

// TitleSlug lowercases title, turns spaces and hyphens into underscores and keeps
// the first 20 characters
func TitleSlug(title string) string {
	s := strings.ToLower(title)
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	runes := []rune(s)
	if len(runes) > slugLength {
		runes = runes[:slugLength]
	}
	return string(runes)
}

// DatasetName names the dataset backing chart index i of a dashboard
func DatasetName(index int, now time.Time, title string) string {
	return fmt.Sprintf("%s_%d_%d_%s", datasetPrefix, index, now.Unix(), TitleSlug(title))
}

// DashboardSlug qualifies the title slug with a timestamp
func DashboardSlug(title string, now time.Time) string {
	return fmt.Sprintf("%s_%d", TitleSlug(title), now.Unix())
}

type dashboardRequest struct {
	DashboardTitle string `json:"dashboard_title"`
	Slug           string `json:"slug"`
	PositionJSON   string `json:"position_json,omitempty"`
}

// Assembler turns chart specs into datasets, charts and one dashboard
type Assembler struct {
	session   *Session
	datasets  *Datasets
	charts    *Charts
	publicURL string
	now       func() time.Time
}

// AssemblerOption customizes an Assembler
type AssemblerOption func(*Assembler)

// WithClock overrides the clock used for dataset names and slugs
func WithClock(now func() time.Time) AssemblerOption {
	return func(a *Assembler) {
		a.now = now
	}
}

// WithPublicURL sets the browser-facing Superset URL used in dashboard links.
// Defaults to the session base URL.
func WithPublicURL(u string) AssemblerOption {
	return func(a *Assembler) {
		if u != "" {
			a.publicURL = strings.TrimRight(u, "/")
		}
	}
}

// NewAssembler creates an assembler whose materializers share session
func NewAssembler(session *Session, datasetSchema string, opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		session:   session,
		datasets:  NewDatasets(session, datasetSchema),
		charts:    NewCharts(session),
		publicURL: session.BaseURL(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Charts exposes the chart materializer sharing this assembler's session
func (a *Assembler) Charts() *Charts {
	return a.charts
}

// CreateDashboard creates one dataset and one chart per spec, in order, then a
// dashboard laying them out vertically. Any dataset or chart error aborts the run;
// objects already created are left in Superset. If the dashboard POST fails it is
// retried once with title and slug only.
func (a *Assembler) CreateDashboard(ctx context.Context, title string, specs []domain.ChartSpec, databaseID int) (*domain.Dashboard, error) {
	if err := a.session.EnsureAuthenticated(ctx); err != nil {
		return nil, err
	}

	created := make([]domain.CreatedChart, 0, len(specs))
	for i, spec := range specs {
		tableName := DatasetName(i, a.now(), title)

		log.Debug().Int("index", i).Str("table_name", tableName).Str("sql", spec.SQL).Msg("creating dataset")

		datasetID, err := a.datasets.Create(ctx, spec.SQL, tableName, databaseID)
		if err != nil {
			logLeak(created, -1)
			return nil, fmt.Errorf("chart %d: %w", i, err)
		}

		chartID, storedType, err := a.charts.Create(ctx, datasetID, spec)
		if err != nil {
			logLeak(created, datasetID)
			return nil, fmt.Errorf("chart %d: %w", i, err)
		}

		created = append(created, domain.CreatedChart{
			ID:            chartID,
			DatasetID:     datasetID,
			Title:         spec.Title,
			RequestedType: spec.Type,
			Type:          storedType,
		})
	}

	dashboard := &domain.Dashboard{
		Title:  title,
		Slug:   DashboardSlug(title, a.now()),
		Charts: created,
	}

	position, err := json.Marshal(Layout(dashboard.ChartIDs()))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal dashboard layout: %w", err)
	}

	id, err := a.postDashboard(ctx, dashboardRequest{
		DashboardTitle: title,
		Slug:           dashboard.Slug,
		PositionJSON:   string(position),
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}

		log.Warn().Err(err).Str("title", title).Msg("dashboard rejected, retrying without layout")
		observability.IncrementDashboardReducedPayload()

		id, err = a.postDashboard(ctx, dashboardRequest{
			DashboardTitle: title,
			Slug:           dashboard.Slug,
		})
		if err != nil {
			logLeak(created, -1)
			return nil, err
		}
		dashboard.LayoutDropped = true
	}

	dashboard.ID = id
	dashboard.URL = a.DashboardURL(id)

	log.Info().
		Int("dashboard_id", id).
		Str("title", title).
		Int("charts", len(created)).
		Bool("layout_dropped", dashboard.LayoutDropped).
		Msg("dashboard created")

	return dashboard, nil
}

func (a *Assembler) postDashboard(ctx context.Context, payload dashboardRequest) (int, error) {
	body, err := a.session.call(ctx, "create dashboard", http.MethodPost, dashboardPath, payload)
	if err != nil {
		return 0, fmt.Errorf("failed to create dashboard %q: %w", payload.DashboardTitle, err)
	}
	return idFromBody("create dashboard", body)
}

// DashboardURL is the browser link for a dashboard id
func (a *Assembler) DashboardURL(id int) string {
	return fmt.Sprintf("%s/superset/dashboard/%d/", a.publicURL, id)
}

// List returns up to pageSize dashboards
func (a *Assembler) List(ctx context.Context, page, pageSize int) ([]domain.DashboardSummary, error) {
	q := risonQuery(nil, page, pageSize)
	body, err := a.session.call(ctx, "list dashboards", http.MethodGet, dashboardPath+"?q="+q, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list dashboards: %w", err)
	}
	dashboards, err := decodeResult[[]domain.DashboardSummary]("list dashboards", body)
	if err != nil {
		return nil, err
	}
	for i := range dashboards {
		dashboards[i].URL = a.DashboardURL(dashboards[i].ID)
	}
	return dashboards, nil
}

// Get returns one dashboard
func (a *Assembler) Get(ctx context.Context, id int) (*domain.DashboardSummary, error) {
	body, err := a.session.call(ctx, "get dashboard", http.MethodGet, dashboardPath+strconv.Itoa(id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get dashboard %d: %w", id, err)
	}
	dashboard, err := decodeResult[domain.DashboardSummary]("get dashboard", body)
	if err != nil {
		return nil, err
	}
	if dashboard.ID == 0 {
		dashboard.ID = id
	}
	dashboard.URL = a.DashboardURL(dashboard.ID)
	return &dashboard, nil
}

// logLeak reports objects left behind by an aborted assembly. orphanDataset is a
// dataset created in the failing iteration, or -1.
func logLeak(created []domain.CreatedChart, orphanDataset int) {
	if len(created) == 0 && orphanDataset < 0 {
		return
	}
	datasets := make([]int, 0, len(created)+1)
	charts := make([]int, 0, len(created))
	for _, c := range created {
		datasets = append(datasets, c.DatasetID)
		charts = append(charts, c.ID)
	}
	if orphanDataset >= 0 {
		datasets = append(datasets, orphanDataset)
	}
	log.Warn().Ints("dataset_ids", datasets).Ints("chart_ids", charts).Msg("dashboard assembly aborted, created objects were not removed")
}
