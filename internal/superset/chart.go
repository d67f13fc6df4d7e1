package superset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/Rrens/text-to-dashboard/internal/domain"
	"github.com/Rrens/text-to-dashboard/internal/observability"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

// DefaultRowLimit is the row_limit written into every shaped chart
const DefaultRowLimit = 1000

type tableParams struct {
	AllColumns  domain.FieldList `json:"all_columns"`
	OrderByCols []string         `json:"order_by_cols"`
	RowLimit    int              `json:"row_limit"`
}

type aggregateParams struct {
	Metrics      domain.FieldList `json:"metrics"`
	GroupBy      domain.FieldList `json:"groupby"`
	AdhocFilters []any            `json:"adhoc_filters"`
	RowLimit     int              `json:"row_limit"`
}

// ChartParams shapes the params payload for a chart of type typ. Missing spec fields
// become empty lists. Unknown types get an empty object.
func ChartParams(typ domain.ChartType, spec domain.ChartSpec) any {
	switch typ.Kind() {
	case domain.KindTable:
		return tableParams{
			AllColumns:  orEmpty(spec.TableColumns()),
			OrderByCols: []string{},
			RowLimit:    DefaultRowLimit,
		}
	case domain.KindAggregate:
		return aggregateParams{
			Metrics:      orEmpty(spec.Metrics),
			GroupBy:      orEmpty(spec.GroupBy),
			AdhocFilters: []any{},
			RowLimit:     DefaultRowLimit,
		}
	default:
		return map[string]any{}
	}
}

func orEmpty(values domain.FieldList) domain.FieldList {
	if values == nil {
		return domain.FieldList{}
	}
	return values
}

type chartRequest struct {
	DatasourceID   int    `json:"datasource_id"`
	DatasourceType string `json:"datasource_type"`
	VizType        string `json:"viz_type"`
	SliceName      string `json:"slice_name"`
	Params         string `json:"params"`
}

// Charts creates and reads charts
type Charts struct {
	session *Session
}

// NewCharts creates a chart materializer bound to session
func NewCharts(session *Session) *Charts {
	return &Charts{session: session}
}

// Create registers a chart for datasetID shaped from spec. If the requested type is
// rejected and is not already "table", it is retried exactly once as "table" with the
// same dataset, title and spec. It returns the chart id and the type that was stored.
func (c *Charts) Create(ctx context.Context, datasetID int, spec domain.ChartSpec) (int, domain.ChartType, error) {
	requested := spec.Type

	id, err := c.create(ctx, datasetID, requested, spec)
	if err == nil {
		return id, requested, nil
	}
	if requested == domain.ChartTable || ctx.Err() != nil {
		return 0, "", err
	}

	log.Warn().
		Err(err).
		Str("title", spec.Title).
		Str("requested_type", string(requested)).
		Int("dataset_id", datasetID).
		Msg("chart rejected, retrying as table")
	observability.IncrementChartFallback(requested)

	id, fallbackErr := c.create(ctx, datasetID, domain.ChartTable, spec)
	if fallbackErr != nil {
		return 0, "", fmt.Errorf("table fallback after %s chart failure (%v): %w", requested, err, fallbackErr)
	}
	return id, domain.ChartTable, nil
}

func (c *Charts) create(ctx context.Context, datasetID int, typ domain.ChartType, spec domain.ChartSpec) (int, error) {
	params, err := json.Marshal(ChartParams(typ, spec))
	if err != nil {
		return 0, fmt.Errorf("failed to marshal chart params: %w", err)
	}

	payload := chartRequest{
		DatasourceID:   datasetID,
		DatasourceType: "table",
		VizType:        string(typ),
		SliceName:      spec.Title,
		Params:         string(params),
	}

	body, err := c.session.call(ctx, "create chart", http.MethodPost, chartPath, payload)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s chart %q: %w", typ, spec.Title, err)
	}

	id, err := idFromBody("create chart", body)
	if err != nil {
		return 0, err
	}

	log.Info().Str("title", spec.Title).Str("type", string(typ)).Int("chart_id", id).Msg("chart created")
	return id, nil
}

// List returns one page of charts. Pages are zero-based.
func (c *Charts) List(ctx context.Context, page, pageSize int) ([]domain.Chart, error) {
	q := risonQuery(nil, page, pageSize)
	body, err := c.session.call(ctx, "list charts", http.MethodGet, chartPath+"?q="+q, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list charts: %w", err)
	}
	return decodeResult[[]domain.Chart]("list charts", body)
}

// Search returns charts whose name contains term
func (c *Charts) Search(ctx context.Context, term string, page, pageSize int) ([]domain.Chart, error) {
	filters := []risonFilter{{Col: "slice_name", Opr: "ct", Value: term}}
	q := risonQuery(filters, page, pageSize)
	body, err := c.session.call(ctx, "search charts", http.MethodGet, chartPath+"?q="+q, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to search charts: %w", err)
	}
	return decodeResult[[]domain.Chart]("search charts", body)
}

// Get returns a chart by id
func (c *Charts) Get(ctx context.Context, id int) (*domain.Chart, error) {
	body, err := c.session.call(ctx, "get chart", http.MethodGet, chartPath+strconv.Itoa(id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get chart %d: %w", id, err)
	}
	chart, err := decodeResult[domain.Chart]("get chart", body)
	if err != nil {
		return nil, err
	}
	if chart.ID == 0 {
		chart.ID = id
	}
	return &chart, nil
}

// Data queries chart id for its data. A nil formData uses the params stored on the
// chart. The Superset response is returned unchanged.
func (c *Charts) Data(ctx context.Context, id int, formData json.RawMessage) (json.RawMessage, error) {
	if len(formData) == 0 || string(formData) == "null" {
		body, err := c.session.call(ctx, "get chart", http.MethodGet, chartPath+strconv.Itoa(id), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to get chart %d: %w", id, err)
		}
		params := gjson.GetBytes(body, "result.params").String()
		if params == "" {
			params = "{}"
		}
		if !gjson.Valid(params) {
			return nil, fmt.Errorf("chart %d has invalid stored params", id)
		}
		formData = json.RawMessage(params)
	}

	body, err := c.session.call(ctx, "chart data", http.MethodPost, chartPath+strconv.Itoa(id)+"/data", formData)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch data for chart %d: %w", id, err)
	}
	return json.RawMessage(body), nil
}

// ByDashboard returns the charts referenced by CHART nodes in a dashboard's layout.
// Charts that no longer exist are skipped.
func (c *Charts) ByDashboard(ctx context.Context, dashboardID int) ([]domain.Chart, error) {
	body, err := c.session.call(ctx, "get dashboard", http.MethodGet, dashboardPath+strconv.Itoa(dashboardID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get dashboard %d: %w", dashboardID, err)
	}

	ids := ChartIDsFromPosition(gjson.GetBytes(body, "result.position_json").String())

	charts := make([]domain.Chart, 0, len(ids))
	for _, id := range ids {
		chart, err := c.Get(ctx, id)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
				log.Warn().Int("chart_id", id).Int("dashboard_id", dashboardID).Msg("chart referenced by dashboard not found")
				continue
			}
			return nil, err
		}
		charts = append(charts, *chart)
	}
	return charts, nil
}

// ChartIDsFromPosition collects chart ids of CHART nodes in a position_json document,
// deduplicated and sorted ascending
func ChartIDsFromPosition(positionJSON string) []int {
	if positionJSON == "" || !gjson.Valid(positionJSON) {
		return nil
	}

	seen := make(map[int]struct{})
	gjson.Parse(positionJSON).ForEach(func(_, node gjson.Result) bool {
		if node.Get("type").String() != "CHART" {
			return true
		}
		if id := int(node.Get("meta.chartId").Int()); id != 0 {
			seen[id] = struct{}{}
		}
		return true
	})

	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func decodeResult[T any](op string, body []byte) (T, error) {
	var out T
	result := gjson.GetBytes(body, "result")
	if !result.Exists() {
		return out, fmt.Errorf("superset %s response has no result", op)
	}
	if err := json.Unmarshal([]byte(result.Raw), &out); err != nil {
		return out, fmt.Errorf("failed to decode superset %s response: %w", op, err)
	}
	return out, nil
}
