package superset

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/Rrens/text-to-dashboard/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(ts int64) func() time.Time {
	return func() time.Time { return time.Unix(ts, 0) }
}

func TestTitleSlug(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Sales Overview", "sales_overview"},
		{"Year-over-Year Sales by Region", "year_over_year_sales"},
		{"a  b", "a__b"},
		{"", ""},
		{"Résumé Ümlaut Überblick Extra", "résumé_ümlaut_überbl"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TitleSlug(tt.title), tt.title)
	}
}

func TestNaming(t *testing.T) {
	now := time.Unix(1700000000, 0)
	assert.Equal(t, "auto_dataset_2_1700000000_sales_overview", DatasetName(2, now, "Sales Overview"))
	assert.Equal(t, "sales_overview_1700000000", DashboardSlug("Sales Overview", now))
}

func TestLayout(t *testing.T) {
	layout := Layout([]int{11, 12, 13})
	require.Len(t, layout, 3)

	for i, id := range []string{"11", "12", "13"} {
		node, ok := layout[id]
		require.True(t, ok)
		assert.Equal(t, "CHART", node.Type)
		assert.Equal(t, i, node.Position.Row)
		assert.Equal(t, 0, node.Position.Col)
		assert.Equal(t, node.ID, node.Meta.ChartID)
	}

	data, err := json.Marshal(Layout([]int{7}))
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"7":{"type":"CHART","id":7,"children":[],"meta":{"chartId":7},"parents":[],"position":{"row":0,"col":0}}}`,
		string(data),
	)

	data, err = json.Marshal(Layout(nil))
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestAssembler_CreateDashboard(t *testing.T) {
	f := newFakeSuperset(t)
	a := NewAssembler(f.session(), "", WithClock(fixedClock(1700000000)), WithPublicURL("https://bi.example.com/"))

	specs := []domain.ChartSpec{
		{Type: domain.ChartBar, Title: "Orders by status", SQL: "SELECT state, COUNT(*) AS count FROM sale_order GROUP BY state", Metrics: domain.FieldList{"count"}, GroupBy: domain.FieldList{"state"}},
		{Type: domain.ChartTable, Title: "Recent orders", SQL: "SELECT name, amount_total FROM sale_order", AllColumns: domain.FieldList{"name", "amount_total"}},
	}

	d, err := a.CreateDashboard(context.Background(), "Dashboard: sales orders by status", specs, 3)
	require.NoError(t, err)

	datasets := f.calls(http.MethodPost, datasetPath)
	require.Len(t, datasets, 2)
	for i, call := range datasets {
		assert.EqualValues(t, 3, call.Body["database"])
		assert.Equal(t, specs[i].SQL, call.Body["sql"])
		assert.Equal(t, "public", call.Body["schema"])
		assert.Equal(t, "{}", call.Body["template_params"])
		assert.True(t, strings.HasPrefix(call.Body["table_name"].(string), "auto_dataset_"))
	}
	assert.Equal(t, "auto_dataset_0_1700000000_dashboard:_sales_ord", datasets[0].Body["table_name"])
	assert.Equal(t, "auto_dataset_1_1700000000_dashboard:_sales_ord", datasets[1].Body["table_name"])

	charts := f.calls(http.MethodPost, chartPath)
	require.Len(t, charts, 2)
	assert.Equal(t, "bar", charts[0].Body["viz_type"])
	assert.Equal(t, "table", charts[1].Body["viz_type"])

	require.Len(t, d.Charts, 2)
	assert.Equal(t, "Orders by status", d.Charts[0].Title)
	assert.Equal(t, domain.ChartBar, d.Charts[0].Type)
	assert.Equal(t, "Recent orders", d.Charts[1].Title)
	assert.False(t, d.LayoutDropped)
	assert.Equal(t, "dashboard:_sales_ord_1700000000", d.Slug)
	assert.Equal(t, "https://bi.example.com/superset/dashboard/"+jsonInt(d.ID)+"/", d.URL)

	dashboards := f.calls(http.MethodPost, dashboardPath)
	require.Len(t, dashboards, 1)
	assert.Equal(t, "Dashboard: sales orders by status", dashboards[0].Body["dashboard_title"])
	assert.Equal(t, d.Slug, dashboards[0].Body["slug"])

	var layout map[string]LayoutNode
	require.NoError(t, json.Unmarshal([]byte(dashboards[0].Body["position_json"].(string)), &layout))
	require.Len(t, layout, 2)
	for row, id := range d.ChartIDs() {
		assert.Equal(t, row, layout[jsonInt(id)].Position.Row)
	}
}

func TestAssembler_ReducedPayloadRetry(t *testing.T) {
	f := newFakeSuperset(t)
	f.rejectDashboard = func(body map[string]any) int {
		if _, ok := body["position_json"]; ok {
			return http.StatusBadRequest
		}
		return 0
	}
	a := NewAssembler(f.session(), "", WithClock(fixedClock(1700000000)))

	d, err := a.CreateDashboard(context.Background(), "Ops", []domain.ChartSpec{{Type: domain.ChartTable, Title: "Rows", SQL: "SELECT 1"}}, 3)
	require.NoError(t, err)
	assert.True(t, d.LayoutDropped)
	assert.Equal(t, f.server.URL+"/superset/dashboard/"+jsonInt(d.ID)+"/", d.URL)

	calls := f.calls(http.MethodPost, dashboardPath)
	require.Len(t, calls, 2)
	assert.Contains(t, calls[0].Body, "position_json")
	assert.NotContains(t, calls[1].Body, "position_json")
	assert.Equal(t, calls[0].Body["slug"], calls[1].Body["slug"])
	assert.Equal(t, "Ops", calls[1].Body["dashboard_title"])
}

func TestAssembler_DashboardFailsTwice(t *testing.T) {
	f := newFakeSuperset(t)
	f.rejectDashboard = func(map[string]any) int { return http.StatusInternalServerError }
	a := NewAssembler(f.session(), "")

	d, err := a.CreateDashboard(context.Background(), "Ops", []domain.ChartSpec{{Type: domain.ChartTable, Title: "Rows", SQL: "SELECT 1"}}, 3)
	require.Error(t, err)
	assert.Nil(t, d)
	assert.Len(t, f.calls(http.MethodPost, dashboardPath), 2)
}

func TestAssembler_DatasetFailureAbortsWithoutCleanup(t *testing.T) {
	f := newFakeSuperset(t)
	f.rejectDataset = func(body map[string]any) int {
		if strings.HasPrefix(body["table_name"].(string), "auto_dataset_1_") {
			return http.StatusUnprocessableEntity
		}
		return 0
	}
	a := NewAssembler(f.session(), "")

	specs := []domain.ChartSpec{
		{Type: domain.ChartBar, Title: "First", SQL: "SELECT 1"},
		{Type: domain.ChartBar, Title: "Second", SQL: "SELECT broken"},
		{Type: domain.ChartBar, Title: "Third", SQL: "SELECT 3"},
	}

	d, err := a.CreateDashboard(context.Background(), "Leaky", specs, 3)
	require.Error(t, err)
	assert.Nil(t, d)
	assert.Contains(t, err.Error(), "chart 1")

	// the first pair stays in Superset, nothing after the failure is attempted
	assert.Len(t, f.calls(http.MethodPost, datasetPath), 2)
	assert.Len(t, f.calls(http.MethodPost, chartPath), 1)
	assert.Empty(t, f.calls(http.MethodPost, dashboardPath))
	assert.Empty(t, f.calls(http.MethodDelete, datasetPath))
}

// captureLog redirects the global logger for the rest of the test
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })
	return &buf
}

func leakEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		if json.Unmarshal([]byte(line), &entry) != nil {
			continue
		}
		if msg, _ := entry["message"].(string); strings.Contains(msg, "were not removed") {
			return entry
		}
	}
	t.Fatalf("no leak entry in log:\n%s", buf.String())
	return nil
}

func TestAssembler_ChartFailureAbortsWithoutCleanup(t *testing.T) {
	buf := captureLog(t)

	f := newFakeSuperset(t)
	f.rejectChart = func(body map[string]any) int {
		if body["slice_name"] == "Second" {
			return http.StatusBadRequest
		}
		return 0
	}
	a := NewAssembler(f.session(), "")

	specs := []domain.ChartSpec{
		{Type: domain.ChartBar, Title: "First", SQL: "SELECT 1"},
		{Type: domain.ChartPie, Title: "Second", SQL: "SELECT 2"},
		{Type: domain.ChartBar, Title: "Third", SQL: "SELECT 3"},
	}

	d, err := a.CreateDashboard(context.Background(), "Leaky charts", specs, 3)
	require.Error(t, err)
	assert.Nil(t, d)
	assert.Contains(t, err.Error(), "chart 1")

	// First: one chart; Second: requested type plus the table fallback
	assert.Len(t, f.calls(http.MethodPost, datasetPath), 2)
	assert.Len(t, f.calls(http.MethodPost, chartPath), 3)
	assert.Empty(t, f.calls(http.MethodPost, dashboardPath))

	// ids are handed out in order: dataset 101, chart 102, dataset 103
	entry := leakEntry(t, buf)
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, []any{float64(101), float64(103)}, entry["dataset_ids"])
	assert.Equal(t, []any{float64(102)}, entry["chart_ids"])
}

func TestAssembler_CancelSkipsReducedPayloadRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFakeSuperset(t)
	f.rejectDashboard = func(map[string]any) int {
		cancel()
		return http.StatusInternalServerError
	}
	a := NewAssembler(f.session(), "")

	d, err := a.CreateDashboard(ctx, "Canceled", []domain.ChartSpec{{Type: domain.ChartTable, Title: "Rows", SQL: "SELECT 1"}}, 3)
	require.Error(t, err)
	assert.Nil(t, d)
	assert.Len(t, f.calls(http.MethodPost, dashboardPath), 1)
}

func TestAssembler_LoginFailureCreatesNothing(t *testing.T) {
	f := newFakeSuperset(t)
	f.loginStatus = http.StatusUnauthorized
	a := NewAssembler(f.session(), "")

	_, err := a.CreateDashboard(context.Background(), "Nope", []domain.ChartSpec{{Type: domain.ChartTable, Title: "Rows"}}, 3)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Empty(t, f.calls(http.MethodPost, datasetPath))
}

func TestAssembler_UniqueNamesAcrossRuns(t *testing.T) {
	f := newFakeSuperset(t)
	spec := []domain.ChartSpec{{Type: domain.ChartTable, Title: "Rows", SQL: "SELECT 1"}}

	first, err := NewAssembler(f.session(), "", WithClock(fixedClock(1700000000))).CreateDashboard(context.Background(), "Same title", spec, 3)
	require.NoError(t, err)
	second, err := NewAssembler(f.session(), "", WithClock(fixedClock(1700000001))).CreateDashboard(context.Background(), "Same title", spec, 3)
	require.NoError(t, err)

	assert.NotEqual(t, first.Slug, second.Slug)
	datasets := f.calls(http.MethodPost, datasetPath)
	require.Len(t, datasets, 2)
	assert.NotEqual(t, datasets[0].Body["table_name"], datasets[1].Body["table_name"])
}

func TestAssembler_EmptySpecs(t *testing.T) {
	f := newFakeSuperset(t)
	a := NewAssembler(f.session(), "")

	d, err := a.CreateDashboard(context.Background(), "Empty", nil, 3)
	require.NoError(t, err)
	assert.Empty(t, d.Charts)

	calls := f.calls(http.MethodPost, dashboardPath)
	require.Len(t, calls, 1)
	assert.Equal(t, "{}", calls[0].Body["position_json"])
}

func TestAssembler_ListAndGet(t *testing.T) {
	f := newFakeSuperset(t)
	a := NewAssembler(f.session(), "", WithPublicURL("https://bi.example.com"))
	ctx := context.Background()

	d, err := a.CreateDashboard(ctx, "Listed", nil, 3)
	require.NoError(t, err)

	list, err := a.List(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Listed", list[0].DashboardTitle)
	assert.Equal(t, d.URL, list[0].URL)

	got, err := a.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.Slug, got.Slug)
	assert.Equal(t, "{}", got.PositionJSON)
}

func jsonInt(i int) string {
	data, _ := json.Marshal(i)
	return string(data)
}
