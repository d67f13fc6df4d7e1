package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/Rrens/text-to-dashboard/internal/api/response"
	"github.com/Rrens/text-to-dashboard/internal/domain"
	"github.com/go-chi/chi/v5"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// DashboardService is the dashboard pipeline and catalog as seen by the HTTP layer
type DashboardService interface {
	GenerateDashboard(ctx context.Context, req domain.DashboardRequest) (*domain.DashboardResult, error)
	ListDashboards(ctx context.Context, page, pageSize int) ([]domain.DashboardSummary, error)
	GetDashboard(ctx context.Context, id int) (*domain.DashboardSummary, error)
	DashboardCharts(ctx context.Context, dashboardID int) ([]domain.Chart, error)
	ListCharts(ctx context.Context, term string, page, pageSize int) ([]domain.Chart, error)
	GetChart(ctx context.Context, id int) (*domain.Chart, error)
	ChartData(ctx context.Context, id int, formData json.RawMessage) (json.RawMessage, error)
}

// DashboardHandler handles dashboard and chart endpoints
type DashboardHandler struct {
	svc DashboardService
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(svc DashboardService) *DashboardHandler {
	return &DashboardHandler{svc: svc}
}

// Generate creates a dashboard from a natural-language prompt
func (h *DashboardHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req domain.DashboardRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.svc.GenerateDashboard(r.Context(), req)
	if err != nil {
		serviceError(w, r, err)
		return
	}

	response.Created(w, result)
}

// List returns one page of dashboards
func (h *DashboardHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize, ok := pagination(w, r)
	if !ok {
		return
	}

	dashboards, err := h.svc.ListDashboards(r.Context(), page, pageSize)
	if err != nil {
		serviceError(w, r, err)
		return
	}

	response.OK(w, map[string]any{
		"dashboards": dashboards,
		"page":       page,
		"page_size":  pageSize,
	})
}

// Get returns one dashboard
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "dashboardID")
	if !ok {
		return
	}

	dashboard, err := h.svc.GetDashboard(r.Context(), id)
	if err != nil {
		serviceError(w, r, err)
		return
	}

	response.OK(w, dashboard)
}

// Charts returns the charts laid out on a dashboard
func (h *DashboardHandler) Charts(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "dashboardID")
	if !ok {
		return
	}

	charts, err := h.svc.DashboardCharts(r.Context(), id)
	if err != nil {
		serviceError(w, r, err)
		return
	}

	response.OK(w, map[string]any{
		"dashboard_id": id,
		"charts":       charts,
	})
}

// ListCharts returns one page of charts; q filters by chart name
func (h *DashboardHandler) ListCharts(w http.ResponseWriter, r *http.Request) {
	page, pageSize, ok := pagination(w, r)
	if !ok {
		return
	}
	term := r.URL.Query().Get("q")

	charts, err := h.svc.ListCharts(r.Context(), term, page, pageSize)
	if err != nil {
		serviceError(w, r, err)
		return
	}

	response.OK(w, map[string]any{
		"charts":    charts,
		"query":     term,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetChart returns one chart
func (h *DashboardHandler) GetChart(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "chartID")
	if !ok {
		return
	}

	chart, err := h.svc.GetChart(r.Context(), id)
	if err != nil {
		serviceError(w, r, err)
		return
	}

	response.OK(w, chart)
}

// ChartData runs a chart's query. The body is optional; without form_data the
// chart's stored params are used.
func (h *DashboardHandler) ChartData(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "chartID")
	if !ok {
		return
	}

	var req domain.ChartDataRequest
	if r.Body != nil {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			response.BadRequest(w, "invalid request body")
			return
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &req); err != nil {
				response.BadRequest(w, "invalid request body")
				return
			}
		}
	}

	data, err := h.svc.ChartData(r.Context(), id, req.FormData)
	if err != nil {
		serviceError(w, r, err)
		return
	}

	response.OK(w, map[string]any{
		"chart_id": id,
		"result":   data,
	})
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, param))
	if err != nil || id <= 0 {
		response.BadRequest(w, "invalid "+param)
		return 0, false
	}
	return id, true
}

// pagination reads zero-based page and page_size query parameters
func pagination(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	page, pageSize := 0, defaultPageSize
	q := r.URL.Query()

	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			response.BadRequest(w, "invalid page")
			return 0, 0, false
		}
		page = n
	}
	if v := q.Get("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			response.BadRequest(w, "invalid page_size")
			return 0, 0, false
		}
		pageSize = min(n, maxPageSize)
	}

	return page, pageSize, true
}
