package handler

import (
	"context"
	"net/http"

	"github.com/Rrens/text-to-dashboard/internal/api/response"
	"github.com/Rrens/text-to-dashboard/internal/domain"
)

// SQLGenerator translates questions into SQL
type SQLGenerator interface {
	GenerateSQL(ctx context.Context, req domain.SQLRequest) (*domain.SQLResponse, error)
}

// QueryHandler handles text-to-SQL endpoints
type QueryHandler struct {
	queryService SQLGenerator
}

// NewQueryHandler creates a new query handler
func NewQueryHandler(queryService SQLGenerator) *QueryHandler {
	return &QueryHandler{queryService: queryService}
}

// Generate handles SQL generation without execution
func (h *QueryHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req domain.SQLRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.queryService.GenerateSQL(r.Context(), req)
	if err != nil {
		serviceError(w, r, err)
		return
	}

	response.OK(w, result)
}
