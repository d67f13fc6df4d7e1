package domain

import (
	"encoding/json"
	"strings"
)

// ChartType is the visualization type requested for a chart
type ChartType string

const (
	ChartBar   ChartType = "bar"
	ChartLine  ChartType = "line"
	ChartPie   ChartType = "pie"
	ChartTable ChartType = "table"
)

// ChartKind classifies a ChartType into the variants the BI client knows how to shape
type ChartKind int

const (
	KindUnknown ChartKind = iota
	KindTable
	KindAggregate // bar, line and pie share one parameter shape
)

// Kind returns the variant of t. Anything outside bar, line, pie and table is KindUnknown.
func (t ChartType) Kind() ChartKind {
	switch t {
	case ChartTable:
		return KindTable
	case ChartBar, ChartLine, ChartPie:
		return KindAggregate
	default:
		return KindUnknown
	}
}

// Normalize lowercases and trims the type as produced by the LLM
func (t ChartType) Normalize() ChartType {
	return ChartType(strings.ToLower(strings.TrimSpace(string(t))))
}

// FieldList is a list of metrics or columns as the LLM wrote it. Elements are kept
// as decoded, so adhoc metric objects reach the BI platform unchanged. A single
// value is read as a one-element list and null as no list.
type FieldList []any

func (l *FieldList) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case nil:
		*l = nil
	case []any:
		*l = x
	default:
		*l = FieldList{x}
	}
	return nil
}

// ChartSpec describes one chart the LLM wants on the dashboard
type ChartSpec struct {
	Type       ChartType `json:"type"`
	Title      string    `json:"title"`
	SQL        string    `json:"sql"`
	Metrics    FieldList `json:"metrics,omitempty"`
	GroupBy    FieldList `json:"groupby,omitempty"`
	AllColumns FieldList `json:"all_columns,omitempty"`
	Columns    FieldList `json:"columns,omitempty"`
}

// TableColumns returns all_columns, falling back to columns
func (s ChartSpec) TableColumns() FieldList {
	if len(s.AllColumns) > 0 {
		return s.AllColumns
	}
	return s.Columns
}

// CreatedChart records one dataset/chart pair materialized for a dashboard
type CreatedChart struct {
	ID            int       `json:"id"`
	DatasetID     int       `json:"dataset_id"`
	Title         string    `json:"title"`
	RequestedType ChartType `json:"requested_type"`
	Type          ChartType `json:"type"`
}

// Dashboard is a dashboard created in the BI platform
type Dashboard struct {
	ID     int            `json:"id"`
	Title  string         `json:"title"`
	Slug   string         `json:"slug"`
	URL    string         `json:"url"`
	Charts []CreatedChart `json:"charts"`
	// LayoutDropped is set when the dashboard was created with the reduced payload
	LayoutDropped bool `json:"layout_dropped"`
}

// ChartIDs returns chart ids in creation order
func (d *Dashboard) ChartIDs() []int {
	ids := make([]int, len(d.Charts))
	for i, c := range d.Charts {
		ids[i] = c.ID
	}
	return ids
}

// DashboardRequest represents a natural-language dashboard generation request
type DashboardRequest struct {
	Prompt      string `json:"prompt" validate:"required,max=4000"`
	Title       string `json:"title,omitempty" validate:"omitempty,max=250"`
	LLMProvider string `json:"llm_provider,omitempty" validate:"omitempty,max=50"`
	LLMModel    string `json:"llm_model,omitempty" validate:"omitempty,max=100"`
	DatabaseID  int    `json:"database_id,omitempty" validate:"omitempty,min=1"`
}

// DashboardResult is returned to the caller after a successful generation
type DashboardResult struct {
	RequestID     string         `json:"request_id"`
	DashboardID   int            `json:"dashboard_id"`
	DashboardURL  string         `json:"dashboard_url"`
	Title         string         `json:"title"`
	Charts        []CreatedChart `json:"charts"`
	LayoutDropped bool           `json:"layout_dropped"`
	Metadata      *LLMMetadata   `json:"metadata"`
}

// LLMMetadata describes the completion that produced a result
type LLMMetadata struct {
	LLMProvider     string `json:"llm_provider"`
	LLMModel        string `json:"llm_model"`
	LLMLatencyMs    int64  `json:"llm_latency_ms"`
	TokensUsed      int    `json:"tokens_used"`
	ExecutionTimeMs int64  `json:"execution_time_ms"`
}
