package domain

import "encoding/json"

// SQLRequest represents a text-to-SQL generation request
type SQLRequest struct {
	Prompt      string `json:"prompt" validate:"required,max=2000"`
	LLMProvider string `json:"llm_provider,omitempty" validate:"omitempty,max=50"`
	LLMModel    string `json:"llm_model,omitempty" validate:"omitempty,max=100"`
}

// SQLResponse contains the generated SQL
type SQLResponse struct {
	RequestID string       `json:"request_id"`
	Prompt    string       `json:"prompt"`
	SQL       string       `json:"sql"`
	Metadata  *LLMMetadata `json:"metadata"`
}

// Chart is a chart as listed by the BI platform
type Chart struct {
	ID            int    `json:"id"`
	SliceName     string `json:"slice_name"`
	VizType       string `json:"viz_type"`
	DatasourceID  int    `json:"datasource_id,omitempty"`
	Params        string `json:"params,omitempty"`
	ChangedOnText string `json:"changed_on_delta_humanized,omitempty"`
}

// DashboardSummary is a dashboard as listed by the BI platform
type DashboardSummary struct {
	ID             int    `json:"id"`
	DashboardTitle string `json:"dashboard_title"`
	Slug           string `json:"slug,omitempty"`
	URL            string `json:"url,omitempty"`
	Published      bool   `json:"published"`
	PositionJSON   string `json:"position_json,omitempty"`
}

// ChartDataRequest optionally overrides the form data a chart is queried with
type ChartDataRequest struct {
	FormData json.RawMessage `json:"form_data,omitempty"`
}
