package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Rrens/text-to-dashboard/internal/domain"
	"github.com/rs/zerolog/log"
)

// ErrParse marks a completion that is not a JSON array of chart specs
var ErrParse = errors.New("llm output is not a valid chart spec array")

// BuildDashboardPrompt asks the model for a JSON array of chart specifications
// answering prompt against the described schema
func BuildDashboardPrompt(prompt, schemaContext string) string {
	return fmt.Sprintf(`%s

Based on the schema above, generate a dashboard specification for: "%s"

The dashboard should contain multiple charts. For each chart, provide:
1. type: chart type (bar, line, pie, table)
2. title: chart title
3. sql: SQL query for the chart
4. metrics: list of metrics to display (for bar, line and pie charts)
5. groupby: list of columns to group by (for bar, line and pie charts)
6. all_columns: list of columns to show (for table charts)

Return the result as a JSON array of chart specifications.
Example format:
[
  {
    "type": "bar",
    "title": "Sales by Product",
    "sql": "SELECT product_name, SUM(amount) as total_sales FROM sales GROUP BY product_name ORDER BY total_sales DESC LIMIT 10",
    "metrics": ["total_sales"],
    "groupby": ["product_name"]
  },
  {
    "type": "table",
    "title": "Recent Orders",
    "sql": "SELECT name, date_order, amount_total FROM sale_order ORDER BY date_order DESC LIMIT 20",
    "all_columns": ["name", "date_order", "amount_total"]
  }
]

Do not include explanations, just the JSON.`, schemaContext, prompt)
}

// StripCodeFence removes one surrounding markdown fence (``` or ```json) from text
func StripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(text, "```json"):
		text = strings.TrimPrefix(text, "```json")
	case strings.HasPrefix(text, "```"):
		text = strings.TrimPrefix(text, "```")
	default:
		return text
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// ParseChartSpecs decodes a completion into chart specs. Chart types are normalized
// to lower case; an unfenced or fenced JSON array is accepted.
func ParseChartSpecs(text string) ([]domain.ChartSpec, error) {
	body := StripCodeFence(text)
	if body == "" {
		return nil, fmt.Errorf("%w: empty completion", ErrParse)
	}

	var specs []domain.ChartSpec
	if err := json.Unmarshal([]byte(body), &specs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if specs == nil {
		return nil, fmt.Errorf("%w: completion is not a JSON array", ErrParse)
	}

	for i := range specs {
		specs[i].Type = specs[i].Type.Normalize()
	}
	return specs, nil
}

// ChartSpecResult carries the parsed specs together with the completion metadata
type ChartSpecResult struct {
	Specs      []domain.ChartSpec
	Completion *Completion
}

// GenerateChartSpecs prompts provider for chart specs and parses the answer
func GenerateChartSpecs(ctx context.Context, provider Provider, model, prompt, schemaContext string) (*ChartSpecResult, error) {
	completion, err := provider.Complete(ctx, BuildDashboardPrompt(prompt, schemaContext), model)
	if err != nil {
		return nil, fmt.Errorf("failed to generate chart specs with %s: %w", provider.Name(), err)
	}

	specs, err := ParseChartSpecs(completion.Text)
	if err != nil {
		log.Warn().
			Str("provider", provider.Name()).
			Str("model", completion.Model).
			Str("completion", truncate(completion.Text, 500)).
			Msg("unparseable chart spec completion")
		return nil, err
	}

	log.Debug().
		Str("provider", provider.Name()).
		Str("model", completion.Model).
		Int("charts", len(specs)).
		Int64("latency_ms", completion.LatencyMs).
		Msg("chart specs generated")

	return &ChartSpecResult{Specs: specs, Completion: completion}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
