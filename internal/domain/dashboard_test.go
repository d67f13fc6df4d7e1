package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/Rrens/text-to-dashboard/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChartType_Kind(t *testing.T) {
	tests := []struct {
		typ  domain.ChartType
		want domain.ChartKind
	}{
		{domain.ChartBar, domain.KindAggregate},
		{domain.ChartLine, domain.KindAggregate},
		{domain.ChartPie, domain.KindAggregate},
		{domain.ChartTable, domain.KindTable},
		{"scatter", domain.KindUnknown},
		{"", domain.KindUnknown},
		{"BAR", domain.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.typ.Kind())
		})
	}
}

func TestChartType_Normalize(t *testing.T) {
	assert.Equal(t, domain.ChartBar, domain.ChartType(" Bar ").Normalize())
	assert.Equal(t, domain.ChartKind(domain.KindAggregate), domain.ChartType("PIE").Normalize().Kind())
}

func TestChartSpec_TableColumns(t *testing.T) {
	assert.Equal(t, domain.FieldList{"a"}, domain.ChartSpec{AllColumns: domain.FieldList{"a"}, Columns: domain.FieldList{"b"}}.TableColumns())
	assert.Equal(t, domain.FieldList{"b"}, domain.ChartSpec{Columns: domain.FieldList{"b"}}.TableColumns())
	assert.Empty(t, domain.ChartSpec{}.TableColumns())
}

func TestFieldList_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want domain.FieldList
	}{
		{"list", `["a","b"]`, domain.FieldList{"a", "b"}},
		{"single string", `"count"`, domain.FieldList{"count"}},
		{"null", `null`, nil},
		{"empty", `[]`, domain.FieldList{}},
		{"adhoc object", `[{"label":"revenue"}]`, domain.FieldList{map[string]any{"label": "revenue"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got domain.FieldList
			require.NoError(t, json.Unmarshal([]byte(tt.in), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDashboard_ChartIDs(t *testing.T) {
	d := &domain.Dashboard{Charts: []domain.CreatedChart{{ID: 7}, {ID: 3}, {ID: 9}}}
	assert.Equal(t, []int{7, 3, 9}, d.ChartIDs())
}
