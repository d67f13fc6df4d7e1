package superset

import (
	"context"
	"fmt"
	"net/http"
)

// Datasets registers SQL queries as virtual datasets
type Datasets struct {
	session *Session
	schema  string
}

// NewDatasets creates a dataset materializer bound to session. An empty schema means "public".
func NewDatasets(session *Session, schema string) *Datasets {
	if schema == "" {
		schema = "public"
	}
	return &Datasets{session: session, schema: schema}
}

type datasetRequest struct {
	Database       int    `json:"database"`
	SQL            string `json:"sql"`
	TableName      string `json:"table_name"`
	Schema         string `json:"schema"`
	TemplateParams string `json:"template_params"`
}

// Create registers sql as a virtual dataset named tableName in databaseID and
// returns the dataset id. The SQL is sent verbatim; Superset executes it.
func (d *Datasets) Create(ctx context.Context, sql, tableName string, databaseID int) (int, error) {
	payload := datasetRequest{
		Database:       databaseID,
		SQL:            sql,
		TableName:      tableName,
		Schema:         d.schema,
		TemplateParams: "{}",
	}

	body, err := d.session.call(ctx, "create dataset", http.MethodPost, datasetPath, payload)
	if err != nil {
		return 0, fmt.Errorf("failed to create dataset %s: %w", tableName, err)
	}

	return idFromBody("create dataset", body)
}
