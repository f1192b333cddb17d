package api

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-trees/internal/db"
)

// RegisterCatalog registers DuckDB-backed routes. Each request refreshes the
// catalog from the live scene first.
func (h *APIHandler) RegisterCatalog(api huma.API) {
	huma.Get(api, "/api/v1/stats", h.GetStats, huma.OperationTags("catalog"))
	huma.Get(api, "/api/v1/tables", h.ListTables, huma.OperationTags("catalog"))
	huma.Post(api, "/api/v1/query", h.Query, huma.OperationTags("catalog"))
}

// TablesOutput is the response for listing tables.
type TablesOutput struct {
	Body struct {
		Tables []string `json:"tables" doc:"List of table names"`
	}
}

// QueryInput is the input for SQL queries.
type QueryInput struct {
	Body struct {
		Query string `json:"query" required:"true" minLength:"1" doc:"SQL query to execute" example:"SELECT kind, count(*) AS n FROM features GROUP BY kind"`
	}
}

// sync copies the current scene into the catalog.
func (h *APIHandler) sync(ctx context.Context) error {
	if h.svc.Catalog == nil {
		return huma.Error503ServiceUnavailable("Database not available")
	}
	data, err := h.svc.Session.CombinedJSON()
	if err != nil {
		return huma.Error500InternalServerError("Failed to encode scene", err)
	}
	if err := h.svc.Catalog.Sync(ctx, data); err != nil {
		return huma.Error500InternalServerError("Failed to sync catalog", err)
	}
	return nil
}

// GetStats returns counts and heights aggregated by DuckDB.
func (h *APIHandler) GetStats(ctx context.Context, input *struct{}) (*struct{ Body db.Stats }, error) {
	if err := h.sync(ctx); err != nil {
		return nil, err
	}
	stats, err := h.svc.Catalog.Stats(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to compute stats", err)
	}
	return &struct{ Body db.Stats }{Body: stats}, nil
}

// ListTables returns all DuckDB tables.
func (h *APIHandler) ListTables(ctx context.Context, input *struct{}) (*TablesOutput, error) {
	if err := h.sync(ctx); err != nil {
		return nil, err
	}
	tables, err := h.svc.Catalog.Tables(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list tables", err)
	}
	out := &TablesOutput{}
	out.Body.Tables = tables
	return out, nil
}

// Query executes a SQL query against the scene catalog.
func (h *APIHandler) Query(ctx context.Context, input *QueryInput) (*struct{ Body db.Result }, error) {
	if err := h.sync(ctx); err != nil {
		return nil, err
	}
	res, err := h.svc.Catalog.Query(ctx, input.Body.Query)
	if errors.Is(err, db.ErrEmptyQuery) {
		return nil, huma.Error400BadRequest(err.Error())
	}
	if err != nil {
		return nil, huma.Error400BadRequest("Query failed: " + err.Error())
	}
	return &struct{ Body db.Result }{Body: res}, nil
}
