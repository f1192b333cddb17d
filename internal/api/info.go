package api

import "context"

type InfoBody struct {
	Name     string   `json:"name" doc:"Service name"`
	Version  string   `json:"version" doc:"Service version"`
	DB       bool     `json:"db" doc:"Whether the DuckDB catalog is available"`
	Features []string `json:"features" doc:"Available features"`
}

func (h *APIHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	features := []string{"geojson", "trees", "attributes", "sun"}
	if h.svc.Catalog != nil {
		features = append(features, "duckdb")
	}
	if h.svc.Library != nil {
		features = append(features, "library")
	}
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:     "plat-trees",
		Version:  Version,
		DB:       h.svc.Catalog != nil,
		Features: features,
	}}, nil
}
