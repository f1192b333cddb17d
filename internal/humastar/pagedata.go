// pagedata.go: Reverse mapping: OpenAPI document → page template data.
//
// BuildPageData extracts what a page needs from the OpenAPI document: the data-signals
// initialisation JSON (schema defaults overlaid with live values) and the
// routes a form posts to, so the HTML never hardcodes URLs or signal names.
package humastar

import (
	"encoding/json"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// PageData holds everything a page template needs from the OpenAPI spec.
type PageData struct {
	// Signals is the JSON string for data-signals initialization.
	Signals string

	// Routes maps operation roles to their paths.
	Routes SchemaRoutes

	// FormTmpl is the template name for the form fragment.
	FormTmpl string
}

// SchemaRoutes holds discovered API routes for a resource.
type SchemaRoutes struct {
	Submit string // POST to the base path
	Events string // GET SSE events stream, sibling of the base path
}

// BuildPageData builds template data for a schema. values overrides the
// schema defaults by JSON property name; extra adds UI-only signals.
func BuildPageData(api huma.API, cfg DatastarSchemaConfig, values map[string]any, extra map[string]any) PageData {
	signals := buildSignals(api, cfg, values)
	for k, v := range extra {
		signals[k] = v
	}
	signalsJSON, _ := json.Marshal(signals)

	return PageData{
		Signals:  string(signalsJSON),
		Routes:   discoverRoutes(api, cfg),
		FormTmpl: cfg.FormTmpl,
	}
}

// buildSignals produces initial signal values from the schema.
func buildSignals(api huma.API, cfg DatastarSchemaConfig, values map[string]any) map[string]any {
	signals := map[string]any{}
	schema, ok := api.OpenAPI().Components.Schemas.Map()[cfg.Type.Name()]
	if !ok {
		return signals
	}

	t := cfg.Type
	for i := range t.NumField() {
		jsonName := jsonFieldName(t.Field(i))
		if jsonName == "" {
			continue
		}
		prop, ok := schema.Properties[jsonName]
		if !ok || prop.Type == "array" || prop.Type == "object" {
			continue
		}

		signal := signalName(cfg.Prefix, jsonName, prop)
		switch {
		case values[jsonName] != nil:
			signals[signal] = values[jsonName]
		case prop.Default != nil:
			signals[signal] = prop.Default
		case prop.Type == "boolean":
			signals[signal] = false
		case prop.Type == "number" || prop.Type == "integer":
			signals[signal] = 0
		default:
			signals[signal] = ""
		}
	}
	return signals
}

// discoverRoutes finds the submit and events routes for a resource by
// walking the OpenAPI paths.
func discoverRoutes(api huma.API, cfg DatastarSchemaConfig) SchemaRoutes {
	var routes SchemaRoutes

	paths := api.OpenAPI().Paths
	if paths == nil || cfg.BasePath == "" {
		return routes
	}

	if item, ok := paths[cfg.BasePath]; ok && item.Post != nil {
		routes.Submit = cfg.BasePath
	}
	if i := strings.LastIndex(cfg.BasePath, "/"); i > 0 {
		events := cfg.BasePath[:i] + "/events"
		if item, ok := paths[events]; ok && item.Get != nil {
			routes.Events = events
		}
	}
	return routes
}
