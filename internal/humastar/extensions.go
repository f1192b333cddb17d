// extensions.go: Injects x-datastar extensions into OpenAPI schemas.
//
// At server startup, InjectExtensions walks registered schemas and adds:
//   - x-datastar (per-schema): signal prefix and form template name
//   - x-signal, x-input (per-property): from Go struct tags
//
// The form renderer and page data builder read these from the OpenAPI document instead
// of re-walking struct tags.
package humastar

import (
	"reflect"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// DatastarSchema is the per-schema "x-datastar" extension.
type DatastarSchema struct {
	Prefix   string `json:"prefix"`       // Signal prefix (e.g. "settings")
	FormTmpl string `json:"formTemplate"` // HTML template name (e.g. "settings-form")
}

// DatastarSchemaConfig registers a Go type for Datastar extensions.
type DatastarSchemaConfig struct {
	Type     reflect.Type
	Prefix   string // Signal prefix (e.g. "settings")
	FormTmpl string // Template name (e.g. "settings-form")
	BasePath string // API path the form posts to (e.g. "/api/v1/editor/settings")
}

// InjectExtensions walks the OpenAPI schema registry and adds x-datastar,
// x-signal and x-input extensions from Go struct tags. Call after all routes
// are registered so schemas exist.
func InjectExtensions(api huma.API, configs []DatastarSchemaConfig) {
	schemas := api.OpenAPI().Components.Schemas.Map()

	for _, cfg := range configs {
		schema, ok := schemas[cfg.Type.Name()]
		if !ok {
			continue
		}

		if schema.Extensions == nil {
			schema.Extensions = map[string]any{}
		}
		schema.Extensions["x-datastar"] = DatastarSchema{
			Prefix:   cfg.Prefix,
			FormTmpl: cfg.FormTmpl,
		}

		injectPropertyExtensions(schema, cfg.Type)
	}
}

func injectPropertyExtensions(schema *huma.Schema, t reflect.Type) {
	for i := range t.NumField() {
		sf := t.Field(i)

		jsonName := jsonFieldName(sf)
		if jsonName == "" {
			continue
		}
		prop, ok := schema.Properties[jsonName]
		if !ok {
			continue
		}

		ext := map[string]any{}
		if sig := sf.Tag.Get("signal"); sig != "" {
			ext["x-signal"] = sig
		}
		if inp := sf.Tag.Get("input"); inp != "" {
			ext["x-input"] = inp
		}
		if len(ext) == 0 {
			continue
		}
		if prop.Extensions == nil {
			prop.Extensions = map[string]any{}
		}
		for k, v := range ext {
			prop.Extensions[k] = v
		}
	}
}

func jsonFieldName(sf reflect.StructField) string {
	name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

// signalName is the Datastar signal bound to a schema property.
func signalName(prefix, jsonName string, prop *huma.Schema) string {
	if sig, ok := prop.Extensions["x-signal"].(string); ok && sig != "" {
		return prefix + sig
	}
	return prefix + strings.ToLower(jsonName)
}
