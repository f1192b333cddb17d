// formrender.go: Runtime HTML form generation from OpenAPI schemas.
//
// At server startup, RegisterFormTemplates walks schemas with x-datastar
// extensions and builds Datastar-bound HTML form fragments:
//
//	string           → <input type="text">
//	string + enum    → <select> with options
//	boolean          → <input type="checkbox">
//	number/integer   → <input type="number"> with min/max/step
//
// Each form is registered as a named template (e.g. "settings-form") in the
// Renderer.
package humastar

import (
	"fmt"
	"html"
	"slices"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// RegisterFormTemplates registers a form template for every schema carrying
// an x-datastar extension with a form template name. Call after
// InjectExtensions.
func RegisterFormTemplates(api huma.API, r *Renderer) error {
	schemas := api.OpenAPI().Components.Schemas.Map()

	for _, schema := range schemas {
		ds, ok := schema.Extensions["x-datastar"].(DatastarSchema)
		if !ok || ds.FormTmpl == "" {
			continue
		}
		if err := r.Define(ds.FormTmpl, renderFormHTML(schema, ds)); err != nil {
			return err
		}
	}
	return nil
}

// renderFormHTML builds the HTML form groups for a schema.
func renderFormHTML(schema *huma.Schema, ds DatastarSchema) string {
	var b strings.Builder

	for _, jsonName := range sortedPropertyNames(schema) {
		prop := schema.Properties[jsonName]

		// Skip $schema (OpenAPI meta-property) and non-primitive types
		if strings.HasPrefix(jsonName, "$") || prop.Type == "array" || prop.Type == "object" {
			continue
		}

		signal := signalName(ds.Prefix, jsonName, prop)
		required := slices.Contains(schema.Required, jsonName)
		label := prop.Description
		if label == "" {
			label = jsonName
		}

		switch {
		case prop.Type == "boolean":
			renderCheckbox(&b, label, signal)
		case len(prop.Enum) > 0:
			renderEnumSelect(&b, label, signal, prop, required)
		case prop.Type == "number" || prop.Type == "integer":
			renderNumberInput(&b, label, signal, prop, required)
		default:
			renderTextInput(&b, label, signal, prop, required)
		}
	}

	return b.String()
}

func renderTextInput(b *strings.Builder, label, signal string, prop *huma.Schema, required bool) {
	b.WriteString(`<div class="form-group">`)
	fmt.Fprintf(b, "\n    <label>%s</label>\n", html.EscapeString(label))
	fmt.Fprintf(b, `    <input type="text" data-bind:%s`, signal)
	if prop.Default != nil {
		fmt.Fprintf(b, ` placeholder="%s"`, html.EscapeString(fmt.Sprint(prop.Default)))
	}
	if required {
		b.WriteString(` required`)
	}
	b.WriteString(">\n</div>\n")
}

func renderNumberInput(b *strings.Builder, label, signal string, prop *huma.Schema, required bool) {
	b.WriteString(`<div class="form-group">`)
	fmt.Fprintf(b, "\n    <label>%s</label>\n", html.EscapeString(label))
	fmt.Fprintf(b, `    <input type="number" data-bind:%s`, signal)
	if prop.Minimum != nil {
		fmt.Fprintf(b, ` min="%v"`, *prop.Minimum)
	}
	if prop.Maximum != nil {
		fmt.Fprintf(b, ` max="%v"`, *prop.Maximum)
	}
	// Step: use 0.1 for floats, 1 for integers
	if prop.Type == "number" {
		b.WriteString(` step="0.1"`)
	}
	if prop.Default != nil {
		fmt.Fprintf(b, ` placeholder="%v"`, prop.Default)
	}
	if required {
		b.WriteString(` required`)
	}
	b.WriteString(">\n</div>\n")
}

func renderCheckbox(b *strings.Builder, label, signal string) {
	// Unchecked is a valid state, never mark required
	fmt.Fprintf(b, "<div class=\"form-group\">\n    <label><input type=\"checkbox\" data-bind:%s> %s</label>\n</div>\n",
		signal, html.EscapeString(label))
}

func renderEnumSelect(b *strings.Builder, label, signal string, prop *huma.Schema, required bool) {
	b.WriteString(`<div class="form-group">`)
	fmt.Fprintf(b, "\n    <label>%s</label>\n", html.EscapeString(label))
	fmt.Fprintf(b, `    <select data-bind:%s`, signal)
	if required {
		b.WriteString(` required`)
	}
	b.WriteString(">\n")
	for _, v := range prop.Enum {
		s := html.EscapeString(fmt.Sprint(v))
		fmt.Fprintf(b, "        <option value=\"%s\">%s</option>\n", s, s)
	}
	b.WriteString("    </select>\n</div>\n")
}

// sortedPropertyNames returns property names: required first, then optional, both alphabetical.
func sortedPropertyNames(schema *huma.Schema) []string {
	var req, opt []string
	for name := range schema.Properties {
		if slices.Contains(schema.Required, name) {
			req = append(req, name)
		} else {
			opt = append(opt, name)
		}
	}
	slices.Sort(req)
	slices.Sort(opt)
	return append(req, opt...)
}
