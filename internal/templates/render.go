// Package templates handles HTML template rendering for Datastar SSE responses.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

//go:embed fragments/*.html
var embedded embed.FS

// funcMap provides common template functions.
var funcMap = template.FuncMap{
	// dict creates a map from key-value pairs, useful for passing multiple values to nested templates
	"dict": func(values ...any) map[string]any {
		if len(values)%2 != 0 {
			return nil
		}
		m := make(map[string]any, len(values)/2)
		for i := 0; i < len(values); i += 2 {
			key, ok := values[i].(string)
			if !ok {
				continue
			}
			m[key] = values[i+1]
		}
		return m
	},
	"add": func(a, b int) int { return a + b },
}

// Renderer manages HTML fragment templates.
type Renderer struct {
	templates *template.Template
	mu        sync.RWMutex
	defined   map[string]string
}

// New creates a renderer from the fragments compiled into the binary.
func New() (*Renderer, error) {
	sub, err := fs.Sub(embedded, "fragments")
	if err != nil {
		return nil, err
	}
	return newFromFS(sub)
}

// NewFromDir creates a renderer from fragmentsDir on disk, for editing
// fragments without rebuilding.
func NewFromDir(fragmentsDir string) (*Renderer, error) {
	if _, err := os.Stat(fragmentsDir); err != nil {
		return nil, err
	}
	return newFromFS(os.DirFS(fragmentsDir))
}

func newFromFS(fsys fs.FS) (*Renderer, error) {
	tmpl, err := parse(fsys)
	if err != nil {
		return nil, err
	}
	return &Renderer{templates: tmpl, defined: map[string]string{}}, nil
}

func parse(fsys fs.FS) (*template.Template, error) {
	return template.New("").Funcs(funcMap).ParseFS(fsys, "*.html")
}

// Render renders a named template to a string.
func (r *Renderer) Render(name string, data any) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderToBuffer renders a named template to a buffer.
func (r *Renderer) RenderToBuffer(buf *bytes.Buffer, name string, data any) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.templates.ExecuteTemplate(buf, name, data)
}

// MustRender renders a template and panics on error.
// Use only when you're certain the template exists.
func (r *Renderer) MustRender(name string, data any) string {
	s, err := r.Render(name, data)
	if err != nil {
		panic(err)
	}
	return s
}

// Has reports whether a template with the given name exists.
func (r *Renderer) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.templates.Lookup(name) != nil
}

// Define registers body as the template name. Definitions survive Reload.
func (r *Renderer) Define(name, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.templates.New(name).Parse(body); err != nil {
		return fmt.Errorf("define %s: %w", name, err)
	}
	r.defined[name] = body
	return nil
}

// Reload re-parses templates from fragmentsDir (useful for dev hot-reload).
func (r *Renderer) Reload(fragmentsDir string) error {
	tmpl, err := parse(os.DirFS(filepath.Clean(fragmentsDir)))
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for name, body := range r.defined {
		if _, err := tmpl.New(name).Parse(body); err != nil {
			return fmt.Errorf("define %s: %w", name, err)
		}
	}
	r.templates = tmpl
	return nil
}
