package humastar

import (
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// Links holds RFC 8288 link headers derived from the registered routes,
// keyed by operation path.
type Links struct {
	byPath map[string][]string
}

// AutoLinks walks the OpenAPI spec and derives hypermedia links. Call after
// all routes are registered. Editor (Datastar SSE) endpoints are skipped.
func AutoLinks(api huma.API) *Links {
	oapi := api.OpenAPI()
	l := &Links{byPath: map[string][]string{}}

	var collections, items []string
	for p, pi := range oapi.Paths {
		if slices.Contains(primaryTags(pi), "editor") {
			continue
		}
		if strings.Contains(p, "{") {
			items = append(items, p)
		} else {
			collections = append(collections, p)
		}
	}
	slices.Sort(collections)
	slices.Sort(items)

	// Item → parent collection, walking up past path parameters.
	for _, item := range items {
		if parent, ok := parentOf(oapi, item); ok {
			l.add(item, parent, "collection")
			l.add(item, parent, "up")
			l.add(parent, item, "item")
		}
	}

	// Collections point back at the entry point and at the query endpoint.
	_, hasQuery := oapi.Paths["/api/v1/query"]
	for _, coll := range collections {
		if coll != "/health" {
			l.add(coll, "/health", "up")
		}
		if hasQuery && coll != "/api/v1/query" {
			l.add(coll, "/api/v1/query", "search")
		}
	}

	// Edit rels from HTTP methods.
	for _, item := range items {
		pi := oapi.Paths[item]
		if pi.Put != nil || pi.Patch != nil {
			l.add(item, item, "edit")
		}
	}

	// Entry point links to every collection plus discovery rels.
	for _, coll := range collections {
		if coll != "/health" {
			l.add("/health", coll, lastSegment(coll))
		}
	}
	l.add("/health", "/openapi.json", "describedby")
	l.add("/health", "/openapi.json", "service-desc")
	l.add("/health", "/docs", "service-doc")

	// Document the relationships in the OpenAPI document itself.
	for p, pi := range oapi.Paths {
		headers, ok := l.byPath[p]
		if !ok {
			continue
		}
		for _, op := range operationsOf(pi) {
			if op != nil {
				injectResponseLinks(op, headers)
			}
		}
	}
	return l
}

// For returns the link headers of an operation path.
func (l *Links) For(opPath string) []string {
	if l == nil {
		return nil
	}
	return l.byPath[opPath]
}

// Root returns the entry point links, for non-Huma handlers.
func (l *Links) Root() []string {
	return l.For("/health")
}

// Transformer returns a Huma Transformer that injects the link headers at
// runtime, plus self, pagination and action links from the response.
func (l *Links) Transformer() huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}

		for _, link := range l.For(op.Path) {
			ctx.AppendHeader("Link", link)
		}

		// Item endpoints get a self link with the resolved URL.
		if strings.Contains(op.Path, "{") {
			ctx.AppendHeader("Link", fmt.Sprintf(`<%s>; rel="self"`, ctx.URL().Path))
		}

		if p, ok := v.(Pager); ok {
			for _, link := range p.PaginationLinks(ctx.URL().Path) {
				ctx.AppendHeader("Link", link)
			}
		}

		if a, ok := v.(Actor); ok {
			for _, action := range a.Actions() {
				ctx.AppendHeader("Link", action.LinkHeader())
			}
		}

		return v, nil
	}
}

// --- helpers ---

func (l *Links) add(from, to, rel string) {
	val := fmt.Sprintf(`<%s>; rel="%s"`, to, rel)
	if slices.Contains(l.byPath[from], val) {
		return
	}
	l.byPath[from] = append(l.byPath[from], val)
}

// parentOf finds the closest registered ancestor of p.
func parentOf(oapi *huma.OpenAPI, p string) (string, bool) {
	for dir := path.Dir(p); dir != "/" && dir != "."; dir = path.Dir(dir) {
		if _, ok := oapi.Paths[dir]; ok {
			return dir, true
		}
	}
	return "", false
}

func primaryTags(pi *huma.PathItem) []string {
	for _, op := range operationsOf(pi) {
		if op != nil && len(op.Tags) > 0 {
			return op.Tags
		}
	}
	return nil
}

func operationsOf(pi *huma.PathItem) []*huma.Operation {
	return []*huma.Operation{pi.Get, pi.Post, pi.Put, pi.Patch, pi.Delete}
}

func lastSegment(p string) string {
	parts := strings.Split(strings.TrimRight(p, "/"), "/")
	return parts[len(parts)-1]
}

// injectResponseLinks adds OpenAPI Link objects to the operation's success
// response.
func injectResponseLinks(op *huma.Operation, headers []string) {
	if op.Responses == nil {
		return
	}
	var resp *huma.Response
	for code, r := range op.Responses {
		if strings.HasPrefix(code, "2") {
			resp = r
			break
		}
	}
	if resp == nil {
		return
	}
	if resp.Links == nil {
		resp.Links = map[string]*huma.Link{}
	}
	for _, h := range headers {
		rel, href := parseLinkHeader(h)
		if rel == "" {
			continue
		}
		resp.Links[rel] = &huma.Link{
			OperationRef: href,
			Description:  fmt.Sprintf("Related: %s", rel),
		}
	}
}

func parseLinkHeader(h string) (rel, href string) {
	// Parse `<url>; rel="name"` format.
	target, params, ok := strings.Cut(h, ";")
	if !ok {
		return "", ""
	}
	href = strings.Trim(strings.TrimSpace(target), "<>")
	params = strings.TrimSpace(params)
	if strings.HasPrefix(params, `rel="`) {
		rel = strings.Trim(params[4:], `"`)
	}
	return rel, href
}
