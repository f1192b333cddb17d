package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-trees/internal/db"
	"github.com/joeblew999/plat-trees/internal/metrics"
	"github.com/joeblew999/plat-trees/internal/service"
)

const sceneDoc = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"ID": 1, "height": 12},
     "geometry": {"type": "Polygon", "coordinates": [[[-74.001,40.700],[-74.000,40.700],[-74.000,40.701],[-74.001,40.701],[-74.001,40.700]]]}},
    {"type": "Feature", "properties": {"id": "tree-9", "tree": true},
     "geometry": {"type": "Point", "coordinates": [-73.999, 40.702]}}
  ]
}`

func newTestAPI(t *testing.T, withCatalog bool) (humatest.TestAPI, *service.Session) {
	t.Helper()
	sess := service.NewSession(service.SessionConfig{
		Settings:  service.DefaultSettings,
		Latitude:  40.7128,
		Longitude: -74.0060,
		Seed:      1,
		Now:       func() time.Time { return time.Date(2025, 6, 21, 12, 0, 0, 0, time.UTC) },
	}, service.NewEventRenderer(func(service.Event) {}), zerolog.Nop(), metrics.New())

	svc := &Services{Session: sess, Library: service.NewLibrary(t.TempDir())}
	if withCatalog {
		cat, err := db.Open(db.Config{})
		require.NoError(t, err)
		t.Cleanup(func() { cat.Close() })
		svc.Catalog = cat
	}

	cfg := huma.DefaultConfig("test", "1.0.0")
	cfg.CreateHooks = nil
	_, api := humatest.New(t, cfg)
	huma.AutoRegister(api, NewAPIHandler(svc))
	return api, sess
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(body, &v))
	return v
}

func TestHealthAndInfo(t *testing.T) {
	api, _ := newTestAPI(t, false)

	resp := api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, HealthBody{Status: "ok", Version: Version}, decode[HealthBody](t, resp.Body.Bytes()))

	resp = api.Get("/api/v1/info")
	require.Equal(t, http.StatusOK, resp.Code)
	info := decode[InfoBody](t, resp.Body.Bytes())
	assert.False(t, info.DB)
	assert.NotContains(t, info.Features, "duckdb")
	assert.Contains(t, info.Features, "library")
}

func TestSceneLifecycle(t *testing.T) {
	api, _ := newTestAPI(t, false)

	resp := api.Get("/api/v1/scene")
	assert.Equal(t, http.StatusNotFound, resp.Code, "empty scene has nothing to export")

	resp = api.Post("/api/v1/scene", "Content-Type: application/geo+json", strings.NewReader(sceneDoc))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, service.LoadResult{Buildings: 1, Trees: 1, Upgraded: 1},
		decode[service.LoadResult](t, resp.Body.Bytes()))

	resp = api.Get("/api/v1/scene")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "application/geo+json", resp.Header().Get("Content-Type"))
	assert.Contains(t, resp.Header().Get("Content-Disposition"), service.ExportFilename)
	exported := decode[map[string]any](t, resp.Body.Bytes())
	assert.Len(t, exported["features"], 3)

	resp = api.Get("/api/v1/scene/canopies")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, decode[map[string]any](t, resp.Body.Bytes())["features"], 1)

	resp = api.Get("/api/v1/scene/roads")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)

	resp = api.Delete("/api/v1/scene")
	assert.Equal(t, http.StatusNoContent, resp.Code)
	st := decode[service.State](t, api.Get("/api/v1/state").Body.Bytes())
	assert.Zero(t, st.Buildings)
	assert.Zero(t, st.Trees)
}

func TestLoadScene_Invalid(t *testing.T) {
	api, _ := newTestAPI(t, false)

	resp := api.Post("/api/v1/scene", "Content-Type: application/geo+json", strings.NewReader(`{"type":`))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestTrees(t *testing.T) {
	api, _ := newTestAPI(t, false)

	resp := api.Post("/api/v1/trees", map[string]any{"lng": -74.0, "lat": 40.7, "height": 10})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	tree := decode[service.TreeInfo](t, resp.Body.Bytes())
	assert.Equal(t, "tree-0", tree.ID)
	assert.InDelta(t, 10, tree.Height, 1e-9)
	assert.InDelta(t, -74.0, tree.Position[0], 1e-6)

	api.Post("/api/v1/trees", map[string]any{"lng": -74.0, "lat": 40.8})

	resp = api.Get("/api/v1/trees?limit=1")
	require.Equal(t, http.StatusOK, resp.Code)
	page := decode[map[string]any](t, resp.Body.Bytes())
	assert.Equal(t, 2.0, page["total"])
	assert.Len(t, page["data"], 1)

	resp = api.Get("/api/v1/trees/tree-0")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "tree-0", decode[service.TreeInfo](t, resp.Body.Bytes()).ID)

	resp = api.Delete("/api/v1/trees/tree-0")
	assert.Equal(t, http.StatusNoContent, resp.Code)
	resp = api.Delete("/api/v1/trees/tree-0")
	assert.Equal(t, http.StatusNotFound, resp.Code)
	resp = api.Get("/api/v1/trees/tree-0")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestTreeActions(t *testing.T) {
	b := TreeBody{service.TreeInfo{ID: "tree-4"}}
	actions := b.Actions()
	require.Len(t, actions, 1)
	assert.Equal(t, "/api/v1/trees/tree-4", actions[0].Href)
	assert.Equal(t, http.MethodDelete, actions[0].Method)
}

func TestBuildings(t *testing.T) {
	api, _ := newTestAPI(t, false)
	api.Post("/api/v1/scene", "Content-Type: application/geo+json", strings.NewReader(sceneDoc))

	resp := api.Get("/api/v1/buildings/1")
	require.Equal(t, http.StatusOK, resp.Code)
	b := decode[BuildingBody](t, resp.Body.Bytes())
	assert.Equal(t, 12.0, b.Properties["height"])

	resp = api.Put("/api/v1/buildings/1/properties", map[string]string{"height": "20", "name": "Depot", "ID": "99"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	b = decode[BuildingBody](t, resp.Body.Bytes())
	assert.Equal(t, 20.0, b.Properties["height"])
	assert.Equal(t, "Depot", b.Properties["name"])
	assert.Equal(t, 1.0, b.Properties["ID"], "ID is not editable")

	resp = api.Get("/api/v1/buildings/404")
	assert.Equal(t, http.StatusNotFound, resp.Code)
	resp = api.Put("/api/v1/buildings/404/properties", map[string]string{"a": "b"})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestCatalog_Unavailable(t *testing.T) {
	api, _ := newTestAPI(t, false)

	assert.Equal(t, http.StatusServiceUnavailable, api.Get("/api/v1/stats").Code)
	assert.Equal(t, http.StatusServiceUnavailable, api.Get("/api/v1/tables").Code)
	assert.Equal(t, http.StatusServiceUnavailable, api.Post("/api/v1/query", map[string]any{"query": "SELECT 1"}).Code)
}

func TestCatalog(t *testing.T) {
	api, _ := newTestAPI(t, true)
	api.Post("/api/v1/scene", "Content-Type: application/geo+json", strings.NewReader(sceneDoc))
	api.Post("/api/v1/trees", map[string]any{"lng": -74.0, "lat": 40.8, "height": 10})

	resp := api.Get("/api/v1/stats")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	stats := decode[db.Stats](t, resp.Body.Bytes())
	assert.Equal(t, 1, stats.Buildings)
	assert.Equal(t, 2, stats.Trees)
	assert.InDelta(t, 12, stats.MeanBuilding, 1e-9)
	assert.GreaterOrEqual(t, stats.MaxTreeHeight, 10.0)

	resp = api.Get("/api/v1/tables")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "features")

	resp = api.Post("/api/v1/query", map[string]any{"query": "SELECT count(*) AS n FROM features WHERE kind = 'trunks'"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	res := decode[db.Result](t, resp.Body.Bytes())
	require.Equal(t, 1, res.Count)
	assert.EqualValues(t, 2, res.Rows[0]["n"])

	resp = api.Post("/api/v1/query", map[string]any{"query": "SELECT * FROM nope"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestSettings(t *testing.T) {
	api, _ := newTestAPI(t, false)

	resp := api.Get("/api/v1/settings")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, service.DefaultSettings, decode[service.Settings](t, resp.Body.Bytes()))

	resp = api.Put("/api/v1/settings", map[string]any{"minHeight": 20, "maxHeight": 8, "spacing": 2})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, service.Settings{MinHeight: 8, MaxHeight: 20, Spacing: 2}, decode[service.Settings](t, resp.Body.Bytes()))

	resp = api.Put("/api/v1/settings", map[string]any{"minHeight": -1, "maxHeight": 8, "spacing": 2})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestLibrary(t *testing.T) {
	api, sess := newTestAPI(t, false)

	resp := api.Get("/api/v1/library")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, []any{}, decode[map[string]any](t, resp.Body.Bytes())["scenes"])

	resp = api.Put("/api/v1/library/park.geojson", map[string]any{})
	assert.Equal(t, http.StatusNotFound, resp.Code, "empty scene has nothing to save")

	api.Post("/api/v1/scene", "Content-Type: application/geo+json", strings.NewReader(sceneDoc))
	resp = api.Put("/api/v1/library/park.geojson", map[string]any{})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, "park.geojson", decode[service.SceneFile](t, resp.Body.Bytes()).Name)

	resp = api.Put("/api/v1/library/notes.txt", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	sess.Reset()
	resp = api.Post("/api/v1/library/park.geojson/load", map[string]any{})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, service.LoadResult{Buildings: 1, Trees: 1},
		decode[service.LoadResult](t, resp.Body.Bytes()), "saved trees are already trunk and canopy pairs")

	resp = api.Post("/api/v1/library/gone.geojson/load", map[string]any{})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
