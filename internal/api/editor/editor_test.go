package editor

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-trees/internal/interact"
	"github.com/joeblew999/plat-trees/internal/metrics"
	"github.com/joeblew999/plat-trees/internal/service"
	"github.com/joeblew999/plat-trees/internal/templates"
)

const sceneDoc = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"ID": 1, "height": 12},
     "geometry": {"type": "Polygon", "coordinates": [[[-74.001,40.700],[-74.000,40.700],[-74.000,40.701],[-74.001,40.701],[-74.001,40.700]]]}}
  ]
}`

type fixture struct {
	api     humatest.TestAPI
	mux     *http.ServeMux
	session *service.Session
	bus     *service.EventBus
}

// newFixture serves the editor through humago, which the SSE helpers
// unwrap to reach the response writer.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	bus := service.NewEventBus()
	sess := service.NewSession(service.SessionConfig{
		Settings:  service.DefaultSettings,
		Latitude:  40.7128,
		Longitude: -74.0060,
		Seed:      3,
		Now:       func() time.Time { return time.Date(2025, 6, 21, 12, 0, 0, 0, time.UTC) },
	}, service.NewBusRenderer(bus), zerolog.Nop(), metrics.New())

	r, err := templates.New()
	require.NoError(t, err)

	mux := http.NewServeMux()
	cfg := huma.DefaultConfig("test", "1.0.0")
	cfg.CreateHooks = nil
	api := humago.New(mux, cfg)
	huma.AutoRegister(api, NewHandler(sess, bus, r, zerolog.Nop()))

	return &fixture{api: humatest.Wrap(t, api), mux: mux, session: sess, bus: bus}
}

func (f *fixture) load(t *testing.T) {
	t.Helper()
	_, err := f.session.Load([]byte(sceneDoc))
	require.NoError(t, err)
}

func TestSetMode(t *testing.T) {
	f := newFixture(t)

	resp := f.api.Post("/api/v1/editor/mode/continuous-place", map[string]any{})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "datastar-patch-elements")
	assert.Contains(t, resp.Body.String(), "active")
	assert.Equal(t, interact.ModePlace, f.session.Mode())

	f.api.Post("/api/v1/editor/mode/continuous-place", map[string]any{})
	assert.Equal(t, interact.ModeNone, f.session.Mode(), "selecting the active mode turns it off")

	resp = f.api.Post("/api/v1/editor/mode/sideways", map[string]any{})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestPointer_PlaceDrag(t *testing.T) {
	f := newFixture(t)
	f.session.SetMode(interact.ModePlace)

	resp := f.api.Post("/api/v1/editor/pointer/down", map[string]any{"lng": -74.0, "lat": 40.7, "button": 0})
	require.Equal(t, http.StatusOK, resp.Code)
	f.api.Post("/api/v1/editor/pointer/up", map[string]any{"lng": -74.0, "lat": 40.7, "button": 0})

	assert.Equal(t, 1, f.session.State().Trees)
	assert.False(t, f.session.State().Dragging)

	resp = f.api.Post("/api/v1/editor/pointer/down", map[string]any{"button": 0})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestPointer_ClickOpensBuilding(t *testing.T) {
	f := newFixture(t)
	f.load(t)

	resp := f.api.Post("/api/v1/editor/pointer/click", map[string]any{"lng": -74.0005, "lat": 40.7005, "button": 0})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "attribute-popup")
	a, ok := f.session.Attributes()
	require.True(t, ok)
	assert.Equal(t, "1", a.BuildingID)
}

func TestPointer_ClickSuppressedInTreeMode(t *testing.T) {
	f := newFixture(t)
	f.load(t)
	f.session.SetMode(interact.ModeDelete)

	resp := f.api.Post("/api/v1/editor/pointer/click", map[string]any{"lng": -74.0005, "lat": 40.7005, "button": 0})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.NotContains(t, resp.Body.String(), "attribute-popup")
	_, ok := f.session.Attributes()
	assert.False(t, ok)
}

func TestAttributes_AddAndSave(t *testing.T) {
	f := newFixture(t)
	f.load(t)

	resp := f.api.Post("/api/v1/editor/buildings/open", map[string]any{"buildingid": "1"})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "attrkey1")

	resp = f.api.Post("/api/v1/editor/attributes/add", map[string]any{"attrkey1": "height", "attrval1": "12"})
	require.Equal(t, http.StatusOK, resp.Code)
	a, ok := f.session.Attributes()
	require.True(t, ok)
	require.Len(t, a.Rows, 3)

	resp = f.api.Post("/api/v1/editor/attributes/save", map[string]any{
		"attrkey1": "height", "attrval1": "30",
		"attrkey2": "name", "attrval2": "Depot",
	})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "Attributes saved")

	props, ok := f.session.Building("1")
	require.True(t, ok)
	assert.Equal(t, 30.0, props["height"])
	assert.Equal(t, "Depot", props["name"])
	_, open := f.session.Attributes()
	assert.False(t, open, "save closes the editor")
}

func TestAttributes_Errors(t *testing.T) {
	f := newFixture(t)
	f.load(t)

	resp := f.api.Post("/api/v1/editor/attributes/save", map[string]any{})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "error")

	f.api.Post("/api/v1/editor/buildings/open", map[string]any{"buildingid": "1"})
	resp = f.api.Post("/api/v1/editor/attributes/remove?row=0", map[string]any{})
	assert.Contains(t, resp.Body.String(), "cannot be changed")

	resp = f.api.Post("/api/v1/editor/attributes/close", map[string]any{})
	require.Equal(t, http.StatusOK, resp.Code)
	_, open := f.session.Attributes()
	assert.False(t, open)

	resp = f.api.Post("/api/v1/editor/buildings/open", map[string]any{"buildingid": "404"})
	assert.Contains(t, resp.Body.String(), "error")
}

func TestSun(t *testing.T) {
	f := newFixture(t)

	resp := f.api.Post("/api/v1/editor/sun?component=hour", map[string]any{"sunhour": "18"})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"sunhour":18`)

	resp = f.api.Post("/api/v1/editor/sun?component=hour", map[string]any{"sunhour": "late"})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"sunhour":18`, "bad input resyncs to the stored value")

	resp = f.api.Get("/api/v1/editor/sun")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "sun-controls")
}

func TestSettings(t *testing.T) {
	f := newFixture(t)

	resp := f.api.Post(SettingsPath, map[string]any{
		"settingsminheight": "3",
		"settingsmaxheight": 9,
		"settingsspacing":   "x",
	})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, service.Settings{MinHeight: 3, MaxHeight: 9, Spacing: service.DefaultSettings.Spacing}, f.session.Settings())
}

func TestUpload(t *testing.T) {
	f := newFixture(t)

	post := func(name, content string) *httptest.ResponseRecorder {
		var body bytes.Buffer
		w := multipart.NewWriter(&body)
		part, err := w.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
		require.NoError(t, w.Close())
		return f.api.Post("/api/v1/editor/upload", "Content-Type: "+w.FormDataContentType(), &body)
	}

	resp := post("scene.txt", sceneDoc)
	assert.Contains(t, resp.Body.String(), "Only .geojson")

	resp = post("broken.geojson", `{"type":`)
	assert.Contains(t, resp.Body.String(), "Invalid GeoJSON")

	resp = post("scene.geojson", sceneDoc)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "1 buildings")
	assert.NotContains(t, resp.Body.String(), "skipped")
	assert.Equal(t, 1, f.session.State().Buildings)

	resp = post("messy.geojson", `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"isTrunk":true,"height":4},"geometry":{"type":"Polygon","coordinates":[[[-74.001,40.700],[-74.0009,40.700],[-74.0009,40.7001],[-74.001,40.700]]]}},
		{"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[-74,40.7],[-74.001,40.701]]}}
	]}`)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "0 buildings, 1 trees")
	assert.Contains(t, resp.Body.String(), "1 unpaired tree halves repaired")
	assert.Contains(t, resp.Body.String(), "1 unsupported features skipped")
	assert.Equal(t, 1, f.session.State().Trees)
}

func TestReset(t *testing.T) {
	f := newFixture(t)
	f.load(t)
	f.session.SetMode(interact.ModePlace)

	resp := f.api.Post("/api/v1/editor/reset", map[string]any{})
	require.Equal(t, http.StatusOK, resp.Code)
	st := f.session.State()
	assert.Zero(t, st.Buildings)
	assert.Equal(t, "none", st.Mode)
}

func TestEvents_ReplaysState(t *testing.T) {
	f := newFixture(t)
	f.load(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/editor/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)

	body := rec.Body.String()
	for _, name := range []string{service.EventSetData, service.EventSetLights, service.EventTreeMode} {
		assert.True(t, strings.Contains(body, name), "replay includes %s", name)
	}
	assert.Contains(t, body, "scene-status")
	assert.Zero(t, f.bus.Subscribers(), "stream unsubscribes on close")
}
