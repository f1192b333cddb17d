package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/joeblew999/plat-trees/internal/api"
	"github.com/joeblew999/plat-trees/internal/api/editor"
	"github.com/joeblew999/plat-trees/internal/db"
	"github.com/joeblew999/plat-trees/internal/humastar"
	"github.com/joeblew999/plat-trees/internal/metrics"
	"github.com/joeblew999/plat-trees/internal/service"
	"github.com/joeblew999/plat-trees/internal/templates"
)

// Config holds the server configuration.
type Config struct {
	Host        string
	Port        string
	DataDir     string // DuckDB file and scene library; empty keeps the catalog in memory
	WebDir      string // optional fragments override, for editing templates without rebuilding
	MapboxToken string
	NoDB        bool
	Session     service.SessionConfig
	Log         zerolog.Logger
}

// Server is the tree editor HTTP server.
type Server struct {
	config   Config
	mux      *http.ServeMux
	handler  http.Handler
	humaAPI  huma.API
	session  *service.Session
	bus      *service.EventBus
	catalog  *db.Catalog
	library  *service.Library
	renderer *templates.Renderer
	metrics  *metrics.Metrics
	links    *humastar.Links
	settings humastar.DatastarSchemaConfig
	log      zerolog.Logger
}

// New creates a new tree editor server.
func New(cfg Config) (*Server, error) {
	mux := http.NewServeMux()
	links := &humastar.Links{}

	humaConfig := huma.DefaultConfig("plat-trees API", "1.0.0")
	humaConfig.Info.Description = "3D building and tree editor: load GeoJSON, plant and delete trees, edit building attributes and light the scene by the sun."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = nil
	humaConfig.Transformers = append(humaConfig.Transformers, links.Transformer())

	humaAPI := humago.New(mux, humaConfig)

	renderer, err := newRenderer(cfg)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	m := metrics.New()
	bus := service.NewEventBus()
	sess := service.NewSession(cfg.Session, service.NewBusRenderer(bus), cfg.Log, m)

	s := &Server{
		config:   cfg,
		mux:      mux,
		humaAPI:  humaAPI,
		session:  sess,
		bus:      bus,
		renderer: renderer,
		metrics:  m,
		links:    links,
		log:      cfg.Log,
		settings: humastar.DatastarSchemaConfig{
			Type:     reflect.TypeOf(service.Settings{}),
			Prefix:   editor.SettingsPrefix,
			FormTmpl: "settings-form",
			BasePath: editor.SettingsPath,
		},
	}

	if cfg.DataDir != "" {
		s.library = service.NewLibrary(cfg.DataDir)
	}
	if !cfg.NoDB {
		catalog, err := db.Open(db.Config{DataDir: cfg.DataDir, DBName: "trees"})
		if err != nil {
			s.log.Warn().Err(err).Msg("duckdb unavailable, catalog routes disabled")
		} else {
			s.catalog = catalog
		}
	}

	if err := s.routes(); err != nil {
		s.Close()
		return nil, err
	}
	s.handler = chi.Chain(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		s.accessLog,
	).Handler(mux)
	return s, nil
}

func newRenderer(cfg Config) (*templates.Renderer, error) {
	if cfg.WebDir != "" {
		dir := filepath.Join(cfg.WebDir, "templates", "fragments")
		r, err := templates.NewFromDir(dir)
		if err == nil {
			cfg.Log.Info().Str("dir", dir).Msg("loaded fragment templates")
			return r, nil
		}
		cfg.Log.Warn().Err(err).Str("dir", dir).Msg("fragment directory unusable, using embedded templates")
	}
	return templates.New()
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Session returns the editing session.
func (s *Server) Session() *service.Session {
	return s.session
}

// Close closes server resources.
func (s *Server) Close() error {
	return s.catalog.Close()
}

func (s *Server) routes() error {
	// Register Huma REST API routes (OpenAPI-documented JSON endpoints)
	huma.AutoRegister(s.humaAPI, api.NewAPIHandler(&api.Services{
		Session: s.session,
		Catalog: s.catalog,
		Library: s.library,
	}))

	// Register Editor SSE routes using Huma + Datastar SDK
	huma.AutoRegister(s.humaAPI, editor.NewHandler(s.session, s.bus, s.renderer, s.log))

	// Schema-driven forms need every schema registered first.
	humastar.InjectExtensions(s.humaAPI, []humastar.DatastarSchemaConfig{s.settings})
	if err := humastar.RegisterFormTemplates(s.humaAPI, s.renderer); err != nil {
		return fmt.Errorf("register forms: %w", err)
	}
	*s.links = *humastar.AutoLinks(s.humaAPI)

	s.mux.Handle("/metrics", s.metrics.Handler())

	// Page routes
	s.mux.HandleFunc("/editor", s.handleEditor)
	s.mux.HandleFunc("/", s.handleRoot)
	return nil
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		level := zerolog.InfoLevel
		if strings.HasPrefix(r.URL.Path, "/api/v1/editor/pointer/") {
			level = zerolog.TraceLevel
		}
		s.log.WithLevel(level).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("http_request")
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	for _, link := range s.links.Root() {
		w.Header().Add("Link", link)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "plat-trees",
		"status":  "running",
		"editor":  "/editor",
	})
}

// editorPage is the data for the editor-page template.
type editorPage struct {
	Title       string
	MapboxToken string
	Center      [2]float64
	Signals     string
	Page        humastar.PageData
	State       service.State
}

func (s *Server) handleEditor(w http.ResponseWriter, r *http.Request) {
	st := s.session.State()
	page := humastar.BuildPageData(s.humaAPI, s.settings, map[string]any{
		"minHeight": st.Settings.MinHeight,
		"maxHeight": st.Settings.MaxHeight,
		"spacing":   st.Settings.Spacing,
	}, s.uiSignals(st))

	html, err := s.renderer.Render("editor-page", editorPage{
		Title:       "plat-trees editor",
		MapboxToken: s.config.MapboxToken,
		Center:      [2]float64{s.config.Session.Longitude, s.config.Session.Latitude},
		Signals:     page.Signals,
		Page:        page,
		State:       st,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("render editor page")
		http.Error(w, "failed to render editor", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(html))
}

// uiSignals are the page-only signals: pointer position, slider values and
// the message slots.
func (s *Server) uiSignals(st service.State) map[string]any {
	signals := map[string]any{
		"lng":     0,
		"lat":     0,
		"button":  0,
		"error":   "",
		"success": "",
	}
	for _, c := range st.Sun {
		signals["sun"+c.Name] = c.Value
	}
	return signals
}
