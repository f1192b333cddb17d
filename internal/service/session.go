package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"

	"github.com/joeblew999/plat-trees/internal/attrs"
	"github.com/joeblew999/plat-trees/internal/geom"
	"github.com/joeblew999/plat-trees/internal/interact"
	"github.com/joeblew999/plat-trees/internal/metrics"
	"github.com/joeblew999/plat-trees/internal/scene"
	"github.com/joeblew999/plat-trees/internal/sun"
)

const (
	// FlyToZoom is the zoom level used when centring on a loaded file.
	FlyToZoom = 16
	// ExportFilename is the suggested name of an exported scene.
	ExportFilename = "data-with-trees.geojson"
)

var (
	ErrLoadInProgress   = errors.New("a file is already loading")
	ErrNothingToExport  = errors.New("nothing to export")
	ErrPopupSuppressed  = errors.New("building popups are disabled while a tree mode is active")
	ErrBuildingNotFound = errors.New("building not found")
	ErrTreeNotFound     = errors.New("tree not found")
)

// DefaultSettings mirror the editor's initial controls.
var DefaultSettings = Settings{MinHeight: 5, MaxHeight: 15, Spacing: 5}

// SessionConfig configures a Session.
type SessionConfig struct {
	Settings Settings

	// Latitude and Longitude place the sun.
	Latitude  float64
	Longitude float64
	// Location is the time zone the sun sliders are read in; nil means UTC.
	Location *time.Location

	// Seed fixes the height randomisation; zero seeds from the clock.
	Seed uint64
	// Now is the session clock; nil means time.Now.
	Now func() time.Time
	// ThrottleInterval overrides the pointer-move throttle window.
	ThrottleInterval time.Duration
}

// Session is one editing session: the scene, the interaction state machine,
// the attribute editor and the lighting. All methods are safe for concurrent
// use; they are serialised so the session behaves as a single actor.
type Session struct {
	mu      sync.Mutex
	loading atomic.Bool

	cfg      SessionConfig
	store    *scene.Store
	gen      *scene.Generator
	editor   *interact.Editor
	attrs    *attrs.Editor
	controls *sun.Controls
	lights   []sun.Light

	renderer Renderer
	log      zerolog.Logger
	metrics  *metrics.Metrics
}

// NewSession creates a session rendering through r. m may be nil.
func NewSession(cfg SessionConfig, r Renderer, log zerolog.Logger, m *metrics.Metrics) *Session {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(cfg.Now().UnixNano())
	}

	s := &Session{
		cfg:      cfg,
		store:    scene.NewStore(),
		controls: sun.NewControls(),
		renderer: r,
		log:      log.With().Str("component", "session").Logger(),
		metrics:  m,
	}
	s.gen = scene.NewGenerator(s.store, rand.NewPCG(seed, seed>>1|1), scene.Heights{
		Min: cfg.Settings.MinHeight,
		Max: cfg.Settings.MaxHeight,
	})
	s.attrs = attrs.New(s.store)
	s.editor = interact.NewEditor(forest{s}, forest{s}, r, interact.Options{
		Spacing:  cfg.Settings.Spacing,
		Interval: cfg.ThrottleInterval,
		Now:      cfg.Now,
	})

	s.store.OnChange(func(changed ...scene.Collection) {
		for _, c := range changed {
			s.renderer.SetData(SourceFor(c), s.store.Collection(c))
		}
		s.metrics.SetSceneSize(s.store.BuildingCount(), s.store.TreeCount())
	})

	s.updateLights()
	return s
}

// forest adapts the session to the interaction editor. Its methods run with
// s.mu already held.
type forest struct{ s *Session }

func (f forest) PlaceTree(p orb.Point, height float64) orb.Point {
	f.plant(p, height)
	return p
}

func (f forest) plant(p orb.Point, height float64) *scene.Tree {
	t := f.s.gen.Plant(p, height)
	f.s.metrics.AddTreesPlaced(1)
	f.s.log.Debug().Str("tree", t.ID).Float64("height", t.Height()).Msg("tree placed")
	return t
}

func (f forest) TreesAt(p orb.Point) []string {
	return f.s.store.TreesAt(p)
}

func (f forest) DeleteTree(id string) bool {
	if !f.s.store.DeleteTree(id) {
		return false
	}
	f.s.metrics.AddTreesDeleted(1)
	f.s.log.Debug().Str("tree", id).Msg("tree deleted")
	return true
}

// Load replaces the scene with a GeoJSON document. Legacy point trees are
// rebuilt, and the view is centred on the loaded data. The previous scene is
// kept when data is not valid GeoJSON.
func (s *Session) Load(data []byte) (LoadResult, error) {
	if !s.loading.CompareAndSwap(false, true) {
		s.metrics.ObserveLoad("busy")
		return LoadResult{}, ErrLoadInProgress
	}
	defer s.loading.Store(false)

	raw, err := scene.Decode(data)
	if err != nil {
		s.metrics.ObserveLoad("invalid")
		s.log.Warn().Err(err).Int("bytes", len(data)).Msg("load rejected")
		return LoadResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	part := scene.Classify(raw, s.gen)
	s.store.Replace(part)
	if center, ok := geom.Center(raw); ok {
		s.renderer.FlyTo(center, FlyToZoom)
	}

	res := LoadResult{
		Buildings: len(part.Buildings),
		Trees:     len(part.Trees),
		Upgraded:  part.Upgraded,
		Dropped:   part.Dropped,
		Orphans:   part.Orphans,
	}
	s.metrics.ObserveLoad("ok")
	s.metrics.AddTreesPlaced(part.Upgraded)
	s.log.Info().
		Int("buildings", res.Buildings).
		Int("trees", res.Trees).
		Int("upgraded", res.Upgraded).
		Int("dropped", res.Dropped).
		Int("orphans", res.Orphans).
		Msg("scene loaded")
	return res, nil
}

// Loading reports whether a load is pending.
func (s *Session) Loading() bool {
	return s.loading.Load()
}

// Export serialises buildings, trunks and canopies as one indented
// FeatureCollection.
func (s *Session) Export() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store.BuildingCount() == 0 && s.store.TreeCount() == 0 {
		return nil, ErrNothingToExport
	}
	data, err := json.MarshalIndent(s.store.Combined(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode scene: %w", err)
	}
	s.log.Info().Int("bytes", len(data)).Msg("scene exported")
	return data, nil
}

// CollectionJSON encodes one collection.
func (s *Session) CollectionJSON(c scene.Collection) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.Marshal(s.store.Collection(c))
}

// CombinedJSON encodes the whole scene, empty or not.
func (s *Session) CombinedJSON() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.Marshal(s.store.Combined())
}

// Reset clears every collection, leaves tree mode and closes the attribute
// editor. Tree ids keep counting from where they were.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attrs.Close()
	s.store.Clear()
	s.editor.Reset()
	s.renderer.ModeChanged(s.editor.Mode())
	s.log.Info().Msg("scene reset")
}

// SetMode toggles a tree mode and returns the resulting mode.
func (s *Session) SetMode(m interact.Mode) interact.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()

	mode := s.editor.SetMode(m)
	if mode != interact.ModeNone {
		s.attrs.Close()
	}
	s.renderer.ModeChanged(mode)
	s.log.Debug().Stringer("mode", mode).Msg("mode changed")
	return mode
}

// Mode returns the active tree mode.
func (s *Session) Mode() interact.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editor.Mode()
}

// Pointer feeds a map pointer event to the interaction state machine.
func (s *Session) Pointer(ev interact.PointerEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editor.Handle(ev)
}

// PlaceTree plants one tree at p. A height of zero or less is random.
func (s *Session) PlaceTree(p orb.Point, height float64) *scene.Tree {
	s.mu.Lock()
	defer s.mu.Unlock()
	return forest{s}.plant(p, height)
}

// DeleteTree removes the tree with the given id.
func (s *Session) DeleteTree(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !(forest{s}).DeleteTree(id) {
		return ErrTreeNotFound
	}
	return nil
}

// Tree returns the tree with the given id.
func (s *Session) Tree(id string) (*scene.Tree, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Tree(id)
}

// Trees lists the placed trees in placement order.
func (s *Session) Trees() []TreeInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	trees := s.store.Trees()
	out := make([]TreeInfo, len(trees))
	for i, t := range trees {
		out[i] = DescribeTree(t)
	}
	return out
}

// Building returns a copy of a building's properties.
func (s *Session) Building(id string) (geojson.Properties, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.store.Building(id)
	if !ok {
		return nil, false
	}
	return f.Properties.Clone(), true
}

// OpenBuilding starts an attribute editing session on a building. Popups
// are suppressed while a tree mode is active.
func (s *Session) OpenBuilding(id string) ([]attrs.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.editor.PopupsAllowed() {
		return nil, ErrPopupSuppressed
	}
	f, ok := s.store.Building(id)
	if !ok {
		return nil, ErrBuildingNotFound
	}
	s.attrs.Open(f)
	return s.attrs.Rows(), nil
}

// OpenBuildingAt opens the topmost building under p.
func (s *Session) OpenBuildingAt(p orb.Point) ([]attrs.Row, error) {
	s.mu.Lock()
	id, ok := s.buildingAt(p)
	s.mu.Unlock()
	if !ok {
		return nil, ErrBuildingNotFound
	}
	return s.OpenBuilding(id)
}

func (s *Session) buildingAt(p orb.Point) (string, bool) {
	fc := s.store.Collection(scene.Buildings)
	for i := len(fc.Features) - 1; i >= 0; i-- {
		f := fc.Features[i]
		v, ok := f.Properties[scene.PropBuildingID]
		if !ok {
			continue
		}
		if geom.Contains(f.Geometry, p) {
			return scene.FormatValue(v), true
		}
	}
	return "", false
}

// Attributes returns the open attribute session, if any.
func (s *Session) Attributes() (*AttributeState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attributeState()
}

func (s *Session) attributeState() (*AttributeState, bool) {
	id, open := s.attrs.Selected()
	if !open {
		return nil, false
	}
	return &AttributeState{BuildingID: id, Rows: s.attrs.Rows()}, true
}

// AddAttributeRow appends a blank row to the open session.
func (s *Session) AddAttributeRow() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attrs.AddRow()
}

// RemoveAttributeRow removes row i of the open session.
func (s *Session) RemoveAttributeRow(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attrs.RemoveRow(i)
}

// SetAttributeRow edits row i of the open session.
func (s *Session) SetAttributeRow(i int, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attrs.SetRow(i, key, value)
}

// CommitAttributes writes the open session back to its building and closes
// the session.
func (s *Session) CommitAttributes() (geojson.Properties, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, _ := s.attrs.Selected()
	props, err := s.attrs.Commit()
	switch {
	case errors.Is(err, attrs.ErrNotFound):
		s.metrics.ObserveCommit("not_found")
		s.log.Warn().Str("building", id).Msg("attribute commit target vanished")
		return nil, err
	case err != nil:
		return nil, err
	}
	s.metrics.ObserveCommit("ok")
	s.log.Info().Str("building", id).Int("properties", len(props)).Msg("attributes saved")
	return props, nil
}

// CloseAttributes discards the open session.
func (s *Session) CloseAttributes() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attrs.Close()
}

// UpdateBuilding replaces a building's properties from text values, coerced
// the same way as the attribute editor. The ID property cannot change.
func (s *Session) UpdateBuilding(id string, values map[string]string) (geojson.Properties, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.store.Building(id)
	if !ok {
		s.metrics.ObserveCommit("not_found")
		return nil, ErrBuildingNotFound
	}
	rows := make([]attrs.Row, 0, len(values))
	for k, v := range values {
		if k == scene.PropBuildingID {
			continue
		}
		rows = append(rows, attrs.Row{Key: k, Value: v})
	}
	props := attrs.Properties(rows)
	props[scene.PropBuildingID] = f.Properties[scene.PropBuildingID]

	s.store.SetBuildingProperties(id, props)
	s.metrics.ObserveCommit("ok")
	s.log.Info().Str("building", id).Int("properties", len(props)).Msg("building updated")
	return props, nil
}

// SetSun moves one date/time slider from text input and relights the scene.
// Unparseable input leaves the lighting unchanged.
func (s *Session) SetSun(name, text string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.controls.SetText(name, text)
	if err != nil {
		s.metrics.IncLightingSkip()
		s.log.Warn().Err(err).Str("component", name).Str("value", text).Msg("lighting update skipped")
		return 0, err
	}
	s.updateLights()
	return v, nil
}

// Sun returns the slider state and current lights.
func (s *Session) Sun() ([]sun.Component, []sun.Light) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.controls.Components(), append([]sun.Light(nil), s.lights...)
}

func (s *Session) updateLights() {
	date := s.controls.Date(s.cfg.Now().In(s.cfg.Location).Year(), s.cfg.Location)
	pos := sun.PositionAt(date, s.cfg.Latitude, s.cfg.Longitude)
	s.lights = sun.Lights(pos)
	s.renderer.SetLights(s.lights)
	s.log.Debug().
		Time("date", date).
		Float64("azimuth", pos.Azimuth).
		Float64("altitude", pos.Altitude).
		Msg("lighting updated")
}

// SetSettings updates height bounds and spacing, returning the normalised
// values in effect.
func (s *Session) SetSettings(set Settings) Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen.SetHeights(scene.Heights{Min: set.MinHeight, Max: set.MaxHeight})
	s.editor.SetSpacing(set.Spacing)
	return s.settings()
}

// Settings returns the settings in effect.
func (s *Session) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings()
}

func (s *Session) settings() Settings {
	h := s.gen.Heights()
	return Settings{MinHeight: h.Min, MaxHeight: h.Max, Spacing: s.editor.Spacing()}
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		Mode:      s.editor.Mode().String(),
		Dragging:  s.editor.Dragging(),
		Buildings: s.store.BuildingCount(),
		Trees:     s.store.TreeCount(),
		Loading:   s.loading.Load(),
		Settings:  s.settings(),
		Sun:       s.controls.Components(),
		Lights:    append([]sun.Light(nil), s.lights...),
	}
	if a, ok := s.attributeState(); ok {
		st.Attributes = a
	}
	return st
}

// Replay renders the full current state into r, for a freshly attached map.
func (s *Session) Replay(r Renderer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range scene.Collections {
		r.SetData(SourceFor(c), s.store.Collection(c))
	}
	r.SetLights(s.lights)
	mode := s.editor.Mode()
	r.SetDragPan(mode == interact.ModeNone)
	if mode == interact.ModeNone {
		r.SetCursor("")
	} else {
		r.SetCursor(interact.CrosshairCursor)
	}
	r.ModeChanged(mode)
}
