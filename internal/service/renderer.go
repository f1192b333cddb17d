package service

import (
	"encoding/json"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-trees/internal/interact"
	"github.com/joeblew999/plat-trees/internal/scene"
	"github.com/joeblew999/plat-trees/internal/sun"
)

// Map source ids, shared with the page's layer definitions.
const (
	SourceBuildings = "geojson-data"
	SourceTrunks    = "tree-trunks-source"
	SourceCanopies  = "tree-canopies-source"
)

// Render command names.
const (
	EventSetData   = "map-set-data"
	EventFlyTo     = "map-fly-to"
	EventSetLights = "map-set-lights"
	EventDragPan   = "map-drag-pan"
	EventCursor    = "map-cursor"
	EventTreeMode  = "tree-mode"
)

// SourceFor maps a collection to the map source displaying it.
func SourceFor(c scene.Collection) string {
	switch c {
	case scene.Trunks:
		return SourceTrunks
	case scene.Canopies:
		return SourceCanopies
	default:
		return SourceBuildings
	}
}

// Renderer is the map the session drives.
type Renderer interface {
	interact.View
	SetData(source string, fc *geojson.FeatureCollection)
	FlyTo(center orb.Point, zoom float64)
	SetLights(lights []sun.Light)
	ModeChanged(mode interact.Mode)
}

// EventRenderer turns render calls into Events. Payloads are encoded
// immediately so later scene edits never race with delivery.
type EventRenderer struct {
	emit func(Event)
}

// NewEventRenderer creates a renderer that hands every event to emit.
func NewEventRenderer(emit func(Event)) *EventRenderer {
	return &EventRenderer{emit: emit}
}

// NewBusRenderer creates a renderer publishing on bus.
func NewBusRenderer(bus *EventBus) *EventRenderer {
	return NewEventRenderer(bus.Publish)
}

// send emits an event keyed by its name; each command replaces the state
// the previous one of the same name set.
func (r *EventRenderer) send(name string, detail any) {
	r.sendKeyed(name, name, detail)
}

func (r *EventRenderer) sendKeyed(name, key string, detail any) {
	b, err := json.Marshal(detail)
	if err != nil {
		return
	}
	r.emit(Event{Name: name, Detail: b, Key: key})
}

// SetData is keyed per source so the latest data of every source survives.
func (r *EventRenderer) SetData(source string, fc *geojson.FeatureCollection) {
	r.sendKeyed(EventSetData, EventSetData+":"+source, map[string]any{"source": source, "data": fc})
}

func (r *EventRenderer) FlyTo(center orb.Point, zoom float64) {
	r.send(EventFlyTo, map[string]any{"center": []float64{center[0], center[1]}, "zoom": zoom})
}

func (r *EventRenderer) SetLights(lights []sun.Light) {
	r.send(EventSetLights, lights)
}

func (r *EventRenderer) SetDragPan(enabled bool) {
	r.send(EventDragPan, map[string]any{"enabled": enabled})
}

func (r *EventRenderer) SetCursor(cursor string) {
	r.send(EventCursor, map[string]any{"cursor": cursor})
}

func (r *EventRenderer) ModeChanged(mode interact.Mode) {
	r.send(EventTreeMode, map[string]any{"mode": mode.String()})
}
