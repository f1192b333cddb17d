// Package interact implements the tree placement and deletion modes: a small
// state machine driven by pointer events, with drag-based continuous
// placement throttled in time and spaced on the ground.
package interact

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-trees/internal/geom"
)

// Mode is the active editing mode.
type Mode int

const (
	ModeNone Mode = iota
	ModePlace
	ModeDelete
)

func (m Mode) String() string {
	switch m {
	case ModePlace:
		return "continuous-place"
	case ModeDelete:
		return "continuous-delete"
	default:
		return "none"
	}
}

// ParseMode accepts the canonical mode names and the short button names
// "place", "multi" and "delete".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "none":
		return ModeNone, nil
	case "place", "multi", "continuous-place":
		return ModePlace, nil
	case "delete", "continuous-delete":
		return ModeDelete, nil
	}
	return ModeNone, fmt.Errorf("unknown mode %q", s)
}

// Cursor shown while a tree mode is active.
const CrosshairCursor = "crosshair"

// Planter places a tree and returns where it was placed.
type Planter interface {
	PlaceTree(p orb.Point, height float64) orb.Point
}

// Forest resolves and removes trees.
type Forest interface {
	TreesAt(p orb.Point) []string
	DeleteTree(id string) bool
}

// View is the part of the map the editor controls directly.
type View interface {
	SetDragPan(enabled bool)
	SetCursor(cursor string)
}

// Options configures an Editor.
type Options struct {
	// Spacing is the minimum ground distance in metres between consecutive
	// trees of one drag.
	Spacing float64
	// Interval is the pointer-move throttle window; zero means DefaultInterval.
	Interval time.Duration
	// Now is the throttle clock; nil means time.Now.
	Now func() time.Time
}

// Editor is the placement/deletion state machine.
type Editor struct {
	planter Planter
	forest  Forest
	view    View

	mode     Mode
	spacing  float64
	dragging bool
	last     orb.Point
	hasLast  bool

	events *Dispatcher
}

// NewEditor wires an editor to its collaborators.
func NewEditor(planter Planter, forest Forest, view View, opts Options) *Editor {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	e := &Editor{
		planter: planter,
		forest:  forest,
		view:    view,
		spacing: max(opts.Spacing, 0),
		events:  NewDispatcher(),
	}

	throttle := NewThrottle(opts.Interval, opts.Now)
	e.events.On(PointerDown, e.pointerDown)
	e.events.On(PointerMove, throttle.Wrap(e.pointerMove))
	e.events.On(PointerUp, e.pointerUp)
	e.events.On(Click, e.click)
	return e
}

// Mode returns the active mode.
func (e *Editor) Mode() Mode { return e.mode }

// Dragging reports whether a drag is in progress.
func (e *Editor) Dragging() bool { return e.dragging }

// PopupsAllowed reports whether a click may open a building popup. Tree
// editing and building editing never share a click.
func (e *Editor) PopupsAllowed() bool { return e.mode == ModeNone }

// Spacing returns the minimum spacing in metres.
func (e *Editor) Spacing() float64 { return e.spacing }

// SetSpacing updates the minimum spacing; negative values become zero.
func (e *Editor) SetSpacing(m float64) { e.spacing = max(m, 0) }

// SetMode selects m. Selecting the active mode again, or ModeNone, returns
// to ModeNone. Any drag in progress is discarded.
func (e *Editor) SetMode(m Mode) Mode {
	if m == e.mode {
		m = ModeNone
	}
	e.mode = m
	e.dragging = false
	e.hasLast = false

	if m == ModeNone {
		e.view.SetDragPan(true)
		e.view.SetCursor("")
	} else {
		e.view.SetDragPan(false)
		e.view.SetCursor(CrosshairCursor)
	}
	return e.mode
}

// Reset leaves any tree mode.
func (e *Editor) Reset() {
	e.SetMode(ModeNone)
}

// Handle feeds one pointer event through the state machine.
func (e *Editor) Handle(ev PointerEvent) {
	e.events.Dispatch(ev)
}

func (e *Editor) pointerDown(ev PointerEvent) {
	if ev.Button != PrimaryButton {
		return
	}
	switch e.mode {
	case ModePlace:
		e.dragging = true
		e.view.SetDragPan(false)
		e.last = e.planter.PlaceTree(ev.LngLat, 0)
		e.hasLast = true
	case ModeDelete:
		e.dragging = true
		e.view.SetDragPan(false)
		e.deleteAt(ev.LngLat)
	}
}

func (e *Editor) pointerMove(ev PointerEvent) {
	if !e.dragging {
		return
	}
	switch e.mode {
	case ModePlace:
		if !e.hasLast || geom.Distance(e.last, ev.LngLat) > e.spacing {
			e.last = e.planter.PlaceTree(ev.LngLat, 0)
			e.hasLast = true
		}
	case ModeDelete:
		e.deleteAt(ev.LngLat)
	}
}

func (e *Editor) pointerUp(PointerEvent) {
	if e.dragging {
		e.dragging = false
		e.hasLast = false
	}
	if e.mode == ModeNone {
		e.view.SetDragPan(true)
	}
}

func (e *Editor) click(ev PointerEvent) {
	if e.mode == ModeDelete {
		e.deleteAt(ev.LngLat)
	}
}

// deleteAt removes the topmost tree under p, if any.
func (e *Editor) deleteAt(p orb.Point) bool {
	hits := e.forest.TreesAt(p)
	if len(hits) == 0 {
		return false
	}
	return e.forest.DeleteTree(hits[0])
}
