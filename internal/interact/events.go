package interact

import (
	"fmt"

	"github.com/paulmach/orb"
)

// EventKind enumerates the pointer events the editor reacts to.
type EventKind int

const (
	PointerDown EventKind = iota
	PointerMove
	PointerUp
	Click
)

var eventNames = map[EventKind]string{
	PointerDown: "down",
	PointerMove: "move",
	PointerUp:   "up",
	Click:       "click",
}

func (k EventKind) String() string {
	if s, ok := eventNames[k]; ok {
		return s
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// ParseEventKind maps "down", "move", "up" or "click" to an EventKind.
func ParseEventKind(s string) (EventKind, error) {
	for k, name := range eventNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown pointer event %q", s)
}

// PrimaryButton is the button index of a left click.
const PrimaryButton = 0

// PointerEvent is a single pointer input at a geographic position.
type PointerEvent struct {
	Kind   EventKind
	LngLat orb.Point
	Button int
}

// Handler reacts to a pointer event.
type Handler func(ev PointerEvent)

// Dispatcher routes events to the handlers registered for their kind.
type Dispatcher struct {
	handlers map[EventKind][]Handler
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[EventKind][]Handler)}
}

// On registers h for events of the given kind.
func (d *Dispatcher) On(kind EventKind, h Handler) {
	d.handlers[kind] = append(d.handlers[kind], h)
}

// Dispatch calls every handler registered for ev.Kind in registration order.
func (d *Dispatcher) Dispatch(ev PointerEvent) {
	for _, h := range d.handlers[ev.Kind] {
		h(ev)
	}
}
