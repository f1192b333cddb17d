package sun

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidDate      = errors.New("invalid date value")
	ErrUnknownComponent = errors.New("unknown date component")
)

// Component is one of the four date/time sliders.
type Component struct {
	Name  string `json:"name"`
	Min   int    `json:"min"`
	Max   int    `json:"max"`
	Value int    `json:"value"`
}

// Controls holds the month, day, hour and minute sliders. Each slider is
// paired with a numeric input; both always show the same clamped value.
type Controls struct {
	components []Component
}

// NewControls starts the sliders at midsummer noon.
func NewControls() *Controls {
	return &Controls{components: []Component{
		{Name: "month", Min: 1, Max: 12, Value: 6},
		{Name: "day", Min: 1, Max: 31, Value: 21},
		{Name: "hour", Min: 0, Max: 23, Value: 12},
		{Name: "minute", Min: 0, Max: 59, Value: 0},
	}}
}

// Components returns a copy of the slider state.
func (c *Controls) Components() []Component {
	out := make([]Component, len(c.components))
	copy(out, c.components)
	return out
}

// Value returns the current value of a component.
func (c *Controls) Value(name string) (int, bool) {
	for _, comp := range c.components {
		if comp.Name == name {
			return comp.Value, true
		}
	}
	return 0, false
}

// Set stores v for the named component, clamped to its bounds, and returns
// the stored value.
func (c *Controls) Set(name string, v int) (int, error) {
	for i := range c.components {
		comp := &c.components[i]
		if comp.Name != name {
			continue
		}
		comp.Value = min(max(v, comp.Min), comp.Max)
		return comp.Value, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownComponent, name)
}

// SetText parses text typed into a numeric input and stores it like Set.
// Unparseable text leaves the component unchanged.
func (c *Controls) SetText(name, text string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidDate, name, text)
	}
	return c.Set(name, v)
}

// Date assembles the slider values into a time in year and loc. Out of range
// days roll over into the following month.
func (c *Controls) Date(year int, loc *time.Location) time.Time {
	month, _ := c.Value("month")
	day, _ := c.Value("day")
	hour, _ := c.Value("hour")
	minute, _ := c.Value("minute")
	return time.Date(year, time.Month(month), day, hour, minute, 0, 0, loc)
}
