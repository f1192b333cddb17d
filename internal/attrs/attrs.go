// Package attrs implements the building attribute editor: a key/value table
// snapshotted from a clicked feature and written back on commit.
package attrs

import (
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-trees/internal/scene"
)

var (
	ErrNoSession = errors.New("attribute editor is not open")
	ErrNotFound  = errors.New("could not find the feature to update")
	ErrReadOnly  = errors.New("the ID attribute cannot be changed")
	ErrNoRow     = errors.New("no such row")
)

// Row is one editable key/value pair.
type Row struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	ReadOnly bool   `json:"readOnly"`
}

// Target receives committed property maps, keyed by building ID.
type Target interface {
	SetBuildingProperties(id string, props geojson.Properties) bool
}

// Editor holds at most one open editing session.
type Editor struct {
	target   Target
	open     bool
	selected string
	id       any // original ID value, written back unchanged
	hasID    bool
	rows     []Row
}

// New creates a closed editor writing into target.
func New(target Target) *Editor {
	return &Editor{target: target}
}

// Open snapshots f's properties. The ID row comes first and is read-only;
// the remaining keys are sorted.
func (e *Editor) Open(f *geojson.Feature) {
	e.open = true
	e.selected = ""
	e.id, e.hasID = nil, false
	e.rows = e.rows[:0]

	if v, ok := f.Properties[scene.PropBuildingID]; ok {
		e.id, e.hasID = v, true
		e.selected = scene.FormatValue(v)
		e.rows = append(e.rows, Row{Key: scene.PropBuildingID, Value: e.selected, ReadOnly: true})
	}

	keys := make([]string, 0, len(f.Properties))
	for k := range f.Properties {
		if k != scene.PropBuildingID {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		e.rows = append(e.rows, Row{Key: k, Value: scene.FormatValue(f.Properties[k])})
	}
}

// IsOpen reports whether a session is open.
func (e *Editor) IsOpen() bool { return e.open }

// Selected returns the building ID of the open session.
func (e *Editor) Selected() (string, bool) {
	return e.selected, e.open
}

// Rows returns a copy of the current rows.
func (e *Editor) Rows() []Row {
	out := make([]Row, len(e.rows))
	copy(out, e.rows)
	return out
}

// AddRow appends a blank row and returns its index.
func (e *Editor) AddRow() (int, error) {
	if !e.open {
		return 0, ErrNoSession
	}
	e.rows = append(e.rows, Row{})
	return len(e.rows) - 1, nil
}

// RemoveRow deletes row i.
func (e *Editor) RemoveRow(i int) error {
	if err := e.check(i); err != nil {
		return err
	}
	e.rows = append(e.rows[:i], e.rows[i+1:]...)
	return nil
}

// SetRow replaces the key and value text of row i. A row cannot be renamed
// to ID.
func (e *Editor) SetRow(i int, key, value string) error {
	if err := e.check(i); err != nil {
		return err
	}
	if key == scene.PropBuildingID {
		return ErrReadOnly
	}
	e.rows[i].Key = key
	e.rows[i].Value = value
	return nil
}

func (e *Editor) check(i int) error {
	if !e.open {
		return ErrNoSession
	}
	if i < 0 || i >= len(e.rows) {
		return ErrNoRow
	}
	if e.rows[i].ReadOnly {
		return ErrReadOnly
	}
	return nil
}

// Commit writes the rows back to the selected building and closes the
// session whatever the outcome.
func (e *Editor) Commit() (geojson.Properties, error) {
	if !e.open {
		return nil, ErrNoSession
	}
	defer e.Close()

	props := Properties(e.rows)
	if e.hasID {
		props[scene.PropBuildingID] = e.id
	}
	if !e.target.SetBuildingProperties(e.selected, props) {
		return nil, ErrNotFound
	}
	return props, nil
}

// Close discards the session and clears the selected reference.
func (e *Editor) Close() {
	e.open = false
	e.selected = ""
	e.id, e.hasID = nil, false
	e.rows = nil
}

// Properties builds a property map from rows, skipping rows without a key.
func Properties(rows []Row) geojson.Properties {
	props := make(geojson.Properties, len(rows))
	for _, r := range rows {
		if r.Key == "" {
			continue
		}
		props[r.Key] = Coerce(r.Value)
	}
	return props
}

// Coerce turns numeric-looking text into a number and leaves anything else,
// including the empty string, as text.
func Coerce(text string) any {
	s := strings.TrimSpace(text)
	if s == "" {
		return text
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		// JSON cannot carry NaN or infinities.
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return text
		}
		return f
	}
	if n, ok := parsePrefixed(s); ok {
		return n
	}
	return text
}

// parsePrefixed handles 0x, 0o and 0b integer literals.
func parsePrefixed(s string) (float64, bool) {
	if len(s) < 3 || s[0] != '0' {
		return 0, false
	}
	var base int
	switch s[1] {
	case 'x', 'X':
		base = 16
	case 'o', 'O':
		base = 8
	case 'b', 'B':
		base = 2
	default:
		return 0, false
	}
	n, err := strconv.ParseUint(s[2:], base, 64)
	if err != nil {
		return 0, false
	}
	return float64(n), true
}
