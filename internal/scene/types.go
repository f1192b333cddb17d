// Package scene holds the editable map content: building footprints and the
// trees placed among them. Trees are first-class values owning a trunk and a
// canopy feature; the store keeps both halves in lockstep.
package scene

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"
)

// Property names understood by the editor.
const (
	PropTreeID     = "id"
	PropIsTrunk    = "isTrunk"
	PropIsCanopy   = "isCanopy"
	PropHeight     = "height"
	PropBase       = "base"
	PropBuildingID = "ID"
)

// Tree proportions. Trunk and canopy shares always sum to one so the canopy
// sits directly on top of the trunk.
const (
	TrunkShare   = 0.4
	CanopyShare  = 0.6
	TrunkRadius  = 0.4 // metres
	CanopyRadius = 2.5 // metres
)

// TreeIDPrefix prefixes every generated tree id.
const TreeIDPrefix = "tree-"

// ErrInvalidGeoJSON is returned when an input document is not a GeoJSON
// FeatureCollection.
var ErrInvalidGeoJSON = errors.New("invalid GeoJSON")

// Collection names one of the three feature collections.
type Collection string

const (
	Buildings Collection = "buildings"
	Trunks    Collection = "trunks"
	Canopies  Collection = "canopies"
)

// Collections lists every collection in render order.
var Collections = []Collection{Buildings, Trunks, Canopies}

// ParseCollection maps a name to a Collection.
func ParseCollection(name string) (Collection, bool) {
	switch Collection(name) {
	case Buildings, Trunks, Canopies:
		return Collection(name), true
	}
	return "", false
}

// Kind classifies a single polygon feature by its marker properties.
func Kind(f *geojson.Feature) Collection {
	if f == nil {
		return ""
	}
	switch {
	case truthy(f.Properties[PropIsCanopy]):
		return Canopies
	case truthy(f.Properties[PropIsTrunk]):
		return Trunks
	default:
		return Buildings
	}
}

// Tree pairs the trunk and canopy features of one placed tree.
type Tree struct {
	ID     string
	Trunk  *geojson.Feature
	Canopy *geojson.Feature
}

// Height returns the total height of the tree in metres.
func (t *Tree) Height() float64 {
	base, _ := Number(t.Canopy.Properties[PropBase])
	h, _ := Number(t.Canopy.Properties[PropHeight])
	return base + h
}

// Number reads a numeric property value. Numeric strings are accepted since
// hand-edited files frequently quote numbers.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// treeSerial extracts n from an id of the form "tree-<n>".
func treeSerial(id string) (int, bool) {
	rest, ok := strings.CutPrefix(id, TreeIDPrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// truthy follows the loose truthiness hand-written GeoJSON tends to rely on.
func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0 && !math.IsNaN(t)
	case int:
		return t != 0
	case string:
		return t != ""
	}
	return false
}

func treeID(f *geojson.Feature) (string, bool) {
	id, ok := f.Properties[PropTreeID].(string)
	return id, ok && id != ""
}
