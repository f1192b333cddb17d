package scene

import (
	"math/rand/v2"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-trees/internal/geom"
)

// Heights bounds the randomised total height of generated trees, in metres.
type Heights struct {
	Min float64
	Max float64
}

// Normalize clamps negative bounds to zero and orders them so Min <= Max.
func (h Heights) Normalize() Heights {
	h.Min = max(h.Min, 0)
	h.Max = max(h.Max, 0)
	if h.Min > h.Max {
		h.Min, h.Max = h.Max, h.Min
	}
	return h
}

// Generator builds procedurally sized trees and plants them in a Store.
type Generator struct {
	store   *Store
	rand    *rand.Rand
	heights Heights
}

// NewGenerator creates a generator planting into store. src seeds the
// height randomisation.
func NewGenerator(store *Store, src rand.Source, heights Heights) *Generator {
	return &Generator{
		store:   store,
		rand:    rand.New(src),
		heights: heights.Normalize(),
	}
}

// SetHeights updates the height bounds used for random trees.
func (g *Generator) SetHeights(h Heights) {
	g.heights = h.Normalize()
}

// Heights returns the current height bounds.
func (g *Generator) Heights() Heights {
	return g.heights
}

// NewTree builds a tree at p without adding it to the store. A height of
// zero or less picks a random height within the configured bounds. The tree
// consumes one id from the store's counter.
func (g *Generator) NewTree(p orb.Point, height float64) *Tree {
	if height <= 0 {
		height = g.heights.Min + g.rand.Float64()*(g.heights.Max-g.heights.Min)
	}
	trunkHeight := height * TrunkShare
	canopyHeight := height * CanopyShare
	id := g.store.NextTreeID()

	trunk := geojson.NewFeature(geom.Buffer(p, TrunkRadius))
	trunk.Properties = geojson.Properties{
		PropTreeID:  id,
		PropIsTrunk: true,
		PropHeight:  trunkHeight,
		PropBase:    float64(0),
	}

	canopy := geojson.NewFeature(geom.Buffer(p, CanopyRadius))
	canopy.Properties = geojson.Properties{
		PropTreeID:   id,
		PropIsCanopy: true,
		PropHeight:   canopyHeight,
		PropBase:     trunkHeight,
	}

	return &Tree{ID: id, Trunk: trunk, Canopy: canopy}
}

// Plant builds a tree at p and adds it to the store.
func (g *Generator) Plant(p orb.Point, height float64) *Tree {
	t := g.NewTree(p, height)
	// Ids come from the store's own counter, so AddTree cannot collide.
	_ = g.store.AddTree(t)
	return t
}

// PlaceTree plants a tree at p and returns the placement point.
func (g *Generator) PlaceTree(p orb.Point, height float64) orb.Point {
	g.Plant(p, height)
	return p
}
