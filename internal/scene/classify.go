package scene

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-trees/internal/geom"
)

// Partition is the result of classifying an input collection.
type Partition struct {
	Buildings []*geojson.Feature
	Trees     []*Tree

	// Upgraded counts legacy point trees converted to trunk/canopy pairs.
	Upgraded int
	// Dropped counts features with geometry the editor does not handle.
	Dropped int
	// Orphans counts trunk or canopy halves that were repaired into a tree:
	// halves without a usable id get a fresh one, halves without a partner
	// get a generated partner.
	Orphans int
}

// Decode parses a GeoJSON FeatureCollection.
func Decode(data []byte) (*geojson.FeatureCollection, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeoJSON, err)
	}
	return fc, nil
}

// Classify splits raw into buildings and trees.
//
// Polygons flagged isCanopy or isTrunk are paired into trees by their id,
// other polygons are buildings. A half with no id, a repeated id or no
// partner is kept: it receives a generated partner centred on it. Points are
// legacy trees and are regenerated with their height property as the
// explicit total height. Features with any other geometry are skipped
// without error.
//
// The store behind gen is only touched to reserve tree ids; the caller
// installs the partition with Store.Replace.
func Classify(raw *geojson.FeatureCollection, gen *Generator) *Partition {
	p := &Partition{}
	if raw == nil {
		return p
	}

	var (
		trunks   = make(map[string]*geojson.Feature)
		canopies = make(map[string]*geojson.Feature)
		order    []string
		loose    []*geojson.Feature
		legacy   []*geojson.Feature
	)

	for _, f := range raw.Features {
		if f == nil || f.Geometry == nil {
			p.Dropped++
			continue
		}
		switch f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
			kind := Kind(f)
			if kind == Buildings {
				p.Buildings = append(p.Buildings, f)
				continue
			}
			id, ok := treeID(f)
			half := trunks
			if kind == Canopies {
				half = canopies
			}
			if _, dup := half[id]; !ok || dup {
				loose = append(loose, f)
				continue
			}
			if _, seen := trunks[id]; !seen {
				if _, seen := canopies[id]; !seen {
					order = append(order, id)
				}
			}
			half[id] = f
		case orb.Point:
			legacy = append(legacy, f)
		default:
			p.Dropped++
		}
	}

	// Reserve every loaded id before handing out fresh ones.
	for _, id := range order {
		gen.store.reserve(id)
	}

	for _, id := range order {
		trunk, canopy := trunks[id], canopies[id]
		switch {
		case trunk == nil:
			trunk = trunkFor(canopy, id)
			p.Orphans++
		case canopy == nil:
			canopy = canopyFor(trunk, id)
			p.Orphans++
		}
		p.Trees = append(p.Trees, &Tree{ID: id, Trunk: trunk, Canopy: canopy})
	}

	for _, f := range loose {
		id := gen.store.NextTreeID()
		f.Properties[PropTreeID] = id
		t := &Tree{ID: id, Trunk: f}
		if Kind(f) == Canopies {
			t.Canopy, t.Trunk = f, trunkFor(f, id)
		} else {
			t.Canopy = canopyFor(f, id)
		}
		p.Trees = append(p.Trees, t)
		p.Orphans++
	}

	for _, f := range legacy {
		height, _ := Number(f.Properties[PropHeight])
		p.Trees = append(p.Trees, gen.NewTree(f.Geometry.(orb.Point), height))
		p.Upgraded++
	}

	return p
}

// trunkFor generates the trunk under canopy, reaching up to the canopy base.
func trunkFor(canopy *geojson.Feature, id string) *geojson.Feature {
	height, _ := Number(canopy.Properties[PropBase])
	if height <= 0 {
		h, _ := Number(canopy.Properties[PropHeight])
		height = h * TrunkShare / CanopyShare
	}
	f := geojson.NewFeature(geom.Buffer(geom.Centroid(canopy.Geometry), TrunkRadius))
	f.Properties = geojson.Properties{
		PropTreeID:  id,
		PropIsTrunk: true,
		PropHeight:  height,
		PropBase:    float64(0),
	}
	return f
}

// canopyFor generates the canopy sitting on top of trunk.
func canopyFor(trunk *geojson.Feature, id string) *geojson.Feature {
	height, _ := Number(trunk.Properties[PropHeight])
	base, _ := Number(trunk.Properties[PropBase])
	f := geojson.NewFeature(geom.Buffer(geom.Centroid(trunk.Geometry), CanopyRadius))
	f.Properties = geojson.Properties{
		PropTreeID:   id,
		PropIsCanopy: true,
		PropHeight:   height * CanopyShare / TrunkShare,
		PropBase:     base + height,
	}
	return f
}
