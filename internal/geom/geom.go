// Package geom holds the small set of geodesy helpers the editor needs:
// centring the view on a collection, buffering a point into a disk polygon,
// hit-testing footprints and measuring ground distance in metres.
package geom

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// BufferSteps is the number of vertices used to approximate a buffered disk.
const BufferSteps = 64

// Center returns the centre of the bounding box enclosing every feature in fc.
// ok is false when the collection has no geometry at all.
func Center(fc *geojson.FeatureCollection) (center orb.Point, ok bool) {
	if fc == nil {
		return orb.Point{}, false
	}

	var bound orb.Bound
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		if !ok {
			bound = f.Geometry.Bound()
			ok = true
			continue
		}
		bound = bound.Union(f.Geometry.Bound())
	}
	if !ok {
		return orb.Point{}, false
	}
	return bound.Center(), true
}

// Buffer returns a polygon approximating a disk of radius metres around p.
// The exterior ring is closed and wound counter-clockwise.
func Buffer(p orb.Point, radius float64) orb.Polygon {
	ring := make(orb.Ring, 0, BufferSteps+1)
	for i := 0; i < BufferSteps; i++ {
		bearing := 360 - 360*float64(i)/BufferSteps
		ring = append(ring, geo.PointAtBearingAndDistance(p, bearing, radius))
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}
}

// Distance returns the great-circle distance between a and b in metres.
func Distance(a, b orb.Point) float64 {
	return geo.DistanceHaversine(a, b)
}

// Contains reports whether p lies inside a polygonal geometry. Other
// geometry types never contain a point.
func Contains(g orb.Geometry, p orb.Point) bool {
	switch g := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, p)
	}
	return false
}

// Centroid returns the area-weighted centroid of g.
func Centroid(g orb.Geometry) orb.Point {
	c, _ := planar.CentroidArea(g)
	return c
}
