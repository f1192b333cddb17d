// Package sun computes the sun's position for a time and place and turns it
// into the ambient and directional lights of the 3D map.
package sun

import (
	"math"
	"time"

	"github.com/sixdouglas/suncalc"
)

const rad = math.Pi / 180

// Position is the sun's place in the sky in radians. Azimuth is measured
// from south, positive towards the west; altitude is above the horizon.
type Position struct {
	Azimuth  float64 `json:"azimuth"`
	Altitude float64 `json:"altitude"`
}

// PositionAt returns the sun position at t for an observer at lat, lon.
func PositionAt(t time.Time, lat, lon float64) Position {
	p := suncalc.GetPosition(t, lat, lon)
	return Position{Azimuth: p.Azimuth, Altitude: p.Altitude}
}
