package sun

import "math"

// Light is one entry of the map's light configuration.
type Light struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Properties LightProperties `json:"properties"`
}

// LightProperties carries the paint properties of a Light.
type LightProperties struct {
	Color           string    `json:"color"`
	Intensity       float64   `json:"intensity"`
	Direction       []float64 `json:"direction,omitempty"`
	CastShadows     bool      `json:"cast-shadows,omitempty"`
	ShadowIntensity float64   `json:"shadow-intensity,omitempty"`
}

// Lights derives the ambient and directional lights for a sun position.
// Both fade to zero once the sun is below the horizon.
func Lights(p Position) []Light {
	azimuthDeg := p.Azimuth/rad + 180
	polarDeg := 90 - p.Altitude/rad
	intensity := math.Max(0, math.Sin(p.Altitude))

	return []Light{
		{
			ID:   "ambient_light",
			Type: "ambient",
			Properties: LightProperties{
				Color:     "white",
				Intensity: 0.5 * intensity,
			},
		},
		{
			ID:   "directional_light",
			Type: "directional",
			Properties: LightProperties{
				Color:           "white",
				Intensity:       0.6 * intensity,
				Direction:       []float64{azimuthDeg, math.Min(polarDeg, 90)},
				CastShadows:     true,
				ShadowIntensity: 0.7,
			},
		},
	}
}
