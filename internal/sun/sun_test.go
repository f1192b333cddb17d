package sun

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nycLat, nycLon = 40.7128, -74.0060

func TestPositionAt_DayAndNight(t *testing.T) {
	// Solar noon in New York is close to 17:00 UTC in June.
	noon := PositionAt(time.Date(2024, 6, 21, 16, 55, 0, 0, time.UTC), nycLat, nycLon)
	assert.InDelta(t, 72.7, noon.Altitude/rad, 1.0)
	assert.InDelta(t, 0, noon.Azimuth/rad, 5.0, "sun due south at noon")

	midnight := PositionAt(time.Date(2024, 6, 22, 4, 55, 0, 0, time.UTC), nycLat, nycLon)
	assert.Less(t, midnight.Altitude, 0.0)
}

func TestLights_NightIsDark(t *testing.T) {
	lights := Lights(Position{Azimuth: 0, Altitude: -0.3})
	require.Len(t, lights, 2)
	assert.Equal(t, 0.0, lights[0].Properties.Intensity)
	assert.Equal(t, 0.0, lights[1].Properties.Intensity)
	assert.Equal(t, 90.0, lights[1].Properties.Direction[1], "polar angle is capped at the horizon")
}

func TestLights_Direction(t *testing.T) {
	lights := Lights(Position{Azimuth: math.Pi / 2, Altitude: math.Pi / 6})
	dir := lights[1]

	assert.Equal(t, "directional_light", dir.ID)
	assert.InDelta(t, 270, dir.Properties.Direction[0], 1e-9)
	assert.InDelta(t, 60, dir.Properties.Direction[1], 1e-9)
	assert.InDelta(t, 0.3, dir.Properties.Intensity, 1e-9)
	assert.InDelta(t, 0.25, lights[0].Properties.Intensity, 1e-9)
	assert.True(t, dir.Properties.CastShadows)
}

func TestControls_Clamp(t *testing.T) {
	c := NewControls()

	v, err := c.Set("month", 14)
	require.NoError(t, err)
	assert.Equal(t, 12, v)

	v, err = c.SetText("minute", "-5")
	require.NoError(t, err)
	assert.Equal(t, 0, v)

	_, err = c.SetText("hour", "noon")
	assert.ErrorIs(t, err, ErrInvalidDate)
	hour, _ := c.Value("hour")
	assert.Equal(t, 12, hour, "unparseable input leaves the value alone")

	_, err = c.Set("second", 1)
	assert.ErrorIs(t, err, ErrUnknownComponent)
}

func TestControls_Date(t *testing.T) {
	c := NewControls()
	_, _ = c.Set("month", 2)
	_, _ = c.Set("day", 30)
	_, _ = c.Set("hour", 8)
	_, _ = c.Set("minute", 15)

	d := c.Date(2025, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 2, 8, 15, 0, 0, time.UTC), d)
}
