package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatLng(t *testing.T) {
	lat, lng, err := latLng(&Options{Location: "51.5, -0.12"})
	require.NoError(t, err)
	assert.Equal(t, 51.5, lat)
	assert.Equal(t, -0.12, lng)

	for _, bad := range []string{"", "51.5", "x,0", "91,0", "0,181"} {
		_, _, err := latLng(&Options{Location: bad})
		assert.Error(t, err, bad)
	}
}

func TestSessionConfig(t *testing.T) {
	cfg, err := sessionConfig(&Options{
		MinHeight: 4, MaxHeight: 9, Spacing: 2,
		Location: "40.7128,-74.0060", Timezone: "America/New_York", Seed: 7,
	})
	require.NoError(t, err)
	assert.Equal(t, 4.0, cfg.Settings.MinHeight)
	assert.Equal(t, 9.0, cfg.Settings.MaxHeight)
	assert.Equal(t, -74.0060, cfg.Longitude)
	assert.Equal(t, "America/New_York", cfg.Location.String())
	assert.Equal(t, uint64(7), cfg.Seed)

	_, err = sessionConfig(&Options{Location: "0,0", Timezone: "Mars/Olympus"})
	assert.Error(t, err)
}
