package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/groundwatch/internal/pkg/config"
)

func TestBasemaps(t *testing.T) {
	got := basemaps(config.MapConfig{
		DefaultBasemap: "esri",
		Basemaps: []config.BasemapConfig{
			{ID: "osm", Name: "OpenStreetMap", URL: "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"},
			{ID: "esri", URL: "https://server.arcgisonline.com/tile/{z}/{y}/{x}", Attribution: "Tiles &copy; Esri"},
		},
	})

	require.Len(t, got, 2)
	assert.Equal(t, "OpenStreetMap", got[0].Name)
	assert.False(t, got[0].Default)
	assert.Equal(t, "esri", got[1].Name, "a missing name falls back to the id")
	assert.True(t, got[1].Default)
	assert.Equal(t, "Tiles &copy; Esri", got[1].Attribution)

	assert.Empty(t, basemaps(config.MapConfig{}))
}
