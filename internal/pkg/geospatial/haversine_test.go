package geospatial

import (
	"math"
	"testing"
)

func TestHaversine_SamePoint(t *testing.T) {
	if d := Haversine(15.3694, 44.191, 15.3694, 44.191); d != 0 {
		t.Errorf("expected 0, got %f", d)
	}
}

func TestHaversine_KnownDistance(t *testing.T) {
	// Two demo wells in Ibb, roughly 470 m apart.
	d := Haversine(15.3694, 44.1910, 15.3710, 44.1950)
	if d < 400 || d > 550 {
		t.Errorf("expected ~470m, got %.1f", d)
	}
}

func TestBoundingBox_ContainsCenter(t *testing.T) {
	minLat, minLon, maxLat, maxLon := BoundingBox(15.3694, 44.191, 5000)
	if !(minLat < 15.3694 && 15.3694 < maxLat && minLon < 44.191 && 44.191 < maxLon) {
		t.Errorf("box does not contain its center: %f %f %f %f", minLat, minLon, maxLat, maxLon)
	}
}

func TestValidLatLon(t *testing.T) {
	cases := []struct {
		lat, lon float64
		want     bool
	}{
		{15.3694, 44.191, true},
		{-90, 180, true},
		{200, 44.1, false},
		{15, -181, false},
		{math.NaN(), 0, false},
		{0, math.Inf(1), false},
	}
	for _, c := range cases {
		if got := ValidLatLon(c.lat, c.lon); got != c.want {
			t.Errorf("ValidLatLon(%v, %v) = %v, want %v", c.lat, c.lon, got, c.want)
		}
	}
}
