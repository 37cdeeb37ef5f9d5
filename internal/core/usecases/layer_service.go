package usecases

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/samirrijal/groundwatch/internal/core/domain"
	"github.com/samirrijal/groundwatch/internal/core/ports"
	"github.com/samirrijal/groundwatch/internal/pkg/geospatial"
	"github.com/samirrijal/groundwatch/internal/pkg/metrics"
)

const (
	defaultNearbyRadius = 5000.0
	maxNearbyRadius     = 50000.0
)

// LayerService serves the overlay datasets and point lookups against them.
type LayerService struct {
	repo  ports.LayerRepository
	cache ports.CacheService
}

// NewLayerService creates a new LayerService. cache may be nil.
func NewLayerService(repo ports.LayerRepository, cache ports.CacheService) *LayerService {
	return &LayerService{repo: repo, cache: cache}
}

// List returns the layer catalogue.
func (s *LayerService) List(ctx context.Context) ([]domain.Layer, error) {
	return s.repo.List(ctx)
}

// Features returns the features of one layer.
func (s *LayerService) Features(ctx context.Context, layerID string) (*geojson.FeatureCollection, error) {
	cacheKey := "layers:features:" + layerID
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			if fc, err := geojson.UnmarshalFeatureCollection(data); err == nil {
				metrics.CacheHits.WithLabelValues("layer_features").Inc()
				return fc, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("layer_features").Inc()
	}

	fc, err := s.repo.Features(ctx, layerID)
	if err != nil {
		return nil, err
	}

	// Cache for 10 minutes; the ingestor is the only writer.
	if s.cache != nil {
		if data, err := fc.MarshalJSON(); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 600)
		}
	}

	return fc, nil
}

// Nearby returns observations from the given layers (all layers when empty)
// within radiusMeters of the point, nearest first. A point inside a polygon
// is at distance zero from it.
func (s *LayerService) Nearby(ctx context.Context, lat, lon, radiusMeters float64, layerIDs []string) ([]domain.Observation, error) {
	if !geospatial.ValidLatLon(lat, lon) {
		return nil, domain.NewValidationError("lat", "latitude/longitude out of range")
	}
	if radiusMeters <= 0 {
		radiusMeters = defaultNearbyRadius
	}
	if radiusMeters > maxNearbyRadius {
		radiusMeters = maxNearbyRadius
	}

	if len(layerIDs) == 0 {
		layers, err := s.repo.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list layers: %w", err)
		}
		for _, l := range layers {
			layerIDs = append(layerIDs, l.ID)
		}
	}

	at := orb.Point{lon, lat}
	var out []domain.Observation
	for _, id := range layerIDs {
		fc, err := s.Features(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrLayerNotFound) {
				continue
			}
			return nil, err
		}
		for _, f := range fc.Features {
			obs, ok := observe(id, f, at)
			if !ok || obs.Distance > radiusMeters {
				continue
			}
			out = append(out, obs)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out, nil
}

func observe(layerID string, f *geojson.Feature, at orb.Point) (domain.Observation, bool) {
	if f == nil || f.Geometry == nil {
		return domain.Observation{}, false
	}

	var anchor orb.Point
	inside := false
	switch g := f.Geometry.(type) {
	case orb.Point:
		anchor = g
	case orb.Polygon:
		anchor, _ = planar.CentroidArea(g)
		inside = planar.PolygonContains(g, at)
	case orb.MultiPolygon:
		anchor, _ = planar.CentroidArea(g)
		inside = planar.MultiPolygonContains(g, at)
	default:
		anchor = g.Bound().Center()
	}

	dist := 0.0
	if !inside {
		dist = geospatial.Haversine(at.Lat(), at.Lon(), anchor.Lat(), anchor.Lon())
	}

	return domain.Observation{
		LayerID:    layerID,
		Name:       featureName(f, layerID),
		Location:   domain.GeoPoint{Lat: anchor.Lat(), Lon: anchor.Lon()},
		Properties: map[string]any(f.Properties),
		Distance:   dist,
	}, true
}

func featureName(f *geojson.Feature, fallback string) string {
	for _, key := range []string{"name", "id", "level"} {
		if v, ok := f.Properties[key]; ok {
			if s := fmt.Sprint(v); s != "" {
				return s
			}
		}
	}
	if f.ID != nil {
		return fmt.Sprint(f.ID)
	}
	return fallback
}
