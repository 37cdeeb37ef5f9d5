// Package demodata holds the built-in overlay datasets served when no layer
// features have been ingested into the database.
package demodata

import (
	"context"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/groundwatch/internal/core/domain"
)

type dataset struct {
	layer    domain.Layer
	features func() *geojson.FeatureCollection
}

var datasets = []dataset{
	{
		layer:    domain.Layer{ID: domain.LayerGroundwaterLevels, Name: "Groundwater Levels", Color: "#007bff", GeometryKind: "point"},
		features: groundwaterLevels,
	},
	{
		layer:    domain.Layer{ID: domain.LayerAquiferRecharge, Name: "Aquifer Recharge Zones", Color: "#28a745", GeometryKind: "polygon"},
		features: aquiferRecharge,
	},
	{
		layer:    domain.Layer{ID: domain.LayerSoilPermeability, Name: "Soil Permeability", Color: "#ffc107", GeometryKind: "polygon"},
		features: soilPermeability,
	},
	{
		layer:    domain.Layer{ID: domain.LayerWells, Name: "Groundwater Wells", Color: "#17a2b8", GeometryKind: "point"},
		features: wells,
	},
	{
		layer:    domain.Layer{ID: domain.LayerRainfall, Name: "Rainfall Zones", Color: "#6f42c1", GeometryKind: "polygon"},
		features: rainfall,
	},
}

// Repo implements ports.LayerRepository over the built-in datasets.
type Repo struct{}

// NewRepo creates a new Repo.
func NewRepo() *Repo { return &Repo{} }

// List returns the catalogue sorted by identifier.
func (Repo) List(ctx context.Context) ([]domain.Layer, error) {
	out := make([]domain.Layer, 0, len(datasets))
	for _, d := range datasets {
		l := d.layer
		l.FeatureCount = len(d.features().Features)
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Features returns a fresh copy of one dataset.
func (Repo) Features(ctx context.Context, layerID string) (*geojson.FeatureCollection, error) {
	for _, d := range datasets {
		if d.layer.ID == layerID {
			return d.features(), nil
		}
	}
	return nil, domain.ErrLayerNotFound
}

// Collections returns every dataset keyed by layer identifier.
func Collections() map[string]*geojson.FeatureCollection {
	out := make(map[string]*geojson.FeatureCollection, len(datasets))
	for _, d := range datasets {
		out[d.layer.ID] = d.features()
	}
	return out
}

// Layers returns the built-in catalogue entries.
func Layers() []domain.Layer {
	ls, _ := Repo{}.List(context.Background())
	return ls
}

func feature(g orb.Geometry, props geojson.Properties) *geojson.Feature {
	f := geojson.NewFeature(g)
	for k, v := range props {
		f.Properties[k] = v
	}
	return f
}

func box(minLon, minLat, maxLon, maxLat float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{minLon, minLat}, {maxLon, minLat}, {maxLon, maxLat}, {minLon, maxLat}, {minLon, minLat},
	}}
}

func groundwaterLevels() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Append(feature(orb.Point{30, 0}, geojson.Properties{"name": "Groundwater Well 1", "level": "High"}))
	fc.Append(feature(orb.Point{35, 5}, geojson.Properties{"name": "Groundwater Well 2", "level": "Medium"}))
	return fc
}

func aquiferRecharge() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Append(feature(box(20, 0, 25, 5), geojson.Properties{"name": "Aquifer Zone A"}))
	return fc
}

func soilPermeability() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Append(feature(box(10, -10, 15, -5), geojson.Properties{"name": "High Permeability Area"}))
	return fc
}

func wells() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Append(feature(orb.Point{44.1910, 15.3694}, geojson.Properties{
		"id":            "WELL-001",
		"name":          "بئر النور",
		"description":   "بئر ماء يستخدم للشرب والزراعة.",
		"level":         "12.5 م",
		"quality":       "good",
		"last_measured": "2024-05-01",
	}))
	fc.Append(feature(orb.Point{44.1950, 15.3710}, geojson.Properties{
		"id":            "WELL-002",
		"name":          "بئر الحكمة",
		"description":   "بئر قديم مهدد بالجفاف.",
		"level":         "6.8 م",
		"quality":       "poor",
		"risk":          "مرتفع",
		"last_measured": "2024-04-28",
	}))
	return fc
}

func rainfall() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Append(feature(box(44.188, 15.368, 44.198, 15.378), geojson.Properties{
		"name":        "المنطقة الشرقية",
		"notes":       "معدل أمطار متوسط",
		"rainfall_mm": 120,
		"month":       "مايو",
	}))
	fc.Append(feature(box(44.180, 15.360, 44.190, 15.370), geojson.Properties{
		"name":        "المنطقة الغربية",
		"notes":       "أمطار غزيرة",
		"rainfall_mm": 250,
		"month":       "مايو",
	}))
	return fc
}
