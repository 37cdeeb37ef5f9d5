package ports

import (
	"context"

	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/groundwatch/internal/core/domain"
)

// LayerRepository serves the overlay datasets the map can draw.
type LayerRepository interface {
	List(ctx context.Context) ([]domain.Layer, error)
	Features(ctx context.Context, layerID string) (*geojson.FeatureCollection, error)
}

// AnalysisRepository persists archived chats and predictions.
type AnalysisRepository interface {
	Insert(ctx context.Context, a *domain.Analysis) error
	List(ctx context.Context, offset, limit int) ([]domain.Analysis, error)
	CountByKind(ctx context.Context) (map[domain.AnalysisKind]int, error)
}
