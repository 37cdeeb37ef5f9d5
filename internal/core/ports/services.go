package ports

import (
	"context"

	"github.com/samirrijal/groundwatch/internal/core/domain"
	"github.com/samirrijal/groundwatch/internal/core/viewstate"
)

// ViewStore is the narrow view of a session's state container used by
// viewport consumers and command producers.
type ViewStore interface {
	Read() viewstate.ViewState
	Patch(p viewstate.Patch)
	Mutate(fn func(viewstate.ViewState) viewstate.Patch)
	IssueNavigation(lat, lon float64, zoom *float64)
	TakeNavigation() (viewstate.Navigation, bool)
	Subscribe(fn func(viewstate.ViewState)) (unsubscribe func())
}

// Renderer is a map rendering surface.
type Renderer interface {
	// SetView moves the rendered viewport.
	SetView(ctx context.Context, lat, lon, zoom float64) error
}

// Geocoder resolves free-text place names to coordinates.
type Geocoder interface {
	Search(ctx context.Context, query string) ([]domain.GeocodeResult, error)
}

// LanguageModel generates text from a conversation.
type LanguageModel interface {
	Generate(ctx context.Context, turns []domain.Turn) (string, error)
}

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishViewState(ctx context.Context, sessionID string, state viewstate.ViewState) error
	PublishAnalysis(ctx context.Context, analysis *domain.Analysis) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeAnalyses(ctx context.Context, handler func(ctx context.Context, analysis *domain.Analysis) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
