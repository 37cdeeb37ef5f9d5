package usecases

import (
	"context"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/samirrijal/groundwatch/internal/core/domain"
	"github.com/samirrijal/groundwatch/internal/core/ports"
	"github.com/samirrijal/groundwatch/internal/pkg/metrics"
)

// GeocodeService resolves place names through an upstream geocoder with a
// read-through cache. It satisfies ports.Geocoder.
type GeocodeService struct {
	upstream ports.Geocoder
	cache    ports.CacheService
	minLen   int
}

// NewGeocodeService creates a new GeocodeService. cache may be nil.
func NewGeocodeService(upstream ports.Geocoder, cache ports.CacheService, minQueryLength int) *GeocodeService {
	if minQueryLength < 1 {
		minQueryLength = 3
	}
	return &GeocodeService{upstream: upstream, cache: cache, minLen: minQueryLength}
}

// Search returns the places matching query, best match first.
func (s *GeocodeService) Search(ctx context.Context, query string) ([]domain.GeocodeResult, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < s.minLen {
		return nil, domain.NewValidationError("q", "query is too short")
	}

	cacheKey := "geocode:" + strings.ToLower(query)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var results []domain.GeocodeResult
			if err := json.Unmarshal(data, &results); err == nil {
				metrics.CacheHits.WithLabelValues("geocode").Inc()
				metrics.GeocodeRequests.WithLabelValues("cached").Inc()
				return results, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("geocode").Inc()
	}

	results, err := s.upstream.Search(ctx, query)
	if err != nil {
		metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	if len(results) == 0 {
		metrics.GeocodeRequests.WithLabelValues("empty").Inc()
		return results, nil
	}
	metrics.GeocodeRequests.WithLabelValues("ok").Inc()

	// Cache for 1 hour; place names rarely move.
	if s.cache != nil {
		if data, err := json.Marshal(results); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 3600)
		}
	}

	return results, nil
}
