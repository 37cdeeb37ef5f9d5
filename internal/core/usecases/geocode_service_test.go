package usecases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/groundwatch/internal/core/domain"
	"github.com/samirrijal/groundwatch/internal/core/usecases"
)

func TestGeocodeService_ReadThroughCache(t *testing.T) {
	geo := &mockGeocoder{searchFn: func(ctx context.Context, q string) ([]domain.GeocodeResult, error) {
		return []domain.GeocodeResult{{Location: domain.GeoPoint{Lat: 15.3694, Lon: 44.191}, DisplayName: "Sanaa"}}, nil
	}}
	cache := newMockCache()
	svc := usecases.NewGeocodeService(geo, cache, 3)

	for _, q := range []string{"Sanaa", " sanaa "} {
		res, err := svc.Search(context.Background(), q)
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, "Sanaa", res[0].DisplayName)
	}
	assert.Len(t, geo.Queries(), 1)
	assert.Equal(t, 3600, cache.ttls["geocode:sanaa"])
}

func TestGeocodeService_ShortQuery(t *testing.T) {
	geo := &mockGeocoder{}
	svc := usecases.NewGeocodeService(geo, nil, 3)

	_, err := svc.Search(context.Background(), " ab ")
	assert.True(t, domain.IsValidation(err))
	assert.Empty(t, geo.Queries())
}

func TestGeocodeService_DoesNotCacheEmptyOrFailed(t *testing.T) {
	fail := true
	geo := &mockGeocoder{searchFn: func(context.Context, string) ([]domain.GeocodeResult, error) {
		if fail {
			return nil, errors.New("HTTP 503")
		}
		return nil, nil
	}}
	cache := newMockCache()
	svc := usecases.NewGeocodeService(geo, cache, 3)

	_, err := svc.Search(context.Background(), "Atlantis")
	require.Error(t, err)

	fail = false
	res, err := svc.Search(context.Background(), "Atlantis")
	require.NoError(t, err)
	assert.Empty(t, res)
	assert.Empty(t, cache.Keys())
}
