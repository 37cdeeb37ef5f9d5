package usecases_test

import (
	"context"
	"errors"
	"sync"

	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/groundwatch/internal/core/domain"
	"github.com/samirrijal/groundwatch/internal/core/viewstate"
)

// --- Renderer ---

type setViewCall struct {
	Lat, Lon, Zoom float64
}

type fakeRenderer struct {
	mu    sync.Mutex
	calls []setViewCall
	errFn func(call int) error
}

func (r *fakeRenderer) SetView(ctx context.Context, lat, lon, zoom float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.calls)
	if r.errFn != nil {
		if err := r.errFn(n); err != nil {
			return err
		}
	}
	r.calls = append(r.calls, setViewCall{Lat: lat, Lon: lon, Zoom: zoom})
	return nil
}

func (r *fakeRenderer) Calls() []setViewCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]setViewCall(nil), r.calls...)
}

// --- Geocoder ---

type mockGeocoder struct {
	mu       sync.Mutex
	queries  []string
	searchFn func(ctx context.Context, query string) ([]domain.GeocodeResult, error)
}

func (m *mockGeocoder) Search(ctx context.Context, query string) ([]domain.GeocodeResult, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.mu.Unlock()
	if m.searchFn != nil {
		return m.searchFn(ctx, query)
	}
	return nil, nil
}

func (m *mockGeocoder) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

// --- LanguageModel ---

type mockModel struct {
	mu         sync.Mutex
	turns      [][]domain.Turn
	generateFn func(ctx context.Context, turns []domain.Turn) (string, error)
}

func (m *mockModel) Generate(ctx context.Context, turns []domain.Turn) (string, error) {
	m.mu.Lock()
	m.turns = append(m.turns, turns)
	m.mu.Unlock()
	if m.generateFn != nil {
		return m.generateFn(ctx, turns)
	}
	return "ok", nil
}

func (m *mockModel) LastTurns() []domain.Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.turns) == 0 {
		return nil
	}
	return m.turns[len(m.turns)-1]
}

// --- EventPublisher ---

type mockPublisher struct {
	mu         sync.Mutex
	views      map[string]int
	analyses   []domain.Analysis
	analysisFn func(a *domain.Analysis) error
}

func (m *mockPublisher) PublishViewState(ctx context.Context, sessionID string, state viewstate.ViewState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.views == nil {
		m.views = make(map[string]int)
	}
	m.views[sessionID]++
	return nil
}

func (m *mockPublisher) PublishAnalysis(ctx context.Context, a *domain.Analysis) error {
	if m.analysisFn != nil {
		if err := m.analysisFn(a); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.analyses = append(m.analyses, *a)
	return nil
}

func (m *mockPublisher) Analyses() []domain.Analysis {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Analysis(nil), m.analyses...)
}

func (m *mockPublisher) ViewUpdates(sessionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.views[sessionID]
}

// --- CacheService ---

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]int
}

var errCacheMiss = errors.New("cache miss")

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte), ttls: make(map[string]int)}
}

func (c *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, errCacheMiss
	}
	return v, nil
}

func (c *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.ttls[key] = ttlSeconds
	return nil
}

func (c *mockCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *mockCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.data))
	for k := range c.data {
		out = append(out, k)
	}
	return out
}

// --- LayerRepository ---

type mockLayerRepo struct {
	listFn     func(ctx context.Context) ([]domain.Layer, error)
	featuresFn func(ctx context.Context, layerID string) (*geojson.FeatureCollection, error)
}

func (m *mockLayerRepo) List(ctx context.Context) ([]domain.Layer, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockLayerRepo) Features(ctx context.Context, layerID string) (*geojson.FeatureCollection, error) {
	if m.featuresFn != nil {
		return m.featuresFn(ctx, layerID)
	}
	return nil, domain.ErrLayerNotFound
}

// --- AnalysisRepository ---

type mockAnalysisRepo struct {
	insertFn func(ctx context.Context, a *domain.Analysis) error
	listFn   func(ctx context.Context, offset, limit int) ([]domain.Analysis, error)
	countFn  func(ctx context.Context) (map[domain.AnalysisKind]int, error)
}

func (m *mockAnalysisRepo) Insert(ctx context.Context, a *domain.Analysis) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, a)
	}
	return nil
}

func (m *mockAnalysisRepo) List(ctx context.Context, offset, limit int) ([]domain.Analysis, error) {
	if m.listFn != nil {
		return m.listFn(ctx, offset, limit)
	}
	return nil, nil
}

func (m *mockAnalysisRepo) CountByKind(ctx context.Context) (map[domain.AnalysisKind]int, error) {
	if m.countFn != nil {
		return m.countFn(ctx)
	}
	return map[domain.AnalysisKind]int{}, nil
}
