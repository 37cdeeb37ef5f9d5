package usecases_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/groundwatch/internal/core/domain"
	"github.com/samirrijal/groundwatch/internal/core/ports"
	"github.com/samirrijal/groundwatch/internal/core/usecases"
	"github.com/samirrijal/groundwatch/internal/core/viewstate"
)

func newSessionService(pub ports.EventPublisher) *usecases.SessionService {
	cfg := usecases.SessionConfig{
		DefaultZoom:   2,
		DefaultLayers: []string{domain.LayerGroundwaterLevels},
		DefaultCenter: viewstate.Center{Latitude: 20, Longitude: 0},
		TTL:           time.Hour,
		Search:        searchOpts(),
	}
	return usecases.NewSessionService(cfg, &mockGeocoder{}, pub, nil)
}

func TestSessionService_CreateSeedsDefaults(t *testing.T) {
	svc := newSessionService(nil)
	sess := svc.Create(context.Background())
	defer svc.Shutdown()

	require.NotEmpty(t, sess.ID)
	st := sess.Store.Read()
	assert.Equal(t, 2, st.Zoom)
	assert.Equal(t, []string{domain.LayerGroundwaterLevels}, st.SelectedLayers.Slice())
	_, ok := st.Center()
	assert.False(t, ok)
	assert.Nil(t, st.PendingNavigation)
	assert.Equal(t, 1, svc.Count())
}

func TestSessionService_StoresAreIndependent(t *testing.T) {
	svc := newSessionService(nil)
	defer svc.Shutdown()
	a := svc.Create(context.Background())
	b := svc.Create(context.Background())

	require.NoError(t, usecases.GoToCoordinates(a.Store, "15.3694", "44.191", svc.NavigationZoom()))
	assert.NotNil(t, a.Store.Read().PendingNavigation)
	assert.Nil(t, b.Store.Read().PendingNavigation)
}

func TestSessionService_GetAndDelete(t *testing.T) {
	svc := newSessionService(nil)
	sess := svc.Create(context.Background())

	got, err := svc.Get(sess.ID)
	require.NoError(t, err)
	assert.Same(t, sess, got)

	require.NoError(t, svc.Delete(sess.ID))
	_, err = svc.Get(sess.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.ErrorIs(t, svc.Delete(sess.ID), domain.ErrSessionNotFound)

	// Teardown drops pending searches.
	assert.False(t, sess.Search.Input("Sanaa"))
}

func TestSessionService_PublishesViewStateChanges(t *testing.T) {
	pub := &mockPublisher{}
	svc := newSessionService(pub)
	sess := svc.Create(context.Background())

	sess.Store.Patch(viewstate.Viewport(15, 44, 5))
	usecases.ToggleLayer(sess.Store, domain.LayerWells, true)
	assert.Equal(t, 2, pub.ViewUpdates(sess.ID))

	require.NoError(t, svc.Delete(sess.ID))
	sess.Store.Patch(viewstate.Viewport(1, 1, 1))
	assert.Equal(t, 2, pub.ViewUpdates(sess.ID), "no publishing after teardown")
}

func TestSessionService_SweepExpiresIdleSessions(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}

	svc := newSessionService(nil).WithClock(clock)
	idle := svc.Create(context.Background())
	busy := svc.Create(context.Background())

	advance(50 * time.Minute)
	_, err := svc.Get(busy.ID)
	require.NoError(t, err)

	advance(20 * time.Minute)
	assert.Equal(t, 1, svc.Sweep())

	_, err = svc.Get(idle.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = svc.Get(busy.ID)
	assert.NoError(t, err)
}

func TestSessionService_RunSweeperStopsOnCancel(t *testing.T) {
	svc := newSessionService(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.RunSweeper(ctx, 5*time.Millisecond)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestTranscript_TrimsToLimit(t *testing.T) {
	tr := usecases.NewTranscript(3)
	at := time.Now()
	for i := 0; i < 3; i++ {
		_, err := tr.Begin("q", at)
		require.NoError(t, err)
		tr.Complete("a", at)
	}

	msgs := tr.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, int64(4), msgs[0].ID)
	assert.Equal(t, int64(6), msgs[2].ID)
}

func TestSessionService_SearchGoesThroughGeocodeCache(t *testing.T) {
	upstream := &mockGeocoder{searchFn: func(ctx context.Context, q string) ([]domain.GeocodeResult, error) {
		return []domain.GeocodeResult{{Location: domain.GeoPoint{Lat: 15.3694, Lon: 44.191}, DisplayName: "Sana'a"}}, nil
	}}
	cache := newMockCache()
	geocode := usecases.NewGeocodeService(upstream, cache, 3)

	svc := usecases.NewSessionService(usecases.SessionConfig{
		DefaultZoom: 2,
		TTL:         time.Hour,
		Search:      searchOpts(),
	}, geocode, nil, nil)
	defer svc.Shutdown()

	for i := 0; i < 2; i++ {
		sess := svc.Create(context.Background())
		require.True(t, sess.Search.Input("Sanaa"))
		require.Eventually(t, func() bool { return sess.Store.Read().PendingNavigation != nil }, time.Second, 5*time.Millisecond)
		assert.Equal(t, 15.3694, sess.Store.Read().PendingNavigation.Latitude)
	}

	assert.Equal(t, []string{"Sanaa"}, upstream.Queries(), "the second session must be served from cache")
	assert.Contains(t, cache.Keys(), "geocode:sanaa")
}
