package usecases

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"

	"github.com/samirrijal/groundwatch/internal/core/ports"
	"github.com/samirrijal/groundwatch/internal/core/viewstate"
	"github.com/samirrijal/groundwatch/internal/pkg/metrics"
)

// ErrNoRenderer is returned by Mount when there is no rendering surface.
var ErrNoRenderer = errors.New("map renderer unavailable")

// ViewportSync keeps one rendered map viewport and a session store in step.
// Pending navigations flow store -> renderer; settled user pans flow
// renderer -> store.
type ViewportSync struct {
	store    ports.ViewStore
	renderer ports.Renderer
	logger   *slog.Logger

	mu          sync.Mutex
	ctx         context.Context
	unsubscribe func()
	placeholder bool
	lastMove    *viewstate.Center
}

// NewViewportSync creates a consumer for store drawing onto renderer.
// renderer may be nil, in which case Mount degrades to a placeholder.
func NewViewportSync(store ports.ViewStore, renderer ports.Renderer, logger *slog.Logger) *ViewportSync {
	if logger == nil {
		logger = slog.Default()
	}
	return &ViewportSync{store: store, renderer: renderer, logger: logger}
}

// Mount positions the renderer and starts following the store.
//
// The initial view is, in order of preference: the pending navigation (which
// is consumed), the centre already in the store, then fallback. The chosen
// view is written back to the store. If the renderer is missing or refuses
// the first view the consumer becomes a placeholder: any consumed navigation
// is put back and nothing is subscribed.
func (v *ViewportSync) Mount(ctx context.Context, fallback viewstate.Center) error {
	if v.renderer == nil {
		v.degrade(ErrNoRenderer)
		return ErrNoRenderer
	}

	state := v.store.Read()
	lat, lon := fallback.Latitude, fallback.Longitude
	zoom := float64(state.Zoom)
	if c, ok := state.Center(); ok {
		lat, lon = c.Latitude, c.Longitude
	}

	nav, hasNav := v.store.TakeNavigation()
	if hasNav {
		lat, lon = nav.Latitude, nav.Longitude
		if nav.Zoom != nil {
			zoom = *nav.Zoom
		}
	}

	if err := v.renderer.SetView(ctx, lat, lon, zoom); err != nil {
		if hasNav {
			// A navigation issued meanwhile is newer and stays.
			v.store.Mutate(func(st viewstate.ViewState) viewstate.Patch {
				if st.PendingNavigation != nil {
					return viewstate.Patch{}
				}
				return viewstate.Patch{Navigation: &nav}
			})
		}
		v.degrade(err)
		return err
	}
	if hasNav {
		metrics.NavigationsApplied.Inc()
	}

	v.store.Patch(viewstate.Viewport(lat, lon, roundZoom(zoom)))

	v.mu.Lock()
	v.ctx = ctx
	v.placeholder = false
	v.mu.Unlock()

	unsubscribe := v.store.Subscribe(v.onChange)
	v.mu.Lock()
	v.unsubscribe = unsubscribe
	v.mu.Unlock()

	// A navigation issued between the take above and the subscription would
	// otherwise wait for an unrelated change.
	v.onChange(v.store.Read())
	return nil
}

// Moving records an in-progress pan or zoom. The store is not touched.
func (v *ViewportSync) Moving(lat, lon, zoom float64) {
	v.mu.Lock()
	v.lastMove = &viewstate.Center{Latitude: lat, Longitude: lon}
	v.mu.Unlock()
}

// MoveEnd writes the settled viewport into the store.
func (v *ViewportSync) MoveEnd(lat, lon, zoom float64) {
	v.mu.Lock()
	v.lastMove = nil
	v.mu.Unlock()

	v.store.Patch(viewstate.Viewport(lat, lon, roundZoom(zoom)))
}

// Placeholder reports whether the consumer degraded to a static placeholder.
func (v *ViewportSync) Placeholder() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.placeholder
}

// Unmount stops following the store. It is safe to call more than once.
func (v *ViewportSync) Unmount() {
	v.mu.Lock()
	unsubscribe := v.unsubscribe
	v.unsubscribe = nil
	v.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (v *ViewportSync) onChange(state viewstate.ViewState) {
	// Layer and viewport changes carry no camera work.
	if state.PendingNavigation == nil {
		return
	}

	nav, ok := v.store.TakeNavigation()
	if !ok {
		return // another consumer took it
	}

	zoom := float64(state.Zoom)
	if nav.Zoom != nil {
		zoom = *nav.Zoom
	}

	v.mu.Lock()
	ctx := v.ctx
	v.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := v.renderer.SetView(ctx, nav.Latitude, nav.Longitude, zoom); err != nil {
		v.logger.Warn("apply navigation failed",
			"latitude", nav.Latitude,
			"longitude", nav.Longitude,
			"error", err,
		)
		return
	}
	metrics.NavigationsApplied.Inc()
}

func (v *ViewportSync) degrade(err error) {
	v.mu.Lock()
	v.placeholder = true
	v.mu.Unlock()

	metrics.ViewportFallbacks.Inc()
	v.logger.Warn("map renderer unavailable, showing placeholder", "error", err)
}

func roundZoom(z float64) int {
	return int(math.Round(z))
}
