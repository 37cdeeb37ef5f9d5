package usecases

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/samirrijal/groundwatch/internal/core/domain"
	"github.com/samirrijal/groundwatch/internal/core/ports"
	"github.com/samirrijal/groundwatch/internal/core/viewstate"
	"github.com/samirrijal/groundwatch/internal/pkg/debounce"
	"github.com/samirrijal/groundwatch/internal/pkg/geospatial"
	"github.com/samirrijal/groundwatch/internal/pkg/metrics"
)

// Zoom used by search results and coordinate entry unless configured otherwise.
const NavigationZoom = 10.0

// SearchOptions tunes a LocationSearch.
type SearchOptions struct {
	Debounce       time.Duration
	MinQueryLength int
	Zoom           float64
	Timeout        time.Duration
}

func (o SearchOptions) withDefaults() SearchOptions {
	if o.Debounce < 0 {
		o.Debounce = 0
	}
	if o.MinQueryLength < 1 {
		o.MinQueryLength = 3
	}
	if o.Zoom <= 0 {
		o.Zoom = NavigationZoom
	}
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	return o
}

// LocationSearch turns free-text search input into pending navigations.
//
// Input is debounced; every keystroke supersedes the previous one. Each
// lookup carries a sequence number and only the response to the latest
// input may issue a navigation. Starting a lookup cancels the one in flight.
type LocationSearch struct {
	store     ports.ViewStore
	geocoder  ports.Geocoder
	opts      SearchOptions
	logger    *slog.Logger
	debouncer *debounce.Debouncer

	seq atomic.Uint64

	mu        sync.Mutex
	cancel    context.CancelFunc
	cancelSeq uint64
	closed    bool
}

// NewLocationSearch creates a search producer writing into store.
func NewLocationSearch(store ports.ViewStore, geocoder ports.Geocoder, opts SearchOptions, logger *slog.Logger) *LocationSearch {
	opts = opts.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &LocationSearch{
		store:     store,
		geocoder:  geocoder,
		opts:      opts,
		logger:    logger,
		debouncer: debounce.New(opts.Debounce),
	}
}

// Input handles a change of the search text. It reports whether a lookup
// was scheduled; text shorter than the minimum length never reaches the
// geocoder.
func (s *LocationSearch) Input(text string) bool {
	query := strings.TrimSpace(text)
	seq := s.seq.Add(1)
	s.cancelInFlight()

	if utf8.RuneCountInString(query) < s.opts.MinQueryLength {
		s.debouncer.Cancel()
		return false
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return false
	}

	s.debouncer.Trigger(func() { s.resolve(seq, query) })
	return true
}

// Close drops any pending or in-flight lookup. Later input is ignored.
func (s *LocationSearch) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.seq.Add(1)
	s.debouncer.Stop()
	s.cancelInFlight()
}

func (s *LocationSearch) resolve(seq uint64, query string) {
	if s.seq.Load() != seq {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.Timeout)
	defer cancel()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel, s.cancelSeq = cancel, seq
	s.mu.Unlock()

	results, err := s.geocoder.Search(ctx, query)

	s.mu.Lock()
	if s.cancelSeq == seq {
		s.cancel = nil
	}
	s.mu.Unlock()

	if s.seq.Load() != seq {
		metrics.StaleGeocodes.Inc()
		s.logger.Debug("discarding superseded geocode response", "query", query)
		return
	}
	if err != nil {
		s.logger.Warn("geocode lookup failed", "query", query, "error", err)
		return
	}
	if len(results) == 0 {
		s.logger.Info("no geocode results", "query", query)
		return
	}

	loc := results[0].Location
	if !geospatial.ValidLatLon(loc.Lat, loc.Lon) {
		s.logger.Warn("geocode result out of range", "query", query, "lat", loc.Lat, "lon", loc.Lon)
		return
	}

	zoom := s.opts.Zoom
	s.store.IssueNavigation(loc.Lat, loc.Lon, &zoom)
	metrics.NavigationsIssued.WithLabelValues("search").Inc()
}

func (s *LocationSearch) cancelInFlight() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// GoToCoordinates issues a navigation to typed latitude/longitude input.
// Both values must parse as finite WGS 84 degrees; otherwise nothing is
// issued and a ValidationError is returned.
func GoToCoordinates(store ports.ViewStore, latInput, lonInput string, zoom float64) error {
	lat, err := parseCoordinate(latInput)
	if err != nil {
		return domain.NewValidationError("latitude", "please enter valid numbers for latitude and longitude")
	}
	lon, err := parseCoordinate(lonInput)
	if err != nil {
		return domain.NewValidationError("longitude", "please enter valid numbers for latitude and longitude")
	}
	if lat < -90 || lat > 90 {
		return domain.NewValidationError("latitude", "must be between -90 and 90")
	}
	if lon < -180 || lon > 180 {
		return domain.NewValidationError("longitude", "must be between -180 and 180")
	}
	if zoom <= 0 {
		zoom = NavigationZoom
	}

	store.IssueNavigation(lat, lon, &zoom)
	metrics.NavigationsIssued.WithLabelValues("coordinates").Inc()
	return nil
}

func parseCoordinate(in string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(in), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, strconv.ErrSyntax
	}
	return f, nil
}

// ToggleLayer adds or removes one layer identifier from the selection.
// Identifiers are not checked against any catalogue.
func ToggleLayer(store ports.ViewStore, id string, enabled bool) {
	store.Mutate(func(v viewstate.ViewState) viewstate.Patch {
		if enabled {
			return viewstate.Layers(v.SelectedLayers.With(id))
		}
		return viewstate.Layers(v.SelectedLayers.Without(id))
	})
}
