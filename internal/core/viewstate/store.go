// Package viewstate holds the map viewport and layer selection shared by the
// components of one map page session.
package viewstate

import (
	"sort"
	"sync"
)

// DefaultZoom is the zoom a store starts with when none is given.
const DefaultZoom = 2

// Option configures a new Store.
type Option func(*ViewState)

// WithZoom sets the initial zoom.
func WithZoom(zoom int) Option {
	return func(v *ViewState) { v.Zoom = zoom }
}

// WithLayers sets the initially selected layers.
func WithLayers(ids ...string) Option {
	return func(v *ViewState) { v.SelectedLayers = NewLayerSet(ids...) }
}

// Store is the single source of truth for one session's view state.
//
// Every mutation queues a snapshot for all subscribers. Snapshots are
// delivered one at a time, in mutation order, outside the store lock. The
// mutating call delivers the queue itself unless a delivery is already
// running, in which case that delivery picks the snapshot up before it
// finishes. A subscriber therefore always ends on the latest state, and a
// subscriber that writes to the store sees its own change after it returns.
type Store struct {
	mu     sync.Mutex
	state  ViewState
	subs   map[uint64]func(ViewState)
	nextID uint64

	queue      []ViewState
	delivering bool
}

// New creates a store with no coordinates, no pending navigation, the
// default zoom and an empty layer set, then applies opts.
func New(opts ...Option) *Store {
	st := ViewState{Zoom: DefaultZoom, SelectedLayers: NewLayerSet()}
	for _, opt := range opts {
		opt(&st)
	}
	return &Store{state: st, subs: make(map[uint64]func(ViewState))}
}

// Read returns a snapshot of the current state.
func (s *Store) Read() ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Patch shallow-merges p into the state. Values are stored verbatim.
func (s *Store) Patch(p Patch) {
	s.update(func(v *ViewState) { v.apply(p) })
}

// Mutate applies the patch fn computes from the current state, atomically.
// fn runs under the store lock and must not call back into the store.
func (s *Store) Mutate(fn func(ViewState) Patch) {
	s.update(func(v *ViewState) { v.apply(fn(v.clone())) })
}

// IssueNavigation records a request to move the viewport. A nil zoom
// defaults to the current zoom. No rendered viewport is touched.
func (s *Store) IssueNavigation(lat, lon float64, zoom *float64) {
	s.update(func(v *ViewState) {
		z := float64(v.Zoom)
		if zoom != nil {
			z = *zoom
		}
		v.PendingNavigation = &Navigation{Latitude: lat, Longitude: lon, Zoom: &z}
	})
}

// TakeNavigation removes and returns the pending navigation in one step.
// It returns false, without notifying anyone, when nothing is pending.
func (s *Store) TakeNavigation() (Navigation, bool) {
	s.mu.Lock()
	nav := s.state.PendingNavigation
	if nav == nil {
		s.mu.Unlock()
		return Navigation{}, false
	}
	s.state.PendingNavigation = nil
	s.queue = append(s.queue, s.state.clone())
	s.mu.Unlock()

	s.deliver()
	return *nav, true
}

// Subscribe registers fn for change notifications and returns a function
// that removes it. Subscribers are called in registration order.
func (s *Store) Subscribe(fn func(ViewState)) (unsubscribe func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Subscribers returns the number of registered subscribers.
func (s *Store) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Store) update(fn func(*ViewState)) {
	s.mu.Lock()
	fn(&s.state)
	s.queue = append(s.queue, s.state.clone())
	s.mu.Unlock()

	s.deliver()
}

// deliver drains the snapshot queue unless another call is already doing so.
// The queue is checked and the delivering flag cleared under one lock, so a
// snapshot queued while the loop winds down is never stranded.
func (s *Store) deliver() {
	s.mu.Lock()
	if s.delivering {
		s.mu.Unlock()
		return
	}
	s.delivering = true

	locked := true
	defer func() {
		if !locked {
			// a subscriber panicked
			s.mu.Lock()
		}
		s.delivering = false
		s.mu.Unlock()
	}()

	for len(s.queue) > 0 {
		snapshot := s.queue[0]
		s.queue[0] = ViewState{}
		s.queue = s.queue[1:]
		subs := s.subscribers()
		s.mu.Unlock()
		locked = false

		notify(snapshot, subs)

		s.mu.Lock()
		locked = true
	}
}

// subscribers must be called with s.mu held.
func (s *Store) subscribers() []func(ViewState) {
	ids := make([]uint64, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]func(ViewState), len(ids))
	for i, id := range ids {
		out[i] = s.subs[id]
	}
	return out
}

func notify(snapshot ViewState, subs []func(ViewState)) {
	for _, fn := range subs {
		fn(snapshot.clone())
	}
}
