package usecases

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/groundwatch/internal/core/domain"
	"github.com/samirrijal/groundwatch/internal/core/ports"
	"github.com/samirrijal/groundwatch/internal/core/viewstate"
	"github.com/samirrijal/groundwatch/internal/pkg/metrics"
)

// Session is the server-side half of one open map page.
type Session struct {
	ID        string
	CreatedAt time.Time
	Store     *viewstate.Store
	Search    *LocationSearch
	Chat      *Transcript

	lastSeen    atomic.Int64
	unsubscribe func()
}

// Touch marks the session as used.
func (s *Session) Touch(now time.Time) { s.lastSeen.Store(now.UnixNano()) }

// LastSeen returns when the session was last used.
func (s *Session) LastSeen() time.Time { return time.Unix(0, s.lastSeen.Load()) }

func (s *Session) close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.Search.Close()
}

// SessionConfig holds the defaults new sessions start from.
type SessionConfig struct {
	DefaultZoom   int
	DefaultLayers []string
	DefaultCenter viewstate.Center
	TTL           time.Duration
	Search        SearchOptions
}

// SessionService owns the map page sessions held in memory.
type SessionService struct {
	cfg       SessionConfig
	geocoder  ports.Geocoder
	publisher ports.EventPublisher
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionService creates a new SessionService. publisher may be nil.
func NewSessionService(cfg SessionConfig, geocoder ports.Geocoder, publisher ports.EventPublisher, logger *slog.Logger) *SessionService {
	if cfg.TTL <= 0 {
		cfg.TTL = 2 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionService{
		cfg:       cfg,
		geocoder:  geocoder,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		sessions:  make(map[string]*Session),
	}
}

// WithClock replaces the time source used for idle tracking.
func (s *SessionService) WithClock(now func() time.Time) *SessionService {
	s.now = now
	return s
}

// DefaultCenter is where a viewport with no stored centre starts.
func (s *SessionService) DefaultCenter() viewstate.Center { return s.cfg.DefaultCenter }

// NavigationZoom is the zoom used for typed coordinates.
func (s *SessionService) NavigationZoom() float64 { return s.cfg.Search.Zoom }

// Create opens a new session with a fresh store.
func (s *SessionService) Create(ctx context.Context) *Session {
	store := viewstate.New(
		viewstate.WithZoom(s.cfg.DefaultZoom),
		viewstate.WithLayers(s.cfg.DefaultLayers...),
	)

	now := s.now()
	sess := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		Store:     store,
		Search:    NewLocationSearch(store, s.geocoder, s.cfg.Search, s.logger),
		Chat:      NewTranscript(0),
	}
	sess.Touch(now)

	if s.publisher != nil {
		id := sess.ID
		sess.unsubscribe = store.Subscribe(func(st viewstate.ViewState) {
			pubCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := s.publisher.PublishViewState(pubCtx, id, st); err != nil {
				s.logger.Debug("publish view state failed", "session", id, "error", err)
			}
		})
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	n := len(s.sessions)
	s.mu.Unlock()

	metrics.ActiveSessions.Set(float64(n))
	s.logger.InfoContext(ctx, "map session created", "session", sess.ID)
	return sess
}

// Get returns a live session and marks it as used.
func (s *SessionService) Get(id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	sess.Touch(s.now())
	return sess, nil
}

// Delete closes a session, dropping any pending search.
func (s *SessionService) Delete(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	n := len(s.sessions)
	s.mu.Unlock()

	if !ok {
		return domain.ErrSessionNotFound
	}
	sess.close()
	metrics.ActiveSessions.Set(float64(n))
	return nil
}

// Count returns the number of live sessions.
func (s *SessionService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep closes sessions idle for longer than the TTL and returns how many
// were removed.
func (s *SessionService) Sweep() int {
	cutoff := s.now().Add(-s.cfg.TTL)

	s.mu.Lock()
	var expired []*Session
	for id, sess := range s.sessions {
		if sess.LastSeen().Before(cutoff) {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	n := len(s.sessions)
	s.mu.Unlock()

	for _, sess := range expired {
		sess.close()
	}
	if len(expired) > 0 {
		metrics.ActiveSessions.Set(float64(n))
		s.logger.Info("expired idle map sessions", "count", len(expired))
	}
	return len(expired)
}

// RunSweeper calls Sweep every interval until ctx is cancelled.
func (s *SessionService) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Shutdown closes every session.
func (s *SessionService) Shutdown() {
	s.mu.Lock()
	all := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for _, sess := range all {
		sess.close()
	}
	metrics.ActiveSessions.Set(0)
}
