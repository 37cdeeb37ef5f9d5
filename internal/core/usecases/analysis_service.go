package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/groundwatch/internal/core/domain"
	"github.com/samirrijal/groundwatch/internal/core/ports"
	"github.com/samirrijal/groundwatch/internal/pkg/metrics"
)

const recentAnalyses = 5

// AnalysisService reads and writes the archive of chats and predictions.
type AnalysisService struct {
	repo           ports.AnalysisRepository
	layers         ports.LayerRepository
	activeSessions func() int
}

// NewAnalysisService creates a new AnalysisService. A nil repo makes the
// archive unavailable; layers and activeSessions may be nil.
func NewAnalysisService(repo ports.AnalysisRepository, layers ports.LayerRepository, activeSessions func() int) *AnalysisService {
	return &AnalysisService{repo: repo, layers: layers, activeSessions: activeSessions}
}

// Archive stores one analysis event.
func (s *AnalysisService) Archive(ctx context.Context, a *domain.Analysis) error {
	if s.repo == nil {
		return domain.ErrArchiveUnavailable
	}
	if a.Kind != domain.AnalysisChat && a.Kind != domain.AnalysisPrediction {
		return domain.NewValidationError("kind", fmt.Sprintf("unknown analysis kind %q", a.Kind))
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	if err := s.repo.Insert(ctx, a); err != nil {
		return fmt.Errorf("archive analysis %s: %w", a.ID, err)
	}
	metrics.AnalysesArchived.WithLabelValues(string(a.Kind)).Inc()
	return nil
}

// List returns archived analyses, newest first.
func (s *AnalysisService) List(ctx context.Context, offset, limit int) ([]domain.Analysis, error) {
	if s.repo == nil {
		return nil, domain.ErrArchiveUnavailable
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, offset, limit)
}

// Count returns the number of archived analyses.
func (s *AnalysisService) Count(ctx context.Context) (int, error) {
	if s.repo == nil {
		return 0, domain.ErrArchiveUnavailable
	}
	counts, err := s.repo.CountByKind(ctx)
	if err != nil {
		return 0, fmt.Errorf("count analyses: %w", err)
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	return total, nil
}

// Overview summarises the archive for the dashboard.
func (s *AnalysisService) Overview(ctx context.Context) (*domain.DashboardOverview, error) {
	out := &domain.DashboardOverview{Recent: []domain.Analysis{}}

	if s.activeSessions != nil {
		out.ActiveSessions = s.activeSessions()
	}
	if s.layers != nil {
		layers, err := s.layers.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list layers: %w", err)
		}
		out.Layers = len(layers)
	}
	if s.repo == nil {
		return out, nil
	}

	counts, err := s.repo.CountByKind(ctx)
	if err != nil {
		return nil, fmt.Errorf("count analyses: %w", err)
	}
	out.Chats = counts[domain.AnalysisChat]
	out.Predictions = counts[domain.AnalysisPrediction]

	recent, err := s.repo.List(ctx, 0, recentAnalyses)
	if err != nil {
		return nil, fmt.Errorf("recent analyses: %w", err)
	}
	if recent != nil {
		out.Recent = recent
	}
	return out, nil
}
