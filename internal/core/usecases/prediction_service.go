package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/groundwatch/internal/core/domain"
	"github.com/samirrijal/groundwatch/internal/core/ports"
	"github.com/samirrijal/groundwatch/internal/pkg/geospatial"
	"github.com/samirrijal/groundwatch/internal/pkg/metrics"
)

// MissingPredictionParams is the message for requests lacking a location or layer list.
const MissingPredictionParams = "Missing required parameters: latitude, longitude, or selectedLayers."

const (
	nearbyObservationRadius = 5000.0
	maxNearbyInPrompt       = 5
)

// PredictionService asks the language model for groundwater predictions.
type PredictionService struct {
	model     ports.LanguageModel
	layers    *LayerService
	cache     ports.CacheService
	publisher ports.EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewPredictionService creates a new PredictionService. layers, cache and
// publisher may be nil; a nil model fails every call with
// domain.ErrNotConfigured.
func NewPredictionService(model ports.LanguageModel, layers *LayerService, cache ports.CacheService, publisher ports.EventPublisher, logger *slog.Logger) *PredictionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PredictionService{
		model:     model,
		layers:    layers,
		cache:     cache,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Configured reports whether a language model is available.
func (s *PredictionService) Configured() bool { return s.model != nil }

// Predict returns a prediction for the requested point and layers.
func (s *PredictionService) Predict(ctx context.Context, sessionID string, req domain.PredictionRequest) (*domain.Prediction, error) {
	if req.SelectedLayers == nil {
		return nil, domain.NewValidationError("selectedLayers", MissingPredictionParams)
	}
	if !geospatial.ValidLatLon(req.Latitude, req.Longitude) {
		return nil, domain.NewValidationError("latitude", "latitude/longitude out of range")
	}
	if s.model == nil {
		return nil, domain.ErrNotConfigured
	}

	layers := append([]string(nil), req.SelectedLayers...)
	sort.Strings(layers)

	cacheKey := fmt.Sprintf("prediction:%.4f:%.4f:%s", req.Latitude, req.Longitude, strings.Join(layers, "|"))
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var p domain.Prediction
			if err := json.Unmarshal(data, &p); err == nil {
				metrics.CacheHits.WithLabelValues("prediction").Inc()
				p.Cached = true
				return &p, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("prediction").Inc()
	}

	prompt := PredictionPrompt(req, s.nearby(ctx, req))

	start := time.Now()
	text, err := s.model.Generate(ctx, []domain.Turn{{Role: domain.RoleUser, Text: prompt}})
	metrics.ObserveLLM("prediction", start, err)
	if err != nil {
		return nil, fmt.Errorf("prediction: %w", err)
	}

	p := &domain.Prediction{Text: text}

	// Cache for 10 minutes
	if s.cache != nil {
		if data, err := json.Marshal(p); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 600)
		}
	}

	publishAnalysis(ctx, s.publisher, s.logger, &domain.Analysis{
		ID:        uuid.NewString(),
		Kind:      domain.AnalysisPrediction,
		SessionID: sessionID,
		Prompt:    prompt,
		Response:  text,
		Location:  &domain.GeoPoint{Lat: req.Latitude, Lon: req.Longitude},
		Layers:    req.SelectedLayers,
		CreatedAt: s.now().UTC(),
	})

	return p, nil
}

// PredictForSession predicts at the session's current centre using its
// selected layers. It fails before the map has reported a centre.
func (s *PredictionService) PredictForSession(ctx context.Context, sess *Session) (*domain.Prediction, error) {
	state := sess.Store.Read()
	c, ok := state.Center()
	if !ok {
		return nil, domain.NewValidationError("latitude", MissingPredictionParams)
	}
	return s.Predict(ctx, sess.ID, domain.PredictionRequest{
		Latitude:       c.Latitude,
		Longitude:      c.Longitude,
		SelectedLayers: state.SelectedLayers.Slice(),
	})
}

func (s *PredictionService) nearby(ctx context.Context, req domain.PredictionRequest) []domain.Observation {
	if s.layers == nil || len(req.SelectedLayers) == 0 {
		return nil
	}
	obs, err := s.layers.Nearby(ctx, req.Latitude, req.Longitude, nearbyObservationRadius, req.SelectedLayers)
	if err != nil {
		s.logger.DebugContext(ctx, "nearby observations unavailable", "error", err)
		return nil
	}
	if len(obs) > maxNearbyInPrompt {
		obs = obs[:maxNearbyInPrompt]
	}
	return obs
}

// PredictionPrompt builds the model prompt for req, mentioning any nearby
// observations.
func PredictionPrompt(req domain.PredictionRequest, nearby []domain.Observation) string {
	var b strings.Builder
	fmt.Fprintf(&b,
		"Given the location with Latitude: %s and Longitude: %s, and the active data layers: %s. "+
			"Please predict the groundwater levels and explain the influencing factors based on these data points. "+
			"If no specific data is provided for these layers at this exact point, give a general educated "+
			"prediction based on common geographical knowledge and highlight what data would improve accuracy. "+
			"Keep the response concise and informative.",
		formatCoord(req.Latitude), formatCoord(req.Longitude), strings.Join(req.SelectedLayers, ", "),
	)

	if len(nearby) > 0 {
		parts := make([]string, 0, len(nearby))
		for _, o := range nearby {
			parts = append(parts, fmt.Sprintf("%s (%s, %.0f m%s)", o.Name, o.LayerID, o.Distance, describeProps(o.Properties)))
		}
		b.WriteString(" Nearby observations: ")
		b.WriteString(strings.Join(parts, "; "))
		b.WriteString(".")
	}
	return b.String()
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func describeProps(props map[string]any) string {
	keys := make([]string, 0, len(props))
	for k := range props {
		if k == "name" || k == "id" {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, props[k]))
	}
	return ", " + strings.Join(parts, ", ")
}
