package http

import (
	natsadapter "github.com/samirrijal/groundwatch/internal/adapters/nats"
	"github.com/samirrijal/groundwatch/internal/adapters/postgres"
	"github.com/samirrijal/groundwatch/internal/adapters/valkey"
	"github.com/samirrijal/groundwatch/internal/core/domain"
	"github.com/samirrijal/groundwatch/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
// Infrastructure handles may be nil when the backing service is not running.
type Dependencies struct {
	Sessions    *usecases.SessionService
	Chat        *usecases.ChatService
	Predictions *usecases.PredictionService
	Geocode     *usecases.GeocodeService
	Layers      *usecases.LayerService
	Analyses    *usecases.AnalysisService
	Basemaps    []domain.Basemap
	Auth        *Verifier // nil: every caller counts as signed in
	NATS        *natsadapter.Publisher
	DB          *postgres.DB
	Cache       *valkey.Cache
}
