package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/groundwatch/internal/adapters/demodata"
	"github.com/samirrijal/groundwatch/internal/adapters/gemini"
	"github.com/samirrijal/groundwatch/internal/adapters/http"
	natsadapter "github.com/samirrijal/groundwatch/internal/adapters/nats"
	"github.com/samirrijal/groundwatch/internal/adapters/nominatim"
	"github.com/samirrijal/groundwatch/internal/adapters/postgres"
	"github.com/samirrijal/groundwatch/internal/adapters/valkey"
	"github.com/samirrijal/groundwatch/internal/core/domain"
	"github.com/samirrijal/groundwatch/internal/core/ports"
	"github.com/samirrijal/groundwatch/internal/core/usecases"
	"github.com/samirrijal/groundwatch/internal/core/viewstate"
	"github.com/samirrijal/groundwatch/internal/pkg/config"
	"github.com/samirrijal/groundwatch/internal/pkg/logging"
	"github.com/samirrijal/groundwatch/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("groundwatch-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logger := logging.Setup("groundwatch-api", logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	deps := &http.Dependencies{}

	// Database: archive and ingested layers. The map works without it.
	var layerRepo ports.LayerRepository = demodata.NewRepo()
	var archive ports.AnalysisRepository
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		slog.Warn("database unavailable, serving demo layers without archive", "error", err)
	} else {
		defer db.Close()
		go db.ReportPoolStats(ctx, 15*time.Second)
		layerRepo = postgres.NewLayerRepo(db, demodata.NewRepo())
		archive = postgres.NewAnalysisRepo(db)
		deps.DB = db
	}

	// Cache
	var cache ports.CacheService
	if c, err := valkey.New(cfg.Valkey.Addr); err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer c.Close()
		cache = c
		deps.Cache = c
	}

	// NATS
	var publisher ports.EventPublisher
	if nc, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable, analyses will not be archived", "error", err)
	} else {
		defer nc.Close()
		publisher = nc
		deps.NATS = nc
	}

	// Language model
	var model ports.LanguageModel
	if cfg.Gemini.APIKey == "" {
		slog.Warn("gemini api key not set, AI endpoints will report a configuration error")
	} else {
		client, err := gemini.New(ctx, gemini.Options{
			APIKey:  cfg.Gemini.APIKey,
			Model:   cfg.Gemini.Model,
			BaseURL: cfg.Gemini.BaseURL,
			Timeout: cfg.Gemini.Timeout,
		})
		if err != nil {
			log.Fatalf("gemini: %v", err)
		}
		model = client
		slog.Info("gemini configured", "model", client.Model())
	}

	geocoder := nominatim.New(nominatim.Options{
		BaseURL:   cfg.Geocoder.BaseURL,
		UserAgent: cfg.Geocoder.UserAgent,
		Timeout:   cfg.Geocoder.Timeout,
	})

	// Use cases. Every lookup, including the per-session search, goes
	// through the cached geocode service.
	geocode := usecases.NewGeocodeService(geocoder, cache, cfg.Geocoder.MinQueryLength)
	sessions := usecases.NewSessionService(usecases.SessionConfig{
		DefaultZoom:   cfg.Map.DefaultZoom,
		DefaultLayers: cfg.Map.DefaultLayers,
		DefaultCenter: viewstate.Center{Latitude: cfg.Map.DefaultLatitude, Longitude: cfg.Map.DefaultLongitude},
		TTL:           cfg.Map.SessionTTL,
		Search: usecases.SearchOptions{
			Debounce:       cfg.Geocoder.Debounce,
			MinQueryLength: cfg.Geocoder.MinQueryLength,
			Zoom:           cfg.Geocoder.Zoom,
			Timeout:        cfg.Geocoder.Timeout,
		},
	}, geocode, publisher, logger)
	defer sessions.Shutdown()
	go sessions.RunSweeper(ctx, time.Minute)

	layers := usecases.NewLayerService(layerRepo, cache)

	deps.Sessions = sessions
	deps.Layers = layers
	deps.Chat = usecases.NewChatService(model, publisher, logger)
	deps.Predictions = usecases.NewPredictionService(model, layers, cache, publisher, logger)
	deps.Geocode = geocode
	deps.Analyses = usecases.NewAnalysisService(archive, layerRepo, sessions.Count)
	deps.Basemaps = basemaps(cfg.Map)

	if cfg.Auth.Enabled {
		deps.Auth = http.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	} else {
		slog.Warn("auth disabled, the signed-in area is open")
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "Groundwatch API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders:    "Location, Link, X-Cache, Deprecation, Sunset",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

func basemaps(m config.MapConfig) []domain.Basemap {
	out := make([]domain.Basemap, 0, len(m.Basemaps))
	for _, b := range m.Basemaps {
		name := b.Name
		if name == "" {
			name = b.ID
		}
		out = append(out, domain.Basemap{
			ID:          b.ID,
			Name:        name,
			URL:         b.URL,
			Attribution: b.Attribution,
			Default:     b.ID == m.DefaultBasemap,
		})
	}
	return out
}
