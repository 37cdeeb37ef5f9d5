package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Server:   ServerConfig{Port: 8080, ReadTimeout: 10, WriteTimeout: 30},
		Database: DatabaseConfig{Host: "localhost", Port: 5432, User: "groundwatch", DBName: "groundwatch"},
		NATS:     NATSConfig{URL: "nats://localhost:4222"},
		Valkey:   ValkeyConfig{Addr: "localhost:6379"},
		Gemini:   GeminiConfig{Model: "gemini-2.0-flash", Timeout: 30 * time.Second},
		Geocoder: GeocoderConfig{
			BaseURL:        "https://nominatim.openstreetmap.org",
			Timeout:        5 * time.Second,
			Debounce:       500 * time.Millisecond,
			MinQueryLength: 3,
			Zoom:           10,
		},
		Map: MapConfig{DefaultZoom: 2, DefaultLayers: []string{"Groundwater Levels"}, SessionTTL: time.Hour},
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("groundwatch-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Map.DefaultZoom != 2 {
		t.Errorf("expected default zoom 2, got %d", cfg.Map.DefaultZoom)
	}
	if len(cfg.Map.DefaultLayers) != 1 || cfg.Map.DefaultLayers[0] != "Groundwater Levels" {
		t.Errorf("unexpected default layers: %v", cfg.Map.DefaultLayers)
	}
	if cfg.Geocoder.Debounce != 500*time.Millisecond {
		t.Errorf("expected 500ms debounce, got %s", cfg.Geocoder.Debounce)
	}
	if len(cfg.Map.Basemaps) != 3 || cfg.Map.Basemaps[0].ID != "osm" || cfg.Map.DefaultBasemap != "osm" {
		t.Errorf("unexpected basemaps: %+v (default %q)", cfg.Map.Basemaps, cfg.Map.DefaultBasemap)
	}
	if cfg.Telemetry.ServiceName != "groundwatch-test" {
		t.Errorf("expected service name from argument, got %q", cfg.Telemetry.ServiceName)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("GROUNDWATCH_SERVER_PORT", "9191")
	t.Setenv("GROUNDWATCH_GEMINI_API_KEY", "secret")

	cfg, err := Load("groundwatch-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9191 {
		t.Errorf("expected port 9191, got %d", cfg.Server.Port)
	}
	if cfg.Gemini.APIKey != "secret" {
		t.Errorf("expected api key from env, got %q", cfg.Gemini.APIKey)
	}
}

func TestValidate_OK(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	cfg.Geocoder.MinQueryLength = 0
	cfg.Auth.Enabled = true

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"server.port", "geocoder.min_query_length", "auth.jwt_secret"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in error, got: %v", want, err)
		}
	}
}

func TestValidate_Basemaps(t *testing.T) {
	cfg := validConfig()
	cfg.Map.Basemaps = []BasemapConfig{
		{ID: "osm", URL: "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"},
		{ID: "osm", URL: "https://example.org/{z}/{x}/{y}.png"},
		{Name: "no id"},
	}
	cfg.Map.DefaultBasemap = "esri"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{`duplicate id "osm"`, "map.basemaps[2]", `map.default_basemap "esri"`} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in error, got: %v", want, err)
		}
	}
}
