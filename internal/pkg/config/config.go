package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Geocoder  GeocoderConfig  `mapstructure:"geocoder"`
	Map       MapConfig       `mapstructure:"map"`
	Auth      AuthConfig      `mapstructure:"auth"`
}

type ServerConfig struct {
	Port           int    `mapstructure:"port"`
	ReadTimeout    int    `mapstructure:"read_timeout"`
	WriteTimeout   int    `mapstructure:"write_timeout"`
	AllowedOrigins string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// GeminiConfig configures the generative-language client.
// An empty APIKey is allowed; the AI endpoints then report a configuration error.
type GeminiConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// GeocoderConfig configures the Nominatim-compatible lookup and the search producer.
type GeocoderConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	UserAgent      string        `mapstructure:"user_agent"`
	Timeout        time.Duration `mapstructure:"timeout"`
	Debounce       time.Duration `mapstructure:"debounce"`
	MinQueryLength int           `mapstructure:"min_query_length"`
	Zoom           float64       `mapstructure:"zoom"`
}

// MapConfig holds the defaults a new map session starts from.
type MapConfig struct {
	DefaultZoom      int             `mapstructure:"default_zoom"`
	DefaultLayers    []string        `mapstructure:"default_layers"`
	DefaultLatitude  float64         `mapstructure:"default_latitude"`
	DefaultLongitude float64         `mapstructure:"default_longitude"`
	SessionTTL       time.Duration   `mapstructure:"session_ttl"`
	Basemaps         []BasemapConfig `mapstructure:"basemaps"`
	DefaultBasemap   string          `mapstructure:"default_basemap"`
}

// BasemapConfig is one tile provider offered to the browser map.
type BasemapConfig struct {
	ID          string `mapstructure:"id"`
	Name        string `mapstructure:"name"`
	URL         string `mapstructure:"url"`
	Attribution string `mapstructure:"attribution"`
}

// AuthConfig describes how identity-provider tokens are verified.
type AuthConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()
	setDefaults(v, service)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: GROUNDWATCH_GEMINI_API_KEY → gemini.api_key
	v.SetEnvPrefix("GROUNDWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.allowed_origins", "http://localhost:3000")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "groundwatch")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "groundwatch")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("gemini.base_url", "")
	v.SetDefault("gemini.timeout", 30*time.Second)
	v.SetDefault("geocoder.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocoder.user_agent", "groundwatch/1.0")
	v.SetDefault("geocoder.timeout", 5*time.Second)
	v.SetDefault("geocoder.debounce", 500*time.Millisecond)
	v.SetDefault("geocoder.min_query_length", 3)
	v.SetDefault("geocoder.zoom", 10)
	v.SetDefault("map.default_zoom", 2)
	v.SetDefault("map.default_layers", []string{"Groundwater Levels"})
	v.SetDefault("map.default_latitude", 20)
	v.SetDefault("map.default_longitude", 0)
	v.SetDefault("map.session_ttl", 2*time.Hour)
	v.SetDefault("map.default_basemap", "osm")
	v.SetDefault("map.basemaps", []map[string]any{
		{
			"id":          "osm",
			"name":        "OpenStreetMap",
			"url":         "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png",
			"attribution": "&copy; OpenStreetMap contributors",
		},
		{
			"id":          "esri",
			"name":        "Esri World Imagery",
			"url":         "https://server.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}",
			"attribution": "Tiles &copy; Esri",
		},
		{
			"id":          "google",
			"name":        "Google Maps",
			"url":         "https://{s}.google.com/vt/lyrs=m&x={x}&y={y}&z={z}",
			"attribution": "Map data &copy; Google",
		},
	})
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Gemini.Model == "" {
		errs = append(errs, "gemini.model is required")
	}
	if c.Gemini.Timeout <= 0 {
		errs = append(errs, "gemini.timeout must be positive")
	}
	if c.Geocoder.BaseURL == "" {
		errs = append(errs, "geocoder.base_url is required")
	}
	if c.Geocoder.Timeout <= 0 {
		errs = append(errs, "geocoder.timeout must be positive")
	}
	if c.Geocoder.Debounce < 0 {
		errs = append(errs, "geocoder.debounce must not be negative")
	}
	if c.Geocoder.MinQueryLength < 1 {
		errs = append(errs, "geocoder.min_query_length must be at least 1")
	}
	if c.Map.DefaultZoom < 0 {
		errs = append(errs, fmt.Sprintf("map.default_zoom must not be negative, got %d", c.Map.DefaultZoom))
	}
	if c.Map.SessionTTL <= 0 {
		errs = append(errs, "map.session_ttl must be positive")
	}
	seen := make(map[string]bool, len(c.Map.Basemaps))
	for i, b := range c.Map.Basemaps {
		if b.ID == "" || b.URL == "" {
			errs = append(errs, fmt.Sprintf("map.basemaps[%d] needs an id and a url", i))
			continue
		}
		if seen[b.ID] {
			errs = append(errs, fmt.Sprintf("map.basemaps has duplicate id %q", b.ID))
		}
		seen[b.ID] = true
	}
	if c.Map.DefaultBasemap != "" && len(c.Map.Basemaps) > 0 && !seen[c.Map.DefaultBasemap] {
		errs = append(errs, fmt.Sprintf("map.default_basemap %q is not among map.basemaps", c.Map.DefaultBasemap))
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		errs = append(errs, "auth.jwt_secret is required when auth.enabled is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
