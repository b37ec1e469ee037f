package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Valkey     ValkeyConfig     `mapstructure:"valkey"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Routing    RoutingConfig    `mapstructure:"routing"`
	Navigation NavigationConfig `mapstructure:"navigation"`
	Camera     CameraConfig     `mapstructure:"camera"`
	Map        MapConfig        `mapstructure:"map"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

type ValkeyConfig struct {
	Addr    string `mapstructure:"addr"`
	Enabled bool   `mapstructure:"enabled"`
}

type TelemetryConfig struct {
	ServiceName string  `mapstructure:"service_name"`
	TempoAddr   string  `mapstructure:"tempo_addr"`
	Enabled     bool    `mapstructure:"enabled"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// RoutingConfig points at the Valhalla routing service.
type RoutingConfig struct {
	ValhallaURL    string `mapstructure:"valhalla_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	// Variants lists which route types to request, in order.
	Variants []string `mapstructure:"variants"`
}

func (r RoutingConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

type NavigationConfig struct {
	ArrivalThresholdMeters float64 `mapstructure:"arrival_threshold_meters"`
	Strict                 bool    `mapstructure:"strict"`
	BreadcrumbMaxAgeSec    int     `mapstructure:"breadcrumb_max_age_seconds"`
	BreadcrumbSpacing      float64 `mapstructure:"breadcrumb_spacing_meters"`
	BreadcrumbCapacity     int     `mapstructure:"breadcrumb_capacity"`
	MinDisplacement        float64 `mapstructure:"min_displacement_meters"`
	BearingWeight          float64 `mapstructure:"bearing_weight"`
}

type CameraConfig struct {
	ZoomThrottleMs           int     `mapstructure:"zoom_throttle_ms"`
	MinZoomStep              float64 `mapstructure:"min_zoom_step"`
	NavigatingPitch          float64 `mapstructure:"navigating_pitch"`
	RecenterNavigatingMeters float64 `mapstructure:"recenter_navigating_meters"`
	RecenterExploringMeters  float64 `mapstructure:"recenter_exploring_meters"`
}

type MapConfig struct {
	ReloadDebounceMs int     `mapstructure:"reload_debounce_ms"`
	TriggerShrink    float64 `mapstructure:"trigger_shrink"`
	CacheTTLSeconds  int     `mapstructure:"cache_ttl_seconds"`
	// FeatureSource is "postgres" or "memory".
	FeatureSource string `mapstructure:"feature_source"`
	// FeaturesFile seeds the memory source with a GeoJSON FeatureCollection.
	FeaturesFile string `mapstructure:"features_file"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("database.enabled", true)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "pedalnav")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "pedalnav")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", true)
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.enabled", true)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.sample_ratio", 0.1)
	v.SetDefault("routing.valhalla_url", "http://localhost:8002")
	v.SetDefault("routing.timeout_seconds", 15)
	v.SetDefault("routing.variants", []string{"fastest", "safest", "shortest"})
	v.SetDefault("navigation.arrival_threshold_meters", 20.0)
	v.SetDefault("navigation.strict", false)
	v.SetDefault("navigation.breadcrumb_max_age_seconds", 20)
	v.SetDefault("navigation.breadcrumb_spacing_meters", 5.0)
	v.SetDefault("navigation.breadcrumb_capacity", 5)
	v.SetDefault("navigation.min_displacement_meters", 8.0)
	v.SetDefault("navigation.bearing_weight", 0.7)
	v.SetDefault("camera.zoom_throttle_ms", 3000)
	v.SetDefault("camera.min_zoom_step", 0.5)
	v.SetDefault("camera.navigating_pitch", 45.0)
	v.SetDefault("camera.recenter_navigating_meters", 15.0)
	v.SetDefault("camera.recenter_exploring_meters", 100.0)
	v.SetDefault("map.reload_debounce_ms", 1000)
	v.SetDefault("map.trigger_shrink", 0.10)
	v.SetDefault("map.cache_ttl_seconds", 120)
	v.SetDefault("map.feature_source", "postgres")
	v.SetDefault("map.features_file", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: PEDALNAV_ROUTING_VALHALLA_URL → routing.valhalla_url
	v.SetEnvPrefix("PEDALNAV")
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

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}

	if c.Database.Enabled {
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
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Enabled && c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, fmt.Sprintf("telemetry.sample_ratio must be 0-1, got %g", c.Telemetry.SampleRatio))
	}

	if c.Routing.ValhallaURL == "" {
		errs = append(errs, "routing.valhalla_url is required")
	}
	if c.Routing.TimeoutSeconds <= 0 {
		errs = append(errs, "routing.timeout_seconds must be positive")
	}
	if len(c.Routing.Variants) == 0 {
		errs = append(errs, "routing.variants must list at least one route type")
	}
	for _, v := range c.Routing.Variants {
		switch v {
		case "fastest", "safest", "shortest":
		default:
			errs = append(errs, fmt.Sprintf("routing.variants: unknown route type %q", v))
		}
	}

	if c.Navigation.ArrivalThresholdMeters <= 0 {
		errs = append(errs, "navigation.arrival_threshold_meters must be positive")
	}
	if c.Navigation.BreadcrumbCapacity < 2 {
		errs = append(errs, "navigation.breadcrumb_capacity must be at least 2")
	}
	if c.Navigation.BearingWeight <= 0 || c.Navigation.BearingWeight > 1 {
		errs = append(errs, "navigation.bearing_weight must be in (0, 1]")
	}
	if c.Camera.ZoomThrottleMs < 0 {
		errs = append(errs, "camera.zoom_throttle_ms must not be negative")
	}
	if c.Camera.RecenterNavigatingMeters <= 0 || c.Camera.RecenterExploringMeters <= 0 {
		errs = append(errs, "camera recenter thresholds must be positive")
	}
	if c.Map.TriggerShrink <= 0 || c.Map.TriggerShrink >= 0.5 {
		errs = append(errs, fmt.Sprintf("map.trigger_shrink must be in (0, 0.5), got %g", c.Map.TriggerShrink))
	}
	if c.Map.ReloadDebounceMs <= 0 {
		errs = append(errs, "map.reload_debounce_ms must be positive")
	}
	switch c.Map.FeatureSource {
	case "postgres":
		if !c.Database.Enabled {
			errs = append(errs, "map.feature_source postgres requires database.enabled")
		}
	case "memory":
	default:
		errs = append(errs, fmt.Sprintf("map.feature_source must be postgres or memory, got %q", c.Map.FeatureSource))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
