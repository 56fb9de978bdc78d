package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Tracking TrackingConfig `mapstructure:"tracking"`
	Position PositionConfig `mapstructure:"position"`
	Geocode  GeocodeConfig  `mapstructure:"geocode"`
	Proxy    ProxyConfig    `mapstructure:"proxy"`
	Track    TrackConfig    `mapstructure:"track"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	Environment     string        `mapstructure:"environment"`
	MetricsEnabled  bool          `mapstructure:"metrics_enabled"`
	HealthCheckPath string        `mapstructure:"health_check_path"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
}

// TrackingConfig holds the refresh loop settings
type TrackingConfig struct {
	AutoStart      bool          `mapstructure:"auto_start"`
	Interval       time.Duration `mapstructure:"interval"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// FailureThreshold is the number of consecutive failed fetches after
	// which the last snapshot is republished marked stale. 0 disables it.
	FailureThreshold int `mapstructure:"failure_threshold"`
}

// PositionConfig selects and configures the satellite position source
type PositionConfig struct {
	Source    string  `mapstructure:"source"` // http or tle
	URL       string  `mapstructure:"url"`
	TLEURL    string  `mapstructure:"tle_url"`
	RateLimit float64 `mapstructure:"rate_limit"` // requests per second, 0 disables pacing
	Burst     int     `mapstructure:"burst"`
}

// GeocodeConfig configures the reverse-geocoding source
type GeocodeConfig struct {
	URL      string `mapstructure:"url"`
	Language string `mapstructure:"language"`
}

// ProxyConfig configures the /api/iss pass-through endpoint
type ProxyConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Path        string        `mapstructure:"path"`
	UpstreamURL string        `mapstructure:"upstream_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	RateLimit   float64       `mapstructure:"rate_limit"`
	Burst       int           `mapstructure:"burst"`
}

// Ground track stores
const (
	TrackStoreMemory = "memory"
	TrackStoreRedis  = "redis"
)

// TrackConfig bounds the recorded ground track. It is an ephemeral cache:
// in process memory by default, or a Redis list expiring after TTL when
// store is "redis" so several instances can share one trail.
type TrackConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Store   string        `mapstructure:"store"`
	Length  int           `mapstructure:"length"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// RedisConfig holds Redis-related configuration. An empty URL keeps the
// event bus in memory.
type RedisConfig struct {
	URL           string `mapstructure:"url"`
	ConsumerGroup string `mapstructure:"consumer_group"`
}

// MQTTConfig configures the optional snapshot sink. An empty broker
// disables it.
type MQTTConfig struct {
	Broker   string        `mapstructure:"broker"`
	ClientID string        `mapstructure:"client_id"`
	Topic    string        `mapstructure:"topic"`
	QoS      int           `mapstructure:"qos"`
	Retained bool          `mapstructure:"retained"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// TracingConfig governs OpenTelemetry setup
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	Exporter    string  `mapstructure:"exporter"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Environment string `mapstructure:"environment"`
	Encoding    string `mapstructure:"encoding"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/satwatch")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, continue with env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.metrics_enabled", true)
	v.SetDefault("server.health_check_path", "/health")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")

	// Tracking defaults
	v.SetDefault("tracking.auto_start", true)
	v.SetDefault("tracking.interval", "5s")
	v.SetDefault("tracking.request_timeout", "10s")
	v.SetDefault("tracking.failure_threshold", 0)

	// Position source defaults
	v.SetDefault("position.source", "http")
	v.SetDefault("position.url", "https://api.wheretheiss.at/v1/satellites/25544")
	v.SetDefault("position.tle_url", "https://api.wheretheiss.at/v1/satellites/25544/tles")
	v.SetDefault("position.rate_limit", 1.0)
	v.SetDefault("position.burst", 1)

	// Geocode defaults
	v.SetDefault("geocode.url", "https://api.bigdatacloud.net/data/reverse-geocode-client")
	v.SetDefault("geocode.language", "en")

	// Proxy defaults
	v.SetDefault("proxy.enabled", true)
	v.SetDefault("proxy.path", "/api/iss")
	v.SetDefault("proxy.upstream_url", "https://api.wheretheiss.at/v1/satellites/25544")
	v.SetDefault("proxy.timeout", "10s")
	v.SetDefault("proxy.rate_limit", 1.0)
	v.SetDefault("proxy.burst", 2)

	// Ground track defaults
	v.SetDefault("track.enabled", true)
	v.SetDefault("track.store", TrackStoreMemory)
	v.SetDefault("track.length", 120)
	v.SetDefault("track.ttl", "1h")

	// Redis defaults
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.consumer_group", "satwatch")

	// MQTT defaults
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.client_id", "satwatch-snapshot-sink")
	v.SetDefault("mqtt.topic", "satwatch/snapshot")
	v.SetDefault("mqtt.qos", 0)
	v.SetDefault("mqtt.retained", true)
	v.SetDefault("mqtt.timeout", "5s")

	// Tracing defaults
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "satwatch")
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.sample_ratio", 1.0)

	// CORS defaults
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Content-Type"})

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.environment", "development")
	v.SetDefault("log.encoding", "console")
}

// validateConfig validates the loaded configuration
func validateConfig(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}

	if cfg.Tracking.Interval < 500*time.Millisecond {
		return fmt.Errorf("tracking interval must be at least 500ms, got %s", cfg.Tracking.Interval)
	}

	if cfg.Tracking.RequestTimeout <= 0 {
		return fmt.Errorf("tracking request timeout must be positive")
	}

	if cfg.Tracking.FailureThreshold < 0 {
		return fmt.Errorf("tracking failure threshold cannot be negative")
	}

	switch cfg.Position.Source {
	case "http":
		if err := validateURL("position.url", cfg.Position.URL); err != nil {
			return err
		}
	case "tle":
		if err := validateURL("position.tle_url", cfg.Position.TLEURL); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid position source: %s", cfg.Position.Source)
	}

	if cfg.Position.RateLimit < 0 || cfg.Proxy.RateLimit < 0 {
		return fmt.Errorf("rate limits cannot be negative")
	}

	if err := validateURL("geocode.url", cfg.Geocode.URL); err != nil {
		return err
	}

	if cfg.Proxy.Enabled {
		if err := validateURL("proxy.upstream_url", cfg.Proxy.UpstreamURL); err != nil {
			return err
		}
		if !strings.HasPrefix(cfg.Proxy.Path, "/") {
			return fmt.Errorf("proxy path must start with /: %s", cfg.Proxy.Path)
		}
	}

	if cfg.Track.Enabled {
		if cfg.Track.Length < 1 {
			return fmt.Errorf("track length must be positive, got %d", cfg.Track.Length)
		}
		switch cfg.Track.Store {
		case TrackStoreMemory:
		case TrackStoreRedis:
			if cfg.Redis.URL == "" {
				return fmt.Errorf("track store redis requires redis.url")
			}
			if cfg.Track.TTL <= 0 {
				return fmt.Errorf("track ttl must be positive for the redis store")
			}
		default:
			return fmt.Errorf("unknown track store: %s", cfg.Track.Store)
		}
	}

	if cfg.MQTT.QoS < 0 || cfg.MQTT.QoS > 2 {
		return fmt.Errorf("invalid mqtt qos: %d", cfg.MQTT.QoS)
	}

	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing sample ratio must be between 0 and 1")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, cfg.Log.Level) {
		return fmt.Errorf("invalid log level: %s", cfg.Log.Level)
	}

	validEncodings := []string{"json", "console"}
	if !contains(validEncodings, cfg.Log.Encoding) {
		return fmt.Errorf("invalid log encoding: %s", cfg.Log.Encoding)
	}

	return nil
}

func validateURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", key, raw)
	}
	return nil
}

// GetServerAddr returns the server address in host:port format
func (s *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// IsProduction returns true if the environment is production
func (s *ServerConfig) IsProduction() bool {
	return strings.ToLower(s.Environment) == "production"
}

// contains checks if a slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if strings.EqualFold(s, item) {
			return true
		}
	}
	return false
}
