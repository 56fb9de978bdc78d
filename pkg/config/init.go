package config

import (
	"fmt"
	"io"

	"github.com/danghamo/satwatch/pkg/logger"
)

// Initialize loads configuration and sets up global logger
func Initialize() (*Config, *logger.Logger, error) {
	return InitializeWithOutput(nil)
}

// InitializeWithOutput is Initialize with the log destination overridden.
// A nil writer keeps the logger default (stdout).
func InitializeWithOutput(out io.Writer) (*Config, *logger.Logger, error) {
	cfg, err := Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Log.Level),
		Environment: cfg.Log.Environment,
		Encoding:    cfg.Log.Encoding,
		Output:      out,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	logger.SetGlobalLogger(appLogger)

	fields := map[string]interface{}{
		"environment":       cfg.Server.Environment,
		"server_port":       cfg.Server.Port,
		"tracking_interval": cfg.Tracking.Interval.String(),
		"auto_start":        cfg.Tracking.AutoStart,
		"position_source":   cfg.Position.Source,
		"redis_enabled":     cfg.Redis.URL != "",
		"mqtt_enabled":      cfg.MQTT.Broker != "",
		"log_level":         cfg.Log.Level,
	}
	appLogger.WithFields(fields).Info("Configuration and logger initialized successfully")

	return cfg, appLogger, nil
}
