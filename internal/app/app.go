// Package app assembles the tracking core from configuration. Both the HTTP
// server and the console front end build their controller here.
package app

import (
	"fmt"

	"github.com/danghamo/satwatch/internal/source/geocode"
	"github.com/danghamo/satwatch/internal/source/position"
	"github.com/danghamo/satwatch/internal/tracking"
	"github.com/danghamo/satwatch/pkg/config"
	"github.com/danghamo/satwatch/pkg/httpx"
	"github.com/danghamo/satwatch/pkg/logger"
)

const (
	SourceHTTP = "http"
	SourceTLE  = "tle"
)

// NewPositionFetcher builds the fetcher selected by cfg.Position.Source
func NewPositionFetcher(cfg *config.Config, log *logger.Logger) (tracking.PositionFetcher, error) {
	client := httpx.NewClient("position", log,
		httpx.WithTimeout(cfg.Tracking.RequestTimeout),
		httpx.WithRateLimit(cfg.Position.RateLimit, cfg.Position.Burst))

	switch cfg.Position.Source {
	case SourceHTTP:
		return position.NewHTTPFetcher(cfg.Position.URL, client, log), nil
	case SourceTLE:
		return position.NewTLEFetcher(cfg.Position.TLEURL, client, log), nil
	default:
		return nil, fmt.Errorf("unknown position source %q", cfg.Position.Source)
	}
}

// NewGeoLocator builds the reverse-geocoding locator
func NewGeoLocator(cfg *config.Config, log *logger.Logger) tracking.GeoLocator {
	client := httpx.NewClient("geocode", log, httpx.WithTimeout(cfg.Tracking.RequestTimeout))
	return geocode.NewHTTPLocator(cfg.Geocode.URL, cfg.Geocode.Language, client, log)
}

// TrackingConfig maps the loaded configuration onto the controller's
func TrackingConfig(cfg *config.Config) tracking.Config {
	return tracking.Config{
		Interval:         cfg.Tracking.Interval,
		AutoStart:        cfg.Tracking.AutoStart,
		RequestTimeout:   cfg.Tracking.RequestTimeout,
		FailureThreshold: cfg.Tracking.FailureThreshold,
	}
}

// NewController wires the configured sources into a tracking controller
func NewController(cfg *config.Config, log *logger.Logger, opts ...tracking.Option) (*tracking.Controller, error) {
	fetcher, err := NewPositionFetcher(cfg, log)
	if err != nil {
		return nil, err
	}
	return tracking.NewController(TrackingConfig(cfg), fetcher, NewGeoLocator(cfg, log), log, opts...), nil
}
