package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danghamo/satwatch/internal/source/position"
	"github.com/danghamo/satwatch/internal/tracking"
	"github.com/danghamo/satwatch/pkg/config"
	"github.com/danghamo/satwatch/pkg/logger"
)

func baseConfig() *config.Config {
	return &config.Config{
		Tracking: config.TrackingConfig{
			AutoStart:        true,
			Interval:         2 * time.Second,
			RequestTimeout:   time.Second,
			FailureThreshold: 3,
		},
		Position: config.PositionConfig{
			Source: SourceHTTP,
			URL:    "http://localhost/position",
			TLEURL: "http://localhost/tles",
		},
		Geocode: config.GeocodeConfig{URL: "http://localhost/geocode"},
	}
}

func TestNewPositionFetcher(t *testing.T) {
	log := logger.NewNop()

	tests := []struct {
		name    string
		source  string
		want    any
		wantErr bool
	}{
		{name: "http", source: SourceHTTP, want: &position.HTTPFetcher{}},
		{name: "tle", source: SourceTLE, want: &position.TLEFetcher{}},
		{name: "unknown", source: "carrier-pigeon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			cfg.Position.Source = tt.source

			fetcher, err := NewPositionFetcher(cfg, log)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, fetcher)
		})
	}
}

func TestTrackingConfig(t *testing.T) {
	assert.Equal(t, tracking.Config{
		Interval:         2 * time.Second,
		AutoStart:        true,
		RequestTimeout:   time.Second,
		FailureThreshold: 3,
	}, TrackingConfig(baseConfig()))
}

func TestNewController(t *testing.T) {
	c, err := NewController(baseConfig(), logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, tracking.Stopped, c.State())

	cfg := baseConfig()
	cfg.Position.Source = ""
	_, err = NewController(cfg, logger.NewNop())
	assert.Error(t, err)
}
