package satellite

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danghamo/satwatch/internal/domain/shared"
)

func TestNewPositionSample(t *testing.T) {
	ts := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	t.Run("accepts valid values", func(t *testing.T) {
		p, err := NewPositionSample(51.5, -0.12, 420.3, 27560.1, ts)
		require.NoError(t, err)
		assert.Equal(t, 51.5, p.Latitude)
		assert.Equal(t, -0.12, p.Longitude)
		assert.Equal(t, 420.3, p.AltitudeKm)
		assert.Equal(t, 27560.1, p.VelocityKmh)
		assert.Equal(t, ts, p.Timestamp)
	})

	t.Run("accepts boundaries", func(t *testing.T) {
		_, err := NewPositionSample(-90, 180, 0, 0, ts)
		assert.NoError(t, err)
	})

	invalid := []struct {
		name                string
		lat, lon, alt, vel float64
	}{
		{"nan latitude", math.NaN(), 0, 400, 27000},
		{"infinite longitude", 0, math.Inf(1), 400, 27000},
		{"latitude out of range", 91, 0, 400, 27000},
		{"longitude out of range", 0, -180.5, 400, 27000},
		{"negative altitude", 0, 0, -1, 27000},
		{"negative velocity", 0, 0, 400, -5},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPositionSample(tt.lat, tt.lon, tt.alt, tt.vel, ts)
			assert.ErrorIs(t, err, shared.ErrParse)
		})
	}
}

func TestNewPlaceInfo(t *testing.T) {
	assert.Equal(t, PlaceInfo{Country: "United Kingdom", Region: "England"}, NewPlaceInfo("United Kingdom", "England"))
	assert.Equal(t, PlaceInfo{Country: "Chile", Region: Unknown}, NewPlaceInfo(" Chile ", "  "))
	assert.True(t, NewPlaceInfo("", "").IsUnknown())
	assert.Equal(t, UnknownPlace(), NewPlaceInfo("", ""))
}
