package satellite

import (
	"fmt"
	"math"
	"time"

	"github.com/danghamo/satwatch/internal/domain/shared"
)

// PositionSample is one normalized observation of the satellite
type PositionSample struct {
	Latitude    float64   `json:"latitude"`     // degrees, [-90, 90]
	Longitude   float64   `json:"longitude"`    // degrees, [-180, 180]
	AltitudeKm  float64   `json:"altitude_km"`  // >= 0
	VelocityKmh float64   `json:"velocity_kmh"` // >= 0
	Timestamp   time.Time `json:"timestamp"`
}

// NewPositionSample validates raw source values and builds a sample.
// Any non-finite or out-of-range value yields a parse error.
func NewPositionSample(lat, lon, altKm, velKmh float64, ts time.Time) (PositionSample, error) {
	fields := []struct {
		name     string
		value    float64
		min, max float64
	}{
		{"latitude", lat, -90, 90},
		{"longitude", lon, -180, 180},
		{"altitude", altKm, 0, math.MaxFloat64},
		{"velocity", velKmh, 0, math.MaxFloat64},
	}

	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return PositionSample{}, shared.NewParseError("satellite", "%s is not a finite number", f.name)
		}
		if f.value < f.min || f.value > f.max {
			return PositionSample{}, shared.NewParseError("satellite", "%s %g out of range", f.name, f.value)
		}
	}

	return PositionSample{
		Latitude:    lat,
		Longitude:   lon,
		AltitudeKm:  altKm,
		VelocityKmh: velKmh,
		Timestamp:   ts.UTC(),
	}, nil
}

// String returns a compact representation for logs
func (p PositionSample) String() string {
	return fmt.Sprintf("(%.4f,%.4f) alt=%.1fkm vel=%.1fkm/h", p.Latitude, p.Longitude, p.AltitudeKm, p.VelocityKmh)
}
