package tracking

import (
	"context"
	"fmt"
	"time"

	"github.com/danghamo/satwatch/internal/domain/satellite"
)

// State of the tracking session
type State int32

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// MarshalText renders the state as "running" or "stopped"
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts "running" or "stopped"
func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "stopped":
		*s = Stopped
	case "running":
		*s = Running
	default:
		return fmt.Errorf("unknown tracking state %q", b)
	}
	return nil
}

// PositionFetcher obtains the current satellite position. One call, one
// outbound request, no retry.
type PositionFetcher interface {
	FetchPosition(ctx context.Context) (satellite.PositionSample, error)
}

// GeoLocator resolves coordinates to a place
type GeoLocator interface {
	Locate(ctx context.Context, lat, lon float64) (satellite.PlaceInfo, error)
}

// Config controls the refresh loop
type Config struct {
	// Interval between refresh cycles while running
	Interval time.Duration
	// AutoStart begins tracking as soon as Run is called
	AutoStart bool
	// RequestTimeout bounds each fetch and geocode call; zero means no bound
	RequestTimeout time.Duration
	// FailureThreshold republishes the last snapshot marked stale after this
	// many consecutive fetch failures. Zero disables it.
	FailureThreshold int
}

// DefaultConfig returns the five second polling configuration
func DefaultConfig() Config {
	return Config{
		Interval:       5 * time.Second,
		RequestTimeout: 10 * time.Second,
	}
}
