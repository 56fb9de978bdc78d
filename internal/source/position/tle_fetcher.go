package position

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	sgp4 "github.com/joshuaferrara/go-satellite"
	"go.uber.org/zap"

	"github.com/danghamo/satwatch/internal/domain/satellite"
	"github.com/danghamo/satwatch/internal/domain/shared"
	"github.com/danghamo/satwatch/pkg/httpx"
	"github.com/danghamo/satwatch/pkg/logger"
)

const tleLineLength = 69

// TLEFetcher downloads the current two-line element set and propagates it
// to the present moment with SGP4. Each call performs exactly one request.
type TLEFetcher struct {
	url    string
	client *httpx.Client
	logger *logger.Logger
	now    func() time.Time
}

// NewTLEFetcher creates a fetcher for a TLE endpoint returning {"line1","line2"}
func NewTLEFetcher(url string, client *httpx.Client, log *logger.Logger) *TLEFetcher {
	return &TLEFetcher{
		url:    url,
		client: client,
		logger: log.WithComponent("position-tle"),
		now:    time.Now,
	}
}

type tlePayload struct {
	Name  string `json:"name"`
	Line1 string `json:"line1"`
	Line2 string `json:"line2"`
}

// FetchPosition downloads the TLE and propagates it to now
func (f *TLEFetcher) FetchPosition(ctx context.Context) (satellite.PositionSample, error) {
	var payload tlePayload
	if err := f.client.GetJSON(ctx, f.url, &payload); err != nil {
		return satellite.PositionSample{}, err
	}

	sample, err := propagateTLE(payload.Line1, payload.Line2, f.now().UTC())
	if err != nil {
		f.logger.Debug("TLE propagation failed", zap.String("name", payload.Name), zap.Error(err))
		return satellite.PositionSample{}, err
	}
	return sample, nil
}

// propagateTLE computes the sub-satellite point, altitude and speed at t
func propagateTLE(line1, line2 string, t time.Time) (sample satellite.PositionSample, err error) {
	line1 = strings.TrimRight(line1, "\r\n ")
	line2 = strings.TrimRight(line2, "\r\n ")
	if err := validateTLELine(line1, '1'); err != nil {
		return satellite.PositionSample{}, err
	}
	if err := validateTLELine(line2, '2'); err != nil {
		return satellite.PositionSample{}, err
	}

	// go-satellite panics on fields it cannot parse
	defer func() {
		if r := recover(); r != nil {
			err = shared.NewParseError("position", "propagate TLE: %v", r)
		}
	}()

	sat := sgp4.TLEToSat(line1, line2, sgp4.GravityWGS72)

	year, month, day := t.Date()
	hour, min, sec := t.Clock()
	pos, vel := sgp4.Propagate(sat, year, int(month), day, hour, min, sec)
	gmst := sgp4.ThetaG_JD(sgp4.JDay(year, int(month), day, hour, min, sec))
	altKm, _, ll := sgp4.ECIToLLA(pos, gmst)

	lat := ll.Latitude * 180 / math.Pi
	lon := normalizeLongitude(ll.Longitude * 180 / math.Pi)
	speedKmh := math.Sqrt(vel.X*vel.X+vel.Y*vel.Y+vel.Z*vel.Z) * 3600

	return satellite.NewPositionSample(lat, lon, altKm, speedKmh, t)
}

// validateTLELine checks length, line number and the modulo-10 checksum
func validateTLELine(line string, number byte) error {
	if len(line) != tleLineLength {
		return shared.NewParseError("position", "TLE line %c: length %d, want %d", number, len(line), tleLineLength)
	}
	if line[0] != number || line[1] != ' ' {
		return shared.NewParseError("position", "TLE line %c: bad line number", number)
	}

	sum := 0
	for i := 0; i < tleLineLength-1; i++ {
		switch c := line[i]; {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	want := fmt.Sprintf("%d", sum%10)
	if line[tleLineLength-1:] != want {
		return shared.NewParseError("position", "TLE line %c: checksum mismatch", number)
	}
	return nil
}

func normalizeLongitude(lon float64) float64 {
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}
