package position

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/danghamo/satwatch/internal/domain/satellite"
	"github.com/danghamo/satwatch/internal/domain/shared"
	"github.com/danghamo/satwatch/pkg/httpx"
	"github.com/danghamo/satwatch/pkg/logger"
)

const kmPerMile = 1.609344

// maxTimestamp is 9999-12-31T23:59:59Z; larger values are treated as absent
const maxTimestamp = 253402300799

// HTTPFetcher reads the satellite position from a JSON endpoint shaped like
// api.wheretheiss.at (or the local proxy in front of it)
type HTTPFetcher struct {
	url    string
	client *httpx.Client
	logger *logger.Logger
	now    func() time.Time
}

// NewHTTPFetcher creates a fetcher for url
func NewHTTPFetcher(url string, client *httpx.Client, log *logger.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		url:    url,
		client: client,
		logger: log.WithComponent("position-http"),
		now:    time.Now,
	}
}

// wireNumber accepts a JSON number or a numeric string
type wireNumber float64

func (n *wireNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*n = wireNumber(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*n = wireNumber(v)
	return nil
}

type positionPayload struct {
	Latitude  *wireNumber `json:"latitude"`
	Longitude *wireNumber `json:"longitude"`
	Altitude  *wireNumber `json:"altitude"`
	Velocity  *wireNumber `json:"velocity"`
	Timestamp *wireNumber `json:"timestamp"`
	Units     string      `json:"units"`
}

// FetchPosition performs one GET and validates the result
func (f *HTTPFetcher) FetchPosition(ctx context.Context) (satellite.PositionSample, error) {
	resp, err := f.client.Get(ctx, f.url)
	if err != nil {
		return satellite.PositionSample{}, err
	}

	sample, err := decodePosition(resp.Body, f.now())
	if err != nil {
		f.logger.Debug("Rejected position payload", zap.Error(err))
		return satellite.PositionSample{}, err
	}
	return sample, nil
}

// decodePosition turns a raw body into a validated sample. fallback is used
// when the payload carries no usable timestamp.
func decodePosition(body []byte, fallback time.Time) (satellite.PositionSample, error) {
	var p positionPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return satellite.PositionSample{}, shared.NewParseError("position", "decode body: %v", err)
	}

	required := []struct {
		name  string
		value *wireNumber
	}{
		{"latitude", p.Latitude},
		{"longitude", p.Longitude},
		{"altitude", p.Altitude},
		{"velocity", p.Velocity},
	}
	for _, r := range required {
		if r.value == nil {
			return satellite.PositionSample{}, shared.NewParseError("position", "missing field %q", r.name)
		}
	}

	alt := float64(*p.Altitude)
	vel := float64(*p.Velocity)
	if p.Units == "miles" {
		alt *= kmPerMile
		vel *= kmPerMile
	}

	ts := fallback
	if p.Timestamp != nil {
		if unix := float64(*p.Timestamp); unix > 0 && unix <= maxTimestamp {
			ts = time.Unix(int64(unix), 0)
		}
	}

	return satellite.NewPositionSample(float64(*p.Latitude), float64(*p.Longitude), alt, vel, ts)
}
