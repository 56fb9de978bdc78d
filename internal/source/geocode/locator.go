package geocode

import (
	"context"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/danghamo/satwatch/internal/domain/satellite"
	"github.com/danghamo/satwatch/internal/domain/shared"
	"github.com/danghamo/satwatch/pkg/httpx"
	"github.com/danghamo/satwatch/pkg/logger"
)

// HTTPLocator resolves coordinates to a country and region through a
// BigDataCloud style reverse-geocode endpoint
type HTTPLocator struct {
	baseURL  string
	language string
	client   *httpx.Client
	logger   *logger.Logger
}

// NewHTTPLocator creates a locator. An empty language defaults to "en".
func NewHTTPLocator(baseURL, language string, client *httpx.Client, log *logger.Logger) *HTTPLocator {
	if language == "" {
		language = "en"
	}
	return &HTTPLocator{
		baseURL:  baseURL,
		language: language,
		client:   client,
		logger:   log.WithComponent("geocode"),
	}
}

type reversePayload struct {
	CountryName          string `json:"countryName"`
	PrincipalSubdivision string `json:"principalSubdivision"`
}

// Locate performs one reverse-geocode request. Over open ocean the source
// answers with empty names, which map to unknown.
func (l *HTTPLocator) Locate(ctx context.Context, lat, lon float64) (satellite.PlaceInfo, error) {
	u, err := l.requestURL(lat, lon)
	if err != nil {
		return satellite.PlaceInfo{}, err
	}

	var payload reversePayload
	if err := l.client.GetJSON(ctx, u, &payload); err != nil {
		return satellite.PlaceInfo{}, err
	}

	place := satellite.NewPlaceInfo(payload.CountryName, payload.PrincipalSubdivision)
	l.logger.Debug("Located position",
		zap.Float64("latitude", lat),
		zap.Float64("longitude", lon),
		zap.String("country", place.Country),
		zap.String("region", place.Region))
	return place, nil
}

func (l *HTTPLocator) requestURL(lat, lon float64) (string, error) {
	u, err := url.Parse(l.baseURL)
	if err != nil {
		return "", shared.NewNetworkError("geocode", err, "parse base url %q", l.baseURL)
	}
	q := u.Query()
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("localityLanguage", l.language)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
