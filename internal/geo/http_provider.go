package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

// HTTPProvider resolves the host's approximate location from an IP
// geolocation endpoint returning JSON coordinates.
type HTTPProvider struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPProvider creates a provider for the given endpoint.
func NewHTTPProvider(endpoint string) *HTTPProvider {
	return &HTTPProvider{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// geoPayload tolerates both common coordinate field spellings.
type geoPayload struct {
	Lat       *float64 `json:"lat"`
	Lon       *float64 `json:"lon"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// Locate performs one GET against the endpoint and parses coordinates.
func (p *HTTPProvider) Locate(ctx context.Context) (Location, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint, nil)
	if err != nil {
		return Location{}, fmt.Errorf("%w: %v", ErrPositionUnavailable, err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Location{}, ctx.Err()
		}
		return Location{}, fmt.Errorf("%w: %v", ErrPositionUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized {
		return Location{}, ErrPermissionDenied
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Location{}, fmt.Errorf("%w: status %d", ErrPositionUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return Location{}, fmt.Errorf("%w: %v", ErrPositionUnavailable, err)
	}

	var payload geoPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return Location{}, fmt.Errorf("%w: %v", ErrPositionUnavailable, err)
	}

	lat, lon := payload.Latitude, payload.Longitude
	if lat == nil {
		lat = payload.Lat
	}
	if lon == nil {
		lon = payload.Lon
	}
	if lat == nil || lon == nil {
		return Location{}, fmt.Errorf("%w: no coordinates in response", ErrPositionUnavailable)
	}
	if !finiteDegree(*lat, 90) || !finiteDegree(*lon, 180) {
		return Location{}, fmt.Errorf("%w: coordinates out of range", ErrPositionUnavailable)
	}

	return Location{Latitude: *lat, Longitude: *lon}, nil
}

func finiteDegree(v, bound float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= -bound && v <= bound
}
