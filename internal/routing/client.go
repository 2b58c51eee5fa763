// Package routing wraps the external road-routing and reverse-geocoding
// providers. Both are best-effort: callers degrade gracefully when they
// are unreachable.
package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/models"
)

// Route is the base path returned by the routing provider.
type Route struct {
	DistanceMeters  float64
	DurationSeconds float64
	Geometry        []models.LatLng
}

// Provider resolves base path geometry between two points.
type Provider interface {
	Route(ctx context.Context, origin, dest models.LatLng) (*Route, error)
}

// Client talks to an OSRM-compatible routing service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a routing client with the given request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// osrmResponse mirrors the subset of the OSRM route response we consume.
type osrmResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Geometry struct {
			Coordinates [][2]float64 `json:"coordinates"` // [lng, lat]
		} `json:"geometry"`
	} `json:"routes"`
}

// Route fetches the fastest driving path between two points.
func (c *Client) Route(ctx context.Context, origin, dest models.LatLng) (*Route, error) {
	url := fmt.Sprintf("%s/route/v1/driving/%f,%f;%f,%f?overview=full&geometries=geojson",
		c.baseURL, origin.Lng, origin.Lat, dest.Lng, dest.Lat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("routing: failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("routing: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("routing: provider returned status %d", resp.StatusCode)
	}

	var body osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("routing: failed to decode response: %w", err)
	}
	if body.Code != "Ok" || len(body.Routes) == 0 {
		return nil, fmt.Errorf("routing: no route found (code %q)", body.Code)
	}

	r := body.Routes[0]
	geometry := make([]models.LatLng, 0, len(r.Geometry.Coordinates))
	for _, c := range r.Geometry.Coordinates {
		geometry = append(geometry, models.LatLng{Lat: c[1], Lng: c[0]})
	}

	return &Route{
		DistanceMeters:  r.Distance,
		DurationSeconds: r.Duration,
		Geometry:        geometry,
	}, nil
}
