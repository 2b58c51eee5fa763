package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Geocoder resolves a human-readable address for a point.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, error)
}

// GeocodeClient talks to a Nominatim-compatible reverse geocoding service.
type GeocodeClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewGeocodeClient creates a reverse-geocoding client. An empty base URL
// disables the client; ReverseGeocode then always errors and callers fall
// back to an empty address.
func NewGeocodeClient(baseURL string, timeout time.Duration) *GeocodeClient {
	return &GeocodeClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ReverseGeocode returns the display address for a point.
func (c *GeocodeClient) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("geocoding: not configured")
	}

	url := fmt.Sprintf("%s/reverse?format=json&lat=%f&lon=%f", c.baseURL, lat, lng)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("geocoding: failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("geocoding: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("geocoding: provider returned status %d", resp.StatusCode)
	}

	var body struct {
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("geocoding: failed to decode response: %w", err)
	}
	return body.DisplayName, nil
}
