package maps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type MapboxProvider struct {
	accessToken string
	httpClient  *http.Client
	baseURL     string
}

func NewMapboxProvider(accessToken, baseURL string, timeout time.Duration) *MapboxProvider {
	if baseURL == "" {
		baseURL = "https://api.mapbox.com"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &MapboxProvider{
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     strings.TrimRight(baseURL, "/"),
	}
}

type mapboxFeatureCollection struct {
	Features []struct {
		ID        string    `json:"id"`
		PlaceName string    `json:"place_name"`
		PlaceType []string  `json:"place_type"`
		Center    []float64 `json:"center"`
	} `json:"features"`
}

func (m *MapboxProvider) Geocode(ctx context.Context, address string) (*GeocodeResponse, error) {
	query := url.Values{}
	query.Set("access_token", m.accessToken)
	query.Set("limit", "1")

	apiURL := fmt.Sprintf("%s/geocoding/v5/mapbox.places/%s.json?%s",
		m.baseURL, url.PathEscape(address), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		// url.Error carries the full URL, access token included
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, string(body))
	}

	var mapboxResp mapboxFeatureCollection
	if err := json.Unmarshal(body, &mapboxResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	results := make([]GeocodeResult, 0, len(mapboxResp.Features))
	for _, feature := range mapboxResp.Features {
		// center is [lng, lat]
		if len(feature.Center) < 2 {
			continue
		}
		results = append(results, GeocodeResult{
			PlaceID: feature.ID,
			Address: feature.PlaceName,
			Coordinates: Location{
				Latitude:  feature.Center[1],
				Longitude: feature.Center[0],
			},
			Types: feature.PlaceType,
		})
	}

	return &GeocodeResponse{Results: results}, nil
}
