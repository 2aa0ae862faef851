package maps

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNoResults is returned when a provider answers but finds no match.
var ErrNoResults = errors.New("maps: no geocoding results")

// Geocoder resolves free-form place text into coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*GeocodeResponse, error)
}

type GeocodeResponse struct {
	Results []GeocodeResult `json:"results"`
}

type GeocodeResult struct {
	PlaceID     string   `json:"place_id"`
	Address     string   `json:"formatted_address"`
	Coordinates Location `json:"geometry"`
	Types       []string `json:"types"`
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Resolve geocodes address and returns the first result.
func Resolve(ctx context.Context, g Geocoder, address string) (*GeocodeResult, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("geocode: empty address")
	}

	resp, err := g.Geocode(ctx, address)
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.Results) == 0 {
		return nil, fmt.Errorf("geocode %q: %w", address, ErrNoResults)
	}

	return &resp.Results[0], nil
}
