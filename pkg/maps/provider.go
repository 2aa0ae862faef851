package maps

import (
	"context"
	"fmt"
	"time"
)

type ProviderConfig struct {
	Provider          string
	Timeout           time.Duration
	GoogleAPIKey      string
	MapboxAccessToken string
	MapboxBaseURL     string
}

// NewGeocoder builds the configured provider and bounds every call by the
// configured timeout.
func NewGeocoder(cfg ProviderConfig) (Geocoder, error) {
	var (
		g   Geocoder
		err error
	)

	switch cfg.Provider {
	case "", "mapbox":
		if cfg.MapboxAccessToken == "" {
			return nil, fmt.Errorf("mapbox access token is required")
		}
		g = NewMapboxProvider(cfg.MapboxAccessToken, cfg.MapboxBaseURL, cfg.Timeout)
	case "google":
		g, err = NewGoogleMapsProvider(cfg.GoogleAPIKey)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported maps provider %q", cfg.Provider)
	}

	return WithTimeout(g, cfg.Timeout), nil
}

type timeoutGeocoder struct {
	next    Geocoder
	timeout time.Duration
}

func WithTimeout(g Geocoder, timeout time.Duration) Geocoder {
	if timeout <= 0 {
		return g
	}
	return &timeoutGeocoder{next: g, timeout: timeout}
}

func (t *timeoutGeocoder) Geocode(ctx context.Context, address string) (*GeocodeResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Geocode(ctx, address)
}
