package config

import "time"

type MapsConfig struct {
	Provider   string            `yaml:"provider"`
	Timeout    time.Duration     `yaml:"timeout"`
	GoogleMaps *GoogleMapsConfig `yaml:"google_maps"`
	Mapbox     *MapboxConfig     `yaml:"mapbox"`
}

type GoogleMapsConfig struct {
	APIKey string `yaml:"api_key"`
}

type MapboxConfig struct {
	AccessToken string `yaml:"access_token"`
	BaseURL     string `yaml:"base_url"`
}

func loadMapsConfig() *MapsConfig {
	return &MapsConfig{
		Provider: getEnv("MAPS_PROVIDER", "mapbox"),
		Timeout:  getEnvAsDuration("MAPS_TIMEOUT", 10*time.Second),
		GoogleMaps: &GoogleMapsConfig{
			APIKey: getEnv("GOOGLE_MAPS_API_KEY", ""),
		},
		Mapbox: &MapboxConfig{
			AccessToken: getEnv("MAPBOX_TOKEN", ""),
			BaseURL:     getEnv("MAPBOX_BASE_URL", "https://api.mapbox.com"),
		},
	}
}
