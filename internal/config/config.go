package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/i474232898/weather-lookup/internal/weather"
)

type AppConfig struct {
	OpenWeatherAPIKey  string
	OpenWeatherBaseURL string

	// Lookup used when a session starts and when the unit changes before any
	// successful lookup.
	DefaultCity  string
	DefaultUnits weather.Unit

	HTTPTimeout time.Duration

	// RefreshInterval controls how often live sessions re-fetch (0 = never).
	RefreshInterval time.Duration

	// Session retention.
	SessionMax     int           // max number of live sessions (0 = unlimited)
	SessionMaxIdle time.Duration // drop sessions idle this long (0 = never)

	// Server-side geolocation: a home address geocoded with Google.
	GeocoderAPIKey string
	HomeCity       string
	HomeCountry    string

	LogLevel  string
	LogFormat string

	Port string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	return fromEnv()
}

func fromEnv() (*AppConfig, error) {
	cfg := &AppConfig{}

	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.OpenWeatherBaseURL = os.Getenv("OPENWEATHER_BASE_URL")

	cfg.DefaultCity = getenvDefault("WEATHER_DEFAULT_CITY", "London")
	unit, err := weather.ParseUnit(getenvDefault("WEATHER_DEFAULT_UNITS", string(weather.Metric)))
	if err != nil {
		return nil, fmt.Errorf("invalid WEATHER_DEFAULT_UNITS: %w", err)
	}
	cfg.DefaultUnits = unit

	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.RefreshInterval, err = getenvDuration("REFRESH_INTERVAL", "15m"); err != nil {
		return nil, err
	}

	if cfg.SessionMax, err = getenvInt("SESSION_MAX", 1000); err != nil {
		return nil, err
	}
	if cfg.SessionMaxIdle, err = getenvDuration("SESSION_MAX_IDLE", "24h"); err != nil {
		return nil, err
	}

	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")
	cfg.HomeCity = os.Getenv("HOME_CITY")
	cfg.HomeCountry = os.Getenv("HOME_COUNTRY")

	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.LogFormat = getenvDefault("LOG_FORMAT", "json")
	cfg.Port = getenvDefault("PORT", "8080")

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
