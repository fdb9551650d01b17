// Package geolocation provides the coordinate sources behind the
// "use current location" action.
package geolocation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/weather-lookup/internal/weather"
)

var (
	// ErrUnsupported means no geolocation source is available.
	ErrUnsupported = errors.New("geolocation is not supported")
	// ErrDenied means the source refused to give a position.
	ErrDenied = errors.New("geolocation permission denied")
)

// Static returns coordinates the caller already has, e.g. a position reported
// by the browser.
type Static struct {
	Coordinates weather.Coordinates
}

func (s Static) Locate(ctx context.Context) (weather.Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return weather.Coordinates{}, err
	}
	return s.Coordinates, nil
}

// Unsupported always fails with ErrUnsupported.
type Unsupported struct{}

func (Unsupported) Locate(context.Context) (weather.Coordinates, error) {
	return weather.Coordinates{}, ErrUnsupported
}

// geocoder.ApiKey is package state; calls hold this lock while it is set.
var geocodeMu sync.Mutex

// Geocoder resolves a fixed home address to coordinates with the Google
// geocoding API. The result is looked up once and reused.
type Geocoder struct {
	apiKey  string
	address geocoder.Address
	geocode func(geocoder.Address) (geocoder.Location, error)

	mu     sync.Mutex
	cached *weather.Coordinates
}

// NewGeocoder returns nil when apiKey or city is empty.
func NewGeocoder(apiKey, city, country string) *Geocoder {
	if strings.TrimSpace(apiKey) == "" || strings.TrimSpace(city) == "" {
		return nil
	}
	return &Geocoder{
		apiKey: apiKey,
		address: geocoder.Address{
			City:    city,
			Country: country,
		},
		geocode: geocoder.Geocoding,
	}
}

func (g *Geocoder) Locate(ctx context.Context) (weather.Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return weather.Coordinates{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cached != nil {
		return *g.cached, nil
	}

	geocodeMu.Lock()
	geocoder.ApiKey = g.apiKey
	loc, err := g.geocode(g.address)
	geocodeMu.Unlock()
	if err != nil {
		return weather.Coordinates{}, fmt.Errorf("%w: geocode %s: %v", ErrDenied, g.address.City, err)
	}

	c := weather.Coordinates{Lat: loc.Latitude, Lon: loc.Longitude}
	g.cached = &c
	return c, nil
}

// ServerLocator picks the geocoder when one is configured and Unsupported
// otherwise.
func ServerLocator(g *Geocoder) weather.Locator {
	if g == nil {
		return Unsupported{}
	}
	return g
}
