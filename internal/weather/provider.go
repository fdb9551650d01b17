package weather

import (
	"context"
)

// Client abstracts the current-conditions data source (OpenWeatherMap).
// Implementations return a *Failure on any error.
type Client interface {
	FetchByCity(ctx context.Context, city string, unit Unit) (Reading, error)
	FetchByCoordinates(ctx context.Context, lat, lon float64, unit Unit) (Reading, error)
}

// Fetch dispatches q to the matching Client method.
func Fetch(ctx context.Context, c Client, q Query) (Reading, error) {
	if q.Kind == ByCoordinates {
		return c.FetchByCoordinates(ctx, q.Coordinates.Lat, q.Coordinates.Lon, q.Unit)
	}
	return c.FetchByCity(ctx, q.City, q.Unit)
}

// Display is the outbound contract to the UI layer.
type Display interface {
	OnLoading()
	OnReading(r Reading)
	OnError(message string)
}
