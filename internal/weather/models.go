package weather

import (
	"fmt"
	"strings"
	"time"
)

// Unit is the unit system requested from the provider and used for display.
type Unit string

const (
	Metric   Unit = "metric"
	Imperial Unit = "imperial"
)

// ParseUnit accepts "metric" or "imperial" in any case.
func ParseUnit(s string) (Unit, error) {
	switch Unit(strings.ToLower(strings.TrimSpace(s))) {
	case Metric:
		return Metric, nil
	case Imperial:
		return Imperial, nil
	default:
		return "", fmt.Errorf("unknown unit system %q", s)
	}
}

// QueryKind tells which lookup a Query performs.
type QueryKind int

const (
	ByCity QueryKind = iota
	ByCoordinates
)

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Query describes a single lookup. Build it with CityQuery or CoordinatesQuery.
type Query struct {
	Kind        QueryKind
	City        string
	Coordinates Coordinates
	Unit        Unit
}

func CityQuery(city string, unit Unit) Query {
	return Query{Kind: ByCity, City: city, Unit: unit}
}

func CoordinatesQuery(lat, lon float64, unit Unit) Query {
	return Query{Kind: ByCoordinates, Coordinates: Coordinates{Lat: lat, Lon: lon}, Unit: unit}
}

// WithUnit returns a copy of q asking for a different unit system.
func (q Query) WithUnit(unit Unit) Query {
	q.Unit = unit
	return q
}

func (q Query) String() string {
	if q.Kind == ByCoordinates {
		return fmt.Sprintf("coords(%.4f,%.4f)/%s", q.Coordinates.Lat, q.Coordinates.Lon, q.Unit)
	}
	return fmt.Sprintf("city(%s)/%s", q.City, q.Unit)
}

// Reading is the normalized current-conditions snapshot for one location.
// WindSpeed stays in the provider's native unit: m/s for Metric, mph for Imperial.
type Reading struct {
	LocationName     string    `json:"locationName"`
	CountryCode      string    `json:"countryCode"`
	Temperature      float64   `json:"temperature"`
	Unit             Unit      `json:"unit"`
	IconCode         string    `json:"iconCode"`
	Description      string    `json:"description"`
	HumidityPercent  int       `json:"humidityPercent"`
	WindSpeed        float64   `json:"windSpeed"`
	PressureHpa      int       `json:"pressureHpa"`
	VisibilityMeters *int      `json:"visibilityMeters,omitempty"`
	FetchedAt        time.Time `json:"fetchedAt"` // always UTC
}
