package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/i474232898/weather-lookup/internal/weather"
)

// DefaultOpenWeatherURL is the OpenWeatherMap current-weather endpoint.
const DefaultOpenWeatherURL = "https://api.openweathermap.org/data/2.5/weather"

// OpenWeatherProvider implements weather.Client for OpenWeatherMap.
type OpenWeatherProvider struct {
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewOpenWeatherProvider builds a provider. An empty baseURL selects
// DefaultOpenWeatherURL.
func NewOpenWeatherProvider(client *http.Client, apiKey, baseURL string, logger *zap.Logger) *OpenWeatherProvider {
	if baseURL == "" {
		baseURL = DefaultOpenWeatherURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openweather",
		MaxRequests: 1,
		Interval:    1 * time.Minute,
		Timeout:     30 * time.Second,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})

	return &OpenWeatherProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpCfg: HTTPClientConfig{Client: client},
		circuit: cb,
		logger:  logger,
	}
}

func (p *OpenWeatherProvider) FetchByCity(ctx context.Context, city string, unit weather.Unit) (weather.Reading, error) {
	return p.fetch(ctx, weather.CityQuery(city, unit))
}

func (p *OpenWeatherProvider) FetchByCoordinates(ctx context.Context, lat, lon float64, unit weather.Unit) (weather.Reading, error) {
	return p.fetch(ctx, weather.CoordinatesQuery(lat, lon, unit))
}

func (p *OpenWeatherProvider) fetch(ctx context.Context, q weather.Query) (weather.Reading, error) {
	if p.apiKey == "" {
		return weather.Reading{}, weather.NewFailure(q.Kind, errNoAPIKey)
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("appid", p.apiKey)
		values.Set("units", string(q.Unit))
		if q.Kind == weather.ByCoordinates {
			values.Set("lat", strconv.FormatFloat(q.Coordinates.Lat, 'f', -1, 64))
			values.Set("lon", strconv.FormatFloat(q.Coordinates.Lon, 'f', -1, 64))
		} else {
			values.Set("q", q.City)
		}

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequest(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		p.logger.Debug("openweather request failed", zap.Stringer("query", q), zap.Error(err))
		return weather.Reading{}, weather.NewFailure(q.Kind, err)
	}
	defer resp.Body.Close()

	var payload openWeatherPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Reading{}, weather.NewFailure(q.Kind, fmt.Errorf("decode response: %w", err))
	}

	reading, err := payload.toReading(q.Unit)
	if err != nil {
		return weather.Reading{}, weather.NewFailure(q.Kind, err)
	}
	return reading, nil
}

// openWeatherPayload mirrors the fields of the current-weather response we use.
// Required numbers are pointers so a missing field can be told from zero.
type openWeatherPayload struct {
	Name string `json:"name"`
	Sys  struct {
		Country string `json:"country"`
	} `json:"sys"`
	Main *struct {
		Temp     *float64 `json:"temp"`
		Humidity *float64 `json:"humidity"`
		Pressure *float64 `json:"pressure"`
	} `json:"main"`
	Weather []struct {
		Icon        string `json:"icon"`
		Description string `json:"description"`
	} `json:"weather"`
	Wind *struct {
		Speed *float64 `json:"speed"`
	} `json:"wind"`
	Visibility json.RawMessage `json:"visibility"`
}

func (p openWeatherPayload) toReading(unit weather.Unit) (weather.Reading, error) {
	if p.Main == nil || p.Main.Temp == nil || p.Main.Humidity == nil || p.Main.Pressure == nil {
		return weather.Reading{}, fmt.Errorf("%w: main block incomplete", errMalformed)
	}
	if p.Wind == nil || p.Wind.Speed == nil {
		return weather.Reading{}, fmt.Errorf("%w: wind speed missing", errMalformed)
	}

	humidity := int(math.Round(*p.Main.Humidity))
	if humidity < 0 || humidity > 100 {
		return weather.Reading{}, fmt.Errorf("%w: humidity %d out of range", errMalformed, humidity)
	}

	var icon, description string
	if len(p.Weather) > 0 {
		icon = p.Weather[0].Icon
		description = p.Weather[0].Description
	}

	return weather.Reading{
		LocationName:     p.Name,
		CountryCode:      p.Sys.Country,
		Temperature:      *p.Main.Temp,
		Unit:             unit,
		IconCode:         icon,
		Description:      description,
		HumidityPercent:  humidity,
		WindSpeed:        *p.Wind.Speed,
		PressureHpa:      int(math.Round(*p.Main.Pressure)),
		VisibilityMeters: parseVisibility(p.Visibility),
		FetchedAt:        time.Now().UTC(),
	}, nil
}

// parseVisibility returns nil unless raw is a non-negative number.
func parseVisibility(raw json.RawMessage) *int {
	if len(raw) == 0 {
		return nil
	}
	var v *float64
	if err := json.Unmarshal(raw, &v); err != nil || v == nil || *v < 0 {
		return nil
	}
	meters := int(math.Round(*v))
	return &meters
}
