package httpapi

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/i474232898/weather-lookup/internal/geolocation"
	"github.com/i474232898/weather-lookup/internal/store"
	"github.com/i474232898/weather-lookup/internal/weather"
)

var validate = validator.New()

// Deps are the collaborators of the HTTP API.
type Deps struct {
	Client      weather.Client
	Sessions    *store.MemoryStore
	Locator     weather.Locator // used when the client sends no coordinates
	DefaultCity string
	DefaultUnit weather.Unit
	Logger      *zap.Logger
}

type api struct {
	Deps
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Locator == nil {
		deps.Locator = geolocation.Unsupported{}
	}
	if deps.DefaultUnit == "" {
		deps.DefaultUnit = weather.Metric
	}
	a := &api{Deps: deps}

	v1 := app.Group("/api/v1")
	v1.Get("/weather/current", a.currentWeather)

	v1.Post("/sessions", a.createSession)
	sessions := v1.Group("/sessions")
	sessions.Get("/:id", a.getSession)
	sessions.Delete("/:id", a.deleteSession)
	sessions.Post("/:id/search", a.search)
	sessions.Post("/:id/locate", a.locate)
	sessions.Put("/:id/unit", a.changeUnit)
	sessions.Post("/:id/icon-error", a.iconError)
}

// ErrorHandler renders errors as {"error": true, "message": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

func (a *api) currentWeather(c *fiber.Ctx) error {
	q, err := parseLookupQuery(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	query, err := q.toQuery(a.DefaultUnit)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	reading, err := weather.Fetch(c.UserContext(), a.Client, query)
	if err != nil {
		a.Logger.Info("lookup failed", zap.Stringer("query", query), zap.Error(err))
		if errors.Is(err, weather.ErrUnavailable) {
			return fiber.NewError(fiber.StatusServiceUnavailable, weather.FailureMessage(err))
		}
		return fiber.NewError(fiber.StatusNotFound, weather.FailureMessage(err))
	}

	return c.JSON(fiber.Map{
		"reading": reading,
		"view":    weather.Render(reading),
	})
}

func (a *api) createSession(c *fiber.Ctx) error {
	unit := a.DefaultUnit
	if raw := c.Query("units"); raw != "" {
		u, err := weather.ParseUnit(raw)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		unit = u
	}

	session := weather.NewSession(weather.SessionConfig{
		ID:          uuid.NewString(),
		Unit:        unit,
		DefaultCity: a.DefaultCity,
		Client:      a.Client,
		Logger:      a.Logger,
	})
	a.Sessions.Save(session)
	a.Logger.Info("session created", zap.String("session", session.ID()))

	// The panel shows the outcome; a failed default lookup is not an HTTP error.
	_ = session.LoadDefault(c.UserContext())

	return c.Status(fiber.StatusCreated).JSON(sessionBody(session))
}

func (a *api) getSession(c *fiber.Ctx) error {
	session, err := a.session(c)
	if err != nil {
		return err
	}
	session.Touch()
	return c.JSON(sessionBody(session))
}

func (a *api) deleteSession(c *fiber.Ctx) error {
	a.Sessions.Delete(c.Params("id"))
	return c.SendStatus(fiber.StatusNoContent)
}

func (a *api) search(c *fiber.Ctx) error {
	session, err := a.session(c)
	if err != nil {
		return err
	}

	// Fiber reuses query buffers after the handler returns; the session keeps the city.
	err = session.Search(c.UserContext(), utils.CopyString(c.Query("city")))
	if errors.Is(err, weather.ErrEmptyCity) {
		return fiber.NewError(fiber.StatusBadRequest, "city query parameter is required")
	}
	return c.JSON(sessionBody(session))
}

func (a *api) locate(c *fiber.Ctx) error {
	session, err := a.session(c)
	if err != nil {
		return err
	}

	locator := a.Locator
	if c.Query("lat") != "" || c.Query("lon") != "" {
		coords, err := parseCoordinates(c.Query("lat"), c.Query("lon"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		locator = geolocation.Static{Coordinates: coords}
	}

	_ = session.UseCurrentLocation(c.UserContext(), locator)
	return c.JSON(sessionBody(session))
}

func (a *api) changeUnit(c *fiber.Ctx) error {
	session, err := a.session(c)
	if err != nil {
		return err
	}

	unit, err := weather.ParseUnit(c.Query("units"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	_ = session.ChangeUnit(c.UserContext(), unit)
	return c.JSON(sessionBody(session))
}

func (a *api) iconError(c *fiber.Ctx) error {
	session, err := a.session(c)
	if err != nil {
		return err
	}
	session.Panel().IconLoadFailed()
	return c.JSON(sessionBody(session))
}

func (a *api) session(c *fiber.Ctx) (*weather.Session, error) {
	session, err := a.Sessions.Get(c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "session not found")
		}
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to load session")
	}
	return session, nil
}

func sessionBody(s *weather.Session) fiber.Map {
	return fiber.Map{
		"id":    s.ID(),
		"unit":  s.Unit(),
		"panel": s.Panel().Snapshot(),
	}
}

// lookupQuery holds query parameters for the stateless lookup endpoint.
type lookupQuery struct {
	City      string  `validate:"required_without=HasCoords,max=200"`
	Lat       float64 `validate:"min=-90,max=90"`
	Lon       float64 `validate:"min=-180,max=180"`
	Units     string  `validate:"omitempty,oneof=metric imperial"`
	HasCoords bool
}

func (l lookupQuery) toQuery(def weather.Unit) (weather.Query, error) {
	unit := def
	if l.Units != "" {
		u, err := weather.ParseUnit(l.Units)
		if err != nil {
			return weather.Query{}, err
		}
		unit = u
	}
	if l.HasCoords {
		return weather.CoordinatesQuery(l.Lat, l.Lon, unit), nil
	}
	return weather.CityQuery(l.City, unit), nil
}

func parseLookupQuery(c *fiber.Ctx) (lookupQuery, error) {
	var q lookupQuery

	q.City = strings.TrimSpace(c.Query("city"))
	q.Units = strings.ToLower(c.Query("units"))

	if c.Query("lat") != "" || c.Query("lon") != "" {
		coords, err := parseCoordinates(c.Query("lat"), c.Query("lon"))
		if err != nil {
			return q, err
		}
		q.Lat, q.Lon = coords.Lat, coords.Lon
		q.HasCoords = true
	}

	if err := validate.Struct(q); err != nil {
		return q, err
	}

	return q, nil
}

// coordinatesQuery validates a position reported by the client.
type coordinatesQuery struct {
	Lat float64 `validate:"min=-90,max=90"`
	Lon float64 `validate:"min=-180,max=180"`
}

func parseCoordinates(latStr, lonStr string) (weather.Coordinates, error) {
	if latStr == "" || lonStr == "" {
		return weather.Coordinates{}, errors.New("lat and lon query parameters are both required")
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return weather.Coordinates{}, errors.New("invalid lat")
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return weather.Coordinates{}, errors.New("invalid lon")
	}
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return weather.Coordinates{}, errors.New("lat and lon must be numbers")
	}

	q := coordinatesQuery{Lat: lat, Lon: lon}
	if err := validate.Struct(q); err != nil {
		return weather.Coordinates{}, err
	}
	return weather.Coordinates{Lat: lat, Lon: lon}, nil
}
