package weather

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrEmptyCity is returned by Search when the city is blank after trimming.
	ErrEmptyCity = errors.New("city is empty")
	// ErrStaleResult is returned when a lookup finished after a newer one was
	// already displayed; its result was dropped.
	ErrStaleResult = errors.New("result superseded by a newer lookup")
)

// Locator is the geolocation source used by UseCurrentLocation.
type Locator interface {
	Locate(ctx context.Context) (Coordinates, error)
}

// SessionConfig holds the dependencies of a Session.
type SessionConfig struct {
	ID          string
	Unit        Unit
	DefaultCity string
	Client      Client
	Logger      *zap.Logger
}

// Session is the state of one widget instance: the current unit, the reading
// on display and the last query that succeeded.
//
// Every lookup takes the next sequence number. A result is only shown when no
// newer result is already on the panel, so a slow response can not overwrite
// a fresher one.
type Session struct {
	id          string
	defaultCity string
	client      Client
	panel       *Panel
	display     Display
	logger      *zap.Logger

	mu         sync.Mutex
	unit       Unit
	lastQuery  *Query
	current    *Reading
	issued     uint64
	shown      uint64
	lastActive time.Time
}

func NewSession(cfg SessionConfig) *Session {
	unit := cfg.Unit
	if unit == "" {
		unit = Metric
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	panel := NewPanel()

	return &Session{
		id:          cfg.ID,
		defaultCity: cfg.DefaultCity,
		client:      cfg.Client,
		panel:       panel,
		display:     panel,
		logger:      logger.With(zap.String("session", cfg.ID)),
		unit:        unit,
		lastActive:  time.Now(),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Panel() *Panel { return s.panel }

func (s *Session) Unit() Unit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unit
}

// Current returns the reading on display, if any.
func (s *Session) Current() (Reading, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Reading{}, false
	}
	return *s.current, true
}

func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Touch marks the session as used.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

// Search looks up a city typed by the user.
func (s *Session) Search(ctx context.Context, city string) error {
	city = strings.TrimSpace(city)
	if city == "" {
		return ErrEmptyCity
	}
	return s.lookup(ctx, CityQuery(city, s.Unit()))
}

// UseCurrentLocation asks the locator for coordinates and looks them up.
// Unsupported and denied geolocation are reported the same way.
func (s *Session) UseCurrentLocation(ctx context.Context, locator Locator) error {
	coords, err := locator.Locate(ctx)
	if err != nil {
		s.logger.Warn("geolocation failed", zap.Error(err))

		s.mu.Lock()
		s.issued++
		s.shown = s.issued
		s.lastActive = time.Now()
		s.display.OnError(MessageNoLocation)
		s.mu.Unlock()

		return fmt.Errorf("locate: %w", err)
	}
	return s.lookup(ctx, CoordinatesQuery(coords.Lat, coords.Lon, s.Unit()))
}

// ChangeUnit switches the unit system and repeats the last successful lookup
// with it, falling back to the default city when there is none.
func (s *Session) ChangeUnit(ctx context.Context, unit Unit) error {
	s.mu.Lock()
	if unit == s.unit {
		s.mu.Unlock()
		return nil
	}
	s.unit = unit
	q := CityQuery(s.defaultCity, unit)
	if s.lastQuery != nil {
		q = s.lastQuery.WithUnit(unit)
	}
	s.mu.Unlock()

	return s.lookup(ctx, q)
}

// Refresh repeats the last successful lookup in the background. It does
// nothing when there is none or when a user lookup is still pending.
//
// A refresh does not count as activity and does not show the loading state.
// Its result is applied only if no other lookup started meanwhile; a failed
// refresh leaves the current reading on the panel.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.lastQuery == nil || s.issued > s.shown {
		s.mu.Unlock()
		return nil
	}
	q := s.lastQuery.WithUnit(s.unit)
	base := s.issued
	s.mu.Unlock()

	r, err := Fetch(ctx, s.client, q)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.issued != base {
		s.logger.Debug("dropping refresh superseded by a lookup", zap.Stringer("query", q))
		return ErrStaleResult
	}
	if err != nil {
		s.logger.Warn("refresh failed, keeping current reading", zap.Stringer("query", q), zap.Error(err))
		return err
	}

	s.current = &r
	s.display.OnReading(r)
	return nil
}

// LoadDefault looks up the default city.
func (s *Session) LoadDefault(ctx context.Context) error {
	return s.lookup(ctx, CityQuery(s.defaultCity, s.Unit()))
}

func (s *Session) lookup(ctx context.Context, q Query) error {
	s.mu.Lock()
	s.issued++
	seq := s.issued
	s.lastActive = time.Now()
	s.display.OnLoading()
	s.mu.Unlock()

	s.logger.Debug("lookup started", zap.Uint64("seq", seq), zap.Stringer("query", q))

	r, err := Fetch(ctx, s.client, q)

	s.mu.Lock()
	defer s.mu.Unlock()

	if seq < s.shown {
		s.logger.Info("dropping stale result",
			zap.Uint64("seq", seq),
			zap.Uint64("shown", s.shown),
			zap.Stringer("query", q),
		)
		return ErrStaleResult
	}
	s.shown = seq

	if err != nil {
		s.logger.Warn("lookup failed", zap.Stringer("query", q), zap.Error(err))
		s.display.OnError(FailureMessage(err))
		return err
	}

	s.current = &r
	s.lastQuery = &q
	s.display.OnReading(r)
	s.logger.Debug("lookup done",
		zap.Uint64("seq", seq),
		zap.String("location", r.LocationName),
	)
	return nil
}
