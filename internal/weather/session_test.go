package weather

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// stubClient answers lookups from a table. A city with a gate blocks until the
// gate is closed; started receives the city name when a call begins.
type stubClient struct {
	mu       sync.Mutex
	readings map[string]Reading
	gates    map[string]chan struct{}
	started  chan string
	calls    []Query
}

func newStubClient() *stubClient {
	return &stubClient{
		readings: make(map[string]Reading),
		gates:    make(map[string]chan struct{}),
		started:  make(chan string, 16),
	}
}

func (c *stubClient) FetchByCity(ctx context.Context, city string, unit Unit) (Reading, error) {
	return c.answer(CityQuery(city, unit), city)
}

func (c *stubClient) FetchByCoordinates(ctx context.Context, lat, lon float64, unit Unit) (Reading, error) {
	return c.answer(CoordinatesQuery(lat, lon, unit), "coords")
}

func (c *stubClient) answer(q Query, key string) (Reading, error) {
	c.mu.Lock()
	c.calls = append(c.calls, q)
	gate := c.gates[key]
	r, ok := c.readings[key]
	c.mu.Unlock()

	c.started <- key
	if gate != nil {
		<-gate
	}
	if !ok {
		return Reading{}, NewFailure(q.Kind, errors.New("status 404"))
	}
	r.Unit = q.Unit
	return r, nil
}

func (c *stubClient) lastCall(t *testing.T) Query {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.calls) == 0 {
		t.Fatal("no calls recorded")
	}
	return c.calls[len(c.calls)-1]
}

func (c *stubClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

type locatorFunc func(ctx context.Context) (Coordinates, error)

func (f locatorFunc) Locate(ctx context.Context) (Coordinates, error) { return f(ctx) }

func newTestSession(c Client) *Session {
	return NewSession(SessionConfig{
		ID:          "test",
		Unit:        Metric,
		DefaultCity: "London",
		Client:      c,
	})
}

func TestSessionSearch(t *testing.T) {
	client := newStubClient()
	client.readings["London"] = Reading{
		LocationName:     "London",
		CountryCode:      "GB",
		Temperature:      15.0,
		IconCode:         "10d",
		Description:      "rain",
		HumidityPercent:  80,
		WindSpeed:        4.0,
		PressureHpa:      1012,
		VisibilityMeters: intPtr(9000),
	}
	s := newTestSession(client)

	if err := s.Search(context.Background(), "  London "); err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if q := client.lastCall(t); q.City != "London" || q.Unit != Metric || q.Kind != ByCity {
		t.Errorf("query = %+v", q)
	}

	p := s.Panel().Snapshot()
	if p.Temperature != "15°C" || p.WindSpeed != "14.4 km/h" || p.Visibility != "9.0 km" ||
		p.Humidity != "80%" || p.Pressure != "1012 hPa" {
		t.Errorf("panel = %+v", p.View)
	}
	if r, ok := s.Current(); !ok || r.LocationName != "London" {
		t.Errorf("Current() = %+v, %v", r, ok)
	}
}

func TestSessionSearchEmpty(t *testing.T) {
	client := newStubClient()
	s := newTestSession(client)

	if err := s.Search(context.Background(), "   "); !errors.Is(err, ErrEmptyCity) {
		t.Fatalf("Search(blank) error = %v, want ErrEmptyCity", err)
	}
	if client.callCount() != 0 {
		t.Errorf("blank search hit the client")
	}
}

func TestSessionSearchNotFound(t *testing.T) {
	s := newTestSession(newStubClient())

	err := s.Search(context.Background(), "Atlantis")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Search() error = %v, want ErrNotFound", err)
	}

	p := s.Panel().Snapshot()
	if p.Temperature != "Error" || p.Location != "City not found. Please try another location." {
		t.Errorf("panel header = %q / %q", p.Temperature, p.Location)
	}
	for _, v := range []string{p.Humidity, p.WindSpeed, p.Pressure, p.Visibility} {
		if v != "--" {
			t.Errorf("placeholder = %q, want --", v)
		}
	}
}

func TestSessionStaleResultDropped(t *testing.T) {
	client := newStubClient()
	client.readings["Paris"] = Reading{LocationName: "Paris", HumidityPercent: 50}
	client.readings["Rome"] = Reading{LocationName: "Rome", HumidityPercent: 40}
	gate := make(chan struct{})
	client.gates["Paris"] = gate
	s := newTestSession(client)

	slow := make(chan error, 1)
	go func() { slow <- s.Search(context.Background(), "Paris") }()

	select {
	case <-client.started:
	case <-time.After(2 * time.Second):
		t.Fatal("slow lookup never started")
	}

	if err := s.Search(context.Background(), "Rome"); err != nil {
		t.Fatalf("fast Search() error = %v", err)
	}
	<-client.started

	close(gate)
	if err := <-slow; !errors.Is(err, ErrStaleResult) {
		t.Fatalf("slow Search() error = %v, want ErrStaleResult", err)
	}

	if got := s.Panel().Snapshot().Location; got != "Rome" {
		t.Errorf("panel location = %q, want Rome", got)
	}
	if r, _ := s.Current(); r.LocationName != "Rome" {
		t.Errorf("current reading = %q, want Rome", r.LocationName)
	}
}

func TestSessionInOrderResultsBothShown(t *testing.T) {
	client := newStubClient()
	client.readings["Paris"] = Reading{LocationName: "Paris"}
	client.readings["Rome"] = Reading{LocationName: "Rome"}
	parisGate, romeGate := make(chan struct{}), make(chan struct{})
	client.gates["Paris"] = parisGate
	client.gates["Rome"] = romeGate
	s := newTestSession(client)

	paris := make(chan error, 1)
	go func() { paris <- s.Search(context.Background(), "Paris") }()
	<-client.started

	rome := make(chan error, 1)
	go func() { rome <- s.Search(context.Background(), "Rome") }()
	<-client.started

	// Paris was issued first and resolves first: nothing newer is shown yet.
	close(parisGate)
	if err := <-paris; err != nil {
		t.Fatalf("Search(Paris) error = %v", err)
	}
	if got := s.Panel().Snapshot().Location; got != "Paris" {
		t.Errorf("panel location = %q, want Paris", got)
	}

	close(romeGate)
	if err := <-rome; err != nil {
		t.Fatalf("Search(Rome) error = %v", err)
	}
	if got := s.Panel().Snapshot().Location; got != "Rome" {
		t.Errorf("panel location = %q, want Rome", got)
	}
}

func TestSessionChangeUnit(t *testing.T) {
	client := newStubClient()
	client.readings["London"] = Reading{LocationName: "London", WindSpeed: 10}
	client.readings["Berlin"] = Reading{LocationName: "Berlin", WindSpeed: 10}
	s := newTestSession(client)
	ctx := context.Background()

	// No lookup yet: falls back to the default city.
	if err := s.ChangeUnit(ctx, Imperial); err != nil {
		t.Fatalf("ChangeUnit() error = %v", err)
	}
	if q := client.lastCall(t); q.City != "London" || q.Unit != Imperial {
		t.Errorf("default refetch = %+v", q)
	}
	<-client.started

	if err := s.Search(ctx, "Berlin"); err != nil {
		t.Fatal(err)
	}
	<-client.started
	if got := s.Panel().Snapshot().WindSpeed; got != "10.0 mph" {
		t.Errorf("imperial wind = %q", got)
	}

	// Same unit is a no-op.
	before := client.callCount()
	if err := s.ChangeUnit(ctx, Imperial); err != nil {
		t.Fatal(err)
	}
	if client.callCount() != before {
		t.Errorf("unchanged unit triggered a lookup")
	}

	if err := s.ChangeUnit(ctx, Metric); err != nil {
		t.Fatal(err)
	}
	<-client.started
	if q := client.lastCall(t); q.City != "Berlin" || q.Unit != Metric {
		t.Errorf("unit refetch = %+v", q)
	}
	if got := s.Panel().Snapshot().WindSpeed; got != "36.0 km/h" {
		t.Errorf("metric wind = %q", got)
	}
	if s.Unit() != Metric {
		t.Errorf("Unit() = %s", s.Unit())
	}
}

func TestSessionChangeUnitAfterFailedSearchUsesLastGoodQuery(t *testing.T) {
	client := newStubClient()
	client.readings["Berlin"] = Reading{LocationName: "Berlin"}
	s := newTestSession(client)
	ctx := context.Background()

	_ = s.Search(ctx, "Berlin")
	<-client.started
	_ = s.Search(ctx, "Atlantis")
	<-client.started

	if err := s.ChangeUnit(ctx, Imperial); err != nil {
		t.Fatalf("ChangeUnit() error = %v", err)
	}
	<-client.started
	if q := client.lastCall(t); q.City != "Berlin" {
		t.Errorf("refetched %q, want Berlin", q.City)
	}
}

func TestSessionUseCurrentLocation(t *testing.T) {
	client := newStubClient()
	client.readings["coords"] = Reading{LocationName: "Here"}
	s := newTestSession(client)

	loc := locatorFunc(func(context.Context) (Coordinates, error) {
		return Coordinates{Lat: 48.85, Lon: 2.35}, nil
	})
	if err := s.UseCurrentLocation(context.Background(), loc); err != nil {
		t.Fatalf("UseCurrentLocation() error = %v", err)
	}
	<-client.started

	q := client.lastCall(t)
	if q.Kind != ByCoordinates || q.Coordinates != (Coordinates{Lat: 48.85, Lon: 2.35}) {
		t.Errorf("query = %+v", q)
	}
	if got := s.Panel().Snapshot().Location; got != "Here" {
		t.Errorf("panel location = %q", got)
	}
}

func TestSessionUseCurrentLocationUnavailable(t *testing.T) {
	s := newTestSession(newStubClient())

	loc := locatorFunc(func(context.Context) (Coordinates, error) {
		return Coordinates{Lat: 1, Lon: 2}, nil
	})
	err := s.UseCurrentLocation(context.Background(), loc)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
	if got := s.Panel().Snapshot().Location; got != MessageUnavailable {
		t.Errorf("panel location = %q", got)
	}
}

func TestSessionLocatorFailure(t *testing.T) {
	client := newStubClient()
	client.readings["Paris"] = Reading{LocationName: "Paris"}
	gate := make(chan struct{})
	client.gates["Paris"] = gate
	s := newTestSession(client)

	pending := make(chan error, 1)
	go func() { pending <- s.Search(context.Background(), "Paris") }()
	<-client.started

	denied := errors.New("denied")
	loc := locatorFunc(func(context.Context) (Coordinates, error) {
		return Coordinates{}, denied
	})
	if err := s.UseCurrentLocation(context.Background(), loc); !errors.Is(err, denied) {
		t.Fatalf("error = %v, want wrapped denied", err)
	}

	close(gate)
	if err := <-pending; !errors.Is(err, ErrStaleResult) {
		t.Fatalf("pending search error = %v, want ErrStaleResult", err)
	}

	p := s.Panel().Snapshot()
	if p.Location != MessageNoLocation || p.Temperature != "Error" {
		t.Errorf("panel = %+v", p.View)
	}
}

func TestSessionRefresh(t *testing.T) {
	client := newStubClient()
	client.readings["Lima"] = Reading{LocationName: "Lima"}
	s := newTestSession(client)
	ctx := context.Background()

	if err := s.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if client.callCount() != 0 {
		t.Fatalf("refresh of a fresh session hit the client")
	}

	_ = s.Search(ctx, "Lima")
	<-client.started
	if err := s.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	<-client.started
	if client.callCount() != 2 || client.lastCall(t).City != "Lima" {
		t.Errorf("refresh calls = %d, last = %+v", client.callCount(), client.lastCall(t))
	}
}

func TestSessionLoadDefault(t *testing.T) {
	client := newStubClient()
	client.readings["London"] = Reading{LocationName: "London", CountryCode: "GB"}
	s := newTestSession(client)

	if err := s.LoadDefault(context.Background()); err != nil {
		t.Fatalf("LoadDefault() error = %v", err)
	}
	if got := s.Panel().Snapshot().Location; got != "London, GB" {
		t.Errorf("panel location = %q", got)
	}
}

func TestSessionRefreshFailureKeepsReading(t *testing.T) {
	client := newStubClient()
	client.readings["Lima"] = Reading{LocationName: "Lima", CountryCode: "PE", HumidityPercent: 70}
	s := newTestSession(client)
	ctx := context.Background()

	if err := s.Search(ctx, "Lima"); err != nil {
		t.Fatal(err)
	}
	<-client.started
	active := s.LastActive()

	client.mu.Lock()
	delete(client.readings, "Lima")
	client.mu.Unlock()

	if err := s.Refresh(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Refresh() error = %v, want ErrNotFound", err)
	}
	<-client.started

	p := s.Panel().Snapshot()
	if p.Location != "Lima, PE" || p.Humidity != "70%" || !p.IconVisible {
		t.Errorf("panel after failed refresh = %+v", p.View)
	}
	if _, ok := s.Current(); !ok {
		t.Error("current reading cleared by failed refresh")
	}
	if !s.LastActive().Equal(active) {
		t.Errorf("refresh moved LastActive from %v to %v", active, s.LastActive())
	}
}

func TestSessionRefreshYieldsToPendingSearch(t *testing.T) {
	client := newStubClient()
	client.readings["Lima"] = Reading{LocationName: "Lima"}
	client.readings["Oslo"] = Reading{LocationName: "Oslo"}
	s := newTestSession(client)
	ctx := context.Background()

	if err := s.Search(ctx, "Lima"); err != nil {
		t.Fatal(err)
	}
	<-client.started

	gate := make(chan struct{})
	client.mu.Lock()
	client.gates["Oslo"] = gate
	client.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- s.Search(ctx, "Oslo") }()
	<-client.started

	if err := s.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if client.callCount() != 2 {
		t.Errorf("refresh ran while a search was pending: %d calls", client.callCount())
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if got := s.Panel().Snapshot().Location; got != "Oslo" {
		t.Errorf("panel location = %q, want Oslo", got)
	}
}

func TestSessionRefreshSupersededByLookup(t *testing.T) {
	client := newStubClient()
	client.readings["Lima"] = Reading{LocationName: "Lima"}
	client.readings["Oslo"] = Reading{LocationName: "Oslo"}
	s := newTestSession(client)
	ctx := context.Background()

	if err := s.Search(ctx, "Lima"); err != nil {
		t.Fatal(err)
	}
	<-client.started

	gate := make(chan struct{})
	client.mu.Lock()
	client.gates["Lima"] = gate
	client.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- s.Refresh(ctx) }()
	<-client.started

	if err := s.Search(ctx, "Oslo"); err != nil {
		t.Fatal(err)
	}
	<-client.started

	close(gate)
	if err := <-done; !errors.Is(err, ErrStaleResult) {
		t.Fatalf("Refresh() error = %v, want ErrStaleResult", err)
	}
	if got := s.Panel().Snapshot().Location; got != "Oslo" {
		t.Errorf("panel location = %q, want Oslo", got)
	}
}
