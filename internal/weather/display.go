package weather

import "sync"

const (
	loadingTemperature = "Loading..."
	loadingLocation    = "Fetching weather data..."
	loadingValue       = "..."
	errorTemperature   = "Error"
	errorValue         = "--"
)

// PanelState is what the front end draws.
type PanelState struct {
	View
	IconVisible bool     `json:"iconVisible"`
	Reading     *Reading `json:"reading,omitempty"`
}

// Panel is a Display that keeps the rendered fields in memory.
type Panel struct {
	mu    sync.RWMutex
	state PanelState
}

func NewPanel() *Panel {
	return &Panel{}
}

func (p *Panel) OnLoading() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state = PanelState{
		View: View{
			Location:    loadingLocation,
			Temperature: loadingTemperature,
			Humidity:    loadingValue,
			WindSpeed:   loadingValue,
			Pressure:    loadingValue,
			Visibility:  loadingValue,
		},
	}
}

func (p *Panel) OnReading(r Reading) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state = PanelState{
		View:        Render(r),
		IconVisible: true,
		Reading:     &r,
	}
}

func (p *Panel) OnError(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state = PanelState{
		View: View{
			Location:    message,
			Temperature: errorTemperature,
			Humidity:    errorValue,
			WindSpeed:   errorValue,
			Pressure:    errorValue,
			Visibility:  errorValue,
		},
	}
}

// IconLoadFailed swaps a broken icon image for the fallback clear image.
func (p *Panel) IconLoadFailed() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state.IconSrc = FallbackIconSrc
	p.state.IconAlt = FallbackIconAlt
}

// Snapshot returns a copy of the current panel state.
func (p *Panel) Snapshot() PanelState {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := p.state
	if s.Reading != nil {
		r := *s.Reading
		s.Reading = &r
	}
	return s
}
