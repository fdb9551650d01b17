package weather

import (
	"math"
	"strconv"
)

const (
	FallbackIconSrc = "/images/clear.png"
	FallbackIconAlt = "Weather icon not available"
	DefaultIconAlt  = "Weather icon"
	NotAvailable    = "N/A"
)

// iconAssets maps provider icon codes to local images. Day and night variants
// share an asset.
var iconAssets = map[string]string{
	"01d": "/images/clear.png",
	"01n": "/images/clear.png",
	"02d": "/images/clouds.png",
	"02n": "/images/clouds.png",
	"03d": "/images/clouds.png",
	"03n": "/images/clouds.png",
	"04d": "/images/clouds.png",
	"04n": "/images/clouds.png",
	"09d": "/images/rain.png",
	"09n": "/images/rain.png",
	"10d": "/images/rain.png",
	"10n": "/images/rain.png",
	"11d": "/images/rain.png",
	"11n": "/images/rain.png",
	"13d": "/images/snow.png",
	"13n": "/images/snow.png",
	"50d": "/images/mist.png",
	"50n": "/images/mist.png",
}

// IconAsset is the local image used for a condition icon.
type IconAsset struct {
	Src   string `json:"src"`
	Known bool   `json:"known"`
}

// ResolveIconAsset returns the fallback clear image with Known=false for
// unknown or empty codes.
func ResolveIconAsset(code string) IconAsset {
	if src, ok := iconAssets[code]; ok {
		return IconAsset{Src: src, Known: true}
	}
	return IconAsset{Src: FallbackIconSrc}
}

// IconAlt is the alt text for the icon of a reading.
func IconAlt(code, description string) string {
	if !ResolveIconAsset(code).Known {
		return FallbackIconAlt
	}
	if description == "" {
		return DefaultIconAlt
	}
	return description
}

// roundHalfUp rounds .5 toward positive infinity: 21.5 -> 22, -21.5 -> -21.
func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

func FormatTemperature(v float64, unit Unit) string {
	suffix := "°C"
	if unit == Imperial {
		suffix = "°F"
	}
	return strconv.Itoa(roundHalfUp(v)) + suffix
}

// FormatWindSpeed converts m/s to km/h for Metric. Imperial speeds already
// arrive in mph from the provider.
func FormatWindSpeed(speed float64, unit Unit) string {
	if unit == Imperial {
		return strconv.FormatFloat(speed, 'f', 1, 64) + " mph"
	}
	return strconv.FormatFloat(speed*3.6, 'f', 1, 64) + " km/h"
}

func FormatVisibility(meters *int) string {
	if meters == nil || *meters < 0 {
		return NotAvailable
	}
	return strconv.FormatFloat(float64(*meters)/1000, 'f', 1, 64) + " km"
}

func FormatHumidity(percent int) string {
	return strconv.Itoa(percent) + "%"
}

func FormatPressure(hpa int) string {
	return strconv.Itoa(hpa) + " hPa"
}

func FormatLocation(name, country string) string {
	if country == "" {
		return name
	}
	return name + ", " + country
}

// View holds every display field of a reading, already formatted.
type View struct {
	Location    string `json:"location"`
	Temperature string `json:"temperature"`
	Humidity    string `json:"humidity"`
	WindSpeed   string `json:"windSpeed"`
	Pressure    string `json:"pressure"`
	Visibility  string `json:"visibility"`
	IconSrc     string `json:"iconSrc"`
	IconAlt     string `json:"iconAlt"`
}

// Render formats r for display using the unit system it was fetched with.
func Render(r Reading) View {
	return View{
		Location:    FormatLocation(r.LocationName, r.CountryCode),
		Temperature: FormatTemperature(r.Temperature, r.Unit),
		Humidity:    FormatHumidity(r.HumidityPercent),
		WindSpeed:   FormatWindSpeed(r.WindSpeed, r.Unit),
		Pressure:    FormatPressure(r.PressureHpa),
		Visibility:  FormatVisibility(r.VisibilityMeters),
		IconSrc:     ResolveIconAsset(r.IconCode).Src,
		IconAlt:     IconAlt(r.IconCode, r.Description),
	}
}
