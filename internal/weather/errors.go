package weather

import (
	"errors"
	"fmt"
)

// FailureKind is the user-visible classification of a failed lookup.
type FailureKind int

const (
	FailureNotFound FailureKind = iota + 1
	FailureUnavailable
)

const (
	MessageNotFound    = "City not found. Please try another location."
	MessageUnavailable = "Could not fetch weather data for your location."
	MessageNoLocation  = "Could not get your location. Please search for a city instead."
)

var (
	// ErrNotFound matches any city lookup failure via errors.Is.
	ErrNotFound = errors.New("city not found")
	// ErrUnavailable matches any coordinate lookup failure via errors.Is.
	ErrUnavailable = errors.New("weather data not available")
)

// Failure is returned by a Client when a lookup fails. Network errors, bad
// statuses and malformed bodies all collapse into the same Kind; Err keeps the
// cause for logging.
type Failure struct {
	Kind FailureKind
	Err  error
}

// NewFailure picks the failure kind that matches the query kind.
func NewFailure(kind QueryKind, err error) *Failure {
	if kind == ByCoordinates {
		return &Failure{Kind: FailureUnavailable, Err: err}
	}
	return &Failure{Kind: FailureNotFound, Err: err}
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%v: %v", f.sentinel(), f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

func (f *Failure) Is(target error) bool {
	return target == f.sentinel()
}

// Message is the text shown to the user.
func (f *Failure) Message() string {
	if f.Kind == FailureUnavailable {
		return MessageUnavailable
	}
	return MessageNotFound
}

func (f *Failure) sentinel() error {
	if f.Kind == FailureUnavailable {
		return ErrUnavailable
	}
	return ErrNotFound
}

// FailureMessage returns the user-facing text for any lookup error.
func FailureMessage(err error) string {
	var f *Failure
	if errors.As(err, &f) {
		return f.Message()
	}
	if errors.Is(err, ErrUnavailable) {
		return MessageUnavailable
	}
	return MessageNotFound
}
