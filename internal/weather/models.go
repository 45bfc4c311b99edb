package weather

import (
	"errors"
	"time"
)

// ErrMissingField is returned when a forecast response lacks the block or
// series that was requested.
var ErrMissingField = errors.New("forecast response missing field")

// Annotation is the weather attached to a balloon position after a user
// selects it. It is fetched per request and never cached.
type Annotation struct {
	WindSpeedKmh     float64   `json:"windSpeedKmh"`
	WindDirectionDeg float64   `json:"windDirectionDeg"`
	TemperatureC     *float64  `json:"temperatureC,omitempty"`
	PressureLevel    string    `json:"pressureLevel,omitempty"`
	Source           string    `json:"source"`
	FetchedAt        time.Time `json:"fetchedAt"` // always UTC
}
