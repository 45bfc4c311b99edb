package weather

import "context"

// Provider abstracts a forecast source able to describe the wind at a
// position and altitude.
type Provider interface {
	Name() string
	WeatherAt(ctx context.Context, lat, lon, altitudeKm float64) (Annotation, error)
}
