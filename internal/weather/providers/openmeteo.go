package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/balloon-tracker/internal/upstream"
	"github.com/i474232898/balloon-tracker/internal/weather"
)

const DefaultOpenMeteoURL = "https://api.open-meteo.com/v1/forecast"

// Mode selects which Open-Meteo query shape is used.
type Mode string

const (
	// ModePressure asks for hourly wind at the pressure level nearest the
	// balloon's altitude.
	ModePressure Mode = "pressure"
	// ModeCurrent asks for the generic current_weather block (surface).
	ModeCurrent Mode = "current"
)

// OpenMeteoProvider implements weather.Provider for Open-Meteo.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	mode    Mode
	caller  *upstream.Caller
	now     func() time.Time
}

func NewOpenMeteoProvider(client *http.Client, baseURL string, mode Mode) *OpenMeteoProvider {
	if baseURL == "" {
		baseURL = DefaultOpenMeteoURL
	}
	if mode == "" {
		mode = ModePressure
	}
	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: baseURL,
		mode:    mode,
		caller:  upstream.NewCaller("openmeteo", client),
		now:     time.Now,
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

func (p *OpenMeteoProvider) WeatherAt(ctx context.Context, lat, lon, altitudeKm float64) (weather.Annotation, error) {
	if p.mode == ModeCurrent {
		return p.currentWeather(ctx, lat, lon)
	}
	return p.pressureWeather(ctx, lat, lon, altitudeKm)
}

func (p *OpenMeteoProvider) pressureWeather(ctx context.Context, lat, lon, altitudeKm float64) (weather.Annotation, error) {
	level := weather.NearestPressureLevel(altitudeKm)

	speedKey := "windspeed_" + level.Label
	dirKey := "winddirection_" + level.Label
	tempKey := "temperature_" + level.Label

	values := coordinates(lat, lon)
	values.Set("hourly", strings.Join([]string{speedKey, dirKey, tempKey}, ","))
	values.Set("timezone", "UTC")

	body, err := p.get(ctx, values)
	if err != nil {
		return weather.Annotation{}, err
	}

	var payload struct {
		Hourly map[string]json.RawMessage `json:"hourly"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return weather.Annotation{}, fmt.Errorf("decode forecast: %w", err)
	}
	if payload.Hourly == nil {
		return weather.Annotation{}, fmt.Errorf("%w: hourly", weather.ErrMissingField)
	}

	speed, err := firstValue(payload.Hourly, speedKey)
	if err != nil {
		return weather.Annotation{}, err
	}
	dir, err := firstValue(payload.Hourly, dirKey)
	if err != nil {
		return weather.Annotation{}, err
	}

	ann := weather.Annotation{
		WindSpeedKmh:     speed,
		WindDirectionDeg: dir,
		PressureLevel:    level.Label,
		Source:           p.name,
		FetchedAt:        p.now().UTC(),
	}
	// Temperature is best-effort; some levels and models omit it.
	if t, err := firstValue(payload.Hourly, tempKey); err == nil {
		ann.TemperatureC = &t
	}
	return ann, nil
}

func (p *OpenMeteoProvider) currentWeather(ctx context.Context, lat, lon float64) (weather.Annotation, error) {
	values := coordinates(lat, lon)
	values.Set("current_weather", "true")
	values.Set("timezone", "UTC")

	body, err := p.get(ctx, values)
	if err != nil {
		return weather.Annotation{}, err
	}

	var payload struct {
		CurrentWeather *struct {
			Temperature   *float64 `json:"temperature"`
			WindSpeed     *float64 `json:"windspeed"`
			WindDirection *float64 `json:"winddirection"`
		} `json:"current_weather"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return weather.Annotation{}, fmt.Errorf("decode forecast: %w", err)
	}
	cw := payload.CurrentWeather
	if cw == nil {
		return weather.Annotation{}, fmt.Errorf("%w: current_weather", weather.ErrMissingField)
	}
	if cw.WindSpeed == nil || cw.WindDirection == nil {
		return weather.Annotation{}, fmt.Errorf("%w: current_weather wind", weather.ErrMissingField)
	}

	return weather.Annotation{
		WindSpeedKmh:     *cw.WindSpeed,
		WindDirectionDeg: *cw.WindDirection,
		TemperatureC:     cw.Temperature,
		Source:           p.name,
		FetchedAt:        p.now().UTC(),
	}, nil
}

func (p *OpenMeteoProvider) get(ctx context.Context, values url.Values) ([]byte, error) {
	resp, err := p.caller.Do(ctx, fmt.Sprintf("%s?%s", p.baseURL, values.Encode()))
	if err != nil {
		return nil, fmt.Errorf("openmeteo request: %w", err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("openmeteo returned status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func coordinates(lat, lon float64) url.Values {
	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	values.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	return values
}

// firstValue returns the first element of an hourly series. The first hour
// stands in for "now".
func firstValue(hourly map[string]json.RawMessage, key string) (float64, error) {
	raw, ok := hourly[key]
	if !ok {
		return 0, fmt.Errorf("%w: hourly.%s", weather.ErrMissingField, key)
	}
	var series []*float64
	if err := json.Unmarshal(raw, &series); err != nil {
		return 0, fmt.Errorf("decode hourly.%s: %w", key, err)
	}
	if len(series) == 0 || series[0] == nil {
		return 0, fmt.Errorf("%w: hourly.%s is empty", weather.ErrMissingField, key)
	}
	return *series[0], nil
}
