package conditions

import (
	"fmt"
	"math"
	"time"

	"github.com/oaracle/oaracle/internal/domain/rowability"
)

// Reading sources.
const (
	SourceFallback = "fallback"
)

// Coordinates identify a location. Values are kept at six decimal places.
type Coordinates struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// Normalize rounds both axes to the stored precision.
func (c Coordinates) Normalize() Coordinates {
	return Coordinates{Latitude: round6(c.Latitude), Longitude: round6(c.Longitude)}
}

// Key returns a canonical string for the coordinate pair.
func (c Coordinates) Key() string {
	return fmt.Sprintf("%.6f,%.6f", c.Latitude, c.Longitude)
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// Location is a rowing spot keyed by its coordinates.
type Location struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	WaterwayType string    `json:"waterway_type"`
	NearestTown  string    `json:"nearest_town"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Coordinates returns the location key.
func (l Location) Coordinates() Coordinates {
	return Coordinates{Latitude: l.Latitude, Longitude: l.Longitude}
}

// Place is the reverse geocoding result used to describe a location.
type Place struct {
	Waterway string
	Town     string
}

// WeatherReading is a point-in-time weather observation.
type WeatherReading struct {
	Timestamp          time.Time `json:"timestamp"`
	Temperature        float64   `json:"temperature"`    // °C
	WindSpeed          float64   `json:"wind_speed"`     // m/s
	WindGust           *float64  `json:"wind_gust"`      // m/s
	WindDirection      int       `json:"wind_direction"` // degrees
	Precipitation      float64   `json:"precipitation"`  // mm
	Humidity           int       `json:"humidity"`       // %
	Pressure           float64   `json:"pressure"`       // hPa
	Visibility         *float64  `json:"visibility"`     // km
	WeatherDescription string    `json:"weather_description"`
	IconCode           string    `json:"icon_code"`
	Source             string    `json:"source,omitempty"`

	// RawJSON is the upstream payload, archived but never serialized.
	RawJSON []byte `json:"-"`
}

// Conditions projects the reading onto the scoring inputs.
func (r WeatherReading) Conditions() rowability.Conditions {
	temperature := r.Temperature
	precipitation := r.Precipitation
	return rowability.Conditions{
		WindSpeed:     r.WindSpeed,
		WindGust:      cloneFloat(r.WindGust),
		Temperature:   &temperature,
		Precipitation: &precipitation,
		Visibility:    cloneFloat(r.Visibility),
	}
}

// WaterReading captures tide and flow data for a location. There is no
// water data provider yet; stored rows come from external importers.
type WaterReading struct {
	Timestamp        time.Time `json:"timestamp"`
	WaterLevel       *float64  `json:"water_level"`       // m
	FlowRate         *float64  `json:"flow_rate"`         // m³/s
	TideHeight       *float64  `json:"tide_height"`       // m
	TideType         *string   `json:"tide_type"`         // high, low, rising, falling
	WaterTemperature *float64  `json:"water_temperature"` // °C
}

// ForecastEntry is one forecast slot.
type ForecastEntry struct {
	Date                     string   `json:"date"` // YYYY-MM-DD
	Time                     string   `json:"time"` // HH:MM
	TemperatureMin           *float64 `json:"temperature_min"`
	TemperatureMax           *float64 `json:"temperature_max"`
	WindSpeed                float64  `json:"wind_speed"`
	WindGust                 *float64 `json:"wind_gust"`
	WindDirection            int      `json:"wind_direction"`
	PrecipitationProbability int      `json:"precipitation_probability"`
	WeatherDescription       string   `json:"weather_description"`
	IconCode                 string   `json:"icon_code"`
}

// ScoreRecord is a computed score stored per (location, timestamp).
type ScoreRecord struct {
	LocationID int64     `json:"location_id"`
	Timestamp  time.Time `json:"timestamp"`
	rowability.Result
}

// Request asks for the rowing conditions at a coordinate pair.
type Request struct {
	Latitude        *float64 `json:"latitude" binding:"required,latitude"`
	Longitude       *float64 `json:"longitude" binding:"required,longitude"`
	IncludeWeather  *bool    `json:"include_weather"`
	IncludeWater    *bool    `json:"include_water"`
	IncludeForecast *bool    `json:"include_forecast"`
	DaysAhead       *int     `json:"days_ahead" binding:"omitempty,min=1,max=7"`
}

// ScoreRequest carries readings for a direct score calculation.
type ScoreRequest struct {
	WindSpeed     *float64 `json:"wind_speed" binding:"required,gte=0,lt=1000"`
	WindGust      *float64 `json:"wind_gust" binding:"omitempty,gte=0,lt=1000"`
	Temperature   *float64 `json:"temperature" binding:"omitempty,gt=-1000,lt=1000"`
	Precipitation *float64 `json:"precipitation" binding:"omitempty,gte=0,lt=1000"`
	Visibility    *float64 `json:"visibility" binding:"omitempty,gte=0,lt=10000"`
	WaterLevel    *float64 `json:"water_level"`
	FlowRate      *float64 `json:"flow_rate"`
}

// Conditions converts the request into scoring inputs.
func (r ScoreRequest) Conditions() rowability.Conditions {
	c := rowability.Conditions{
		WindGust:      cloneFloat(r.WindGust),
		Temperature:   cloneFloat(r.Temperature),
		Precipitation: cloneFloat(r.Precipitation),
		Visibility:    cloneFloat(r.Visibility),
	}
	if r.WindSpeed != nil {
		c.WindSpeed = *r.WindSpeed
	}
	return c
}

// Response is returned by the conditions endpoint.
type Response struct {
	Location          Location           `json:"location"`
	CurrentConditions *WeatherReading    `json:"current_conditions"`
	WaterConditions   *WaterReading      `json:"water_conditions,omitempty"`
	Forecast          []ForecastEntry    `json:"forecast"`
	RowabilityScore   *rowability.Result `json:"rowability_score"`
}

// LocationDetail is a location with its stored history.
type LocationDetail struct {
	Location
	WeatherConditions []WeatherReading `json:"weather_conditions"`
	WaterConditions   []WaterReading   `json:"water_conditions"`
	RowabilityScores  []ScoreRecord    `json:"rowability_scores"`
	Forecasts         []ForecastEntry  `json:"forecasts"`
}

// StoredObject captures archived blob metadata.
type StoredObject struct {
	Key      string
	Size     int64
	MimeType string
	ETag     string
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	clone := *v
	return &clone
}
