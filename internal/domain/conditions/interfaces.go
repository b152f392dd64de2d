package conditions

import (
	"context"
	"errors"
)

// ErrSourceUnavailable signals that an upstream collaborator is not configured.
var ErrSourceUnavailable = errors.New("source unavailable")

// Repository persists locations and their readings.
type Repository interface {
	GetOrCreateLocation(ctx context.Context, loc Location) (Location, bool, error)
	UpdateLocation(ctx context.Context, loc Location) error
	FindLocation(ctx context.Context, id int64) (Location, bool, error)

	SaveWeather(ctx context.Context, locationID int64, reading WeatherReading) error
	SaveForecast(ctx context.Context, locationID int64, entries []ForecastEntry) error
	SaveScore(ctx context.Context, record ScoreRecord) error

	ListWeather(ctx context.Context, locationID int64) ([]WeatherReading, error)
	ListWater(ctx context.Context, locationID int64) ([]WaterReading, error)
	ListScores(ctx context.Context, locationID int64) ([]ScoreRecord, error)
	ListForecasts(ctx context.Context, locationID int64) ([]ForecastEntry, error)

	Ping(ctx context.Context) error
}

// Geocoder resolves coordinates into a waterway and town.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (Place, error)
}

// WeatherSource supplies current readings and forecasts.
type WeatherSource interface {
	Current(ctx context.Context, lat, lon float64) (WeatherReading, error)
	Forecast(ctx context.Context, lat, lon float64, days int) ([]ForecastEntry, error)
}

// ScoreQueue hands computed scores to the persistence worker.
type ScoreQueue interface {
	Enqueue(ctx context.Context, record ScoreRecord) error
}

// ScorePublisher announces persisted scores to downstream consumers.
type ScorePublisher interface {
	PublishScore(ctx context.Context, record ScoreRecord) error
}

// Archive stores raw upstream payloads.
type Archive interface {
	Put(ctx context.Context, key string, data []byte, mimeType string) (StoredObject, error)
}
