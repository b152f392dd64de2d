package conditionsrepo

import (
	"context"
	"sort"
	"sync"

	"github.com/oaracle/oaracle/internal/domain/conditions"
)

// MemoryRepository keeps locations and readings in process memory. Used for
// local development and whenever Postgres is not configured.
type MemoryRepository struct {
	mu     sync.RWMutex
	nextID int64

	locations map[int64]conditions.Location
	byCoords  map[string]int64
	weather   map[int64]map[int64]conditions.WeatherReading
	scores    map[int64]map[int64]conditions.ScoreRecord
	forecasts map[int64]map[string]conditions.ForecastEntry
}

// NewMemoryRepository constructs an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		nextID:    1,
		locations: make(map[int64]conditions.Location),
		byCoords:  make(map[string]int64),
		weather:   make(map[int64]map[int64]conditions.WeatherReading),
		scores:    make(map[int64]map[int64]conditions.ScoreRecord),
		forecasts: make(map[int64]map[string]conditions.ForecastEntry),
	}
}

// GetOrCreateLocation implements conditions.Repository.
func (r *MemoryRepository) GetOrCreateLocation(_ context.Context, loc conditions.Location) (conditions.Location, bool, error) {
	key := loc.Coordinates().Normalize().Key()

	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byCoords[key]; ok {
		return r.locations[id], false, nil
	}
	loc.ID = r.nextID
	r.nextID++
	r.locations[loc.ID] = loc
	r.byCoords[key] = loc.ID
	return loc, true, nil
}

// UpdateLocation implements conditions.Repository.
func (r *MemoryRepository) UpdateLocation(_ context.Context, loc conditions.Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.locations[loc.ID]
	if !ok {
		return nil
	}
	// Coordinates are the identity of a location and never change.
	loc.Latitude, loc.Longitude = existing.Latitude, existing.Longitude
	loc.CreatedAt = existing.CreatedAt
	r.locations[loc.ID] = loc
	return nil
}

// FindLocation implements conditions.Repository.
func (r *MemoryRepository) FindLocation(_ context.Context, id int64) (conditions.Location, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	loc, ok := r.locations[id]
	return loc, ok, nil
}

// SaveWeather upserts the reading on (location, timestamp).
func (r *MemoryRepository) SaveWeather(_ context.Context, locationID int64, reading conditions.WeatherReading) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	bucket, ok := r.weather[locationID]
	if !ok {
		bucket = make(map[int64]conditions.WeatherReading)
		r.weather[locationID] = bucket
	}
	reading.RawJSON = nil
	bucket[reading.Timestamp.UnixNano()] = reading
	return nil
}

// SaveForecast upserts each entry on (location, date, time).
func (r *MemoryRepository) SaveForecast(_ context.Context, locationID int64, entries []conditions.ForecastEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	bucket, ok := r.forecasts[locationID]
	if !ok {
		bucket = make(map[string]conditions.ForecastEntry)
		r.forecasts[locationID] = bucket
	}
	for _, entry := range entries {
		bucket[entry.Date+" "+entry.Time] = entry
	}
	return nil
}

// SaveScore upserts the score on (location, timestamp).
func (r *MemoryRepository) SaveScore(_ context.Context, record conditions.ScoreRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	bucket, ok := r.scores[record.LocationID]
	if !ok {
		bucket = make(map[int64]conditions.ScoreRecord)
		r.scores[record.LocationID] = bucket
	}
	bucket[record.Timestamp.UnixNano()] = record
	return nil
}

// ListWeather returns readings newest first.
func (r *MemoryRepository) ListWeather(_ context.Context, locationID int64) ([]conditions.WeatherReading, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]conditions.WeatherReading, 0, len(r.weather[locationID]))
	for _, reading := range r.weather[locationID] {
		out = append(out, reading)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

// ListWater always returns an empty list: water readings only arrive through
// external imports into Postgres.
func (r *MemoryRepository) ListWater(context.Context, int64) ([]conditions.WaterReading, error) {
	return []conditions.WaterReading{}, nil
}

// ListScores returns scores newest first.
func (r *MemoryRepository) ListScores(_ context.Context, locationID int64) ([]conditions.ScoreRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]conditions.ScoreRecord, 0, len(r.scores[locationID]))
	for _, record := range r.scores[locationID] {
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

// ListForecasts returns entries ordered by date and time.
func (r *MemoryRepository) ListForecasts(_ context.Context, locationID int64) ([]conditions.ForecastEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]conditions.ForecastEntry, 0, len(r.forecasts[locationID]))
	for _, entry := range r.forecasts[locationID] {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Time < out[j].Time
	})
	return out, nil
}

// Ping implements conditions.Repository.
func (r *MemoryRepository) Ping(context.Context) error {
	return nil
}

var _ conditions.Repository = (*MemoryRepository)(nil)
