package conditionsrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oaracle/oaracle/internal/domain/conditions"
	"github.com/oaracle/oaracle/internal/domain/rowability"
)

// PostgresRepository implements conditions.Repository using pgx.
//
// Expected tables (created outside this service):
//
//	locations          (id bigserial, name, latitude numeric(9,6), longitude numeric(9,6),
//	                    waterway_type, nearest_town, created_at, updated_at; unique (latitude, longitude))
//	weather_conditions (location_id, timestamp, temperature, wind_speed, wind_gust, wind_direction,
//	                    precipitation, humidity, pressure, visibility, weather_description, icon_code;
//	                    unique (location_id, timestamp))
//	water_conditions   (location_id, timestamp, water_level, flow_rate, tide_height, tide_type,
//	                    water_temperature; unique (location_id, timestamp))
//	rowability_scores  (location_id, timestamp, score, category, factors jsonb, recommendations jsonb;
//	                    unique (location_id, timestamp))
//	forecasts          (location_id, forecast_date date, forecast_time time, temperature_min,
//	                    temperature_max, wind_speed, wind_gust, wind_direction, precipitation_probability,
//	                    weather_description, icon_code; unique (location_id, forecast_date, forecast_time))
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository constructs the repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const locationColumns = `id, name, latitude::float8, longitude::float8, waterway_type, nearest_town, created_at, updated_at`

// GetOrCreateLocation inserts the location unless one already exists at the coordinates.
func (r *PostgresRepository) GetOrCreateLocation(ctx context.Context, loc conditions.Location) (conditions.Location, bool, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO locations (name, latitude, longitude, waterway_type, nearest_town, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (latitude, longitude) DO NOTHING
		RETURNING `+locationColumns,
		loc.Name, loc.Latitude, loc.Longitude, loc.WaterwayType, loc.NearestTown, loc.CreatedAt, loc.UpdatedAt)
	created, err := scanLocation(row)
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return conditions.Location{}, false, err
	}

	row = r.pool.QueryRow(ctx, `
		SELECT `+locationColumns+`
		FROM locations
		WHERE latitude = $1 AND longitude = $2
		LIMIT 1
	`, loc.Latitude, loc.Longitude)
	existing, err := scanLocation(row)
	if err != nil {
		return conditions.Location{}, false, err
	}
	return existing, false, nil
}

// UpdateLocation rewrites the descriptive fields of a location.
func (r *PostgresRepository) UpdateLocation(ctx context.Context, loc conditions.Location) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE locations
		SET name = $1, waterway_type = $2, nearest_town = $3, updated_at = $4
		WHERE id = $5
	`, loc.Name, loc.WaterwayType, loc.NearestTown, loc.UpdatedAt, loc.ID)
	return err
}

// FindLocation fetches a location by id.
func (r *PostgresRepository) FindLocation(ctx context.Context, id int64) (conditions.Location, bool, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+locationColumns+` FROM locations WHERE id = $1`, id)
	loc, err := scanLocation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return conditions.Location{}, false, nil
		}
		return conditions.Location{}, false, err
	}
	return loc, true, nil
}

// SaveWeather upserts the reading on (location, timestamp).
func (r *PostgresRepository) SaveWeather(ctx context.Context, locationID int64, w conditions.WeatherReading) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO weather_conditions (location_id, timestamp, temperature, wind_speed, wind_gust, wind_direction,
			precipitation, humidity, pressure, visibility, weather_description, icon_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (location_id, timestamp) DO UPDATE SET
			temperature = EXCLUDED.temperature,
			wind_speed = EXCLUDED.wind_speed,
			wind_gust = EXCLUDED.wind_gust,
			wind_direction = EXCLUDED.wind_direction,
			precipitation = EXCLUDED.precipitation,
			humidity = EXCLUDED.humidity,
			pressure = EXCLUDED.pressure,
			visibility = EXCLUDED.visibility,
			weather_description = EXCLUDED.weather_description,
			icon_code = EXCLUDED.icon_code
	`, locationID, w.Timestamp, w.Temperature, w.WindSpeed, w.WindGust, w.WindDirection,
		w.Precipitation, w.Humidity, w.Pressure, w.Visibility, w.WeatherDescription, w.IconCode)
	return err
}

// SaveForecast upserts all entries in a single batch.
func (r *PostgresRepository) SaveForecast(ctx context.Context, locationID int64, entries []conditions.ForecastEntry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, f := range entries {
		batch.Queue(`
			INSERT INTO forecasts (location_id, forecast_date, forecast_time, temperature_min, temperature_max,
				wind_speed, wind_gust, wind_direction, precipitation_probability, weather_description, icon_code)
			VALUES ($1, $2::date, $3::time, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (location_id, forecast_date, forecast_time) DO UPDATE SET
				temperature_min = EXCLUDED.temperature_min,
				temperature_max = EXCLUDED.temperature_max,
				wind_speed = EXCLUDED.wind_speed,
				wind_gust = EXCLUDED.wind_gust,
				wind_direction = EXCLUDED.wind_direction,
				precipitation_probability = EXCLUDED.precipitation_probability,
				weather_description = EXCLUDED.weather_description,
				icon_code = EXCLUDED.icon_code
		`, locationID, f.Date, f.Time, f.TemperatureMin, f.TemperatureMax,
			f.WindSpeed, f.WindGust, f.WindDirection, f.PrecipitationProbability, f.WeatherDescription, f.IconCode)
	}
	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for i := range entries {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("forecast %s %s: %w", entries[i].Date, entries[i].Time, err)
		}
	}
	return nil
}

// SaveScore upserts the score on (location, timestamp).
func (r *PostgresRepository) SaveScore(ctx context.Context, record conditions.ScoreRecord) error {
	factors, err := json.Marshal(nonNilFactors(record.Factors))
	if err != nil {
		return err
	}
	recommendations, err := json.Marshal(nonNilStrings(record.Recommendations))
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO rowability_scores (location_id, timestamp, score, category, factors, recommendations)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (location_id, timestamp) DO UPDATE SET
			score = EXCLUDED.score,
			category = EXCLUDED.category,
			factors = EXCLUDED.factors,
			recommendations = EXCLUDED.recommendations
	`, record.LocationID, record.Timestamp, record.Score, string(record.Category), factors, recommendations)
	return err
}

// ListWeather returns readings newest first.
func (r *PostgresRepository) ListWeather(ctx context.Context, locationID int64) ([]conditions.WeatherReading, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT timestamp, temperature, wind_speed, wind_gust, wind_direction, precipitation,
			humidity, pressure, visibility, weather_description, icon_code
		FROM weather_conditions
		WHERE location_id = $1
		ORDER BY timestamp DESC
	`, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []conditions.WeatherReading{}
	for rows.Next() {
		var w conditions.WeatherReading
		if err := rows.Scan(&w.Timestamp, &w.Temperature, &w.WindSpeed, &w.WindGust, &w.WindDirection, &w.Precipitation,
			&w.Humidity, &w.Pressure, &w.Visibility, &w.WeatherDescription, &w.IconCode); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// ListWater returns imported water readings newest first.
func (r *PostgresRepository) ListWater(ctx context.Context, locationID int64) ([]conditions.WaterReading, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT timestamp, water_level, flow_rate, tide_height, tide_type, water_temperature
		FROM water_conditions
		WHERE location_id = $1
		ORDER BY timestamp DESC
	`, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []conditions.WaterReading{}
	for rows.Next() {
		var w conditions.WaterReading
		if err := rows.Scan(&w.Timestamp, &w.WaterLevel, &w.FlowRate, &w.TideHeight, &w.TideType, &w.WaterTemperature); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// ListScores returns scores newest first.
func (r *PostgresRepository) ListScores(ctx context.Context, locationID int64) ([]conditions.ScoreRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT timestamp, score, category, factors, recommendations
		FROM rowability_scores
		WHERE location_id = $1
		ORDER BY timestamp DESC
	`, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []conditions.ScoreRecord{}
	for rows.Next() {
		var (
			record          = conditions.ScoreRecord{LocationID: locationID}
			category        string
			factors         []byte
			recommendations []byte
		)
		if err := rows.Scan(&record.Timestamp, &record.Score, &category, &factors, &recommendations); err != nil {
			return nil, err
		}
		record.Category = rowability.Category(category)
		if err := json.Unmarshal(factors, &record.Factors); err != nil {
			return nil, fmt.Errorf("decode factors: %w", err)
		}
		if err := json.Unmarshal(recommendations, &record.Recommendations); err != nil {
			return nil, fmt.Errorf("decode recommendations: %w", err)
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

// ListForecasts returns entries ordered by date and time.
func (r *PostgresRepository) ListForecasts(ctx context.Context, locationID int64) ([]conditions.ForecastEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT forecast_date::text, to_char(forecast_time, 'HH24:MI'), temperature_min, temperature_max,
			wind_speed, wind_gust, wind_direction, precipitation_probability, weather_description, icon_code
		FROM forecasts
		WHERE location_id = $1
		ORDER BY forecast_date, forecast_time
	`, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []conditions.ForecastEntry{}
	for rows.Next() {
		var f conditions.ForecastEntry
		if err := rows.Scan(&f.Date, &f.Time, &f.TemperatureMin, &f.TemperatureMax,
			&f.WindSpeed, &f.WindGust, &f.WindDirection, &f.PrecipitationProbability, &f.WeatherDescription, &f.IconCode); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Ping checks the pool can reach the database.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLocation(row rowScanner) (conditions.Location, error) {
	var loc conditions.Location
	err := row.Scan(&loc.ID, &loc.Name, &loc.Latitude, &loc.Longitude, &loc.WaterwayType, &loc.NearestTown, &loc.CreatedAt, &loc.UpdatedAt)
	return loc, err
}

func nonNilFactors(v []rowability.Factor) []rowability.Factor {
	if v == nil {
		return []rowability.Factor{}
	}
	return v
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

var _ conditions.Repository = (*PostgresRepository)(nil)
