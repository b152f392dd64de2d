package conditions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/oaracle/oaracle/internal/domain/rowability"
	apperrors "github.com/oaracle/oaracle/pkg/errors"
	"github.com/oaracle/oaracle/pkg/metrics"
)

// Service exposes rowing condition lookups and scoring.
type Service interface {
	Conditions(ctx context.Context, req Request) (Response, error)
	Score(ctx context.Context, req ScoreRequest) (rowability.Result, error)
	Location(ctx context.Context, id int64) (LocationDetail, error)
	Refresh(ctx context.Context, coords Coordinates) error
	Ready(ctx context.Context) error
}

type service struct {
	cfg      Config
	repo     Repository
	geocoder Geocoder
	weather  WeatherSource
	queue    ScoreQueue
	archive  Archive
	metrics  *metrics.Metrics
	logger   *slog.Logger
	clock    clockwork.Clock
}

// NewService wires up the conditions domain.
func NewService(cfg Config, repo Repository, geocoder Geocoder, weather WeatherSource, queue ScoreQueue, archive Archive, m *metrics.Metrics, logger *slog.Logger, clock clockwork.Clock) Service {
	if cfg.MaxDaysAhead <= 0 {
		cfg.MaxDaysAhead = DefaultConfig().MaxDaysAhead
	}
	if cfg.DefaultDaysAhead <= 0 || cfg.DefaultDaysAhead > cfg.MaxDaysAhead {
		cfg.DefaultDaysAhead = cfg.MaxDaysAhead
	}
	return &service{
		cfg:      cfg,
		repo:     repo,
		geocoder: geocoder,
		weather:  weather,
		queue:    queue,
		archive:  archive,
		metrics:  m,
		logger:   logger.With("component", "conditions.service"),
		clock:    clock,
	}
}

type lookup struct {
	coords          Coordinates
	includeWeather  bool
	includeWater    bool
	includeForecast bool
	daysAhead       int
}

func (s *service) Conditions(ctx context.Context, req Request) (Response, error) {
	q, err := s.resolveRequest(req)
	if err != nil {
		return Response{}, err
	}

	loc, err := s.resolveLocation(ctx, q.coords)
	if err != nil {
		return Response{}, apperrors.Wrap(apperrors.CodeStorage, "failed to resolve location", err)
	}

	resp := Response{Location: loc, Forecast: []ForecastEntry{}}
	if q.includeWeather {
		reading := s.currentWeather(ctx, loc)
		resp.CurrentConditions = &reading
	}
	if q.includeWater {
		water := fallbackWater(s.clock.Now())
		resp.WaterConditions = &water
	}
	if q.includeForecast {
		resp.Forecast = s.forecast(ctx, loc, q.daysAhead)
	}

	if resp.CurrentConditions != nil {
		result := s.compute(resp.CurrentConditions.Conditions())
		resp.RowabilityScore = &result
		record := ScoreRecord{
			LocationID: loc.ID,
			Timestamp:  resp.CurrentConditions.Timestamp,
			Result:     result,
		}
		if err := s.queue.Enqueue(ctx, record); err != nil {
			s.logger.Warn("score enqueue failed", "location_id", loc.ID, "error", err)
		}
	}

	s.logger.Info("conditions resolved",
		"location_id", loc.ID,
		"weather", q.includeWeather,
		"water", q.includeWater,
		"forecast_entries", len(resp.Forecast),
	)
	return resp, nil
}

func (s *service) Score(_ context.Context, req ScoreRequest) (rowability.Result, error) {
	if req.WindSpeed == nil {
		return rowability.Result{}, apperrors.Wrap(apperrors.CodeInvalidInput, "wind_speed is required", nil)
	}
	for name, v := range map[string]*float64{
		"wind_speed":    req.WindSpeed,
		"wind_gust":     req.WindGust,
		"temperature":   req.Temperature,
		"precipitation": req.Precipitation,
		"visibility":    req.Visibility,
	} {
		if v != nil && !isFinite(*v) {
			return rowability.Result{}, apperrors.Wrap(apperrors.CodeInvalidInput, name+" must be a finite number", nil)
		}
	}
	return s.compute(req.Conditions()), nil
}

func (s *service) Location(ctx context.Context, id int64) (LocationDetail, error) {
	loc, found, err := s.repo.FindLocation(ctx, id)
	if err != nil {
		return LocationDetail{}, apperrors.Wrap(apperrors.CodeStorage, "failed to load location", err)
	}
	if !found {
		return LocationDetail{}, apperrors.Wrap(apperrors.CodeNotFound, fmt.Sprintf("location %d not found", id), nil)
	}

	detail := LocationDetail{Location: loc}
	if detail.WeatherConditions, err = s.repo.ListWeather(ctx, id); err != nil {
		return LocationDetail{}, apperrors.Wrap(apperrors.CodeStorage, "failed to load weather history", err)
	}
	if detail.WaterConditions, err = s.repo.ListWater(ctx, id); err != nil {
		return LocationDetail{}, apperrors.Wrap(apperrors.CodeStorage, "failed to load water history", err)
	}
	if detail.RowabilityScores, err = s.repo.ListScores(ctx, id); err != nil {
		return LocationDetail{}, apperrors.Wrap(apperrors.CodeStorage, "failed to load scores", err)
	}
	if detail.Forecasts, err = s.repo.ListForecasts(ctx, id); err != nil {
		return LocationDetail{}, apperrors.Wrap(apperrors.CodeStorage, "failed to load forecasts", err)
	}
	return detail, nil
}

func (s *service) Refresh(ctx context.Context, coords Coordinates) error {
	lat, lon := coords.Latitude, coords.Longitude
	_, err := s.Conditions(ctx, Request{Latitude: &lat, Longitude: &lon})
	return err
}

func (s *service) Ready(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *service) compute(c rowability.Conditions) rowability.Result {
	result := rowability.Compute(c)
	s.metrics.ScoresComputed.WithLabelValues(string(result.Category)).Inc()
	return result
}

func (s *service) resolveRequest(req Request) (lookup, error) {
	if req.Latitude == nil || req.Longitude == nil {
		return lookup{}, apperrors.Wrap(apperrors.CodeInvalidInput, "latitude and longitude are required", nil)
	}
	lat, lon := *req.Latitude, *req.Longitude
	if !isFinite(lat) || lat < -90 || lat > 90 {
		return lookup{}, apperrors.Wrap(apperrors.CodeInvalidInput, "latitude must be between -90 and 90", nil)
	}
	if !isFinite(lon) || lon < -180 || lon > 180 {
		return lookup{}, apperrors.Wrap(apperrors.CodeInvalidInput, "longitude must be between -180 and 180", nil)
	}

	days := s.cfg.DefaultDaysAhead
	if req.DaysAhead != nil {
		days = *req.DaysAhead
	}
	if days < 1 || days > s.cfg.MaxDaysAhead {
		return lookup{}, apperrors.Wrap(apperrors.CodeInvalidInput, fmt.Sprintf("days_ahead must be between 1 and %d", s.cfg.MaxDaysAhead), nil)
	}

	return lookup{
		coords:          Coordinates{Latitude: lat, Longitude: lon}.Normalize(),
		includeWeather:  boolOr(req.IncludeWeather, true),
		includeWater:    boolOr(req.IncludeWater, true),
		includeForecast: boolOr(req.IncludeForecast, true),
		daysAhead:       days,
	}, nil
}

func (s *service) resolveLocation(ctx context.Context, coords Coordinates) (Location, error) {
	now := s.clock.Now().UTC()
	loc, created, err := s.repo.GetOrCreateLocation(ctx, Location{
		Name:         "Location at " + formatCoord(coords.Latitude) + ", " + formatCoord(coords.Longitude),
		Latitude:     coords.Latitude,
		Longitude:    coords.Longitude,
		WaterwayType: "unknown",
		NearestTown:  "Unknown",
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return Location{}, err
	}
	if !created || s.geocoder == nil {
		return loc, nil
	}

	place, err := s.geocoder.ReverseGeocode(ctx, coords.Latitude, coords.Longitude)
	if err != nil {
		if !errors.Is(err, ErrSourceUnavailable) {
			s.logger.Warn("reverse geocoding failed", "location_id", loc.ID, "error", err)
		}
		s.metrics.FallbacksUsed.WithLabelValues("geocode").Inc()
		return loc, nil
	}
	if !applyPlace(&loc, place) {
		return loc, nil
	}
	loc.UpdatedAt = now
	if err := s.repo.UpdateLocation(ctx, loc); err != nil {
		s.logger.Warn("location update failed", "location_id", loc.ID, "error", err)
	}
	return loc, nil
}

// applyPlace copies geocoded details onto loc and reports whether anything changed.
func applyPlace(loc *Location, place Place) bool {
	switch {
	case place.Waterway != "" && place.Town != "":
		loc.Name = place.Waterway + " near " + place.Town
	case place.Waterway != "":
		loc.Name = place.Waterway
	case place.Town != "":
		loc.Name = place.Town
	default:
		return false
	}
	if place.Waterway != "" {
		loc.WaterwayType = place.Waterway
	}
	if place.Town != "" {
		loc.NearestTown = place.Town
	}
	return true
}

func (s *service) currentWeather(ctx context.Context, loc Location) WeatherReading {
	reading, err := s.weather.Current(ctx, loc.Latitude, loc.Longitude)
	if err != nil {
		if !errors.Is(err, ErrSourceUnavailable) {
			s.logger.Warn("weather fetch failed, using fallback reading", "location_id", loc.ID, "error", err)
		}
		s.metrics.FallbacksUsed.WithLabelValues("weather").Inc()
		return fallbackReading(s.clock.Now())
	}
	if reading.Timestamp.IsZero() {
		reading.Timestamp = s.clock.Now().UTC().Truncate(time.Minute)
	}

	s.archiveRaw(ctx, loc, reading)
	if err := s.repo.SaveWeather(ctx, loc.ID, reading); err != nil {
		s.logger.Warn("weather reading not stored", "location_id", loc.ID, "error", err)
	}
	return reading
}

func (s *service) forecast(ctx context.Context, loc Location, days int) []ForecastEntry {
	entries, err := s.weather.Forecast(ctx, loc.Latitude, loc.Longitude, days)
	if err != nil || len(entries) == 0 {
		if err != nil && !errors.Is(err, ErrSourceUnavailable) {
			s.logger.Warn("forecast fetch failed, using fallback forecast", "location_id", loc.ID, "error", err)
		}
		s.metrics.FallbacksUsed.WithLabelValues("forecast").Inc()
		return fallbackForecast(s.clock.Now(), days)
	}
	if err := s.repo.SaveForecast(ctx, loc.ID, entries); err != nil {
		s.logger.Warn("forecast not stored", "location_id", loc.ID, "error", err)
	}
	return entries
}

func (s *service) archiveRaw(ctx context.Context, loc Location, reading WeatherReading) {
	if !s.cfg.ArchiveRaw || s.archive == nil || len(reading.RawJSON) == 0 {
		return
	}
	key := fmt.Sprintf("weather/%d/%s-%s.json", loc.ID, reading.Timestamp.UTC().Format("20060102T150405Z"), uuid.NewString())
	if _, err := s.archive.Put(ctx, key, reading.RawJSON, "application/json"); err != nil {
		s.logger.Warn("raw weather payload not archived", "key", key, "error", err)
	}
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
