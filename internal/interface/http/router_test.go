package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/oaracle/oaracle/internal/domain/conditions"
	"github.com/oaracle/oaracle/internal/domain/rowability"
	"github.com/oaracle/oaracle/internal/infra/config"
	apperrors "github.com/oaracle/oaracle/pkg/errors"
)

var testNow = time.Date(2024, time.June, 3, 14, 0, 0, 0, time.UTC)

func TestRouter_ScoreSuccess(t *testing.T) {
	svc := &stubService{
		scoreFn: func(ctx context.Context, req conditions.ScoreRequest) (rowability.Result, error) {
			require.NotNil(t, req.WindSpeed)
			require.Equal(t, 3.5, *req.WindSpeed)
			require.Nil(t, req.Visibility)
			return rowability.Compute(req.Conditions()), nil
		},
	}

	recorder := performRequest(http.MethodPost, "/api/v1/score", `{"wind_speed":3.5,"temperature":18}`, newRouterUnderTest(t, svc))
	require.Equal(t, http.StatusOK, recorder.Code)

	var got rowability.Result
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &got))
	require.Equal(t, 9, got.Score)
	require.Equal(t, rowability.CategoryExcellent, got.Category)
	require.NotEmpty(t, got.Factors)
}

func TestRouter_ScoreRejectsNonNumericInput(t *testing.T) {
	svc := &stubService{
		scoreFn: func(ctx context.Context, req conditions.ScoreRequest) (rowability.Result, error) {
			t.Fatal("service must not be called")
			return rowability.Result{}, nil
		},
	}

	recorder := performRequest(http.MethodPost, "/api/v1/score", `{"wind_speed":"strong"}`, newRouterUnderTest(t, svc))
	require.Equal(t, http.StatusBadRequest, recorder.Code)

	errBody := decodeErrorBody(t, recorder.Body.Bytes())
	require.Equal(t, "invalid_request", errBody["error"]["code"])
	require.Equal(t, "wind_speed must be a number", errBody["error"]["message"])
}

func TestRouter_ScoreRequiresWindSpeed(t *testing.T) {
	recorder := performRequest(http.MethodPost, "/api/v1/score", `{"temperature":12}`, newRouterUnderTest(t, &stubService{}))
	require.Equal(t, http.StatusBadRequest, recorder.Code)

	errBody := decodeErrorBody(t, recorder.Body.Bytes())
	require.Equal(t, "invalid_request", errBody["error"]["code"])
	require.Equal(t, "wind_speed is required", errBody["error"]["message"])
}

func TestRouter_ScoreRejectsNegativeReadings(t *testing.T) {
	recorder := performRequest(http.MethodPost, "/api/v1/score", `{"wind_speed":-1}`, newRouterUnderTest(t, &stubService{}))
	require.Equal(t, http.StatusBadRequest, recorder.Code)

	errBody := decodeErrorBody(t, recorder.Body.Bytes())
	require.Equal(t, "wind_speed must be at least 0", errBody["error"]["message"])
}

func TestRouter_ConditionsSuccess(t *testing.T) {
	svc := &stubService{
		conditionsFn: func(ctx context.Context, req conditions.Request) (conditions.Response, error) {
			require.Equal(t, 51.5, *req.Latitude)
			require.Equal(t, -0.12, *req.Longitude)
			require.NotNil(t, req.IncludeForecast)
			require.False(t, *req.IncludeForecast)
			result := rowability.Compute(rowability.Conditions{WindSpeed: 2})
			return conditions.Response{
				Location:          conditions.Location{ID: 7, Name: "River Thames near London", Latitude: 51.5, Longitude: -0.12},
				CurrentConditions: &conditions.WeatherReading{Timestamp: testNow, WindSpeed: 2},
				Forecast:          []conditions.ForecastEntry{},
				RowabilityScore:   &result,
			}, nil
		},
	}

	recorder := performRequest(http.MethodPost, "/api/v1/conditions", `{"latitude":51.5,"longitude":-0.12,"include_forecast":false}`, newRouterUnderTest(t, svc))
	require.Equal(t, http.StatusOK, recorder.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	require.Contains(t, body, "location")
	require.Contains(t, body, "current_conditions")
	require.NotContains(t, body, "water_conditions")
	require.JSONEq(t, `[]`, string(body["forecast"]))

	var score rowability.Result
	require.NoError(t, json.Unmarshal(body["rowability_score"], &score))
	require.Equal(t, 10, score.Score)
}

func TestRouter_ConditionsRejectsOutOfRangeLatitude(t *testing.T) {
	recorder := performRequest(http.MethodPost, "/api/v1/conditions", `{"latitude":91,"longitude":0}`, newRouterUnderTest(t, &stubService{}))
	require.Equal(t, http.StatusBadRequest, recorder.Code)

	errBody := decodeErrorBody(t, recorder.Body.Bytes())
	require.Equal(t, "invalid_request", errBody["error"]["code"])
	require.Equal(t, "latitude must be between -90 and 90", errBody["error"]["message"])
}

func TestRouter_ConditionsMissingCoordinates(t *testing.T) {
	recorder := performRequest(http.MethodPost, "/api/v1/conditions", `{}`, newRouterUnderTest(t, &stubService{}))
	require.Equal(t, http.StatusBadRequest, recorder.Code)

	errBody := decodeErrorBody(t, recorder.Body.Bytes())
	require.Equal(t, "latitude is required; longitude is required", errBody["error"]["message"])
}

func TestRouter_ConditionsInvalidInputFromService(t *testing.T) {
	svc := &stubService{
		conditionsFn: func(ctx context.Context, req conditions.Request) (conditions.Response, error) {
			return conditions.Response{}, apperrors.Wrap(apperrors.CodeInvalidInput, "days_ahead must be between 1 and 5", nil)
		},
	}

	recorder := performRequest(http.MethodPost, "/api/v1/conditions", `{"latitude":1,"longitude":2,"days_ahead":6}`, newRouterUnderTest(t, svc))
	require.Equal(t, http.StatusBadRequest, recorder.Code)

	errBody := decodeErrorBody(t, recorder.Body.Bytes())
	require.Equal(t, "invalid_request", errBody["error"]["code"])
	require.Equal(t, "days_ahead must be between 1 and 5", errBody["error"]["message"])
}

func TestRouter_ConditionsStorageFailureHidesCause(t *testing.T) {
	svc := &stubService{
		conditionsFn: func(ctx context.Context, req conditions.Request) (conditions.Response, error) {
			return conditions.Response{}, apperrors.Wrap(apperrors.CodeStorage, "failed to resolve location", errors.New("dial tcp 10.0.0.3:5432"))
		},
	}

	recorder := performRequest(http.MethodPost, "/api/v1/conditions", `{"latitude":1,"longitude":2}`, newRouterUnderTest(t, svc))
	require.Equal(t, http.StatusInternalServerError, recorder.Code)

	errBody := decodeErrorBody(t, recorder.Body.Bytes())
	require.Equal(t, "storage_error", errBody["error"]["code"])
	require.Equal(t, "failed to resolve location", errBody["error"]["message"])
}

func TestRouter_LocationNotFound(t *testing.T) {
	svc := &stubService{
		locationFn: func(ctx context.Context, id int64) (conditions.LocationDetail, error) {
			require.Equal(t, int64(42), id)
			return conditions.LocationDetail{}, apperrors.Wrap(apperrors.CodeNotFound, "location 42 not found", nil)
		},
	}

	recorder := performRequest(http.MethodGet, "/api/v1/locations/42", "", newRouterUnderTest(t, svc))
	require.Equal(t, http.StatusNotFound, recorder.Code)

	errBody := decodeErrorBody(t, recorder.Body.Bytes())
	require.Equal(t, "not_found", errBody["error"]["code"])
}

func TestRouter_LocationRejectsBadID(t *testing.T) {
	recorder := performRequest(http.MethodGet, "/api/v1/locations/abc", "", newRouterUnderTest(t, &stubService{}))
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestRouter_LocationSuccess(t *testing.T) {
	svc := &stubService{
		locationFn: func(ctx context.Context, id int64) (conditions.LocationDetail, error) {
			return conditions.LocationDetail{
				Location:          conditions.Location{ID: id, Name: "Lake Bled"},
				WeatherConditions: []conditions.WeatherReading{},
				WaterConditions:   []conditions.WaterReading{},
				RowabilityScores:  []conditions.ScoreRecord{},
				Forecasts:         []conditions.ForecastEntry{},
			}, nil
		},
	}

	recorder := performRequest(http.MethodGet, "/api/v1/locations/3", "", newRouterUnderTest(t, svc))
	require.Equal(t, http.StatusOK, recorder.Code)
	require.JSONEq(t, `{"id":3,"name":"Lake Bled","latitude":0,"longitude":0,"waterway_type":"","nearest_town":"",
		"created_at":"0001-01-01T00:00:00Z","updated_at":"0001-01-01T00:00:00Z",
		"weather_conditions":[],"water_conditions":[],"rowability_scores":[],"forecasts":[]}`, recorder.Body.String())
}

func TestRouter_Health(t *testing.T) {
	server := newRouterUnderTest(t, &stubService{})

	for _, path := range []string{"/api/v1/health", "/healthz"} {
		recorder := performRequest(http.MethodGet, path, "", server)
		require.Equal(t, http.StatusOK, recorder.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
		require.Equal(t, "healthy", body["status"])
		require.Equal(t, "Oaracle Conditions API", body["service"])
		require.Equal(t, "2024-06-03T14:00:00Z", body["timestamp"])
	}
}

func TestRouter_Readiness(t *testing.T) {
	ready := true
	svc := &stubService{
		readyFn: func(ctx context.Context) error {
			if ready {
				return nil
			}
			return errors.New("connection refused")
		},
	}
	server := newRouterUnderTest(t, svc)

	recorder := performRequest(http.MethodGet, "/readyz", "", server)
	require.Equal(t, http.StatusOK, recorder.Code)

	ready = false
	recorder = performRequest(http.MethodGet, "/readyz", "", server)
	require.Equal(t, http.StatusServiceUnavailable, recorder.Code)
	require.Equal(t, "not_ready", decodeErrorBody(t, recorder.Body.Bytes())["error"]["code"])
}

func TestRouter_MetricsExposed(t *testing.T) {
	recorder := performRequest(http.MethodGet, "/metrics", "", newRouterUnderTest(t, &stubService{}))
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Contains(t, recorder.Body.String(), "go_goroutines")
}

func TestRouter_CORSPreflight(t *testing.T) {
	cfg := testConfig()
	cfg.HTTP.AllowedOrigins = []string{"https://oaracle.app"}
	server := NewRouter(cfg, NewHandler(&stubService{}, clockwork.NewFakeClockAt(testNow), newTestLogger()))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/score", nil)
	req.Header.Set("Origin", "https://oaracle.app")
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "https://oaracle.app", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_RateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.HTTP.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 60, Burst: 1}
	clock := clockwork.NewFakeClockAt(testNow)
	server := NewRouter(cfg, NewHandler(&stubService{}, clock, newTestLogger()))

	recorder := performRequest(http.MethodPost, "/api/v1/score", `{"wind_speed":1}`, server)
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = performRequest(http.MethodPost, "/api/v1/score", `{"wind_speed":1}`, server)
	require.Equal(t, http.StatusTooManyRequests, recorder.Code)
	require.Equal(t, "rate_limit_exceeded", decodeErrorBody(t, recorder.Body.Bytes())["error"]["code"])
	require.Equal(t, "1", recorder.Header().Get("Retry-After"))

	clock.Advance(2 * time.Second)
	recorder = performRequest(http.MethodPost, "/api/v1/score", `{"wind_speed":1}`, server)
	require.Equal(t, http.StatusOK, recorder.Code)

	// Health checks are never limited.
	recorder = performRequest(http.MethodGet, "/api/v1/health", "", server)
	require.Equal(t, http.StatusOK, recorder.Code)
}

func TestRouter_RetriesTransientFailures(t *testing.T) {
	var calls int
	svc := &stubService{
		conditionsFn: func(ctx context.Context, req conditions.Request) (conditions.Response, error) {
			calls++
			if calls == 1 {
				return conditions.Response{}, apperrors.Wrap(apperrors.CodeStorage, "failed to resolve location", errors.New("timeout"))
			}
			return conditions.Response{Location: conditions.Location{ID: 1}, Forecast: []conditions.ForecastEntry{}}, nil
		},
	}
	cfg := testConfig()
	cfg.HTTP.Retry = config.RetryConfig{Enabled: true, MaxAttempts: 2}
	server := NewRouter(cfg, NewHandler(svc, clockwork.NewFakeClockAt(testNow), newTestLogger()))

	recorder := performRequest(http.MethodPost, "/api/v1/conditions", `{"latitude":1,"longitude":2}`, server)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, 2, calls)
}

func TestRouter_RateLimitRetryAfterFollowsRefillRate(t *testing.T) {
	cfg := testConfig()
	cfg.HTTP.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 30, Burst: 1}
	clock := clockwork.NewFakeClockAt(testNow)
	server := NewRouter(cfg, NewHandler(&stubService{}, clock, newTestLogger()))

	require.Equal(t, http.StatusOK, performRequest(http.MethodPost, "/api/v1/score", `{"wind_speed":1}`, server).Code)

	recorder := performRequest(http.MethodPost, "/api/v1/score", `{"wind_speed":1}`, server)
	require.Equal(t, http.StatusTooManyRequests, recorder.Code)
	require.Equal(t, "2", recorder.Header().Get("Retry-After"))

	// Three quarters of a token have refilled, so one more second is enough.
	clock.Advance(1500 * time.Millisecond)
	recorder = performRequest(http.MethodPost, "/api/v1/score", `{"wind_speed":1}`, server)
	require.Equal(t, http.StatusTooManyRequests, recorder.Code)
	require.Equal(t, "1", recorder.Header().Get("Retry-After"))
}

func TestRouter_RetryGivesUpAfterMaxAttempts(t *testing.T) {
	var calls int
	svc := &stubService{
		conditionsFn: func(ctx context.Context, req conditions.Request) (conditions.Response, error) {
			calls++
			return conditions.Response{}, apperrors.Wrap(apperrors.CodeStorage, "failed to resolve location", errors.New("timeout"))
		},
	}
	cfg := testConfig()
	cfg.HTTP.Retry = config.RetryConfig{Enabled: true, MaxAttempts: 3, BaseBackoff: time.Millisecond}
	server := NewRouter(cfg, NewHandler(svc, clockwork.NewFakeClockAt(testNow), newTestLogger()))

	recorder := performRequest(http.MethodPost, "/api/v1/conditions", `{"latitude":1,"longitude":2}`, server)
	require.Equal(t, http.StatusInternalServerError, recorder.Code)
	require.Equal(t, "storage_error", decodeErrorBody(t, recorder.Body.Bytes())["error"]["code"])
	require.Equal(t, 3, calls)
}

func TestRouter_RetrySkipsScore(t *testing.T) {
	var calls int
	svc := &stubService{
		scoreFn: func(ctx context.Context, req conditions.ScoreRequest) (rowability.Result, error) {
			calls++
			return rowability.Result{}, apperrors.Wrap(apperrors.CodeStorage, "failed to store score", errors.New("timeout"))
		},
	}
	cfg := testConfig()
	cfg.HTTP.Retry = config.RetryConfig{Enabled: true, MaxAttempts: 3}
	server := NewRouter(cfg, NewHandler(svc, clockwork.NewFakeClockAt(testNow), newTestLogger()))

	recorder := performRequest(http.MethodPost, "/api/v1/score", `{"wind_speed":1}`, server)
	require.Equal(t, http.StatusInternalServerError, recorder.Code)
	require.Equal(t, 1, calls)
}

func TestRouter_RetrySkipsNonStorageFailures(t *testing.T) {
	var calls int
	svc := &stubService{
		conditionsFn: func(ctx context.Context, req conditions.Request) (conditions.Response, error) {
			calls++
			return conditions.Response{}, errors.New("nil map write")
		},
	}
	cfg := testConfig()
	cfg.HTTP.Retry = config.RetryConfig{Enabled: true, MaxAttempts: 3}
	server := NewRouter(cfg, NewHandler(svc, clockwork.NewFakeClockAt(testNow), newTestLogger()))

	recorder := performRequest(http.MethodPost, "/api/v1/conditions", `{"latitude":1,"longitude":2}`, server)
	require.Equal(t, http.StatusInternalServerError, recorder.Code)
	require.Equal(t, "conditions_failed", decodeErrorBody(t, recorder.Body.Bytes())["error"]["code"])
	require.Equal(t, 1, calls)
}

func TestRouter_RetryStopsWhenClientLeaves(t *testing.T) {
	var calls int
	svc := &stubService{
		conditionsFn: func(ctx context.Context, req conditions.Request) (conditions.Response, error) {
			calls++
			return conditions.Response{}, apperrors.Wrap(apperrors.CodeStorage, "failed to resolve location", errors.New("timeout"))
		},
	}
	cfg := testConfig()
	cfg.HTTP.Retry = config.RetryConfig{Enabled: true, MaxAttempts: 3, BaseBackoff: time.Hour}
	server := NewRouter(cfg, NewHandler(svc, clockwork.NewFakeClockAt(testNow), newTestLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/conditions", bytes.NewBufferString(`{"latitude":1,"longitude":2}`)).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		server.Handler.ServeHTTP(rec, req)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("replay kept waiting after the client left")
	}

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "storage_error", decodeErrorBody(t, rec.Body.Bytes())["error"]["code"])
	require.Equal(t, 1, calls)
}

func performRequest(method, path, body string, server *http.Server) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)
	return rec
}

func newRouterUnderTest(t *testing.T, svc conditions.Service) *http.Server {
	t.Helper()
	handler := NewHandler(svc, clockwork.NewFakeClockAt(testNow), newTestLogger())
	return NewRouter(testConfig(), handler)
}

func testConfig() *config.Config {
	return &config.Config{
		HTTP: config.HTTPConfig{
			Address:      ":0",
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		},
	}
}

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(io.Discard, nil)
	return slog.New(handler)
}

type stubService struct {
	conditionsFn func(ctx context.Context, req conditions.Request) (conditions.Response, error)
	scoreFn      func(ctx context.Context, req conditions.ScoreRequest) (rowability.Result, error)
	locationFn   func(ctx context.Context, id int64) (conditions.LocationDetail, error)
	readyFn      func(ctx context.Context) error
}

func (s *stubService) Conditions(ctx context.Context, req conditions.Request) (conditions.Response, error) {
	if s.conditionsFn != nil {
		return s.conditionsFn(ctx, req)
	}
	return conditions.Response{}, nil
}

func (s *stubService) Score(ctx context.Context, req conditions.ScoreRequest) (rowability.Result, error) {
	if s.scoreFn != nil {
		return s.scoreFn(ctx, req)
	}
	return rowability.Compute(req.Conditions()), nil
}

func (s *stubService) Location(ctx context.Context, id int64) (conditions.LocationDetail, error) {
	if s.locationFn != nil {
		return s.locationFn(ctx, id)
	}
	return conditions.LocationDetail{}, nil
}

func (s *stubService) Refresh(context.Context, conditions.Coordinates) error {
	return nil
}

func (s *stubService) Ready(ctx context.Context) error {
	if s.readyFn != nil {
		return s.readyFn(ctx)
	}
	return nil
}

func decodeErrorBody(t *testing.T, raw []byte) map[string]map[string]string {
	t.Helper()
	var body map[string]map[string]string
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}
