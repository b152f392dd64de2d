package openweather

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oaracle/oaracle/internal/domain/conditions"
	"github.com/oaracle/oaracle/internal/domain/rowability"
	"github.com/oaracle/oaracle/internal/infra/upstream"
	"github.com/oaracle/oaracle/pkg/metrics"
)

const currentBody = `{
  "dt": 1717423200,
  "main": {"temp": 18.4, "humidity": 72, "pressure": 1009},
  "wind": {"speed": 4.1, "deg": 230, "gust": 7.2},
  "visibility": 8000,
  "rain": {"1h": 0.6},
  "weather": [{"main": "Rain", "description": "light rain", "icon": "10d"}]
}`

const forecastBody = `{
  "list": [
    {"dt": 1717426800, "main": {"temp_min": 14.2, "temp_max": 17.9},
     "wind": {"speed": 5.5, "deg": 200}, "pop": 0.35,
     "weather": [{"description": "overcast clouds", "icon": "04d"}]},
    {"dt": 1717437600, "main": {"temp_min": 13.1, "temp_max": 15},
     "wind": {"speed": 6, "deg": 210, "gust": 9.5}, "pop": 0,
     "weather": []}
  ]
}`

func testClient(apiKey, baseURL string) *Client {
	return NewClient(apiKey, baseURL, upstream.Options{BaseBackoff: time.Millisecond},
		metrics.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCurrentMapsObservation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/weather", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "secret", q.Get("appid"))
		assert.Equal(t, "metric", q.Get("units"))
		assert.Equal(t, "51.5", q.Get("lat"))
		assert.Equal(t, "-0.12", q.Get("lon"))
		_, _ = w.Write([]byte(currentBody))
	}))
	defer srv.Close()

	reading, err := testClient("secret", srv.URL).Current(context.Background(), 51.5, -0.12)
	require.NoError(t, err)

	assert.Equal(t, time.Unix(1717423200, 0).UTC(), reading.Timestamp)
	assert.Equal(t, 18.4, reading.Temperature)
	assert.Equal(t, 4.1, reading.WindSpeed)
	require.NotNil(t, reading.WindGust)
	assert.Equal(t, 7.2, *reading.WindGust)
	assert.Equal(t, 230, reading.WindDirection)
	assert.Equal(t, 0.6, reading.Precipitation)
	assert.Equal(t, 72, reading.Humidity)
	assert.Equal(t, 1009.0, reading.Pressure)
	require.NotNil(t, reading.Visibility)
	assert.Equal(t, 8.0, *reading.Visibility)
	assert.Equal(t, "Light rain", reading.WeatherDescription)
	assert.Equal(t, "10d", reading.IconCode)
	assert.Equal(t, "openweathermap", reading.Source)
	assert.JSONEq(t, currentBody, string(reading.RawJSON))

	result := rowability.Compute(reading.Conditions())
	// wind 4.1 (-1), gust 7.2 > 6.15 (-1)
	assert.Equal(t, 8, result.Score)
}

func TestCurrentWithoutOptionalFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"dt": 1717423200, "main": {"temp": 9}, "wind": {"speed": 2}}`))
	}))
	defer srv.Close()

	reading, err := testClient("secret", srv.URL).Current(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Nil(t, reading.WindGust)
	assert.Nil(t, reading.Visibility)
	assert.Empty(t, reading.WeatherDescription)
}

func TestForecastMapsSlots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/forecast", r.URL.Path)
		assert.Equal(t, "16", r.URL.Query().Get("cnt"))
		_, _ = w.Write([]byte(forecastBody))
	}))
	defer srv.Close()

	entries, err := testClient("secret", srv.URL).Forecast(context.Background(), 1, 2, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	first := entries[0]
	assert.Equal(t, "2024-06-03", first.Date)
	assert.Equal(t, "15:00", first.Time)
	assert.Equal(t, 14.2, *first.TemperatureMin)
	assert.Equal(t, 17.9, *first.TemperatureMax)
	assert.Equal(t, 5.5, first.WindSpeed)
	assert.Nil(t, first.WindGust)
	assert.Equal(t, 35, first.PrecipitationProbability)
	assert.Equal(t, "Overcast clouds", first.WeatherDescription)

	second := entries[1]
	assert.Equal(t, "18:00", second.Time)
	assert.Equal(t, 9.5, *second.WindGust)
	assert.Equal(t, 0, second.PrecipitationProbability)
}

func TestForecastCapsSlotCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "40", r.URL.Query().Get("cnt"))
		_, _ = w.Write([]byte(`{"list": []}`))
	}))
	defer srv.Close()

	entries, err := testClient("secret", srv.URL).Forecast(context.Background(), 1, 2, 7)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMissingAPIKeyIsUnavailable(t *testing.T) {
	c := testClient("", "http://127.0.0.1:1")

	_, err := c.Current(context.Background(), 1, 2)
	require.ErrorIs(t, err, conditions.ErrSourceUnavailable)
	_, err = c.Forecast(context.Background(), 1, 2, 3)
	require.ErrorIs(t, err, conditions.ErrSourceUnavailable)
}
