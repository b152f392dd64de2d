package openweather

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/oaracle/oaracle/internal/domain/conditions"
	"github.com/oaracle/oaracle/internal/infra/upstream"
	"github.com/oaracle/oaracle/pkg/metrics"
)

const (
	defaultBaseURL = "https://api.openweathermap.org/data/2.5"
	source         = "openweathermap"
	slotsPerDay    = 8  // the forecast endpoint returns 3-hour slots
	maxSlots       = 40 // five days on the free tier
)

// Client implements conditions.WeatherSource against the OpenWeather 2.5 API.
type Client struct {
	apiKey   string
	baseURL  string
	upstream *upstream.Client
}

// NewClient builds a weather client. An empty apiKey makes every call return
// conditions.ErrSourceUnavailable.
func NewClient(apiKey, baseURL string, opts upstream.Options, m *metrics.Metrics, logger *slog.Logger) *Client {
	base := strings.TrimSpace(baseURL)
	if base == "" {
		base = defaultBaseURL
	}
	return &Client{
		apiKey:   strings.TrimSpace(apiKey),
		baseURL:  strings.TrimRight(base, "/"),
		upstream: upstream.NewClient("openweather", opts, m, logger),
	}
}

// Current fetches the latest observation.
func (c *Client) Current(ctx context.Context, lat, lon float64) (conditions.WeatherReading, error) {
	if c.apiKey == "" {
		return conditions.WeatherReading{}, conditions.ErrSourceUnavailable
	}
	body, err := c.upstream.Get(ctx, c.endpoint("weather", lat, lon, nil))
	if err != nil {
		return conditions.WeatherReading{}, err
	}

	var payload currentResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return conditions.WeatherReading{}, fmt.Errorf("decode openweather current: %w", err)
	}

	reading := conditions.WeatherReading{
		Timestamp:     time.Unix(payload.Dt, 0).UTC(),
		Temperature:   payload.Main.Temp,
		WindSpeed:     payload.Wind.Speed,
		WindGust:      payload.Wind.Gust,
		WindDirection: payload.Wind.Deg,
		Precipitation: payload.Rain.OneHour,
		Humidity:      payload.Main.Humidity,
		Pressure:      payload.Main.Pressure,
		Source:        source,
		RawJSON:       body,
	}
	if payload.Dt == 0 {
		reading.Timestamp = time.Time{}
	}
	if payload.Visibility != nil {
		km := *payload.Visibility / 1000
		reading.Visibility = &km
	}
	reading.WeatherDescription, reading.IconCode = describe(payload.Weather)
	return reading, nil
}

// Forecast fetches up to days of 3-hourly forecast slots.
func (c *Client) Forecast(ctx context.Context, lat, lon float64, days int) ([]conditions.ForecastEntry, error) {
	if c.apiKey == "" {
		return nil, conditions.ErrSourceUnavailable
	}
	cnt := days * slotsPerDay
	if cnt > maxSlots {
		cnt = maxSlots
	}
	if cnt <= 0 {
		cnt = slotsPerDay
	}
	body, err := c.upstream.Get(ctx, c.endpoint("forecast", lat, lon, url.Values{"cnt": {strconv.Itoa(cnt)}}))
	if err != nil {
		return nil, err
	}

	var payload forecastResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode openweather forecast: %w", err)
	}

	entries := make([]conditions.ForecastEntry, 0, len(payload.List))
	for _, item := range payload.List {
		ts := time.Unix(item.Dt, 0).UTC()
		tMin, tMax := item.Main.TempMin, item.Main.TempMax
		entry := conditions.ForecastEntry{
			Date:                     ts.Format("2006-01-02"),
			Time:                     ts.Format("15:04"),
			TemperatureMin:           &tMin,
			TemperatureMax:           &tMax,
			WindSpeed:                item.Wind.Speed,
			WindGust:                 item.Wind.Gust,
			WindDirection:            item.Wind.Deg,
			PrecipitationProbability: int(item.Pop*100 + 0.5),
		}
		entry.WeatherDescription, entry.IconCode = describe(item.Weather)
		entries = append(entries, entry)
	}
	return entries, nil
}

func (c *Client) endpoint(path string, lat, lon float64, extra url.Values) string {
	params := url.Values{
		"lat":   {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lon":   {strconv.FormatFloat(lon, 'f', -1, 64)},
		"appid": {c.apiKey},
		"units": {"metric"},
	}
	for k, v := range extra {
		params[k] = v
	}
	return c.baseURL + "/" + path + "?" + params.Encode()
}

func describe(items []weatherItem) (string, string) {
	if len(items) == 0 {
		return "", ""
	}
	desc := items[0].Description
	if r, size := utf8.DecodeRuneInString(desc); size > 0 {
		desc = string(unicode.ToUpper(r)) + desc[size:]
	}
	return desc, items[0].Icon
}

type weatherItem struct {
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type wind struct {
	Speed float64  `json:"speed"`
	Deg   int      `json:"deg"`
	Gust  *float64 `json:"gust"`
}

type currentResponse struct {
	Dt   int64 `json:"dt"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
		Pressure float64 `json:"pressure"`
	} `json:"main"`
	Wind       wind     `json:"wind"`
	Visibility *float64 `json:"visibility"` // metres
	Rain       struct {
		OneHour float64 `json:"1h"`
	} `json:"rain"`
	Weather []weatherItem `json:"weather"`
}

type forecastResponse struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			TempMin float64 `json:"temp_min"`
			TempMax float64 `json:"temp_max"`
		} `json:"main"`
		Wind    wind          `json:"wind"`
		Pop     float64       `json:"pop"`
		Weather []weatherItem `json:"weather"`
	} `json:"list"`
}

var _ conditions.WeatherSource = (*Client)(nil)
