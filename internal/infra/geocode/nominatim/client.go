package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/oaracle/oaracle/internal/domain/conditions"
	"github.com/oaracle/oaracle/internal/infra/upstream"
	"github.com/oaracle/oaracle/pkg/metrics"
)

const defaultBaseURL = "https://nominatim.openstreetmap.org"

// Client implements conditions.Geocoder using the Nominatim reverse API.
type Client struct {
	baseURL  string
	upstream *upstream.Client
}

// NewClient builds a reverse geocoding client.
func NewClient(baseURL, userAgent string, opts upstream.Options, m *metrics.Metrics, logger *slog.Logger) *Client {
	base := strings.TrimSpace(baseURL)
	if base == "" {
		base = defaultBaseURL
	}
	if opts.Header == nil {
		opts.Header = http.Header{}
	}
	if userAgent != "" {
		opts.Header.Set("User-Agent", userAgent)
	}
	opts.Header.Set("Accept", "application/json")
	return &Client{
		baseURL:  strings.TrimRight(base, "/"),
		upstream: upstream.NewClient("nominatim", opts, m, logger),
	}
}

// ReverseGeocode resolves the nearest waterway and town for a coordinate pair.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (conditions.Place, error) {
	params := url.Values{
		"format":         {"json"},
		"lat":            {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lon":            {strconv.FormatFloat(lon, 'f', -1, 64)},
		"zoom":           {"10"},
		"addressdetails": {"1"},
	}
	body, err := c.upstream.Get(ctx, c.baseURL+"/reverse?"+params.Encode())
	if err != nil {
		return conditions.Place{}, err
	}

	var payload response
	if err := json.Unmarshal(body, &payload); err != nil {
		return conditions.Place{}, fmt.Errorf("decode nominatim response: %w", err)
	}
	return conditions.Place{
		Waterway: firstNonEmpty(payload.Address.Waterway, payload.Address.River, payload.Address.Lake),
		Town:     firstNonEmpty(payload.Address.City, payload.Address.Town, payload.Address.Village),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

type response struct {
	DisplayName string  `json:"display_name"`
	Address     address `json:"address"`
}

type address struct {
	Waterway string `json:"waterway"`
	River    string `json:"river"`
	Lake     string `json:"lake"`
	City     string `json:"city"`
	Town     string `json:"town"`
	Village  string `json:"village"`
}

var _ conditions.Geocoder = (*Client)(nil)
