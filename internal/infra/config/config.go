package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/oaracle/oaracle/internal/domain/conditions"
)

const defaultPath = "configs/config.yaml"

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Conditions ConditionsConfig `yaml:"conditions"`
	Geocoding  GeocodingConfig  `yaml:"geocoding"`
	Weather    WeatherConfig    `yaml:"weather"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Queue      QueueConfig      `yaml:"queue"`
	Archive    ArchiveConfig    `yaml:"archive"`
	Events     EventsConfig     `yaml:"events"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`

	// Path is the file the configuration was read from, empty when none was found.
	Path string `yaml:"-"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address        string          `yaml:"address"`
	ReadTimeout    time.Duration   `yaml:"readTimeout"`
	WriteTimeout   time.Duration   `yaml:"writeTimeout"`
	AllowedOrigins []string        `yaml:"allowedOrigins"`
	RateLimit      RateLimitConfig `yaml:"rateLimit"`
	Retry          RetryConfig     `yaml:"retry"`
}

// RateLimitConfig drives the request limiting middleware.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
	Burst             int  `yaml:"burst"`
}

// RetryConfig configures best-effort retries for idempotent requests.
type RetryConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxAttempts int           `yaml:"maxAttempts"`
	BaseBackoff time.Duration `yaml:"baseBackoff"`
	Exclude     []string      `yaml:"exclude"`
}

// ConditionsConfig tunes the conditions service.
type ConditionsConfig struct {
	DefaultDaysAhead int  `yaml:"defaultDaysAhead"`
	MaxDaysAhead     int  `yaml:"maxDaysAhead"`
	ArchiveRaw       bool `yaml:"archiveRaw"`
}

// GeocodingConfig points at a Nominatim compatible reverse geocoder.
type GeocodingConfig struct {
	Enabled   bool          `yaml:"enabled"`
	BaseURL   string        `yaml:"baseUrl"`
	UserAgent string        `yaml:"userAgent"`
	Timeout   time.Duration `yaml:"timeout"`
	Breaker   BreakerConfig `yaml:"breaker"`
}

// WeatherConfig contains OpenWeather settings.
type WeatherConfig struct {
	APIKey      string        `yaml:"apiKey"`
	BaseURL     string        `yaml:"baseUrl"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"maxRetries"`
	BaseBackoff time.Duration `yaml:"baseBackoff"`
	Breaker     BreakerConfig `yaml:"breaker"`
}

// BreakerConfig tunes an upstream circuit breaker.
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"maxFailures"`
	OpenTimeout time.Duration `yaml:"openTimeout"`
}

// PostgresConfig contains DSN and pooling settings.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
	MinConns int32  `yaml:"minConns"`
}

// QueueConfig selects the score persistence queue.
type QueueConfig struct {
	Valkey ValkeyConfig `yaml:"valkey"`
	Key    string       `yaml:"key"`
}

// ValkeyConfig contains connection information for the queue backend.
type ValkeyConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// ArchiveConfig describes the S3 compatible bucket for raw upstream payloads.
type ArchiveConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
}

// EventsConfig configures score event publishing.
type EventsConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
}

// SchedulerConfig controls periodic refreshes of tracked locations.
type SchedulerConfig struct {
	Enabled   bool                     `yaml:"enabled"`
	Interval  time.Duration            `yaml:"interval"`
	Timeout   time.Duration            `yaml:"timeout"`
	Locations []conditions.Coordinates `yaml:"locations"`
}

// Load reads .env, the YAML file and environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("config: .env not loaded", "error", err)
	}

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		if _, err := os.Stat(defaultPath); err == nil {
			path = defaultPath
		}
	}
	return LoadFile(path)
}

// LoadFile builds the configuration from path (skipped when empty) and the environment.
func LoadFile(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
		cfg.Path = path
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("HTTP_ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = splitList(v)
	}
	envBool("HTTP_RATE_LIMIT_ENABLED", &cfg.HTTP.RateLimit.Enabled)
	envInt("HTTP_RATE_LIMIT_RPM", &cfg.HTTP.RateLimit.RequestsPerMinute)
	envInt("HTTP_RATE_LIMIT_BURST", &cfg.HTTP.RateLimit.Burst)
	envBool("HTTP_RETRY_ENABLED", &cfg.HTTP.Retry.Enabled)
	envInt("HTTP_RETRY_MAX_ATTEMPTS", &cfg.HTTP.Retry.MaxAttempts)
	envDuration("HTTP_RETRY_BASE_BACKOFF", &cfg.HTTP.Retry.BaseBackoff)

	envInt("CONDITIONS_DEFAULT_DAYS_AHEAD", &cfg.Conditions.DefaultDaysAhead)
	envBool("CONDITIONS_ARCHIVE_RAW", &cfg.Conditions.ArchiveRaw)

	envBool("GEOCODING_ENABLED", &cfg.Geocoding.Enabled)
	if v := os.Getenv("GEOCODING_BASE_URL"); v != "" {
		cfg.Geocoding.BaseURL = v
	}
	if v := os.Getenv("GEOCODING_USER_AGENT"); v != "" {
		cfg.Geocoding.UserAgent = v
	}

	if v := os.Getenv("OPENWEATHER_API_KEY"); v != "" {
		cfg.Weather.APIKey = v
	}
	if v := os.Getenv("WEATHER_BASE_URL"); v != "" {
		cfg.Weather.BaseURL = v
	}
	envDuration("WEATHER_TIMEOUT", &cfg.Weather.Timeout)
	envInt("WEATHER_MAX_RETRIES", &cfg.Weather.MaxRetries)

	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("POSTGRES_MAX_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.MaxConns = int32(parsed)
		}
	}
	if v := os.Getenv("POSTGRES_MIN_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.MinConns = int32(parsed)
		}
	}

	envBool("QUEUE_VALKEY_ENABLED", &cfg.Queue.Valkey.Enabled)
	if v := os.Getenv("QUEUE_VALKEY_ADDR"); v != "" {
		cfg.Queue.Valkey.Addr = v
	}
	if v := os.Getenv("QUEUE_KEY"); v != "" {
		cfg.Queue.Key = v
	}

	envBool("ARCHIVE_ENABLED", &cfg.Archive.Enabled)
	if v := os.Getenv("ARCHIVE_ENDPOINT"); v != "" {
		cfg.Archive.Endpoint = v
	}
	if v := os.Getenv("ARCHIVE_REGION"); v != "" {
		cfg.Archive.Region = v
	}
	if v := os.Getenv("ARCHIVE_BUCKET"); v != "" {
		cfg.Archive.Bucket = v
	}
	if v := os.Getenv("ARCHIVE_ACCESS_KEY"); v != "" {
		cfg.Archive.AccessKey = v
	}
	if v := os.Getenv("ARCHIVE_SECRET_KEY"); v != "" {
		cfg.Archive.SecretKey = v
	}

	envBool("EVENTS_ENABLED", &cfg.Events.Enabled)
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Events.Brokers = splitList(v)
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		cfg.Events.Topic = v
	}

	envBool("SCHEDULER_ENABLED", &cfg.Scheduler.Enabled)
	envDuration("SCHEDULER_INTERVAL", &cfg.Scheduler.Interval)
	if v := os.Getenv("SCHEDULER_LOCATIONS"); v != "" {
		if locs, err := ParseLocations(v); err == nil {
			cfg.Scheduler.Locations = locs
		} else {
			slog.Warn("config: ignoring SCHEDULER_LOCATIONS", "error", err)
		}
	}
}

// ParseLocations reads "lat,lon;lat,lon" pairs.
func ParseLocations(raw string) ([]conditions.Coordinates, error) {
	var out []conditions.Coordinates
	for _, pair := range strings.Split(raw, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.Split(pair, ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("location %q must be lat,lon", pair)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("location %q: latitude: %w", pair, err)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("location %q: longitude: %w", pair, err)
		}
		out = append(out, conditions.Coordinates{Latitude: lat, Longitude: lon})
	}
	return out, nil
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "1" || strings.EqualFold(v, "true")
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			*dst = parsed
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 60,
				Burst:             20,
			},
			Retry: RetryConfig{
				Enabled:     true,
				MaxAttempts: 3,
				BaseBackoff: 150 * time.Millisecond,
			},
		},
		Conditions: ConditionsConfig{
			DefaultDaysAhead: 7,
			MaxDaysAhead:     7,
		},
		Geocoding: GeocodingConfig{
			Enabled:   true,
			BaseURL:   "https://nominatim.openstreetmap.org",
			UserAgent: "Oaracle/1.0",
			Timeout:   5 * time.Second,
			Breaker:   BreakerConfig{MaxFailures: 5, OpenTimeout: 30 * time.Second},
		},
		Weather: WeatherConfig{
			BaseURL:     "https://api.openweathermap.org/data/2.5",
			Timeout:     5 * time.Second,
			MaxRetries:  2,
			BaseBackoff: 200 * time.Millisecond,
			Breaker:     BreakerConfig{MaxFailures: 5, OpenTimeout: 30 * time.Second},
		},
		Postgres: PostgresConfig{
			MaxConns: 4,
		},
		Queue: QueueConfig{
			Key: "oaracle:scores",
		},
		Archive: ArchiveConfig{
			Region: "auto",
		},
		Events: EventsConfig{
			Topic:        "oaracle.rowability-scores",
			WriteTimeout: 10 * time.Second,
		},
		Scheduler: SchedulerConfig{
			Interval: 30 * time.Minute,
			Timeout:  30 * time.Second,
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if c.HTTP.RateLimit.Enabled {
		if c.HTTP.RateLimit.RequestsPerMinute <= 0 {
			return errors.New("http.rateLimit.requestsPerMinute must be positive")
		}
		if c.HTTP.RateLimit.Burst <= 0 {
			return errors.New("http.rateLimit.burst must be positive")
		}
	}
	if c.HTTP.Retry.Enabled {
		if c.HTTP.Retry.MaxAttempts <= 0 {
			return errors.New("http.retry.maxAttempts must be positive")
		}
		if c.HTTP.Retry.BaseBackoff <= 0 {
			return errors.New("http.retry.baseBackoff must be positive")
		}
	}
	if c.Conditions.MaxDaysAhead < 1 || c.Conditions.MaxDaysAhead > 7 {
		return errors.New("conditions.maxDaysAhead must be between 1 and 7")
	}
	if c.Conditions.DefaultDaysAhead < 1 || c.Conditions.DefaultDaysAhead > c.Conditions.MaxDaysAhead {
		return errors.New("conditions.defaultDaysAhead must be between 1 and conditions.maxDaysAhead")
	}
	if c.Geocoding.Enabled && strings.TrimSpace(c.Geocoding.BaseURL) == "" {
		return errors.New("geocoding.baseUrl cannot be empty when geocoding is enabled")
	}
	if strings.TrimSpace(c.Weather.BaseURL) == "" {
		return errors.New("weather.baseUrl cannot be empty")
	}
	if c.Weather.MaxRetries < 0 {
		return errors.New("weather.maxRetries cannot be negative")
	}
	if c.Queue.Valkey.Enabled && strings.TrimSpace(c.Queue.Valkey.Addr) == "" {
		return errors.New("queue.valkey.addr cannot be empty when the valkey queue is enabled")
	}
	if c.Archive.Enabled && (c.Archive.Endpoint == "" || c.Archive.Bucket == "") {
		return errors.New("archive.endpoint and archive.bucket are required when the archive is enabled")
	}
	if c.Events.Enabled {
		if len(c.Events.Brokers) == 0 {
			return errors.New("events.brokers cannot be empty when events are enabled")
		}
		if strings.TrimSpace(c.Events.Topic) == "" {
			return errors.New("events.topic cannot be empty when events are enabled")
		}
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval < time.Minute {
		return errors.New("scheduler.interval must be at least 1m")
	}
	for i, loc := range c.Scheduler.Locations {
		if loc.Latitude < -90 || loc.Latitude > 90 || loc.Longitude < -180 || loc.Longitude > 180 {
			return fmt.Errorf("scheduler.locations[%d] is out of range", i)
		}
	}
	return nil
}

// DomainConfig returns the conditions service settings.
func (c *Config) DomainConfig() conditions.Config {
	return conditions.Config{
		DefaultDaysAhead: c.Conditions.DefaultDaysAhead,
		MaxDaysAhead:     c.Conditions.MaxDaysAhead,
		ArchiveRaw:       c.Conditions.ArchiveRaw && c.Archive.Enabled,
	}
}
