package main

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/valkey-io/valkey-go"

	"github.com/oaracle/oaracle/internal/domain/conditions"
	"github.com/oaracle/oaracle/internal/infra/archive"
	"github.com/oaracle/oaracle/internal/infra/conditionsrepo"
	"github.com/oaracle/oaracle/internal/infra/config"
	"github.com/oaracle/oaracle/internal/infra/events"
	"github.com/oaracle/oaracle/internal/infra/geocode/nominatim"
	"github.com/oaracle/oaracle/internal/infra/scorequeue"
	"github.com/oaracle/oaracle/internal/infra/upstream"
	"github.com/oaracle/oaracle/internal/infra/weather/openweather"
	"github.com/oaracle/oaracle/internal/scheduler"
	"github.com/oaracle/oaracle/pkg/metrics"
)

const memoryArchiveLimit = 512

func provideClock() clockwork.Clock {
	return clockwork.NewRealClock()
}

func provideConditionsConfig(cfg *config.Config) conditions.Config {
	return cfg.DomainConfig()
}

func provideRepository(cfg *config.Config, logger *slog.Logger) conditions.Repository {
	fallback := conditionsrepo.NewMemoryRepository()
	dsn := strings.TrimSpace(cfg.Postgres.DSN)
	if dsn == "" {
		logger.Info("postgres dsn not set, using memory repository")
		return fallback
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("invalid postgres dsn, using memory repository", "error", err)
		return fallback
	}
	if cfg.Postgres.MaxConns > 0 {
		poolConfig.MaxConns = cfg.Postgres.MaxConns
	}
	if cfg.Postgres.MinConns > 0 {
		poolConfig.MinConns = cfg.Postgres.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("failed to initialize postgres pool, using memory repository", "error", err)
		return fallback
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres ping failed, using memory repository", "error", err)
		pool.Close()
		return fallback
	}
	logger.Info("postgres repository enabled")
	return conditionsrepo.NewPostgresRepository(pool)
}

func provideScoreQueue(cfg *config.Config, logger *slog.Logger) scorequeue.HandlerQueue {
	if cfg.Queue.Valkey.Enabled {
		opt, err := buildValkeyOptions(cfg.Queue.Valkey.Addr)
		if err != nil {
			logger.Error("invalid valkey configuration, falling back to immediate queue", "error", err)
			return scorequeue.NewImmediateQueue(logger)
		}
		client, err := valkey.NewClient(opt)
		if err != nil {
			logger.Error("failed to create valkey client, falling back to immediate queue", "error", err)
			return scorequeue.NewImmediateQueue(logger)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
			logger.Error("valkey ping failed, falling back to immediate queue", "error", err)
			client.Close()
		} else {
			logger.Info("valkey score queue enabled", "addr", cfg.Queue.Valkey.Addr, "key", cfg.Queue.Key)
			return scorequeue.NewValkeyQueue(client, cfg.Queue.Key, logger)
		}
	}
	return scorequeue.NewImmediateQueue(logger)
}

func buildValkeyOptions(addr string) (valkey.ClientOption, error) {
	if strings.Contains(addr, "://") {
		return valkey.ParseURL(addr)
	}
	return valkey.ClientOption{InitAddress: []string{addr}}, nil
}

func provideScoreQueueBinding(queue scorequeue.HandlerQueue) conditions.ScoreQueue {
	return queue
}

func provideArchive(cfg *config.Config, logger *slog.Logger) conditions.Archive {
	if !cfg.Archive.Enabled {
		return archive.Discard{}
	}
	s3, err := archive.NewS3Archive(cfg.Archive.Endpoint, cfg.Archive.AccessKey, cfg.Archive.SecretKey, cfg.Archive.Bucket, cfg.Archive.Region, logger)
	if err != nil {
		logger.Error("failed to initialize object storage, archiving in memory", "error", err)
		return archive.NewMemoryArchive(memoryArchiveLimit)
	}
	logger.Info("raw payload archive enabled", "bucket", cfg.Archive.Bucket)
	return s3
}

func providePublisher(cfg *config.Config, clock clockwork.Clock, logger *slog.Logger) conditions.ScorePublisher {
	if !cfg.Events.Enabled || len(cfg.Events.Brokers) == 0 {
		return events.Discard{}
	}
	logger.Info("kafka score events enabled", "brokers", cfg.Events.Brokers, "topic", cfg.Events.Topic)
	return events.NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.Topic, cfg.Events.WriteTimeout, clock, logger)
}

func provideGeocoder(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) conditions.Geocoder {
	if !cfg.Geocoding.Enabled {
		return nil
	}
	opts := upstream.Options{
		Timeout:     cfg.Geocoding.Timeout,
		MaxFailures: cfg.Geocoding.Breaker.MaxFailures,
		OpenTimeout: cfg.Geocoding.Breaker.OpenTimeout,
	}
	return nominatim.NewClient(cfg.Geocoding.BaseURL, cfg.Geocoding.UserAgent, opts, m, logger)
}

func provideWeatherSource(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) conditions.WeatherSource {
	opts := upstream.Options{
		Timeout:     cfg.Weather.Timeout,
		MaxRetries:  cfg.Weather.MaxRetries,
		BaseBackoff: cfg.Weather.BaseBackoff,
		MaxFailures: cfg.Weather.Breaker.MaxFailures,
		OpenTimeout: cfg.Weather.Breaker.OpenTimeout,
		Header:      http.Header{"Accept": {"application/json"}},
	}
	if cfg.Weather.APIKey == "" {
		logger.Warn("weather api key not set, serving fallback readings")
	}
	return openweather.NewClient(cfg.Weather.APIKey, cfg.Weather.BaseURL, opts, m, logger)
}

func provideScheduler(cfg *config.Config, svc conditions.Service, m *metrics.Metrics, logger *slog.Logger) *scheduler.Scheduler {
	return scheduler.New(svc, cfg.Scheduler.Locations, cfg.Scheduler.Interval, cfg.Scheduler.Timeout, m, logger)
}
