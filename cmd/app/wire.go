//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/oaracle/oaracle/internal/bootstrap"
	"github.com/oaracle/oaracle/internal/domain/conditions"
	"github.com/oaracle/oaracle/internal/infra/config"
	httpiface "github.com/oaracle/oaracle/internal/interface/http"
	"github.com/oaracle/oaracle/pkg/logger"
	"github.com/oaracle/oaracle/pkg/metrics"
)

func initializeApp() (*bootstrap.App, error) {
	wire.Build(
		config.Load,
		logger.New,
		metrics.NewMetrics,
		provideClock,
		provideConditionsConfig,
		provideRepository,
		provideScoreQueue,
		provideScoreQueueBinding,
		provideArchive,
		providePublisher,
		provideGeocoder,
		provideWeatherSource,
		conditions.NewService,
		conditions.NewRecorder,
		provideScheduler,
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil
}
