//go:build wireinject
// +build wireinject

package di

import (
	"FinChart/pkg/config"
	"FinChart/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideRegistry,
		ProvideMetrics,
		ProvideEndpointMetrics,

		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideClickHouseClient,
		ProvideMarketClient,
		ProvideRedisCache,
		ProvideCacheService,

		// Repositories
		ProvideCandleSource,
		ProvideAnalysisSource,
		ProvideImageCache,
		ProvideEventPublisher,

		// Use cases
		ProvidePairs,
		ProvideRenderOptions,
		ProvideChartUseCase,

		// Realtime
		ProvideWarmupQueue,
		ProvidePrerenderer,
		ProvideStreamHub,
		ProvideRefreshPipeline,
		ProvideKafkaCandlesHandler,
		ProvideKafkaConsumer,

		// HTTP
		ProvideRateLimiter,
		ProvideChartHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
