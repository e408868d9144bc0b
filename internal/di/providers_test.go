package di

import (
	"testing"

	internalrepo "FinChart/internal/repository"
	"FinChart/pkg/cache"
	"FinChart/pkg/config"
	applogger "FinChart/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Log.Level = "error"
	return cfg
}

func TestInitializeAppWithDefaults(t *testing.T) {
	app, err := InitializeApp(testConfig(t))
	require.NoError(t, err)
	assert.NotNil(t, app)
}

func TestProvideCacheService(t *testing.T) {
	cfg := testConfig(t)

	rc, err := ProvideRedisCache(cfg)
	require.NoError(t, err)
	assert.Nil(t, rc)

	svc := ProvideCacheService(cfg, rc)
	assert.IsType(t, &cache.MemoryCache{}, svc)
	assert.NotNil(t, ProvideImageCache(cfg, svc, applogger.Nop()))

	cfg.Cache.Backend = "none"
	svc = ProvideCacheService(cfg, nil)
	assert.Nil(t, svc)
	assert.Nil(t, ProvideImageCache(cfg, svc, applogger.Nop()))
}

func TestProvideSourcesFollowConfig(t *testing.T) {
	cfg := testConfig(t)
	market := ProvideMarketClient(cfg, applogger.Nop())

	assert.Same(t, market, ProvideCandleSource(cfg, nil, market, applogger.Nop()))
	assert.Same(t, market, ProvideAnalysisSource(cfg, market))

	cfg.Source.Analysis = "none"
	assert.Nil(t, ProvideAnalysisSource(cfg, market))
}

func TestProvideKafkaDisabled(t *testing.T) {
	cfg := testConfig(t)
	reg := ProvideRegistry()

	producer, err := ProvideKafkaProducer(cfg, applogger.Nop(), reg)
	require.NoError(t, err)
	assert.Nil(t, producer)
	assert.IsType(t, internalrepo.NopEventPublisher{}, ProvideEventPublisher(cfg, producer))

	consumer, err := ProvideKafkaConsumer(cfg, nil, ProvideMetrics(reg), applogger.Nop(), reg)
	require.NoError(t, err)
	assert.Nil(t, consumer)
}

func TestProvideRenderOptionsAndPairs(t *testing.T) {
	cfg := testConfig(t)
	cfg.Chart.Theme.Background = "#000000"

	assert.Len(t, ProvideRenderOptions(cfg), 3)

	pairs := ProvidePairs(cfg)
	require.Len(t, pairs, len(config.DefaultPairs()))
	assert.Equal(t, "EURUSD", pairs[0].Code)
	assert.Equal(t, "EURUSD=X", pairs[0].Symbol)
}

func TestWarmupOffWithoutRedis(t *testing.T) {
	cfg := testConfig(t)
	cfg.Warmup.Enabled = true

	q := ProvideWarmupQueue(cfg, nil, nil, applogger.Nop())
	assert.Nil(t, q)
	assert.Nil(t, ProvidePrerenderer(cfg, q, nil))
}

func TestProvideRateLimiter(t *testing.T) {
	cfg := testConfig(t)
	assert.NotNil(t, ProvideRateLimiter(cfg))

	cfg.RateLimit.Enabled = false
	assert.Nil(t, ProvideRateLimiter(cfg))
}
