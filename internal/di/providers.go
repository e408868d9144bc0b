package di

import (
	"context"
	"fmt"
	"time"

	"FinChart/internal/chart"
	"FinChart/internal/domain/models"
	"FinChart/internal/domain/repository"
	"FinChart/internal/handler/api"
	"FinChart/internal/handler/stream"
	mid "FinChart/internal/middleware"
	internalrepo "FinChart/internal/repository"
	svcmetrics "FinChart/internal/service/metrics"
	"FinChart/internal/service/ratelimit"
	"FinChart/internal/usecase"
	"FinChart/pkg/cache"
	pkgch "FinChart/pkg/clickhouse"
	"FinChart/pkg/config"
	xhttp "FinChart/pkg/http"
	pkgkafka "FinChart/pkg/kafka"
	applogger "FinChart/pkg/logger"
	"FinChart/pkg/metrics"
	"FinChart/pkg/queue"
	"FinChart/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/segmentio/kafka-go"
)

// ProvideLogger builds the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: cfg.Log.TimeFormat,
	})
}

// ProvideRegistry creates the registry every collector of the process registers on.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) repository.Metrics {
	return metrics.New(reg)
}

func ProvideEndpointMetrics(reg *prometheus.Registry) *svcmetrics.Endpoint {
	return svcmetrics.NewEndpoint(reg)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is off.
// When log collection is on the logger starts shipping aggregated errors through it.
func ProvideKafkaProducer(cfg *config.Config, l *applogger.Logger, reg *prometheus.Registry) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}

	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatch(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithProducerLogger(l),
		pkgkafka.WithProducerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	if cfg.Log.Collect.Enabled {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Log.Collect.Interval,
			CountThreshold: cfg.Log.Collect.CountThreshold,
			Topic:          cfg.Kafka.Topics.Logs,
			Publisher:      producer,
			IncludeWarn:    cfg.Log.Collect.IncludeWarn,
		})
	}
	return producer, nil
}

// ProvideEventPublisher publishes chart.rendered events, or drops them when Kafka is off.
func ProvideEventPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.EventPublisher {
	if producer == nil {
		return internalrepo.NopEventPublisher{}
	}
	return internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.Topics.ChartRendered)
}

// ProvideClickHouseClient connects to ClickHouse when it is the candle
// source and creates the candle tables. It returns nil otherwise.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, error) {
	if cfg.Source.Candles != "clickhouse" {
		return nil, nil
	}

	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	if cfg.ClickHouse.InitSchema {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		store := internalrepo.NewCHCandleStore(client, cfg.ClickHouse.Database, l)
		if err := client.InitSchema(ctx, store.Schema()); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("clickhouse schema: %w", err)
		}
	}
	return client, nil
}

// ProvideMarketClient creates the market data service client used for
// candles (source.candles=http) and analysis.
func ProvideMarketClient(cfg *config.Config, l *applogger.Logger) *internalrepo.HTTPMarketClient {
	return internalrepo.NewHTTPMarketClient(
		cfg.Source.BaseURL,
		xhttp.NewClient(
			xhttp.WithTimeout(cfg.Source.Timeout),
			xhttp.WithUserAgent("finchart/"+cfg.Environment),
		),
		l,
		internalrepo.WithRetries(cfg.Source.Retries, 200*time.Millisecond),
	)
}

func ProvideCandleSource(cfg *config.Config, ch *pkgch.Client, market *internalrepo.HTTPMarketClient, l *applogger.Logger) repository.CandleSource {
	if cfg.Source.Candles == "clickhouse" && ch != nil {
		return internalrepo.NewCHCandleStore(ch, cfg.ClickHouse.Database, l)
	}
	return market
}

// ProvideAnalysisSource returns nil when overlays are disabled.
func ProvideAnalysisSource(cfg *config.Config, market *internalrepo.HTTPMarketClient) repository.AnalysisSource {
	if cfg.Source.Analysis == "none" {
		return nil
	}
	return market
}

// ProvideRedisCache connects to Redis when the cache backend needs it, or returns nil.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.UsesRedis() {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Cache.Redis.Host, cfg.Cache.Redis.Port),
		cache.WithRedisAuth(cfg.Cache.Redis.Password, cfg.Cache.Redis.DB),
		cache.WithRedisPool(cfg.Cache.Redis.PoolSize, 2, 30*time.Second),
		cache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideCacheService creates the cache backend, or nil for backend "none".
func ProvideCacheService(cfg *config.Config, rc *cache.RedisCache) cache.Service {
	switch cfg.Cache.Backend {
	case "none":
		return nil
	case "redis":
		return rc
	case "layered":
		return cache.NewLayeredCache(rc,
			cache.WithLayeredMemorySize(cfg.Cache.MemoryMaxSize),
			cache.WithLayeredMemoryTTL(cfg.Cache.TTL/2),
		)
	default:
		return cache.NewMemoryCache(
			cache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize),
			cache.WithMemoryCleanup(cfg.Cache.TTL),
		)
	}
}

// ProvideImageCache returns nil when caching is disabled.
func ProvideImageCache(cfg *config.Config, svc cache.Service, l *applogger.Logger) repository.ImageCache {
	if svc == nil {
		return nil
	}
	return internalrepo.NewImageCache(svc, cfg.Cache.TTL, cfg.Cache.LockTTL, l)
}

// ProvidePairs converts the configured catalogue.
func ProvidePairs(cfg *config.Config) []models.Pair {
	pairs := make([]models.Pair, 0, len(cfg.Pairs))
	for _, p := range cfg.Pairs {
		pairs = append(pairs, models.Pair{Code: p.Code, Symbol: p.Symbol, Name: p.Name, Pip: p.Pip})
	}
	return pairs
}

// ProvideRenderOptions maps the chart section to renderer options.
func ProvideRenderOptions(cfg *config.Config) []chart.Option {
	t := cfg.Chart.Theme
	theme := chart.ThemeOverrides{
		Background:        t.Background,
		Grid:              t.Grid,
		Support:           t.Support,
		Resistance:        t.Resistance,
		GapBullish:        t.GapBullish,
		GapBearish:        t.GapBearish,
		OrderBlockBullish: t.OrderBlockBullish,
		OrderBlockBearish: t.OrderBlockBearish,
		CandleBullish:     t.CandleBullish,
		CandleBearish:     t.CandleBearish,
		Marker:            t.Marker,
	}.Apply(chart.DefaultTheme())

	return []chart.Option{
		chart.WithPadding(cfg.Chart.Padding),
		chart.WithTheme(theme),
		chart.WithMinRange(cfg.Chart.MinRangeFraction, cfg.Chart.MinRangeAbs),
	}
}

func ProvideChartUseCase(
	cfg *config.Config,
	candles repository.CandleSource,
	analysis repository.AnalysisSource,
	images repository.ImageCache,
	events repository.EventPublisher,
	pairs []models.Pair,
	renderOpts []chart.Option,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.ChartUseCase {
	opts := []usecase.ChartOption{
		usecase.WithEventPublisher(events),
		usecase.WithRenderOptions(renderOpts...),
		usecase.WithLimits(cfg.Chart.DefaultLimit, cfg.Chart.MaxLimit),
		usecase.WithDefaultTimeframe(cfg.Chart.DefaultTimeframe),
	}
	if analysis != nil {
		opts = append(opts, usecase.WithAnalysisSource(analysis))
	}
	if images != nil {
		opts = append(opts, usecase.WithImageCache(images))
	}
	return usecase.NewChartUseCase(candles, pairs, m, l, opts...)
}

// ProvideWarmupQueue creates the prerender queue and registers its job, or
// returns nil when warmup is off.
func ProvideWarmupQueue(cfg *config.Config, rc *cache.RedisCache, uc *usecase.ChartUseCase, l *applogger.Logger) *queue.RedisQueue {
	if !cfg.Warmup.Enabled || rc == nil {
		return nil
	}
	q := queue.NewRedisQueue(l, rc.Client(), queue.Config{
		Workers:    cfg.Warmup.Workers,
		RetryLimit: cfg.Warmup.RetryLimit,
		RetryDelay: cfg.Warmup.RetryDelay,
		KeyPrefix:  cfg.Cache.Redis.Prefix + ":prerender",
	})
	q.RegisterJob(usecase.NewPrerenderJob(uc, l))
	return q
}

func ProvidePrerenderer(cfg *config.Config, q *queue.RedisQueue, m repository.Metrics) *usecase.Prerenderer {
	if q == nil {
		return nil
	}
	return usecase.NewPrerenderer(q, cfg.Warmup.Formats, m)
}

func ProvideStreamHub(cfg *config.Config, uc *usecase.ChartUseCase, m repository.Metrics, l *applogger.Logger) *stream.Hub {
	return stream.NewHub(uc, stream.Config{
		Format:       chart.Format(cfg.Stream.Format),
		Width:        cfg.Stream.Width,
		Height:       cfg.Stream.Height,
		PingInterval: cfg.Stream.PingInterval,
		WriteTimeout: cfg.Stream.WriteTimeout,
		ReadLimit:    cfg.Stream.ReadLimit,
		SendBuffer:   cfg.Stream.SendBuffer,
		AllowOrigins: cfg.Stream.AllowOrigins,
	}, m, l)
}

// ProvideRefreshPipeline drops cached charts of an updated subject, pushes
// fresh frames to the sessions showing it and schedules prerenders, at most
// once per throttle interval.
func ProvideRefreshPipeline(cfg *config.Config, uc *usecase.ChartUseCase, hub *stream.Hub, pre *usecase.Prerenderer, m repository.Metrics, l *applogger.Logger) *mid.RefreshPipeline {
	proc := mid.ProcFunc(func(ctx context.Context, s models.Subject) error {
		if err := uc.Invalidate(ctx, s); err != nil {
			return err
		}
		if n := hub.Refresh(s); n > 0 {
			l.Debug("stream refresh scheduled", applogger.String("subject", s.String()), applogger.Int("sessions", n))
		}
		if pre != nil {
			// a lost warmup only costs one cold render
			if err := pre.Schedule(ctx, s); err != nil {
				l.Warn("prerender schedule", applogger.String("subject", s.String()), applogger.Error(err))
			}
		}
		return nil
	})
	return mid.NewRefreshPipeline(proc, m, l,
		mid.WithInterval(cfg.Stream.Throttle),
		mid.WithBufferSize(cfg.Kafka.Consumer.BufferSize),
	)
}

func ProvideKafkaCandlesHandler(cfg *config.Config, uc *usecase.ChartUseCase, pipeline *mid.RefreshPipeline, m repository.Metrics, l *applogger.Logger) *usecase.KafkaCandlesHandler {
	return usecase.NewKafkaCandlesHandler(cfg.Kafka.Topics.CandlesUpdated, uc, pipeline, m, l)
}

// ProvideKafkaConsumer creates the candles.updated consumer, or nil when Kafka is off.
func ProvideKafkaConsumer(cfg *config.Config, h *usecase.KafkaCandlesHandler, m repository.Metrics, l *applogger.Logger, reg *prometheus.Registry) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}

	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
		pkgkafka.WithConsumerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}

	consumer.RegisterHandler(h)
	consumer.WithConsumerHook(consumerHook(m, l))
	return consumer, nil
}

// consumerHook carries the producer's trace id into the handler context and
// counts failures per topic.
func consumerHook(m repository.Metrics, l *applogger.Logger) pkgkafka.ConsumerHook {
	return pkgkafka.HookFuncs{
		Before: func(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			ctx = pkgkafka.WithStartTime(ctx, time.Now())
			return pkgkafka.WithTraceID(ctx, pkgkafka.ExtractTraceID(km)), km, data, nil
		},
		After: func(ctx context.Context, topic string, _ kafka.Message, _ []byte, err error) {
			if start, ok := pkgkafka.StartTime(ctx); ok && err == nil {
				m.RecordLatency("consume_"+topic, time.Since(start).Seconds())
			}
		},
		Err: func(ctx context.Context, topic string, km kafka.Message, _ []byte, err error) {
			m.RecordError("consume_" + topic)
			l.Warn("kafka message failed",
				applogger.String("topic", topic),
				applogger.Int("partition", km.Partition),
				applogger.Int64("offset", km.Offset),
				applogger.String("trace_id", pkgkafka.TraceID(ctx)),
				applogger.Error(err),
			)
		},
	}
}

// ProvideRateLimiter returns nil when rate limiting is disabled.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	return ratelimit.New(int(cfg.RateLimit.Capacity), cfg.RateLimit.PerSec)
}

func ProvideChartHandler(l *applogger.Logger, uc *usecase.ChartUseCase, em *svcmetrics.Endpoint, rl *ratelimit.Limiter) *api.ChartEchoHandler {
	var opts []api.ChartHandlerOption
	if rl != nil {
		opts = append(opts, api.WithRateLimiter(rl))
	}
	return api.NewChartEchoHandler(l, uc, em, opts...)
}

func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, reg *prometheus.Registry, chartHandler *api.ChartEchoHandler, hub *stream.Hub) *xhttp.Server {
	handlers := []xhttp.Handler{chartHandler}
	if cfg.Stream.Enabled {
		handlers = append(handlers, hub)
	}

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	origins := cfg.Server.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	return xhttp.NewServer(l, handlers,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(origins...),
		xhttp.WithMetrics(metricsPath, reg, reg),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	hub *stream.Hub,
	pipeline *mid.RefreshPipeline,
	consumer *pkgkafka.Consumer,
	warmup *queue.RedisQueue,
	events repository.EventPublisher,
	cacheSvc cache.Service,
	ch *pkgch.Client,
) *server.App {
	opts := []server.AppOption{
		server.WithHub(hub),
		server.WithPipeline(pipeline),
		// closing the event publisher closes the producer
		server.WithCloser("events", events),
	}
	if consumer != nil {
		opts = append(opts, server.WithConsumer(consumer))
	}
	if warmup != nil {
		opts = append(opts, server.WithQueue(warmup))
	}
	if cacheSvc != nil {
		opts = append(opts, server.WithCloser("cache", cacheSvc))
	}
	if ch != nil {
		opts = append(opts, server.WithCloser("clickhouse", ch))
	}
	return server.New(cfg, l, srv, opts...)
}
