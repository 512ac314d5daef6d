package di

import (
	"context"
	"fmt"
	"time"

	"MarketWatch/internal/domain/models"
	drepo "MarketWatch/internal/domain/repository"
	domsvc "MarketWatch/internal/domain/service"
	"MarketWatch/internal/handler/api"
	"MarketWatch/internal/registry"
	internalrepo "MarketWatch/internal/repository"
	"MarketWatch/internal/service/binance"
	icache "MarketWatch/internal/service/cache"
	"MarketWatch/internal/service/ratelimit"
	"MarketWatch/internal/service/telegram"
	"MarketWatch/internal/services/levels"
	"MarketWatch/internal/services/scoring"
	"MarketWatch/internal/usecase"
	pkgcache "MarketWatch/pkg/cache"
	pkgch "MarketWatch/pkg/clickhouse"
	"MarketWatch/pkg/config"
	xhttp "MarketWatch/pkg/http"
	pkgkafka "MarketWatch/pkg/kafka"
	"MarketWatch/pkg/logger"
	"MarketWatch/pkg/metrics"
	"MarketWatch/pkg/server"
)

const (
	signalsTable = "signals"
	// levelsCacheTTL outlives one scan interval so a restart can reuse levels.
	levelsCacheTTL = 2 * time.Hour
	slowHandle     = time.Second
)

// ProvideLogger creates the root logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() drepo.Metrics {
	return metrics.New()
}

func ProvideRegistry() *registry.Registry {
	return registry.New()
}

func ProvideLevelFinder() domsvc.LevelFinder {
	return levels.NewFinder()
}

// ProvideMarketData creates the rate limited Binance REST client.
func ProvideMarketData(cfg *config.Config) drepo.MarketData {
	client := xhttp.NewClient(
		xhttp.WithTimeout(cfg.Binance.RequestTimeout),
		xhttp.WithLimiter(ratelimit.PerSecond(cfg.Binance.RequestsPerSecond)),
	)
	return binance.NewRESTClient(cfg.Binance.RestURL, client)
}

// ProvideMarketStream creates the Binance combined stream client.
func ProvideMarketStream(cfg *config.Config) drepo.MarketStream {
	return binance.NewStream(
		cfg.Binance.StreamURL,
		models.Granularity(cfg.Analysis.StreamGranularity),
		binance.WithPingInterval(cfg.Binance.PingInterval),
		binance.WithReadTimeout(cfg.Binance.ReadTimeout),
	)
}

// ProvideCache connects Redis when enabled and falls back to an in-process cache.
func ProvideCache(cfg *config.Config, l *logger.Logger) (pkgcache.Service, func(), error) {
	if !cfg.Redis.Enabled {
		mc := pkgcache.NewMemoryCache()
		return mc, func() { _ = mc.Close() }, nil
	}
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(cfg.Redis.Host),
		pkgcache.WithRedisPort(cfg.Redis.Port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
		pkgcache.WithRedisPool(cfg.Redis.PoolSize, 2, 30*time.Second),
		pkgcache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	cleanup := func() {
		if err := rc.Close(); err != nil {
			l.Warn("redis close error", logger.Error(err))
		}
	}
	return rc, cleanup, nil
}

func ProvideCooldownStore(svc pkgcache.Service, cfg *config.Config) drepo.CooldownStore {
	ttl := cfg.Alerts.Cooldown
	if cfg.Alerts.StrongCooldown > ttl {
		ttl = cfg.Alerts.StrongCooldown
	}
	return icache.NewCooldownStore(svc, 2*ttl)
}

func ProvideLevelsCache(svc pkgcache.Service) drepo.LevelsCache {
	return icache.NewLevelsCache(svc, levelsCacheTTL)
}

// ProvideNotifier returns the Telegram notifier, or a log-only notifier when
// Telegram is disabled.
func ProvideNotifier(cfg *config.Config, l *logger.Logger) (drepo.Notifier, error) {
	if !cfg.Telegram.Enabled {
		l.Warn("telegram disabled, alerts are only logged")
		return telegram.NewLogNotifier(l), nil
	}
	n, err := telegram.New(cfg.Telegram.Token, cfg.Telegram.ChatID,
		xhttp.NewClient(xhttp.WithTimeout(10*time.Second)),
		telegram.WithAPIURL(cfg.Telegram.APIURL),
		telegram.WithLimiter(ratelimit.NewKeyed(cfg.Telegram.MessagesPerSecond, 1)),
	)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return n, nil
}

// ProvideClickHouseClient connects ClickHouse when enabled. A nil client
// means history is not persisted.
func ProvideClickHouseClient(cfg *config.Config, l *logger.Logger) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	cleanup := func() {
		if err := client.Close(); err != nil {
			l.Warn("clickhouse close error", logger.Error(err))
		}
	}
	return client, cleanup, nil
}

// ProvideSignalStore creates the ClickHouse signal store and its schema.
func ProvideSignalStore(client *pkgch.Client, cfg *config.Config) (drepo.SignalStore, error) {
	if client == nil {
		return nil, nil
	}
	store := internalrepo.NewClickHouseSignalStore(client, cfg.ClickHouse.Database, signalsTable)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvideKafkaProducer creates a producer when signals or error logs go to
// Kafka. Error log shipping is attached here so it is detached before the
// producer closes.
func ProvideKafkaProducer(cfg *config.Config, l *logger.Logger) (*pkgkafka.Producer, func(), error) {
	if cfg.Backend.Type != usecase.BackendKafka && cfg.Logging.CollectTopic == "" {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	if cfg.Logging.CollectTopic != "" {
		l.AddCollector(&logger.CollectionConfig{
			TimeInterval:   cfg.Logging.CollectEvery,
			CountThreshold: 100,
			Topic:          cfg.Logging.CollectTopic,
			Publisher:      producer,
		})
	}
	cleanup := func() {
		l.RemoveCollector()
		if err := producer.Close(); err != nil {
			l.Warn("kafka producer close error", logger.Error(err))
		}
	}
	return producer, cleanup, nil
}

func ProvideSignalPublisher(producer *pkgkafka.Producer, cfg *config.Config) drepo.SignalPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaSignalPublisher(producer, cfg.Kafka.Topic)
}

func ProvideSignalRecorder(cfg *config.Config, pub drepo.SignalPublisher, store drepo.SignalStore, m drepo.Metrics) (*usecase.SignalRecorder, error) {
	return usecase.NewSignalRecorder(cfg.Backend.Type, pub, store, m, cfg.Backend.BatchSize)
}

func ProvideStreamIngestor(stream drepo.MarketStream, reg *registry.Registry, m drepo.Metrics, l *logger.Logger, cfg *config.Config) *usecase.StreamIngestor {
	return usecase.NewStreamIngestor(stream, reg, m, l, usecase.WithReconnectDelay(cfg.Binance.ReconnectDelay))
}

func ProvideUniverseScanner(
	market drepo.MarketData,
	reg *registry.Registry,
	finder domsvc.LevelFinder,
	lc drepo.LevelsCache,
	ingestor *usecase.StreamIngestor,
	m drepo.Metrics,
	l *logger.Logger,
	cfg *config.Config,
) (*usecase.UniverseScanner, error) {
	return usecase.NewUniverseScanner(market, reg, finder, lc, ingestor, m, l, usecase.ScannerConfig{
		CoreSymbols:       cfg.Universe.CoreSymbols,
		Denylist:          cfg.Universe.Denylist,
		QuoteAsset:        cfg.Universe.QuoteAsset,
		TopN:              cfg.Universe.TopN,
		Interval:          cfg.Universe.ScanInterval,
		LevelsGranularity: models.Granularity(cfg.Universe.LevelsGranularity),
		LevelsBars:        cfg.Universe.LevelsBars,
		SeedGranularity:   models.Granularity(cfg.Analysis.StreamGranularity),
		SeedBars:          registry.DefaultCandleCapacity,
	})
}

func ProvideAlertDispatcher(
	reg *registry.Registry,
	notifier drepo.Notifier,
	m drepo.Metrics,
	l *logger.Logger,
	cfg *config.Config,
	cooldowns drepo.CooldownStore,
	recorder *usecase.SignalRecorder,
) *usecase.AlertDispatcher {
	return usecase.NewAlertDispatcher(reg, notifier, m, l, usecase.DispatcherConfig{
		StrongCooldown: cfg.Alerts.StrongCooldown,
		Cooldown:       cfg.Alerts.Cooldown,
		ChunkSize:      cfg.Alerts.ChunkSize,
	}, usecase.WithCooldownStore(cooldowns), usecase.WithSignalSink(recorder))
}

// ScoringConfig maps the scoring section onto scoring.Config.
func ScoringConfig(cfg *config.Config) scoring.Config {
	sc := scoring.DefaultConfig()
	sc.Weights = scoring.Weights{
		Technical:         cfg.Scoring.Weights.Technical,
		Volume:            cfg.Scoring.Weights.Volume,
		SupportResistance: cfg.Scoring.Weights.SupportResistance,
		Pattern:           cfg.Scoring.Weights.Pattern,
	}
	sc.Thresholds = scoring.Thresholds{
		StrongBuy:  cfg.Scoring.Thresholds.StrongBuy,
		Buy:        cfg.Scoring.Thresholds.Buy,
		Sell:       cfg.Scoring.Thresholds.Sell,
		StrongSell: cfg.Scoring.Thresholds.StrongSell,
	}
	if len(cfg.Scoring.TimeframeWeights) > 0 {
		sc.TimeframeWeights = make(map[models.Granularity]float64, len(cfg.Scoring.TimeframeWeights))
		for g, w := range cfg.Scoring.TimeframeWeights {
			sc.TimeframeWeights[models.Granularity(g)] = w
		}
	}
	return sc
}

func ProvideAnalysisScheduler(
	market drepo.MarketData,
	reg *registry.Registry,
	dispatcher *usecase.AlertDispatcher,
	scanner *usecase.UniverseScanner,
	m drepo.Metrics,
	l *logger.Logger,
	cfg *config.Config,
) *usecase.AnalysisScheduler {
	return usecase.NewAnalysisScheduler(market, reg, dispatcher, m, l, usecase.SchedulerConfig{
		Interval:          cfg.Analysis.Interval,
		Workers:           cfg.Analysis.Workers,
		KlineLimit:        cfg.Analysis.KlineLimit,
		SymbolTimeout:     cfg.Analysis.SymbolTimeout,
		StreamGranularity: models.Granularity(cfg.Analysis.StreamGranularity),
		LevelsGranularity: models.Granularity(cfg.Universe.LevelsGranularity),
		Scoring:           ScoringConfig(cfg),
	}, usecase.WithStartAfter(scanner.Ready()))
}

func ProvideHeadlineReporter(
	market drepo.MarketData,
	reg *registry.Registry,
	finder domsvc.LevelFinder,
	notifier drepo.Notifier,
	svc pkgcache.Service,
	l *logger.Logger,
	cfg *config.Config,
) *usecase.HeadlineReporter {
	return usecase.NewHeadlineReporter(market, reg, finder, notifier, svc, l, usecase.HeadlineConfig{
		Symbols:           cfg.Analysis.HeadlineSymbols,
		Interval:          cfg.Analysis.HeadlineInterval,
		LevelsGranularity: models.Granularity(cfg.Universe.LevelsGranularity),
	})
}

// ProvideKafkaConsumer creates the archiver consumer. It is nil unless
// signals go to Kafka and ClickHouse is available to archive them.
func ProvideKafkaConsumer(cfg *config.Config, l *logger.Logger, store drepo.SignalStore, m drepo.Metrics) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consumer.Enabled || cfg.Backend.Type != usecase.BackendKafka || store == nil {
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
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.RegisterHandler(usecase.NewSignalArchiver(cfg.Kafka.Topic, store, m))
	consumer.WithConsumerHook(pkgkafka.NewHookChain(pkgkafka.TraceHook(), pkgkafka.LoggingHook(l, slowHandle)))
	return consumer, nil
}

// ProvideMarketQuery builds the read side with a health check per
// configured dependency.
func ProvideMarketQuery(
	reg *registry.Registry,
	store drepo.SignalStore,
	ingestor *usecase.StreamIngestor,
	svc pkgcache.Service,
	cfg *config.Config,
) *usecase.MarketQuery {
	checks := map[string]usecase.HealthCheck{}
	if store != nil {
		checks["clickhouse"] = store.Health
	}
	if cfg.Redis.Enabled {
		checks["redis"] = svc.Ping
	}
	return usecase.NewMarketQuery(reg, store, ingestor, checks, models.Granularity(cfg.Analysis.StreamGranularity))
}

func ProvideHTTPHandler(l *logger.Logger, q *usecase.MarketQuery) xhttp.Handler {
	return api.NewMarketHandler(l, q, ratelimit.NewKeyed(5, 10, ratelimit.WithIdleTTL(10*time.Minute), ratelimit.WithMaxKeys(10000)))
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	ingestor *usecase.StreamIngestor,
	scanner *usecase.UniverseScanner,
	scheduler *usecase.AnalysisScheduler,
	headline *usecase.HeadlineReporter,
	consumer *pkgkafka.Consumer,
	handler xhttp.Handler,
) *server.App {
	return server.New(cfg, l, ingestor, scanner, scheduler, headline, consumer, handler)
}
