package di

import (
	"context"
	"fmt"
	"time"

	drepo "CryptoArchive/internal/domain/repository"
	dsvc "CryptoArchive/internal/domain/service"
	"CryptoArchive/internal/handler/api"
	internalrepo "CryptoArchive/internal/repository"
	"CryptoArchive/internal/service/coinmarketcap"
	"CryptoArchive/internal/service/ratelimit"
	"CryptoArchive/internal/services/market"
	"CryptoArchive/internal/usecase"
	"CryptoArchive/pkg/cache"
	pkgch "CryptoArchive/pkg/clickhouse"
	"CryptoArchive/pkg/config"
	xhttp "CryptoArchive/pkg/http"
	pkgkafka "CryptoArchive/pkg/kafka"
	applogger "CryptoArchive/pkg/logger"
	"CryptoArchive/pkg/metrics"
	"CryptoArchive/pkg/postgres"
	"CryptoArchive/pkg/queue"
	"CryptoArchive/pkg/server"
	"CryptoArchive/pkg/sqlite"
)

// Archive bundles the configured stores with health checks for their backends.
type Archive struct {
	Prices drepo.PriceArchive
	Recs   drepo.RecommendationArchive
	Checks map[string]xhttp.HealthCheck
}

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(cfg *config.Config) drepo.Metrics {
	if !cfg.Metrics.Enabled {
		return metrics.Nop{}
	}
	return metrics.New()
}

// ProvideArchive opens the relational store and, when configured, moves the price
// archive to ClickHouse. Schemas are created on the way.
func ProvideArchive(cfg *config.Config, l *applogger.Logger) (*Archive, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	a := &Archive{Checks: map[string]xhttp.HealthCheck{}}
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				l.Warn("close storage", applogger.Error(err))
			}
		}
	}

	switch cfg.Storage.Driver {
	case "postgres":
		pool, err := postgres.NewPool(ctx,
			postgres.WithHost(cfg.Storage.Postgres.Host),
			postgres.WithPort(cfg.Storage.Postgres.Port),
			postgres.WithDatabase(cfg.Storage.Postgres.Database),
			postgres.WithCredentials(cfg.Storage.Postgres.User, cfg.Storage.Postgres.Password),
			postgres.WithSSLMode(cfg.Storage.Postgres.SSLMode),
			postgres.WithMaxConns(cfg.Storage.Postgres.MaxConns),
		)
		if err != nil {
			return nil, nil, err
		}
		pg := internalrepo.NewPostgresArchive(pool, cfg.Storage.QueryTimeout, l)
		closers = append(closers, pg.Close)
		if err := pg.InitSchema(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("postgres schema: %w", err)
		}
		a.Prices, a.Recs = pg, pg
		a.Checks["postgres"] = pg.Health
	default:
		db, err := sqlite.Open(cfg.Storage.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		s := internalrepo.NewSQLiteArchive(db, cfg.Storage.QueryTimeout, l)
		closers = append(closers, s.Close)
		if err := s.InitSchema(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("sqlite schema: %w", err)
		}
		a.Prices, a.Recs = s, s
		a.Checks["sqlite"] = s.Health
	}

	if cfg.Storage.PriceArchive == "clickhouse" {
		ch, err := provideClickHouseClient(ctx, cfg)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, ch.Close)
		a.Prices = internalrepo.NewClickHousePrices(ch, cfg.Storage.QueryTimeout, l)
		a.Checks["clickhouse"] = ch.Health
	}

	l.Info("archive storage ready",
		applogger.String("driver", cfg.Storage.Driver),
		applogger.String("price_archive", cfg.Storage.PriceArchive),
	)
	return a, cleanup, nil
}

func provideClickHouseClient(ctx context.Context, cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithCompression(cfg.ClickHouse.Compress),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	if err := client.InitSchema(ctx, internalrepo.ClickHouseSchema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideRedis connects to Redis when enabled. A nil cache means single-process mode.
func ProvideRedis(cfg *config.Config) (*cache.RedisCache, func(), error) {
	if !cfg.Cache.Redis.Enabled {
		return nil, func() {}, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Cache.Redis.Addr),
		cache.WithRedisPassword(cfg.Cache.Redis.Password),
		cache.WithRedisDB(cfg.Cache.Redis.DB),
		cache.WithRedisPoolSize(cfg.Cache.Redis.PoolSize),
		cache.WithRedisDialTimeout(cfg.Cache.Redis.DialTimeout),
		cache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	return rc, func() { _ = rc.Close() }, nil
}

// ProvideCache layers an in-process cache over Redis, or uses memory alone.
func ProvideCache(cfg *config.Config, rc *cache.RedisCache) (cache.Service, func()) {
	if !cfg.Cache.Enabled {
		return nil, func() {}
	}
	if rc != nil {
		lc := cache.NewLayeredCache(rc,
			cache.WithLayeredMemorySize(cfg.Cache.MemorySize),
			cache.WithLayeredMemoryTTL(cfg.Cache.TTL/2),
		)
		return lc, func() { _ = lc.Close() }
	}
	mc := cache.NewMemoryCache(
		cache.WithMemoryMaxSize(cfg.Cache.MemorySize),
		cache.WithMemoryCleanup(cfg.Cache.Cleanup),
	)
	return mc, func() { _ = mc.Close() }
}

// ProvideKafkaProducer creates a Kafka producer, or nil without brokers.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !cfg.KafkaEnabled() {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.BatchTimeout),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvidePublisher forwards events to Kafka, or drops them without a producer.
func ProvidePublisher(producer *pkgkafka.Producer, cfg *config.Config) drepo.Publisher {
	if producer == nil {
		return internalrepo.NopPublisher{}
	}
	return internalrepo.NewKafkaPublisher(producer, internalrepo.KafkaTopics{
		Prices:          cfg.Kafka.Topics.Prices,
		Recommendations: cfg.Kafka.Topics.Recommendations,
		Verdicts:        cfg.Kafka.Topics.Verdicts,
	})
}

// ProvidePriceSource creates the CoinMarketCap listing adapter.
func ProvidePriceSource(cfg *config.Config, l *applogger.Logger) drepo.PriceSource {
	return coinmarketcap.New(coinmarketcap.Config{
		BaseURL:        cfg.CoinMarketCap.BaseURL,
		ListingLimit:   cfg.CoinMarketCap.ListingLimit,
		DominanceLimit: cfg.CoinMarketCap.DominanceLimit,
		Timeout:        cfg.CoinMarketCap.Timeout,
		Retries:        cfg.CoinMarketCap.Retries,
		RetryBackoff:   cfg.CoinMarketCap.RetryBackoff,
		Symbols:        cfg.CoinMarketCap.Symbols,
	}, l.With(applogger.String("component", "coinmarketcap")))
}

// ProvideDirectIngestor writes straight to the archive.
func ProvideDirectIngestor(a *Archive, c cache.Service, m drepo.Metrics, l *applogger.Logger) *usecase.Ingestor {
	return usecase.NewIngestor(a.Prices, a.Recs, c, m, l.With(applogger.String("component", "ingest")))
}

// ProvideIngestor selects the write path of the HTTP API. In kafka mode requests are
// published and the consumer writes them.
func ProvideIngestor(cfg *config.Config, direct *usecase.Ingestor, pub drepo.Publisher, m drepo.Metrics, l *applogger.Logger) dsvc.Ingestor {
	if cfg.Ingest.Mode == "kafka" {
		return usecase.NewQueuedIngestor(pub, m, l.With(applogger.String("component", "ingest")))
	}
	return direct
}

func ProvideHistory(cfg *config.Config, a *Archive, c cache.Service, m drepo.Metrics, l *applogger.Logger) *usecase.History {
	return usecase.NewHistory(a.Prices, a.Recs, c, cfg.Cache.TTL, m, l.With(applogger.String("component", "history")))
}

func ProvideGrader(cfg *config.Config, a *Archive, source drepo.PriceSource, pub drepo.Publisher, c cache.Service, m drepo.Metrics, l *applogger.Logger) *usecase.Grader {
	return usecase.NewGrader(a.Recs, a.Prices, source, pub, c, m, usecase.GraderConfig{
		BatchSize:           cfg.Grading.BatchSize,
		IssuePriceTolerance: cfg.Grading.IssuePriceTolerance,
		QuoteFreshness:      cfg.Grading.QuoteFreshness,
	}, l.With(applogger.String("component", "grader")))
}

func ProvideMarket(source drepo.PriceSource, m drepo.Metrics, l *applogger.Logger) *usecase.Market {
	return usecase.NewMarket(source, m, l.With(applogger.String("component", "market")))
}

// ProvideTargets merges targets from the recommendations file and the inline list.
func ProvideTargets(cfg *config.Config) ([]market.Target, error) {
	var out []market.Target
	if cfg.Recommendations.File != "" {
		t, err := market.LoadTargets(cfg.Recommendations.File)
		if err != nil {
			return nil, err
		}
		out = append(out, t...)
	}
	for _, t := range cfg.Recommendations.Targets {
		out = append(out, market.Target{Symbol: t.Symbol, Price: t.Price, Allocation: t.Allocation})
	}
	return out, nil
}

func ProvideSnapshotJob(cfg *config.Config, source drepo.PriceSource, direct *usecase.Ingestor, targets []market.Target, m drepo.Metrics, l *applogger.Logger) *usecase.SnapshotJob {
	return usecase.NewSnapshotJob(source, direct.WithSource("snapshot"), cfg.CoinMarketCap.Symbols, targets, m, l)
}

// ProvideScheduler registers the snapshot and grade tasks. Locks go through Redis when
// it is available so replicas do not run the same task twice.
func ProvideScheduler(cfg *config.Config, rc *cache.RedisCache, snapshot *usecase.SnapshotJob, grader *usecase.Grader, m drepo.Metrics, l *applogger.Logger) *usecase.Scheduler {
	var locker cache.Locker
	if rc != nil {
		locker = rc
	}
	s := usecase.NewScheduler(locker, cfg.Scheduler.JobTimeout, m, l.With(applogger.String("component", "scheduler")))
	s.Add(snapshot, cfg.Scheduler.SnapshotInterval)
	s.Add(usecase.NewGradeJob(grader), cfg.Scheduler.GradeInterval)
	return s
}

// ProvideQueue dispatches scheduled tasks through Redis so any replica's workers can run
// them. Without Redis the scheduler runs tasks inline.
func ProvideQueue(cfg *config.Config, rc *cache.RedisCache, s *usecase.Scheduler, l *applogger.Logger) *queue.RedisQueue {
	if rc == nil {
		return nil
	}
	q := queue.NewRedisQueue(l.With(applogger.String("component", "queue")), queue.QueueConfig{
		Workers:    cfg.Scheduler.Queue.Workers,
		RetryLimit: cfg.Scheduler.Queue.RetryLimit,
		RetryDelay: cfg.Scheduler.Queue.RetryDelay,
		PollWait:   cfg.Scheduler.Queue.PollWait,
	}, rc.Client(), queue.WithKeyPrefix(cfg.Cache.Redis.Prefix+":queue"))
	for _, job := range s.Jobs() {
		q.RegisterJob(job)
	}
	s.UseQueue(q)
	return q
}

// ProvideKafkaConsumer creates the ingestion consumer in kafka mode.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if cfg.Ingest.Mode != "kafka" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerRetryable(usecase.Retryable),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerLogger(l.With(applogger.String("component", "kafka_consumer"))),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideKafkaHandlers binds the ingestion topics to the direct write path.
func ProvideKafkaHandlers(cfg *config.Config, direct *usecase.Ingestor) []pkgkafka.MessageHandler {
	if cfg.Ingest.Mode != "kafka" {
		return nil
	}
	ingest := direct.WithSource("kafka")
	return []pkgkafka.MessageHandler{
		usecase.NewPricesHandler(cfg.Kafka.Topics.Prices, ingest),
		usecase.NewRecommendationsHandler(cfg.Kafka.Topics.Recommendations, ingest),
	}
}

func ProvideHTTPHandler(ingest dsvc.Ingestor, history *usecase.History, grader *usecase.Grader, mkt *usecase.Market, l *applogger.Logger) *api.ArchiveEchoHandler {
	return api.NewArchiveEchoHandler(l.With(applogger.String("component", "http")), ingest, history, grader, mkt)
}

// ProvideHTTPServer builds the Echo server with health checks for every backend.
func ProvideHTTPServer(cfg *config.Config, h *api.ArchiveEchoHandler, a *Archive, rc *cache.RedisCache, l *applogger.Logger) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetrics(cfg.Metrics.Enabled),
		xhttp.WithCORSOrigins(cfg.Server.CORSOrigins...),
	}
	if cfg.Server.RateLimit.Capacity > 0 {
		limiter := ratelimit.New(cfg.Server.RateLimit.Capacity, cfg.Server.RateLimit.RefillPerSec)
		opts = append(opts, xhttp.WithMiddleware(limiter.Middleware()))
	}
	for name, check := range a.Checks {
		opts = append(opts, xhttp.WithHealthCheck(name, check))
	}
	if rc != nil {
		opts = append(opts, xhttp.WithHealthCheck("redis", rc.Ping))
	}
	return xhttp.NewServer(l, h, opts...)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
	handlers []pkgkafka.MessageHandler,
	scheduler *usecase.Scheduler,
	q *queue.RedisQueue,
) *server.App {
	return server.New(cfg, l, httpServer, consumer, handlers, scheduler, q)
}
