package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"HistFill/internal/domain/repository"
	"HistFill/internal/handler/api"
	internalrepo "HistFill/internal/repository"
	"HistFill/internal/service/provider"
	"HistFill/internal/service/ratelimit"
	"HistFill/internal/usecase"
	"HistFill/pkg/cache"
	pkgch "HistFill/pkg/clickhouse"
	"HistFill/pkg/config"
	xhttp "HistFill/pkg/http"
	pkgkafka "HistFill/pkg/kafka"
	"HistFill/pkg/logger"
	"HistFill/pkg/metrics"
	"HistFill/pkg/queue"
	"HistFill/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	level := cfg.Log.Level
	if level == "" {
		level = "info"
	}
	format := cfg.Log.Format
	if format == "" {
		format = "json"
	}
	return logger.New(&logger.Config{Level: level, Format: format, Output: "stdout"})
}

// ProvideRedisCache connects to Redis.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	host, portStr, err := net.SplitHostPort(cfg.Redis.Addr)
	if err != nil {
		return nil, fmt.Errorf("redis addr %q: %w", cfg.Redis.Addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("redis port %q: %w", portStr, err)
	}
	return cache.NewRedisCache(
		cache.WithRedisHost(host),
		cache.WithRedisPort(port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.KeyPrefix),
	)
}

// ProvideCacheService layers a small in-process cache in front of Redis.
func ProvideCacheService(redisCache *cache.RedisCache) cache.Service {
	return cache.NewLayeredCache(redisCache)
}

// ProvideQueue creates the Redis continuation queue.
func ProvideQueue(cfg *config.Config, lgr *logger.Logger, redisCache *cache.RedisCache) *queue.RedisQueue {
	return queue.NewRedisQueue(lgr, &queue.Config{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, redisCache.Client(), queue.WithKeyPrefix(cfg.Redis.KeyPrefix+":queue"))
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideTickerStore creates the ticker data repository.
func ProvideTickerStore(store cache.Service) repository.TickerStore {
	return internalrepo.NewCacheTickerStore(store)
}

// ProvideFailedRegistry creates the failed-ticker negative cache.
func ProvideFailedRegistry(store cache.Service) repository.FailedRegistry {
	return internalrepo.NewCacheFailedRegistry(store)
}

// ProvideJobStore creates the job repository.
func ProvideJobStore(store cache.Service) repository.JobStore {
	return internalrepo.NewCacheJobStore(store)
}

// ProvideEvents creates the Kafka lifecycle publisher, or a no-op when the
// broker is disabled.
func ProvideEvents(cfg *config.Config, lgr *logger.Logger) (repository.Events, error) {
	if !cfg.Kafka.Enabled {
		return internalrepo.NoopEvents{}, nil
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
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewKafkaEvents(producer, cfg.Kafka.Topic, lgr), nil
}

// ProvideArchive creates the ClickHouse archive, or a no-op when disabled.
func ProvideArchive(cfg *config.Config) (repository.Archive, error) {
	if !cfg.ClickHouse.Enabled {
		return internalrepo.NoopArchive{}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	table := cfg.ClickHouse.Database + "." + cfg.ClickHouse.Table
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.Schema(cfg.ClickHouse.Database, table)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return internalrepo.NewClickHouseArchive(client, table), nil
}

// ProvideMarketData creates the upstream provider client.
func ProvideMarketData(cfg *config.Config, lgr *logger.Logger) repository.MarketData {
	return provider.New(providerConfig(cfg), ratelimit.New(), lgr)
}

func providerConfig(cfg *config.Config) provider.Config {
	return provider.Config{
		BaseURL:        cfg.Provider.BaseURL,
		APIKey:         cfg.Provider.APIKey,
		CallTimeout:    cfg.Provider.CallTimeout,
		RatePerSec:     cfg.Provider.RatePerSec,
		Burst:          cfg.Provider.Burst,
		ProbeDays:      cfg.Provider.ProbeDays,
		ExchangeSuffix: cfg.Provider.ExchangeSuffix,
		DelistedSuffix: cfg.Provider.DelistedSuffix,
	}
}

// ProvideCoverageChecker creates the coverage checker.
func ProvideCoverageChecker(tickers repository.TickerStore, failed repository.FailedRegistry) *usecase.CoverageChecker {
	return usecase.NewCoverageChecker(tickers, failed)
}

// ProvideFillWorker creates the per-symbol ingestion worker.
func ProvideFillWorker(
	cfg *config.Config,
	data repository.MarketData,
	tickers repository.TickerStore,
	failed repository.FailedRegistry,
	archive repository.Archive,
	m repository.Metrics,
	lgr *logger.Logger,
) *usecase.FillWorker {
	pcfg := providerConfig(cfg)
	return usecase.NewFillWorker(data, tickers, failed, archive, m, lgr,
		usecase.WithMinYear(cfg.Ingest.MinYear),
		usecase.WithIndexFunds(cfg.Ingest.IndexFunds),
		usecase.WithSymbolFormats(func(symbol string) []string {
			return provider.SymbolFormats(symbol, pcfg)
		}),
	)
}

// ProvideJobManager creates the job manager.
func ProvideJobManager(
	jobs repository.JobStore,
	coverage *usecase.CoverageChecker,
	events repository.Events,
	lgr *logger.Logger,
) *usecase.JobManager {
	return usecase.NewJobManager(jobs, coverage, events, lgr)
}

// ProvideOrchestrator creates the chunk orchestrator.
func ProvideOrchestrator(
	cfg *config.Config,
	manager *usecase.JobManager,
	worker *usecase.FillWorker,
	jobs repository.JobStore,
	m repository.Metrics,
	lgr *logger.Logger,
) *usecase.Orchestrator {
	return usecase.NewOrchestrator(manager, worker, jobs, m, lgr,
		usecase.WithParallelism(cfg.Ingest.Parallelism),
		usecase.WithChunkDelay(cfg.Ingest.ChunkDelay),
		usecase.WithLockTTL(cfg.Ingest.LockTTL),
	)
}

// ProvideJobRunner creates the background continuation runner.
func ProvideJobRunner(
	cfg *config.Config,
	orchestrator *usecase.Orchestrator,
	q *queue.RedisQueue,
	lgr *logger.Logger,
) *usecase.JobRunner {
	return usecase.NewJobRunner(orchestrator, q, lgr, cfg.Ingest.DefaultBudget)
}

// ProvideHTTPHandler creates the Echo route handler.
func ProvideHTTPHandler(
	lgr *logger.Logger,
	manager *usecase.JobManager,
	orchestrator *usecase.Orchestrator,
	runner *usecase.JobRunner,
	coverage *usecase.CoverageChecker,
	tickers repository.TickerStore,
	failed repository.FailedRegistry,
) xhttp.Handler {
	return api.NewIngestEchoHandler(lgr, manager, orchestrator, runner, coverage, tickers, failed)
}

// ProvideApp assembles the application and registers the queue consumer.
func ProvideApp(
	cfg *config.Config,
	lgr *logger.Logger,
	handler xhttp.Handler,
	q *queue.RedisQueue,
	runner *usecase.JobRunner,
	events repository.Events,
	archive repository.Archive,
) *server.App {
	q.RegisterJob(runner)
	return server.New(cfg, lgr, handler, q, events, archive)
}
