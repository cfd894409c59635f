package di

import (
	"context"
	"fmt"
	"time"

	"MarketPull/internal/domain/repository"
	"MarketPull/internal/handler/api"
	internalrepo "MarketPull/internal/repository"
	"MarketPull/internal/store"
	"MarketPull/internal/strategy"
	"MarketPull/internal/usecase"
	"MarketPull/pkg/cache"
	pkgch "MarketPull/pkg/clickhouse"
	"MarketPull/pkg/config"
	pkghttp "MarketPull/pkg/http"
	pkgkafka "MarketPull/pkg/kafka"
	"MarketPull/pkg/logger"
	"MarketPull/pkg/metrics"
	"MarketPull/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideMetrics creates the Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates the archive's connection pool and runs
// schema init.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database,
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideArchive creates the ClickHouse-backed archive and its tables.
func ProvideArchive(client *pkgch.Client) (repository.Archive, error) {
	archive := internalrepo.NewClickHouseArchive(client.DB())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := archive.Init(ctx); err != nil {
		return nil, fmt.Errorf("archive init: %w", err)
	}
	return archive, nil
}

// ProvideCache creates the Redis fast tier.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	c, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Host, cfg.Redis.Port),
		cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return c, nil
}

// ProvidePublisher creates the Kafka fact-event publisher. Returns nil
// when Kafka is disabled; the orchestrator treats that as no-op.
func ProvidePublisher(cfg *config.Config) (repository.Publisher, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.Acks),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic), nil
}

// ProvideStore creates the consistency layer over both tiers.
func ProvideStore(cfg *config.Config, c cache.Service, a repository.Archive, m repository.Metrics, log *logger.Logger) *store.Store {
	ttlOf := func(sourceID string) time.Duration {
		if spec, ok := cfg.Source(sourceID); ok {
			return cfg.ClassOf(spec).TTL
		}
		return time.Minute
	}
	return store.New(c, a, ttlOf,
		store.WithLogger(log),
		store.WithMetrics(m),
		store.WithRetention(cfg.Crawler.CacheRetention),
		store.WithRepairTimeout(cfg.Crawler.RepairTimeout),
	)
}

// ProvideChains assembles the per-source acquisition chains.
func ProvideChains(cfg *config.Config, log *logger.Logger, m repository.Metrics) (map[string]*strategy.Chain, error) {
	client := pkghttp.NewClient()
	return usecase.BuildChains(cfg, client, log, m)
}

// ProvideOrchestrator creates the crawl orchestrator.
func ProvideOrchestrator(
	cfg *config.Config,
	chains map[string]*strategy.Chain,
	st *store.Store,
	pub repository.Publisher,
	m repository.Metrics,
	log *logger.Logger,
) *usecase.Orchestrator {
	opts := []usecase.Option{
		usecase.WithLogger(log),
		usecase.WithMetrics(m),
	}
	if pub != nil {
		opts = append(opts, usecase.WithPublisher(pub))
	}
	return usecase.New(cfg, chains, st, opts...)
}

// ProvideHandler creates the HTTP handler.
func ProvideHandler(orch *usecase.Orchestrator, log *logger.Logger) *api.FactsHandler {
	return api.NewFactsHandler(orch, log)
}

// ProvideApp creates the application.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	orch *usecase.Orchestrator,
	handler *api.FactsHandler,
	chClient *pkgch.Client,
	c cache.Service,
	pub repository.Publisher,
) *server.App {
	return server.New(cfg, log, orch, handler, chClient, c, pub)
}
