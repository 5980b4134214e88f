// Package app assembles the full server from configuration: registry,
// classifier, orchestrator, cache, optional backends and the HTTP
// interface.  Both the apiserver binary and the CLI serve command run it.
package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/eastgrand/geoinsight/internal/application/insight"
	"github.com/eastgrand/geoinsight/internal/config"
	"github.com/eastgrand/geoinsight/internal/domain/classify"
	"github.com/eastgrand/geoinsight/internal/infrastructure/database/postgres"
	"github.com/eastgrand/geoinsight/internal/infrastructure/database/redis"
	"github.com/eastgrand/geoinsight/internal/infrastructure/endpoints"
	"github.com/eastgrand/geoinsight/internal/infrastructure/messaging/kafka"
	"github.com/eastgrand/geoinsight/internal/infrastructure/monitoring/logging"
	"github.com/eastgrand/geoinsight/internal/infrastructure/monitoring/prometheus"
	"github.com/eastgrand/geoinsight/internal/infrastructure/search/milvus"
	"github.com/eastgrand/geoinsight/internal/intelligence/embedding"
	httpiface "github.com/eastgrand/geoinsight/internal/interfaces/http"
	"github.com/eastgrand/geoinsight/internal/interfaces/http/handlers"
	"github.com/eastgrand/geoinsight/internal/registry"
)

// Run starts the server and blocks until ctx is cancelled or a fatal
// component error occurs.
func Run(ctx context.Context, cfg *config.Config, logger logging.Logger) error {
	snap, err := registry.LoadFile(cfg.Registry.Path)
	if err != nil {
		return err
	}
	reg := registry.New(snap, logger)
	logger.Info("registry loaded",
		logging.String("path", cfg.Registry.Path),
		logging.String("version", snap.Version),
		logging.Int("endpoints", snap.Catalog.Len()))

	metrics := prometheus.NewCollector()

	cacheOpts := []insight.CacheOption{insight.WithCacheMetrics(metrics)}
	health := handlers.NewHealthHandler()
	health.AddCheck("registry", func(context.Context) error {
		if reg.Current() == nil {
			return fmt.Errorf("no snapshot loaded")
		}
		return nil
	})

	// Optional second-level store shared across replicas.
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(&cfg.Redis, logger)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		store := redis.NewResultStore(redisClient, cfg.Redis.KeyPrefix, logger)
		cacheOpts = append(cacheOpts, insight.WithSecondLevelStore(store))
		health.AddCheck("redis", redisClient.Ping)
	}

	cache := insight.NewResultCache(cfg.Cache.TTL, logger, cacheOpts...)

	serviceOpts := []insight.ServiceOption{insight.WithMetrics(metrics)}

	// Optional query history.
	var history handlers.HistoryLister
	if cfg.Database.Enabled {
		conn, err := postgres.NewConnection(&cfg.Database, logger)
		if err != nil {
			return err
		}
		defer conn.Close()
		if err := conn.RunMigrations(cfg.Database.MigrationPath); err != nil {
			return err
		}
		repo := postgres.NewHistoryRepository(conn, logger)
		history = repo
		serviceOpts = append(serviceOpts, insight.WithHistory(repo))
		health.AddCheck("postgres", conn.HealthCheck)
	}

	// Optional event stream.
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(&cfg.Kafka, logger)
		defer producer.Close()
		serviceOpts = append(serviceOpts, insight.WithEvents(producer))
	}

	// Optional semantic layer: both the embedder and the exemplar index
	// must be up, otherwise classification starts at the hybrid layer.
	var semantic classify.Strategy
	if cfg.Embedding.Enabled && cfg.Milvus.Enabled {
		embedder, err := embedding.NewClient(&cfg.Embedding, logger)
		if err != nil {
			return err
		}
		milvusClient, err := milvus.NewClient(ctx, &cfg.Milvus, logger)
		if err != nil {
			return err
		}
		defer milvusClient.Close()
		index := milvus.NewExemplarIndex(milvusClient, &cfg.Milvus, logger)
		if err := index.EnsureCollection(ctx); err != nil {
			return err
		}
		semantic = classify.NewSemanticStrategy(embedder, index, logger)
	}

	classifier := classify.NewClassifier(semantic, logger)

	caller := endpoints.NewClient(cfg.Analysis.BaseURL, logger,
		endpoints.WithBreakerConfig(endpoints.BreakerConfig{
			FailureThreshold: cfg.Analysis.BreakerThreshold,
			OpenInterval:     cfg.Analysis.BreakerInterval,
		}))
	orchestrator := insight.NewOrchestrator(caller, logger, metrics)

	service := insight.NewService(reg, classifier, orchestrator, cache, logger, serviceOpts...)

	router := httpiface.NewRouter(httpiface.RouterConfig{
		InsightHandler:  handlers.NewInsightHandler(service, history, logger),
		EndpointHandler: handlers.NewEndpointHandler(reg),
		HealthHandler:   health,
		MetricsHandler:  metrics.Handler(),
		CORSOrigins:     cfg.Server.CORSOrigins,
		Logger:          logger,
	})
	server := httpiface.NewServer(&cfg.Server, router, logger)

	g, gctx := errgroup.WithContext(ctx)

	// Hot-reload the registry document; a swap invalidates the cache so
	// stale rankings never outlive the tables that produced them.
	if cfg.Registry.WatchReload {
		watcher, err := registry.NewWatcher(cfg.Registry.Path, reg, logger, func(*registry.Snapshot) {
			cache.InvalidateAll()
		})
		if err != nil {
			return err
		}
		g.Go(func() error { return watcher.Run(gctx) })
	}

	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		return server.Stop(context.Background())
	})

	return g.Wait()
}
