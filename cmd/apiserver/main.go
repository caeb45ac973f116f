// API server entry point for ClinSight.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/scribemed/clinsight/internal/application/terminology"
	"github.com/scribemed/clinsight/internal/application/triage"
	"github.com/scribemed/clinsight/internal/config"
	"github.com/scribemed/clinsight/internal/infrastructure/database/postgres"
	"github.com/scribemed/clinsight/internal/infrastructure/database/postgres/repositories"
	"github.com/scribemed/clinsight/internal/infrastructure/database/redis"
	"github.com/scribemed/clinsight/internal/infrastructure/messaging/kafka"
	"github.com/scribemed/clinsight/internal/infrastructure/model"
	"github.com/scribemed/clinsight/internal/infrastructure/monitoring/logging"
	"github.com/scribemed/clinsight/internal/infrastructure/monitoring/prometheus"
	"github.com/scribemed/clinsight/internal/infrastructure/search/opensearch"
	"github.com/scribemed/clinsight/internal/infrastructure/storage/minio"
	"github.com/scribemed/clinsight/internal/intelligence/termmap"
	httpserver "github.com/scribemed/clinsight/internal/interfaces/http"
	"github.com/scribemed/clinsight/internal/interfaces/http/handlers"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	if err := run(cfg, logger); err != nil {
		logger.Error("apiserver exited with error", logging.Err(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger logging.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("starting clinsight api server",
		logging.Int("port", cfg.Server.Port),
		logging.String("mode", cfg.Server.Mode),
	)

	if err := postgres.RunMigrations(cfg.Database.DSN(), cfg.Database.MigrationsPath); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	conn, err := postgres.NewConnection(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer conn.Close()

	redisClient, err := redis.NewClient(cfg.Redis, logger)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()
	cache := redis.NewCache(redisClient, logger)

	runtime := model.NewHTTPRuntime(model.Config{
		BaseURL:            cfg.Model.BaseURL,
		CompletionModel:    cfg.Model.CompletionModel,
		EmbeddingModel:     cfg.Model.EmbeddingModel,
		RequestTimeout:     cfg.Model.RequestTimeout,
		EmbedTimeout:       cfg.Model.EmbedTimeout,
		DownloadPollPeriod: cfg.Model.DownloadPollPeriod,
	}, logger)

	collector := prometheus.NewCollector(prometheus.CollectorConfig{
		Namespace:            "clinsight",
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, logger)
	metrics := prometheus.NewAppMetrics(collector)

	repo := repositories.NewTerminologyRepository(conn.Pool(), logger)

	// Lexical search runs against OpenSearch when enabled, otherwise the
	// descriptions table serves trigram search directly.
	var lexical termmap.LexicalSearcher = repo
	backendName := "postgres"
	var indexer terminology.DescriptionIndexer
	if cfg.OpenSearch.Enabled {
		osClient, err := opensearch.NewClient(cfg.OpenSearch, logger)
		if err != nil {
			return fmt.Errorf("connect opensearch: %w", err)
		}
		lexical = osClient
		backendName = "opensearch"
		indexer = osClient
	}
	searchService := terminology.NewSearchService(lexical, backendName, cache, metrics, logger)

	// Snapshot imports are served best-effort: without object storage the API
	// still runs, and POST /terminology/import reports the store as absent.
	var store minio.SnapshotStore
	if s, err := minio.NewSnapshotStore(ctx, cfg.MinIO, logger); err != nil {
		logger.Warn("object store unavailable, snapshot imports disabled", logging.Err(err))
	} else {
		store = s
	}
	importer := terminology.NewImporter(repo, indexer, store, logger)

	embedder := model.NewCachedEmbedder(runtime, cache, cfg.Model.EmbeddingModel, cfg.Redis.DefaultTTL, logger)
	reranker := termmap.NewEmbeddingReranker(embedder, cfg.Model.EmbedConcurrency, logger)
	mapper := termmap.NewHybridMapper(searchService, reranker, termmap.MapperConfig{
		LexicalLimit: cfg.Terminology.LexicalLimit,
		RerankKeep:   cfg.Terminology.RerankKeep,
	}, logger)

	var audit triage.AuditPublisher
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(cfg.Kafka, logger)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		defer producer.Close()
		audit = producer
	}

	prompts := triage.NewPromptStore(cfg.Prompts.Dir, logger)
	defer prompts.Close()

	triageService := triage.NewService(runtime, mapper, prompts, audit, metrics, logger)

	srv := httpserver.NewServer(cfg.Server, httpserver.RouterConfig{
		TriageHandler:      handlers.NewTriageHandler(triageService),
		TerminologyHandler: handlers.NewTerminologyHandler(searchService, importer),
		ModelHandler:       handlers.NewModelHandler(runtime),
		HealthHandler: handlers.NewHealthHandler(map[string]handlers.Pinger{
			"postgres": conn,
			"redis":    redisClient,
		}, runtime),
		MetricsHandler: collector.Handler(),
		Logger:         logger,
		Metrics:        metrics,
	}, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("shutdown signal received", logging.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	if err := srv.Stop(context.Background()); err != nil {
		logger.Error("http server shutdown error", logging.Err(err))
	}
	logger.Info("server stopped")
	return nil
}

// loadConfig reads the YAML file at path, falling back to environment-only
// configuration when the file does not exist.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.LoadFromEnv()
	}
	return config.Load(path)
}
