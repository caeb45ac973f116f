// Terminology import worker for ClinSight.
//
// The worker seeds and refreshes the terminology store from release snapshots
// in object storage.  On startup it imports the configured snapshot object
// whenever the descriptions table is empty, then keeps polling the bucket so
// a freshly-provisioned environment picks up the snapshot as soon as it is
// uploaded.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scribemed/clinsight/internal/application/terminology"
	"github.com/scribemed/clinsight/internal/config"
	"github.com/scribemed/clinsight/internal/infrastructure/database/postgres"
	"github.com/scribemed/clinsight/internal/infrastructure/database/postgres/repositories"
	"github.com/scribemed/clinsight/internal/infrastructure/monitoring/logging"
	"github.com/scribemed/clinsight/internal/infrastructure/search/opensearch"
	"github.com/scribemed/clinsight/internal/infrastructure/storage/minio"
)

const (
	defaultConfigPath   = "configs/config.yaml"
	defaultSnapshotName = "sct2_Description_Snapshot.txt"
	defaultPollInterval = time.Minute
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	object := flag.String("object", defaultSnapshotName, "snapshot object name in the terminology bucket")
	interval := flag.Duration("interval", defaultPollInterval, "bucket poll interval")
	force := flag.Bool("force", false, "import immediately even when the store is already populated")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger = logger.Named("worker")

	if err := run(cfg, *object, *interval, *force, logger); err != nil {
		logger.Error("worker exited with error", logging.Err(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, object string, interval time.Duration, force bool, logger logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := postgres.RunMigrations(cfg.Database.DSN(), cfg.Database.MigrationsPath); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	conn, err := postgres.NewConnection(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer conn.Close()

	store, err := minio.NewSnapshotStore(ctx, cfg.MinIO, logger)
	if err != nil {
		return fmt.Errorf("connect minio: %w", err)
	}

	repo := repositories.NewTerminologyRepository(conn.Pool(), logger)

	var indexer terminology.DescriptionIndexer
	if cfg.OpenSearch.Enabled {
		osClient, err := opensearch.NewClient(cfg.OpenSearch, logger)
		if err != nil {
			return fmt.Errorf("connect opensearch: %w", err)
		}
		indexer = osClient
	}
	importer := terminology.NewImporter(repo, indexer, store, logger)

	logger.Info("terminology import worker started",
		logging.String("bucket", cfg.MinIO.Bucket),
		logging.String("object", object),
		logging.Duration("interval", interval),
	)

	if done, err := importOnce(ctx, repo, store, importer, object, force, logger); err != nil {
		return err
	} else if done && force {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("worker stopping")
			return nil
		case <-ticker.C:
			if _, err := importOnce(ctx, repo, store, importer, object, false, logger); err != nil {
				return err
			}
		}
	}
}

// importOnce imports the snapshot when the store needs seeding.  It reports
// whether an import ran.  Transient errors (missing object, unreachable
// storage) are logged and retried on the next tick; a failed import of a
// present snapshot is fatal so the orchestrator restarts the worker cleanly.
func importOnce(
	ctx context.Context,
	repo *repositories.TerminologyRepository,
	store minio.SnapshotStore,
	importer *terminology.Importer,
	object string,
	force bool,
	logger logging.Logger,
) (bool, error) {
	if ctx.Err() != nil {
		return false, nil
	}

	if !force {
		count, err := repo.Count(ctx)
		if err != nil {
			logger.Warn("failed to count descriptions, will retry", logging.Err(err))
			return false, nil
		}
		if count > 0 {
			return false, nil
		}
	}

	exists, err := store.Exists(ctx, object)
	if err != nil {
		logger.Warn("failed to probe snapshot object, will retry", logging.Err(err))
		return false, nil
	}
	if !exists {
		logger.Info("snapshot object not present yet", logging.String("object", object))
		return false, nil
	}

	start := time.Now()
	stats, err := importer.ImportSnapshot(ctx, object)
	if err != nil {
		return false, fmt.Errorf("import snapshot %q: %w", object, err)
	}
	logger.Info("snapshot import finished",
		logging.String("object", object),
		logging.Int64("imported", stats.Imported),
		logging.Int64("skipped_inactive", stats.SkippedInactive),
		logging.Int64("skipped_malformed", stats.SkippedMalformed),
		logging.Duration("elapsed", time.Since(start)),
	)
	return true, nil
}

func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.LoadFromEnv()
	}
	return config.Load(path)
}
