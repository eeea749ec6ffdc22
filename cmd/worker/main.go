package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"server/internal/adapter/repo"
	"server/internal/db"
	"server/internal/infra"
	"server/internal/providers/image"
	"server/internal/storage"
	"server/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	if err := db.EnsureSchema(ctx, dbpool); err != nil {
		logger.Fatal().Err(err).Msg("failed to ensure schema")
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}

	primary := image.NewReplicateClient(image.ReplicateOptions{
		APIToken:     cfg.ReplicateAPIToken,
		BaseURL:      cfg.ReplicateBaseURL,
		Logger:       &logger,
		PollInterval: cfg.ProviderPollEvery,
		Timeout:      cfg.ProviderTimeout,
	})
	fallback := image.NewSpaceClient(image.SpaceOptions{
		APIToken: cfg.HFAPIToken,
		Space:    cfg.HFSpace,
		Logger:   &logger,
		Timeout:  cfg.ProviderTimeout,
	})
	chain := image.NewChain(logger, primary, fallback)

	w := worker.New(worker.Options{
		Jobs:         repo.NewJobRepository(dbpool),
		Images:       repo.NewGeneratedImageRepository(dbpool),
		Uploads:      repo.NewUploadedImageRepository(dbpool),
		Styles:       repo.NewStyleRepository(dbpool),
		Generator:    chain,
		Store:        store,
		Logger:       logger,
		PollInterval: cfg.JobPollInterval,
		DefaultModel: cfg.HFDefaultModel,
		SignedURLTTL: cfg.SignedURLTTL,
	})

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker exited")
	}
	logger.Info().Msg("worker stopped")
}

func buildStore(ctx context.Context, cfg *infra.Config) (storage.ObjectStore, error) {
	if cfg.StorageBackend == "s3" {
		return storage.NewS3Store(ctx, storage.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	}
	return storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
}
