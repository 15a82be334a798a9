package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/shoptalk/shoptalk/internal/config"
	"github.com/shoptalk/shoptalk/internal/demo/dataset"
	s3store "github.com/shoptalk/shoptalk/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("shoptalk-demo-dataset")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	datasetCfg, err := dataset.LoadConfigFromEnv(os.LookupEnv)
	if err != nil {
		slog.Error("failed to load demo dataset config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := s3store.New(ctx, s3store.Config{
		Endpoint:         cfg.ObjectStore.Endpoint,
		Region:           cfg.ObjectStore.Region,
		Bucket:           cfg.ObjectStore.Bucket,
		AccessKeyID:      cfg.ObjectStore.AccessKeyID,
		SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
		UseSSL:           cfg.ObjectStore.UseSSL,
		Prefix:           cfg.ObjectStore.Prefix,
		AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
	})
	if err != nil {
		logger.Error("failed to initialize object store", slog.Any("error", err))
		os.Exit(1)
	}

	writer, err := dataset.NewWriter(datasetCfg, logger, store)
	if err != nil {
		logger.Error("failed to initialize demo dataset writer", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info(
		"demo dataset writer started",
		slog.String("dataset", datasetCfg.DatasetName),
		slog.String("table", datasetCfg.TableName),
		slog.Int("rows", datasetCfg.Rows),
		slog.Int("part_size", datasetCfg.PartSize),
		slog.Int64("seed", datasetCfg.Seed),
	)

	parts, err := writer.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("demo dataset writer failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("demo dataset written", slog.Int("parts", parts))
}
