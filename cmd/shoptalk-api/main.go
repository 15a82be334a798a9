package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shoptalk/shoptalk/internal/api"
	"github.com/shoptalk/shoptalk/internal/config"
	"github.com/shoptalk/shoptalk/internal/conversation"
	historypostgres "github.com/shoptalk/shoptalk/internal/history/postgres"
	"github.com/shoptalk/shoptalk/internal/nl2sql"
	"github.com/shoptalk/shoptalk/internal/observability"
	duckdbengine "github.com/shoptalk/shoptalk/internal/query/duckdb"
	"github.com/shoptalk/shoptalk/internal/schema"
	s3store "github.com/shoptalk/shoptalk/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("shoptalk-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	historyDB, err := historypostgres.Open(context.Background(), historypostgres.DBConfig{
		DSN:             cfg.History.DSN,
		MaxOpenConns:    cfg.History.MaxOpenConns,
		MaxIdleConns:    cfg.History.MaxIdleConns,
		ConnMaxIdleTime: cfg.History.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.History.ConnMaxLifetime,
	})
	if err != nil {
		logger.Error("failed to open history db", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = historyDB.Close() }()

	historyStore := historypostgres.NewStore(historyDB)
	queryEngine, err := duckdbengine.Open(context.Background(), cfg.Warehouse.Path)
	if err != nil {
		logger.Error("failed to open warehouse", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = queryEngine.Close() }()

	if cfg.ObjectStore.Endpoint != "" && cfg.Warehouse.DatasetPrefix != "" {
		objectStore, err := s3store.New(context.Background(), s3store.Config{
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
		if err := queryEngine.AttachDataset(context.Background(), objectStore, cfg.Warehouse.DatasetPrefix); err != nil {
			logger.Error("failed to attach dataset", slog.Any("error", err))
			os.Exit(1)
		}
	}

	// The catalog is loaded once at startup. A warehouse without tables
	// is a deployment error, not something to limp along with.
	catalog, err := schema.Load(context.Background(), queryEngine)
	if err != nil {
		logger.Error("failed to load schema catalog", slog.Any("error", err))
		os.Exit(1)
	}

	translator, err := nl2sql.NewOpenAITranslator(nl2sql.OpenAIConfig{
		BaseURL:     cfg.AI.BaseURL,
		APIKey:      cfg.AI.APIKey,
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		Timeout:     cfg.AI.Timeout,
	})
	if err != nil {
		logger.Error("failed to initialize query translator", slog.Any("error", err))
		os.Exit(1)
	}

	engine, err := conversation.NewEngine(conversation.Config{
		Catalog:       catalog,
		Translator:    translator,
		Executor:      queryEngine,
		History:       historyStore,
		Logger:        logger,
		ReplayLimit:   cfg.Chat.ReplayLimit,
		ContextWindow: cfg.Chat.ContextWindow,
		RowLimit:      cfg.Warehouse.RowLimit,
	})
	if err != nil {
		logger.Error("failed to build conversation engine", slog.Any("error", err))
		os.Exit(1)
	}

	deps := api.Dependencies{
		Logger:       logger,
		Conversation: engine,
		History:      historyStore,
		Catalog:      catalog,
		QueryEngine:  queryEngine,
		RowLimit:     cfg.Warehouse.RowLimit,
		Readiness: api.CombineReadinessChecks(
			historyStore.HealthCheck,
			api.CheckWarehousePath(cfg),
		),
		DependencyTimeout: time.Second,
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
