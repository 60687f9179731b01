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

	"github.com/joho/godotenv"

	"github.com/askcsv/askcsv/internal/api"
	"github.com/askcsv/askcsv/internal/auth"
	"github.com/askcsv/askcsv/internal/catalogfs"
	"github.com/askcsv/askcsv/internal/config"
	"github.com/askcsv/askcsv/internal/executor"
	"github.com/askcsv/askcsv/internal/history"
	"github.com/askcsv/askcsv/internal/ingest"
	"github.com/askcsv/askcsv/internal/nl2sql"
	"github.com/askcsv/askcsv/internal/observability"
	s3source "github.com/askcsv/askcsv/internal/source/s3"
	"github.com/askcsv/askcsv/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv("askcsv-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	tabularStore, err := store.Open(cfg.Data.Directory)
	if err != nil {
		logger.Error("failed to open store", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = tabularStore.Close() }()

	startupCtx := context.Background()

	if cfg.Source.Endpoint != "" && cfg.Source.Bucket != "" {
		syncer, err := s3source.New(s3source.Config{
			Endpoint:        cfg.Source.Endpoint,
			Region:          cfg.Source.Region,
			Bucket:          cfg.Source.Bucket,
			AccessKeyID:     cfg.Source.AccessKeyID,
			SecretAccessKey: cfg.Source.SecretAccessKey,
			UseSSL:          cfg.Source.UseSSL,
			Prefix:          cfg.Source.Prefix,
		}, cfg.Data.Directory, logger)
		if err != nil {
			logger.Error("failed to initialize dataset sync", slog.Any("error", err))
			os.Exit(1)
		}
		summary, err := syncer.Sync(startupCtx)
		if err != nil {
			logger.Error("dataset sync failed", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("dataset sync complete",
			slog.Int("downloaded", summary.Downloaded),
			slog.Int("skipped", summary.Skipped),
		)
	}

	loader := &ingest.Loader{Store: tabularStore, Logger: logger}
	summary := loader.Load(startupCtx)
	logger.Info("csv ingestion complete",
		slog.Int("files", summary.Files),
		slog.Int("loaded", summary.Loaded),
		slog.Int("skipped", summary.Skipped),
		slog.Int("rows", summary.Rows),
		slog.Int("conflicts", summary.Conflict),
	)

	var historyRepo *history.Repository
	if cfg.History.DSN != "" {
		historyDB, err := history.Open(startupCtx, history.DBConfig{
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
		historyRepo = history.NewRepository(historyDB)
		if err := historyRepo.EnsureSchema(startupCtx); err != nil {
			logger.Error("failed to prepare history schema", slog.Any("error", err))
			os.Exit(1)
		}
	}

	var translator nl2sql.Translator
	if cfg.AI.TranslateEnabled {
		translator, err = nl2sql.NewOpenAITranslator(nl2sql.OpenAIConfig{
			BaseURL:     cfg.AI.BaseURL,
			APIKey:      cfg.AI.APIKey,
			Model:       cfg.AI.Model,
			Temperature: cfg.AI.Temperature,
			Timeout:     cfg.AI.Timeout,
		})
		if err != nil {
			logger.Error("failed to initialize translator", slog.Any("error", err))
			os.Exit(1)
		}
	}

	deps := api.Dependencies{
		Logger:            logger,
		Readiness:         api.CheckStore(tabularStore),
		DependencyTimeout: time.Second,
		Catalog:           catalogfs.New(cfg.Data.Directory),
		Executor:          executor.New(tabularStore, logger),
		Store:             tabularStore,
		Translator:        translator,
		History:           historyRepo,
		PreviewRows:       cfg.Data.PreviewRows,
		SchemaSampleRows:  cfg.Data.SchemaSampleRows,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
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
