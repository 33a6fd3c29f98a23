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

	"github.com/querybridge/querybridge/internal/api"
	"github.com/querybridge/querybridge/internal/api/uistatic"
	"github.com/querybridge/querybridge/internal/auth"
	"github.com/querybridge/querybridge/internal/catalog"
	"github.com/querybridge/querybridge/internal/config"
	"github.com/querybridge/querybridge/internal/dbfile"
	"github.com/querybridge/querybridge/internal/export"
	"github.com/querybridge/querybridge/internal/history"
	historypostgres "github.com/querybridge/querybridge/internal/history/postgres"
	"github.com/querybridge/querybridge/internal/nl2sql"
	"github.com/querybridge/querybridge/internal/observability"
	"github.com/querybridge/querybridge/internal/pipeline"
	"github.com/querybridge/querybridge/internal/query/filedb"
	"github.com/querybridge/querybridge/internal/schema"
	s3store "github.com/querybridge/querybridge/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("querybridge-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	dialect, err := dbfile.ParseDialect(cfg.Storage.Engine)
	if err != nil {
		logger.Error("invalid storage engine", slog.Any("error", err))
		os.Exit(1)
	}
	if err := catalog.EnsureDirectory(cfg.Storage.DataDir); err != nil {
		logger.Error("failed to prepare data directory", slog.Any("error", err))
		os.Exit(1)
	}

	translator, err := nl2sql.New(nl2sql.Config{
		Provider:    cfg.AI.Provider,
		BaseURL:     cfg.AI.BaseURL,
		APIKey:      cfg.AI.APIKey,
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		Timeout:     cfg.AI.Timeout,
	})
	if err != nil {
		logger.Error("failed to initialize completion backend", slog.Any("error", err))
		os.Exit(1)
	}
	if cfg.AI.APIKey == "" {
		logger.Warn("completion backend api key is not configured; questions will not be translated")
	}

	var historyStore history.Store
	if cfg.History.DSN != "" {
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
		historyStore = historypostgres.NewRepository(historyDB)
	}

	readiness := []api.ReadinessCheck{
		api.CheckDataDir(cfg),
		api.CheckHistory(historyStore),
		api.CheckObjectStoreConfig(cfg),
	}

	var exporter api.ResultExporter
	if cfg.Export.Enabled {
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
		exporter = export.NewExporter(objectStore, historyStore, logger)
		readiness = append(readiness, objectStore.Ping)
	}

	service := pipeline.NewService(pipeline.Config{
		Dialect:       dialect,
		ReadOnly:      cfg.Query.ReadOnly,
		RowLimit:      cfg.Query.RowLimit,
		SchemaContext: cfg.Prompt.SchemaContext,
	}, translator, filedb.NewEngine(dialect, cfg.Query.Timeout), historyStore, logger)

	deps := api.Dependencies{
		Logger:            logger,
		Pipeline:          service,
		SchemaAdmin:       schema.NewAdmin(dialect, logger),
		Translator:        translator,
		History:           historyStore,
		Exporter:          exporter,
		UI:                uistatic.Handler(),
		Readiness:         api.CombineReadinessChecks(readiness...),
		DependencyTimeout: time.Second,
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
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("data_dir", cfg.Storage.DataDir),
			slog.String("sqlite_driver", dbfile.DriverType()),
			slog.Bool("history", historyStore != nil),
			slog.Bool("export", exporter != nil),
		)
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
