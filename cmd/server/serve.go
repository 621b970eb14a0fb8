package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rpattn/socialql/internal/config"
	"github.com/rpattn/socialql/internal/db"
	"github.com/rpattn/socialql/internal/graphql"
	"github.com/rpattn/socialql/internal/loader"
	"github.com/rpattn/socialql/internal/logging"
	"github.com/rpattn/socialql/internal/repository"
	"github.com/rpattn/socialql/internal/server"
	"github.com/rpattn/socialql/internal/telemetry"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the GraphQL server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
		return serve(cmd.Context(), cfg, logger)
	},
}

func serve(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry.Endpoint, cfg.Telemetry.ServiceName)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("failed to flush traces", zap.Error(err))
		}
	}()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	loaderOpts := loader.Options{Wait: cfg.Loader.Wait, MaxBatch: cfg.Loader.MaxBatch, Logger: logger}
	svc, err := graphql.NewService(store, graphql.Config{
		MaxDepth:             cfg.Query.MaxDepth,
		DisableIntrospection: !cfg.Query.Introspection,
		Loader:               loaderOpts,
		Logger:               logger,
	})
	if err != nil {
		return fmt.Errorf("failed to build graphql service: %w", err)
	}

	httpServer := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: server.NewRouter(svc, store, server.Options{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			Playground:     cfg.Server.Playground,
			RequestTimeout: cfg.Server.RequestTimeout,
			Loader:         loaderOpts,
			Logger:         logger,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting graphql server",
			zap.String("addr", cfg.Server.Addr),
			zap.String("store", cfg.Store.Driver),
			zap.Bool("playground", cfg.Server.Playground),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server exited")
	return nil
}

// openStore builds the configured store. The returned func releases it.
func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (repository.Store, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		conn, err := db.NewConnection(ctx, cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.RunMigrations(conn.SQL(), logger); err != nil {
			conn.Close()
			return nil, nil, err
		}
		return repository.NewTracingStore(repository.NewSQLStore(conn.SQL())), conn.Close, nil
	default:
		mem := repository.NewMemoryStore()
		if err := repository.SeedDemo(mem); err != nil {
			return nil, nil, err
		}
		logger.Info("using in-memory store with demo data")
		return repository.NewTracingStore(mem), func() {}, nil
	}
}
