package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codepad/internal/server/api"
	"codepad/internal/server/config"
	"codepad/internal/server/database"
	"codepad/internal/server/service"
	"codepad/internal/server/storage"
	"codepad/internal/util"
	"codepad/internal/workspace"

	"github.com/rs/zerolog/log"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Structured logging
	util.InitializeLogger(cfg.LogLevel, cfg.LogFormat)
	logger := util.GetLogger("server")
	logger.Info().
		Str("port", cfg.Port).
		Str("storage_backend", cfg.StorageBackend).
		Dur("autosave_interval", cfg.AutosaveInterval).
		Dur("save_timeout", cfg.SaveTimeout).
		Msg("configuration loaded")

	ctx := context.Background()
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.StorageBackend).Msg("failed to initialize storage")
	}
	defer closeStore()

	// Initialize workspaces and service
	registry := workspace.NewRegistry(store, workspace.Options{SaveTimeout: cfg.SaveTimeout})
	svc := service.NewProjectService(store, registry, cfg)
	if cfg.SeedDefaultProject {
		if err := svc.SeedDefault(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to seed default project")
		}
	}

	// Start autosave
	autosaveCtx, autosaveCancel := context.WithCancel(context.Background())
	autosaver := workspace.NewAutosaver(registry, cfg.AutosaveInterval)
	autosaver.Start(autosaveCtx)

	// Setup HTTP router
	handler := api.NewHandler(svc)
	socket := api.NewWorkspaceSocket(svc, cfg.MaxBodyBytes)
	e := api.SetupRouter(handler, socket, cfg)

	// Start server in a goroutine
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		logger.Info().Str("addr", addr).Str("base_url", cfg.BaseURL).Msg("starting server")
		if err := e.Start(addr); err != nil {
			logger.Info().Err(err).Msg("server stopped")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info().Str("signal", sig.String()).Msg("shutting down")

	// Stop accepting new requests, finish in-flight with 30s timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	// Stop autosave, then flush and close every workspace
	autosaveCancel()
	autosaver.Wait()

	if err := registry.EvictAll(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to flush workspaces")
	}

	logger.Info().Msg("server exited cleanly")
}

// openStore builds the configured storage backend and a function releasing it.
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, func(), error) {
	switch cfg.StorageBackend {
	case config.BackendFilesystem:
		store := storage.NewFileSystemStore(cfg.StoragePath)
		if err := store.EnsureDir(); err != nil {
			return nil, nil, err
		}
		log.Info().Str("path", cfg.StoragePath).Msg("file storage initialized")
		return store, func() {}, nil

	case config.BackendPostgres:
		db, err := database.New(ctx, cfg.DatabaseURL, int32(cfg.DatabaseMaxConns))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.RunMigrations(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info().Msg("database migrations complete")
		return database.NewRepository(db), db.Close, nil

	default:
		log.Info().Msg("in-memory storage initialized")
		return storage.NewMemoryStore(), func() {}, nil
	}
}
