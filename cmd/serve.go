package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/uiua-boo/registry/internal/config"
	"github.com/uiua-boo/registry/internal/infrastructure/sqlite"
	"github.com/uiua-boo/registry/internal/log"
	"github.com/uiua-boo/registry/internal/publish"
	"github.com/uiua-boo/registry/internal/publish/validator"
	"github.com/uiua-boo/registry/internal/registry/resolver"
	"github.com/uiua-boo/registry/internal/server"
	"github.com/uiua-boo/registry/internal/storage"
	"github.com/uiua-boo/registry/internal/tracing"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the registry server",
	Long: `Run the registry as a long-lived server exposing the HTTP JSON API
for publishing, resolution, and file browsing.

The server listens on the configured address (default: :8700) and keeps a
pool of background workers that process publish jobs.

Example:
  boo-registry serve                  # Start on the configured address
  boo-registry serve --addr :8080     # Start on port 8080
  boo-registry serve --addr localhost:0  # OS-assigned port`,
	RunE: runServe,
}

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Address to listen on (overrides config)")
}

// acceptAllValidator stands in when no external validator is configured.
type acceptAllValidator struct{}

func (acceptAllValidator) Validate(ctx context.Context, archivePath, fullName, version string) ([]validator.Problem, error) {
	return nil, nil
}

func runServe(_ *cobra.Command, _ []string) error {
	// Initialize logging if debug mode enabled (via flag or env var)
	debug := os.Getenv("BOO_REGISTRY_DEBUG") != "" || debugFlag
	if debug || cfg.Log.File != "" {
		logPath := cfg.Log.File
		if envPath := os.Getenv("BOO_REGISTRY_LOG"); envPath != "" {
			logPath = envPath
		}
		if logPath == "" {
			logPath = filepath.Join(cfg.DataDir, "debug.log")
		}

		cleanup, err := log.Init(logPath)
		if err != nil {
			return fmt.Errorf("initializing logging: %w", err)
		}
		defer cleanup()

		log.Info(log.CatConfig, "registry starting", "debug", debug, "logPath", logPath, "config", configFilePath())
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Tracing is a no-op unless enabled.
	traceFilePath := cfg.Tracing.FilePath
	if traceFilePath == "" {
		traceFilePath = config.DefaultTracesFilePath()
	}
	provider, err := tracing.NewProvider(tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		Exporter:     cfg.Tracing.Exporter,
		FilePath:     traceFilePath,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SampleRate:   cfg.Tracing.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}

	db, err := sqlite.NewDB(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() { _ = db.Close() }()

	fsStore, err := storage.NewFSStore(cfg.BlobRoot())
	if err != nil {
		return fmt.Errorf("opening blob store: %w", err)
	}
	var store storage.Store = fsStore
	if cfg.Storage.Retry {
		store = storage.NewRetryStore(fsStore, cfg.Storage.MaxRetries, cfg.Storage.RetryInterval)
	}

	res := resolver.New(db.PackageRepository(), db.VersionRepository(),
		cfg.Resolver.CacheTTL, cfg.Resolver.CacheDisabled)

	var archiveValidator publish.ArchiveValidator = acceptAllValidator{}
	if cfg.Publish.ValidatorPath != "" {
		archiveValidator = validator.NewClient(cfg.Publish.ValidatorPath, cfg.Publish.ValidatorTimeout)
	} else {
		log.Warn(log.CatPublish, "no archive validator configured, accepting all archives")
	}

	runner := publish.NewRunner(publish.RunnerConfig{
		Jobs:       db.JobRepository(),
		Packages:   db.PackageRepository(),
		UnitOfWork: db.UnitOfWork(),
		Store:      store,
		Validator:  archiveValidator,
		Cache:      res,
		Tracer:     provider.Tracer(),
	})
	pool := publish.NewPool(runner, publish.PoolConfig{
		Workers:   cfg.Publish.Workers,
		QueueSize: cfg.Publish.QueueSize,
	})

	service := publish.NewService(
		db.JobRepository(), db.PackageRepository(), db.VersionRepository(), store, pool)

	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}
	srv, err := server.NewServer(server.ServerConfig{
		Addr:        addr,
		ReadTimeout: cfg.Server.ReadTimeout,
		Handler: server.HandlerConfig{
			Publisher: service,
			Resolver:  res,
			Files:     db.FileRepository(),
			Store:     store,
			Events:    pool,
		},
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	fmt.Printf("boo-registry started on port %d\n", srv.Port())
	fmt.Println("Press Ctrl+C to stop")

	select {
	case sig := <-sigCh:
		fmt.Printf("\nReceived %s, shutting down...\n", sig)
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown: stop accepting requests, then drain the workers.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		log.ErrorErr(log.CatHTTP, "error stopping server", err)
	}
	pool.Close()

	if err := provider.Shutdown(shutdownCtx); err != nil {
		log.ErrorErr(log.CatConfig, "error shutting down tracing", err)
	}

	fmt.Println("Registry stopped")
	return nil
}
