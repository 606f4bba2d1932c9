package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/painting-generator/internal/cache"
	"github.com/jonathan/painting-generator/internal/config"
	"github.com/jonathan/painting-generator/internal/eventbus"
	"github.com/jonathan/painting-generator/internal/imagegen"
	"github.com/jonathan/painting-generator/internal/llm"
	"github.com/jonathan/painting-generator/internal/logging"
	"github.com/jonathan/painting-generator/internal/orchestrator"
	"github.com/jonathan/painting-generator/internal/server"
	"github.com/jonathan/painting-generator/internal/server/ratelimit"
	"github.com/jonathan/painting-generator/internal/storage"
)

var (
	serveConfigPath      string
	servePort            int
	serveShutdownTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start an HTTP server that exposes the painting generation API and the
per-user event stream. Configuration is read from --config, then the
environment (DATABASE_URL, GEMINI_API_KEY, JWT_SECRET, ...).`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "Path to a YAML or JSON config file")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config and PORT)")
	serveCmd.Flags().DurationVar(&serveShutdownTimeout, "shutdown-timeout", 2*time.Minute, "How long to wait for requests and active generations on shutdown")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(serveConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if servePort != 0 {
		cfg.Port = servePort
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	defer zap.ReplaceGlobals(logger)()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, backend, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer repo.Close() //nolint:errcheck
	if err := repo.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("repository ready", zap.String("backend", backend))

	refCache, closeCache := openCache(ctx, cfg, logger)
	defer closeCache()

	uploads, err := storage.NewLocal(cfg.UploadDir)
	if err != nil {
		return err
	}

	llmConfig := llm.DefaultConfig().WithModel(cfg.Generation.IdeaModel)
	llmClient, err := llm.NewClient(ctx, llmConfig, cfg.Generation.GeminiAPIKey)
	if err != nil {
		return fmt.Errorf("failed to create idea model client: %w", err)
	}
	defer llmClient.Close() //nolint:errcheck

	images, err := imagegen.New(ctx, imagegen.Options{
		Provider:      cfg.Generation.ImageProvider,
		Model:         cfg.Generation.ImageModel,
		GeminiAPIKey:  cfg.Generation.GeminiAPIKey,
		ArkAPIKey:     cfg.Generation.ArkAPIKey,
		MaxReferences: cfg.Generation.MaxReferences,
	}, uploads)
	if err != nil {
		return fmt.Errorf("failed to create image provider: %w", err)
	}

	bus := eventbus.New(logger.Named("eventbus"))
	orch := orchestrator.New(repo, llm.NewIdeaGenerator(llmClient, llmConfig.MaxAttempts), images, bus, orchestrator.Config{
		Concurrency:     cfg.Generation.Concurrency,
		DefaultQuantity: cfg.Generation.DefaultQuantity,
		MaxQuantity:     cfg.Generation.MaxQuantity,
	}, logger.Named("orchestrator"))

	srv, err := server.New(fmt.Sprintf(":%d", cfg.Port), server.Deps{
		Store:     repo,
		Generator: orch,
		Events:    bus,
		Cache:     refCache,
		Uploads:   uploads.Handler(),
		JWT:       cfg.JWT(),
		Password:  cfg.Password(),
		RateLimit: ratelimit.Config{
			Enabled:         cfg.RateLimit.Enabled,
			DefaultRPS:      cfg.RateLimit.DefaultRPS,
			DefaultBurst:    cfg.RateLimit.DefaultBurst,
			CleanupInterval: 5 * time.Minute,
			IdleTTL:         time.Hour,
			EndpointConfigs: ratelimit.DefaultEndpointConfigs(cfg.RateLimit.GenerateRPS, cfg.RateLimit.GenerateBurst),
		},
		Public: server.PublicConfig{
			ImageProvider:   cfg.Generation.ImageProvider,
			DefaultQuantity: cfg.Generation.DefaultQuantity,
			MaxQuantity:     cfg.Generation.MaxQuantity,
			MaxReferences:   cfg.Generation.MaxReferences,
		},
		Logger: logger.Named("server"),
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down",
		zap.Duration("timeout", serveShutdownTimeout),
		zap.Int("stream_users", bus.Users()))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), serveShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	if err := orch.Wait(shutdownCtx); err != nil {
		logger.Warn("active generations did not finish before shutdown", zap.Error(err))
	}
	return nil
}

// openCache returns the Redis reference cache when REDIS_URL is set and a no-op cache otherwise.
func openCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) (cache.ReferenceCache, func()) {
	if cfg.RedisURL == "" {
		return cache.Noop{}, func() {}
	}

	rc, err := cache.NewRedisCacheFromURL(cfg.RedisURL, "", cfg.CacheTTL())
	if err != nil {
		logger.Warn("invalid REDIS_URL, reference cache disabled", zap.Error(err))
		return cache.Noop{}, func() {}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx); err != nil {
		logger.Warn("redis unreachable, reads fall back to the database", zap.Error(err))
	} else {
		logger.Info("reference cache enabled", zap.Duration("ttl", cfg.CacheTTL()))
	}
	return rc, func() { _ = rc.Close() }
}
