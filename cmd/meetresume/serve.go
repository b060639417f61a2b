package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/PedroOSilv/meetResume/internal/archive"
	"github.com/PedroOSilv/meetResume/internal/config"
	"github.com/PedroOSilv/meetResume/internal/metrics"
	"github.com/PedroOSilv/meetResume/internal/retry"
	"github.com/PedroOSilv/meetResume/internal/server"
	"github.com/PedroOSilv/meetResume/internal/session"
	"github.com/PedroOSilv/meetResume/internal/summary"
	"github.com/PedroOSilv/meetResume/internal/transcription"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the transcription and summarization API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateServer(); err != nil {
		return err
	}

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", configPath),
	)
	logger.Info("Configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("environment", cfg.Server.Environment),
		slog.String("store", cfg.Store.Backend),
		slog.String("transcription_provider", cfg.Transcription.Provider),
		slog.String("transcription_model", cfg.Transcription.Model),
		slog.String("summarization_model", cfg.Summarization.Model),
		slog.Duration("idle_timeout", cfg.Session.GetIdleTimeoutDuration()),
		slog.Bool("auth", cfg.Auth.Enabled),
		slog.Bool("assistant", cfg.Assistant.Enabled),
		slog.Bool("archive", cfg.Archive.Enabled),
		slog.String("log_level", cfg.Logging.Level),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.NewMetrics(registry)
	logger.Info("Prometheus metrics initialized")

	store, closeStore, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	transcriber, err := transcription.New(transcription.Config{
		Provider:      cfg.Transcription.Provider,
		Endpoint:      cfg.Transcription.Endpoint,
		APIKey:        cfg.Transcription.APIKey,
		Model:         cfg.Transcription.Model,
		Timeout:       cfg.Transcription.GetTimeoutDuration(),
		MaxConcurrent: cfg.Transcription.MaxConcurrent,
		OutputFormat:  cfg.Transcription.OutputFormat,
	})
	if err != nil {
		return fmt.Errorf("failed to create transcriber: %w", err)
	}

	chat, err := summary.NewOpenAIChat(summary.OpenAIConfig{
		APIKey:  cfg.Summarization.APIKey,
		BaseURL: cfg.Summarization.BaseURL,
		Model:   cfg.Summarization.Model,
		Timeout: cfg.Summarization.GetTimeoutDuration(),
	})
	if err != nil {
		return fmt.Errorf("failed to create chat model: %w", err)
	}
	summarizer := summary.NewSummarizer(chat, cfg.Summarization.SystemPrompt, summary.Params{
		MaxTokens:   cfg.Summarization.MaxTokens,
		Temperature: cfg.Summarization.Temperature,
	})

	var opts []server.Option
	opts = append(opts, server.WithGatherer(registry))

	var archiver session.Archiver
	if cfg.Archive.Enabled {
		db, err := archive.Open(cfg.Archive.Path)
		if err != nil {
			return fmt.Errorf("failed to open archive: %w", err)
		}
		defer db.Close()
		archiver = db
		opts = append(opts, server.WithArchive(db))
		logger.Info("Session archive opened", slog.String("path", cfg.Archive.Path))
	}

	if cfg.Auth.Enabled {
		opts = append(opts, server.WithAuthenticator(server.NewStaticTokenAuthenticator(cfg.Auth.Tokens)))
	}

	if cfg.Assistant.Enabled {
		assistantChat, err := summary.NewOpenAIChat(summary.OpenAIConfig{
			APIKey:  cfg.Summarization.APIKey,
			BaseURL: cfg.Summarization.BaseURL,
			Model:   cfg.Assistant.Model,
			Timeout: cfg.Summarization.GetTimeoutDuration(),
		})
		if err != nil {
			return fmt.Errorf("failed to create assistant model: %w", err)
		}
		opts = append(opts, server.WithAssistant(summary.NewAssistant(assistantChat),
			cfg.Assistant.RatePerMinute, cfg.Assistant.Burst))
	}

	manager, err := session.NewManager(logger, store, session.Options{
		IdleTimeout:   cfg.Session.GetIdleTimeoutDuration(),
		SweepInterval: cfg.Session.GetSweepIntervalDuration(),
		UploadDir:     cfg.Server.UploadDir,
		Language:      cfg.Server.Language,
		TranscribeRetry: retry.Policy{
			MaxAttempts: cfg.Transcription.MaxRetries,
			BaseDelay:   cfg.Transcription.GetRetryDelayDuration(),
		},
		SummarizeRetry:   cfg.Summarization.GetRetryPolicy(),
		SummarizeTimeout: cfg.Summarization.GetTimeoutDuration(),
	}, transcriber, summarizer, archiver, appMetrics)
	if err != nil {
		return fmt.Errorf("failed to create session manager: %w", err)
	}
	logger.Info("Session manager initialized",
		slog.Duration("idle_timeout", manager.IdleTimeout()),
		slog.Duration("finalize_budget", manager.FinalizeBudget()),
		slog.String("upload_dir", cfg.Server.UploadDir),
	)

	httpServer := server.NewHTTPServer(cfg, logger, manager, appMetrics, opts...)
	if err := httpServer.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("address", fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port)),
	)

	<-ctx.Done()
	logger.Info("Starting graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GetShutdownTimeoutDuration())
	defer cancel()

	// stop accepting requests before releasing anything they use
	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
	}
	manager.Stop()

	// redis sessions outlive this process; memory ones do not
	if cfg.Store.Backend != "redis" {
		released := manager.ReleaseAll(shutdownCtx)
		logger.Info("Released live sessions", slog.Int("count", released))
	}

	logger.Info("Service stopped")
	return nil
}

// openStore builds the configured session store and its cleanup function
func openStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (session.Store, func(), error) {
	if cfg.Backend != "redis" {
		logger.Info("Using in-memory session store")
		return session.NewMemoryStore(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	logger.Info("Using redis session store",
		slog.String("addr", cfg.Addr),
		slog.String("prefix", cfg.Prefix),
		slog.Duration("ttl", cfg.GetTTLDuration()),
	)

	store := session.NewRedisStore(client, session.WithPrefix(cfg.Prefix), session.WithTTL(cfg.GetTTLDuration()))
	return store, func() { _ = client.Close() }, nil
}
