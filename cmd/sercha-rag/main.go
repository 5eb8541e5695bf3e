package main

// @title           Sercha RAG API
// @version         1.0
// @description     Retrieval-augmented question answering over your own documents.

// @contact.name   Sercha OSS
// @contact.url    https://github.com/custodia-labs/sercha-rag/issues

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8000
// @BasePath  /
// @schemes   http https

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/http"
	"github.com/custodia-labs/sercha-rag/internal/app"
	"github.com/custodia-labs/sercha-rag/internal/config"
	"github.com/custodia-labs/sercha-rag/internal/worker"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Run mode from environment (RUN_MODE) or command line arg
	mode := cfg.RunMode
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)
	logger.Info("sercha-rag starting", "version", version, "mode", mode)

	// Cancelled on SIGINT/SIGTERM for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, mode, logger); err != nil {
		logger.Error("sercha-rag stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, mode string, logger *slog.Logger) error {
	switch mode {
	case config.ModeWorker:
		// Worker-only mode: upload cleanup, no HTTP server
		a, err := app.BuildLockOnly(ctx, cfg, logger)
		defer a.Close()
		if err != nil {
			return err
		}

		sweeper := newSweeper(cfg, a, logger)
		sweeper.Start(ctx)
		logger.Info("worker started", "upload_dir", cfg.UploadDir, "retention", cfg.UploadRetention)
		<-ctx.Done()
		sweeper.Stop()
		logger.Info("worker stopped")
		return nil

	case config.ModeAPI, config.ModeAll:
		a, err := app.Build(ctx, cfg, logger)
		defer a.Close()
		if err != nil {
			return err
		}

		if mode == config.ModeAll {
			sweeper := newSweeper(cfg, a, logger)
			sweeper.Start(ctx)
			defer sweeper.Stop()
		}

		var checks []http.ReadinessCheck
		for _, c := range a.Checks() {
			checks = append(checks, http.ReadinessCheck{Name: c.Name, Check: c.Check})
		}

		server := http.NewServer(http.Config{
			Host:         "0.0.0.0",
			Port:         cfg.Port,
			Version:      version,
			UploadDir:    cfg.UploadDir,
			CORSOrigins:  cfg.CORSOrigins,
			WriteTimeout: cfg.GenerationTimeout + time.Minute,
			Logger:       logger,
		}, a.Ingestion, a.RAG, a.Documents, checks...)
		return server.Start(ctx)

	default:
		return fmt.Errorf("unknown mode: %s (use: api, worker, or all)", mode)
	}
}

func newSweeper(cfg *config.Config, a *app.App, logger *slog.Logger) *worker.Sweeper {
	return worker.NewSweeper(worker.SweeperConfig{
		Dir:       cfg.UploadDir,
		Retention: cfg.UploadRetention,
		Interval:  cfg.CleanupInterval,
		Lock:      a.Lock,
		Logger:    logger,
	})
}
