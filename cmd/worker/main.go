package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/hweng-dev/adsplice/internal/config"
	"github.com/hweng-dev/adsplice/internal/domain/repository"
	"github.com/hweng-dev/adsplice/internal/infrastructure/postgres"
	"github.com/hweng-dev/adsplice/internal/infrastructure/queue"
	"github.com/hweng-dev/adsplice/internal/infrastructure/storage"
	"github.com/hweng-dev/adsplice/internal/transcoder"
	"github.com/hweng-dev/adsplice/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := os.MkdirAll(cfg.Ads.VariantDir, 0755); err != nil {
		return fmt.Errorf("failed to create variant directory: %w", err)
	}
	if err := os.MkdirAll(cfg.Ads.TempDir, 0755); err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}

	// Infrastructure clients
	pgClient, err := postgres.NewClient(ctx, postgres.DefaultClientConfig(cfg.Database.DSN()))
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pgClient.Close()
	logger.Info("connected to PostgreSQL")

	storageClient, err := storage.NewClient(ctx, storage.ClientConfig{
		Endpoint:  cfg.MinIO.Endpoint,
		AccessKey: cfg.MinIO.AccessKey,
		SecretKey: cfg.MinIO.SecretKey,
		Bucket:    cfg.MinIO.Bucket,
		UseSSL:    cfg.MinIO.UseSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to MinIO: %w", err)
	}
	logger.Info("connected to MinIO")

	queueClient, err := queue.NewClient(ctx, queue.DefaultClientConfig(cfg.RabbitMQ.URL()))
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer queueClient.Close()
	logger.Info("connected to RabbitMQ")

	// Variant building stack
	catalog := postgres.NewCreativeRepository(pgClient.Pool())

	ffmpegCfg := transcoder.DefaultFFmpegConfig()
	ffmpegCfg.FFmpegPath = cfg.Transcode.FFmpegPath
	encoder := transcoder.NewFFmpegEncoder(ffmpegCfg)

	variantCfg := usecase.DefaultVariantServiceConfig()
	variantCfg.VariantDir = cfg.Ads.VariantDir
	variantCfg.TempDir = cfg.Ads.TempDir
	variantCfg.Timeout = cfg.Transcode.Timeout
	variantSvc := usecase.NewVariantService(storageClient, encoder, variantCfg)

	prewarmSvc := usecase.NewPrewarmService(catalog, variantSvc, usecase.PrewarmServiceConfig{
		MaxRetries: cfg.Worker.MaxRetries,
	})

	// Setup signal handling for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// WaitGroup to track in-flight tasks
	var wg sync.WaitGroup

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting worker, consuming prewarm tasks")
		err := queueClient.ConsumePrewarmTasks(ctx, func(task repository.PrewarmTask) error {
			wg.Add(1)
			defer wg.Done()

			logger.Info("processing task",
				slog.String("task_id", task.TaskID.String()),
				slog.String("creative_id", task.CreativeID),
				slog.String("format", task.Format.Key()),
				slog.Int("retry_count", task.RetryCount),
			)

			if err := prewarmSvc.ProcessTask(ctx, task); err != nil {
				logger.Error("task processing failed",
					slog.String("task_id", task.TaskID.String()),
					slog.String("creative_id", task.CreativeID),
					slog.Int("retry_count", task.RetryCount),
					slog.String("error", err.Error()),
				)
				return err
			}

			logger.Info("task completed successfully",
				slog.String("task_id", task.TaskID.String()),
			)
			return nil
		})
		if err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("consumer error: %w", err)
		}
	}()

	// Wait for shutdown signal or error
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down worker", slog.String("signal", sig.String()))
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	// Cancel the main context to stop consuming new messages
	cancel()

	// Wait for in-flight tasks to complete (or timeout)
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("all in-flight tasks completed")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout exceeded, some tasks may not have completed")
	}

	logger.Info("worker stopped")
	return nil
}
