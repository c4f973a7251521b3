package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/hweng-dev/adsplice/internal/adengine"
	"github.com/hweng-dev/adsplice/internal/api/handler"
	"github.com/hweng-dev/adsplice/internal/api/middleware"
	"github.com/hweng-dev/adsplice/internal/config"
	"github.com/hweng-dev/adsplice/internal/infrastructure/cache"
	"github.com/hweng-dev/adsplice/internal/infrastructure/postgres"
	"github.com/hweng-dev/adsplice/internal/infrastructure/queue"
	"github.com/hweng-dev/adsplice/internal/infrastructure/storage"
	"github.com/hweng-dev/adsplice/internal/probe"
	"github.com/hweng-dev/adsplice/internal/proxypool"
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

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("connected to Redis")

	// Egress route pool for playlist, segment and probe fetches
	pool := proxypool.New(proxypool.Config{
		RouteURLs:        cfg.Proxy.Routes,
		FailureThreshold: cfg.Proxy.FailureThreshold,
		Cooldown:         cfg.Proxy.Cooldown,
	})
	logger.Info("egress route pool loaded", slog.Int("routes", pool.Size()))

	// Repositories and domain services
	catalog := postgres.NewCreativeRepository(pgClient.Pool())
	settings := postgres.NewSettingsRepository(pgClient.Pool(), logger)
	engine := adengine.New(catalog, nil)

	prober := probe.NewFFprobeProber(pool, probe.FFprobeConfig{
		FFprobePath: cfg.Transcode.FFprobePath,
		Timeout:     cfg.Transcode.ProbeTimeout,
	})

	ffmpegCfg := transcoder.DefaultFFmpegConfig()
	ffmpegCfg.FFmpegPath = cfg.Transcode.FFmpegPath
	encoder := transcoder.NewFFmpegEncoder(ffmpegCfg)

	variantCfg := usecase.DefaultVariantServiceConfig()
	variantCfg.VariantDir = cfg.Ads.VariantDir
	variantCfg.TempDir = cfg.Ads.TempDir
	variantCfg.Timeout = cfg.Transcode.Timeout
	variantSvc := usecase.NewVariantService(storageClient, encoder, variantCfg)

	playlistSvc := usecase.NewPlaylistService(
		settings,
		catalog,
		engine,
		prober,
		variantSvc,
		queueClient,
		cfg.Server.PublicBaseURL,
		nil,
	)

	playlistCache := cache.NewRedisPlaylistCache(redisClient)
	cachedSvc := usecase.NewCachedPlaylistService(playlistSvc, playlistCache, usecase.CachedPlaylistServiceConfig{
		CacheTTL: cfg.Ads.PlaylistCacheTTL,
	})

	r := setupRouter(logger, routerDeps{
		playlist: handler.NewPlaylistHandler(cachedSvc, pool, cfg.Proxy.FetchTimeout),
		adSeg:    handler.NewAdSegmentHandler(catalog, storageClient, cfg.Ads.VariantDir),
		proxy:    handler.NewProxyHandler(pool, cfg.Proxy.FetchTimeout),
		prewarm:  handler.NewPrewarmHandler(catalog, queueClient),
		health:   handler.NewHealthHandler(pool),
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down server", slog.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

type routerDeps struct {
	playlist *handler.PlaylistHandler
	adSeg    *handler.AdSegmentHandler
	proxy    *handler.ProxyHandler
	prewarm  *handler.PrewarmHandler
	health   *handler.HealthHandler
}

func setupRouter(logger *slog.Logger, deps routerDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))

	r.Get("/health", deps.health.Get)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/playlist", deps.playlist.Get)
		r.Post("/playlist/process", deps.playlist.Process)
		r.Get("/ads/{creative}/{variant}/{segment}", deps.adSeg.Get)
		r.Get("/proxy", deps.proxy.Get)
		r.Post("/prewarm", deps.prewarm.Trigger)
	})

	return r
}
