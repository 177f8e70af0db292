package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"visionqa-gateway/internal/blob"
	"visionqa-gateway/internal/cache"
	"visionqa-gateway/internal/config"
	"visionqa-gateway/internal/handlers"
	"visionqa-gateway/internal/httpserver"
	"visionqa-gateway/internal/ingest"
	"visionqa-gateway/internal/llm"
	"visionqa-gateway/internal/metrics"
	"visionqa-gateway/internal/search"
	"visionqa-gateway/internal/vision"
	"visionqa-gateway/pkg/logging/logging"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("gateway exited with error: %v", err)
	}
}

func run() (err error) {
	// ----- Config -----
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// ----- Logger -----
	logger := logging.New(cfg.Log)
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return err
	}

	// ----- Metrics -----
	metrics.Register()

	logger.Info("loaded config",
		zap.String("port", cfg.Server.Port),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.String("redis_addr", cfg.Cache.Redis.Addr),
		zap.String("search_index", cfg.Search.Index),
		zap.String("openai_deployment", cfg.OpenAI.Deployment),
		zap.String("blob_container", cfg.Blob.Container),
	)

	// ----- Response cache -----
	// an unreachable store leaves the cache disconnected; requests still work
	responseCache := cache.NewResponseCache(
		cache.NewOpener(cfg.Cache, logger),
		cache.WithOpTimeout(cfg.Cache.OpTimeout),
		cache.WithLogger(logger),
	)
	responseCache.Connect(context.Background())
	defer responseCache.Disconnect()
	fetcher := cache.NewFetcher(responseCache)

	// ----- Upstream clients -----
	visionClient, err := vision.NewClient(cfg.Vision, logger)
	if err != nil {
		return err
	}
	searchClient, err := search.NewClient(cfg.Search, logger)
	if err != nil {
		return err
	}
	llmClient, err := llm.NewClient(cfg.OpenAI, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, visionClient.Close(), searchClient.Close(), closeClient(llmClient))
	}()

	blobs, err := newBlobStore(cfg.Blob, logger)
	if err != nil {
		return err
	}

	// ----- Handlers -----
	processor := &ingest.Processor{
		Blobs:   blobs,
		Vision:  visionClient,
		Index:   searchClient,
		Fetcher: fetcher,
		Logger:  logger.Named("ingest"),
	}

	// ----- Router + middleware -----
	r := chi.NewRouter()
	httpserver.SetupRouter(r, logger, httpserver.Handlers{
		Cache:  responseCache,
		Upload: handlers.NewUploadHandler(fetcher, blobs, processor),
		Query:  handlers.NewQueryHandler(fetcher, searchClient, llmClient),
		Blobs:  handlers.NewBlobHandler(fetcher, blobs),
		Admin:  handlers.NewCacheAdminHandler(responseCache, cfg.AdminToken),
	}, httpserver.Options{
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
	})

	// ----- HTTP server -----
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	logger.Info("starting gateway",
		zap.String("addr", srv.Addr),
		zap.Bool("cache_connected", responseCache.Connected()),
	)

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// ----- Graceful shutdown -----
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		logger.Error("server error", zap.Error(err))
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return err
	}

	logger.Info("server shutdown complete")
	return nil
}

func newBlobStore(cfg config.BlobConfig, logger *zap.Logger) (blob.Store, error) {
	if cfg.ConnectionString == "" {
		logger.Warn("no blob connection string, using in-memory blob store",
			zap.String("container", cfg.Container),
		)
		return blob.NewMemoryStore(cfg.Container), nil
	}
	return blob.NewAzureStore(cfg.ConnectionString, cfg.Container, logger)
}

func closeClient(c llm.Client) error {
	if closer, ok := c.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
