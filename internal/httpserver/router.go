package httpserver

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"visionqa-gateway/internal/cache"
	"visionqa-gateway/internal/handlers"
	"visionqa-gateway/internal/metrics"
	"visionqa-gateway/internal/middleware"
)

// Options tunes the shared middleware stack.
type Options struct {
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

func (o Options) withDefaults() Options {
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 60 * time.Second
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = 20 << 20
	}
	return o
}

// Handlers groups the endpoint handlers mounted by SetupRouter.
type Handlers struct {
	Cache  *cache.ResponseCache
	Upload *handlers.UploadHandler
	Query  *handlers.QueryHandler
	Blobs  *handlers.BlobHandler
	Admin  *handlers.CacheAdminHandler
}

func SetupRouter(r *chi.Mux, baseLogger *zap.Logger, h Handlers, opts Options) {
	opts = opts.withDefaults()

	r.Use(metrics.Middleware)

	// base middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.CORS())

	r.Use(middleware.LoggingContext(baseLogger))
	r.Use(middleware.Recoverer())
	r.Use(middleware.Timeout(opts.RequestTimeout))
	r.Use(middleware.MaxBodySize(opts.MaxBodyBytes))

	health := handlers.Health(h.Cache)
	r.Get("/", health)
	r.Get("/healthz", health)

	r.Post("/upload_file/", h.Upload.Upload)
	r.Post("/openai/", h.Query.Query)
	r.Post("/general_chat/", h.Query.GeneralChat)
	r.Get("/blobs/*", h.Blobs.Info)

	r.Route("/admin", func(r chi.Router) {
		r.Delete("/cache", h.Admin.Clear)
	})

	r.Handle("/metrics", metrics.Handler())
}
