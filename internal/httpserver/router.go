package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"scoregate/internal/handlers"
	"scoregate/internal/metrics"
	"scoregate/internal/middleware"
)

// RequestTimeout bounds one proxied request end to end. The worst upstream
// case is four 10s attempts plus 7s of backoff, so 60s leaves headroom
// without letting requests hang forever.
const RequestTimeout = 60 * time.Second

func SetupRouter(r *chi.Mux, baseLogger *zap.Logger, proxyHandler *handlers.ProxyHandler) {

	r.Use(metrics.Middleware)

	// base middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)

	r.Use(middleware.LoggingContext(baseLogger))
	r.Use(middleware.Recoverer())            // panic recovery
	r.Use(middleware.CORS())                 // any origin; answers preflight
	r.Use(middleware.Timeout(RequestTimeout))
	r.Use(middleware.MaxBodySize(64 * 1024)) // 64 KB max body

	// routes
	r.Route("/api", func(r chi.Router) {
		r.Post("/proxy", proxyHandler.Proxy)
	})

	// health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Handle("/metrics", metrics.Handler())
}
