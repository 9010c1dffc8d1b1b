package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"scoregate/internal/cache"
	"scoregate/internal/handlers"
	"scoregate/internal/httpserver"
	"scoregate/internal/metrics"
	"scoregate/internal/proxy"
	"scoregate/internal/upstream"
	"scoregate/pkg/logging/logging"
)

type Config struct {
	Port             string
	CacheBackend     string // "memory" or "redis"
	RedisAddr        string
	CacheTTL         time.Duration
	CacheCapacity    int
	BaseURL          string
	APIKey           string
	AllowedEndpoints []string
}

func LoadConfig() Config {
	return Config{
		Port:             getenv("PORT", "8080"),
		CacheBackend:     getenv("CACHE_BACKEND", "memory"),
		RedisAddr:        getenv("REDIS_ADDR", "127.0.0.1:6379"),
		CacheTTL:         getenvDuration("CACHE_TTL", cache.DefaultTTL),
		CacheCapacity:    getenvInt("CACHE_CAPACITY", cache.DefaultSoftCap),
		BaseURL:          getenv("SPORTRADAR_BASE_URL", "https://api.sportradar.com"),
		APIKey:           os.Getenv("SPORTRADAR_API_KEY"),
		AllowedEndpoints: splitList(os.Getenv("ALLOWED_ENDPOINTS")),
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("gateway exited with error: %v", err)
	}
}

func run() error {
	// ----- Logger -----
	logger := logging.Default()
	defer logger.Sync()

	// ----- Metrics -----
	metrics.Register()

	// ----- Config -----
	cfg := LoadConfig()

	logger.Info("loaded config",
		zap.String("port", cfg.Port),
		zap.String("cache_backend", cfg.CacheBackend),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("cache_capacity", cfg.CacheCapacity),
		zap.String("upstream_base_url", cfg.BaseURL),
		zap.Bool("api_key_configured", cfg.APIKey != ""),
		zap.Strings("allowed_endpoints", cfg.AllowedEndpoints),
	)

	if cfg.APIKey == "" {
		// Requests still get a structured configuration error instead of the
		// process refusing to start.
		logger.Warn("SPORTRADAR_API_KEY is not set; every proxied request will fail")
	}

	// ----- Redis client (only if needed) -----
	var redisClient *redis.Client
	if cfg.CacheBackend == "redis" {
		redisClient = redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})

		// Fail fast if Redis is misconfigured
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Error("redis connection failed", zap.Error(err))
			return err
		}
		logger.Info("redis connection established",
			zap.String("addr", cfg.RedisAddr),
		)
	}

	// ----- Response cache -----
	cacheCfg := cache.Config{
		Backend: cfg.CacheBackend,
		TTL:     cfg.CacheTTL,
		SoftCap: cfg.CacheCapacity,
		Prefix:  "scoregate",
	}
	responseCache := cache.NewResponseCache(cacheCfg, redisClient)
	responseCache = cache.NewLoggingResponseCache(responseCache)

	// ----- Upstream client -----
	upstreamClient, err := upstream.NewClient(upstream.Config{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
	}, logger)
	if err != nil {
		return err
	}
	if closer, ok := upstreamClient.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	// ----- Proxy service + handlers -----
	svc := proxy.NewService(responseCache, upstreamClient, proxy.Config{
		TTL:              cfg.CacheTTL,
		AllowedEndpoints: cfg.AllowedEndpoints,
	})
	proxyHandler := handlers.NewProxyHandler(svc)

	// ----- Router + middleware -----
	r := chi.NewRouter()
	httpserver.SetupRouter(r, logger, proxyHandler)

	// ----- HTTP server -----
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Must outlast the per-request budget, retries and backoff included.
		WriteTimeout: httpserver.RequestTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("starting gateway",
		zap.String("addr", srv.Addr),
		zap.String("cache_backend", cfg.CacheBackend),
	)

	// Start server in background
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
		}
	}()

	// ----- Graceful shutdown -----
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return err
	}

	logger.Info("server shutdown complete")
	return nil
}

// getenv returns the value of the environment variable key or def if not set.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getenvDuration parses key as a Go duration ("60s", "2m"); bad or missing
// values fall back to def.
func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// getenvInt parses key as an integer; bad or missing values fall back to def.
func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// splitList turns a comma-separated env value into its non-empty entries.
func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
