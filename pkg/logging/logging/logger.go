// Package logging builds the process-wide zap logger and carries
// request-scoped loggers through context.
package logging

import (
	"context"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey struct{}

var (
	global     *zap.Logger
	globalOnce sync.Once
)

// New builds a logger from the ENV and LOG_LEVEL environment variables.
// ENV=dev/development selects the console encoder; anything else gets
// production JSON output.
func New() *zap.Logger {
	var cfg zap.Config
	switch os.Getenv("ENV") {
	case "dev", "development":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		cfg = zap.NewProductionConfig()
	}

	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(raw)); err == nil {
			cfg.Level = zap.NewAtomicLevelAt(lvl)
		}
	}

	logger, err := cfg.Build()
	if err != nil {
		// Logging is load-bearing; without it the process is blind.
		_, _ = os.Stderr.WriteString("failed to build logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	return logger
}

// Default returns the shared process logger, building it on first use.
func Default() *zap.Logger {
	globalOnce.Do(func() {
		global = New()
	})
	return global
}

// WithLogger returns a context carrying logger.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger stored in ctx, or nil if none is set.
func FromContext(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return nil
	}
	logger, _ := ctx.Value(ctxKey{}).(*zap.Logger)
	return logger
}

// L returns the request-scoped logger from ctx, falling back to the
// process logger so callers never receive nil.
func L(ctx context.Context) *zap.Logger {
	if logger := FromContext(ctx); logger != nil {
		return logger
	}
	return Default()
}
