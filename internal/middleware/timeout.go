package middleware

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"time"

	"scoregate/pkg/logging/logging"

	"go.uber.org/zap"
)

// Timeout cancels the request context after d and answers 504 if the handler
// is still running. The handler writes into a buffer that is flushed only on
// completion, so a handler racing the deadline can never interleave its bytes
// with the timeout body. The budget must cover the worst upstream case: every
// retry plus the full backoff schedule.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			r = r.WithContext(ctx)

			tw := &timeoutWriter{header: make(http.Header)}
			done := make(chan struct{})
			panicked := make(chan interface{}, 1)
			go func() {
				defer func() {
					if p := recover(); p != nil {
						panicked <- p
					}
				}()
				next.ServeHTTP(tw, r)
				close(done)
			}()

			select {
			case p := <-panicked:
				// Resurface on the request goroutine, where the recovery
				// middleware can see it.
				panic(p)
			case <-done:
				tw.flush(w)
			case <-ctx.Done():
				tw.abandon()
				logger := logging.L(ctx)
				logger.Warn("request timeout", zap.Duration("timeout", d))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusGatewayTimeout)
				_, _ = w.Write([]byte(`{"error":"gateway_timeout"}`))
			}
		})
	}
}

// timeoutWriter buffers the handler's response. Exactly one of flush (handler
// finished inside the budget) or abandon (deadline hit first) runs, so the
// underlying ResponseWriter only ever has a single writer.
type timeoutWriter struct {
	mu        sync.Mutex
	header    http.Header
	buf       bytes.Buffer
	status    int
	abandoned bool
}

func (tw *timeoutWriter) Header() http.Header { return tw.header }

func (tw *timeoutWriter) WriteHeader(status int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.status == 0 {
		tw.status = status
	}
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.abandoned {
		return 0, http.ErrHandlerTimeout
	}
	if tw.status == 0 {
		tw.status = http.StatusOK
	}
	return tw.buf.Write(b)
}

func (tw *timeoutWriter) flush(w http.ResponseWriter) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	dst := w.Header()
	for k, vv := range tw.header {
		dst[k] = vv
	}
	if tw.status == 0 {
		tw.status = http.StatusOK
	}
	w.WriteHeader(tw.status)
	_, _ = w.Write(tw.buf.Bytes())
}

func (tw *timeoutWriter) abandon() {
	tw.mu.Lock()
	tw.abandoned = true
	tw.mu.Unlock()
}
