package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"scoregate/pkg/logging/logging"

	"go.uber.org/zap"
)

// Recoverer catches panics anywhere below it, logs the stack, and answers
// with the structured 500 body the dashboard expects. Nothing is allowed to
// crash the process over a single bad request.
func Recoverer() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec != nil {
					logger := logging.L(r.Context())
					logger.Error("panic recovered",
						zap.Any("error", rec),
						zap.ByteString("stack", debug.Stack()),
					)

					body, _ := json.Marshal(map[string]string{
						"error":   "internal_error",
						"message": fmt.Sprint(rec),
					})
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = w.Write(body)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
