package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap/zaptest"

	"scoregate/pkg/logging/logging"
)

func TestRecovererConvertsPanicTo500(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/proxy", nil)
	req = req.WithContext(logging.WithLogger(req.Context(), zaptest.NewLogger(t)))

	Recoverer()(next).ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "internal_error" {
		t.Fatalf("expected internal_error, got %q", body["error"])
	}
	if body["message"] != "boom" {
		t.Fatalf("expected panic text in message, got %q", body["message"])
	}
}
