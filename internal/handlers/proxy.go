package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"scoregate/internal/proxy"
	"scoregate/pkg/logging/logging"

	"go.uber.org/zap"
)

// ProxyHandler holds dependencies for the /api/proxy endpoint.
type ProxyHandler struct {
	Service *proxy.Service
}

func NewProxyHandler(svc *proxy.Service) *ProxyHandler {
	return &ProxyHandler{Service: svc}
}

// proxyRequest is the inbound body: which upstream endpoint to call and
// with which query parameters.
type proxyRequest struct {
	Endpoint string                 `json:"endpoint"`
	Params   map[string]interface{} `json:"params"`
}

// errorResponse is the JSON shape for every failure this handler writes.
type errorResponse struct {
	Error    string `json:"error"`
	Message  string `json:"message,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`
}

// Proxy handles POST /api/proxy.
// The response is the raw upstream payload with an X-Cache header saying
// whether it was served from cache; failures come back as structured JSON
// with the upstream status preserved where one exists.
func (h *ProxyHandler) Proxy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)
	start := time.Now()

	var req proxyRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		logger.Warn("invalid request body", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   "invalid_request",
			Message: `request body must be JSON: {"endpoint": string, "params"?: object}`,
		})
		return
	}

	params, err := stringifyParams(req.Params)
	if err != nil {
		logger.Warn("invalid params", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	result, err := h.Service.Handle(ctx, req.Endpoint, params)
	if err != nil {
		h.writeProxyError(w, r, err)
		return
	}

	cacheStatus := "MISS"
	if result.CacheHit {
		cacheStatus = "HIT"
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", cacheStatus)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Payload)

	logger.Info("proxy_request",
		zap.String("endpoint", req.Endpoint),
		zap.Bool("cache_hit", result.CacheHit),
		zap.Int("payload_bytes", len(result.Payload)),
		zap.Duration("total_latency_ms", time.Since(start)),
	)
}

func (h *ProxyHandler) writeProxyError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	logger := logging.L(ctx)

	var perr *proxy.Error
	if errors.As(err, &perr) {
		logger.Warn("proxy_error",
			zap.String("kind", string(perr.Kind)),
			zap.Int("status", perr.HTTPStatus()),
			zap.String("endpoint", perr.Endpoint),
			zap.String("message", perr.Message),
		)

		if perr.Kind == proxy.KindMissingEndpoint {
			// Contract body for the dashboard: a bare reason, no taxonomy.
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Endpoint is required"})
			return
		}

		writeJSON(w, perr.HTTPStatus(), errorResponse{
			Error:    string(perr.Kind),
			Message:  perr.Message,
			Endpoint: perr.Endpoint,
		})
		return
	}

	if ctx.Err() != nil {
		// Client went away mid-request; there is nobody left to answer.
		logger.Debug("request abandoned", zap.Error(ctx.Err()))
		return
	}

	logger.Error("unexpected proxy failure", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, errorResponse{
		Error:   string(proxy.KindInternal),
		Message: "unexpected error",
	})
}

// stringifyParams flattens the JSON params object into query-parameter
// strings. Only primitives are accepted; nested objects and arrays have no
// single query-string form and are rejected.
func stringifyParams(params map[string]interface{}) (map[string]string, error) {
	if len(params) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(params))
	for k, v := range params {
		switch val := v.(type) {
		case string:
			out[k] = val
		case json.Number:
			out[k] = val.String()
		case bool:
			out[k] = strconv.FormatBool(val)
		case nil:
			out[k] = "null"
		default:
			return nil, fmt.Errorf("param %q must be a primitive value", k)
		}
	}
	return out, nil
}

// writeJSON is a small helper to send JSON responses consistently.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
