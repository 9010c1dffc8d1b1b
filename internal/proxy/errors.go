// Package proxy implements the caching proxy service: cache lookup,
// coalesced upstream fetch, and the error taxonomy the HTTP layer maps
// onto status codes.
package proxy

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a proxy failure. Kinds are wire-visible: the HTTP layer
// serializes them into the "error" field of the JSON error response.
type Kind string

const (
	// KindMissingEndpoint is a request without an endpoint. Never reaches
	// the network.
	KindMissingEndpoint Kind = "missing_endpoint"

	// KindEndpointNotAllowed is a request for an endpoint outside the
	// configured allow-list.
	KindEndpointNotAllowed Kind = "endpoint_not_allowed"

	// KindMissingCredential means the server has no upstream API key
	// configured. A client cannot fix this; it maps to 500.
	KindMissingCredential Kind = "missing_credential"

	// KindRateLimited is an upstream 429 that survived the retry schedule.
	// The upstream status is preserved on the response.
	KindRateLimited Kind = "rate_limited"

	// KindUpstreamError is any other non-2xx upstream status, surfaced
	// immediately with the status preserved.
	KindUpstreamError Kind = "upstream_error"

	// KindNetworkError is a transport-level failure that outlived every
	// retry; no upstream status exists.
	KindNetworkError Kind = "network_error"

	// KindInternal is an unexpected failure inside the proxy itself.
	KindInternal Kind = "internal_error"
)

// Error is the structured failure the service hands to the HTTP layer.
// UpstreamStatus is only set when an upstream response was actually
// obtained (rate_limited, upstream_error).
type Error struct {
	Kind           Kind
	Message        string
	Endpoint       string
	UpstreamStatus int
}

func (e *Error) Error() string {
	if e.Endpoint != "" {
		return fmt.Sprintf("proxy: %s: %s (endpoint %s)", e.Kind, e.Message, e.Endpoint)
	}
	return fmt.Sprintf("proxy: %s: %s", e.Kind, e.Message)
}

// HTTPStatus maps the error onto the status code the client sees. Upstream
// statuses pass through unchanged so a 429 stays a 429 and a 404 stays a 404.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindMissingEndpoint:
		return http.StatusBadRequest
	case KindEndpointNotAllowed:
		return http.StatusForbidden
	case KindRateLimited, KindUpstreamError:
		if e.UpstreamStatus >= 400 {
			return e.UpstreamStatus
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// upstreamMessage extracts a human-readable message from an upstream error
// body. Sportradar error payloads carry a "message" field; anything else
// falls back to the HTTP status text.
func upstreamMessage(body []byte, status int) string {
	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if msg := strings.TrimSpace(parsed.Message); msg != "" {
			return msg
		}
	}
	if text := http.StatusText(status); text != "" {
		return fmt.Sprintf("upstream returned %d %s", status, text)
	}
	return fmt.Sprintf("upstream returned status %d", status)
}
