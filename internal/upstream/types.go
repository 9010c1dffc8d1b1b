// Package upstream is the HTTP client for the third-party sports-data
// provider. It injects the API credential, applies the fixed retry/backoff
// schedule on rate limiting and transport failures, and keeps the credential
// out of every error it returns.
package upstream

import (
	"context"
	"errors"
)

// Response is the outcome of an upstream fetch once any HTTP response has
// been obtained. Non-2xx statuses are results, not errors: the proxy service
// decides how to surface them.
type Response struct {
	Status int
	Body   []byte
}

// OK reports whether the response carries a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Client fetches sports data from the provider.
//
// Fetch returns an error only when no response could be obtained at all:
// a missing credential, context cancellation, or a transport failure that
// survived every retry.
type Client interface {
	Fetch(ctx context.Context, endpoint string, params map[string]string) (*Response, error)
}

// ErrMissingCredential is returned before any network activity when the
// client has no API key configured.
var ErrMissingCredential = errors.New("upstream: missing API credential")
