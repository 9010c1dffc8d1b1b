package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// BuildRequestKey builds a RequestKey from an upstream endpoint path and its
// query parameters.
//
// The parameters are serialized as a URL-encoded query string sorted by key,
// the same form the upstream request is built from. Two maps with the same
// content hash identically no matter the insertion or iteration order, and a
// delimiter inside a value cannot masquerade as an extra parameter. The
// canonical form is hashed with SHA-256.
func BuildRequestKey(endpoint string, params map[string]string) RequestKey {
	endpoint = NormalizeEndpoint(endpoint)

	canonical := endpoint
	if len(params) > 0 {
		q := url.Values{}
		for k, v := range params {
			q.Set(k, v)
		}
		canonical += "?" + q.Encode()
	}

	sum := sha256.Sum256([]byte(canonical))

	return RequestKey{
		Endpoint: endpoint,
		Hash:     hex.EncodeToString(sum[:]),
	}
}

// NormalizeEndpoint trims whitespace and guarantees a leading slash so that
// "matches/live" and "/matches/live" refer to the same upstream path and
// share a cache entry.
func NormalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return ""
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return endpoint
}
