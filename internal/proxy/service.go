package proxy

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"scoregate/internal/cache"
	"scoregate/internal/upstream"
	"scoregate/pkg/logging/logging"
)

// Config holds the tunables for the proxy service.
type Config struct {
	// TTL is how long a stored payload stays fresh. Zero means
	// cache.DefaultTTL.
	TTL time.Duration

	// AllowedEndpoints restricts which upstream path prefixes may be
	// requested. Empty means every endpoint is allowed, matching the
	// first-party trust model.
	AllowedEndpoints []string
}

// flightBudget bounds a coalesced upstream flight, which runs detached from
// the contexts of the requests waiting on it. It must cover the worst fetch
// case: every retry attempt's timeout plus the full backoff schedule.
const flightBudget = 60 * time.Second

// Result is a successful proxy response: the upstream payload plus whether
// it came from the cache.
type Result struct {
	Payload  []byte
	CacheHit bool
}

// Service handles a proxied request end to end: allow-list check, cache
// lookup, coalesced upstream fetch, store, and opportunistic sweep.
// Concurrent requests for the same cold key share one upstream call.
type Service struct {
	cache    cache.ResponseCache
	upstream upstream.Client
	ttl      time.Duration
	allowed  []string
	group    singleflight.Group
}

func NewService(c cache.ResponseCache, up upstream.Client, cfg Config) *Service {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}

	allowed := make([]string, 0, len(cfg.AllowedEndpoints))
	for _, prefix := range cfg.AllowedEndpoints {
		prefix = strings.TrimRight(cache.NormalizeEndpoint(prefix), "/")
		if prefix == "" {
			continue
		}
		allowed = append(allowed, prefix)
	}

	return &Service{
		cache:    c,
		upstream: up,
		ttl:      ttl,
		allowed:  allowed,
	}
}

// flightResult is what one coalesced fetch hands to every waiter.
type flightResult struct {
	payload   []byte
	fromCache bool
}

// Handle serves one proxied request.
//
// Fresh cache entries are returned without touching the network. On a miss,
// concurrent requests for the same key are coalesced into a single upstream
// fetch whose result (success or failure) is shared by all of them. Failures
// are never stored, so the next identical request runs the full
// fetch-and-retry sequence again. Before returning from any successful path
// the cache is given a chance to sweep entries past their retention age.
func (s *Service) Handle(ctx context.Context, endpoint string, params map[string]string) (*Result, error) {
	logger := logging.L(ctx)

	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, &Error{Kind: KindMissingEndpoint, Message: "Endpoint is required"}
	}
	endpoint = cache.NormalizeEndpoint(endpoint)

	if !s.endpointAllowed(endpoint) {
		logger.Warn("endpoint rejected by allow-list", zap.String("endpoint", endpoint))
		return nil, &Error{
			Kind:     KindEndpointNotAllowed,
			Message:  "endpoint is not on the configured allow-list",
			Endpoint: endpoint,
		}
	}

	cacheKey := cache.BuildRequestKey(endpoint, params).String()

	payload, hit, err := s.cache.Get(ctx, cacheKey)
	if err != nil {
		// Cache is best-effort; a broken backend degrades to a miss.
		logger.Warn("cache_get_error", zap.Error(err))
	}
	if hit {
		s.sweep(ctx)
		return &Result{Payload: payload, CacheHit: true}, nil
	}

	// The flight is detached from the caller's cancellation: a leader that
	// hangs up must not fail the coalesced followers. Every waiter still
	// honors its own context below.
	ch := s.group.DoChan(cacheKey, func() (interface{}, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flightBudget)
		defer cancel()
		return s.fetchAndStore(flightCtx, endpoint, params, cacheKey)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			logger.Debug("upstream fetch coalesced", zap.String("cache_key", cacheKey))
		}
		fr := res.Val.(*flightResult)
		s.sweep(ctx)
		return &Result{Payload: fr.payload, CacheHit: fr.fromCache}, nil
	}
}

// fetchAndStore runs inside the singleflight group: at most one execution
// per cache key at a time.
func (s *Service) fetchAndStore(ctx context.Context, endpoint string, params map[string]string, cacheKey string) (*flightResult, error) {
	logger := logging.L(ctx)

	// A previous flight may have filled the key between this request's miss
	// and the group admitting it.
	if payload, hit, err := s.cache.Get(ctx, cacheKey); err == nil && hit {
		return &flightResult{payload: payload, fromCache: true}, nil
	}

	resp, err := s.upstream.Fetch(ctx, endpoint, params)
	if err != nil {
		return nil, s.mapFetchError(ctx, err, endpoint)
	}

	if !resp.OK() {
		kind := KindUpstreamError
		if resp.Status == http.StatusTooManyRequests {
			kind = KindRateLimited
		}
		return nil, &Error{
			Kind:           kind,
			Message:        upstreamMessage(resp.Body, resp.Status),
			Endpoint:       endpoint,
			UpstreamStatus: resp.Status,
		}
	}

	if err := s.cache.Set(ctx, cacheKey, resp.Body, s.ttl); err != nil {
		// Losing a cache write costs a future refetch, not this response.
		logger.Warn("cache_set_error", zap.Error(err))
	}

	return &flightResult{payload: resp.Body}, nil
}

// mapFetchError converts upstream client errors into the proxy taxonomy.
// The context here is the flight's own, so its expiry means the upstream ran
// out the whole budget, not that a caller hung up.
func (s *Service) mapFetchError(ctx context.Context, err error, endpoint string) error {
	switch {
	case errors.Is(err, upstream.ErrMissingCredential):
		return &Error{
			Kind:     KindMissingCredential,
			Message:  "server configuration error: missing upstream API key",
			Endpoint: endpoint,
		}
	case ctx.Err() != nil:
		return &Error{
			Kind:     KindNetworkError,
			Message:  "upstream fetch exceeded its time budget",
			Endpoint: endpoint,
		}
	default:
		return &Error{
			Kind:     KindNetworkError,
			Message:  err.Error(),
			Endpoint: endpoint,
		}
	}
}

// endpointAllowed matches whole path segments: "/nba" covers "/nba" and
// "/nba/standings" but not "/nbazzz". Any query string on the endpoint is
// ignored for the check.
func (s *Service) endpointAllowed(endpoint string) bool {
	if len(s.allowed) == 0 {
		return true
	}
	path := endpoint
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	for _, prefix := range s.allowed {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// sweep lets the cache shed entries past their retention age. Failures are
// logged and swallowed: sweeping is maintenance, not correctness.
func (s *Service) sweep(ctx context.Context) {
	if _, err := s.cache.Sweep(ctx); err != nil {
		logging.L(ctx).Warn("cache_sweep_error", zap.Error(err))
	}
}
