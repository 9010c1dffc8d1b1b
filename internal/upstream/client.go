package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Fetch performs a GET against {BaseURL}{endpoint} with the caller's params
// plus the api_key credential appended as query parameters.
//
// Any HTTP response obtained - including the final 429 after retries and
// every other error status - comes back as a *Response. Errors mean no
// response at all: missing credential, context cancellation, or a transport
// failure that outlived the retry schedule. Error messages and non-2xx
// bodies are scrubbed of the credential before they leave this package.
func (c *client) Fetch(parentCtx context.Context, endpoint string, params map[string]string) (*Response, error) {
	start := time.Now()

	if c.cfg.APIKey == "" {
		return nil, ErrMissingCredential
	}
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("upstream: endpoint is required")
	}

	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	q.Set("api_key", c.cfg.APIKey)

	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	fullURL := c.cfg.BaseURL + endpoint + sep + q.Encode()

	c.logger.Debug("upstream fetch starting",
		zap.String("endpoint", endpoint),
		zap.Int("param_count", len(params)),
	)

	// doOnce builds a fresh *http.Request per attempt under its own timeout.
	// The body is read while the attempt context is still alive and swapped
	// for a detached reader, so retry handling and the caller can use the
	// response after the attempt context is gone.
	doOnce := func(ctx context.Context) (*http.Response, error) {
		attemptCtx := ctx
		cancel := context.CancelFunc(func() {})
		if c.cfg.UpstreamTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, c.cfg.UpstreamTimeout)
		}
		defer cancel()

		httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, c.redactErr(fmt.Errorf("upstream: build HTTP request: %w", err))
		}
		httpReq.Header.Set("Accept", "application/json")
		httpReq.Header.Set("User-Agent", c.cfg.UserAgent)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, c.redactErr(err)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxResponseBytes))
		resp.Body.Close()
		if err != nil {
			// Lost the connection mid-body: no usable response, retryable.
			return nil, c.redactErr(fmt.Errorf("upstream: read response body: %w", err))
		}
		resp.Body = io.NopCloser(bytes.NewReader(body))
		return resp, nil
	}

	resp, err := c.doWithRetry(parentCtx, doOnce)
	if err != nil {
		c.logger.Error("upstream fetch failed",
			zap.String("endpoint", endpoint),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.redactErr(fmt.Errorf("upstream: read response body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Providers sometimes echo request details into error bodies; make
		// sure the credential is not among them.
		body = c.redactBytes(body)
		c.logger.Warn("upstream returned error status",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.String("body", truncate(string(body), 200)),
			zap.Duration("duration", time.Since(start)),
		)
	} else {
		c.logger.Info("upstream fetch completed",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.Int("bytes", len(body)),
			zap.Duration("duration", time.Since(start)),
		)
	}

	return &Response{
		Status: resp.StatusCode,
		Body:   body,
	}, nil
}

// redactErr wraps err so its message no longer contains the credential while
// errors.Is/As still see the original chain (needed for context errors).
func (c *client) redactErr(err error) error {
	if err == nil {
		return nil
	}
	msg := redactSecret(err.Error(), c.cfg.APIKey)
	if msg == err.Error() {
		return err
	}
	return &redactedError{msg: msg, cause: err}
}

func (c *client) redactBytes(b []byte) []byte {
	if c.cfg.APIKey == "" {
		return b
	}
	b = bytes.ReplaceAll(b, []byte(c.cfg.APIKey), []byte("[redacted]"))
	if esc := url.QueryEscape(c.cfg.APIKey); esc != c.cfg.APIKey {
		b = bytes.ReplaceAll(b, []byte(esc), []byte("[redacted]"))
	}
	return b
}

// redactSecret removes every plain and query-escaped occurrence of secret.
func redactSecret(s, secret string) string {
	if secret == "" {
		return s
	}
	s = strings.ReplaceAll(s, secret, "[redacted]")
	if esc := url.QueryEscape(secret); esc != secret {
		s = strings.ReplaceAll(s, esc, "[redacted]")
	}
	return s
}

type redactedError struct {
	msg   string
	cause error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.cause }

// truncate limits string length for logging
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
