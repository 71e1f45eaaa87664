// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the rate-limited, retrying HTTP client shared
// by all fetch adapters.
package httputil

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pdiddy/biometa/internal/ratelimit"
)

// RetryBaseDelay controls the base duration for exponential backoff on
// retryable failures. Tests override this to avoid real sleeps.
var RetryBaseDelay = 1 * time.Second

const (
	maxAttempts   = 3
	maxRetryDelay = 10 * time.Second
)

// outcome classifies a single call attempt. Retryable failures drive the
// backoff loop; terminal failures abort the call immediately.
type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeRetryable
	outcomeTerminal
)

// classify maps a response/error pair to an outcome. Transport errors and
// timeouts are retryable, as is HTTP 429 (an explicit rate-limit response
// is treated like a connection failure so it triggers backoff). Any other
// non-2xx status is terminal for the call.
func classify(resp *http.Response, err error) outcome {
	if err != nil {
		return outcomeRetryable
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return outcomeRetryable
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return outcomeSuccess
	}
	return outcomeTerminal
}

// Client issues GET requests against one external service. Every call
// acquires a token from the service's limiter before touching the network;
// token acquisition blocks and is never retried.
type Client struct {
	HTTP      *http.Client
	Limiter   *ratelimit.Limiter
	UserAgent string
}

// GetJSON performs a rate-limited GET and decodes the JSON response into v.
func (c *Client) GetJSON(ctx context.Context, rawURL string, params url.Values, v any) error {
	body, err := c.get(ctx, rawURL, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("parsing response from %s: %w", rawURL, err)
	}
	return nil
}

// GetBytes performs a rate-limited GET and returns the raw response body.
// Used for flat-file downloads (the GEO family SOFT archive).
func (c *Client) GetBytes(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	return c.get(ctx, rawURL, params)
}

// get runs the acquire-call-classify loop: up to 3 attempts with
// exponential backoff starting at RetryBaseDelay, capped at 10 s.
func (c *Client) get(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	reqURL := rawURL
	if len(params) > 0 {
		reqURL = rawURL + "?" + params.Encode()
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := RetryBaseDelay << (attempt - 1)
			if backoff > maxRetryDelay {
				backoff = maxRetryDelay
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		c.Limiter.Acquire()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		if c.UserAgent != "" {
			req.Header.Set("User-Agent", c.UserAgent)
		}

		resp, err := c.HTTP.Do(req)
		switch classify(resp, err) {
		case outcomeSuccess:
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr != nil {
				lastErr = fmt.Errorf("reading response from %s: %w", rawURL, readErr)
				continue
			}
			return body, nil
		case outcomeTerminal:
			status := resp.StatusCode
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("HTTP %d from %s", status, rawURL)
		default: // retryable
			if err != nil {
				lastErr = err
			} else {
				lastErr = fmt.Errorf("HTTP 429 from %s", rawURL)
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
			}
		}
	}
	return nil, fmt.Errorf("request to %s failed after %d attempts: %w", rawURL, maxAttempts, lastErr)
}
