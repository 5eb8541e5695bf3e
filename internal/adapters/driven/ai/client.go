package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

const (
	defaultMaxRetries = 3
	defaultBaseDelay  = 200 * time.Millisecond
	maxRetryDelay     = 5 * time.Second
	maxRetryAfter     = 60 * time.Second
	maxResponseBytes  = 32 << 20
)

// apiClient sends JSON requests to a provider, retrying throttled and
// server-side failures with exponential backoff.
type apiClient struct {
	http       *http.Client
	limiter    *RateLimiter // nil = unthrottled
	headers    map[string]string
	maxRetries int
	baseDelay  time.Duration
}

func newAPIClient(timeout time.Duration, limiter *RateLimiter, headers map[string]string) *apiClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &apiClient{
		http:       &http.Client{Timeout: timeout},
		limiter:    limiter,
		headers:    headers,
		maxRetries: defaultMaxRetries,
		baseDelay:  defaultBaseDelay,
	}
}

// do sends in (when non-nil) as the JSON body and decodes the response into out.
// Transport failures and non-2xx statuses wrap domain.ErrProviderUnavailable;
// an undecodable body wraps domain.ErrProviderResponse.
func (c *apiClient) do(ctx context.Context, method, url string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		status, body, header, err := c.send(ctx, method, url, payload)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if attempt < c.maxRetries {
				if err := sleep(ctx, c.retryDelay(attempt)); err != nil {
					return err
				}
				continue
			}
			return fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
		}

		if status == http.StatusTooManyRequests || status >= 500 {
			wait := c.retryDelay(attempt)
			if ra, ok := retryAfter(header.Get("Retry-After")); ok {
				wait = ra
			}
			if status == http.StatusTooManyRequests && c.limiter != nil {
				c.limiter.Backoff(wait)
			}
			if attempt < c.maxRetries {
				if err := sleep(ctx, wait); err != nil {
					return err
				}
				continue
			}
		}

		if status < 200 || status >= 300 {
			return fmt.Errorf("%w: %s returned status %d: %s", domain.ErrProviderUnavailable, url, status, snippet(body))
		}

		if out == nil {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("%w: decode response: %v", domain.ErrProviderResponse, err)
		}
		return nil
	}
}

func (c *apiClient) send(ctx context.Context, method, url string, payload []byte) (int, []byte, http.Header, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, nil, nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, data, resp.Header, nil
}

// retryDelay doubles from baseDelay per attempt, capped at maxRetryDelay
func (c *apiClient) retryDelay(attempt int) time.Duration {
	d := c.baseDelay << attempt
	if d <= 0 || d > maxRetryDelay {
		return maxRetryDelay
	}
	return d
}

// retryAfter parses a Retry-After header given in seconds
func retryAfter(v string) (time.Duration, bool) {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0, false
	}
	d := time.Duration(secs) * time.Second
	if d > maxRetryAfter {
		d = maxRetryAfter
	}
	return d, true
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
