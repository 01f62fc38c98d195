package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultTimeout        = 20 * time.Second
	defaultInitialBackoff = 300 * time.Millisecond
	defaultMaxBackoff     = 5 * time.Second
	maxErrorBody          = 512
)

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.StatusCode, e.Body)
}

// HTTPClient performs rate limited GET requests with retry on transient
// upstream failures. Providers share it instead of talking to net/http directly.
type HTTPClient struct {
	client     *http.Client
	limiter    *rate.Limiter
	userAgent  string
	maxRetries int
	backoff    time.Duration
}

// HTTPOption customises an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithHTTPDoer replaces the underlying *http.Client.
func WithHTTPDoer(client *http.Client) HTTPOption {
	return func(c *HTTPClient) {
		if client != nil {
			c.client = client
		}
	}
}

// WithBackoff overrides the initial retry delay.
func WithBackoff(d time.Duration) HTTPOption {
	return func(c *HTTPClient) {
		if d > 0 {
			c.backoff = d
		}
	}
}

// NewHTTPClient builds a client from provider configuration.
func NewHTTPClient(cfg *ProviderConfig, opts ...HTTPOption) *HTTPClient {
	if cfg == nil {
		cfg = &ProviderConfig{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &HTTPClient{
		client:     &http.Client{Timeout: timeout},
		userAgent:  cfg.UserAgent,
		maxRetries: cfg.MaxRetries,
		backoff:    defaultInitialBackoff,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = int(math.Max(1, math.Ceil(cfg.RateLimit)))
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the body of a successful GET request.
func (c *HTTPClient) Get(ctx context.Context, rawURL string) ([]byte, error) {
	var (
		body    []byte
		attempt int
		backoff = c.backoff
	)
	for {
		var err error
		body, err = c.get(ctx, rawURL)
		if err == nil {
			return body, nil
		}
		if !retryable(err) || attempt >= c.maxRetries {
			return nil, err
		}
		attempt++
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff = min(defaultMaxBackoff, backoff*2)
	}
}

// GetJSON decodes the body of a successful GET request into v.
func (c *HTTPClient) GetJSON(ctx context.Context, rawURL string, v any) error {
	body, err := c.Get(ctx, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *HTTPClient) get(ctx context.Context, rawURL string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/json, text/html;q=0.9, */*;q=0.8")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		preview := string(body)
		if len(preview) > maxErrorBody {
			preview = preview[:maxErrorBody]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: preview}
	}
	return body, nil
}

func retryable(err error) bool {
	switch {
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, ErrNotFound):
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		switch se.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusRequestTimeout,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	return true
}
