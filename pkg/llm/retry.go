package llm

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/openai/openai-go"
)

const (
	defaultInitialBackoff = 200 * time.Millisecond
	defaultMaxBackoff     = 3 * time.Second
	defaultBackoffFactor  = 2.0
	maxRetryAfter         = 30 * time.Second
)

// RetryConfig describes the backoff policy shared by every backend.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// Retryable classifies errors; nil uses the OpenAI status and transport rules.
	Retryable func(error) bool
	// RetryAfter extracts a server-requested delay; nil reads Retry-After from
	// *openai.Error responses.
	RetryAfter func(error) (time.Duration, bool)
}

// RetryHandler runs an operation until it succeeds, fails permanently or
// runs out of attempts. Waits use jittered exponential backoff unless the
// server asked for a specific delay.
type RetryHandler struct {
	cfg    RetryConfig
	jitter func(time.Duration) time.Duration
}

// NewRetryHandler fills unset or invalid fields with defaults.
func NewRetryHandler(cfg RetryConfig) *RetryHandler {
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = defaultBackoffFactor
	}
	cfg.MaxRetries = max(cfg.MaxRetries, 0)
	if cfg.Retryable == nil {
		cfg.Retryable = shouldRetry
	}
	if cfg.RetryAfter == nil {
		cfg.RetryAfter = openaiRetryAfter
	}
	return &RetryHandler{cfg: cfg, jitter: halfJitter}
}

// Do calls fn until it succeeds. Cancellation during a wait returns the
// context error.
func (r *RetryHandler) Do(ctx context.Context, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if attempt >= r.cfg.MaxRetries || !r.cfg.Retryable(err) {
			return err
		}
		timer := time.NewTimer(r.delay(attempt, err))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// delay is the wait before retry number attempt+1.
func (r *RetryHandler) delay(attempt int, err error) time.Duration {
	if d, ok := r.cfg.RetryAfter(err); ok && d > 0 {
		return min(d, maxRetryAfter)
	}
	d := float64(r.cfg.InitialBackoff)
	for range attempt {
		d *= r.cfg.Multiplier
		if d >= float64(r.cfg.MaxBackoff) {
			d = float64(r.cfg.MaxBackoff)
			break
		}
	}
	return r.jitter(time.Duration(d))
}

// halfJitter picks a wait in [d/2, d].
func halfJitter(d time.Duration) time.Duration {
	half := d / 2
	if half <= 0 {
		return d
	}
	return half + rand.N(half+1)
}

// RetryableStatus reports whether an HTTP status is worth retrying.
func RetryableStatus(code int) bool {
	switch code {
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

// RetryableTransport reports network failures worth retrying. Cancellation
// is never retried.
func RetryableTransport(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// RetryAfterHeader parses a Retry-After header given in seconds or as an
// HTTP date.
func RetryAfterHeader(resp *http.Response, now time.Time) (time.Duration, bool) {
	if resp == nil {
		return 0, false
	}
	v := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, secs > 0
	}
	if at, err := http.ParseTime(v); err == nil && at.After(now) {
		return at.Sub(now), true
	}
	return 0, false
}

func openaiRetryAfter(err error) (time.Duration, bool) {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return 0, false
	}
	return RetryAfterHeader(apiErr.Response, time.Now())
}

func shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return RetryableStatus(apiErr.StatusCode)
	}
	return RetryableTransport(err)
}
