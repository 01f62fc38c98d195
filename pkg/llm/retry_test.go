package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/openai/openai-go"
	"github.com/stretchr/testify/require"
)

func noJitter(h *RetryHandler) *RetryHandler {
	h.jitter = func(d time.Duration) time.Duration { return d }
	return h
}

func TestNewRetryHandlerDefaults(t *testing.T) {
	h := NewRetryHandler(RetryConfig{MaxRetries: -1, InitialBackoff: -time.Second, Multiplier: 0.5})
	require.Equal(t, 0, h.cfg.MaxRetries)
	require.Equal(t, defaultInitialBackoff, h.cfg.InitialBackoff)
	require.Equal(t, defaultMaxBackoff, h.cfg.MaxBackoff)
	require.Equal(t, defaultBackoffFactor, h.cfg.Multiplier)

	h = NewRetryHandler(RetryConfig{InitialBackoff: 5 * time.Second, MaxBackoff: time.Second})
	require.Equal(t, 5*time.Second, h.cfg.MaxBackoff)
}

func TestRetryDelay(t *testing.T) {
	h := noJitter(NewRetryHandler(RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
		Multiplier:     3,
	}))
	plain := errors.New("x")
	require.Equal(t, 100*time.Millisecond, h.delay(0, plain))
	require.Equal(t, 300*time.Millisecond, h.delay(1, plain))
	require.Equal(t, 900*time.Millisecond, h.delay(2, plain))
	require.Equal(t, time.Second, h.delay(3, plain))
	require.Equal(t, time.Second, h.delay(40, plain))

	limited := &openai.Error{
		StatusCode: http.StatusTooManyRequests,
		Response:   &http.Response{Header: http.Header{"Retry-After": []string{"2"}}},
	}
	require.Equal(t, 2*time.Second, h.delay(0, limited))

	limited.Response.Header.Set("Retry-After", "600")
	require.Equal(t, maxRetryAfter, h.delay(0, limited))
}

func TestHalfJitterBounds(t *testing.T) {
	for range 200 {
		d := halfJitter(time.Second)
		require.GreaterOrEqual(t, d, 500*time.Millisecond)
		require.LessOrEqual(t, d, time.Second)
	}
	require.Equal(t, time.Duration(1), halfJitter(1))
}

func TestRetryHandlerDo(t *testing.T) {
	tooMany := &openai.Error{StatusCode: http.StatusTooManyRequests}

	t.Run("first try", func(t *testing.T) {
		calls := 0
		err := fastRetry(3).Do(context.Background(), func() error {
			calls++
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 1, calls)
	})

	t.Run("recovers", func(t *testing.T) {
		calls := 0
		err := fastRetry(3).Do(context.Background(), func() error {
			calls++
			if calls < 3 {
				return tooMany
			}
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 3, calls)
	})

	t.Run("exhausted", func(t *testing.T) {
		calls := 0
		err := fastRetry(2).Do(context.Background(), func() error {
			calls++
			return tooMany
		})
		require.ErrorIs(t, err, tooMany)
		require.Equal(t, 3, calls)
	})

	t.Run("permanent", func(t *testing.T) {
		calls := 0
		err := fastRetry(3).Do(context.Background(), func() error {
			calls++
			return &openai.Error{StatusCode: http.StatusBadRequest}
		})
		require.Error(t, err)
		require.Equal(t, 1, calls)
	})

	t.Run("cancelled while waiting", func(t *testing.T) {
		h := NewRetryHandler(RetryConfig{MaxRetries: 3, InitialBackoff: time.Minute})
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := h.Do(ctx, func() error {
			calls++
			cancel()
			return tooMany
		})
		require.ErrorIs(t, err, context.Canceled)
		require.Equal(t, 1, calls)
	})
}

func TestRetryHandlerCustomClassifier(t *testing.T) {
	overloaded := errors.New("overloaded")
	h := NewRetryHandler(RetryConfig{
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		Retryable:      func(err error) bool { return errors.Is(err, overloaded) },
		RetryAfter:     func(error) (time.Duration, bool) { return time.Millisecond, true },
	})

	calls := 0
	err := h.Do(context.Background(), func() error {
		calls++
		return overloaded
	})
	require.ErrorIs(t, err, overloaded)
	require.Equal(t, 3, calls)

	calls = 0
	_ = h.Do(context.Background(), func() error {
		calls++
		return &openai.Error{StatusCode: http.StatusTooManyRequests}
	})
	require.Equal(t, 1, calls)
}

func TestRetryAfterHeader(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	resp := func(v string) *http.Response {
		return &http.Response{Header: http.Header{"Retry-After": []string{v}}}
	}

	d, ok := RetryAfterHeader(resp("3"), now)
	require.True(t, ok)
	require.Equal(t, 3*time.Second, d)

	d, ok = RetryAfterHeader(resp(now.Add(90*time.Second).Format(http.TimeFormat)), now)
	require.True(t, ok)
	require.Equal(t, 90*time.Second, d)

	for _, v := range []string{"", "0", "soon", now.Add(-time.Minute).Format(http.TimeFormat)} {
		_, ok = RetryAfterHeader(resp(v), now)
		require.False(t, ok, v)
	}
	_, ok = RetryAfterHeader(nil, now)
	require.False(t, ok)
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return false }

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"cancelled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"wrapped cancel", errors.Join(errors.New("stream"), context.Canceled), false},
		{"429", &openai.Error{StatusCode: http.StatusTooManyRequests}, true},
		{"503", &openai.Error{StatusCode: http.StatusServiceUnavailable}, true},
		{"wrapped 502", errors.Join(errors.New("open"), &openai.Error{StatusCode: http.StatusBadGateway}), true},
		{"401", &openai.Error{StatusCode: http.StatusUnauthorized}, false},
		{"404", &openai.Error{StatusCode: http.StatusNotFound}, false},
		{"dial", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, true},
		{"timeout", timeoutErr{}, true},
		{"plain", errors.New("bad prompt"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, shouldRetry(tt.err))
		})
	}
}
