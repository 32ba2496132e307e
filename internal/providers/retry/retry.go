package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"net/http"
	"time"
)

// Config holds retry configuration parameters
type Config struct {
	MaxAttempts int           `json:"max_attempts"`
	BaseDelay   time.Duration `json:"base_delay"`
	MaxDelay    time.Duration `json:"max_delay"`
	JitterRatio float64       `json:"jitter_ratio"`

	// OnRetry, when set, is called before sleeping ahead of the next attempt.
	OnRetry func(attempt int, err error, delay time.Duration) `json:"-"`
	// Retryable decides which errors are retried. Defaults to IsTransient.
	Retryable func(err error) bool `json:"-"`
}

// DefaultConfig returns the default retry configuration
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 5,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    3 * time.Second,
		JitterRatio: 0.25,
	}
}

// WithRetryConfig performs exponential backoff retries with custom configuration.
func WithRetryConfig(ctx context.Context, fn func() error, config Config) error {
	maxAttempts := config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	var attempt int
	for {
		err := fn()
		if err == nil {
			return nil
		}
		retryable := config.Retryable
		if retryable == nil {
			retryable = IsTransient
		}
		if !retryable(err) {
			return err
		}
		attempt++
		if attempt >= maxAttempts {
			return err
		}
		delay := Backoff(config, attempt)
		if config.OnRetry != nil {
			config.OnRetry(attempt, err, delay)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// Do is WithRetryConfig for calls that produce a value.
func Do[T any](ctx context.Context, config Config, fn func() (T, error)) (T, error) {
	var out T
	err := WithRetryConfig(ctx, func() error {
		v, err := fn()
		if err != nil {
			return err
		}
		out = v
		return nil
	}, config)
	return out, err
}

// Backoff returns the delay before retry number attempt (1-based), jitter included.
func Backoff(config Config, attempt int) time.Duration {
	delay := time.Duration(float64(config.BaseDelay) * math.Pow(2, float64(attempt-1)))
	if config.MaxDelay > 0 && delay > config.MaxDelay {
		delay = config.MaxDelay
	}
	jitter := time.Duration(rand.Float64() * config.JitterRatio * float64(delay))
	return delay + jitter
}

// HTTPStatusError wraps HTTP status codes to enable reliable retry decisions.
type HTTPStatusError struct {
	Status int    `json:"status"`
	Body   string `json:"body"`
	Source string `json:"source"` // e.g. "chatapi", "openai", "gemini"
}

func NewHTTPStatusError(status int, body, source string) *HTTPStatusError {
	return &HTTPStatusError{
		Status: status,
		Body:   body,
		Source: source,
	}
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("%s http %d: %s", e.Source, e.Status, e.Body)
}

// IsTransient determines if an error is worth retrying.
func IsTransient(err error) bool {
	var he *HTTPStatusError
	if errors.As(err, &he) {
		return he.Status == http.StatusTooManyRequests || he.Status >= 500
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}

// IsRateLimited reports whether err is a 429, which a server answers before
// doing any work.
func IsRateLimited(err error) bool {
	var he *HTTPStatusError
	return errors.As(err, &he) && he.Status == http.StatusTooManyRequests
}
