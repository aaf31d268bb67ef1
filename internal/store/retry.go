package store

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy — повторы идемпотентных запросов чтения.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryPolicy используется, если политика не задана.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:  3,
	InitialDelay: 500 * time.Millisecond,
	MaxDelay:     5 * time.Second,
}

// backoff вычисляет задержку перед попыткой attempt (начиная с 1).
// delay = initial * 2^(attempt-1), не больше MaxDelay.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	delay := p.InitialDelay
	if delay <= 0 {
		delay = DefaultRetryPolicy.InitialDelay
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultRetryPolicy.MaxDelay
	}

	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay > maxDelay {
			return maxDelay
		}
	}
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

// retryable: транспортные ошибки и APIError.Temporary.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ErrNotFound) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return true
}

// withRetry выполняет fn с повторами по политике.
func withRetry[T any](ctx context.Context, p RetryPolicy, fn func() (T, error)) (T, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var (
		result T
		err    error
	)
	for attempt := 1; ; attempt++ {
		result, err = fn()
		if err == nil || attempt >= maxAttempts || !retryable(err) {
			return result, err
		}

		select {
		case <-time.After(p.backoff(attempt)):
		case <-ctx.Done():
			return result, ctx.Err()
		}
	}
}
