package http

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
}

// DefaultRetryConfig returns default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     2,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2.0,
	}
}

// RetryHandler decides which failures are retried and how long to wait
type RetryHandler struct {
	config RetryConfig

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRetryHandler creates a new retry handler
func NewRetryHandler(config RetryConfig) *RetryHandler {
	if config.BackoffFactor < 1 {
		config.BackoffFactor = 1
	}
	return &RetryHandler{
		config: config,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// MaxRetries returns the number of retries after the first attempt
func (rh *RetryHandler) MaxRetries() int {
	return rh.config.MaxRetries
}

// ShouldRetry determines if a request should be retried. 429 is never
// retried: a site that rate limits us gets no more traffic.
func (rh *RetryHandler) ShouldRetry(statusCode int, err error) bool {
	if err != nil {
		return true
	}

	switch statusCode {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}

	return false
}

// Backoff returns the wait before retry number attempt (zero based), with
// ±20% jitter
func (rh *RetryHandler) Backoff(attempt int) time.Duration {
	backoff := rh.config.InitialBackoff
	for i := 0; i < attempt; i++ {
		backoff = time.Duration(float64(backoff) * rh.config.BackoffFactor)
		if rh.config.MaxBackoff > 0 && backoff > rh.config.MaxBackoff {
			backoff = rh.config.MaxBackoff
			break
		}
	}

	rh.mu.Lock()
	jitter := time.Duration(float64(backoff) * 0.2 * (2.0*rh.rnd.Float64() - 1.0))
	rh.mu.Unlock()

	return backoff + jitter
}

// Wait sleeps for the backoff of attempt or until ctx is done
func (rh *RetryHandler) Wait(ctx context.Context, attempt int) error {
	timer := time.NewTimer(rh.Backoff(attempt))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// FetchError is a transport-level failure fetching a URL
type FetchError struct {
	URL        string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
	}
	return fmt.Sprintf("fetch %s failed with status %d after %d attempt(s)", e.URL, e.StatusCode, e.Attempts)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
