// Package http provides the default page fetcher and seed resolver.
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/publicsuffix"

	"github.com/BenjaminSRussell/sitemapper/internal/types"
)

const maxRedirects = 10

// ClientConfig configures the underlying http.Client
type ClientConfig struct {
	Timeout  time.Duration
	TLSHello string
}

// NewClient creates an http.Client with a cookie jar and the requested transport
func NewClient(cfg ClientConfig) (*http.Client, error) {
	transport, err := NewTransport(cfg.TLSHello)
	if err != nil {
		return nil, err
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
		Jar:       jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}, nil
}

// Fetcher retrieves pages over HTTP. It satisfies types.Fetcher and
// types.SeedResolver.
type Fetcher struct {
	client    *http.Client
	retry     *RetryHandler
	userAgent string
	maxBody   int64
	logger    zerolog.Logger
}

// Option configures a Fetcher
type Option func(*Fetcher)

// WithRetry sets the retry policy
func WithRetry(cfg RetryConfig) Option {
	return func(f *Fetcher) { f.retry = NewRetryHandler(cfg) }
}

// WithMaxBodyBytes caps how much of a response body is read
func WithMaxBodyBytes(n int64) Option {
	return func(f *Fetcher) { f.maxBody = n }
}

// WithUserAgent sets the agent used by Resolve
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.userAgent = ua }
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(f *Fetcher) { f.logger = logger }
}

// NewFetcher creates a Fetcher on top of client
func NewFetcher(client *http.Client, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:    client,
		retry:     NewRetryHandler(DefaultRetryConfig()),
		userAgent: types.DefaultUserAgent,
		maxBody:   5 * 1024 * 1024,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FromConfig builds a Fetcher from a run configuration
func FromConfig(cfg types.Config, logger zerolog.Logger) (*Fetcher, error) {
	client, err := NewClient(ClientConfig{Timeout: cfg.Timeout, TLSHello: cfg.TLSHello})
	if err != nil {
		return nil, err
	}

	retry := DefaultRetryConfig()
	retry.MaxRetries = cfg.MaxRetries

	return NewFetcher(client,
		WithRetry(retry),
		WithMaxBodyBytes(cfg.MaxBodyBytes),
		WithUserAgent(cfg.UserAgent),
		WithLogger(logger),
	), nil
}

// Fetch GETs url. Non-2xx statuses are returned as responses; transport
// errors and exhausted 5xx retries come back as *FetchError, and 429 as
// *types.ThrottledError.
func (f *Fetcher) Fetch(ctx context.Context, url, userAgent string) (*types.Response, error) {
	if userAgent == "" {
		userAgent = f.userAgent
	}

	var lastErr error
	var lastStatus int
	for attempt := 0; attempt <= f.retry.MaxRetries(); attempt++ {
		if attempt > 0 {
			if err := f.retry.Wait(ctx, attempt-1); err != nil {
				return nil, err
			}
		}

		resp, err := f.do(ctx, url, userAgent)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr, lastStatus = err, 0
			f.logger.Debug().Err(err).Str("url", url).Int("attempt", attempt+1).Msg("fetch attempt failed")
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			return resp, &types.ThrottledError{URL: url, Reason: "429 Too Many Requests"}
		}
		if !f.retry.ShouldRetry(resp.StatusCode, nil) {
			return resp, nil
		}

		lastErr, lastStatus = nil, resp.StatusCode
		f.logger.Debug().Str("url", url).Int("status", resp.StatusCode).Int("attempt", attempt+1).Msg("retryable status")
	}

	return nil, &FetchError{URL: url, StatusCode: lastStatus, Attempts: f.retry.MaxRetries() + 1, Err: lastErr}
}

// Resolve follows redirects from url and returns the final URL
func (f *Fetcher) Resolve(ctx context.Context, url string) (string, error) {
	resp, err := f.Fetch(ctx, url, f.userAgent)
	if err != nil {
		var throttled *types.ThrottledError
		if errors.As(err, &throttled) && resp != nil {
			return resp.FinalURL, nil
		}
		return "", err
	}
	return resp.FinalURL, nil
}

func (f *Fetcher) do(ctx context.Context, url, userAgent string) (*types.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	reader := io.Reader(resp.Body)
	if f.maxBody > 0 {
		reader = io.LimitReader(resp.Body, f.maxBody)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	return &types.Response{
		StatusCode:  resp.StatusCode,
		Body:        body,
		FinalURL:    resp.Request.URL.String(),
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}
