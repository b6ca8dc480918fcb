package types

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigValidation(t *testing.T) {
	valid := DefaultConfig()
	valid.StartURL = "https://example.com"

	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{name: "valid config", mutate: func(c *Config) {}, valid: true},
		{name: "empty start url", mutate: func(c *Config) { c.StartURL = "" }, valid: false},
		{name: "empty user agent", mutate: func(c *Config) { c.UserAgent = " " }, valid: false},
		{name: "negative sleep", mutate: func(c *Config) { c.SleepBetweenRequests = -time.Second }, valid: false},
		{name: "negative budget", mutate: func(c *Config) { c.MaxRequests = -1 }, valid: false},
		{name: "zero timeout", mutate: func(c *Config) { c.Timeout = 0 }, valid: false},
		{name: "too many retries", mutate: func(c *Config) { c.MaxRetries = 11 }, valid: false},
		{name: "randomized hello", mutate: func(c *Config) { c.TLSHello = "randomized" }, valid: true},
		{name: "unknown hello", mutate: func(c *Config) { c.TLSHello = "chrome" }, valid: false},
		{name: "rfc robots", mutate: func(c *Config) { c.RobotsEngine = "rfc9309" }, valid: true},
		{name: "unknown robots engine", mutate: func(c *Config) { c.RobotsEngine = "google" }, valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestDefaultCrawlOptions(t *testing.T) {
	opts := DefaultCrawlOptions()

	assert.Equal(t, 500*time.Millisecond, opts.SleepBetweenRequests)
	assert.Equal(t, Unbounded, opts.MaxRequests)
	assert.False(t, opts.ResolveDiscoveredURLs)
	assert.NotEmpty(t, opts.UserAgent)
}

func TestBudgeted(t *testing.T) {
	opts := DefaultCrawlOptions()
	assert.False(t, opts.Budgeted(1_000_000))

	opts.MaxRequests = 3
	assert.False(t, opts.Budgeted(2))
	assert.True(t, opts.Budgeted(3))
}

func TestThrottledErrorMatches(t *testing.T) {
	err := fmt.Errorf("crawl: %w", &ThrottledError{URL: "http://example.com/sorry/index", Reason: "challenge"})

	assert.True(t, errors.Is(err, ErrThrottled))

	var te *ThrottledError
	assert.True(t, errors.As(err, &te))
	assert.Equal(t, "http://example.com/sorry/index", te.URL)
	assert.Contains(t, err.Error(), "challenge")
}

func TestCrawlStateTerminal(t *testing.T) {
	assert.False(t, StateIdle.Terminal())
	assert.False(t, StateRunning.Terminal())
	for _, s := range []CrawlState{StateCompleted, StateBudgetExhausted, StateInterrupted, StateAborted} {
		assert.True(t, s.Terminal(), s)
	}
}

func TestResponseOK(t *testing.T) {
	var nilResp *Response
	assert.False(t, nilResp.OK())
	assert.True(t, (&Response{StatusCode: 200}).OK())
	assert.True(t, (&Response{StatusCode: 301}).OK())
	assert.False(t, (&Response{StatusCode: 404}).OK())
}
