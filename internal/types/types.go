package types

import (
	"fmt"
	"strings"
	"time"
)

// DefaultUserAgent identifies the crawler to the sites it maps
const DefaultUserAgent = "SiteMapper/1.0 (+https://github.com/BenjaminSRussell/sitemapper)"

// Unbounded disables the request budget
const Unbounded = 0

// CrawlOptions holds the options recognised by the crawl engine
type CrawlOptions struct {
	UserAgent             string        `json:"user_agent"`
	SleepBetweenRequests  time.Duration `json:"sleep_between_requests"`
	MaxRequests           int           `json:"max_requests"`
	ResolveDiscoveredURLs bool          `json:"resolve_discovered_urls"`
}

// DefaultCrawlOptions returns the documented defaults
func DefaultCrawlOptions() CrawlOptions {
	return CrawlOptions{
		UserAgent:            DefaultUserAgent,
		SleepBetweenRequests: 500 * time.Millisecond,
		MaxRequests:          Unbounded,
	}
}

// Validate checks the options for values the engine cannot run with
func (o CrawlOptions) Validate() error {
	if strings.TrimSpace(o.UserAgent) == "" {
		return fmt.Errorf("user agent is required")
	}
	if o.SleepBetweenRequests < 0 {
		return fmt.Errorf("sleep between requests cannot be negative, got %v", o.SleepBetweenRequests)
	}
	if o.MaxRequests < 0 {
		return fmt.Errorf("max requests cannot be negative, got %d", o.MaxRequests)
	}
	return nil
}

// Budgeted reports whether n visited pages exhausts the request budget
func (o CrawlOptions) Budgeted(n int) bool {
	return o.MaxRequests != Unbounded && n >= o.MaxRequests
}

// Config holds the full configuration of a sitemapper run
type Config struct {
	StartURL string
	CrawlOptions

	// Transport
	Timeout      time.Duration
	MaxRetries   int
	TLSHello     string // "" (Go default) or "randomized"
	MaxBodyBytes int64
	RobotsEngine string // "sitemapper" (default) or "rfc9309"
	LogLevel     string
	OutputFile   string
	OutputFormat string

	// Politeness extensions
	RespectCrawlDelay bool
	SeedFromSitemaps  bool
}

// DefaultConfig returns a Config with every default applied
func DefaultConfig() Config {
	return Config{
		CrawlOptions: DefaultCrawlOptions(),
		Timeout:      20 * time.Second,
		MaxRetries:   2,
		MaxBodyBytes: 5 * 1024 * 1024,
		RobotsEngine: "sitemapper",
		LogLevel:     "info",
		OutputFormat: "txt",
	}
}

// Validate checks the configuration before a crawl is built from it
func (c Config) Validate() error {
	if c.StartURL == "" {
		return fmt.Errorf("start URL is required")
	}
	if err := c.CrawlOptions.Validate(); err != nil {
		return err
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative, got %d", c.MaxRetries)
	}
	if c.MaxRetries > 10 {
		return fmt.Errorf("max retries too high (max 10), got %d", c.MaxRetries)
	}
	switch c.TLSHello {
	case "", "randomized":
	default:
		return fmt.Errorf("unknown TLS hello mode %q", c.TLSHello)
	}
	switch c.RobotsEngine {
	case "", "sitemapper", "rfc9309":
	default:
		return fmt.Errorf("unknown robots engine %q", c.RobotsEngine)
	}
	return nil
}

// SiteRoot is the canonical root of the crawled site
type SiteRoot struct {
	ResolvedBaseURL string
	Hostname        string
}

// CrawlState tracks the orchestrator lifecycle
type CrawlState string

const (
	StateIdle            CrawlState = "idle"
	StateRunning         CrawlState = "running"
	StateCompleted       CrawlState = "completed"
	StateBudgetExhausted CrawlState = "budget_exhausted"
	StateInterrupted     CrawlState = "interrupted"
	StateAborted         CrawlState = "aborted"
)

// Terminal reports whether the state ends a crawl
func (s CrawlState) Terminal() bool {
	switch s {
	case StateCompleted, StateBudgetExhausted, StateInterrupted, StateAborted:
		return true
	}
	return false
}

// Results contains the outcome of a crawl
type Results struct {
	// URLs lists visited pages in visit order followed by still queued ones
	URLs      []string
	Visited   int
	Pending   int
	Errors    int
	State     CrawlState
	StartedAt time.Time
	Duration  time.Duration
}
