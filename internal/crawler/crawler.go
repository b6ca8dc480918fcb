// Package crawler drives a breadth-first crawl of a single site.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/BenjaminSRussell/sitemapper/internal/crawlurl"
	sitehttp "github.com/BenjaminSRussell/sitemapper/internal/http"
	"github.com/BenjaminSRussell/sitemapper/internal/parser"
	"github.com/BenjaminSRussell/sitemapper/internal/robots"
	"github.com/BenjaminSRussell/sitemapper/internal/seeding"
	"github.com/BenjaminSRussell/sitemapper/internal/types"
)

// Robots engines selectable with WithRobotsEngine
const (
	EngineSitemapper = "sitemapper"
	EngineRFC9309    = "rfc9309"
)

// ErrAlreadyRun is returned when CollectURLs is called on a used Crawler
var ErrAlreadyRun = errors.New("crawler already run")

// Crawler is the crawl orchestrator for one site. A Crawler runs once.
type Crawler struct {
	opts      types.CrawlOptions
	resolver  *crawlurl.Resolver
	fetcher   types.Fetcher
	extractor types.LinkExtractor
	seeds     types.SeedResolver
	logger    zerolog.Logger

	robotsEngine      string
	respectCrawlDelay bool
	seedFromSitemaps  bool

	frontier *Frontier
	visited  *VisitedSet
	policy   robots.Evaluator
	limiter  *rate.Limiter
	failures int

	mu    sync.RWMutex
	state types.CrawlState
}

// Option configures a Crawler
type Option func(*Crawler)

// WithFetcher sets the page fetcher
func WithFetcher(f types.Fetcher) Option {
	return func(c *Crawler) { c.fetcher = f }
}

// WithLinkExtractor sets the href extractor
func WithLinkExtractor(e types.LinkExtractor) Option {
	return func(c *Crawler) { c.extractor = e }
}

// WithSeedResolver sets the redirect follower used for the seed and, with
// ResolveDiscoveredURLs, for every admitted link
func WithSeedResolver(r types.SeedResolver) Option {
	return func(c *Crawler) { c.seeds = r }
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Crawler) { c.logger = logger }
}

// WithRobotsEngine selects the robots.txt evaluator
func WithRobotsEngine(engine string) Option {
	return func(c *Crawler) { c.robotsEngine = engine }
}

// WithRespectCrawlDelay paces fetches to the robots.txt Crawl-delay when it
// is longer than the configured sleep
func WithRespectCrawlDelay(on bool) Option {
	return func(c *Crawler) { c.respectCrawlDelay = on }
}

// WithSitemapSeeding seeds the frontier from the site's sitemaps
func WithSitemapSeeding(on bool) Option {
	return func(c *Crawler) { c.seedFromSitemaps = on }
}

// New resolves seed and prepares a crawl of its site. Collaborators that are
// not supplied default to the net/http fetcher and the goquery extractor.
func New(ctx context.Context, seed string, opts types.CrawlOptions, options ...Option) (*Crawler, error) {
	if strings.TrimSpace(seed) == "" {
		return nil, fmt.Errorf("start URL is required")
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid crawl options: %w", err)
	}

	c := &Crawler{
		opts:         opts,
		logger:       zerolog.Nop(),
		robotsEngine: EngineSitemapper,
		frontier:     NewFrontier(),
		visited:      NewVisitedSet(),
		state:        types.StateIdle,
	}
	for _, opt := range options {
		opt(c)
	}

	switch c.robotsEngine {
	case "", EngineSitemapper, EngineRFC9309:
	default:
		return nil, fmt.Errorf("unknown robots engine %q", c.robotsEngine)
	}

	if c.fetcher == nil {
		client, err := sitehttp.NewClient(sitehttp.ClientConfig{Timeout: types.DefaultConfig().Timeout})
		if err != nil {
			return nil, err
		}
		c.fetcher = sitehttp.NewFetcher(client, sitehttp.WithUserAgent(opts.UserAgent), sitehttp.WithLogger(c.logger))
	}
	if c.extractor == nil {
		c.extractor = parser.NewHTMLExtractor()
	}
	if c.seeds == nil {
		if r, ok := c.fetcher.(types.SeedResolver); ok {
			c.seeds = r
		}
	}

	resolver, err := crawlurl.New(ctx, seed, c.seeds)
	if err != nil {
		return nil, err
	}
	c.resolver = resolver

	return c, nil
}

// Root returns the resolved site root
func (c *Crawler) Root() types.SiteRoot {
	return c.resolver.Root()
}

// State returns the current lifecycle state. It is safe to call while
// CollectURLs runs.
func (c *Crawler) State() types.CrawlState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Crawler) setState(s types.CrawlState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// CollectURLs crawls the site breadth first. onURL, if set, sees every URL
// once in pop order before it is fetched. The returned Results list the
// visited URLs followed by the ones still queued. The only error is a
// *types.ThrottledError, returned together with the partial Results;
// cancellation yields partial Results and no error.
func (c *Crawler) CollectURLs(ctx context.Context, onURL func(string)) (*types.Results, error) {
	c.mu.Lock()
	if c.state != types.StateIdle {
		c.mu.Unlock()
		return nil, ErrAlreadyRun
	}
	c.state = types.StateRunning
	c.mu.Unlock()

	started := time.Now()
	root := c.resolver.RootURL()
	c.logger.Info().Str("base_url", c.resolver.BaseURL()).Str("host", c.resolver.Root().Hostname).Msg("starting crawl")

	c.frontier.Push(root)

	inFlight := ""
	err := c.run(ctx, onURL, &inFlight)

	switch {
	case errors.Is(err, types.ErrThrottled):
		c.setState(types.StateAborted)
		c.logger.Error().Err(err).Msg("target is throttling the crawler, aborting")
	case err != nil:
		c.setState(types.StateInterrupted)
		c.logger.Warn().Err(err).Msg("crawl interrupted")
		err = nil
	}

	results := c.results(inFlight, started)
	c.logger.Info().
		Int("visited", results.Visited).
		Int("pending", results.Pending).
		Int("errors", results.Errors).
		Str("state", string(results.State)).
		Dur("duration", results.Duration).
		Msg("crawl finished")

	return results, err
}

// run is the traversal loop. It returns a throttle error or the context
// error that stopped it.
func (c *Crawler) run(ctx context.Context, onURL func(string), inFlight *string) error {
	if c.seedFromSitemaps {
		if err := c.seedSitemaps(ctx); err != nil {
			return err
		}
	}

	for {
		if c.frontier.IsEmpty() {
			c.setState(types.StateCompleted)
			return nil
		}
		if c.opts.Budgeted(c.visited.Len()) {
			c.setState(types.StateBudgetExhausted)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		url, _ := c.frontier.Pop()
		*inFlight = url
		c.logger.Debug().Int("queue_length", c.frontier.Size()).Str("url", url).Msg("crawling")
		if onURL != nil {
			onURL(url)
		}

		page, hrefs, err := c.visit(ctx, url)
		if err != nil {
			return err
		}

		if err := c.pause(ctx); err != nil {
			return err
		}

		c.visited.Add(url)
		*inFlight = ""

		if err := c.admitAll(ctx, page, hrefs); err != nil {
			return err
		}
	}
}

// visit fetches url and extracts its hrefs. A failed fetch is logged and
// treated as a page without links so the crawl keeps moving; only a throttle
// signal or cancellation is returned. page is the URL relative links
// resolve against.
func (c *Crawler) visit(ctx context.Context, url string) (page string, hrefs []string, err error) {
	page = url

	resp, err := c.fetcher.Fetch(ctx, url, c.opts.UserAgent)
	if err != nil {
		if errors.Is(err, types.ErrThrottled) {
			return page, nil, err
		}
		if ctx.Err() != nil {
			return page, nil, ctx.Err()
		}
		c.failures++
		c.logger.Warn().Err(err).Str("url", url).Msg("fetch failed, treating page as linkless")
		return page, nil, nil
	}

	if err := throttled(url, resp); err != nil {
		return page, nil, err
	}
	if resp.FinalURL != "" {
		if !c.resolver.SameHostString(resp.FinalURL) {
			c.logger.Debug().Str("url", url).Str("final_url", resp.FinalURL).Msg("redirected off site, no links followed")
			return page, nil, nil
		}
		page = resp.FinalURL
	}
	if !resp.OK() {
		c.logger.Debug().Int("status", resp.StatusCode).Str("url", url).Msg("non-success status, no links followed")
		return page, nil, nil
	}

	hrefs, err = c.extractSafely(url, resp.Body)
	if err != nil {
		c.failures++
		c.logger.Warn().Err(err).Str("url", url).Msg("link extraction failed")
		return page, nil, nil
	}
	return page, hrefs, nil
}

// throttled recognises a 429 or a redirect onto a challenge page
func throttled(url string, resp *types.Response) error {
	if resp == nil {
		return nil
	}
	if resp.StatusCode == 429 {
		return &types.ThrottledError{URL: url, Reason: "429 Too Many Requests"}
	}
	if resp.FinalURL != "" && crawlurl.IsThrottleMarker(resp.FinalURL) {
		return &types.ThrottledError{URL: resp.FinalURL, Reason: "redirected to challenge page"}
	}
	return nil
}

// pause is the politeness delay between fetches
func (c *Crawler) pause(ctx context.Context) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return context.DeadlineExceeded
		}
	}

	if c.opts.SleepBetweenRequests <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(c.opts.SleepBetweenRequests)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Crawler) admitAll(ctx context.Context, page string, hrefs []string) error {
	admitted := 0
	for _, href := range hrefs {
		resolved, err := c.resolver.Resolve(href, page)
		if err != nil {
			if errors.Is(err, types.ErrThrottled) {
				return err
			}
			c.logger.Trace().Err(err).Str("href", href).Msg("link rejected")
			continue
		}

		ok, err := c.admit(ctx, resolved)
		if err != nil {
			return err
		}
		if ok {
			admitted++
		}
	}

	c.logger.Debug().Str("url", page).Int("links", len(hrefs)).Int("admitted", admitted).Msg("links processed")
	return nil
}

// admit pushes a resolved same-host URL unless it is known or disallowed
func (c *Crawler) admit(ctx context.Context, u string) (bool, error) {
	if c.known(u) {
		return false, nil
	}
	policy, err := c.robotsPolicy(ctx)
	if err != nil {
		return false, err
	}
	if !policy.Allowed(u) {
		c.logger.Trace().Str("url", u).Msg("disallowed by robots.txt")
		return false, nil
	}

	if c.opts.ResolveDiscoveredURLs && c.seeds != nil {
		final, err := c.resolveDiscovered(ctx, u)
		if err != nil || final == "" {
			return false, err
		}
		if final != u {
			if c.known(final) || !policy.Allowed(final) {
				return false, nil
			}
			u = final
		}
	}

	return c.frontier.Push(u), nil
}

// resolveDiscovered follows redirects from u. It returns "" when the
// redirect leaves the site.
func (c *Crawler) resolveDiscovered(ctx context.Context, u string) (string, error) {
	final, err := c.seeds.Resolve(ctx, u)
	if err != nil {
		if errors.Is(err, types.ErrThrottled) || ctx.Err() != nil {
			return "", err
		}
		c.logger.Debug().Err(err).Str("url", u).Msg("could not resolve discovered url, keeping it")
		return u, nil
	}
	if final == "" {
		return u, nil
	}

	resolved, err := c.resolver.Resolve(final, u)
	if err != nil {
		if errors.Is(err, types.ErrThrottled) {
			return "", err
		}
		c.logger.Trace().Err(err).Str("url", u).Str("final", final).Msg("redirect target rejected")
		return "", nil
	}
	return resolved, nil
}

func (c *Crawler) known(u string) bool {
	return c.visited.Contains(u) || c.frontier.Contains(u)
}

// robotsPolicy builds the policy on first use from {base}/robots.txt. A
// missing or unreachable robots.txt yields the allow-everything policy; a
// throttled one aborts the crawl like any throttled page.
func (c *Crawler) robotsPolicy(ctx context.Context) (robots.Evaluator, error) {
	if c.policy != nil {
		return c.policy, nil
	}

	robotsURL := c.resolver.BaseURL() + "/robots.txt"
	body := ""
	resp, err := c.fetcher.Fetch(ctx, robotsURL, c.opts.UserAgent)
	if err == nil {
		err = throttled(robotsURL, resp)
	}
	switch {
	case errors.Is(err, types.ErrThrottled):
		return nil, err
	case err != nil && ctx.Err() != nil:
		return nil, ctx.Err()
	case err != nil:
		c.logger.Warn().Err(err).Str("url", robotsURL).Msg("robots.txt unavailable, allowing everything")
	case resp.StatusCode >= 400:
		c.logger.Debug().Int("status", resp.StatusCode).Str("url", robotsURL).Msg("no robots.txt, allowing everything")
	default:
		body = string(resp.Body)
	}

	if c.robotsEngine == EngineRFC9309 {
		c.policy = robots.NewStandard(body, c.opts.UserAgent)
	} else {
		c.policy = robots.NewPolicy(body, c.resolver.Root().Hostname, c.opts.UserAgent)
	}

	if c.respectCrawlDelay {
		if delay, ok := c.policy.CrawlDelay(); ok && delay > c.opts.SleepBetweenRequests {
			c.limiter = rate.NewLimiter(rate.Every(delay), 1)
			c.logger.Info().Dur("crawl_delay", delay).Msg("pacing to robots.txt crawl-delay")
		}
	}

	return c.policy, nil
}

// seedSitemaps admits the pages listed in the site's sitemaps through the
// same gate as discovered links
func (c *Crawler) seedSitemaps(ctx context.Context) error {
	base := c.resolver.BaseURL()
	policy, err := c.robotsPolicy(ctx)
	if err != nil {
		return err
	}
	candidates := seeding.Candidates(base, policy.Sitemaps())

	discoverer := seeding.NewSitemapDiscoverer(c.fetcher, c.opts.UserAgent, c.logger)
	locs, err := discoverer.Discover(ctx, candidates)
	if err != nil {
		return err
	}

	admitted := 0
	for _, loc := range locs {
		resolved, err := c.resolver.Resolve(loc, base)
		if err != nil {
			if errors.Is(err, types.ErrThrottled) {
				return err
			}
			continue
		}
		ok, err := c.admit(ctx, resolved)
		if err != nil {
			return err
		}
		if ok {
			admitted++
		}
	}

	c.logger.Info().Int("sitemap_urls", len(locs)).Int("admitted", admitted).Msg("seeded from sitemaps")
	return nil
}

func (c *Crawler) results(inFlight string, started time.Time) *types.Results {
	urls := c.visited.Items()
	seen := make(map[string]bool, len(urls))
	for _, u := range urls {
		seen[u] = true
	}
	add := func(u string) {
		if u != "" && !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}
	add(inFlight)
	for _, u := range c.frontier.Items() {
		add(u)
	}

	return &types.Results{
		URLs:      urls,
		Visited:   c.visited.Len(),
		Pending:   len(urls) - c.visited.Len(),
		Errors:    c.failures,
		State:     c.State(),
		StartedAt: started,
		Duration:  time.Since(started),
	}
}
