// Package seeding discovers crawl seeds from a site's sitemaps.
package seeding

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/BenjaminSRussell/sitemapper/internal/parser"
	"github.com/BenjaminSRussell/sitemapper/internal/types"
)

// MaxSitemapDepth bounds how many sitemap index levels are followed
const MaxSitemapDepth = 3

// SitemapDiscoverer collects page URLs from sitemaps
type SitemapDiscoverer struct {
	fetcher   types.Fetcher
	userAgent string
	logger    zerolog.Logger
	visited   map[string]bool
}

// NewSitemapDiscoverer creates a discoverer that fetches through fetcher
func NewSitemapDiscoverer(fetcher types.Fetcher, userAgent string, logger zerolog.Logger) *SitemapDiscoverer {
	return &SitemapDiscoverer{
		fetcher:   fetcher,
		userAgent: userAgent,
		logger:    logger,
		visited:   make(map[string]bool),
	}
}

// Candidates returns the sitemap URLs to try for a site: the ones declared
// in robots.txt followed by the conventional {base}/sitemap.xml
func Candidates(baseURL string, declared []string) []string {
	conventional := strings.TrimRight(baseURL, "/") + "/sitemap.xml"

	out := make([]string, 0, len(declared)+1)
	seen := make(map[string]bool)
	for _, u := range append(append([]string(nil), declared...), conventional) {
		u = strings.TrimSpace(u)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

// Discover fetches each sitemap and returns the page URLs they list, in
// document order. Failing sitemaps are skipped. Only a throttle signal or
// cancellation is returned as an error.
func (d *SitemapDiscoverer) Discover(ctx context.Context, sitemapURLs []string) ([]string, error) {
	urls := make([]string, 0)
	for _, sitemapURL := range sitemapURLs {
		found, err := d.fetchSitemap(ctx, sitemapURL, 0)
		if err != nil {
			return urls, err
		}
		urls = append(urls, found...)
	}
	return urls, nil
}

func (d *SitemapDiscoverer) fetchSitemap(ctx context.Context, sitemapURL string, depth int) ([]string, error) {
	if d.visited[sitemapURL] || depth >= MaxSitemapDepth {
		return nil, nil
	}
	d.visited[sitemapURL] = true

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, err := d.fetcher.Fetch(ctx, sitemapURL, d.userAgent)
	if err != nil {
		if errors.Is(err, types.ErrThrottled) || ctx.Err() != nil {
			return nil, err
		}
		d.logger.Debug().Err(err).Str("sitemap", sitemapURL).Msg("sitemap fetch failed")
		return nil, nil
	}
	if !resp.OK() {
		d.logger.Debug().Int("status", resp.StatusCode).Str("sitemap", sitemapURL).Msg("sitemap unavailable")
		return nil, nil
	}

	sm := parser.ParseSitemap(string(resp.Body))
	if !sm.Index {
		return sm.Locs, nil
	}

	urls := make([]string, 0)
	for _, nested := range sm.Locs {
		found, err := d.fetchSitemap(ctx, nested, depth+1)
		if err != nil {
			return urls, err
		}
		urls = append(urls, found...)
	}
	return urls, nil
}
