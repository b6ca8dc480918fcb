package robots

import (
	"net/url"
	"time"

	"github.com/temoto/robotstxt"
)

// Standard evaluates robots.txt with RFC 9309 longest-match semantics,
// as an alternative to Policy's disallow-then-allow evaluation.
type Standard struct {
	data      *robotstxt.RobotsData
	userAgent string
}

// NewStandard parses body. A body that fails to parse allows everything.
func NewStandard(body, userAgent string) *Standard {
	data, err := robotstxt.FromString(body)
	if err != nil {
		data = nil
	}
	return &Standard{data: data, userAgent: userAgent}
}

// Allowed reports whether rawURL may be fetched
func (s *Standard) Allowed(rawURL string) bool {
	if s.data == nil {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	return s.data.TestAgent(u.RequestURI(), s.userAgent)
}

// CrawlDelay returns the Crawl-delay of the group chosen for the user agent
func (s *Standard) CrawlDelay() (time.Duration, bool) {
	if s.data == nil {
		return 0, false
	}
	g := s.data.FindGroup(s.userAgent)
	if g == nil || g.CrawlDelay <= 0 {
		return 0, false
	}
	return g.CrawlDelay, true
}

// Sitemaps returns the Sitemap directives
func (s *Standard) Sitemaps() []string {
	if s.data == nil {
		return nil
	}
	return append([]string(nil), s.data.Sitemaps...)
}
