package robots

import (
	"net/url"
	"strings"
	"sync"
	"time"
)

// Evaluator answers crawl-policy questions for one user agent
type Evaluator interface {
	Allowed(rawURL string) bool
	CrawlDelay() (time.Duration, bool)
	Sitemaps() []string
}

// Policy evaluates a fetched robots.txt body on behalf of one user agent.
// The body is parsed lazily, once per host.
type Policy struct {
	body      string
	hostname  string
	userAgent string

	mu     sync.Mutex
	parsed map[string]*RuleSet
}

// NewPolicy creates a Policy for the robots.txt body served by hostname
func NewPolicy(body, hostname, userAgent string) *Policy {
	return &Policy{
		body:      body,
		hostname:  strings.ToLower(hostname),
		userAgent: userAgent,
		parsed:    make(map[string]*RuleSet),
	}
}

func (p *Policy) rules(host string) *RuleSet {
	host = strings.ToLower(host)
	if host == "" {
		host = p.hostname
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	rs, ok := p.parsed[host]
	if !ok {
		rs = Parse(p.body)
		p.parsed[host] = rs
	}
	return rs
}

// Allowed reports whether rawURL may be fetched. Anything that goes wrong
// while answering counts as allowed.
func (p *Policy) Allowed(rawURL string) (allowed bool) {
	defer func() {
		if recover() != nil {
			allowed = true
		}
	}()
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	return p.rules(u.Hostname()).Allowed(u.RequestURI(), p.userAgent)
}

// CrawlDelay returns the Crawl-delay that applies to the policy's user agent
func (p *Policy) CrawlDelay() (time.Duration, bool) {
	secs, ok := p.rules(p.hostname).CrawlDelay(p.userAgent)
	if !ok {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

// Sitemaps returns the Sitemap directives of the policy's host
func (p *Policy) Sitemaps() []string {
	return p.rules(p.hostname).Sitemaps()
}

// OtherValues returns unrecognised directives for host
func (p *Policy) OtherValues(host string) map[string][]string {
	return p.rules(host).OtherValues()
}
