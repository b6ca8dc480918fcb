// Package robots evaluates robots.txt crawl policy.
package robots

import (
	"strconv"
	"strings"
)

// allowEverything stands in for a missing or empty robots.txt
const allowEverything = "User-agent: *\nAllow: /\n"

// group holds the rules collected under one User-agent pattern
type group struct {
	agent    pattern
	disallow []pattern
	allow    []pattern
	delay    int
	hasDelay bool
}

// RuleSet is a parsed robots.txt document. It is immutable once parsed.
type RuleSet struct {
	groups   []*group
	byAgent  map[string]*group
	sitemaps []string
	other    map[string][]string
}

// Parse builds a RuleSet from a robots.txt body. Lines it cannot make sense
// of are skipped; parsing never fails.
func Parse(body string) *RuleSet {
	if strings.TrimSpace(body) == "" {
		body = allowEverything
	}

	rs := &RuleSet{
		byAgent: make(map[string]*group),
		other:   make(map[string][]string),
	}

	agent := matchAll
	for _, raw := range strings.Split(body, "\n") {
		key, value, ok := splitDirective(raw)
		if !ok {
			continue
		}

		switch key {
		case "user-agent":
			agent = compilePattern(strings.ToLower(value))
		case "allow":
			g := rs.groupFor(agent)
			g.allow = append(g.allow, compilePattern(value))
		case "disallow":
			g := rs.groupFor(agent)
			g.disallow = append(g.disallow, compilePattern(value))
		case "crawl-delay":
			delay, ok := parseDelay(value)
			if !ok {
				continue
			}
			g := rs.groupFor(agent)
			g.delay = delay
			g.hasDelay = true
		case "sitemap":
			if value != "" {
				rs.sitemaps = append(rs.sitemaps, value)
			}
		default:
			rs.other[key] = append(rs.other[key], value)
		}
	}

	return rs
}

// splitDirective splits "Key: value # comment" into a lower-cased key and
// the trimmed value
func splitDirective(line string) (string, string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	i := strings.IndexByte(line, ':')
	if i < 0 {
		return "", "", false
	}
	key := strings.ToLower(strings.TrimSpace(line[:i]))
	if key == "" {
		return "", "", false
	}
	return key, strings.TrimSpace(line[i+1:]), true
}

func parseDelay(value string) (int, bool) {
	if n, err := strconv.Atoi(value); err == nil {
		return n, n >= 0
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return int(f), true
}

func (rs *RuleSet) groupFor(agent pattern) *group {
	key := agent.source
	if agent.never {
		key = "\x00never"
	}
	if g, ok := rs.byAgent[key]; ok {
		return g
	}
	g := &group{agent: agent}
	rs.byAgent[key] = g
	rs.groups = append(rs.groups, g)
	return g
}

// Allowed reports whether userAgent may fetch path. Every matching Disallow
// is evaluated before any Allow; an Allow can only lift a disallowed path.
func (rs *RuleSet) Allowed(path, userAgent string) bool {
	if path == "" {
		path = "/"
	}
	agent := strings.ToLower(userAgent)

	allowed := true
	for _, g := range rs.groups {
		if !g.agent.match(agent) {
			continue
		}
		for _, rule := range g.disallow {
			if rule.match(path) {
				allowed = false
			}
		}
	}
	if allowed {
		return true
	}

	for _, g := range rs.groups {
		if !g.agent.match(agent) {
			continue
		}
		for _, rule := range g.allow {
			if rule.match(path) {
				return true
			}
		}
	}
	return false
}

// CrawlDelay returns the delay in seconds of the first matching agent that set one
func (rs *RuleSet) CrawlDelay(userAgent string) (int, bool) {
	agent := strings.ToLower(userAgent)
	for _, g := range rs.groups {
		if g.hasDelay && g.agent.match(agent) {
			return g.delay, true
		}
	}
	return 0, false
}

// Sitemaps returns every Sitemap URL in document order
func (rs *RuleSet) Sitemaps() []string {
	out := make([]string, len(rs.sitemaps))
	copy(out, rs.sitemaps)
	return out
}

// OtherValues returns directives the parser has no dedicated handling for
func (rs *RuleSet) OtherValues() map[string][]string {
	out := make(map[string][]string, len(rs.other))
	for k, v := range rs.other {
		out[k] = append([]string(nil), v...)
	}
	return out
}
