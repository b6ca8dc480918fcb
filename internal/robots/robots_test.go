package robots

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const userAgent = "SiteMapper/1.0 (+https://github.com/BenjaminSRussell/sitemapper)"

func loadRules(t *testing.T, name string) *RuleSet {
	t.Helper()
	body, err := os.ReadFile(filepath.Join("testdata", name+".txt"))
	require.NoError(t, err)
	return Parse(string(body))
}

func TestAllowOverridesDisallow(t *testing.T) {
	rs := Parse("User-agent: *\nDisallow: /private\nAllow: /private/public\n")

	assert.False(t, rs.Allowed("/private/x", userAgent))
	assert.True(t, rs.Allowed("/private/public/x", userAgent))
	assert.True(t, rs.Allowed("/", userAgent))
}

func TestEmptyBodyAllowsEverything(t *testing.T) {
	for _, body := range []string{"", "   \n\n"} {
		rs := Parse(body)
		for _, path := range []string{"/", "/somepath", "/a/b?c=d"} {
			for _, ua := range []string{userAgent, "Googlebot", ""} {
				assert.True(t, rs.Allowed(path, ua), "%q %q", path, ua)
			}
		}
	}
}

func TestRuleSetFixtures(t *testing.T) {
	tests := []struct {
		fixture string
		path    string
		agent   string
		want    bool
	}{
		{"search", "/", userAgent, true},
		{"search", "/news/directory", userAgent, true},
		{"search", "/news/today", userAgent, false},
		{"search", "/googlesites", userAgent, false},
		{"search", "/googlesites/x", userAgent, false},
		{"search", "/search?q=x", userAgent, false},
		{"search", "/search/about", userAgent, true},
		{"search", "/index.php", userAgent, false},
		{"search", "/index.php?x=1", userAgent, true},
		{"search", "/?hl=en", userAgent, true},
		{"search", "/?hl=en&x=1", userAgent, true},
		{"reviews", "/", userAgent, true},
		{"reviews", "/advertise?", userAgent, false},
		{"reviews", "/advertise", userAgent, true},
		{"reviews", "/", "fasterfox", false},
		{"reviews", "/", "Fasterfox", false},
		{"reviews", "/support", "Googlebot/2.1", false},
		{"reviews", "/support", userAgent, true},
		{"tickets", "/", userAgent, true},
		{"tickets", "/rss/feed", userAgent, false},
		{"tickets", "/", "Balihoo", false},
		{"emptyish", "/", userAgent, true},
		{"emptyish", "/somepath", userAgent, true},
	}

	for _, tt := range tests {
		t.Run(tt.fixture+tt.path+tt.agent, func(t *testing.T) {
			rs := loadRules(t, tt.fixture)
			assert.Equal(t, tt.want, rs.Allowed(tt.path, tt.agent))
		})
	}
}

func TestDisallowFromEveryGroupBeforeAllow(t *testing.T) {
	// The Allow sits in an earlier block than the Disallow it lifts
	body := `
User-agent: sitemapper
Allow: /docs/public

User-agent: *
Disallow: /docs
`
	rs := Parse(body)

	assert.True(t, rs.Allowed("/docs/public/a", userAgent))
	assert.False(t, rs.Allowed("/docs/private", userAgent))
	assert.False(t, rs.Allowed("/docs/public/a", "OtherBot"))
}

func TestRepeatedAgentBlocksMerge(t *testing.T) {
	body := "User-agent: *\nDisallow: /a\n\nUser-agent: *\nDisallow: /b\n"
	rs := Parse(body)

	assert.Len(t, rs.groups, 1)
	assert.False(t, rs.Allowed("/a", userAgent))
	assert.False(t, rs.Allowed("/b", userAgent))
}

func TestRulesBeforeUserAgentApplyToEveryone(t *testing.T) {
	rs := Parse("Disallow: /tmp\n")
	assert.False(t, rs.Allowed("/tmp/x", "anybot"))
}

func TestCrawlDelay(t *testing.T) {
	rs := Parse("User-agent: slowbot\nCrawl-delay: 5\n\nUser-agent: fastbot\nCrawl-delay: soon\n")

	delay, ok := rs.CrawlDelay("SlowBot/2.0")
	assert.True(t, ok)
	assert.Equal(t, 5, delay)

	_, ok = rs.CrawlDelay(userAgent)
	assert.False(t, ok)

	_, ok = rs.CrawlDelay("fastbot")
	assert.False(t, ok, "unparseable delay is skipped")

	delay, ok = loadRules(t, "tickets").CrawlDelay(userAgent)
	assert.True(t, ok)
	assert.Equal(t, 10, delay)

	delay, ok = Parse("User-agent: *\nCrawl-delay: 1.5\n").CrawlDelay(userAgent)
	assert.True(t, ok)
	assert.Equal(t, 1, delay)
}

func TestSitemapsAndOtherValues(t *testing.T) {
	rs := loadRules(t, "search")
	assert.Len(t, rs.Sitemaps(), 3)
	assert.Equal(t, "https://www.example.com/sitemaps_webmasters.xml", rs.Sitemaps()[0])
	assert.Empty(t, rs.OtherValues())

	empty := loadRules(t, "emptyish")
	assert.Equal(t, map[string][]string{"other-key": {"4"}}, empty.OtherValues())
	assert.Empty(t, empty.Sitemaps())
}

func TestInlineCommentsAndCarriageReturns(t *testing.T) {
	rs := Parse("User-agent: *\r\nDisallow: /cart # checkout flow\r\n")
	assert.False(t, rs.Allowed("/cart", userAgent))
	assert.False(t, rs.Allowed("/cart-guide", userAgent), "rules are prefixes")
	assert.True(t, rs.Allowed("/about", userAgent))
}

func TestPatternMatch(t *testing.T) {
	tests := []struct {
		pattern string
		subject string
		want    bool
	}{
		{"", "/", false},
		{"", "", false},
		{"/", "/anything", true},
		{"/a", "/abc", true},
		{"/a", "/b/a", false},
		{"/*.gif", "/img/x.gif", true},
		{"/*.gif", "/img/x.gif?size=2", true},
		{"/*.gif$", "/img/x.gif?size=2", false},
		{"/*.gif$", "/img/x.gif", true},
		{"/a*b*c", "/a-b-c-d", true},
		{"/a*b*c", "/a-c-b", false},
		{"/exact$", "/exact", true},
		{"/exact$", "/exactly", false},
		{"/ab*ba$", "/aba", false},
		{"/a.b", "/axb", false},
		{"/a(b)", "/a(b)/c", true},
		{"*", "", true},
		{"googlebot", "googlebot-news", true},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+" "+tt.subject, func(t *testing.T) {
			assert.Equal(t, tt.want, compilePattern(tt.pattern).match(tt.subject))
		})
	}
}

func TestPolicy(t *testing.T) {
	body := "User-agent: *\nDisallow: /private\nCrawl-delay: 3\nSitemap: https://example.com/sitemap.xml\nHost: example.com\n"
	p := NewPolicy(body, "example.com", userAgent)

	assert.True(t, p.Allowed("http://example.com/"))
	assert.False(t, p.Allowed("http://example.com/private/x"))
	assert.True(t, p.Allowed("http://example.com/public?private"))
	assert.True(t, p.Allowed("http://[::1"), "unparseable url fails open")

	delay, ok := p.CrawlDelay()
	assert.True(t, ok)
	assert.Equal(t, 3*time.Second, delay)

	assert.Equal(t, []string{"https://example.com/sitemap.xml"}, p.Sitemaps())
	assert.Equal(t, map[string][]string{"host": {"example.com"}}, p.OtherValues("example.com"))
}

func TestPolicyMemoizesPerHost(t *testing.T) {
	p := NewPolicy("User-agent: *\nDisallow: /x\n", "Example.com", userAgent)

	assert.False(t, p.Allowed("http://example.com/x"))
	assert.False(t, p.Allowed("http://EXAMPLE.com/x/y"))
	assert.False(t, p.Allowed("http://mirror.example.com/x"))
	assert.Len(t, p.parsed, 2)
}

func TestPolicyWithoutBody(t *testing.T) {
	p := NewPolicy("", "example.com", userAgent)

	assert.True(t, p.Allowed("http://example.com/anything"))
	_, ok := p.CrawlDelay()
	assert.False(t, ok)
	assert.Empty(t, p.Sitemaps())
}

func TestStandard(t *testing.T) {
	s := NewStandard("User-agent: *\nDisallow: /private\nAllow: /private/public\nCrawl-delay: 2\nSitemap: https://example.com/s.xml\n", userAgent)

	assert.False(t, s.Allowed("http://example.com/private/x"))
	assert.True(t, s.Allowed("http://example.com/private/public/x"))
	assert.True(t, s.Allowed("http://example.com/"))

	delay, ok := s.CrawlDelay()
	assert.True(t, ok)
	assert.Equal(t, 2*time.Second, delay)
	assert.Equal(t, []string{"https://example.com/s.xml"}, s.Sitemaps())
}

func TestStandardEmptyBody(t *testing.T) {
	s := NewStandard("", userAgent)
	assert.True(t, s.Allowed("http://example.com/anything"))
	_, ok := s.CrawlDelay()
	assert.False(t, ok)
}

func TestEvaluatorsSatisfyInterface(t *testing.T) {
	var _ Evaluator = NewPolicy("", "example.com", userAgent)
	var _ Evaluator = NewStandard("", userAgent)
}
