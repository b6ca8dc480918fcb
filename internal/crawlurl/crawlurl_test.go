package crawlurl

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BenjaminSRussell/sitemapper/internal/types"
)

type stubSeeds struct {
	final string
	err   error
	got   string
}

func (s *stubSeeds) Resolve(_ context.Context, url string) (string, error) {
	s.got = url
	return s.final, s.err
}

func newResolver(t *testing.T) *Resolver {
	t.Helper()
	r, err := New(context.Background(), "example.com", nil)
	require.NoError(t, err)
	return r
}

func TestNewDerivesSiteRoot(t *testing.T) {
	tests := []struct {
		name     string
		seed     string
		final    string
		wantBase string
		wantHost string
	}{
		{"bare host", "example.com", "", "http://example.com", "example.com"},
		{"redirect to https", "example.com", "https://www.example.com/home", "https://www.example.com", "www.example.com"},
		{"explicit 443", "http://example.com:443/", "", "https://example.com", "example.com"},
		{"custom port kept", "http://127.0.0.1:8080/x", "", "http://127.0.0.1:8080", "127.0.0.1"},
		{"upper case host", "HTTP://Example.COM", "", "http://example.com", "example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seeds := &stubSeeds{final: tt.final}
			r, err := New(context.Background(), tt.seed, seeds)
			require.NoError(t, err)
			assert.Equal(t, tt.wantBase, r.Root().ResolvedBaseURL)
			assert.Equal(t, tt.wantHost, r.Root().Hostname)
		})
	}
}

func TestNewPrependsScheme(t *testing.T) {
	seeds := &stubSeeds{}
	_, err := New(context.Background(), "example.com", seeds)
	require.NoError(t, err)
	assert.Equal(t, "http://example.com", seeds.got)
}

func TestNewFallsBackWhenResolutionFails(t *testing.T) {
	seeds := &stubSeeds{err: errors.New("dial tcp: no such host")}
	r, err := New(context.Background(), "https://example.com", seeds)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", r.BaseURL())
	assert.Equal(t, "https://example.com/", r.RootURL())
}

func TestNewRejectsHostlessSeed(t *testing.T) {
	_, err := FromResolved("http:///just/a/path")
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	r := newResolver(t)

	tests := []struct {
		name string
		href string
		page string
		want string
	}{
		{"absolute path", "/some/path", "http://example.com", "http://example.com/some/path"},
		{"absolute same host", "http://example.com/some/path", "", "http://example.com/some/path"},
		{"absolute root gets a path", "http://example.com", "", "http://example.com/"},
		{"protocol relative root", "//example.com?a=1", "", "http://example.com/?a=1"},
		{"absolute same host other scheme", "https://example.com/a", "http://example.com", "https://example.com/a"},
		{"relative to page dir", "c", "http://example.com/a/b", "http://example.com/a/c"},
		{"relative at root", "path", "http://example.com", "http://example.com/path"},
		{"relative to dir page", "d", "http://example.com/a/b/", "http://example.com/a/b/d"},
		{"dot slash", "./d", "http://example.com/a/b", "http://example.com/a/d"},
		{"one ascent", "../x", "http://example.com/a/b/c", "http://example.com/a/x"},
		{"two ascents", "../../x", "http://example.com/a/b/c/d", "http://example.com/a/x"},
		{"ascent past root", "../../x", "http://example.com/a", "http://example.com/x"},
		{"ascent capped at four", "../../../../../../x", "http://example.com/a/b/c/d/e/f/g", "http://example.com/a/b/x"},
		{"query only", "?q=query", "http://example.com/search", "http://example.com/search?q=query"},
		{"fragment stripped", "/a#frag", "http://example.com", "http://example.com/a"},
		{"protocol relative same host", "//example.com/x", "http://example.com", "http://example.com/x"},
		{"spaces escaped", "/my page", "http://example.com", "http://example.com/my%20page"},
		{"host-looking relative", "www.example.com", "http://example.com", "http://example.com/www.example.com"},
		{"page query ignored", "b", "http://example.com/a/x?y=1", "http://example.com/a/b"},
		{"inner ascent", "x/../a", "http://example.com/", "http://example.com/a"},
		{"dot segment in absolute path", "/a/./b", "http://example.com", "http://example.com/a/b"},
		{"dot segments in absolute url", "http://example.com/x/../a/./b/", "", "http://example.com/a/b/"},
		{"trailing parent keeps directory", "/a/b/..", "http://example.com", "http://example.com/a/"},
		{"trailing dot keeps directory", "c/.", "http://example.com/a/b", "http://example.com/a/c/"},
		{"dot segments with query", "/a/../b?c=../d", "http://example.com", "http://example.com/b?c=../d"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.href, tt.page)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveRejections(t *testing.T) {
	r := newResolver(t)

	tests := []struct {
		name string
		href string
		page string
		want error
	}{
		{"empty", "", "http://example.com", ErrIneligible},
		{"blank", "   ", "http://example.com", ErrIneligible},
		{"javascript", "javascript:foo", "http://example.com", ErrIneligible},
		{"mailto", "mailto:a@b", "http://example.com", ErrIneligible},
		{"tel", "tel:123", "http://example.com", ErrIneligible},
		{"fragment", "#frag", "http://example.com", ErrIneligible},
		{"email protection", "/cdn/email-protection#abc", "http://example.com", ErrIneligible},
		{"pdf", "/docs/file.pdf", "http://example.com", ErrIneligible},
		{"zip upper case", "/files/A.ZIP", "http://example.com", ErrIneligible},
		{"ftp scheme", "ftp://example.com/file", "http://example.com", ErrIneligible},
		{"other host", "http://www.google.com/", "http://www.example.com", ErrCrossDomain},
		{"subdomain", "http://blog.example.com/", "http://example.com", ErrCrossDomain},
		{"protocol relative other host", "//other.com/x", "http://example.com", ErrCrossDomain},
		{"relative without page", "some/path", "", ErrNoPageURL},
		{"root relative without page", "/some/path", "", ErrNoPageURL},
		{"query without page", "?q=1", "", ErrNoPageURL},
		{"malformed", "http://[::1", "http://example.com", ErrMalformed},
		{"malformed escape", "/a%zz", "http://example.com", ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.href, tt.page)
			assert.Empty(t, got)
			assert.ErrorIs(t, err, tt.want)
			assert.NotErrorIs(t, err, types.ErrThrottled)
		})
	}
}

func TestResolveThrottleMarker(t *testing.T) {
	r := newResolver(t)

	_, err := r.Resolve("https://example.com/sorry/index?continue=/x", "http://example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrThrottled)

	var te *types.ThrottledError
	require.ErrorAs(t, err, &te)
	assert.Contains(t, te.URL, "/sorry/index")
}

func TestResolveIgnoresMarkerLookalikes(t *testing.T) {
	r := newResolver(t)

	got, err := r.Resolve("/blog/too-many-requests-explained", "http://example.com")
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/blog/too-many-requests-explained", got)

	_, err = r.Resolve("https://www.google.com/sorry/index", "http://example.com")
	assert.ErrorIs(t, err, ErrCrossDomain)
	assert.NotErrorIs(t, err, types.ErrThrottled)

	_, err = r.Resolve("/Too-Many-Requests/", "http://example.com/a")
	assert.ErrorIs(t, err, types.ErrThrottled)

	_, err = r.Resolve("x/../sorry/index", "http://example.com/")
	assert.ErrorIs(t, err, types.ErrThrottled)
}

func TestIsThrottleMarker(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"http://example.com/sorry/index", true},
		{"http://example.com/sorry/index?continue=/a", true},
		{"http://example.com/cdn-cgi/challenge-platform/h/b", true},
		{"http://example.com/too-many-requests", true},
		{"http://example.com/sorry/indexes", false},
		{"http://example.com/blog/too-many-requests-explained", false},
		{"http://example.com/a?next=/sorry/index", false},
		{"http://[::1", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, IsThrottleMarker(tt.url))
		})
	}
}

func TestResolveKeepsHostForRelativeLinks(t *testing.T) {
	r := newResolver(t)
	hrefs := []string{"a", "/b", "../c", "../../../../../d", "?e=1", "./f/g"}
	pages := []string{"http://example.com", "http://example.com/x/y/z", "http://example.com/x/"}

	for _, href := range hrefs {
		for _, page := range pages {
			got, err := r.Resolve(href, page)
			require.NoError(t, err, "%s on %s", href, page)
			assert.True(t, r.SameHostString(got), "%s on %s gave %s", href, page, got)
		}
	}
}

func TestEligible(t *testing.T) {
	ineligible := []string{
		"javascript:", "callto:", "mailto:", "tel:", "skype:", "facetime:", "wtai:",
		"/email-protection#", "#", ".json", ".zip", ".rar", ".pdf", ".exe", ".dmg", ".pkg", ".dpkg", ".bat",
	}
	for _, href := range ineligible {
		assert.False(t, Eligible(href), href)
	}

	eligible := []string{"www.example.com", "example.com", "http://example.com", "https://example.com", "/path", "path", "?q=query"}
	for _, href := range eligible {
		assert.True(t, Eligible(href), href)
	}
}

func TestWithScheme(t *testing.T) {
	assert.Equal(t, "http://example.com", WithScheme("example.com"))
	assert.Equal(t, "http://example.com", WithScheme("//example.com"))
	assert.Equal(t, "https://example.com", WithScheme("https://example.com"))
}
