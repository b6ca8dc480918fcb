// Package crawlurl turns raw anchor hrefs into canonical absolute URLs on the
// crawled host, or rejects them.
package crawlurl

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"path"
	"strings"

	"github.com/BenjaminSRussell/sitemapper/internal/types"
)

// maxAscent caps how many "../" groups walk up the page path
const maxAscent = 4

var (
	// ErrIneligible is returned for hrefs caught by the eligibility filter
	ErrIneligible = errors.New("ineligible href")
	// ErrMalformed is returned for hrefs that cannot be parsed
	ErrMalformed = errors.New("malformed href")
	// ErrCrossDomain is returned for absolute hrefs on another host
	ErrCrossDomain = errors.New("cross-domain href")
	// ErrNoPageURL is returned for relative hrefs without a page to resolve against
	ErrNoPageURL = errors.New("relative href without page url")
)

var (
	skipPrefixes = []string{"javascript:", "callto:", "mailto:", "tel:", "skype:", "facetime:", "wtai:", "#"}
	skipContains = []string{"/email-protection#"}
	skipSuffixes = []string{".zip", ".rar", ".json", ".pdf", ".exe", ".dmg", ".pkg", ".dpkg", ".bat"}

	// ThrottleMarkers are paths sites redirect crawlers to when rate limiting them
	ThrottleMarkers = []string{"/sorry/index", "/too-many-requests", "/cdn-cgi/challenge-platform"}
)

// Resolver builds absolute same-host URLs relative to a resolved seed
type Resolver struct {
	root   types.SiteRoot
	scheme string
}

// New resolves seed through seeds and derives the site root from the result
func New(ctx context.Context, seed string, seeds types.SeedResolver) (*Resolver, error) {
	seed = WithScheme(strings.TrimSpace(seed))
	resolved := seed
	if seeds != nil {
		final, err := seeds.Resolve(ctx, seed)
		if err == nil && final != "" {
			resolved = WithScheme(final)
		}
	}
	return FromResolved(resolved)
}

// FromResolved builds a Resolver from an already resolved base URL
func FromResolved(resolved string) (*Resolver, error) {
	u, err := url.Parse(resolved)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", resolved, err)
	}
	hostname := strings.ToLower(u.Hostname())
	if hostname == "" {
		return nil, fmt.Errorf("base url %q has no host", resolved)
	}

	port := u.Port()
	if port == "" {
		if u.Scheme == "https" {
			port = "443"
		} else {
			port = "80"
		}
	}

	scheme := "http"
	if port == "443" {
		scheme = "https"
	}

	host := hostname
	if port != "443" && port != "80" {
		host = net.JoinHostPort(hostname, port)
	}

	return &Resolver{
		root: types.SiteRoot{
			ResolvedBaseURL: scheme + "://" + host,
			Hostname:        hostname,
		},
		scheme: scheme,
	}, nil
}

// Root returns the canonical site root
func (r *Resolver) Root() types.SiteRoot {
	return r.root
}

// BaseURL returns the resolved base URL without a trailing slash
func (r *Resolver) BaseURL() string {
	return r.root.ResolvedBaseURL
}

// RootURL returns the URL of the site's root page
func (r *Resolver) RootURL() string {
	return r.root.ResolvedBaseURL + "/"
}

// Resolve returns the canonical absolute URL for rawHref found on pageURL.
// Filtering decisions come back as ErrIneligible, ErrMalformed, ErrCrossDomain
// or ErrNoPageURL; a same-host link onto a challenge path comes back as
// *types.ThrottledError.
func (r *Resolver) Resolve(rawHref, pageURL string) (string, error) {
	resolved, err := r.resolve(rawHref, pageURL)
	if err != nil {
		return "", err
	}
	if IsThrottleMarker(resolved) {
		return "", &types.ThrottledError{URL: resolved, Reason: "challenge marker in link"}
	}
	return resolved, nil
}

func (r *Resolver) resolve(rawHref, pageURL string) (string, error) {
	href := strings.TrimSpace(rawHref)
	if href == "" || !Eligible(href) {
		return "", ErrIneligible
	}

	href = stripFragment(href)
	parsed, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch {
	case parsed.Scheme != "":
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return "", ErrIneligible
		}
		if !r.SameHost(parsed) {
			return "", ErrCrossDomain
		}
		return normalize(parsed), nil
	case strings.HasPrefix(href, "//"):
		if !r.SameHost(parsed) {
			return "", ErrCrossDomain
		}
		parsed.Scheme = r.scheme
		return normalize(parsed), nil
	}

	if strings.TrimSpace(pageURL) == "" {
		return "", ErrNoPageURL
	}
	if strings.HasPrefix(href, "/") {
		return canonical(r.root.ResolvedBaseURL + href)
	}
	page, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("%w: page %v", ErrMalformed, err)
	}
	if strings.HasPrefix(href, "?") {
		return canonical(r.root.ResolvedBaseURL + pagePath(page) + href)
	}
	return canonical(r.root.ResolvedBaseURL + relativePath(pageDir(page), href))
}

// SameHost reports whether u points at the crawled host
func (r *Resolver) SameHost(u *url.URL) bool {
	return strings.EqualFold(u.Hostname(), r.root.Hostname)
}

// SameHostString is SameHost for a raw URL string
func (r *Resolver) SameHostString(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return r.SameHost(u)
}

// Eligible applies the scheme, pattern and extension blacklist
func Eligible(href string) bool {
	if href == "" {
		return false
	}
	lower := strings.ToLower(href)
	for _, p := range skipPrefixes {
		if strings.HasPrefix(lower, p) {
			return false
		}
	}
	for _, p := range skipContains {
		if strings.Contains(lower, p) {
			return false
		}
	}
	for _, p := range skipSuffixes {
		if strings.HasSuffix(lower, p) {
			return false
		}
	}
	return true
}

// IsThrottleMarker reports whether the path of rawURL is, or sits under, a
// rate-limit challenge path
func IsThrottleMarker(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return IsThrottlePath(u.Path)
}

// IsThrottlePath matches p against ThrottleMarkers on whole path segments
func IsThrottlePath(p string) bool {
	p = strings.ToLower(p)
	for _, m := range ThrottleMarkers {
		if p == m || strings.HasPrefix(p, m+"/") {
			return true
		}
	}
	return false
}

// WithScheme prepends http:// to URLs that carry no scheme
func WithScheme(raw string) string {
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return raw
	}
	return "http://" + strings.TrimPrefix(raw, "//")
}

func canonical(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return normalize(u), nil
}

// normalize removes dot segments from the path and gives an empty path the
// root path, so that "http://host", "http://host/" and "http://host/a/../"
// dedupe
func normalize(u *url.URL) string {
	if u.Opaque != "" {
		return u.String()
	}
	cleaned := cleanPath(u.EscapedPath())
	if unescaped, err := url.PathUnescape(cleaned); err == nil {
		u.Path = unescaped
		u.RawPath = cleaned
	}
	return u.String()
}

// cleanPath applies path.Clean to an escaped path, keeping a trailing slash
// and the directory meaning of a trailing "." or ".." segment
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	cleaned := path.Clean("/" + p)
	dir := strings.HasSuffix(p, "/") || strings.HasSuffix(p, "/.") || strings.HasSuffix(p, "/..")
	if dir && cleaned != "/" {
		cleaned += "/"
	}
	return cleaned
}

func stripFragment(href string) string {
	if i := strings.IndexByte(href, '#'); i >= 0 {
		return href[:i]
	}
	return href
}

func pagePath(page *url.URL) string {
	if page.EscapedPath() == "" {
		return "/"
	}
	return page.EscapedPath()
}

// pageDir returns the directory portion of the page path, always ending in "/"
func pageDir(page *url.URL) string {
	p := pagePath(page)
	return p[:strings.LastIndexByte(p, '/')+1]
}

// relativePath appends href to dir, walking up one directory per leading
// "../" group and at most maxAscent levels.
func relativePath(dir, href string) string {
	for strings.HasPrefix(href, "./") {
		href = href[2:]
	}

	ascents := 0
	for strings.HasPrefix(href, "../") {
		href = href[3:]
		ascents++
	}
	if href == ".." {
		href = ""
		ascents++
	}
	if ascents > maxAscent {
		ascents = maxAscent
	}

	segments := strings.Split(strings.Trim(dir, "/"), "/")
	if len(segments) == 1 && segments[0] == "" {
		segments = nil
	}
	for i := 0; i < ascents && len(segments) > 0; i++ {
		segments = segments[:len(segments)-1]
	}

	base := "/"
	if len(segments) > 0 {
		base = "/" + strings.Join(segments, "/") + "/"
	}
	return base + href
}
