package types

import (
	"context"
	"errors"
	"fmt"
)

// Response is what a Fetcher hands back for one GET
type Response struct {
	StatusCode int
	Body       []byte
	// FinalURL is the URL after redirects; empty when unknown
	FinalURL    string
	ContentType string
}

// OK reports a non-error status
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 400
}

// Fetcher issues GET requests on behalf of the crawler
type Fetcher interface {
	Fetch(ctx context.Context, url, userAgent string) (*Response, error)
}

// LinkExtractor turns a response body into raw anchor hrefs
type LinkExtractor interface {
	ExtractHrefs(body []byte) ([]string, error)
}

// SeedResolver follows redirects and returns the final URL
type SeedResolver interface {
	Resolve(ctx context.Context, url string) (string, error)
}

// ErrThrottled marks the target site rate limiting or challenging the crawler
var ErrThrottled = errors.New("throttled by target")

// ThrottledError aborts a whole crawl
type ThrottledError struct {
	URL    string
	Reason string
}

func (e *ThrottledError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%v: %s", ErrThrottled, e.URL)
	}
	return fmt.Sprintf("%v: %s (%s)", ErrThrottled, e.URL, e.Reason)
}

// Is lets errors.Is(err, ErrThrottled) match
func (e *ThrottledError) Is(target error) bool {
	return target == ErrThrottled
}
