package crawler

import (
	"fmt"
	"runtime/debug"
)

// extractSafely runs the link extractor, turning a panic into an error
func (c *Crawler) extractSafely(url string, body []byte) (hrefs []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().
				Str("url", url).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("link extractor panicked")
			hrefs, err = nil, fmt.Errorf("panic during link extraction: %v", r)
		}
	}()

	return c.extractor.ExtractHrefs(body)
}
