package parser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// HTMLExtractor pulls anchor hrefs out of HTML documents
type HTMLExtractor struct{}

// NewHTMLExtractor creates an extractor for <a href> links
func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{}
}

// ExtractHrefs returns the raw href of every anchor in document order.
// Values are neither resolved nor de-duplicated.
func (e *HTMLExtractor) ExtractHrefs(body []byte) ([]string, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	hrefs := make([]string, 0)
	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		if href, exists := s.Attr("href"); exists {
			hrefs = append(hrefs, href)
		}
	})

	return hrefs, nil
}

// Sitemap is the content of one sitemap document
type Sitemap struct {
	// Locs are the <loc> values in document order
	Locs []string
	// Index is set for <sitemapindex> documents, whose locs are sitemaps
	Index bool
}

// ParseSitemap reads a sitemap or sitemap index. Unparseable input yields an
// empty Sitemap.
func ParseSitemap(xmlContent string) Sitemap {
	var sm Sitemap

	doc, err := html.Parse(strings.NewReader(xmlContent))
	if err != nil {
		return sm
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "sitemapindex":
				sm.Index = true
			case "loc":
				if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					if loc := strings.TrimSpace(n.FirstChild.Data); loc != "" {
						sm.Locs = append(sm.Locs, loc)
					}
				}
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(doc)
	return sm
}

// ExtractSitemapURLs extracts URLs from a sitemap XML
func ExtractSitemapURLs(xmlContent string) []string {
	return ParseSitemap(xmlContent).Locs
}
