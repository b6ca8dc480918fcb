package export

import (
	"encoding/xml"
	"fmt"
	"io"

	"github.com/BenjaminSRussell/sitemapper/internal/types"
)

const sitemapNS = "http://www.sitemaps.org/schemas/sitemap/0.9"

// URLSet represents the XML sitemap structure
type URLSet struct {
	XMLName xml.Name `xml:"urlset"`
	XMLNS   string   `xml:"xmlns,attr"`
	URLs    []URL    `xml:"url"`
}

// URL represents a single URL in the sitemap
type URL struct {
	Loc     string `xml:"loc"`
	Lastmod string `xml:"lastmod,omitempty"`
}

// writeSitemap writes every reported URL as a sitemap 0.9 urlset. Visited
// pages carry the crawl date as lastmod.
func writeSitemap(w io.Writer, results *types.Results) error {
	urlSet := URLSet{
		XMLNS: sitemapNS,
		URLs:  make([]URL, 0, len(results.URLs)),
	}

	lastmod := ""
	if !results.StartedAt.IsZero() {
		lastmod = results.StartedAt.Format("2006-01-02")
	}

	for _, e := range Entries(results) {
		u := URL{Loc: e.URL}
		if e.Visited {
			u.Lastmod = lastmod
		}
		urlSet.URLs = append(urlSet.URLs, u)
	}

	output, err := xml.MarshalIndent(urlSet, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal XML: %w", err)
	}

	if _, err := io.WriteString(w, xml.Header+string(output)+"\n"); err != nil {
		return fmt.Errorf("failed to write sitemap: %w", err)
	}
	return nil
}
