package crawler

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	sitehttp "github.com/BenjaminSRussell/sitemapper/internal/http"
	"github.com/BenjaminSRussell/sitemapper/internal/types"
)

// NewFromConfig builds a Crawler with the default collaborators configured
// from config. Extra options are applied last.
func NewFromConfig(ctx context.Context, config types.Config, logger zerolog.Logger, extra ...Option) (*Crawler, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	fetcher, err := sitehttp.FromConfig(config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetcher: %w", err)
	}

	options := []Option{
		WithFetcher(fetcher),
		WithSeedResolver(fetcher),
		WithLogger(logger),
		WithRespectCrawlDelay(config.RespectCrawlDelay),
		WithSitemapSeeding(config.SeedFromSitemaps),
	}
	if config.RobotsEngine != "" {
		options = append(options, WithRobotsEngine(config.RobotsEngine))
	}

	return New(ctx, config.StartURL, config.CrawlOptions, append(options, extra...)...)
}
