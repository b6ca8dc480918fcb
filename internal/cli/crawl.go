package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/BenjaminSRussell/sitemapper/internal/config"
	"github.com/BenjaminSRussell/sitemapper/internal/crawler"
	"github.com/BenjaminSRussell/sitemapper/internal/export"
	"github.com/BenjaminSRussell/sitemapper/internal/types"
)

type crawlFlags struct {
	configPath        string
	userAgent         string
	sleep             time.Duration
	maxRequests       int
	resolve           bool
	output            string
	format            string
	logLevel          string
	respectCrawlDelay bool
	seedFromSitemaps  bool
	tlsHello          string
	robotsEngine      string
	timeout           time.Duration
	maxRetries        int
}

func newCrawlCmd() *cobra.Command {
	f := &crawlFlags{}
	defaults := types.DefaultConfig()

	crawlCmd := &cobra.Command{
		Use:   "crawl [url]",
		Short: "Crawl a site and report its URLs",
		Long: `Crawl a site breadth first from the given URL, or from start_url in the
config file, and write the discovered URLs to stdout or --output.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.config(cmd, args)
			if err != nil {
				return err
			}

			logger, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runCrawl(ctx, cfg, logger, cmd.OutOrStdout())
		},
	}

	flags := crawlCmd.Flags()
	flags.StringVarP(&f.configPath, "config", "c", "", "YAML config file")
	flags.StringVar(&f.userAgent, "user-agent", defaults.UserAgent, "User agent sent with requests and matched against robots.txt")
	flags.DurationVar(&f.sleep, "sleep", defaults.SleepBetweenRequests, "Politeness delay between requests")
	flags.IntVar(&f.maxRequests, "max-requests", defaults.MaxRequests, "Stop after visiting this many pages (0 = unbounded)")
	flags.BoolVar(&f.resolve, "resolve", defaults.ResolveDiscoveredURLs, "Follow redirects of every discovered URL before queueing it")
	flags.StringVarP(&f.output, "output", "o", defaults.OutputFile, "Write results to this file instead of stdout")
	flags.StringVarP(&f.format, "format", "f", defaults.OutputFormat, "Output format: txt/json/csv/xml/sqlite")
	flags.StringVar(&f.logLevel, "log-level", defaults.LogLevel, "Log level: trace/debug/info/warn/error")
	flags.BoolVar(&f.respectCrawlDelay, "respect-crawl-delay", defaults.RespectCrawlDelay, "Pace requests to robots.txt Crawl-delay when it is longer than --sleep")
	flags.BoolVar(&f.seedFromSitemaps, "seed-from-sitemaps", defaults.SeedFromSitemaps, "Queue the URLs listed in the site's sitemaps")
	flags.StringVar(&f.tlsHello, "tls-hello", defaults.TLSHello, "TLS ClientHello: empty for Go's default, or randomized")
	flags.StringVar(&f.robotsEngine, "robots-engine", defaults.RobotsEngine, "robots.txt evaluator: sitemapper or rfc9309")
	flags.DurationVar(&f.timeout, "timeout", defaults.Timeout, "Per-request timeout")
	flags.IntVar(&f.maxRetries, "max-retries", defaults.MaxRetries, "Retries for transport errors and 5xx responses")

	return crawlCmd
}

// config layers the config file, then explicitly set flags, then the URL
// argument over the defaults
func (f *crawlFlags) config(cmd *cobra.Command, args []string) (types.Config, error) {
	cfg := types.DefaultConfig()
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("user-agent") {
		cfg.UserAgent = f.userAgent
	}
	if flags.Changed("sleep") {
		cfg.SleepBetweenRequests = f.sleep
	}
	if flags.Changed("max-requests") {
		cfg.MaxRequests = f.maxRequests
	}
	if flags.Changed("resolve") {
		cfg.ResolveDiscoveredURLs = f.resolve
	}
	if flags.Changed("output") {
		cfg.OutputFile = f.output
	}
	if flags.Changed("format") {
		cfg.OutputFormat = f.format
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if flags.Changed("respect-crawl-delay") {
		cfg.RespectCrawlDelay = f.respectCrawlDelay
	}
	if flags.Changed("seed-from-sitemaps") {
		cfg.SeedFromSitemaps = f.seedFromSitemaps
	}
	if flags.Changed("tls-hello") {
		cfg.TLSHello = f.tlsHello
	}
	if flags.Changed("robots-engine") {
		cfg.RobotsEngine = f.robotsEngine
	}
	if flags.Changed("timeout") {
		cfg.Timeout = f.timeout
	}
	if flags.Changed("max-retries") {
		cfg.MaxRetries = f.maxRetries
	}
	if len(args) == 1 {
		cfg.StartURL = args[0]
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	if !validFormat(cfg.OutputFormat) {
		return cfg, fmt.Errorf("unknown output format %q", cfg.OutputFormat)
	}
	if cfg.OutputFormat == export.FormatSQLite && cfg.OutputFile == "" {
		return cfg, fmt.Errorf("format %q needs --output", cfg.OutputFormat)
	}
	return cfg, nil
}

func validFormat(format string) bool {
	for _, f := range export.Formats {
		if f == format {
			return true
		}
	}
	return false
}

// runCrawl crawls and writes the results. Partial results of a throttled
// crawl are written before the error is returned.
func runCrawl(ctx context.Context, cfg types.Config, logger zerolog.Logger, stdout io.Writer) error {
	c, err := crawler.NewFromConfig(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create crawler: %w", err)
	}

	results, crawlErr := c.CollectURLs(ctx, func(u string) {
		logger.Debug().Str("url", u).Msg("discovered")
	})
	if results == nil {
		return fmt.Errorf("crawl failed: %w", crawlErr)
	}

	if cfg.OutputFile != "" {
		err = export.WriteFile(cfg.OutputFile, cfg.OutputFormat, results)
	} else {
		err = export.Write(stdout, cfg.OutputFormat, results)
	}
	if err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}

	logger.Info().
		Int("visited", results.Visited).
		Int("pending", results.Pending).
		Int("errors", results.Errors).
		Str("state", string(results.State)).
		Str("output", cfg.OutputFile).
		Msg("crawl completed")

	if crawlErr != nil {
		if errors.Is(crawlErr, types.ErrThrottled) {
			return fmt.Errorf("crawl aborted, partial results written: %w", crawlErr)
		}
		return fmt.Errorf("crawl failed: %w", crawlErr)
	}
	return nil
}
