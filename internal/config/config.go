// Package config loads sitemapper settings from YAML files.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/BenjaminSRussell/sitemapper/internal/types"
)

// File mirrors types.Config with YAML keys
type File struct {
	StartURL string      `yaml:"start_url"`
	Crawl    CrawlFile   `yaml:"crawl"`
	HTTP     HTTPFile    `yaml:"http"`
	Robots   RobotsFile  `yaml:"robots"`
	Output   OutputFile  `yaml:"output"`
	Logging  LoggingFile `yaml:"logging"`
}

// CrawlFile holds the crawl options
type CrawlFile struct {
	UserAgent             string   `yaml:"user_agent"`
	SleepBetweenRequests  Duration `yaml:"sleep_between_requests"`
	MaxRequests           int      `yaml:"max_requests"`
	ResolveDiscoveredURLs bool     `yaml:"resolve_discovered_urls"`
	SeedFromSitemaps      bool     `yaml:"seed_from_sitemaps"`
}

// HTTPFile holds transport settings
type HTTPFile struct {
	Timeout      Duration `yaml:"timeout"`
	MaxRetries   int      `yaml:"max_retries"`
	TLSHello     string   `yaml:"tls_hello"`
	MaxBodyBytes int64    `yaml:"max_body_bytes"`
}

// RobotsFile holds robots.txt handling
type RobotsFile struct {
	Engine            string `yaml:"engine"`
	RespectCrawlDelay bool   `yaml:"respect_crawl_delay"`
}

// OutputFile holds where results go
type OutputFile struct {
	Path   string `yaml:"path"`
	Format string `yaml:"format"`
}

// LoggingFile holds the log level
type LoggingFile struct {
	Level string `yaml:"level"`
}

// FromConfig converts a Config into its file form
func FromConfig(c types.Config) File {
	return File{
		StartURL: c.StartURL,
		Crawl: CrawlFile{
			UserAgent:             c.UserAgent,
			SleepBetweenRequests:  DurationFrom(c.SleepBetweenRequests),
			MaxRequests:           c.MaxRequests,
			ResolveDiscoveredURLs: c.ResolveDiscoveredURLs,
			SeedFromSitemaps:      c.SeedFromSitemaps,
		},
		HTTP: HTTPFile{
			Timeout:      DurationFrom(c.Timeout),
			MaxRetries:   c.MaxRetries,
			TLSHello:     c.TLSHello,
			MaxBodyBytes: c.MaxBodyBytes,
		},
		Robots: RobotsFile{
			Engine:            c.RobotsEngine,
			RespectCrawlDelay: c.RespectCrawlDelay,
		},
		Output: OutputFile{
			Path:   c.OutputFile,
			Format: c.OutputFormat,
		},
		Logging: LoggingFile{Level: c.LogLevel},
	}
}

// Config converts the file form back into a Config
func (f File) Config() types.Config {
	return types.Config{
		StartURL: strings.TrimSpace(f.StartURL),
		CrawlOptions: types.CrawlOptions{
			UserAgent:             strings.TrimSpace(f.Crawl.UserAgent),
			SleepBetweenRequests:  f.Crawl.SleepBetweenRequests.Duration,
			MaxRequests:           f.Crawl.MaxRequests,
			ResolveDiscoveredURLs: f.Crawl.ResolveDiscoveredURLs,
		},
		Timeout:           f.HTTP.Timeout.Duration,
		MaxRetries:        f.HTTP.MaxRetries,
		TLSHello:          strings.TrimSpace(f.HTTP.TLSHello),
		MaxBodyBytes:      f.HTTP.MaxBodyBytes,
		RobotsEngine:      strings.TrimSpace(f.Robots.Engine),
		LogLevel:          strings.TrimSpace(f.Logging.Level),
		OutputFile:        strings.TrimSpace(f.Output.Path),
		OutputFormat:      strings.TrimSpace(f.Output.Format),
		RespectCrawlDelay: f.Robots.RespectCrawlDelay,
		SeedFromSitemaps:  f.Crawl.SeedFromSitemaps,
	}
}

// Load reads a YAML config file on top of types.DefaultConfig. The start
// URL may be left for the command line, so the result is not validated.
func Load(path string) (types.Config, error) {
	fh, err := os.Open(path)
	if err != nil {
		return types.Config{}, fmt.Errorf("open config: %w", err)
	}
	defer fh.Close()

	return LoadFromReader(fh)
}

// LoadFromReader is Load for an already open document
func LoadFromReader(r io.Reader) (types.Config, error) {
	file := FromConfig(types.DefaultConfig())

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && err != io.EOF {
		return types.Config{}, fmt.Errorf("decode config: %w", err)
	}

	return file.Config(), nil
}

// Write emits c as YAML
func Write(w io.Writer, c types.Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(FromConfig(c)); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}
