// Package cli implements the sitemapper command tree.
package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sitemapper",
		Short: "Discover every reachable URL of a web site",
		Long: `sitemapper crawls a single site breadth first from a seed address, honoring
robots.txt, and reports every in-domain URL it finds.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newCrawlCmd())
	rootCmd.AddCommand(newConfigCmd())
	return rootCmd
}

// Execute runs the command line
func Execute() error {
	return newRootCmd().Execute()
}

// newLogger builds the console logger written to w
func newLogger(w io.Writer, level string) (zerolog.Logger, error) {
	lvl := zerolog.InfoLevel
	if strings.TrimSpace(level) != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
		}
		lvl = parsed
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().
		Timestamp().
		Logger(), nil
}
