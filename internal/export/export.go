// Package export writes a crawl's URL list to disk.
package export

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/BenjaminSRussell/sitemapper/internal/types"
)

// Supported output formats
const (
	FormatText    = "txt"
	FormatJSON    = "json"
	FormatCSV     = "csv"
	FormatSitemap = "xml"
	FormatSQLite  = "sqlite"
)

// Formats lists every supported format
var Formats = []string{FormatText, FormatJSON, FormatCSV, FormatSitemap, FormatSQLite}

// Entry is one exported URL
type Entry struct {
	URL     string `json:"url"`
	Visited bool   `json:"visited"`
}

// Entries flattens results into export entries in result order
func Entries(results *types.Results) []Entry {
	entries := make([]Entry, 0, len(results.URLs))
	for i, u := range results.URLs {
		entries = append(entries, Entry{URL: u, Visited: i < results.Visited})
	}
	return entries
}

// Report is the JSON document written by the json format
type Report struct {
	State     types.CrawlState `json:"state"`
	StartedAt time.Time        `json:"started_at"`
	Duration  string           `json:"duration"`
	Visited   int              `json:"visited"`
	Pending   int              `json:"pending"`
	Errors    int              `json:"errors"`
	URLs      []Entry          `json:"urls"`
}

// WriteFile writes results to path in format
func WriteFile(path, format string, results *types.Results) error {
	if format == FormatSQLite {
		_, err := ExportSQLite(path, results)
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	if err := Write(file, format, results); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// Write streams results to w in a text based format
func Write(w io.Writer, format string, results *types.Results) error {
	switch format {
	case FormatText, "":
		return writeText(w, results)
	case FormatJSON:
		return writeJSON(w, results)
	case FormatCSV:
		return writeCSV(w, results)
	case FormatSitemap:
		return writeSitemap(w, results)
	case FormatSQLite:
		return fmt.Errorf("format %q needs a file path", format)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func writeText(w io.Writer, results *types.Results) error {
	bw := bufio.NewWriter(w)
	for _, u := range results.URLs {
		if _, err := fmt.Fprintln(bw, u); err != nil {
			return fmt.Errorf("failed to write URL: %w", err)
		}
	}
	return bw.Flush()
}

func writeJSON(w io.Writer, results *types.Results) error {
	report := Report{
		State:     results.State,
		StartedAt: results.StartedAt,
		Duration:  results.Duration.String(),
		Visited:   results.Visited,
		Pending:   results.Pending,
		Errors:    results.Errors,
		URLs:      Entries(results),
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return nil
}

func writeCSV(w io.Writer, results *types.Results) error {
	writer := csv.NewWriter(w)

	if err := writer.Write([]string{"URL", "Visited"}); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, e := range Entries(results) {
		if err := writer.Write([]string{e.URL, strconv.FormatBool(e.Visited)}); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}
