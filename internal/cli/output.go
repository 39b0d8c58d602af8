// Package cli formats command output for bouquin.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"bouquin/internal/models"
	"bouquin/pkg/utils"
)

// OutputFormat selects how results are rendered.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact is one result per line.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// WriteRecommendations writes a recommendation response to w in the given format.
func WriteRecommendations(w io.Writer, resp *models.RecommendResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	case OutputCompact:
		for i, rec := range resp.Results {
			fmt.Fprintf(w, "%d\t%s\t%s\t%.4f\n", i+1, rec.BookID, rec.Title, rec.Distance)
		}
		return nil
	default:
		writeRecommendationsText(w, resp)
		return nil
	}
}

func writeRecommendationsText(w io.Writer, resp *models.RecommendResponse) {
	switch {
	case resp.SourceBook != "":
		fmt.Fprintf(w, "\nBooks similar to %s (%dms)\n\n", resp.SourceBook, resp.QueryTimeMS)
	case resp.Query != "":
		fmt.Fprintf(w, "\nBooks matching %q (%dms)\n\n", utils.Truncate(resp.Query, 60), resp.QueryTimeMS)
	default:
		fmt.Fprintf(w, "\nRecommendations (%dms)\n\n", resp.QueryTimeMS)
	}
	if len(resp.Results) == 0 {
		fmt.Fprintln(w, "No results.")
		return
	}
	for i, rec := range resp.Results {
		fmt.Fprintf(w, "%2d. %s  (distance %.4f)\n    id: %s\n", i+1, rec.Title, rec.Distance, rec.BookID)
	}
	fmt.Fprintln(w)
}

// WriteBooks writes a book list to w in the given format.
func WriteBooks(w io.Writer, resp *models.BrowseResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	case OutputCompact:
		for _, b := range resp.Books {
			fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\n", b.ID, b.Title, b.Author, b.Rating)
		}
		return nil
	default:
		fmt.Fprintf(w, "\n%d books (page %d, %d total)\n\n", len(resp.Books), resp.Page, resp.Total)
		for _, b := range resp.Books {
			fmt.Fprintf(w, "%-12s %-50s %-24s %.2f\n", b.ID, utils.Truncate(b.Title, 48), utils.Truncate(b.Author, 22), b.Rating)
		}
		fmt.Fprintln(w)
		return nil
	}
}

// ParseFormat maps a flag value onto an OutputFormat, defaulting to text.
func ParseFormat(s string) OutputFormat {
	switch OutputFormat(s) {
	case OutputJSON:
		return OutputJSON
	case OutputCompact:
		return OutputCompact
	default:
		return OutputText
	}
}
