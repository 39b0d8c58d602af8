// Package catalog loads the book catalog from CSV and serves browse,
// lookup, and statistics queries from a SQLite store.
package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"bouquin/internal/models"
	"bouquin/pkg/utils"
)

var (
	digitsRe = regexp.MustCompile(`\d+`)
	parensRe = regexp.MustCompile(`\(.*?\)`)
	priceRe  = regexp.MustCompile(`[^\d.]`)
)

// parseInt extracts the first run of digits from value. Returns 0 when none.
func parseInt(value string) int {
	m := digitsRe.FindString(value)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

// parseFloat parses value as a float. Returns 0 on failure.
func parseFloat(value string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return f
}

// parsePrice strips currency symbols and thousands separators, keeping the
// last dot as the decimal point ("1.234.56" -> 1234.56).
func parsePrice(value string) float64 {
	if value == "" {
		return 0
	}
	cleaned := priceRe.ReplaceAllString(value, "")
	parts := strings.Split(cleaned, ".")
	if len(parts) > 2 {
		cleaned = strings.Join(parts[:len(parts)-1], "") + "." + parts[len(parts)-1]
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return f
}

// cleanAuthor keeps the first listed author and drops role annotations
// like "(Goodreads Author)".
func cleanAuthor(raw string) string {
	if raw == "" {
		return ""
	}
	first := strings.SplitN(raw, ",", 2)[0]
	return strings.TrimSpace(parensRe.ReplaceAllString(first, ""))
}

// ReadBooks reads the catalog CSV at path and returns cleaned book records.
// Rows without a bookId are skipped. Column order is taken from the header.
func ReadBooks(path string) ([]*models.Book, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	if _, ok := col["bookId"]; !ok {
		return nil, fmt.Errorf("catalog csv missing bookId column")
	}

	field := func(record []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}

	var books []*models.Book
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv record: %w", err)
		}
		id := strings.TrimSpace(field(record, "bookId"))
		if id == "" {
			continue
		}
		author := cleanAuthor(field(record, "author"))
		books = append(books, &models.Book{
			ID:               id,
			Title:            field(record, "title"),
			Series:           field(record, "series"),
			Author:           author,
			AuthorNormalized: utils.Fold(author),
			Rating:           parseFloat(field(record, "rating")),
			Description:      field(record, "description"),
			Language:         field(record, "language"),
			ISBN:             field(record, "isbn"),
			Genres:           field(record, "genres"),
			Pages:            parseInt(field(record, "pages")),
			Publisher:        field(record, "publisher"),
			PublishDate:      field(record, "publishDate"),
			FirstPublishDate: field(record, "firstPublishDate"),
			Awards:           field(record, "awards"),
			NumRatings:       parseInt(field(record, "numRatings")),
			LikedPercent:     parseFloat(field(record, "likedPercent")),
			CoverURL:         field(record, "coverImg"),
			Price:            parsePrice(field(record, "price")),
		})
	}
	return books, nil
}
