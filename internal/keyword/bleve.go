// Package keyword provides full-text search over the book catalog using Bleve.
package keyword

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"bouquin/internal/models"
)

// Result is a single search hit.
type Result struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Boost applied to title matches over author and description matches.
const titleBoost = 3.0
const authorBoost = 2.0

// bookDoc is the indexed shape of a book.
type bookDoc struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Description string `json:"description"`
}

// Index is a Bleve-backed catalog search index.
type Index struct {
	index bleve.Index
}

// NewIndex creates or opens a Bleve index at path. An existing index is
// reused; remove the directory to force a rebuild after a mapping change.
func NewIndex(path string) (*Index, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &Index{index: index}, nil
	}

	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so "tolkien"
	// matches exactly what was indexed.
	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("title", textField)
	docMapping.AddFieldMappingsAt("author", textField)
	docMapping.AddFieldMappingsAt("description", textField)
	im.AddDocumentMapping("book", docMapping)
	im.DefaultType = "book"
	im.DefaultMapping = docMapping

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &Index{index: index}, nil
}

// SyncBooks indexes the given books in one batch. Already-indexed ids are
// overwritten, so re-syncing after a catalog change is safe.
func (x *Index) SyncBooks(ctx context.Context, books []*models.Book) error {
	batch := x.index.NewBatch()
	for _, b := range books {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc := bookDoc{Title: b.Title, Author: b.Author, Description: b.Description}
		if err := batch.Index(b.ID, doc); err != nil {
			return fmt.Errorf("index book %s: %w", b.ID, err)
		}
	}
	if err := x.index.Batch(batch); err != nil {
		return fmt.Errorf("Bleve batch failed: %w", err)
	}
	return nil
}

// Search matches query against title, author, and description, with title
// and author matches boosted, and returns up to limit hits by score.
func (x *Index) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	titleQ := bleve.NewMatchQuery(query)
	titleQ.SetField("title")
	titleQ.SetBoost(titleBoost)
	authorQ := bleve.NewMatchQuery(query)
	authorQ.SetField("author")
	authorQ.SetBoost(authorBoost)
	descQ := bleve.NewMatchQuery(query)
	descQ.SetField("description")

	q := bleve.NewDisjunctionQuery([]blevequery.Query{titleQ, authorQ, descQ}...)
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	results, err := x.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]Result, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = Result{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// Delete removes a book from the index.
func (x *Index) Delete(ctx context.Context, id string) error {
	return x.index.Delete(id)
}

// DocCount returns the number of indexed books.
func (x *Index) DocCount() (uint64, error) {
	return x.index.DocCount()
}

// Terms returns the unique indexed terms of the title and author fields,
// used by the suggester dictionary.
func (x *Index) Terms() ([]string, error) {
	seen := make(map[string]struct{})
	terms := make([]string, 0)
	for _, field := range []string{"title", "author"} {
		dict, err := x.index.FieldDict(field)
		if err != nil {
			continue
		}
		for {
			entry, err := dict.Next()
			if err != nil || entry == nil {
				break
			}
			if _, ok := seen[entry.Term]; !ok {
				seen[entry.Term] = struct{}{}
				terms = append(terms, entry.Term)
			}
		}
		dict.Close()
	}
	return terms, nil
}

// Close closes the underlying index.
func (x *Index) Close() error {
	return x.index.Close()
}
