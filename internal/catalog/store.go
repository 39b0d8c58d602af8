package catalog

import (
	"context"

	"bouquin/internal/models"
)

// Store defines catalog persistence and query operations.
type Store interface {
	// Sync replaces the stored catalog with the given books.
	Sync(ctx context.Context, books []*models.Book) error

	// Browse returns one page of books matching the query filters.
	Browse(ctx context.Context, q *models.BrowseQuery) (*models.BrowseResponse, error)

	// GetBook returns a book by ID, or nil when not found.
	GetBook(ctx context.Context, id string) (*models.Book, error)

	// GetBooks returns the books for the given IDs, keyed by ID.
	GetBooks(ctx context.Context, ids []string) (map[string]*models.Book, error)

	// Rows streams the (id, title, text) projection used by the embedding
	// pipeline. textColumn selects which field supplies the text.
	Rows(ctx context.Context, textColumn string) ([]models.Row, error)

	// Count returns the number of stored books.
	Count(ctx context.Context) (int64, error)

	// Stats for the catalog charts.
	CountByPublisher(ctx context.Context, limit int) ([]models.StatEntry, error)
	CountByYear(ctx context.Context, limit int) ([]models.StatEntry, error)
	CountByAuthor(ctx context.Context, limit int) ([]models.StatEntry, error)

	Close() error
}
