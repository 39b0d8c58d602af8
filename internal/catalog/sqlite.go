package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"bouquin/internal/models"
	"bouquin/pkg/utils"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS books (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		series TEXT,
		author TEXT,
		author_normalized TEXT,
		rating REAL,
		description TEXT,
		language TEXT,
		isbn TEXT,
		genres TEXT,
		pages INTEGER,
		publisher TEXT,
		publish_date TEXT,
		publish_year INTEGER,
		first_publish_date TEXT,
		awards TEXT,
		num_ratings INTEGER,
		liked_percent REAL,
		cover_url TEXT,
		price REAL
	);

	CREATE INDEX IF NOT EXISTS idx_books_author ON books(author_normalized);
	CREATE INDEX IF NOT EXISTS idx_books_publisher ON books(publisher);
	CREATE INDEX IF NOT EXISTS idx_books_year ON books(publish_year);
	`
	_, err := db.Exec(schema)
	return err
}

var yearRe = regexp.MustCompile(`\b(1[5-9]\d{2}|20\d{2})\b`)

// publishYear extracts a four-digit year from a publish date string.
// The CSV mixes formats ("09/14/08", "September 14th 2008"); only an
// unambiguous four-digit year is accepted.
func publishYear(date string) int {
	m := yearRe.FindString(date)
	if m == "" {
		return 0
	}
	return parseInt(m)
}

const bookColumns = `id, title, series, author, author_normalized, rating, description,
	language, isbn, genres, pages, publisher, publish_date, first_publish_date,
	awards, num_ratings, liked_percent, cover_url, price`

func scanBook(row interface{ Scan(...any) error }) (*models.Book, error) {
	var b models.Book
	err := row.Scan(&b.ID, &b.Title, &b.Series, &b.Author, &b.AuthorNormalized,
		&b.Rating, &b.Description, &b.Language, &b.ISBN, &b.Genres, &b.Pages,
		&b.Publisher, &b.PublishDate, &b.FirstPublishDate, &b.Awards,
		&b.NumRatings, &b.LikedPercent, &b.CoverURL, &b.Price)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Sync replaces the stored catalog with books inside a single transaction,
// so readers never observe a half-imported catalog.
func (s *SQLiteStore) Sync(ctx context.Context, books []*models.Book) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sync: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM books"); err != nil {
		return fmt.Errorf("clear books: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO books (`+bookColumns+`, publish_year)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, b := range books {
		_, err := stmt.ExecContext(ctx, b.ID, b.Title, b.Series, b.Author,
			b.AuthorNormalized, b.Rating, b.Description, b.Language, b.ISBN,
			b.Genres, b.Pages, b.Publisher, b.PublishDate, b.FirstPublishDate,
			b.Awards, b.NumRatings, b.LikedPercent, b.CoverURL, b.Price,
			publishYear(b.PublishDate))
		if err != nil {
			return fmt.Errorf("insert book %s: %w", b.ID, err)
		}
	}

	return tx.Commit()
}

// Browse returns one page of books matching the query filters.
func (s *SQLiteStore) Browse(ctx context.Context, q *models.BrowseQuery) (*models.BrowseResponse, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	where := []string{"1=1"}
	var args []any
	if q.Search != "" {
		where = append(where, "(title LIKE ? OR author LIKE ? OR description LIKE ?)")
		pattern := "%" + q.Search + "%"
		args = append(args, pattern, pattern, pattern)
	}
	if q.Author != "" {
		where = append(where, "author_normalized LIKE ?")
		args = append(args, "%"+utils.Fold(q.Author)+"%")
	}
	if q.Language != "" {
		where = append(where, "language = ?")
		args = append(args, q.Language)
	}
	if q.MinRating > 0 {
		where = append(where, "rating >= ?")
		args = append(args, q.MinRating)
	}
	whereClause := strings.Join(where, " AND ")

	var total int64
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM books WHERE "+whereClause, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count browse results: %w", err)
	}

	order := "ASC"
	if q.Desc {
		order = "DESC"
	}
	// q.SortBy is whitelisted by Validate, never raw user input.
	query := fmt.Sprintf("SELECT %s FROM books WHERE %s ORDER BY %s %s LIMIT ? OFFSET ?",
		bookColumns, whereClause, q.SortBy, order)
	rows, err := s.db.QueryContext(ctx, query, append(args, q.PageSize, q.Offset())...)
	if err != nil {
		return nil, fmt.Errorf("browse query: %w", err)
	}
	defer rows.Close()

	var books []*models.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &models.BrowseResponse{
		Books:    books,
		Total:    total,
		Page:     q.Page,
		PageSize: q.PageSize,
	}, nil
}

// GetBook returns a book by ID, or nil when not found.
func (s *SQLiteStore) GetBook(ctx context.Context, id string) (*models.Book, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+bookColumns+" FROM books WHERE id = ?", id)
	b, err := scanBook(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// GetBooks returns the books for the given IDs, keyed by ID.
func (s *SQLiteStore) GetBooks(ctx context.Context, ids []string) (map[string]*models.Book, error) {
	out := make(map[string]*models.Book, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+bookColumns+" FROM books WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		out[b.ID] = b
	}
	return out, rows.Err()
}

// Text columns allowed for the embedding pipeline.
var textColumns = map[string]bool{
	"description": true,
	"genres":      true,
	"title":       true,
}

// Rows streams the (id, title, text) projection used by the embedding pipeline.
func (s *SQLiteStore) Rows(ctx context.Context, textColumn string) ([]models.Row, error) {
	if !textColumns[textColumn] {
		return nil, fmt.Errorf("invalid text column: %s", textColumn)
	}
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT id, title, %s FROM books ORDER BY id", textColumn))
	if err != nil {
		return nil, fmt.Errorf("rows query: %w", err)
	}
	defer rows.Close()

	var out []models.Row
	for rows.Next() {
		var r models.Row
		if err := rows.Scan(&r.ID, &r.Title, &r.Text); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Count returns the number of stored books.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM books").Scan(&n)
	return n, err
}

func (s *SQLiteStore) statQuery(ctx context.Context, query string, limit int) ([]models.StatEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.StatEntry
	for rows.Next() {
		var e models.StatEntry
		if err := rows.Scan(&e.Label, &e.Count); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountByPublisher returns the top publishers by book count.
func (s *SQLiteStore) CountByPublisher(ctx context.Context, limit int) ([]models.StatEntry, error) {
	return s.statQuery(ctx, `SELECT publisher, COUNT(*) AS n FROM books
		WHERE publisher != '' GROUP BY publisher ORDER BY n DESC LIMIT ?`, limit)
}

// CountByYear returns publication year counts, most recent years first.
func (s *SQLiteStore) CountByYear(ctx context.Context, limit int) ([]models.StatEntry, error) {
	return s.statQuery(ctx, `SELECT CAST(publish_year AS TEXT), COUNT(*) AS n FROM books
		WHERE publish_year > 0 GROUP BY publish_year ORDER BY publish_year DESC LIMIT ?`, limit)
}

// CountByAuthor returns the top authors by book count.
func (s *SQLiteStore) CountByAuthor(ctx context.Context, limit int) ([]models.StatEntry, error) {
	return s.statQuery(ctx, `SELECT author, COUNT(*) AS n FROM books
		WHERE author != '' GROUP BY author ORDER BY n DESC LIMIT ?`, limit)
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
