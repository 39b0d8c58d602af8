// Package models defines core data structures for books, browse queries, and recommendations.
package models

// Book is one catalog record, as cleaned up from the source CSV.
// Numeric fields are zero when the source value was missing or unparseable.
type Book struct {
	ID               string  `json:"id" db:"id"`
	Title            string  `json:"title" db:"title"`
	Series           string  `json:"series,omitempty" db:"series"`
	Author           string  `json:"author,omitempty" db:"author"`
	AuthorNormalized string  `json:"-" db:"author_normalized"`
	Rating           float64 `json:"rating,omitempty" db:"rating"`
	Description      string  `json:"description,omitempty" db:"description"`
	Language         string  `json:"language,omitempty" db:"language"`
	ISBN             string  `json:"isbn,omitempty" db:"isbn"`
	Genres           string  `json:"genres,omitempty" db:"genres"`
	Pages            int     `json:"pages,omitempty" db:"pages"`
	Publisher        string  `json:"publisher,omitempty" db:"publisher"`
	PublishDate      string  `json:"publish_date,omitempty" db:"publish_date"`
	FirstPublishDate string  `json:"first_publish_date,omitempty" db:"first_publish_date"`
	Awards           string  `json:"awards,omitempty" db:"awards"`
	NumRatings       int     `json:"num_ratings,omitempty" db:"num_ratings"`
	LikedPercent     float64 `json:"liked_percent,omitempty" db:"liked_percent"`
	CoverURL         string  `json:"cover_url,omitempty" db:"cover_url"`
	Price            float64 `json:"price,omitempty" db:"price"`
}

// Row is the projection of a Book consumed by the embedding pipeline:
// a stable identifier, a display title, and the free text to embed.
type Row struct {
	ID    string
	Title string
	Text  string
}

// StatEntry is one bar of a catalog statistic (publisher, year, or author counts).
type StatEntry struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}
