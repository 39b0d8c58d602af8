package models

import "fmt"

// Sortable browse columns. Anything else is rejected by Validate so user
// input never reaches an ORDER BY clause directly.
var browseSortColumns = map[string]bool{
	"title":       true,
	"author":      true,
	"rating":      true,
	"num_ratings": true,
	"pages":       true,
	"price":       true,
}

// BrowseQuery holds search/filter/sort/pagination parameters for the catalog.
type BrowseQuery struct {
	Search    string  `json:"search,omitempty"`
	Author    string  `json:"author,omitempty"`
	Language  string  `json:"language,omitempty"`
	MinRating float64 `json:"min_rating,omitempty"`
	SortBy    string  `json:"sort_by,omitempty"`
	Desc      bool    `json:"desc,omitempty"`
	Page      int     `json:"page,omitempty"`
	PageSize  int     `json:"page_size,omitempty"`
}

// Validate normalizes pagination, applies the default sort, and rejects
// sort columns outside the whitelist.
func (q *BrowseQuery) Validate() error {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = 20
	}
	if q.PageSize > 200 {
		q.PageSize = 200
	}
	if q.SortBy == "" {
		q.SortBy = "title"
	}
	if !browseSortColumns[q.SortBy] {
		return fmt.Errorf("invalid sort column: %s", q.SortBy)
	}
	return nil
}

// Offset returns the row offset for the current page.
func (q *BrowseQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}

// BrowseResponse is a page of catalog browse results.
type BrowseResponse struct {
	Books    []*Book `json:"books"`
	Total    int64   `json:"total"`
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
}
