package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseHelpers(t *testing.T) {
	if got := parseInt("374 pages"); got != 374 {
		t.Errorf("parseInt = %d", got)
	}
	if got := parseInt("unknown"); got != 0 {
		t.Errorf("parseInt garbage = %d", got)
	}
	if got := parseFloat("4.33"); got != 4.33 {
		t.Errorf("parseFloat = %v", got)
	}
	if got := parsePrice("$5.09"); got != 5.09 {
		t.Errorf("parsePrice = %v", got)
	}
	if got := parsePrice("1.234.56"); got != 1234.56 {
		t.Errorf("parsePrice thousands = %v", got)
	}
	if got := parsePrice(""); got != 0 {
		t.Errorf("parsePrice empty = %v", got)
	}
}

func TestCleanAuthor(t *testing.T) {
	if got := cleanAuthor("Suzanne Collins"); got != "Suzanne Collins" {
		t.Errorf("cleanAuthor = %q", got)
	}
	if got := cleanAuthor("J.K. Rowling, Mary GrandPré (Illustrator)"); got != "J.K. Rowling" {
		t.Errorf("cleanAuthor multi = %q", got)
	}
	if got := cleanAuthor("John Green (Goodreads Author)"); got != "John Green" {
		t.Errorf("cleanAuthor parens = %q", got)
	}
}

func TestPublishYear(t *testing.T) {
	if got := publishYear("September 14th 2008"); got != 2008 {
		t.Errorf("publishYear = %d", got)
	}
	if got := publishYear("09/14/08"); got != 0 {
		t.Errorf("publishYear two-digit = %d", got)
	}
}

const sampleCSV = `bookId,title,series,author,rating,description,language,isbn,genres,pages,publisher,publishDate,firstPublishDate,awards,numRatings,likedPercent,coverImg,price
b1,The Hunger Games,The Hunger Games #1,Suzanne Collins,4.33,Winning means fame and fortune.,English,9780439023481,"['Young Adult', 'Fiction']",374 pages,Scholastic Press,09/14/08,September 14th 2008,,6376780,96,https://example.com/hg.jpg,$5.09
b2,Sans Titre,,Émile Zola (Author),3.5,,French,,,210,Gallimard,March 2nd 1885,,,1200,88,,
,skipped,,,,no id here,,,,,,,,,,,,
`

func TestReadBooks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "books.csv")
	if err := os.WriteFile(path, []byte(sampleCSV), 0600); err != nil {
		t.Fatal(err)
	}

	books, err := ReadBooks(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(books) != 2 {
		t.Fatalf("expected 2 books (row without id skipped), got %d", len(books))
	}

	b := books[0]
	if b.ID != "b1" || b.Title != "The Hunger Games" {
		t.Errorf("book 1 = %+v", b)
	}
	if b.Pages != 374 {
		t.Errorf("Pages = %d", b.Pages)
	}
	if b.Price != 5.09 {
		t.Errorf("Price = %v", b.Price)
	}
	if b.Rating != 4.33 {
		t.Errorf("Rating = %v", b.Rating)
	}

	if books[1].Author != "Émile Zola" {
		t.Errorf("Author = %q", books[1].Author)
	}
	if books[1].AuthorNormalized != "emile zola" {
		t.Errorf("AuthorNormalized = %q", books[1].AuthorNormalized)
	}
}

func TestReadBooksMissingFile(t *testing.T) {
	if _, err := ReadBooks(filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Fatal("expected error")
	}
}
