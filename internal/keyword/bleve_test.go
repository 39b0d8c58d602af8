package keyword

import (
	"context"
	"path/filepath"
	"testing"

	"bouquin/internal/models"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	x, err := NewIndex(filepath.Join(t.TempDir(), "books.bleve"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { x.Close() })
	return x
}

var testBooks = []*models.Book{
	{ID: "b1", Title: "The Hobbit", Author: "J.R.R. Tolkien", Description: "A hobbit goes on an adventure with dwarves."},
	{ID: "b2", Title: "The Fellowship of the Ring", Author: "J.R.R. Tolkien", Description: "The ring must be destroyed."},
	{ID: "b3", Title: "Dune", Author: "Frank Herbert", Description: "Politics and spice on a desert planet."},
}

func TestSyncAndSearch(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()
	if err := x.SyncBooks(ctx, testBooks); err != nil {
		t.Fatal(err)
	}

	count, err := x.DocCount()
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("DocCount = %d", count)
	}

	results, err := x.Search(ctx, "hobbit", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 {
		t.Fatal("no results for hobbit")
	}
	if results[0].ID != "b1" {
		t.Errorf("top hit = %s, want b1", results[0].ID)
	}
}

func TestSearchAuthor(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()
	if err := x.SyncBooks(ctx, testBooks); err != nil {
		t.Fatal(err)
	}
	results, err := x.Search(ctx, "tolkien", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results for tolkien, want 2", len(results))
	}
}

func TestTitleBeatsDescription(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()
	if err := x.SyncBooks(ctx, []*models.Book{
		{ID: "title-hit", Title: "Desert Stars", Description: "A love story."},
		{ID: "desc-hit", Title: "Some Novel", Description: "Life in the desert."},
	}); err != nil {
		t.Fatal(err)
	}
	results, err := x.Search(ctx, "desert", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].ID != "title-hit" {
		t.Errorf("top hit = %s, want title-hit", results[0].ID)
	}
}

func TestResyncOverwrites(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()
	if err := x.SyncBooks(ctx, testBooks); err != nil {
		t.Fatal(err)
	}
	updated := []*models.Book{{ID: "b3", Title: "Dune Messiah", Author: "Frank Herbert"}}
	if err := x.SyncBooks(ctx, updated); err != nil {
		t.Fatal(err)
	}
	count, _ := x.DocCount()
	if count != 3 {
		t.Errorf("DocCount after resync = %d", count)
	}
	results, err := x.Search(ctx, "messiah", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID != "b3" {
		t.Errorf("resynced doc not searchable: %v", results)
	}
}

func TestSuggester(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()
	if err := x.SyncBooks(ctx, testBooks); err != nil {
		t.Fatal(err)
	}
	s := NewSuggester(x)

	if got := s.Suggest("tolkein"); got != "tolkien" {
		t.Errorf("Suggest(tolkein) = %q", got)
	}
	// Known terms need no correction.
	if got := s.Suggest("hobbit"); got != "" {
		t.Errorf("Suggest(hobbit) = %q, want empty", got)
	}
	// Nothing close enough.
	if got := s.Suggest("xyzzyqwrt"); got != "" {
		t.Errorf("Suggest(xyzzyqwrt) = %q, want empty", got)
	}
}

func TestEditDistance(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "abc", 0},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"dune", "dnue", 1}, // transposition counts as one edit
		{"héron", "heron", 1},
	}
	for _, c := range cases {
		if got := editDistance(c.a, c.b); got != c.want {
			t.Errorf("editDistance(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}
