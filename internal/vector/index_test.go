package vector

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestSearchAscendingDistance(t *testing.T) {
	x, err := NewFlatIndex(2)
	if err != nil {
		t.Fatal(err)
	}
	err = x.Add(
		Entry{ID: "east", Title: "East", Vector: []float32{1, 0}},
		Entry{ID: "north", Title: "North", Vector: []float32{0, 1}},
		Entry{ID: "northeast", Title: "Northeast", Vector: []float32{0.7071, 0.7071}},
	)
	if err != nil {
		t.Fatal(err)
	}

	results, err := x.Search([]float32{1, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].BookID != "east" {
		t.Errorf("nearest = %s, want east", results[0].BookID)
	}
	if results[1].BookID != "northeast" || results[2].BookID != "north" {
		t.Errorf("order = %s, %s", results[1].BookID, results[2].BookID)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Distance < results[i-1].Distance {
			t.Error("distances not ascending")
		}
	}
	if math.Abs(results[0].Distance) > 1e-6 {
		t.Errorf("self distance = %v, want 0", results[0].Distance)
	}
}

func TestSearchFewerThanK(t *testing.T) {
	x, _ := NewFlatIndex(2)
	if err := x.Add(Entry{ID: "a", Vector: []float32{1, 0}}); err != nil {
		t.Fatal(err)
	}
	results, err := x.Search([]float32{1, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Errorf("got %d results, want 1", len(results))
	}
}

func TestSearchEmptyIndex(t *testing.T) {
	x, _ := NewFlatIndex(2)
	results, err := x.Search([]float32{1, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results from empty index", len(results))
	}
}

func TestSearchDimensionMismatch(t *testing.T) {
	x, _ := NewFlatIndex(3)
	if _, err := x.Search([]float32{1, 0}, 5); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestAddReplacesExisting(t *testing.T) {
	x, _ := NewFlatIndex(2)
	if err := x.Add(Entry{ID: "a", Title: "Old", Vector: []float32{1, 0}}); err != nil {
		t.Fatal(err)
	}
	if err := x.Add(Entry{ID: "a", Title: "New", Vector: []float32{0, 1}}); err != nil {
		t.Fatal(err)
	}
	if x.Size() != 1 {
		t.Fatalf("Size = %d", x.Size())
	}
	results, err := x.Search([]float32{0, 1}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Title != "New" || results[0].Distance > 1e-6 {
		t.Errorf("replacement not applied: %+v", results[0])
	}
}

func TestVectorLookup(t *testing.T) {
	x, _ := NewFlatIndex(2)
	if err := x.Add(Entry{ID: "a", Vector: []float32{0.5, 0.5}}); err != nil {
		t.Fatal(err)
	}
	vec, ok := x.Vector("a")
	if !ok || vec[0] != 0.5 {
		t.Errorf("Vector = %v, %v", vec, ok)
	}
	if _, ok := x.Vector("missing"); ok {
		t.Error("missing id should not be found")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.bin")
	x, _ := NewFlatIndex(2)
	err := x.Add(
		Entry{ID: "a", Title: "Alpha", Vector: []float32{0.25, -1e-7}},
		Entry{ID: "b", Title: "Bêta", Vector: []float32{3.5, 42}},
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := x.Save(path); err != nil {
		t.Fatal(err)
	}

	y, _ := NewFlatIndex(2)
	if err := y.Load(path); err != nil {
		t.Fatal(err)
	}
	if y.Size() != 2 {
		t.Fatalf("Size = %d", y.Size())
	}
	vec, ok := y.Vector("a")
	if !ok || vec[0] != 0.25 || vec[1] != -1e-7 {
		t.Errorf("vector not preserved: %v", vec)
	}
	results, err := y.Search([]float32{3.5, 42}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Title != "Bêta" {
		t.Errorf("title not preserved: %q", results[0].Title)
	}
}

func TestSaveReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.bin")

	x, _ := NewFlatIndex(2)
	if err := x.Add(Entry{ID: "a", Title: "Alpha", Vector: []float32{1, 0}}); err != nil {
		t.Fatal(err)
	}
	if err := x.Save(path); err != nil {
		t.Fatal(err)
	}
	if err := x.Add(Entry{ID: "b", Title: "Beta", Vector: []float32{0, 1}}); err != nil {
		t.Fatal(err)
	}
	// Overwriting an existing file must go through the same replace path.
	if err := x.Save(path); err != nil {
		t.Fatal(err)
	}

	y, _ := NewFlatIndex(2)
	if err := y.Load(path); err != nil {
		t.Fatal(err)
	}
	if y.Size() != 2 {
		t.Fatalf("Size = %d", y.Size())
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != "index.bin" {
			t.Errorf("leftover file after save: %s", e.Name())
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	x, _ := NewFlatIndex(2)
	err := x.Load(filepath.Join(t.TempDir(), "nope.bin"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load missing file: %v, want ErrNotFound", err)
	}
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.bin")
	if err := os.WriteFile(path, []byte{1, 2, 3}, 0644); err != nil {
		t.Fatal(err)
	}
	x, _ := NewFlatIndex(2)
	if err := x.Load(path); err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("Load corrupt file: %v", err)
	}
}

func TestLoadDimensionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.bin")
	x, _ := NewFlatIndex(2)
	if err := x.Add(Entry{ID: "a", Vector: []float32{1, 0}}); err != nil {
		t.Fatal(err)
	}
	if err := x.Save(path); err != nil {
		t.Fatal(err)
	}
	y, _ := NewFlatIndex(3)
	if err := y.Load(path); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestCosineDistanceZeroVector(t *testing.T) {
	if d := cosineDistance([]float32{0, 0}, []float32{1, 0}); d != 1 {
		t.Errorf("zero vector distance = %v, want 1", d)
	}
}
