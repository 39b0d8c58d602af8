// Package vector provides a brute-force cosine similarity index over book
// embeddings. The index is a projection of the embedding cache: it can always
// be rebuilt from cached vectors, the saved copy just skips that work.
package vector

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"bouquin/internal/models"
)

// ErrNotFound is returned by Load when no index file exists at the path,
// distinguishing a cold start from a corrupt file.
var ErrNotFound = errors.New("index file not found")

// Entry is one indexed book.
type Entry struct {
	ID     string
	Title  string
	Vector []float32
}

// FlatIndex holds vectors in memory and answers top-k queries by exhaustive
// cosine distance. Exact results, no approximation.
type FlatIndex struct {
	dimensions int

	mu      sync.RWMutex
	entries []Entry
	byID    map[string]int
}

// NewFlatIndex creates an empty index for vectors of the given dimension.
func NewFlatIndex(dimensions int) (*FlatIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &FlatIndex{
		dimensions: dimensions,
		byID:       make(map[string]int),
	}, nil
}

// Add inserts entries. An entry whose ID is already indexed replaces the
// previous vector and title.
func (x *FlatIndex) Add(entries ...Entry) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, e := range entries {
		if len(e.Vector) != x.dimensions {
			return fmt.Errorf("vector dimension mismatch for %s: got %d, expected %d", e.ID, len(e.Vector), x.dimensions)
		}
		vec := make([]float32, x.dimensions)
		copy(vec, e.Vector)
		e.Vector = vec
		if i, ok := x.byID[e.ID]; ok {
			x.entries[i] = e
			continue
		}
		x.byID[e.ID] = len(x.entries)
		x.entries = append(x.entries, e)
	}
	return nil
}

// Search returns up to k entries nearest to query, ascending by cosine
// distance (1 - cosine similarity). Fewer than k indexed entries yields
// fewer results, never an error.
func (x *FlatIndex) Search(query []float32, k int) ([]models.Recommendation, error) {
	if len(query) != x.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), x.dimensions)
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	if k <= 0 || len(x.entries) == 0 {
		return []models.Recommendation{}, nil
	}

	results := make([]models.Recommendation, len(x.entries))
	for i, e := range x.entries {
		results[i] = models.Recommendation{
			BookID:   e.ID,
			Title:    e.Title,
			Distance: cosineDistance(query, e.Vector),
		}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// Vector returns the indexed vector for id, or false when absent.
func (x *FlatIndex) Vector(id string) ([]float32, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	i, ok := x.byID[id]
	if !ok {
		return nil, false
	}
	out := make([]float32, x.dimensions)
	copy(out, x.entries[i].Vector)
	return out, true
}

// Contains reports whether id is indexed.
func (x *FlatIndex) Contains(id string) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.byID[id]
	return ok
}

// Size returns the number of indexed entries.
func (x *FlatIndex) Size() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// Dimensions returns the vector dimension.
func (x *FlatIndex) Dimensions() int {
	return x.dimensions
}

// Save writes the index to path via a temp file and rename, so an
// interrupted save never leaves a truncated file behind. Format:
// dimension (4), n (4), then per entry: idLen (4), id, titleLen (4),
// title, vector (dimension*4 bytes), all LittleEndian.
func (x *FlatIndex) Save(path string) error {
	x.mu.RLock()
	defer x.mu.RUnlock()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	f, err := os.CreateTemp(dir, "index-*.tmp")
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	tmp := f.Name()
	if err := x.encode(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace index file: %w", err)
	}
	return nil
}

func (x *FlatIndex) encode(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(x.dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(x.entries))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for _, e := range x.entries {
		if err := writeString(w, e.ID); err != nil {
			return fmt.Errorf("write id: %w", err)
		}
		if err := writeString(w, e.Title); err != nil {
			return fmt.Errorf("write title: %w", err)
		}
		buf := make([]byte, x.dimensions*4)
		for i, v := range e.Vector {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
		}
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

// Load replaces the index contents from path. A missing file returns
// ErrNotFound; any decode failure is an error, never an empty index.
func (x *FlatIndex) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()

	var dim, n uint32
	if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("read dimensions: %w", err)
	}
	if int(dim) != x.dimensions {
		return fmt.Errorf("dimension mismatch: file has %d, index expects %d", dim, x.dimensions)
	}
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("read count: %w", err)
	}
	entries := make([]Entry, 0, n)
	byID := make(map[string]int, n)
	buf := make([]byte, x.dimensions*4)
	for i := uint32(0); i < n; i++ {
		id, err := readString(f)
		if err != nil {
			return fmt.Errorf("read id: %w", err)
		}
		title, err := readString(f)
		if err != nil {
			return fmt.Errorf("read title: %w", err)
		}
		if _, err := io.ReadFull(f, buf); err != nil {
			return fmt.Errorf("read vector: %w", err)
		}
		vec := make([]float32, x.dimensions)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[j*4:]))
		}
		byID[id] = len(entries)
		entries = append(entries, Entry{ID: id, Title: title, Vector: vec})
	}
	x.mu.Lock()
	x.entries = entries
	x.byID = byID
	x.mu.Unlock()
	return nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	if n > 1<<20 {
		return "", fmt.Errorf("unreasonable string length %d", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

// cosineDistance returns 1 - cosine similarity. Zero-magnitude vectors are
// treated as maximally distant.
func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
