// Package vectorcache persists book embeddings on disk so that rows are
// embedded at most once per provider identity. The cache is the durable
// source of truth; the similarity index is rebuilt from it at startup.
package vectorcache

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
)

// ErrCorrupt is returned by Load when the cache file exists but cannot be
// decoded. Callers surface this instead of silently rebuilding.
var ErrCorrupt = errors.New("embedding cache corrupt")

var magic = [4]byte{'B', 'Q', 'E', 'C'}

const fileName = "embeddings.bin"

// Cache is an id-to-vector store for one provider identity. Lookups are
// in-memory; every PutBatch rewrites the snapshot file so a crash between
// batches loses at most the in-flight batch.
type Cache struct {
	dir        string
	dimensions int

	mu      sync.RWMutex
	vectors map[string][]float32
}

// New creates a cache rooted at dir. The directory is created if needed;
// no file is read until Load.
func New(dir string, dimensions int) (*Cache, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Cache{
		dir:        dir,
		dimensions: dimensions,
		vectors:    make(map[string][]float32),
	}, nil
}

// Path returns the snapshot file path.
func (c *Cache) Path() string {
	return filepath.Join(c.dir, fileName)
}

// Load reads the snapshot from disk, replacing the in-memory contents.
// A missing file is a cold start and leaves the cache empty. A file that
// cannot be decoded returns an error wrapping ErrCorrupt.
func (c *Cache) Load() error {
	f, err := os.Open(c.Path())
	if err != nil {
		if os.IsNotExist(err) {
			c.mu.Lock()
			c.vectors = make(map[string][]float32)
			c.mu.Unlock()
			return nil
		}
		return fmt.Errorf("open cache file: %w", err)
	}
	defer f.Close()

	vectors, err := decode(f, c.dimensions)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, c.Path(), err)
	}
	c.mu.Lock()
	c.vectors = vectors
	c.mu.Unlock()
	return nil
}

// PutBatch merges entries into the cache and persists the full snapshot.
// Re-put ids overwrite their previous vectors. The write goes through a
// temp file and rename so a crash never leaves a partial snapshot.
func (c *Cache) PutBatch(ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, id := range ids {
		if len(vectors[i]) != c.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vectors[i]), c.dimensions)
		}
		vec := make([]float32, c.dimensions)
		copy(vec, vectors[i])
		c.vectors[id] = vec
	}
	return c.persistLocked()
}

func (c *Cache) persistLocked() error {
	tmp, err := os.CreateTemp(c.dir, fileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpPath := tmp.Name()
	if err := encode(tmp, c.dimensions, c.vectors); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp cache file: %w", err)
	}
	if err := os.Rename(tmpPath, c.Path()); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}

// Contains reports whether id has a cached vector.
func (c *Cache) Contains(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.vectors[id]
	return ok
}

// Get returns the cached vector for id, or false when absent.
// The returned slice is a copy.
func (c *Cache) Get(id string) ([]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	vec, ok := c.vectors[id]
	if !ok {
		return nil, false
	}
	out := make([]float32, len(vec))
	copy(out, vec)
	return out, true
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.vectors)
}

// IDs returns all cached ids in sorted order.
func (c *Cache) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.vectors))
	for id := range c.vectors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Dimensions returns the vector dimension the cache was opened with.
func (c *Cache) Dimensions() int {
	return c.dimensions
}

// Snapshot format: magic (4), dimension (4), n (4), then per entry:
// idLen (4), id bytes, vector (dimension*4 bytes). All LittleEndian.
// Entries are written in sorted id order so snapshots are reproducible.
func encode(w io.Writer, dimensions int, vectors map[string][]float32) error {
	if _, err := w.Write(magic[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(dimensions)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(vectors))); err != nil {
		return err
	}
	ids := make([]string, 0, len(vectors))
	for id := range vectors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		idBytes := []byte(id)
		if err := binary.Write(w, binary.LittleEndian, uint32(len(idBytes))); err != nil {
			return err
		}
		if _, err := w.Write(idBytes); err != nil {
			return err
		}
		vec := vectors[id]
		buf := make([]byte, len(vec)*4)
		for i, v := range vec {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
		}
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

func decode(r io.Reader, dimensions int) (map[string][]float32, error) {
	var m [4]byte
	if _, err := io.ReadFull(r, m[:]); err != nil {
		return nil, fmt.Errorf("read magic: %v", err)
	}
	if m != magic {
		return nil, fmt.Errorf("bad magic %q", m)
	}
	var dim, n uint32
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return nil, fmt.Errorf("read dimensions: %v", err)
	}
	if int(dim) != dimensions {
		return nil, fmt.Errorf("dimension mismatch: file has %d, cache expects %d", dim, dimensions)
	}
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("read count: %v", err)
	}
	vectors := make(map[string][]float32, n)
	buf := make([]byte, dimensions*4)
	for i := uint32(0); i < n; i++ {
		var idLen uint32
		if err := binary.Read(r, binary.LittleEndian, &idLen); err != nil {
			return nil, fmt.Errorf("read id len: %v", err)
		}
		if idLen > 1<<20 {
			return nil, fmt.Errorf("unreasonable id length %d", idLen)
		}
		idBytes := make([]byte, idLen)
		if _, err := io.ReadFull(r, idBytes); err != nil {
			return nil, fmt.Errorf("read id: %v", err)
		}
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("read vector: %v", err)
		}
		vec := make([]float32, dimensions)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[j*4:]))
		}
		vectors[string(idBytes)] = vec
	}
	return vectors, nil
}
