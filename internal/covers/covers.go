// Package covers downloads and caches book cover images on disk.
package covers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Store keeps one image file per book under a root directory. A file that
// already exists is never re-downloaded.
type Store struct {
	dir    string
	client *http.Client
}

// NewStore creates the covers directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create covers dir: %w", err)
	}
	return &Store{
		dir:    dir,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Path returns where the cover for bookID lives on disk.
func (s *Store) Path(bookID string) string {
	return filepath.Join(s.dir, bookID+".jpg")
}

// Has reports whether a cover is already cached for bookID.
func (s *Store) Has(bookID string) bool {
	_, err := os.Stat(s.Path(bookID))
	return err == nil
}

// Fetch downloads the cover from url into the store unless it is already
// cached, and returns the local path. The write goes through a temp file and
// rename so readers never see a partial image.
func (s *Store) Fetch(ctx context.Context, bookID, url string) (string, error) {
	path := s.Path(bookID)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if url == "" {
		return "", fmt.Errorf("no cover URL for book %s", bookID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build cover request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch cover: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch cover: unexpected status %s", resp.Status)
	}

	tmp, err := os.CreateTemp(s.dir, bookID+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp cover file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("write cover: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("close temp cover file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("rename cover file: %w", err)
	}
	return path, nil
}
