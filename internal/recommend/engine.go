// Package recommend builds and queries the semantic recommendation engine:
// catalog rows are embedded through a provider, cached on disk per provider
// identity, and served from an in-memory similarity index.
package recommend

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"bouquin/internal/catalog"
	"bouquin/internal/config"
	"bouquin/internal/embedding"
	"bouquin/internal/models"
	"bouquin/internal/vector"
	"bouquin/internal/vectorcache"
	"bouquin/pkg/utils"
)

// State of the engine lifecycle.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitializing  State = "initializing"
	StateReady         State = "ready"
)

// Status is a snapshot of the engine for the status endpoint.
type Status struct {
	State         State  `json:"state"`
	Provider      string `json:"provider"`
	Model         string `json:"model"`
	Dimensions    int    `json:"dimensions"`
	CachedVectors int    `json:"cached_vectors"`
	IndexedBooks  int    `json:"indexed_books"`
}

// Engine owns the embedding provider, the per-identity vector cache, and the
// similarity index. All public methods are safe for concurrent use; index
// construction runs at most once at a time.
type Engine struct {
	store  catalog.Store
	cfg    *config.Config
	logger *zap.Logger

	mu       sync.Mutex
	state    State
	provider embedding.Provider
	identity embedding.Identity
	cache    *vectorcache.Cache
	index    *vector.FlatIndex
}

// NewEngine creates an engine with the provider selected by cfg.Embedding.
// No embedding work happens until EnsureReady.
func NewEngine(store catalog.Store, cfg *config.Config, logger *zap.Logger) (*Engine, error) {
	provider, err := embedding.New(&cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("create embedding provider: %w", err)
	}
	return &Engine{
		store:    store,
		cfg:      cfg,
		logger:   logger,
		state:    StateUninitialized,
		provider: provider,
		identity: embedding.IdentityFor(&cfg.Embedding),
	}, nil
}

// EnsureReady loads the cache for the current provider identity, embeds any
// uncached catalog rows, and builds the similarity index. It is a no-op when
// the engine is already ready. On failure the engine reverts to uninitialized
// and a later call starts over from the persisted cache.
func (e *Engine) EnsureReady(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ensureReadyLocked(ctx)
}

func (e *Engine) ensureReadyLocked(ctx context.Context) error {
	if e.state == StateReady {
		return nil
	}
	e.state = StateInitializing

	if err := e.initLocked(ctx); err != nil {
		e.state = StateUninitialized
		e.cache = nil
		e.index = nil
		return err
	}
	e.state = StateReady
	return nil
}

// snapshot initializes if needed and returns the provider and index as one
// pair taken under the lock. A Reconfigure racing a query can therefore
// never pair one identity's provider with another identity's index, and the
// index is never nil on success.
func (e *Engine) snapshot(ctx context.Context) (embedding.Provider, *vector.FlatIndex, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureReadyLocked(ctx); err != nil {
		return nil, nil, err
	}
	return e.provider, e.index, nil
}

func (e *Engine) initLocked(ctx context.Context) error {
	start := time.Now()
	dims := e.provider.Dimensions()

	cacheDir := filepath.Join(e.cfg.Storage.CacheRoot, e.identity.Dir())
	cache, err := vectorcache.New(cacheDir, dims)
	if err != nil {
		return err
	}
	if err := cache.Load(); err != nil {
		return fmt.Errorf("load embedding cache: %w", err)
	}
	e.logger.Info("embedding cache loaded",
		zap.String("provider", e.identity.String()),
		zap.String("dir", cacheDir),
		zap.Int("cached", cache.Len()))

	rows, err := e.store.Rows(ctx, e.cfg.Catalog.TextColumn)
	if err != nil {
		return fmt.Errorf("read catalog rows: %w", err)
	}

	if err := e.embedMissing(ctx, cache, rows); err != nil {
		return err
	}

	index, err := loadOrBuildIndex(cache, rows, filepath.Join(cacheDir, "index.bin"))
	if err != nil {
		return err
	}

	e.cache = cache
	e.index = index
	e.logger.Info("recommendation engine ready",
		zap.String("provider", e.identity.String()),
		zap.Int("indexed", index.Size()),
		zap.Duration("took", time.Since(start)))
	return nil
}

// RecommendByText embeds the query text and returns up to count nearest books.
func (e *Engine) RecommendByText(ctx context.Context, text string, count int) (*models.RecommendResponse, error) {
	provider, index, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	count = e.clampCount(count)
	start := time.Now()

	normalized := utils.NormalizeForEmbedding(text, e.cfg.Recommend.Lower())
	if normalized == "" {
		return nil, fmt.Errorf("query text is empty")
	}
	queryVec, err := provider.Embed(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := index.Search(queryVec, count)
	if err != nil {
		return nil, err
	}
	return &models.RecommendResponse{
		Results:     results,
		Query:       text,
		QueryTimeMS: time.Since(start).Milliseconds(),
	}, nil
}

// RecommendByBookID returns up to count books nearest to the given book's
// cached vector. The book itself ranks first with distance zero. An id with
// no vector (unknown, or its text was blank) yields empty results, not an
// error.
func (e *Engine) RecommendByBookID(ctx context.Context, id string, count int) (*models.RecommendResponse, error) {
	_, index, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	count = e.clampCount(count)
	start := time.Now()

	queryVec, ok := index.Vector(id)
	if !ok {
		return &models.RecommendResponse{
			Results:     []models.Recommendation{},
			SourceBook:  id,
			QueryTimeMS: time.Since(start).Milliseconds(),
		}, nil
	}
	results, err := index.Search(queryVec, count)
	if err != nil {
		return nil, err
	}
	return &models.RecommendResponse{
		Results:     results,
		SourceBook:  id,
		QueryTimeMS: time.Since(start).Milliseconds(),
	}, nil
}

// Reconfigure switches the embedding provider. The old provider is closed and
// all in-memory state is discarded; the next EnsureReady works against the
// new identity's own cache directory. Caches of other identities are never
// touched.
func (e *Engine) Reconfigure(embCfg config.EmbeddingConfig) error {
	provider, err := embedding.New(&embCfg)
	if err != nil {
		return fmt.Errorf("create embedding provider: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.provider != nil {
		if err := e.provider.Close(); err != nil {
			e.logger.Warn("close previous provider", zap.Error(err))
		}
	}
	e.provider = provider
	e.identity = embedding.IdentityFor(&embCfg)
	e.cfg.Embedding = embCfg
	e.cache = nil
	e.index = nil
	e.state = StateUninitialized
	e.logger.Info("embedding provider switched", zap.String("provider", e.identity.String()))
	return nil
}

// Invalidate discards the in-memory index so the next query re-syncs against
// the catalog. The on-disk cache is kept; only new or changed rows get
// embedded again.
func (e *Engine) Invalidate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateReady {
		e.state = StateUninitialized
		e.index = nil
		e.cache = nil
	}
}

// Status returns a snapshot of the engine state and sizes.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := Status{
		State:      e.state,
		Provider:   e.identity.Kind,
		Model:      e.identity.Model,
		Dimensions: e.provider.Dimensions(),
	}
	if e.cache != nil {
		s.CachedVectors = e.cache.Len()
	}
	if e.index != nil {
		s.IndexedBooks = e.index.Size()
	}
	return s
}

// Close releases the embedding provider.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.provider == nil {
		return nil
	}
	err := e.provider.Close()
	e.provider = nil
	return err
}

func (e *Engine) clampCount(count int) int {
	if count <= 0 {
		count = e.cfg.Recommend.DefaultCount
	}
	if max := e.cfg.Recommend.MaxCount; max > 0 && count > max {
		count = max
	}
	return count
}
