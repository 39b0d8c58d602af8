package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"bouquin/internal/models"
	"bouquin/internal/vector"
	"bouquin/internal/vectorcache"
	"bouquin/pkg/utils"
)

// embedMissing embeds every catalog row that has text and no cached vector.
// Rows whose text is blank after trimming are skipped entirely. Each batch is
// persisted before the next one starts, so an interrupted run resumes where
// it left off.
func (e *Engine) embedMissing(ctx context.Context, cache *vectorcache.Cache, rows []models.Row) error {
	lower := e.cfg.Recommend.Lower()

	var work []models.Row
	skipped := 0
	for _, row := range rows {
		if strings.TrimSpace(row.Text) == "" {
			skipped++
			continue
		}
		if cache.Contains(row.ID) {
			continue
		}
		work = append(work, row)
	}
	if len(work) == 0 {
		if skipped > 0 {
			e.logger.Debug("no rows to embed", zap.Int("blank", skipped))
		}
		return nil
	}

	batchSize := e.cfg.Recommend.BatchSize
	if batchSize <= 0 {
		batchSize = 512
	}
	delay := time.Duration(e.cfg.Recommend.BatchDelaySeconds * float64(time.Second))
	total := (len(work) + batchSize - 1) / batchSize
	e.logger.Info("embedding catalog rows",
		zap.Int("rows", len(work)),
		zap.Int("batches", total),
		zap.Int("blank", skipped))

	for n := 0; n < len(work); n += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch := work[n:min(n+batchSize, len(work))]

		ids := make([]string, len(batch))
		texts := make([]string, len(batch))
		for i, row := range batch {
			ids[i] = row.ID
			texts[i] = utils.NormalizeForEmbedding(row.Text, lower)
		}

		vectors, err := e.provider.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch %d/%d: %w", n/batchSize+1, total, err)
		}
		if len(vectors) != len(ids) {
			return fmt.Errorf("embed batch %d/%d: got %d vectors for %d texts", n/batchSize+1, total, len(vectors), len(ids))
		}
		if err := cache.PutBatch(ids, vectors); err != nil {
			return fmt.Errorf("persist batch %d/%d: %w", n/batchSize+1, total, err)
		}
		e.logger.Debug("batch persisted",
			zap.Int("batch", n/batchSize+1),
			zap.Int("total", total),
			zap.Int("cached", cache.Len()))

		if delay > 0 && n+batchSize < len(work) {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return nil
}

// loadOrBuildIndex restores the saved index when it still matches the cache
// and catalog, and rebuilds it otherwise. A missing file is a normal rebuild;
// any other load failure is surfaced. The cache is append-only, so a row
// whose text has since gone blank may still carry a vector; such rows are
// excluded here the same way they are excluded from embedding.
func loadOrBuildIndex(cache *vectorcache.Cache, rows []models.Row, path string) (*vector.FlatIndex, error) {
	expected := 0
	for _, row := range rows {
		if strings.TrimSpace(row.Text) == "" {
			continue
		}
		if cache.Contains(row.ID) {
			expected++
		}
	}

	index, err := vector.NewFlatIndex(cache.Dimensions())
	if err != nil {
		return nil, err
	}
	switch err := index.Load(path); {
	case err == nil:
		if index.Size() == expected {
			return index, nil
		}
		// Stale snapshot: the catalog or cache moved on. Rebuild below.
	case errors.Is(err, vector.ErrNotFound):
	default:
		return nil, fmt.Errorf("load similarity index: %w", err)
	}

	index, err = vector.NewFlatIndex(cache.Dimensions())
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if strings.TrimSpace(row.Text) == "" {
			continue
		}
		vec, ok := cache.Get(row.ID)
		if !ok {
			continue
		}
		if err := index.Add(vector.Entry{ID: row.ID, Title: row.Title, Vector: vec}); err != nil {
			return nil, err
		}
	}
	if err := index.Save(path); err != nil {
		return nil, fmt.Errorf("save similarity index: %w", err)
	}
	return index, nil
}
