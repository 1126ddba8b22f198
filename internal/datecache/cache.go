package datecache

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/photoswiper/swiper/internal/capture"
	"github.com/photoswiper/swiper/internal/logging"
	"github.com/photoswiper/swiper/internal/metrics"
)

// DefaultMemoryEntries is the size of the in-memory front layer.
const DefaultMemoryEntries = 4096

// Lookup results recorded in metrics.
const (
	resultMemory    = "memory"
	resultStore     = "store"
	resultExtracted = "extracted"
	resultStale     = "stale"
	resultCorrupt   = "corrupt"
	resultDegraded  = "degraded"
)

// Cache resolves capture dates through an LRU, then the durable store, then
// the extractor. Any entry whose stored modification time differs from the
// file's current one is re-extracted and overwritten.
type Cache struct {
	store     Store
	extractor capture.Extractor
	mem       *lru.Cache[string, Entry]

	mu       sync.Mutex
	degraded bool
}

// New creates a cache. A nil store runs the cache in degraded mode: every
// lookup extracts directly and nothing is persisted.
func New(store Store, extractor capture.Extractor, memEntries int) (*Cache, error) {
	if extractor == nil {
		extractor = capture.EXIF{}
	}
	if memEntries <= 0 {
		memEntries = DefaultMemoryEntries
	}
	mem, err := lru.New[string, Entry](memEntries)
	if err != nil {
		return nil, err
	}
	return &Cache{store: store, extractor: extractor, mem: mem}, nil
}

// Degraded reports whether the cache has no usable durable store.
func (c *Cache) Degraded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store == nil || c.degraded
}

// Lookup returns the capture date of path, or nil if the file cannot be
// read. It never fails: store problems degrade to direct extraction.
func (c *Cache) Lookup(ctx context.Context, path string) *time.Time {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil
	}
	modTime := info.ModTime().UnixNano()

	if e, ok := c.mem.Get(path); ok {
		if e.ValidFor(modTime) {
			metrics.RecordDateLookup(resultMemory)
			return copyTime(e.Taken)
		}
		c.mem.Remove(path)
	}

	if c.store == nil {
		metrics.RecordDateLookup(resultDegraded)
		return c.extractor.Extract(path)
	}

	stored, err := c.store.Get(ctx, path)
	switch {
	case errors.Is(err, ErrCorruptEntry):
		logging.Warn("datecache: corrupt entry, rewriting", zap.String("path", path), zap.Error(err))
		metrics.RecordDateLookup(resultCorrupt)
	case err != nil:
		c.storeFailed("get", path, err)
		metrics.RecordDateLookup(resultDegraded)
		return c.extractor.Extract(path)
	case stored != nil && stored.ValidFor(modTime):
		metrics.RecordDateLookup(resultStore)
		c.mem.Add(path, *stored)
		return copyTime(stored.Taken)
	case stored != nil:
		metrics.RecordDateLookup(resultStale)
	default:
		metrics.RecordDateLookup(resultExtracted)
	}

	taken := c.extractor.Extract(path)
	c.put(ctx, &Entry{Path: path, Taken: taken, Size: info.Size(), ModTime: modTime})
	return copyTime(taken)
}

// Invalidate drops the entry for path from memory and the durable store.
func (c *Cache) Invalidate(ctx context.Context, path string) {
	c.mem.Remove(path)
	if c.store == nil {
		return
	}
	if err := c.store.Delete(ctx, path); err != nil {
		c.storeFailed("delete", path, err)
	}
}

// Record force-writes taken for path using the file's current size and
// modification time.
func (c *Cache) Record(ctx context.Context, path string, taken *time.Time) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	c.put(ctx, &Entry{
		Path:    path,
		Taken:   copyTime(taken),
		Size:    info.Size(),
		ModTime: info.ModTime().UnixNano(),
	})
	return nil
}

// Refresh re-extracts the date of path and records it. Used after a file
// comes back from the trash.
func (c *Cache) Refresh(ctx context.Context, path string) *time.Time {
	taken := c.extractor.Extract(path)
	if err := c.Record(ctx, path, taken); err != nil {
		logging.Debug("datecache: refresh skipped", zap.String("path", path), zap.Error(err))
	}
	return taken
}

func (c *Cache) put(ctx context.Context, e *Entry) {
	c.mem.Add(e.Path, *e)
	if c.store == nil {
		return
	}
	if err := c.store.Put(ctx, e); err != nil {
		c.storeFailed("put", e.Path, err)
	}
}

func (c *Cache) storeFailed(op, path string, err error) {
	metrics.RecordCacheStoreError(op)
	c.mu.Lock()
	first := !c.degraded
	c.degraded = true
	c.mu.Unlock()
	if first {
		logging.Warn("datecache: durable store failing, continuing uncached",
			zap.String("op", op), zap.String("path", path), zap.Error(err))
		return
	}
	logging.Debug("datecache: store error", zap.String("op", op), zap.String("path", path), zap.Error(err))
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
