package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/janhq/picture-api/internal/domain/picture"
	"github.com/janhq/picture-api/internal/infrastructure/metrics"
)

type memoryEntry struct {
	pictures []*picture.Picture
	expires  time.Time
}

// MemoryListCache keeps listing projections in process. Invalidation only reaches this
// process, so it suits single-instance deployments.
type MemoryListCache struct {
	mu      sync.Mutex
	version uint64
	entries *lru.Cache
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryListCache(ttl time.Duration) (*MemoryListCache, error) {
	entries, err := lru.New(len(picture.AllListQueries()))
	if err != nil {
		return nil, fmt.Errorf("create memory list cache: %w", err)
	}
	return &MemoryListCache{entries: entries, ttl: ttl, now: time.Now}, nil
}

func (c *MemoryListCache) Get(_ context.Context, q picture.ListQuery) ([]*picture.Picture, bool, error) {
	v, ok := c.entries.Get(q.String())
	if !ok {
		metrics.RecordListCache("miss")
		return nil, false, nil
	}
	entry := v.(memoryEntry)
	if c.now().After(entry.expires) {
		c.entries.Remove(q.String())
		metrics.RecordListCache("miss")
		return nil, false, nil
	}
	metrics.RecordListCache("hit")
	return clonePictures(entry.pictures), true, nil
}

func (c *MemoryListCache) Version(context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version, nil
}

// Set stores the listing unless Invalidate ran after version was read.
func (c *MemoryListCache) Set(_ context.Context, q picture.ListQuery, version uint64, pictures []*picture.Picture) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if version != c.version {
		return nil
	}
	c.entries.Add(q.String(), memoryEntry{pictures: clonePictures(pictures), expires: c.now().Add(c.ttl)})
	return nil
}

func (c *MemoryListCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.version++
	c.entries.Purge()
	return nil
}

// clonePictures copies the entries so callers cannot reach into the cache.
func clonePictures(in []*picture.Picture) []*picture.Picture {
	out := make([]*picture.Picture, 0, len(in))
	for _, pic := range in {
		cp := *pic
		out = append(out, &cp)
	}
	return out
}
