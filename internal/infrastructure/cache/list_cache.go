package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/janhq/picture-api/internal/domain/picture"
	"github.com/janhq/picture-api/internal/infrastructure/metrics"
)

const (
	keyPrefix  = "picture-api:list:"
	versionKey = "picture-api:list-version"
)

// setIfCurrent writes the listing only while the version key still holds the version the
// caller read before querying the database.
var setIfCurrent = redis.NewScript(`
local current = redis.call('GET', KEYS[1]) or '0'
if current ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

// ListCache keeps listing projections in Redis until the next mutation or the TTL, whichever
// comes first.
type ListCache struct {
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

// NewListCache wraps a connected Redis client.
func NewListCache(client *redis.Client, ttl time.Duration, log zerolog.Logger) *ListCache {
	return &ListCache{
		client: client,
		ttl:    ttl,
		log:    log.With().Str("component", "list-cache").Logger(),
	}
}

func key(q picture.ListQuery) string {
	return keyPrefix + q.String()
}

// Get returns the cached listing. ok is false on a miss.
func (c *ListCache) Get(ctx context.Context, q picture.ListQuery) ([]*picture.Picture, bool, error) {
	data, err := c.client.Get(ctx, key(q)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.RecordListCache("miss")
			return nil, false, nil
		}
		metrics.RecordListCache("error")
		return nil, false, fmt.Errorf("read cached listing: %w", err)
	}

	var pictures []*picture.Picture
	if err := json.Unmarshal(data, &pictures); err != nil {
		// Unreadable payloads count as a miss and get overwritten by the next Set.
		metrics.RecordListCache("miss")
		c.log.Warn().Err(err).Str("key", key(q)).Msg("discard unreadable cached listing")
		return nil, false, nil
	}
	metrics.RecordListCache("hit")
	return pictures, true, nil
}

// Version returns the current listing version. A missing key reads as zero.
func (c *ListCache) Version(ctx context.Context) (uint64, error) {
	version, err := c.client.Get(ctx, versionKey).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read listing version: %w", err)
	}
	return version, nil
}

// Set stores the listing when no Invalidate ran since version was read.
func (c *ListCache) Set(ctx context.Context, q picture.ListQuery, version uint64, pictures []*picture.Picture) error {
	if pictures == nil {
		pictures = []*picture.Picture{}
	}
	data, err := json.Marshal(pictures)
	if err != nil {
		return fmt.Errorf("encode listing: %w", err)
	}
	stored, err := setIfCurrent.Run(ctx, c.client,
		[]string{versionKey, key(q)},
		strconv.FormatUint(version, 10), data, c.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("write cached listing: %w", err)
	}
	if stored == 0 {
		c.log.Debug().Str("key", key(q)).Uint64("version", version).Msg("skip stale listing")
	}
	return nil
}

// Invalidate advances the version and drops every cached listing in one transaction.
func (c *ListCache) Invalidate(ctx context.Context) error {
	queries := picture.AllListQueries()
	keys := make([]string, 0, len(queries))
	for _, q := range queries {
		keys = append(keys, key(q))
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey)
		pipe.Del(ctx, keys...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("invalidate cached listings: %w", err)
	}
	return nil
}
