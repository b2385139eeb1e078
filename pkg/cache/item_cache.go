package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// ItemCacheTTL is the default time-to-live for cached items.
	ItemCacheTTL = 24 * time.Hour

	itemCacheKeyPrefix = "secondchance:item"
	itemGenKeyPrefix   = "secondchance:itemgen"
)

// ErrMiss is returned by Get when the key does not exist or has expired.
var ErrMiss = errors.New("cache miss")

var errStale = errors.New("cache generation moved")

// ItemCache stores serialized item documents keyed by item id.
// Key format: "secondchance:item:{id}"
//
// Every write to an item bumps its generation ("secondchance:itemgen:{id}").
// Fillers read the generation before loading the document from the store and
// only store it if the generation is unchanged, so a fill racing an update or
// delete never resurrects stale data.
type ItemCache struct {
	client *RedisClient
	ttl    time.Duration
}

// NewItemCache returns an ItemCache on r. A non-positive ttl means ItemCacheTTL.
func NewItemCache(r *RedisClient, ttl time.Duration) *ItemCache {
	if ttl <= 0 {
		ttl = ItemCacheTTL
	}
	return &ItemCache{client: r, ttl: ttl}
}

// Get returns the cached document bytes for id, or ErrMiss.
func (c *ItemCache) Get(ctx context.Context, id string) ([]byte, error) {
	data, err := c.client.Client().Get(ctx, Key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("cache get: %w", err)
	}
	return data, nil
}

// Set stores the document bytes for id with the cache TTL.
func (c *ItemCache) Set(ctx context.Context, id string, doc []byte) error {
	if err := c.client.Client().Set(ctx, Key(id), doc, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Delete evicts the entry for id. Evicting a missing key is not an error.
func (c *ItemCache) Delete(ctx context.Context, id string) error {
	if err := c.client.Client().Del(ctx, Key(id)).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

// Generation returns the current write generation of id; zero when the item
// has never been invalidated.
func (c *ItemCache) Generation(ctx context.Context, id string) (int64, error) {
	gen, err := c.client.Client().Get(ctx, GenKey(id)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("cache generation: %w", err)
	}
	return gen, nil
}

// Invalidate bumps the generation of id and evicts its entry in one
// transaction. Call it after every store write to the item.
func (c *ItemCache) Invalidate(ctx context.Context, id string) error {
	_, err := c.client.Client().TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, GenKey(id))
		p.Expire(ctx, GenKey(id), c.genTTL())
		p.Del(ctx, Key(id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}

// SetIfCurrent stores doc for id only while the generation still equals gen.
// It reports false when a concurrent write moved the generation on.
func (c *ItemCache) SetIfCurrent(ctx context.Context, id string, gen int64, doc []byte) (bool, error) {
	genKey := GenKey(id)
	err := c.client.Client().Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return errStale
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, Key(id), doc, c.ttl)
			return nil
		})
		return err
	}, genKey)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errStale), errors.Is(err, redis.TxFailedErr):
		return false, nil
	default:
		return false, fmt.Errorf("cache set: %w", err)
	}
}

// genTTL keeps the generation alive well past any entry it guards.
func (c *ItemCache) genTTL() time.Duration {
	return 2 * c.ttl
}

// Key builds the Redis key for an item id.
func Key(id string) string {
	return itemCacheKeyPrefix + ":" + id
}

// GenKey builds the Redis key holding the write generation of an item id.
func GenKey(id string) string {
	return itemGenKeyPrefix + ":" + id
}
