package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const pageKeyPrefix = "jurnal:page:"

// PageCache stores JSON view data per rendered path. Writers call Revalidate
// with the paths whose output they changed.
type PageCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPageCache instantiates the cache helper.
func NewPageCache(client *redis.Client, ttl time.Duration) *PageCache {
	return &PageCache{client: client, ttl: ttl}
}

// Key composes the cache key for a path and an optional variant such as a query string.
func Key(path, variant string) string {
	path = normalizePath(path)
	if variant == "" {
		return pageKeyPrefix + path
	}
	return pageKeyPrefix + path + "|" + variant
}

// FetchJSON loads a cached value or populates it using the loader.
func (c *PageCache) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("cache: loader required")
	}
	if c != nil && c.client != nil {
		payload, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			return json.Unmarshal(payload, dest)
		}
		if !errors.Is(err, redis.Nil) {
			return err
		}
	}
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if c != nil && c.client != nil {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			return err
		}
	}
	return json.Unmarshal(raw, dest)
}

// Revalidate drops the cached output of path, including all of its variants.
// It returns the number of keys removed.
func (c *PageCache) Revalidate(ctx context.Context, path string) (int, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	base := Key(path, "")
	removed := 0
	n, err := c.client.Del(ctx, base).Result()
	if err != nil {
		return 0, err
	}
	removed += int(n)

	iter := c.client.Scan(ctx, 0, escapeGlob(base)+"|*", 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			n, err := c.client.Del(ctx, batch...).Result()
			if err != nil {
				return removed, err
			}
			removed += int(n)
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return removed, err
	}
	if len(batch) > 0 {
		n, err := c.client.Del(ctx, batch...).Result()
		if err != nil {
			return removed, err
		}
		removed += int(n)
	}
	return removed, nil
}

func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}

func escapeGlob(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)
	return replacer.Replace(s)
}
