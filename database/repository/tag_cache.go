package repository

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const tagCacheSize = 4096

// DefaultTagCacheTTL bounds how stale a cached tag mapping can get when
// another process writes to the same database file.
const DefaultTagCacheTTL = 5 * time.Minute

// TagCache is the advisory name<->id mapping used by log operations. It is
// never the source of truth: a miss (or TTL expiry) forces a refetch from
// the tags table, and Invalidate drops everything.
type TagCache struct {
	byName *expirable.LRU[string, int64]
	byId   *expirable.LRU[int64, string]
}

func NewTagCache(ttl time.Duration) *TagCache {
	return &TagCache{
		byName: expirable.NewLRU[string, int64](tagCacheSize, nil, ttl),
		byId:   expirable.NewLRU[int64, string](tagCacheSize, nil, ttl),
	}
}

func (c *TagCache) IdForName(name string) (int64, bool) {
	return c.byName.Get(name)
}

func (c *TagCache) NameForId(id int64) (string, bool) {
	return c.byId.Get(id)
}

func (c *TagCache) Put(name string, id int64) {
	c.byName.Add(name, id)
	c.byId.Add(id, name)
}

func (c *TagCache) Invalidate() {
	c.byName.Purge()
	c.byId.Purge()
}
