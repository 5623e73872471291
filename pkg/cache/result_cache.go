package cache

import (
	"fmt"
	"time"

	"ai-lessoncraft-be/pkg/store"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// LatestRequester is the shared fallback slot written alongside every exact
// key, so any caller for a content item can be served the most recent
// artifact without knowing the original requester.
const LatestRequester = "latest"

// ResultCache is the process-wide TTL store for generation results. Each Put
// writes two independent full-value entries (exact key and latest key);
// concurrent writers for the same content resolve by last write wins on each
// key independently. Content regenerates deterministically from the same
// source, so the race is accepted rather than guarded.
type ResultCache struct {
	cache *gocache.Cache
	ttl   time.Duration
}

// NewResultCache creates a cache where entries live for ttl after their last
// write (reads never refresh the clock) and expired items are purged every
// cleanupInterval.
func NewResultCache(ttl, cleanupInterval time.Duration) *ResultCache {
	return &ResultCache{
		cache: gocache.New(ttl, cleanupInterval),
		ttl:   ttl,
	}
}

func resultKey(contentId uuid.UUID, requester string) string {
	return fmt.Sprintf("%s:%s", contentId, requester)
}

// Put stores the result under both the exact (content, requester) key and the
// shared (content, latest) key. Each key gets its own deep copy. The error
// return satisfies the worker's result-sink contract; the in-memory store
// itself cannot fail.
func (c *ResultCache) Put(contentId, requesterId uuid.UUID, result *store.JobResult) error {
	c.cache.Set(resultKey(contentId, requesterId.String()), result.Clone(), c.ttl)
	c.cache.Set(resultKey(contentId, LatestRequester), result.Clone(), c.ttl)
	return nil
}

// Get attempts the exact key first and falls back to the latest key. The
// returned value is a copy; callers may mutate it freely.
func (c *ResultCache) Get(contentId, requesterId uuid.UUID) (*store.JobResult, bool) {
	if x, found := c.cache.Get(resultKey(contentId, requesterId.String())); found {
		return x.(*store.JobResult).Clone(), true
	}
	if x, found := c.cache.Get(resultKey(contentId, LatestRequester)); found {
		return x.(*store.JobResult).Clone(), true
	}
	return nil, false
}

// Flush drops every entry. Exposed as the explicit teardown entry point.
func (c *ResultCache) Flush() {
	c.cache.Flush()
}
