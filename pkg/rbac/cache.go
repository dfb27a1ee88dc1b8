package rbac

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

const defaultCacheEntries = 10000

// CacheRecorder receives role cache hit/miss events
type CacheRecorder interface {
	RecordRoleCache(hit bool)
}

type cacheKey struct {
	userID string
	orgID  string
}

type cachedRole struct {
	role Role
	ok   bool
}

// inflight tracks the misses currently reading one key. stale is set when
// the key is invalidated while they run, so none of them may fill the cache.
type inflight struct {
	readers int
	stale   bool
}

// CachedLookup is a read-through cache in front of a MembershipLookup.
// Both present and absent results are cached; errors never are. A result
// read concurrently with Invalidate for the same key is returned to its
// caller but not cached.
type CachedLookup struct {
	next     MembershipLookup
	cache    *lru.LRU[cacheKey, cachedRole]
	recorder CacheRecorder

	mu      sync.Mutex
	pending map[cacheKey]*inflight
}

// NewCachedLookup wraps next with an expiring LRU cache
func NewCachedLookup(next MembershipLookup, size int, ttl time.Duration, recorder CacheRecorder) *CachedLookup {
	if size <= 0 {
		size = defaultCacheEntries
	}
	return &CachedLookup{
		next:     next,
		cache:    lru.NewLRU[cacheKey, cachedRole](size, nil, ttl),
		recorder: recorder,
		pending:  make(map[cacheKey]*inflight),
	}
}

// GetUserRole returns the cached role or falls through to the wrapped lookup
func (c *CachedLookup) GetUserRole(ctx context.Context, userID, orgID string) (Role, bool, error) {
	key := cacheKey{userID: userID, orgID: orgID}
	if v, ok := c.cache.Get(key); ok {
		c.record(true)
		return v.role, v.ok, nil
	}
	c.record(false)

	c.mu.Lock()
	p := c.pending[key]
	if p == nil {
		p = &inflight{}
		c.pending[key] = p
	}
	p.readers++
	c.mu.Unlock()

	role, ok, err := c.next.GetUserRole(ctx, userID, orgID)

	c.mu.Lock()
	defer c.mu.Unlock()
	p.readers--
	if p.readers == 0 {
		delete(c.pending, key)
	}
	if err != nil {
		return "", false, err
	}
	if !p.stale {
		c.cache.Add(key, cachedRole{role: role, ok: ok})
	}
	return role, ok, nil
}

// Invalidate drops the cached entry for (userID, orgID) and keeps lookups
// already in flight for it from caching what they read.
func (c *CachedLookup) Invalidate(userID, orgID string) {
	key := cacheKey{userID: userID, orgID: orgID}

	c.mu.Lock()
	defer c.mu.Unlock()
	if p := c.pending[key]; p != nil {
		p.stale = true
	}
	c.cache.Remove(key)
}

// Len returns the number of cached entries
func (c *CachedLookup) Len() int {
	return c.cache.Len()
}

func (c *CachedLookup) record(hit bool) {
	if c.recorder != nil {
		c.recorder.RecordRoleCache(hit)
	}
}
