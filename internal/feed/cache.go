package feed

import (
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTTL bounds how often the upstream platform is hit per account.
const DefaultTTL = 300 * time.Second

type cacheEntry struct {
	body    []byte
	expires time.Time
}

// Cache memoizes serialized feed documents per account id. Entries expire
// after a fixed TTL, checked lazily on access, and are always replaced
// wholesale. Concurrent misses for the same account are coalesced into a
// single upstream run, since the upstream login is not cheap enough to
// duplicate.
type Cache struct {
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu      sync.Mutex
	entries map[int]cacheEntry
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[int]cacheEntry),
	}
}

// GetOrCompute serves a non-expired entry if one exists, otherwise runs
// compute once (shared across concurrent callers), stores the result with a
// fresh expiry and serves it. Failed computations are not cached. The second
// return value reports whether this was a cache hit.
func (c *Cache) GetOrCompute(accountID int, compute func() ([]byte, error)) ([]byte, bool, error) {
	if body, ok := c.lookup(accountID); ok {
		return body, true, nil
	}

	v, err, _ := c.group.Do(strconv.Itoa(accountID), func() (any, error) {
		// A concurrent flight may have stored a fresh entry while this
		// caller was waiting for the group key.
		if body, ok := c.lookup(accountID); ok {
			return body, nil
		}

		body, err := compute()
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.entries[accountID] = cacheEntry{body: body, expires: c.now().Add(c.ttl)}
		c.mu.Unlock()

		return body, nil
	})
	if err != nil {
		return nil, false, err
	}

	return v.([]byte), false, nil
}

func (c *Cache) lookup(accountID int) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[accountID]
	if !ok || c.now().After(entry.expires) {
		return nil, false
	}
	return entry.body, true
}
