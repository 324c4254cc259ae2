// Package tokencache memoizes token fetches by request fingerprint with
// a time-to-live, collapsing concurrent duplicate fetches into one
// upstream call.
package tokencache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"
)

// FetchFunc produces a fresh token. For a given fingerprint it is
// invoked at most once while a previous result is live or in flight.
type FetchFunc func(ctx context.Context) (string, error)

type entry struct {
	done      chan struct{}
	value     string
	err       error
	expiresAt time.Time
}

type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

func New() *Cache {
	return &Cache{entries: make(map[string]*entry), now: time.Now}
}

// Fingerprint returns a stable hash of v's JSON form, usable as a cache key.
func Fingerprint(v any) string {
	b, _ := json.Marshal(v)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Get returns the cached token for fingerprint, or fetches one. Callers
// arriving while a fetch is in flight wait for it and share its result.
// A fetch error is propagated to all waiters and never cached; expiry is
// lazy, checked only here.
func (c *Cache) Get(ctx context.Context, fingerprint string, ttl time.Duration, fetch FetchFunc) (string, error) {
	c.mu.Lock()
	if e, ok := c.entries[fingerprint]; ok {
		select {
		case <-e.done:
			if e.err == nil && c.now().Before(e.expiresAt) {
				c.mu.Unlock()
				return e.value, nil
			}
			// expired; replace below
		default:
			// fetch in flight; join it
			c.mu.Unlock()
			select {
			case <-e.done:
				return e.value, e.err
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}
	e := &entry{done: make(chan struct{})}
	c.entries[fingerprint] = e
	c.mu.Unlock()

	e.value, e.err = fetch(ctx)
	e.expiresAt = c.now().Add(ttl)
	close(e.done)

	if e.err != nil {
		c.mu.Lock()
		if c.entries[fingerprint] == e {
			delete(c.entries, fingerprint)
		}
		c.mu.Unlock()
		return "", e.err
	}
	return e.value, nil
}
