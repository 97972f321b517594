// Package refcache provides a thread-safe memoizing map whose values are
// reclaimable by the garbage collector and rebuilt on demand.
package refcache

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"weak"

	"github.com/rs/zerolog"
)

// maxAttempts bounds the rebuild loop in Get and Remove. Exceeding it is
// fatal to the call, not to the cache.
const maxAttempts = 100

// ErrUnstable is returned when a lookup keeps observing a reclaimed entry
// after maxAttempts rebuilds.
var ErrUnstable = errors.New("refcache: entry would not stabilize")

// Factory materializes the value for a key. It runs inline, under the
// cache's critical section, so its latency is visible to every other user
// of the cache.
type Factory[K comparable, V any] func(K) (*V, error)

// ReferenceCache memoizes factory results per key. Values are held weakly:
// once a caller drops its last strong reference the collector may reclaim
// the value, and the next Get rebuilds it. All operations serialize on one
// mutex, trading read concurrency for at-most-one live entry per key.
//
// Keys are held strongly; a cleanup registered on each value purges the
// entry once the value itself is collected.
type ReferenceCache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]weak.Pointer[V]
	factory Factory[K, V]
	logger  zerolog.Logger
}

// New creates a cache backed by the given value factory.
func New[K comparable, V any](factory Factory[K, V]) *ReferenceCache[K, V] {
	return &ReferenceCache[K, V]{
		entries: make(map[K]weak.Pointer[V]),
		factory: factory,
		logger:  zerolog.Nop(),
	}
}

// WithLogger routes retry diagnostics to the given logger.
func (c *ReferenceCache[K, V]) WithLogger(logger zerolog.Logger) *ReferenceCache[K, V] {
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
	return c
}

// Get returns the cached value for key, invoking the factory when the entry
// is absent or its value has been reclaimed. The zero key maps to nil
// without touching the cache. Factory errors propagate and nothing is
// cached for the key.
func (c *ReferenceCache[K, V]) Get(key K) (*V, error) {
	var zero K
	if key == zero {
		return nil, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for attempt := 1; ; attempt++ {
		if ref, ok := c.entries[key]; ok {
			if v := ref.Value(); v != nil {
				return v, nil
			}
			// Value reclaimed since it was stored; fall through and rebuild.
		}

		v, err := c.factory(key)
		if err != nil {
			return nil, err
		}
		c.entries[key] = weak.Make(v)
		runtime.AddCleanup(v, c.purge, key)

		if got := c.entries[key].Value(); got != nil {
			return got, nil
		}

		if attempt >= maxAttempts {
			c.logger.Error().Int("attempts", attempt).Msg("reference cache entry would not stabilize")
			return nil, ErrUnstable
		}
		c.logger.Debug().Int("attempt", attempt).Msg("reference cache entry reclaimed during lookup, retrying")
	}
}

// Init pre-warms the entry for key, discarding the value.
func (c *ReferenceCache[K, V]) Init(key K) error {
	_, err := c.Get(key)
	return err
}

// Remove drops the entry for key, reporting whether one existed. The zero
// key is a no-op.
func (c *ReferenceCache[K, V]) Remove(key K) bool {
	var zero K
	if key == zero {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	delete(c.entries, key)
	return ok
}

// Size reports the current entry count, including entries whose value has
// been reclaimed but not yet purged.
func (c *ReferenceCache[K, V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear removes all entries.
func (c *ReferenceCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]weak.Pointer[V])
}

// purge runs as a GC cleanup once a cached value is collected. It drops the
// entry only if it is still stale: a fresher value stored for the same key
// must survive.
func (c *ReferenceCache[K, V]) purge(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ref, ok := c.entries[key]; ok && ref.Value() == nil {
		delete(c.entries, key)
	}
}

// String reports live/stale entry counts for diagnostics.
func (c *ReferenceCache[K, V]) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	live, stale := 0, 0
	for _, ref := range c.entries {
		if ref.Value() == nil {
			stale++
		} else {
			live++
		}
	}
	return fmt.Sprintf("%d/%d of %d", live, stale, len(c.entries))
}
