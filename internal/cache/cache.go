// Package cache provides run-scoped memo tables. A Map is owned by a single
// sync run and is not safe for concurrent use.
package cache

// Map memoizes values by key for the lifetime of one run.
type Map[K comparable, V any] struct {
	m      map[K]V
	hits   int
	misses int
}

func New[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{m: make(map[K]V)}
}

func (c *Map[K, V]) Get(k K) (V, bool) {
	v, ok := c.m[k]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return v, ok
}

func (c *Map[K, V]) Put(k K, v V) { c.m[k] = v }

// GetOrLoad returns the cached value for k, calling load on a miss and
// caching its result. Errors are not cached.
func (c *Map[K, V]) GetOrLoad(k K, load func(K) (V, error)) (V, error) {
	if v, ok := c.Get(k); ok {
		return v, nil
	}
	v, err := load(k)
	if err != nil {
		return v, err
	}
	c.m[k] = v
	return v, nil
}

func (c *Map[K, V]) Len() int { return len(c.m) }

// Stats returns hit and miss counts since the last Reset.
func (c *Map[K, V]) Stats() (hits, misses int) { return c.hits, c.misses }

// Reset drops every entry.
func (c *Map[K, V]) Reset() {
	c.m = make(map[K]V)
	c.hits, c.misses = 0, 0
}
