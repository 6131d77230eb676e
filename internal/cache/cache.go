// Package cache memoizes derived views, such as filtered monthly buckets,
// between snapshots.
package cache

// Cache defines a generic cache interface
type Cache[T any] interface {
	// Get retrieves a value from the cache
	Get(key string) (T, bool)

	// Set stores a value in the cache
	Set(key string, data T)

	// Purge drops every item
	Purge()

	// Size returns the current number of items in the cache
	Size() int
}

// Stats reports cache effectiveness.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
}
