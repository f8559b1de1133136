package cache

import "time"

// BytesCache is a minimal cache API storing raw bytes with TTL. The API
// handler caches serialized decision responses behind it; Redis when
// configured, in-process TTL map otherwise.
type BytesCache interface {
	GetBytes(key string) (b []byte, ok bool, err error)
	SetBytes(key string, value []byte, ttl time.Duration) error
}
