package cache

import (
	"encoding/binary"
	"errors"
	"time"
)

// KV defines the minimal key-value cache contract with TTL semantics.
// Implementations must be safe for concurrent use by multiple goroutines.
// A KV backs Memo as a second tier; ttl bounds retention only, freshness is
// decided by Memo from the stored timestamp.
type KV interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
}

// PrefixDeleter is implemented by tiers that can drop a key range.
type PrefixDeleter interface {
	DeletePrefix(prefix string) error
}

var (
	ErrNotFound = errors.New("cache: not found")
	ErrExpired  = errors.New("cache: expired")
	errShort    = errors.New("cache: truncated tier record")
)

// Tier record layout: 8 bytes big endian StoredAt (unix nanos) || raw value.
func encodeEntry(e Entry) []byte {
	buf := make([]byte, 8+len(e.Value))
	binary.BigEndian.PutUint64(buf[:8], uint64(e.StoredAt.UnixNano()))
	copy(buf[8:], e.Value)
	return buf
}

func decodeEntry(key string, b []byte) (Entry, error) {
	if len(b) < 8 {
		return Entry{}, errShort
	}
	storedAt := time.Unix(0, int64(binary.BigEndian.Uint64(b[:8])))
	return Entry{Key: key, Value: append([]byte(nil), b[8:]...), StoredAt: storedAt}, nil
}
