package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "test:"), mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	s, mr := newTestRedis(t)

	if err := s.Put("GET /products?per_page=100", []byte("body"), time.Minute); err != nil {
		t.Fatalf("Put: %v", err)
	}
	v, err := s.Get("GET /products?per_page=100")
	if err != nil || string(v) != "body" {
		t.Fatalf("Get: %q, %v", v, err)
	}
	if ttl := mr.TTL("test:GET /products?per_page=100"); ttl != time.Minute {
		t.Fatalf("expected 1m ttl, got %v", ttl)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := s.Get("GET /products?per_page=100"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestRedisStoreDeletePrefixEscapesGlob(t *testing.T) {
	s, _ := newTestRedis(t)
	keys := []string{"GET /products/5?x=1", "GET /products/5/variations", "GET /products/5x"}
	for _, k := range keys {
		if err := s.Put(k, []byte("v"), 0); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.DeletePrefix("GET /products/5?"); err != nil {
		t.Fatalf("DeletePrefix: %v", err)
	}
	if _, err := s.Get("GET /products/5?x=1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected key removed, got %v", err)
	}
	// '?' must match literally, not any single character
	if _, err := s.Get("GET /products/5x"); err != nil {
		t.Fatalf("literal prefix matched too much: %v", err)
	}
	if _, err := s.Get("GET /products/5/variations"); err != nil {
		t.Fatalf("unrelated key removed: %v", err)
	}
}

func TestEscapeGlob(t *testing.T) {
	if got := escapeGlob(`a*b?c[d]\`); got != `a\*b\?c\[d\]\\` {
		t.Fatalf("unexpected escape %q", got)
	}
}
