package cache

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T, clock *fakeClock) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache.bbolt"), Options{Bucket: "test", Now: clock.Now})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStorePutGetExpire(t *testing.T) {
	clock := newFakeClock()
	s := openTestStore(t, clock)

	if err := s.Put("k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Put: %v", err)
	}
	v, err := s.Get("k")
	if err != nil || string(v) != "v" {
		t.Fatalf("Get: %q, %v", v, err)
	}

	clock.Advance(2 * time.Minute)
	if _, err := s.Get("k"); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if _, err := s.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreDeletePrefix(t *testing.T) {
	s := openTestStore(t, newFakeClock())
	for _, k := range []string{"GET /products/7", "GET /products/7/variations", "GET /products/70"} {
		if err := s.Put(k, []byte(k), 0); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.DeletePrefix("GET /products/7/"); err != nil {
		t.Fatalf("DeletePrefix: %v", err)
	}
	if _, err := s.Get("GET /products/7/variations"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected prefixed key gone, got %v", err)
	}
	for _, k := range []string{"GET /products/7", "GET /products/70"} {
		if _, err := s.Get(k); err != nil {
			t.Fatalf("%s should remain: %v", k, err)
		}
	}
}

func TestStoreAsMemoTier(t *testing.T) {
	clock := newFakeClock()
	s := openTestStore(t, clock)
	l := &countingLoader{}

	first := NewMemo(MemoOptions{Tier: s, Now: clock.Now})
	if _, err := first.Fetch(t.Context(), "k", time.Minute, l.Load); err != nil {
		t.Fatal(err)
	}
	// a restarted process starts with an empty memory tier
	second := NewMemo(MemoOptions{Tier: s, Now: clock.Now})
	r, err := second.Fetch(t.Context(), "k", time.Minute, l.Load)
	if err != nil {
		t.Fatal(err)
	}
	if !r.Cached || string(r.Value) != "v1" {
		t.Fatalf("expected persisted entry, got %+v", r)
	}
}
