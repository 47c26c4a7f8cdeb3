package cache

import (
	"container/list"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/leonardcser/storefront/internal/logger"
	"golang.org/x/sync/singleflight"
)

// DefaultMaxEntries bounds a Memo created without an explicit size.
const DefaultMaxEntries = 1024

// Entry is one stored upstream response.
type Entry struct {
	Key      string
	Value    []byte
	StoredAt time.Time
}

// Result is what Fetch hands back. Cached is true only when Value came from
// a stored entry rather than a live load.
type Result struct {
	Value    []byte
	StoredAt time.Time
	Cached   bool
}

// Loader performs the upstream call for a cache miss.
type Loader func(ctx context.Context) ([]byte, error)

type MemoOptions struct {
	// MaxEntries caps the in-memory entries; least recently used go first.
	MaxEntries int
	// Tier is an optional second level consulted on a memory miss.
	Tier KV
	// Now overrides the wall clock.
	Now func() time.Time
}

type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Loads     uint64 `json:"loads"`
	Evictions uint64 `json:"evictions"`
	Entries   int    `json:"entries"`
	InFlight  int64  `json:"inFlight"`
}

// Memo memoizes upstream responses by key with time based freshness,
// collapses concurrent loads of one key into a single call and keeps at most
// MaxEntries in memory. It is safe for concurrent use.
type Memo struct {
	mu      sync.Mutex
	entries map[string]*list.Element // value: *Entry
	order   *list.List               // front = most recently used
	max     int

	// loading tracks the current leader's load per key so invalidation can
	// mark it stale. Guarded by mu.
	loading map[string]*flight

	tier  KV
	now   func() time.Time
	group singleflight.Group

	hits      atomic.Uint64
	misses    atomic.Uint64
	loads     atomic.Uint64
	evictions atomic.Uint64
	inflight  atomic.Int64
}

func NewMemo(opts MemoOptions) *Memo {
	limit := opts.MaxEntries
	if limit <= 0 {
		limit = DefaultMaxEntries
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Memo{
		entries: make(map[string]*list.Element),
		loading: make(map[string]*flight),
		order:   list.New(),
		max:     limit,
		tier:    opts.Tier,
		now:     now,
	}
}

// Fetch returns the entry for key if it was stored less than ttl ago,
// otherwise it joins or starts the single in-flight load for key.
//
// The load runs detached from ctx cancellation so one departing caller cannot
// fail the others; a caller whose ctx ends gets ctx.Err() while the load
// carries on and still populates the cache. A load error reaches every joined
// caller and is never stored.
func (m *Memo) Fetch(ctx context.Context, key string, ttl time.Duration, load Loader) (Result, error) {
	if e, ok := m.lookup(key, ttl); ok {
		m.hits.Add(1)
		return Result{Value: e.Value, StoredAt: e.StoredAt, Cached: true}, nil
	}
	m.misses.Add(1)

	loadCtx := context.WithoutCancel(ctx)
	ch := m.group.DoChan(key, func() (any, error) {
		m.inflight.Add(1)
		defer m.inflight.Add(-1)
		f := m.begin(key)
		defer m.end(key, f)

		// A previous leader may have stored the key after our lookup.
		if e, ok := m.lookup(key, ttl); ok {
			return Result{Value: e.Value, StoredAt: e.StoredAt, Cached: true}, nil
		}
		if e, ok := m.fromTier(key, ttl); ok {
			m.storeUnlessStale(e, f)
			return Result{Value: e.Value, StoredAt: e.StoredAt, Cached: true}, nil
		}

		m.loads.Add(1)
		v, err := load(loadCtx)
		if err != nil {
			return Result{}, err
		}
		e := Entry{Key: key, Value: v, StoredAt: m.now()}
		if m.storeUnlessStale(e, f) {
			m.toTier(e, ttl)
			// An invalidation that landed during the tier write must win.
			if m.isStale(f) && m.tier != nil {
				_ = m.tier.Delete(key)
			}
		}
		return Result{Value: v, StoredAt: e.StoredAt}, nil
	})

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return Result{}, r.Err
		}
		return r.Val.(Result), nil
	}
}

// Invalidate drops key from memory and the tier. A load already in flight
// for key still answers its callers but is not stored, and the next Fetch
// starts a fresh one.
func (m *Memo) Invalidate(key string) {
	m.mu.Lock()
	if el, ok := m.entries[key]; ok {
		m.order.Remove(el)
		delete(m.entries, key)
	}
	if f, ok := m.loading[key]; ok {
		f.stale = true
	}
	m.mu.Unlock()
	m.group.Forget(key)

	if m.tier != nil {
		if err := m.tier.Delete(key); err != nil {
			logger.Warnf("cache tier delete %q: %v", key, err)
		}
	}
}

// InvalidatePrefix drops every key starting with prefix and returns how many
// in-memory entries were removed.
func (m *Memo) InvalidatePrefix(prefix string) int {
	var dropped []string
	m.mu.Lock()
	for k, el := range m.entries {
		if strings.HasPrefix(k, prefix) {
			m.order.Remove(el)
			delete(m.entries, k)
			dropped = append(dropped, k)
		}
	}
	var loading []string
	for k, f := range m.loading {
		if strings.HasPrefix(k, prefix) {
			f.stale = true
			loading = append(loading, k)
		}
	}
	m.mu.Unlock()
	for _, k := range loading {
		m.group.Forget(k)
	}

	if m.tier != nil {
		if pd, ok := m.tier.(PrefixDeleter); ok {
			if err := pd.DeletePrefix(prefix); err != nil {
				logger.Warnf("cache tier delete prefix %q: %v", prefix, err)
			}
		} else {
			for _, k := range dropped {
				_ = m.tier.Delete(k)
			}
		}
	}
	return len(dropped)
}

func (m *Memo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memo) Stats() Stats {
	return Stats{
		Hits:      m.hits.Load(),
		Misses:    m.misses.Load(),
		Loads:     m.loads.Load(),
		Evictions: m.evictions.Load(),
		Entries:   m.Len(),
		InFlight:  m.inflight.Load(),
	}
}

// lookup returns a fresh entry and marks it recently used. Stale entries are
// dropped on sight.
func (m *Memo) lookup(key string, ttl time.Duration) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	el, ok := m.entries[key]
	if !ok {
		return Entry{}, false
	}
	e := el.Value.(*Entry)
	if m.now().Sub(e.StoredAt) >= ttl {
		m.order.Remove(el)
		delete(m.entries, key)
		return Entry{}, false
	}
	m.order.MoveToFront(el)
	return *e, true
}

type flight struct {
	stale bool
}

func (m *Memo) begin(key string) *flight {
	f := &flight{}
	m.mu.Lock()
	m.loading[key] = f
	m.mu.Unlock()
	return f
}

func (m *Memo) end(key string, f *flight) {
	m.mu.Lock()
	if m.loading[key] == f {
		delete(m.loading, key)
	}
	m.mu.Unlock()
}

func (m *Memo) isStale(f *flight) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return f.stale
}

// storeUnlessStale stores e unless its load was invalidated meanwhile.
func (m *Memo) storeUnlessStale(e Entry, f *flight) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f.stale {
		return false
	}
	m.storeLocked(e)
	return true
}

func (m *Memo) storeLocked(e Entry) {
	if el, ok := m.entries[e.Key]; ok {
		el.Value = &e
		m.order.MoveToFront(el)
		return
	}
	m.entries[e.Key] = m.order.PushFront(&e)
	for len(m.entries) > m.max {
		oldest := m.order.Back()
		m.order.Remove(oldest)
		delete(m.entries, oldest.Value.(*Entry).Key)
		m.evictions.Add(1)
	}
}

func (m *Memo) fromTier(key string, ttl time.Duration) (Entry, bool) {
	if m.tier == nil {
		return Entry{}, false
	}
	b, err := m.tier.Get(key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrExpired) {
			logger.Warnf("cache tier get %q: %v", key, err)
		}
		return Entry{}, false
	}
	e, err := decodeEntry(key, b)
	if err != nil {
		logger.Warnf("cache tier decode %q: %v", key, err)
		return Entry{}, false
	}
	if m.now().Sub(e.StoredAt) >= ttl {
		return Entry{}, false
	}
	return e, true
}

func (m *Memo) toTier(e Entry, ttl time.Duration) {
	if m.tier == nil {
		return
	}
	if err := m.tier.Put(e.Key, encodeEntry(e), ttl); err != nil {
		logger.Warnf("cache tier put %q: %v", e.Key, err)
	}
}
