package catalog

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leonardcser/storefront/internal/cache"
	"github.com/leonardcser/storefront/internal/config"
	"github.com/leonardcser/storefront/internal/woo"
)

// fakeStore is an in-process WooCommerce answering from canned JSON.
type fakeStore struct {
	mu     sync.Mutex
	calls  map[string]int
	total  atomic.Int64
	routes map[string]string // path -> body
	fail   map[string]int    // path -> status
}

func newFakeStore() *fakeStore {
	return &fakeStore{calls: map[string]int{}, routes: map[string]string{}, fail: map[string]int{}}
}

func (f *fakeStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/wp-json/wc/v3")
	f.total.Add(1)
	f.mu.Lock()
	f.calls[r.Method+" "+path+"?"+r.URL.RawQuery]++
	body, ok := f.routes[path]
	status := f.fail[path]
	f.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `{"message":"nope"}`)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	_, _ = io.WriteString(w, body)
}

func (f *fakeStore) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func newTestService(t *testing.T, f *fakeStore) *Service {
	t.Helper()
	ts := httptest.NewServer(f)
	t.Cleanup(ts.Close)
	client := woo.NewClient(config.Woo{BaseURL: ts.URL, ConsumerKey: "k", ConsumerSecret: "s"}, time.Second)
	return NewService(client, cache.NewMemo(cache.MemoOptions{}))
}

const listing = `[
 {"id":1,"name":"Gelato Flower","type":"variable","variations":[11,12],"categories":[{"id":1,"name":"Flower","slug":"flower"}],"tags":[{"name":"indica"}]},
 {"id":2,"name":"Lemon Cart","type":"simple","categories":[{"id":2,"name":"Vape","slug":"vape"}]},
 {"id":3,"name":"Monthly Flower Subscription","type":"simple","price":"99","short_description":"<p>Fresh every month</p>","categories":[{"id":9,"name":"Subscriptions","slug":"subscriptions"}]},
 {"id":4,"name":"Weekly Moonwater Club","type":"simple","regular_price":"20","tags":[{"name":"subscription"}]}
]`

func TestProductsCachesListing(t *testing.T) {
	f := newFakeStore()
	f.routes["/products"] = listing
	s := newTestService(t, f)
	ctx := context.Background()

	q := url.Values{"search": {"gelato"}, "per_page": {"5"}}
	first, err := s.Products(ctx, q)
	if err != nil {
		t.Fatalf("Products: %v", err)
	}
	second, err := s.Products(ctx, q)
	if err != nil {
		t.Fatalf("Products: %v", err)
	}
	if first.Cached || !second.Cached {
		t.Fatalf("expected miss then hit, got %v then %v", first.Cached, second.Cached)
	}
	if len(second.Products) != 4 {
		t.Fatalf("expected 4 products, got %d", len(second.Products))
	}
	if n := f.count("GET /products?per_page=5&search=gelato&status=publish"); n != 1 {
		t.Fatalf("expected one upstream call, got %d", n)
	}
}

func TestProductsRequiresCredentials(t *testing.T) {
	f := newFakeStore()
	ts := httptest.NewServer(f)
	defer ts.Close()
	s := NewService(woo.NewClient(config.Woo{BaseURL: ts.URL, ConsumerKey: "k"}, time.Second), cache.NewMemo(cache.MemoOptions{}))

	_, err := s.Products(context.Background(), nil)
	if !errors.Is(err, config.ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
	if f.total.Load() != 0 {
		t.Fatalf("expected no upstream calls, got %d", f.total.Load())
	}
}

func TestProductsUpstreamErrorNotCached(t *testing.T) {
	f := newFakeStore()
	f.fail["/products"] = http.StatusBadGateway
	s := newTestService(t, f)

	_, err := s.Products(context.Background(), nil)
	var apiErr *woo.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadGateway {
		t.Fatalf("expected upstream 502, got %v", err)
	}
	if s.Memo().Len() != 0 {
		t.Fatal("failed response was cached")
	}
}

func TestDisplayFetchesVariations(t *testing.T) {
	f := newFakeStore()
	f.routes["/products"] = listing
	f.routes["/products/1/variations"] = `[
	  {"id":11,"price":"30","attributes":[{"name":"Weight","option":"3.5g"}]},
	  {"id":12,"price":"55","attributes":[{"name":"Weight","option":"7g"}]}
	]`
	s := newTestService(t, f)

	out, cached, err := s.Display(context.Background(), nil)
	if err != nil {
		t.Fatalf("Display: %v", err)
	}
	if cached {
		t.Fatal("first display must not be cached")
	}
	if len(out) != 4 {
		t.Fatalf("expected 4 products, got %d", len(out))
	}
	gelato := out[0]
	if gelato.Category != Indica || gelato.Prices["7g"] != 55 {
		t.Fatalf("unexpected gelato %+v", gelato)
	}
	cart := out[1]
	if cart.Type != Vape || cart.Prices["1g"] != 40 {
		t.Fatalf("expected default vape table, got %+v", cart.Prices)
	}
	if n := f.count("GET /products/1/variations?per_page=100"); n != 1 {
		t.Fatalf("expected one variation call, got %d", n)
	}
}

func TestDisplayDegradesOnVariationFailure(t *testing.T) {
	f := newFakeStore()
	f.routes["/products"] = listing
	f.fail["/products/1/variations"] = http.StatusInternalServerError
	s := newTestService(t, f)

	out, _, err := s.Display(context.Background(), nil)
	if err != nil {
		t.Fatalf("variation failure must not fail the listing: %v", err)
	}
	labels, _ := DefaultPrices(Flower)
	if len(out[0].PriceLabels) != len(labels) {
		t.Fatalf("expected default flower prices, got %v", out[0].PriceLabels)
	}
}

func TestUpdateProductInvalidates(t *testing.T) {
	f := newFakeStore()
	f.routes["/products/1"] = `{"id":1,"name":"Gelato"}`
	f.routes["/products/1/variations"] = `[]`
	s := newTestService(t, f)
	ctx := context.Background()

	if _, err := s.Product(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Variations(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := s.UpdateProduct(ctx, 1, []byte(`{"name":"Gelato 41"}`)); err != nil {
		t.Fatalf("UpdateProduct: %v", err)
	}
	if s.Memo().Len() != 0 {
		t.Fatalf("expected product entries invalidated, %d left", s.Memo().Len())
	}
	single, err := s.Product(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if single.Cached {
		t.Fatal("product should be refetched after update")
	}
	if n := f.count("GET /products/1?"); n != 2 {
		t.Fatalf("expected 2 upstream product reads, got %d", n)
	}
}

func TestSubscriptions(t *testing.T) {
	f := newFakeStore()
	f.routes["/products"] = listing
	s := newTestService(t, f)

	subs, _, err := s.Subscriptions(context.Background(), nil)
	if err != nil {
		t.Fatalf("Subscriptions: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("expected 2 subscriptions, got %+v", subs)
	}
	if subs[0].ID != 3 || subs[0].Interval != "monthly" || subs[0].Price != 99 || subs[0].Description != "Fresh every month" {
		t.Fatalf("unexpected first subscription %+v", subs[0])
	}
	if subs[1].ID != 4 || subs[1].Interval != "weekly" || subs[1].Price != 20 {
		t.Fatalf("unexpected second subscription %+v", subs[1])
	}
}

func TestInterval(t *testing.T) {
	cases := map[string]string{
		"Bi-Weekly Box": "biweekly",
		"Weekly Box":    "weekly",
		"Quarterly Box": "quarterly",
		"Box":           "monthly",
	}
	for name, want := range cases {
		if got := Interval(name); got != want {
			t.Fatalf("%s: expected %s, got %s", name, want, got)
		}
	}
}
