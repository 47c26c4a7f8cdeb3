package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"reflect"
	"testing"

	"github.com/leonardcser/storefront/internal/woo"
)

type fakeStore struct {
	products   []woo.Product
	variations map[int64][]woo.Variation
	failUpdate map[int64]bool

	listQueries []url.Values
	updates     map[int64]woo.ProductPatch
	batches     map[int64]woo.BatchVariations
}

func (f *fakeStore) CategoryBySlug(_ context.Context, slug string) (woo.Term, error) {
	if slug != "vape" {
		return woo.Term{}, errors.New("not found")
	}
	return woo.Term{ID: 15, Slug: slug}, nil
}

func (f *fakeStore) ListProducts(_ context.Context, q url.Values) ([]byte, error) {
	f.listQueries = append(f.listQueries, q)
	if q.Get("page") != "1" {
		return []byte(`[]`), nil
	}
	return json.Marshal(f.products)
}

func (f *fakeStore) ListVariations(_ context.Context, id int64) ([]byte, error) {
	return json.Marshal(f.variations[id])
}

func (f *fakeStore) UpdateProduct(_ context.Context, id int64, body any) ([]byte, error) {
	if f.failUpdate[id] {
		return nil, &woo.APIError{Status: 400, Body: "bad"}
	}
	if f.updates == nil {
		f.updates = map[int64]woo.ProductPatch{}
	}
	f.updates[id] = body.(woo.ProductPatch)
	return []byte(`{}`), nil
}

func (f *fakeStore) BatchVariations(_ context.Context, id int64, b woo.BatchVariations) ([]byte, error) {
	if f.batches == nil {
		f.batches = map[int64]woo.BatchVariations{}
	}
	f.batches[id] = b
	return []byte(`{}`), nil
}

func sized(id int64, label, price string) woo.Variation {
	return woo.Variation{ID: id, RegularPrice: price, Attributes: []woo.Attribute{{Name: "Size", Option: label}}}
}

func newFake() *fakeStore {
	sizes := woo.Attribute{Name: "Size", Options: []string{"0.5g", "1g", "2g"}}
	return &fakeStore{
		products: []woo.Product{
			{ID: 1, Name: "Lemon Cart", Type: "simple"},
			{ID: 2, Name: "Done Cart", Type: "variable", Attributes: []woo.Attribute{sizes}},
			{ID: 3, Name: "Stale Cart", Type: "variable", Attributes: []woo.Attribute{sizes}},
			{ID: 4, Name: "Broken Cart", Type: "simple"},
		},
		variations: map[int64][]woo.Variation{
			2: {sized(21, "0.5g", "25"), sized(22, "1g", "40.00"), sized(23, "2g", "70")},
			3: {sized(31, "0.5g", "20"), sized(32, "1g", "40"), sized(33, "2g", "70")},
		},
		failUpdate: map[int64]bool{4: true},
	}
}

func statuses(r Report) map[int64]Status {
	out := map[int64]Status{}
	for _, o := range r.Results {
		out[o.ProductID] = o.Status
	}
	return out
}

func TestRunAppliesTable(t *testing.T) {
	f := newFake()
	rep, err := Run(context.Background(), f, Job{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := map[int64]Status{1: Updated, 2: Skipped, 3: Updated, 4: Failed}
	if got := statuses(rep); !reflect.DeepEqual(got, want) {
		t.Fatalf("statuses %v, want %v", got, want)
	}
	if rep.Updated != 2 || rep.Skipped != 1 || rep.Failed != 1 || rep.Planned != 0 {
		t.Fatalf("unexpected counters %+v", rep)
	}
	if !reflect.DeepEqual(rep.Changed(), []int64{1, 3}) {
		t.Fatalf("unexpected changed ids %v", rep.Changed())
	}

	patch := f.updates[1]
	if patch.Type != "variable" || len(patch.Attributes) != 1 || patch.Attributes[0].Name != "Size" || !patch.Attributes[0].Variation {
		t.Fatalf("unexpected patch %+v", patch)
	}
	b := f.batches[1]
	if len(b.Create) != 3 || b.Create[0].RegularPrice != "25" || b.Create[2].Attributes[0].Option != "2g" {
		t.Fatalf("unexpected batch %+v", b)
	}
	if len(b.Delete) != 0 {
		t.Fatalf("simple product has nothing to delete: %v", b.Delete)
	}
	if !reflect.DeepEqual(f.batches[3].Delete, []int64{31, 32, 33}) {
		t.Fatalf("stale variations not replaced: %v", f.batches[3].Delete)
	}
	if _, ok := f.batches[4]; ok {
		t.Fatal("failed product must not get variations")
	}

	q := f.listQueries[0]
	if q.Get("category") != "15" || q.Get("per_page") != "100" {
		t.Fatalf("unexpected listing query %v", q)
	}
}

func TestRunDryRunMutatesNothing(t *testing.T) {
	f := newFake()
	rep, err := Run(context.Background(), f, Job{DryRun: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := map[int64]Status{1: Planned, 2: Skipped, 3: Planned, 4: Planned}
	if got := statuses(rep); !reflect.DeepEqual(got, want) {
		t.Fatalf("statuses %v, want %v", got, want)
	}
	if len(f.updates) != 0 || len(f.batches) != 0 {
		t.Fatalf("dry run mutated the store: %v %v", f.updates, f.batches)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	f := newFake()
	f.products[0] = woo.Product{ID: 1, Type: "variable", Attributes: []woo.Attribute{{Name: "size", Options: []string{"2g", "1g", "0.5g"}}}}
	f.variations[1] = []woo.Variation{sized(11, "2g", "70"), sized(12, "0.5g", "25"), sized(13, "1g", "40")}

	rep, err := Run(context.Background(), f, Job{})
	if err != nil {
		t.Fatal(err)
	}
	if statuses(rep)[1] != Skipped {
		t.Fatalf("expected converted product skipped, got %v", statuses(rep)[1])
	}
}

func TestRunUnknownCategory(t *testing.T) {
	if _, err := Run(context.Background(), newFake(), Job{Category: "edible"}); err == nil {
		t.Fatal("expected category error")
	}
}

func TestParseOptions(t *testing.T) {
	got, err := ParseOptions("0.5g=25, 1g=40.5,")
	if err != nil {
		t.Fatal(err)
	}
	want := []PriceOption{{"0.5g", 25}, {"1g", 40.5}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v", got)
	}
	for _, bad := range []string{"1g", "=5", "1g=abc", "1g=-1"} {
		if _, err := ParseOptions(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
	if FormatPrice(40) != "40" || FormatPrice(12.5) != "12.5" {
		t.Fatal("unexpected price formatting")
	}
}
