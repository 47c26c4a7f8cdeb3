// Package pricing converts every product of a category into a variable
// product priced by size. Runs are idempotent: products already carrying
// the target sizes and prices are left alone.
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/leonardcser/storefront/internal/logger"
	"github.com/leonardcser/storefront/internal/woo"
)

// SizeAttribute names the attribute that carries the variation option.
const SizeAttribute = "Size"

const pageSize = 100

type PriceOption struct {
	Label string  `json:"label"`
	Price float64 `json:"price"`
}

// DefaultVapeOptions is the size table applied by default.
var DefaultVapeOptions = []PriceOption{
	{Label: "0.5g", Price: 25},
	{Label: "1g", Price: 40},
	{Label: "2g", Price: 70},
}

// Job describes one run. Zero Category and Options mean the vape defaults.
type Job struct {
	Category string
	Options  []PriceOption
	DryRun   bool
}

func (j Job) withDefaults() Job {
	if strings.TrimSpace(j.Category) == "" {
		j.Category = "vape"
	}
	if len(j.Options) == 0 {
		j.Options = DefaultVapeOptions
	}
	return j
}

type Status string

const (
	Updated Status = "updated"
	Skipped Status = "skipped"
	Planned Status = "planned"
	Failed  Status = "failed"
)

type Outcome struct {
	ProductID int64  `json:"productId"`
	Name      string `json:"name"`
	Status    Status `json:"status"`
	Error     string `json:"error,omitempty"`
}

type Report struct {
	Category string        `json:"category"`
	DryRun   bool          `json:"dryRun"`
	Options  []PriceOption `json:"options"`
	Results  []Outcome     `json:"results"`
	Updated  int           `json:"updated"`
	Skipped  int           `json:"skipped"`
	Planned  int           `json:"planned"`
	Failed   int           `json:"failed"`
}

// Changed lists the products the run modified.
func (r Report) Changed() []int64 {
	var ids []int64
	for _, o := range r.Results {
		if o.Status == Updated {
			ids = append(ids, o.ProductID)
		}
	}
	return ids
}

func (r *Report) add(o Outcome) {
	r.Results = append(r.Results, o)
	switch o.Status {
	case Updated:
		r.Updated++
	case Skipped:
		r.Skipped++
	case Planned:
		r.Planned++
	case Failed:
		r.Failed++
	}
}

// Store is the WooCommerce surface a run needs.
type Store interface {
	CategoryBySlug(ctx context.Context, slug string) (woo.Term, error)
	ListProducts(ctx context.Context, q url.Values) ([]byte, error)
	ListVariations(ctx context.Context, id int64) ([]byte, error)
	UpdateProduct(ctx context.Context, id int64, body any) ([]byte, error)
	BatchVariations(ctx context.Context, id int64, batch woo.BatchVariations) ([]byte, error)
}

// Run applies job to every product in its category. Failures on single
// products are recorded in the report; only failing to enumerate the
// category is returned as an error.
func Run(ctx context.Context, store Store, job Job) (Report, error) {
	job = job.withDefaults()
	rep := Report{Category: job.Category, DryRun: job.DryRun, Options: job.Options, Results: []Outcome{}}

	cat, err := store.CategoryBySlug(ctx, job.Category)
	if err != nil {
		return rep, err
	}
	products, err := listCategory(ctx, store, cat.ID)
	if err != nil {
		return rep, err
	}
	for _, p := range products {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		rep.add(apply(ctx, store, p, job))
	}
	logger.L().Info().
		Str("category", job.Category).
		Bool("dry_run", job.DryRun).
		Int("updated", rep.Updated).
		Int("skipped", rep.Skipped).
		Int("planned", rep.Planned).
		Int("failed", rep.Failed).
		Msg("pricing run finished")
	return rep, nil
}

func listCategory(ctx context.Context, store Store, categoryID int64) ([]woo.Product, error) {
	var all []woo.Product
	for page := 1; ; page++ {
		q := url.Values{
			"category": {strconv.FormatInt(categoryID, 10)},
			"per_page": {strconv.Itoa(pageSize)},
			"page":     {strconv.Itoa(page)},
			"status":   {"any"},
		}
		b, err := store.ListProducts(ctx, q)
		if err != nil {
			return nil, err
		}
		var batch []woo.Product
		if err := json.Unmarshal(b, &batch); err != nil {
			return nil, fmt.Errorf("decode products page %d: %w", page, err)
		}
		all = append(all, batch...)
		if len(batch) < pageSize {
			return all, nil
		}
	}
}

func apply(ctx context.Context, store Store, p woo.Product, job Job) Outcome {
	out := Outcome{ProductID: p.ID, Name: strings.TrimSpace(p.Name)}
	fail := func(err error) Outcome {
		out.Status = Failed
		out.Error = err.Error()
		logger.Warnf("pricing product %d: %v", p.ID, err)
		return out
	}

	var existing []woo.Variation
	if strings.EqualFold(p.Type, "variable") {
		b, err := store.ListVariations(ctx, p.ID)
		if err != nil {
			return fail(err)
		}
		if err := json.Unmarshal(b, &existing); err != nil {
			return fail(fmt.Errorf("decode variations: %w", err))
		}
		if matches(p, existing, job.Options) {
			out.Status = Skipped
			return out
		}
	}
	if job.DryRun {
		out.Status = Planned
		return out
	}

	if _, err := store.UpdateProduct(ctx, p.ID, woo.ProductPatch{
		Type:       "variable",
		Attributes: []woo.Attribute{sizeAttribute(job.Options)},
	}); err != nil {
		return fail(err)
	}
	batch := woo.BatchVariations{Create: variationInputs(job.Options)}
	for _, v := range existing {
		batch.Delete = append(batch.Delete, v.ID)
	}
	if _, err := store.BatchVariations(ctx, p.ID, batch); err != nil {
		return fail(err)
	}
	out.Status = Updated
	return out
}

// matches reports whether p already is variable with exactly opts.
func matches(p woo.Product, vs []woo.Variation, opts []PriceOption) bool {
	var attr *woo.Attribute
	for i := range p.Attributes {
		if strings.EqualFold(p.Attributes[i].Name, SizeAttribute) {
			attr = &p.Attributes[i]
			break
		}
	}
	if attr == nil || len(attr.Options) != len(opts) || len(vs) != len(opts) {
		return false
	}
	want := make(map[string]float64, len(opts))
	for _, o := range opts {
		want[o.Label] = o.Price
	}
	for _, o := range attr.Options {
		if _, ok := want[o]; !ok {
			return false
		}
	}
	seen := make(map[string]bool, len(vs))
	for _, v := range vs {
		label := sizeOf(v)
		price, ok := want[label]
		if !ok || seen[label] {
			return false
		}
		got, err := strconv.ParseFloat(v.RegularPrice, 64)
		if err != nil || got != price {
			return false
		}
		seen[label] = true
	}
	return true
}

func sizeOf(v woo.Variation) string {
	for _, a := range v.Attributes {
		if strings.EqualFold(a.Name, SizeAttribute) {
			return a.Option
		}
	}
	return ""
}

func sizeAttribute(opts []PriceOption) woo.Attribute {
	labels := make([]string, len(opts))
	for i, o := range opts {
		labels[i] = o.Label
	}
	return woo.Attribute{Name: SizeAttribute, Options: labels, Visible: true, Variation: true}
}

func variationInputs(opts []PriceOption) []woo.VariationInput {
	out := make([]woo.VariationInput, len(opts))
	for i, o := range opts {
		out[i] = woo.VariationInput{
			RegularPrice: FormatPrice(o.Price),
			Attributes:   []woo.Attribute{{Name: SizeAttribute, Option: o.Label}},
		}
	}
	return out
}

// FormatPrice renders a price the way WooCommerce stores it.
func FormatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

// ParseOptions reads "label=price" pairs, e.g. "0.5g=25,1g=40".
func ParseOptions(s string) ([]PriceOption, error) {
	var out []PriceOption
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		label, price, ok := strings.Cut(part, "=")
		if !ok || strings.TrimSpace(label) == "" {
			return nil, fmt.Errorf("price option %q: want label=price", part)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(price), 64)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("price option %q: bad price", part)
		}
		out = append(out, PriceOption{Label: strings.TrimSpace(label), Price: v})
	}
	return out, nil
}
