// Package catalog maps WooCommerce product records into the display shape the
// storefront renders. Every field resolves through the same chain: a
// structured custom field, then keywords in tags and description text, then
// a fixed default. Missing or malformed catalog data never produces an error.
package catalog

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/leonardcser/storefront/internal/woo"
)

// Category is the strain family.
type Category string

const (
	Indica Category = "indica"
	Sativa Category = "sativa"
	Hybrid Category = "hybrid"
)

// Vibe groups products by the effect they are sold on.
type Vibe string

const (
	Relaxed  Vibe = "relaxed"
	Balanced Vibe = "balanced"
	Uplifted Vibe = "uplifted"
	Creative Vibe = "creative"
	Sleepy   Vibe = "sleepy"
)

// ProductType is the storefront department a product belongs to.
type ProductType string

const (
	Flower      ProductType = "flower"
	PreRoll     ProductType = "preroll"
	Vape        ProductType = "vape"
	Edible      ProductType = "edible"
	Concentrate ProductType = "concentrate"
	Moonwater   ProductType = "moonwater"
	Other       ProductType = "other"
)

type DisplayProduct struct {
	ID                  int64              `json:"id"`
	Name                string             `json:"name"`
	Slug                string             `json:"slug"`
	Type                ProductType        `json:"type"`
	Category            Category           `json:"category"`
	Vibe                Vibe               `json:"vibe"`
	THC                 float64            `json:"thc"`
	Nose                []string           `json:"nose"`
	Lineage             string             `json:"lineage"`
	Terpenes            []string           `json:"terpenes"`
	Prices              map[string]float64 `json:"prices"`
	PriceLabels         []string           `json:"priceLabels"`
	Description         string             `json:"description"`
	DescriptionMarkdown string             `json:"descriptionMarkdown"`
	Image               string             `json:"image,omitempty"`
	Featured            bool               `json:"featured"`
	Tags                []string           `json:"tags"`
}

// Transform maps one upstream product. variations may be nil; when it yields
// at least one priced option it replaces the type's default price table.
func Transform(p woo.Product, variations []woo.Variation) DisplayProduct {
	desc := plainText(p.Description)
	text := strings.ToLower(strings.Join([]string{desc, plainText(p.ShortDescription)}, " "))
	tags := termNames(p.Tags)
	typ := productType(p)
	cat := category(p, tags, text)

	dp := DisplayProduct{
		ID:                  p.ID,
		Name:                strings.TrimSpace(p.Name),
		Slug:                p.Slug,
		Type:                typ,
		Category:            cat,
		Vibe:                vibe(p, tags, text, cat),
		THC:                 thc(p, text, typ),
		Nose:                nose(p, tags, text, cat),
		Lineage:             lineage(p, desc),
		Terpenes:            terpenes(p, text, cat),
		Description:         desc,
		DescriptionMarkdown: markdown(p.Description),
		Featured:            p.Featured,
		Tags:                tags,
	}
	if len(p.Images) > 0 {
		dp.Image = p.Images[0].Src
	}
	dp.PriceLabels, dp.Prices = variationPrices(variations)
	if len(dp.PriceLabels) == 0 {
		dp.PriceLabels, dp.Prices = DefaultPrices(typ)
	}
	return dp
}

func productType(p woo.Product) ProductType {
	for _, c := range p.Categories {
		if t := typeFromText(strings.ToLower(c.Slug + " " + c.Name)); t != Other {
			return t
		}
	}
	return typeFromText(strings.ToLower(p.Name))
}

// typeKeywords match whole words so names like "Buddha" or "Cartoon" do not
// pick up a type.
var typeKeywords = []struct {
	typ ProductType
	re  *regexp.Regexp
}{
	{Moonwater, regexp.MustCompile(`\bmoonwater\b`)},
	{PreRoll, regexp.MustCompile(`\bpre[- ]?rolls?\b`)},
	{Vape, regexp.MustCompile(`\b(?:vapes?|carts?|cartridges?|disposables?)\b`)},
	{Edible, regexp.MustCompile(`\b(?:edibles?|gumm(?:y|ies)|chocolates?)\b`)},
	{Concentrate, regexp.MustCompile(`\b(?:concentrates?|rosin|wax|shatter|badder|diamonds?)\b`)},
	{Flower, regexp.MustCompile(`\b(?:flowers?|buds?)\b`)},
}

func typeFromText(s string) ProductType {
	for _, k := range typeKeywords {
		if k.re.MatchString(s) {
			return k.typ
		}
	}
	return Other
}

func category(p woo.Product, tags []string, text string) Category {
	if v := strings.ToLower(customField(p, []string{"strain_type", "_strain_type", "strain"}, []string{"strain type", "strain", "lineage type"})); v != "" {
		if c, ok := matchCategory(v, Indica, Sativa, Hybrid); ok {
			return c
		}
	}
	if c, ok := matchCategory(strings.ToLower(strings.Join(tags, " ")), Indica, Sativa, Hybrid); ok {
		return c
	}
	// "indica-dominant hybrid" reads as a hybrid in prose
	if c, ok := matchCategory(text, Hybrid, Indica, Sativa); ok {
		return c
	}
	return Hybrid
}

func matchCategory(s string, order ...Category) (Category, bool) {
	for _, c := range order {
		if strings.Contains(s, string(c)) {
			return c, true
		}
	}
	return "", false
}

var vibeKeywords = []struct {
	vibe  Vibe
	words []string
}{
	{Sleepy, []string{"sleep", "bedtime", "insomnia", "night"}},
	{Relaxed, []string{"relax", "calm", "chill", "mellow", "unwind"}},
	{Creative, []string{"creativ", "inspir", "artist"}},
	{Uplifted, []string{"uplift", "energ", "euphori", "focus", "happy"}},
	{Balanced, []string{"balance"}},
}

func matchVibe(s string) (Vibe, bool) {
	for _, vk := range vibeKeywords {
		for _, w := range vk.words {
			if strings.Contains(s, w) {
				return vk.vibe, true
			}
		}
	}
	return "", false
}

func vibe(p woo.Product, tags []string, text string, cat Category) Vibe {
	if v := strings.ToLower(customField(p, []string{"vibe", "_vibe", "effect", "effects"}, []string{"vibe", "effect", "effects"})); v != "" {
		if vb, ok := matchVibe(v); ok {
			return vb
		}
	}
	if vb, ok := matchVibe(strings.ToLower(strings.Join(tags, " "))); ok {
		return vb
	}
	if vb, ok := matchVibe(text); ok {
		return vb
	}
	switch cat {
	case Indica:
		return Relaxed
	case Sativa:
		return Uplifted
	}
	return Balanced
}

var (
	thcAfter  = regexp.MustCompile(`thc[^0-9%]{0,12}(\d{1,3}(?:\.\d+)?)\s*%`)
	thcBefore = regexp.MustCompile(`(\d{1,3}(?:\.\d+)?)\s*%\s*thc`)
)

// DefaultTHC is the potency shown when the catalog has none.
var DefaultTHC = map[ProductType]float64{
	Flower:      22,
	PreRoll:     20,
	Vape:        85,
	Concentrate: 75,
}

func thc(p woo.Product, text string, typ ProductType) float64 {
	if v := customField(p, []string{"thc", "_thc", "thc_percentage", "thc_percent"}, []string{"thc", "thc %"}); v != "" {
		if f, ok := parsePercent(v); ok {
			return f
		}
	}
	for _, re := range []*regexp.Regexp{thcAfter, thcBefore} {
		if m := re.FindStringSubmatch(text); m != nil {
			if f, ok := parsePercent(m[1]); ok {
				return f
			}
		}
	}
	return DefaultTHC[typ]
}

func parsePercent(s string) (float64, bool) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f > 100 {
		return 0, false
	}
	return f, true
}

var aromaWords = []string{
	"citrus", "lemon", "lime", "orange", "grape", "berry", "tropical", "mango",
	"pine", "earthy", "woody", "diesel", "gas", "skunk", "sweet", "floral",
	"spicy", "pepper", "herbal", "mint", "vanilla", "cheese", "cream",
}

var defaultNose = map[Category][]string{
	Indica: {"earthy", "sweet", "pine"},
	Sativa: {"citrus", "pine", "herbal"},
	Hybrid: {"sweet", "earthy", "citrus"},
}

func nose(p woo.Product, tags []string, text string, cat Category) []string {
	if v := customField(p, []string{"nose", "aroma", "aromas", "flavor", "flavors"}, []string{"nose", "aroma", "flavor"}); v != "" {
		if list := splitList(v); len(list) > 0 {
			return list
		}
	}
	if found := scanWords(strings.ToLower(strings.Join(tags, " ")), aromaWords); len(found) > 0 {
		return found
	}
	if found := scanWords(text, aromaWords); len(found) > 0 {
		return found
	}
	return append([]string(nil), defaultNose[cat]...)
}

var lineageRe = regexp.MustCompile(`(?i)(?:lineage|genetics|cross)\s*[:\-]\s*([^.\n]+)`)

// DefaultLineage is shown when no parentage is recorded.
const DefaultLineage = "Proprietary genetics"

func lineage(p woo.Product, desc string) string {
	if v := customField(p, []string{"lineage", "genetics", "parents", "cross"}, []string{"lineage", "genetics"}); v != "" {
		return v
	}
	if m := lineageRe.FindStringSubmatch(desc); m != nil {
		if s := strings.TrimSpace(m[1]); s != "" {
			return s
		}
	}
	return DefaultLineage
}

var terpeneWords = []string{
	"myrcene", "limonene", "caryophyllene", "pinene", "linalool",
	"humulene", "terpinolene", "ocimene", "bisabolol",
}

var defaultTerpenes = map[Category][]string{
	Indica: {"Myrcene", "Linalool", "Caryophyllene"},
	Sativa: {"Limonene", "Pinene", "Terpinolene"},
	Hybrid: {"Caryophyllene", "Limonene", "Myrcene"},
}

func terpenes(p woo.Product, text string, cat Category) []string {
	if v := customField(p, []string{"terpenes", "terps", "dominant_terpenes"}, []string{"terpenes", "terpene"}); v != "" {
		if list := splitList(v); len(list) > 0 {
			return titleAll(list)
		}
	}
	if found := scanWords(text, terpeneWords); len(found) > 0 {
		return titleAll(found)
	}
	return append([]string(nil), defaultTerpenes[cat]...)
}

// customField returns the first non-empty meta_data value among metaKeys,
// then the first attribute among attrNames (case-insensitive).
func customField(p woo.Product, metaKeys, attrNames []string) string {
	for _, k := range metaKeys {
		for _, m := range p.MetaData {
			if strings.EqualFold(m.Key, k) {
				if v := m.String(); v != "" {
					return v
				}
			}
		}
	}
	for _, n := range attrNames {
		for _, a := range p.Attributes {
			if !strings.EqualFold(strings.TrimSpace(a.Name), n) {
				continue
			}
			if a.Option != "" {
				return strings.TrimSpace(a.Option)
			}
			if len(a.Options) > 0 {
				return strings.Join(a.Options, ", ")
			}
		}
	}
	return ""
}

func termNames(terms []woo.Term) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if n := strings.TrimSpace(t.Name); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '|' || r == ';' }) {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// scanWords returns the words present in s, in vocabulary order.
func scanWords(s string, vocabulary []string) []string {
	var out []string
	for _, w := range vocabulary {
		if containsWord(s, w) {
			out = append(out, w)
		}
	}
	return out
}

// containsWord reports whether w occurs in s as a whole word, allowing a
// plural "s", so "gas" does not match "gastro".
func containsWord(s, w string) bool {
	for i := 0; ; {
		j := strings.Index(s[i:], w)
		if j < 0 {
			return false
		}
		start, end := i+j, i+j+len(w)
		if end < len(s) && s[end] == 's' {
			end++
		}
		if !letterBefore(s, start) && !letterAt(s, end) {
			return true
		}
		i = start + 1
	}
}

func letterBefore(s string, i int) bool {
	if i == 0 {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return unicode.IsLetter(r)
}

func letterAt(s string, i int) bool {
	if i >= len(s) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return unicode.IsLetter(r)
}

func titleAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		if s == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(s)
		// Greek isomer prefixes stay lower case: β-caryophyllene.
		if unicode.Is(unicode.Greek, r) {
			out[i] = s
			continue
		}
		out[i] = string(unicode.ToUpper(r)) + s[size:]
	}
	return out
}
