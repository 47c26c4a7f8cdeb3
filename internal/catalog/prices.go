package catalog

import (
	"strconv"
	"strings"

	"github.com/leonardcser/storefront/internal/woo"
)

type tier struct {
	label string
	price float64
}

// defaultPriceTables are shown when a product has no priced variations.
var defaultPriceTables = map[ProductType][]tier{
	Flower:      {{"1/8 oz", 35}, {"1/4 oz", 65}, {"1/2 oz", 120}, {"1 oz", 220}},
	PreRoll:     {{"single", 12}, {"5 pack", 50}},
	Vape:        {{"0.5g", 25}, {"1g", 40}, {"2g", 70}},
	Concentrate: {{"1g", 45}, {"2g", 80}},
	Edible:      {{"10 pack", 25}, {"20 pack", 45}},
	Moonwater:   {{"single", 8}, {"4 pack", 28}},
	Other:       {{"each", 20}},
}

// DefaultPrices returns the static table for a product type in display order.
func DefaultPrices(t ProductType) ([]string, map[string]float64) {
	table, ok := defaultPriceTables[t]
	if !ok {
		table = defaultPriceTables[Other]
	}
	labels := make([]string, 0, len(table))
	prices := make(map[string]float64, len(table))
	for _, tr := range table {
		labels = append(labels, tr.label)
		prices[tr.label] = tr.price
	}
	return labels, prices
}

// variationPrices reduces variation records to option label -> price, keeping
// the upstream order. Variations without a label or a parseable price are
// skipped; a repeated label keeps its first price.
func variationPrices(vs []woo.Variation) ([]string, map[string]float64) {
	var labels []string
	prices := map[string]float64{}
	for _, v := range vs {
		label := variationLabel(v)
		if label == "" {
			continue
		}
		price, ok := parsePrice(v.Price)
		if !ok {
			price, ok = parsePrice(v.RegularPrice)
		}
		if !ok {
			continue
		}
		if _, dup := prices[label]; dup {
			continue
		}
		labels = append(labels, label)
		prices[label] = price
	}
	return labels, prices
}

func variationLabel(v woo.Variation) string {
	parts := make([]string, 0, len(v.Attributes))
	for _, a := range v.Attributes {
		if o := strings.TrimSpace(a.Option); o != "" {
			parts = append(parts, o)
		}
	}
	return strings.Join(parts, " / ")
}

func parsePrice(s string) (float64, bool) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return f, true
}
