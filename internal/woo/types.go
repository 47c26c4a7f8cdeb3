package woo

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Product is the subset of the WooCommerce product record the storefront reads.
type Product struct {
	ID               int64       `json:"id"`
	Name             string      `json:"name"`
	Slug             string      `json:"slug"`
	Type             string      `json:"type"`
	Status           string      `json:"status"`
	Featured         bool        `json:"featured"`
	Description      string      `json:"description"`
	ShortDescription string      `json:"short_description"`
	Price            string      `json:"price"`
	RegularPrice     string      `json:"regular_price"`
	Categories       []Term      `json:"categories"`
	Tags             []Term      `json:"tags"`
	Images           []Image     `json:"images"`
	Attributes       []Attribute `json:"attributes"`
	Variations       []int64     `json:"variations"`
	MetaData         []Meta      `json:"meta_data"`
}

type Term struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type Image struct {
	ID  int64  `json:"id"`
	Src string `json:"src"`
	Alt string `json:"alt"`
}

type Attribute struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	Option    string   `json:"option,omitempty"`
	Options   []string `json:"options,omitempty"`
	Visible   bool     `json:"visible"`
	Variation bool     `json:"variation"`
}

// Meta is a custom field; Value may be any JSON.
type Meta struct {
	ID    int64           `json:"id,omitempty"`
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// String renders Value as text: strings are unquoted, numbers kept as
// written, arrays joined with ", ". Anything else yields "".
func (m Meta) String() string {
	if len(m.Value) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(m.Value, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(m.Value, &n); err == nil {
		return n.String()
	}
	var list []any
	if err := json.Unmarshal(m.Value, &list); err == nil {
		parts := make([]string, 0, len(list))
		for _, v := range list {
			switch t := v.(type) {
			case string:
				if t = strings.TrimSpace(t); t != "" {
					parts = append(parts, t)
				}
			case float64:
				parts = append(parts, strconv.FormatFloat(t, 'f', -1, 64))
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

// Variation is one purchasable option of a variable product.
type Variation struct {
	ID           int64       `json:"id"`
	Price        string      `json:"price"`
	RegularPrice string      `json:"regular_price"`
	SalePrice    string      `json:"sale_price"`
	Status       string      `json:"status"`
	Attributes   []Attribute `json:"attributes"`
}

// BatchVariations is the payload of POST products/{id}/variations/batch.
type BatchVariations struct {
	Create []VariationInput `json:"create,omitempty"`
	Delete []int64          `json:"delete,omitempty"`
}

type VariationInput struct {
	RegularPrice string      `json:"regular_price"`
	Attributes   []Attribute `json:"attributes"`
}

// ProductPatch is the payload used to convert a product into a variable one.
type ProductPatch struct {
	Type       string      `json:"type,omitempty"`
	Attributes []Attribute `json:"attributes,omitempty"`
}
