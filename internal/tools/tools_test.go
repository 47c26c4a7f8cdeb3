package tools

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/leonardcser/storefront/internal/catalog"
	"github.com/leonardcser/storefront/internal/coa"
)

type fakeCatalog struct {
	got url.Values
	err error
}

func (f *fakeCatalog) Display(_ context.Context, q url.Values) ([]catalog.DisplayProduct, bool, error) {
	f.got = q
	if f.err != nil {
		return nil, false, f.err
	}
	return []catalog.DisplayProduct{{
		ID:          1,
		Name:        "Gelato",
		Type:        catalog.Flower,
		Category:    catalog.Hybrid,
		Vibe:        catalog.Balanced,
		THC:         24,
		PriceLabels: []string{"1/8 oz", "1/4 oz"},
		Prices:      map[string]float64{"1/8 oz": 35, "1/4 oz": 62.5},
	}}, false, nil
}

type fakeDocs struct{}

func (fakeDocs) Categories(context.Context) []string { return []string{"FLOWER", "VAPE"} }

func (fakeDocs) Files(_ context.Context, category string) []coa.Document {
	if category != "FLOWER" {
		return nil
	}
	return []coa.Document{{Name: "gelato.pdf", ViewURL: "https://v", DownloadURL: "https://d"}}
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("expected one content item, got %d", len(res.Content))
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", res.Content[0])
	}
	return tc.Text
}

func TestCatalogSearch(t *testing.T) {
	f := &fakeCatalog{}
	res, err := CatalogSearchHandler(f)(context.Background(), callRequest(map[string]any{"query": "gelato", "limit": 500}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, res))
	}
	if f.got.Get("search") != "gelato" || f.got.Get("per_page") != "50" {
		t.Fatalf("unexpected query %v", f.got)
	}
	text := resultText(t, res)
	for _, want := range []string{"1. Gelato (#1)", "flower · hybrid · balanced", "THC 24.0%", "1/8 oz $35, 1/4 oz $62.5"} {
		if !strings.Contains(text, want) {
			t.Fatalf("missing %q in:\n%s", want, text)
		}
	}
}

func TestCatalogSearchErrors(t *testing.T) {
	res, _ := CatalogSearchHandler(&fakeCatalog{})(context.Background(), callRequest(map[string]any{}))
	if !res.IsError {
		t.Fatal("expected error for missing query")
	}
	res, _ = CatalogSearchHandler(&fakeCatalog{err: errors.New("upstream down")})(context.Background(), callRequest(map[string]any{"query": "x"}))
	if !res.IsError || !strings.Contains(resultText(t, res), "upstream down") {
		t.Fatal("expected upstream error surfaced as tool error")
	}
}

func TestCOAList(t *testing.T) {
	h := COAListHandler(fakeDocs{})

	res, _ := h(context.Background(), callRequest(map[string]any{}))
	if got := resultText(t, res); got != "## Categories\n- FLOWER\n- VAPE" {
		t.Fatalf("unexpected categories text %q", got)
	}
	res, _ = h(context.Background(), callRequest(map[string]any{"category": "FLOWER"}))
	if got := resultText(t, res); !strings.Contains(got, "- gelato.pdf\n  view: https://v\n  download: https://d") {
		t.Fatalf("unexpected files text %q", got)
	}
	res, _ = h(context.Background(), callRequest(map[string]any{"category": "VAPE"}))
	if got := resultText(t, res); got != "No certificates in VAPE." {
		t.Fatalf("unexpected empty text %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if truncate("short", 10) != "short" {
		t.Fatal("short strings are kept")
	}
	if got := truncate("ééééé", 3); got != "ééé…" {
		t.Fatalf("unexpected %q", got)
	}
}
