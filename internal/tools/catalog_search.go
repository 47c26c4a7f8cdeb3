package tools

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/leonardcser/storefront/internal/catalog"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

// Catalog is the part of the catalog service the search tool reads.
type Catalog interface {
	Display(ctx context.Context, q url.Values) ([]catalog.DisplayProduct, bool, error)
}

// CatalogSearchHandler returns the MCP tool handler for the "catalog-search" tool.
func CatalogSearchHandler(c Catalog) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if ctx.Err() != nil {
			return mcp.NewToolResultError(ctx.Err().Error()), nil
		}
		query, err := req.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		limit := req.GetInt("limit", defaultSearchLimit)
		if limit <= 0 {
			limit = defaultSearchLimit
		}
		if limit > maxSearchLimit {
			limit = maxSearchLimit
		}

		q := url.Values{"search": {query}, "per_page": {strconv.Itoa(limit)}}
		if cat := req.GetString("category", ""); cat != "" {
			q.Set("category", cat)
		}
		products, _, err := c.Display(ctx, q)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(formatProducts(products)), nil
	}
}

// formatProducts renders one block per product: name, classification and
// the price table.
func formatProducts(products []catalog.DisplayProduct) string {
	if len(products) == 0 {
		return "No products."
	}
	var sb strings.Builder
	for i, p := range products {
		sb.WriteString(fmt.Sprintf("%d. %s (#%d)\n   %s · %s · %s", i+1, p.Name, p.ID, p.Type, p.Category, p.Vibe))
		if p.THC > 0 {
			sb.WriteString(fmt.Sprintf(" · THC %.1f%%", p.THC))
		}
		if len(p.PriceLabels) > 0 {
			prices := make([]string, 0, len(p.PriceLabels))
			for _, label := range p.PriceLabels {
				prices = append(prices, fmt.Sprintf("%s $%s", label, strconv.FormatFloat(p.Prices[label], 'f', -1, 64)))
			}
			sb.WriteString("\n   ")
			sb.WriteString(strings.Join(prices, ", "))
		}
		if p.Description != "" {
			sb.WriteString("\n   ")
			sb.WriteString(truncate(p.Description, 200))
		}
		if i < len(products)-1 {
			sb.WriteString("\n\n")
		}
	}
	return sb.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "…"
}
