package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/leonardcser/storefront/internal/coa"
)

type Documents interface {
	Categories(ctx context.Context) []string
	Files(ctx context.Context, category string) []coa.Document
}

// COAListHandler returns the MCP tool handler for the "coa-list" tool. Without
// a category it lists the categories.
func COAListHandler(d Documents) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if ctx.Err() != nil {
			return mcp.NewToolResultError(ctx.Err().Error()), nil
		}
		category := strings.TrimSpace(req.GetString("category", ""))
		if category == "" {
			return mcp.NewToolResultText(formatCategories(d.Categories(ctx))), nil
		}
		return mcp.NewToolResultText(formatDocuments(category, d.Files(ctx, category))), nil
	}
}

func formatCategories(cats []string) string {
	var sb strings.Builder
	sb.WriteString("## Categories\n")
	for _, c := range cats {
		sb.WriteString("- ")
		sb.WriteString(c)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatDocuments(category string, docs []coa.Document) string {
	if len(docs) == 0 {
		return fmt.Sprintf("No certificates in %s.", category)
	}
	var sb strings.Builder
	sb.WriteString("## ")
	sb.WriteString(category)
	sb.WriteString("\n")
	for _, d := range docs {
		sb.WriteString(fmt.Sprintf("- %s\n  view: %s\n  download: %s\n", d.Name, d.ViewURL, d.DownloadURL))
	}
	return strings.TrimRight(sb.String(), "\n")
}
