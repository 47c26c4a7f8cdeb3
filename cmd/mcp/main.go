package main

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/leonardcser/storefront/internal/app"
	"github.com/leonardcser/storefront/internal/config"
	"github.com/leonardcser/storefront/internal/logger"
	"github.com/leonardcser/storefront/internal/tools"
)

func main() {
	if err := logger.InitFromEnv(); err != nil {
		panic(err)
	}
	defer logger.Close()

	logger.Infof("Starting storefront MCP server")

	cfg, err := config.Load()
	if err != nil {
		logger.Errorf("invalid configuration: %v", err)
		panic(err)
	}
	a, err := app.New(context.Background(), cfg)
	if err != nil {
		logger.Errorf("startup failed: %v", err)
		panic(err)
	}
	defer a.Close()

	s := server.NewMCPServer(
		"Storefront MCP",
		"0.1.0",
		server.WithRecovery(),
		server.WithToolCapabilities(false),
	)

	toolSearch := mcp.NewTool("catalog-search",
		mcp.WithDescription(multiline(
			"Searches the storefront catalog and returns display-ready products",
			"\nFunctionality:",
			"- Full-text search over published products",
			"- Returns type, strain category, vibe, THC and the price table per product",
			"- Missing product data is filled with category defaults",
			"\nUsage notes:",
			"- Results are cached for 5 minutes",
			"- This tool is read-only",
		)),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search terms, e.g. a strain name")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of products (default 10, max 50)")),
		mcp.WithString("category", mcp.Description("Optional WooCommerce category id")),
	)
	s.AddTool(toolSearch, tools.CatalogSearchHandler(a.Catalog))
	logger.Infof("Registered catalog-search tool")

	toolCOA := mcp.NewTool("coa-list",
		mcp.WithDescription(multiline(
			"Lists certificates of analysis",
			"\nUsage notes:",
			"- Without a category, returns the document categories",
			"- With a category, returns each PDF with view and download links",
		)),
		mcp.WithString("category", mcp.Description("Category folder, e.g. FLOWER")),
	)
	s.AddTool(toolCOA, tools.COAListHandler(a.Documents))
	logger.Infof("Registered coa-list tool")

	logger.Infof("Starting MCP server on stdio")
	if err := server.ServeStdio(s); err != nil {
		logger.Errorf("server error: %v", err)
	}
}

// multiline joins lines with newlines for tool descriptions.
func multiline(lines ...string) string { return strings.Join(lines, "\n") }
