package mcp

import (
	"context"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/lukman83/autopost/internal/banner"
	"github.com/lukman83/autopost/internal/pipeline"
	"github.com/lukman83/autopost/internal/trends"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type tools struct {
	svc Services
}

func registerTools(s *server.MCPServer, t *tools) {
	// discover_products
	discoverTool := mcp.NewTool("discover_products",
		mcp.WithDescription("Search Coupang for a keyword and return filtered candidates with affiliate links"),
		mcp.WithString("keyword",
			mcp.Required(),
			mcp.Description("Search keyword"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum candidates, 1-10 (default: COUPANG_PRODUCT_LIMIT)"),
		),
		mcp.WithBoolean("rocket_only",
			mcp.Description("Keep only rocket-delivery products"),
		),
	)
	s.AddTool(discoverTool, t.handleDiscover)

	// compose_title
	titleTool := mcp.NewTool("compose_title",
		mcp.WithDescription("Compose a post title for a keyword or a list of trend names"),
		mcp.WithString("keyword",
			mcp.Description("Keyword, or the category for a trend title"),
		),
		mcp.WithNumber("count",
			mcp.Description("Number of products in the post (keyword titles)"),
		),
		mcp.WithArray("trend_names",
			mcp.Description("Trend names; when given a trend title is composed"),
			mcp.Items(map[string]any{"type": "string"}),
		),
	)
	s.AddTool(titleTool, t.handleComposeTitle)

	// run_batch
	batchTool := mcp.NewTool("run_batch",
		mcp.WithDescription("Discover, compose and publish posts; returns the batch report"),
		mcp.WithString("mode",
			mcp.Description("keywords (default), trends or links"),
			mcp.Enum(string(pipeline.ModeKeywords), string(pipeline.ModeTrends), string(pipeline.ModeLinks)),
		),
		mcp.WithArray("keywords",
			mcp.Description("Keywords for keywords mode (default: KEYWORDS)"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithArray("links",
			mcp.Description("Coupang product links for links mode (default: PRODUCT_LINKS_FILE)"),
			mcp.Items(map[string]any{"type": "string"}),
		),
	)
	s.AddTool(batchTool, t.handleRunBatch)

	// list_trends
	trendsTool := mcp.NewTool("list_trends",
		mcp.WithDescription("List the current trend names from the configured trend source"),
	)
	s.AddTool(trendsTool, t.handleListTrends)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode error: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (t *tools) handleDiscover(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	keyword := strings.TrimSpace(request.GetString("keyword", ""))
	if keyword == "" {
		return mcp.NewToolResultError("keyword is required"), nil
	}
	if t.svc.Products == nil {
		return mcp.NewToolResultError("product discovery is not configured"), nil
	}

	limit := request.GetInt("limit", t.svc.DefaultLimit)
	cands, err := t.svc.Products.Discover(ctx, keyword, limit, request.GetBool("rocket_only", false))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("discover error: %v", err)), nil
	}
	return jsonResult(cands)
}

func (t *tools) handleComposeTitle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if t.svc.Titles == nil {
		return mcp.NewToolResultError("title composer is not configured"), nil
	}
	names := request.GetStringSlice("trend_names", nil)
	req := banner.TitleRequest{
		Keyword:    strings.TrimSpace(request.GetString("keyword", "")),
		Count:      request.GetInt("count", 0),
		FromTrends: len(names) > 0,
		TrendNames: names,
	}
	if !req.FromTrends && req.Keyword == "" {
		return mcp.NewToolResultError("keyword or trend_names is required"), nil
	}

	title, err := t.svc.Titles.ComposeTitle(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("title error: %v", err)), nil
	}
	return jsonResult(title)
}

func (t *tools) handleRunBatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if t.svc.Batch == nil {
		return mcp.NewToolResultError("batch runner is not configured"), nil
	}
	job := pipeline.Job{
		Mode:     pipeline.Mode(request.GetString("mode", string(pipeline.ModeKeywords))),
		Keywords: request.GetStringSlice("keywords", nil),
		Links:    request.GetStringSlice("links", nil),
	}
	rep, err := t.svc.Batch.Run(ctx, job)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("batch error: %v", err)), nil
	}
	return jsonResult(rep)
}

func (t *tools) handleListTrends(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if t.svc.Trends == nil {
		return mcp.NewToolResultError("trend source is not configured"), nil
	}
	items, err := t.svc.Trends.Fetch(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("trends error: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"source": t.svc.Trends.Kind(),
		"names":  trends.Names(items),
	})
}
