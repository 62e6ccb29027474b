package mcptools

import (
	"context"
	"strings"

	"github.com/cloo-solutions/knowpool/internal/service"
	"github.com/mark3labs/mcp-go/mcp"
)

// ContextTool handles the knowledge_context MCP tool.
type ContextTool struct {
	builder ContextBuilder
}

func NewContextTool(builder ContextBuilder) *ContextTool {
	return &ContextTool{builder: builder}
}

func (t *ContextTool) Definition() mcp.Tool {
	return mcp.NewTool("knowledge_context",
		mcp.WithDescription(
			"Get a compact digest of what is known about an industry, ranked by confidence "+
				"and freshness. Inject it into a prompt before analysing a venture.",
		),
		mcp.WithString("industry",
			mcp.Required(),
			mcp.Description("Industry to build context for (e.g. fintech)"),
		),
		mcp.WithString("segment",
			mcp.Description("Optional segment within the industry"),
		),
		mcp.WithNumber("max_chars",
			mcp.Description("Character budget for the digest (default: 2000)"),
		),
		mcp.WithArray("tags",
			mcp.Description("Tags to pull cross-industry patterns for"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithArray("problem_areas",
			mcp.Description("Problem areas to pull cross-industry patterns for"),
			mcp.Items(map[string]any{"type": "string"}),
		),
	)
}

func (t *ContextTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	industry := strings.TrimSpace(req.GetString("industry", ""))
	if industry == "" {
		return mcp.NewToolResultError("industry is required"), nil
	}

	maxChars := intArg(req, "max_chars", 0)
	if maxChars < 0 {
		return mcp.NewToolResultError("max_chars must be positive"), nil
	}

	opts := service.ContextOptions{
		Segment:  req.GetString("segment", ""),
		MaxChars: maxChars,
	}
	tags := stringsArg(req, "tags")
	areas := stringsArg(req, "problem_areas")
	if len(tags) > 0 || len(areas) > 0 {
		opts.Patterns = &service.PatternRequest{Tags: tags, ProblemAreas: areas}
	}

	out := t.builder.BuildContext(ctx, industry, opts)
	if out == "" {
		return mcp.NewToolResultText("No knowledge accumulated for " + industry + " yet."), nil
	}
	return mcp.NewToolResultText(out), nil
}
