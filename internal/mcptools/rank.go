package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloo-solutions/knowpool/internal/domain"
	"github.com/cloo-solutions/knowpool/internal/service"
	"github.com/mark3labs/mcp-go/mcp"
)

// RankTool handles the knowledge_rank MCP tool.
type RankTool struct {
	ranker Ranker
}

func NewRankTool(ranker Ranker) *RankTool {
	return &RankTool{ranker: ranker}
}

func (t *RankTool) Definition() mcp.Tool {
	return mcp.NewTool("knowledge_rank",
		mcp.WithDescription(
			"List knowledge entries for an industry ordered by effective confidence "+
				"(stored confidence decayed by age). Use it to inspect individual facts.",
		),
		mcp.WithString("industry",
			mcp.Required(),
			mcp.Description("Industry to rank"),
		),
		mcp.WithString("segment",
			mcp.Description("Optional segment filter"),
		),
		mcp.WithString("type",
			mcp.Description("Optional category: market_data, competitor, pain_point, trend, regulation, technology"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of entries (default: 20)"),
		),
		mcp.WithNumber("min_confidence",
			mcp.Description("Drop entries whose effective confidence is below this value (0-1)"),
		),
	)
}

func (t *RankTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	industry := strings.TrimSpace(req.GetString("industry", ""))
	if industry == "" {
		return mcp.NewToolResultError("industry is required"), nil
	}

	opts := service.RankOptions{
		Segment: req.GetString("segment", ""),
		Limit:   intArg(req, "limit", 0),
	}
	if kt := req.GetString("type", ""); kt != "" {
		if !domain.IsValidKnowledgeType(domain.KnowledgeType(kt)) {
			return mcp.NewToolResultError(fmt.Sprintf("unknown knowledge type %q", kt)), nil
		}
		opts.KnowledgeType = domain.KnowledgeType(kt)
	}
	if floor, ok := floatArg(req, "min_confidence"); ok {
		if floor < 0 || floor > 1 {
			return mcp.NewToolResultError("min_confidence must be within [0,1]"), nil
		}
		opts.MinEffectiveConfidence = &floor
	}

	entries, err := t.ranker.Rank(ctx, industry, opts)
	if err != nil {
		return errorResult(err), nil
	}
	if len(entries) == 0 {
		return mcp.NewToolResultText("No entries found for " + industry + "."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d entries for %s:\n", len(entries), industry)
	for i, e := range entries {
		fmt.Fprintf(&b, "\n%d. [%s] %s\n", i+1, e.KnowledgeType, e.Title)
		fmt.Fprintf(&b, "   effective %.2f (confidence %.2f, freshness %.2f, seen %dx)\n",
			e.EffectiveConfidence, e.Confidence, e.FreshnessScore, e.ExtractionCount)
		if e.Segment != "" {
			fmt.Fprintf(&b, "   segment: %s\n", e.Segment)
		}
		fmt.Fprintf(&b, "   id: %s\n", e.ID)
	}
	return mcp.NewToolResultText(b.String()), nil
}
