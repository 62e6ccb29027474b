package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloo-solutions/knowpool/internal/domain"
	"github.com/cloo-solutions/knowpool/internal/service"
	"github.com/mark3labs/mcp-go/mcp"
)

// AccumulateTool handles the knowledge_accumulate MCP tool.
type AccumulateTool struct {
	accumulator Accumulator
}

func NewAccumulateTool(accumulator Accumulator) *AccumulateTool {
	return &AccumulateTool{accumulator: accumulator}
}

func (t *AccumulateTool) Definition() mcp.Tool {
	return mcp.NewTool("knowledge_accumulate",
		mcp.WithDescription(
			"Fold the outcome of a finished analysis session into the shared knowledge pool. "+
				"Repeated facts reinforce existing entries instead of duplicating them.",
		),
		mcp.WithString("industry",
			mcp.Required(),
			mcp.Description("Industry of the analysed venture"),
		),
		mcp.WithString("topic",
			mcp.Description("Session topic; required when no conclusion is given"),
		),
		mcp.WithString("conclusion",
			mcp.Description("Session conclusion"),
		),
		mcp.WithNumber("confidence",
			mcp.Description("Session confidence (0-1, default: 0.5)"),
		),
		mcp.WithArray("insights",
			mcp.Description("Key insights, one fact per item"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithString("segment",
			mcp.Description("Segment of the analysed venture"),
		),
		mcp.WithString("problem_area",
			mcp.Description("Problem area of the analysed venture"),
		),
		mcp.WithArray("tags",
			mcp.Description("Venture tags used for cross-industry matching"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithString("session_id",
			mcp.Description("Identifier of the source session"),
		),
		mcp.WithString("venture_id",
			mcp.Description("Identifier of the analysed venture"),
		),
	)
}

func (t *AccumulateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	industry := strings.TrimSpace(req.GetString("industry", ""))
	if industry == "" {
		return mcp.NewToolResultError("industry is required"), nil
	}

	session := &domain.Session{
		ID:         req.GetString("session_id", ""),
		Topic:      req.GetString("topic", ""),
		Conclusion: req.GetString("conclusion", ""),
	}
	if session.Topic == "" && session.Conclusion == "" {
		return mcp.NewToolResultError("topic or conclusion is required"), nil
	}
	if c, ok := floatArg(req, "confidence"); ok {
		if c < 0 || c > 1 {
			return mcp.NewToolResultError("confidence must be within [0,1]"), nil
		}
		session.Confidence = &c
	}
	for _, s := range stringsArg(req, "insights") {
		session.Metadata.KeyInsights = append(session.Metadata.KeyInsights, domain.TextInsight(s))
	}

	subject := &domain.SubjectEntity{
		ID:          req.GetString("venture_id", ""),
		Industry:    industry,
		Segment:     req.GetString("segment", ""),
		ProblemArea: req.GetString("problem_area", ""),
		Tags:        stringsArg(req, "tags"),
	}

	written, err := t.accumulator.Accumulate(ctx, service.AccumulateInput{Session: session, Subject: subject})
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Accumulated %d entries into %s.", written, industry)), nil
}
