package mcptools

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/knowpool/internal/domain"
	"github.com/mark3labs/mcp-go/mcp"
)

// ClassifyTool handles the knowledge_classify MCP tool.
type ClassifyTool struct{}

func NewClassifyTool() *ClassifyTool {
	return &ClassifyTool{}
}

func (t *ClassifyTool) Definition() mcp.Tool {
	return mcp.NewTool("knowledge_classify",
		mcp.WithDescription("Show which category a piece of text would be filed under and how fast it decays."),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Text to classify"),
		),
	)
}

func (t *ClassifyTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := req.GetString("text", "")
	kt := domain.Classify(text)
	return mcp.NewToolResultText(fmt.Sprintf("%s (expires after %.0f days)", kt, domain.ExpiryDays(kt))), nil
}
