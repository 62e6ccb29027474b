// Package mcptools exposes the knowledge pool to agents as MCP tools.
//
// Each tool is a struct with its dependency injected via constructor,
// a Definition() returning the mcp.Tool schema and a Handle() that
// processes the call. Failures are reported as tool errors so the
// calling agent sees the message.
package mcptools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloo-solutions/knowpool/internal/domain"
	"github.com/cloo-solutions/knowpool/internal/service"
	"github.com/mark3labs/mcp-go/mcp"
)

type Ranker interface {
	Rank(ctx context.Context, industry string, opts service.RankOptions) ([]*domain.RankedEntry, error)
}

type ContextBuilder interface {
	BuildContext(ctx context.Context, industry string, opts service.ContextOptions) string
}

type Accumulator interface {
	Accumulate(ctx context.Context, input service.AccumulateInput) (int, error)
}

// intArg extracts an integer argument; JSON numbers arrive as float64.
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

func floatArg(req mcp.CallToolRequest, key string) (float64, bool) {
	v, ok := req.GetArguments()[key].(float64)
	return v, ok
}

func errorResult(err error) *mcp.CallToolResult {
	var de *domain.DomainError
	if errors.As(err, &de) {
		return mcp.NewToolResultError(de.Message)
	}
	var se *domain.StoreError
	if errors.As(err, &se) {
		return mcp.NewToolResultError("knowledge store unavailable, try again later")
	}
	return mcp.NewToolResultError(fmt.Sprintf("internal error: %v", err))
}

// stringsArg extracts a list of strings, skipping blanks and non-strings.
func stringsArg(req mcp.CallToolRequest, key string) []string {
	raw, ok := req.GetArguments()[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}
