package mcptools

import (
	"github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via ldflags.
var Version = "dev"

type Deps struct {
	Ranker      Ranker
	Context     ContextBuilder
	Accumulator Accumulator
}

// NewServer creates an MCP server with every knowledge tool registered.
func NewServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"knowpool",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	contextTool := NewContextTool(deps.Context)
	s.AddTool(contextTool.Definition(), contextTool.Handle)

	rankTool := NewRankTool(deps.Ranker)
	s.AddTool(rankTool.Definition(), rankTool.Handle)

	accumulateTool := NewAccumulateTool(deps.Accumulator)
	s.AddTool(accumulateTool.Definition(), accumulateTool.Handle)

	classifyTool := NewClassifyTool()
	s.AddTool(classifyTool.Definition(), classifyTool.Handle)

	return s
}

// Serve runs the server over stdio until the client disconnects.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

const instructions = `knowpool is a shared pool of industry knowledge built up from past analysis sessions.

Call knowledge_context before analysing a venture to get what is already known about its industry.
Call knowledge_accumulate when a session finishes so its conclusions reinforce the pool.
Use knowledge_rank to inspect individual entries and knowledge_classify to preview categorisation.`
