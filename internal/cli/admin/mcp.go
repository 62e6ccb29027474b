package admin

import (
	"context"
	"log"

	"github.com/cloo-solutions/knowpool/internal/mcptools"
	"github.com/spf13/cobra"
)

func MCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the knowledge tools over MCP stdio",
		Long:  "Run an MCP server on stdin/stdout exposing context, ranking, accumulation and classification tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			// stdout carries the protocol
			log.SetOutput(cmd.ErrOrStderr())

			_, rt, err := loadRuntime(context.Background(), runtimeOptions{Migrate: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			s := mcptools.NewServer(mcptools.Deps{
				Ranker:      rt.Ranking,
				Context:     rt.Context,
				Accumulator: rt.Accumulator,
			})
			return mcptools.Serve(s)
		},
	}
}
