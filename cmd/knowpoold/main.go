package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/knowpool/internal/cli"
	"github.com/cloo-solutions/knowpool/internal/cli/admin"
	"github.com/cloo-solutions/knowpool/internal/mcptools"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "knowpoold",
		Short: "Knowpool daemon and CLI",
		Long: `Knowpool daemon for running the API server, the MCP server and
one-shot commands against the knowledge store.

Configuration is read from KNOWPOOL_* environment variables and an optional .env file.`,
		Version: mcptools.Version,
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.MCPCmd())
	rootCmd.AddCommand(admin.MigrateCmd())
	rootCmd.AddCommand(admin.RankCmd())
	rootCmd.AddCommand(admin.HierarchyCmd())
	rootCmd.AddCommand(admin.ContextCmd())
	rootCmd.AddCommand(admin.ClassifyCmd())
	rootCmd.AddCommand(admin.AccumulateCmd())
	rootCmd.AddCommand(admin.SnapshotCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
