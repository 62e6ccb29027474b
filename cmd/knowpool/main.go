package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/knowpool/internal/cli"
	"github.com/cloo-solutions/knowpool/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "knowpool",
		Short: "Knowpool CLI - shared market knowledge for venture sessions",
		Long: `Knowpool CLI talks to a knowpoold server to submit finished sessions
and read back ranked knowledge and context digests.

Environment variables:
  KNOWPOOL_API_KEY   API key for authentication (optional when the server has none)
  KNOWPOOL_API_URL   API base URL (default: http://localhost:8080)`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	client.AddConnectionFlags(rootCmd)
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.ContextCmd())
	rootCmd.AddCommand(client.RankCmd())
	rootCmd.AddCommand(client.SubmitCmd())
	rootCmd.AddCommand(client.JobCmd())
	rootCmd.AddCommand(client.AuthCmd())
	rootCmd.AddCommand(client.ConfigCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
