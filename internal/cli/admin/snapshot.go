package admin

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/knowpool/internal/domain"
	"github.com/spf13/cobra"
)

func SnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Export and import knowledge snapshots",
		Long:  "Write an industry's pool to object storage or seed the pool from a stored snapshot",
	}

	cmd.AddCommand(snapshotExportCmd())
	cmd.AddCommand(snapshotImportCmd())

	return cmd
}

func snapshotExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <industry>",
		Short: "Export an industry to object storage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, rt, err := loadRuntime(ctx, runtimeOptions{Storage: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			if rt.Snapshots == nil {
				return errStorageNotConfigured
			}
			result, err := rt.Snapshots.Export(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to export snapshot: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d entries to %s\n", result.Entries, result.Key)
			if result.DownloadURL != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Download: %s\n", result.DownloadURL)
			}
			return nil
		},
	}
}

func snapshotImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <key>",
		Short: "Merge a stored snapshot into the pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, rt, err := loadRuntime(ctx, runtimeOptions{Storage: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			if rt.Snapshots == nil {
				return errStorageNotConfigured
			}
			n, err := rt.Snapshots.Import(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to import snapshot: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d entries from %s\n", n, args[0])
			return nil
		},
	}
}

var errStorageNotConfigured = fmt.Errorf("%w: set KNOWPOOL_S3_ENDPOINT, KNOWPOOL_S3_ACCESS_KEY_ID and KNOWPOOL_S3_SECRET_ACCESS_KEY",
	domain.ErrStorageNotConfigured)
