package client

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// ConfigCmd manages the pool defaults stored in the profile.
func ConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage default industry, segment and digest budget",
		Long:  "Defaults apply to context and rank when the industry argument, --segment or --max-chars are omitted. Keys: " + strings.Join(profileKeys, ", "),
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a default",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateProfile(func(p *Profile) error { return p.Set(args[0], args[1]) })
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "unset <key>",
		Short: "Clear a default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateProfile(func(p *Profile) error { return p.Set(args[0], "") })
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the stored defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := LoadProfile()
			if err != nil {
				return err
			}
			for _, key := range profileKeys {
				v, _ := p.Get(key)
				if v == "" {
					v = "-"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s\n", key, v)
			}
			return nil
		},
	})

	return cmd
}

func updateProfile(apply func(*Profile) error) error {
	p, err := LoadProfile()
	if err != nil {
		return err
	}
	if err := apply(p); err != nil {
		return err
	}
	return SaveProfile(p)
}
