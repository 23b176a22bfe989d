package cli

import (
	"fmt"
	"strings"

	"github.com/neilberkman/acctabs/internal/core/registry"
	"github.com/spf13/cobra"
)

var renameCmd = &cobra.Command{
	Use:   "rename ID NAME",
	Short: "Rename an account",
	Long: `Change an account's display name. Its profile directory stays where it is.

Examples:
  acctabs rename 3 "Work (old)"`,
	Args: cobra.MinimumNArgs(2),
	RunE: runRename,
}

func init() {
	rootCmd.AddCommand(renameCmd)
}

func runRename(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	name := strings.Join(args[1:], " ")
	ctx := cmd.Context()

	return withRegistry(ctx, func(reg *registry.Registry, a *app) error {
		if err := reg.Rename(ctx, id, name); err != nil {
			return fmt.Errorf("failed to rename account: %w", explain(id, err))
		}
		fmt.Printf("Renamed account %d to %s\n", id, strings.TrimSpace(name))
		return nil
	})
}
