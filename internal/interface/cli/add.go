package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/neilberkman/acctabs/internal/core/registry"
	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Add an account",
	Long: `Create a new account with its own profile directory.

Examples:
  acctabs add Work
  acctabs add "Family group"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

func init() {
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	name := strings.Join(args, " ")
	ctx := cmd.Context()

	return withRegistry(ctx, func(reg *registry.Registry, a *app) error {
		id, err := reg.Add(ctx, name)
		if err != nil {
			var capErr *registry.CapacityError
			if errors.As(err, &capErr) {
				return fmt.Errorf("already at the limit of %d accounts (raise max_sessions to add more)", capErr.Limit)
			}
			return fmt.Errorf("failed to add account: %w", err)
		}

		info, err := reg.Get(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("Added account %d: %s\n", info.ID, info.Name)
		fmt.Printf("    Profile: %s\n", info.StoragePath)
		return nil
	})
}
