package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/neilberkman/acctabs/internal/core/db"
	"github.com/neilberkman/acctabs/internal/core/registry"
	"github.com/neilberkman/acctabs/internal/core/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var removeYes bool

var removeCmd = &cobra.Command{
	Use:     "remove ID",
	Aliases: []string{"rm"},
	Short:   "Remove an account and delete its profile",
	Long: `Remove an account, then delete its profile directory with everything the
page stored in it (logins, caches, downloads).

Examples:
  acctabs remove 4
  acctabs remove 4 --yes`,
	Args: cobra.ExactArgs(1),
	RunE: runRemove,
}

func init() {
	rootCmd.AddCommand(removeCmd)
	removeCmd.Flags().BoolVarP(&removeYes, "yes", "y", false, "Do not ask for confirmation")
}

func runRemove(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	return withRegistry(ctx, func(reg *registry.Registry, a *app) error {
		info, err := reg.Get(ctx, id)
		if errors.Is(err, registry.ErrSessionNotFound) {
			return removeUnopened(ctx, a, id)
		}
		if err != nil {
			return explain(id, err)
		}

		if !removeYes {
			if !confirm(fmt.Sprintf("Remove %q and delete %s?", info.Name, info.StoragePath)) {
				fmt.Println("Aborted.")
				return nil
			}
		}

		td, err := reg.Remove(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to remove account: %w", explain(id, err))
		}

		spinner := NewSpinner("Deleting profile directory...")
		spinner.Start()
		err = td.Wait(ctx)
		spinner.Stop()

		fmt.Printf("Removed account %d: %s\n", id, info.Name)
		return reportTeardown(td.StoragePath, err)
	})
}

// removeUnopened removes an account that exists in the store but has no
// session, because it is beyond max_sessions
func removeUnopened(ctx context.Context, a *app, id int64) error {
	acct, err := a.database.GetAccount(id)
	if errors.Is(err, db.ErrAccountNotFound) {
		return fmt.Errorf("account %d does not exist", id)
	}
	if err != nil {
		return fmt.Errorf("failed to load account: %w", err)
	}

	if !removeYes {
		if !confirm(fmt.Sprintf("Remove %q and delete %s?", acct.Name, acct.StoragePath)) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	path, err := a.database.DeleteAccount(id)
	if err != nil {
		return fmt.Errorf("failed to remove account: %w", err)
	}
	a.logger.Info("account removed", zap.Int64("account_id", id), zap.Bool("opened", false))

	if path != "" {
		spinner := NewSpinner("Deleting profile directory...")
		spinner.Start()
		err = a.deleter().Delete(ctx, path)
		spinner.Stop()
	}

	fmt.Printf("Removed account %d: %s\n", id, acct.Name)
	return reportTeardown(path, err)
}

func reportTeardown(path string, err error) error {
	var incomplete *storage.TeardownIncompleteError
	switch {
	case errors.As(err, &incomplete):
		fmt.Fprintf(os.Stderr, "Warning: %s could not be fully deleted (%v)\n", path, incomplete.Err)
		fmt.Fprintln(os.Stderr, "Run 'acctabs cleanup' later to retry.")
	case err != nil:
		return fmt.Errorf("waiting for profile deletion: %w", err)
	}
	return nil
}

// confirm asks a yes/no question on stdin, defaulting to no
func confirm(question string) bool {
	fmt.Printf("%s [y/N] ", question)
	line, _ := stdin.ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
