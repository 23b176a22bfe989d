package cli

import (
	"fmt"
	"sort"

	"github.com/neilberkman/acctabs/internal/core/janitor"
	"github.com/spf13/cobra"
)

var cleanupDryRun bool

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete profile directories no account uses",
	Long: `Find session_* directories in the data directory that no account refers to
and delete them. These are left behind when a profile was still in use while
its account was removed.

Examples:
  acctabs cleanup --dry-run
  acctabs cleanup`,
	RunE: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
	cleanupCmd.Flags().BoolVarP(&cleanupDryRun, "dry-run", "n", false, "Only list what would be deleted")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openApp(cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	j := janitor.New(a.database.StorageRoot(), a.database, a.deleter(), a.logger)
	result, err := j.Sweep(cmd.Context(), cleanupDryRun)
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}

	if len(result.Orphans) == 0 {
		fmt.Println("No orphaned profile directories.")
		return nil
	}

	if cleanupDryRun {
		fmt.Printf("Would delete %d director(ies):\n", len(result.Orphans))
		for _, p := range result.Orphans {
			fmt.Printf("  %s\n", p)
		}
		return nil
	}

	for _, p := range result.Removed {
		fmt.Printf("Deleted %s\n", p)
	}
	if len(result.Failed) > 0 {
		busy := make([]string, 0, len(result.Failed))
		for p := range result.Failed {
			busy = append(busy, p)
		}
		sort.Strings(busy)
		for _, p := range busy {
			fmt.Printf("Still in use: %s (%v)\n", p, result.Failed[p])
		}
		return fmt.Errorf("%d director(ies) could not be deleted", len(busy))
	}
	return nil
}
