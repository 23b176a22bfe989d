package cli

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/neilberkman/acctabs/internal/core/config"
	"github.com/neilberkman/acctabs/internal/core/db"
	"github.com/neilberkman/acctabs/internal/core/janitor"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show account store statistics",
	Long: `Display statistics about the account store: account counts, activity
range, orphaned profile directories and storage info.`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	return withStore(func(database *db.DB, cfg *config.Config) error {
		stats, err := database.GetStats()
		if err != nil {
			return fmt.Errorf("failed to read stats: %w", err)
		}

		fmt.Println("Account Statistics")
		fmt.Println("==================")
		fmt.Println()

		fmt.Printf("Total Accounts:     %d\n", stats.TotalAccounts)
		fmt.Printf("Password Protected: %d\n", stats.ProtectedAccounts)
		fmt.Printf("Session Limit:      %d\n", cfg.MaxSessions)
		if stats.TotalAccounts > cfg.MaxSessions {
			fmt.Printf("Not Opened:         %d (beyond the session limit)\n", stats.TotalAccounts-cfg.MaxSessions)
		}
		fmt.Println()

		if stats.TotalAccounts > 0 {
			if !stats.OldestActive.IsZero() {
				fmt.Printf("Least Recent:       %s\n", stats.OldestActive.Local().Format("Jan 2, 2006 3:04 PM"))
			}
			if !stats.NewestActive.IsZero() {
				fmt.Printf("Most Recent:        %s\n", stats.NewestActive.Local().Format("Jan 2, 2006 3:04 PM"))
			}
			fmt.Println()
		}

		orphans, err := janitor.New(database.StorageRoot(), database, nil, nil).Orphans()
		if err != nil {
			return fmt.Errorf("failed to scan profiles: %w", err)
		}
		if len(orphans) > 0 {
			fmt.Printf("Orphaned Profiles:  %d (run 'acctabs cleanup')\n", len(orphans))
			fmt.Println()
		}

		// Database file size
		fileInfo, err := os.Stat(cfg.DBPath())
		if err != nil {
			return fmt.Errorf("failed to stat database file: %w", err)
		}

		fmt.Printf("Database Location:  %s\n", cfg.DBPath())
		fmt.Printf("Database Size:      %s\n", humanize.Bytes(uint64(fileInfo.Size())))
		return nil
	})
}
