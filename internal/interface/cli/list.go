package cli

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/neilberkman/acctabs/internal/core/config"
	"github.com/neilberkman/acctabs/internal/core/db"
	"github.com/neilberkman/acctabs/internal/core/filter"
	"github.com/neilberkman/acctabs/internal/core/models"
	"github.com/spf13/cobra"
)

var (
	listLimit int
	listSince string
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List accounts",
	Long: `List accounts, most recently active first.

Examples:
  acctabs list
  acctabs list --limit 5
  acctabs list --since "last week"
  acctabs list --since 2024-11-01`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "Maximum number of accounts to display (0 for all)")
	listCmd.Flags().StringVar(&listSince, "since", "", "Only accounts active since this date (e.g. yesterday, \"2 weeks ago\")")
}

func runList(cmd *cobra.Command, args []string) error {
	opts := filter.Options{Limit: listLimit}
	if listSince != "" {
		since, err := filter.ParseSince(listSince, time.Now())
		if err != nil {
			return err
		}
		opts.Since = since
	}

	return withStore(func(database *db.DB, cfg *config.Config) error {
		all, err := database.ListAccounts()
		if err != nil {
			return fmt.Errorf("failed to list accounts: %w", err)
		}

		// Only the most recent max_sessions accounts get a session
		opened := make(map[int64]bool)
		for i, a := range all {
			if i < cfg.MaxSessions {
				opened[a.ID] = true
			}
		}

		accounts := filter.Apply(all, opts)
		if len(accounts) == 0 {
			if len(all) == 0 {
				fmt.Println("No accounts yet. Run 'acctabs add NAME' to create one.")
			} else {
				fmt.Println("No accounts match.")
			}
			return nil
		}

		fmt.Printf("Showing %d of %d account(s)\n\n", len(accounts), len(all))
		for _, a := range accounts {
			printAccount(a, opened[a.ID])
		}
		return nil
	})
}

func printAccount(a models.Account, opened bool) {
	title := a.Name
	if a.HasPassword() {
		title += " [locked]"
	}
	if !opened {
		title += " [not opened]"
	}
	fmt.Printf("[%d] %s\n", a.ID, title)
	fmt.Printf("    Zoom:    %d%%\n", models.ZoomPercent(a.ZoomFactor))
	fmt.Printf("    Active:  %s\n", formatActive(a.LastActiveAt))
	fmt.Printf("    Profile: %s\n", a.StoragePath)
	fmt.Println()
}

func formatActive(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}
