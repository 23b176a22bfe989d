package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/neilberkman/acctabs/internal/core/config"
	"github.com/neilberkman/acctabs/internal/core/db"
	"github.com/neilberkman/acctabs/internal/core/models"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info ID",
	Short: "Show details of one account",
	Long: `Show an account's settings and how much disk its profile uses.

Examples:
  acctabs info 3`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	return withStore(func(database *db.DB, cfg *config.Config) error {
		a, err := database.GetAccount(id)
		if errors.Is(err, db.ErrAccountNotFound) {
			return fmt.Errorf("no account with id %d", id)
		}
		if err != nil {
			return fmt.Errorf("failed to load account: %w", err)
		}

		fmt.Printf("Account %d\n", a.ID)
		fmt.Println("==========")
		fmt.Printf("Name:        %s\n", a.Name)
		fmt.Printf("Zoom:        %d%%\n", models.ZoomPercent(a.ZoomFactor))
		fmt.Printf("Password:    %s\n", yesNo(a.HasPassword()))
		fmt.Printf("Last active: %s\n", formatActive(a.LastActiveAt))
		if !a.LastActiveAt.IsZero() {
			fmt.Printf("             %s\n", a.LastActiveAt.Local().Format("Jan 2, 2006 3:04 PM"))
		}
		fmt.Println()

		fmt.Printf("Profile:     %s\n", a.StoragePath)
		size, files, err := dirSize(a.StoragePath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			fmt.Println("             (missing, created on next open)")
		case err != nil:
			fmt.Printf("             (unreadable: %v)\n", err)
		default:
			fmt.Printf("Disk usage:  %s in %s files\n", humanize.Bytes(uint64(size)), humanize.Comma(int64(files)))
		}
		return nil
	})
}

// dirSize sums regular file sizes under root
func dirSize(root string) (int64, int, error) {
	var size int64
	var files int
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			// Profiles hold lock files and sockets that vanish mid-walk
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if fi, err := d.Info(); err == nil {
			size += fi.Size()
			files++
		}
		return nil
	})
	return size, files, err
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
