package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/neilberkman/acctabs/internal/core/models"
	"github.com/neilberkman/acctabs/internal/core/registry"
	"github.com/spf13/cobra"
)

var zoomCmd = &cobra.Command{
	Use:   "zoom ID PERCENT|in|out|reset",
	Short: "Set an account's zoom level",
	Long: fmt.Sprintf(`Set the zoom level used when the account's page is shown.

Values are clamped to %d%%-%d%%.

Examples:
  acctabs zoom 2 125
  acctabs zoom 2 in
  acctabs zoom 2 reset`, models.ZoomPercent(models.MinZoom), models.ZoomPercent(models.MaxZoom)),
	Args: cobra.ExactArgs(2),
	RunE: runZoom,
}

func init() {
	rootCmd.AddCommand(zoomCmd)
}

func runZoom(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	arg := strings.ToLower(strings.TrimSuffix(args[1], "%"))

	var percent int
	switch arg {
	case "in", "out", "reset":
	default:
		percent, err = strconv.Atoi(arg)
		if err != nil || percent <= 0 {
			return fmt.Errorf("invalid zoom %q: want a percentage, in, out or reset", args[1])
		}
	}

	return withRegistry(ctx, func(reg *registry.Registry, a *app) error {
		var applied float64
		switch arg {
		case "in":
			applied, err = reg.ZoomIn(ctx, id)
		case "out":
			applied, err = reg.ZoomOut(ctx, id)
		case "reset":
			applied, err = reg.ResetZoom(ctx, id)
		default:
			applied, err = reg.SetZoom(ctx, id, float64(percent)/100)
		}
		if err != nil {
			return fmt.Errorf("failed to set zoom: %w", explain(id, err))
		}

		fmt.Printf("Account %d zoom: %d%%\n", id, models.ZoomPercent(applied))
		if percent != 0 && models.ZoomPercent(applied) != percent {
			fmt.Printf("    (requested %d%%, clamped)\n", percent)
		}
		return nil
	})
}
