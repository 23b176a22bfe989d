package cli

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/neilberkman/acctabs/internal/core/config"
	"github.com/neilberkman/acctabs/internal/core/contentview"
	"github.com/neilberkman/acctabs/internal/interface/tui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Open all accounts in the interactive UI",
	Long: `Open every account (up to max_sessions) and show them as tabs in a terminal UI.

Each unlocked account's page runs in its own browser window with its own
profile directory. Press ? inside the UI for key bindings.`,
	RunE: runUI,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openApp(cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	engine, err := newEngine(cfg, a.logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if cfg.MetricsAddr != "" {
		go func() {
			if err := a.metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
				a.logger.Error("metrics server failed", zap.String("addr", cfg.MetricsAddr), zap.Error(err))
			}
		}()
	}

	bridge := tui.NewBridge()
	defer bridge.Close()

	reg, err := a.openRegistry(ctx, engine, bridge)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer closeCancel()
		if err := reg.Close(closeCtx); err != nil {
			a.logger.Warn("registry close failed", zap.Error(err))
		}
	}()

	p := tea.NewProgram(
		tui.New(reg),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	bridge.Attach(p)

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("error running UI: %w", err)
	}
	return nil
}

// newEngine picks the content view implementation from config
func newEngine(cfg *config.Config, logger *zap.Logger) (contentview.Engine, error) {
	switch cfg.Engine {
	case config.EngineNone:
		logger.Info("content views disabled")
		return &contentview.Headless{}, nil
	default:
		browser, err := contentview.NewBrowser(cfg.Browser, cfg.BrowserFlags, logger.Named("browser"))
		if err != nil {
			return nil, fmt.Errorf("%w (install Chromium, set browser in config, or use engine = \"none\")", err)
		}
		return browser, nil
	}
}
