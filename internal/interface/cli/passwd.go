package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/neilberkman/acctabs/internal/core/registry"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var passwdClear bool

var stdin = bufio.NewReader(os.Stdin)

var passwdCmd = &cobra.Command{
	Use:   "passwd ID",
	Short: "Set or clear an account's lock password",
	Long: `Set the password that hides an account behind a lock screen until it is
entered. Setting a password locks the account immediately.

Changing or clearing an existing password asks for the current one first.

Examples:
  acctabs passwd 2
  acctabs passwd 2 --clear`,
	Args: cobra.ExactArgs(1),
	RunE: runPasswd,
}

func init() {
	rootCmd.AddCommand(passwdCmd)
	passwdCmd.Flags().BoolVar(&passwdClear, "clear", false, "Remove the password")
}

func runPasswd(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	return withRegistry(ctx, func(reg *registry.Registry, a *app) error {
		info, err := reg.Get(ctx, id)
		if err != nil {
			return explain(id, err)
		}

		var current string
		if info.HasPassword {
			if current, err = readSecret("Current password: "); err != nil {
				return err
			}
		}

		if passwdClear {
			if !info.HasPassword {
				fmt.Printf("Account %d has no password.\n", id)
				return nil
			}
			if err := reg.ClearPassword(ctx, id, current); err != nil {
				return fmt.Errorf("failed to clear password: %w", explain(id, err))
			}
			fmt.Printf("Password removed from account %d: %s\n", id, info.Name)
			return nil
		}

		secret, err := readSecret("New password: ")
		if err != nil {
			return err
		}
		again, err := readSecret("Repeat new password: ")
		if err != nil {
			return err
		}
		if secret != again {
			return errors.New("passwords do not match")
		}

		if err := reg.SetPassword(ctx, id, current, secret); err != nil {
			if errors.Is(err, registry.ErrEmptySecret) {
				return errors.New("password must not be empty (use --clear to remove it)")
			}
			return fmt.Errorf("failed to set password: %w", explain(id, err))
		}
		fmt.Printf("Password set, account %d is locked: %s\n", id, info.Name)
		return nil
	})
}

// readSecret prompts without echo on a terminal, or reads a plain line when
// stdin is piped
func readSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := stdin.ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}
