package auth

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"fieldsync/cmd/client/cmd/types"
	"fieldsync/internal/app/client/syncer"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var syncAfter bool

var LoginCmd = &cobra.Command{
	Use:     "login [token]",
	Aliases: []string{"set-token"},
	Short:   "Save the API token",
	Long: `login stores the bearer token in the configuration directory. Without an
argument the token is read from the terminal without echo, or from stdin when it
is not a terminal.

Saving a token ends a rejected-token episode, so the next pass uploads again.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		token, err := readToken(cmd, args)
		if err != nil {
			return err
		}
		if err := app.SaveToken(token); err != nil {
			return fmt.Errorf("save token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), types.OK("✓"), "token saved")

		if !syncAfter {
			return nil
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()
		if err := app.CheckConnection(ctx); err != nil {
			fmt.Fprintln(cmd.OutOrStdout(), types.Warn("server unreachable, records stay queued"))
			return nil
		}
		report, err := app.SyncNow(ctx, syncer.ReasonManual)
		if err != nil {
			return fmt.Errorf("sync: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "synced %d, failed %d\n", report.Synced(), report.Failed())
		return nil
	},
}

func readToken(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(cmd.ErrOrStderr(), "Token: ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		return string(b), nil
	}

	var token string
	if _, err := fmt.Fscanln(cmd.InOrStdin(), &token); err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return strings.TrimSpace(token), nil
}

var LogoutCmd = &cobra.Command{
	Use:     "logout",
	Aliases: []string{"clear"},
	Short:   "Remove the saved token",
	Long:    `logout removes the token. Local records are kept and upload after the next login.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		if err := app.ClearToken(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), types.OK("✓"), "token removed")
		return nil
	},
}

func init() {
	LoginCmd.Flags().BoolVar(&syncAfter, "sync", false, "run a sync pass after saving")
}
