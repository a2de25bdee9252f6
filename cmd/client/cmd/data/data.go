package data

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"fieldsync/cmd/client/cmd/types"

	"github.com/spf13/cobra"
)

// DataCmd groups the local data maintenance commands.
var DataCmd = &cobra.Command{
	Use:   "data",
	Short: "Maintain the local database",
}

var yes bool

var WipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Delete every local record and cached reference list",
	Long: `wipe clears the device, including records that were never uploaded.
The saved token is kept.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		if !yes {
			pending := 0
			st, err := app.Status(cmd.Context())
			if err != nil {
				return err
			}
			for _, d := range st.Domains {
				pending += d.Pending
			}
			msg := "Delete all local data?"
			if pending > 0 {
				msg = fmt.Sprintf("%d record(s) were never uploaded and will be lost. Delete all local data?", pending)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N] ", types.Warn(msg))
			answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
				fmt.Fprintln(cmd.OutOrStdout(), "aborted")
				return nil
			}
		}

		if err := app.ClearOfflineData(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), types.OK("✓"), "local data deleted")
		return nil
	},
}

var olderThan time.Duration

var PruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete uploaded records older than --older-than",
	Long:  `prune only removes synced records; anything still pending is kept.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		if olderThan <= 0 {
			return fmt.Errorf("--older-than must be positive")
		}
		n, err := app.Prune(cmd.Context(), olderThan)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s pruned %d record(s)\n", types.OK("✓"), n)
		return nil
	},
}

func init() {
	WipeCmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	PruneCmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "age of the records to delete")
}
