package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"fieldsync/cmd/client/cmd/types"
	"fieldsync/internal/app/client/syncer"
	"fieldsync/internal/domain/record"

	"github.com/spf13/cobra"
)

var timeout time.Duration

var SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Upload pending records now",
	Long: `sync runs one manual pass: attendance, ticket updates, site logs and chiller
readings are drained in that order. A manual pass ignores the cooldown that
throttles automatic passes.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		report, err := app.SyncNow(ctx, syncer.ReasonManual)
		if err != nil && report == nil {
			return err
		}
		if perr := types.Print(cmd, report, func(w io.Writer) { printReport(w, report) }); perr != nil {
			return perr
		}
		if err != nil {
			return err
		}
		if report.Failed() > 0 {
			return fmt.Errorf("%d record(s) failed to upload", report.Failed())
		}
		return nil
	},
}

func printReport(w io.Writer, r *syncer.Report) {
	if r.Error != "" {
		fmt.Fprintf(w, "%s %s\n", types.Fail("pass stopped:"), r.Error)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "COLLECTION\tSYNCED\tFAILED\tDEFERRED\tCHANGED")
	for _, d := range r.Domains {
		failed := fmt.Sprint(d.Failed)
		if d.Failed > 0 {
			failed = types.Fail(failed)
		}
		name := string(d.Domain)
		if d.Skipped {
			name += types.Dim(" (auto sync off)")
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%d\n", name, d.Synced, failed, d.Deferred, d.Changed)
	}
	_ = tw.Flush()

	for _, d := range r.Domains {
		for _, e := range d.Errors {
			fmt.Fprintf(w, "  %s %s/%s: %s\n", types.Fail("✗"), d.Domain, e.LocalID, e.Message)
		}
	}
	fmt.Fprintf(w, "\n%d synced in %s, %d request(s)\n", r.Synced(), r.Duration().Round(time.Millisecond), r.Requests)
}

var from string

var PullCmd = &cobra.Command{
	Use:   "pull <collection>",
	Short: "Download the server's records of a collection",
	Long: `pull stores the server's records as synced local records. Local records with
unsent changes are left untouched. Use it to bootstrap a device or to fetch tickets.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		d, err := record.ParseDomain(args[0])
		if err != nil {
			return err
		}

		var since time.Time
		if from != "" {
			if since, err = time.Parse(time.DateOnly, from); err != nil {
				return fmt.Errorf("--from must look like 2024-05-20: %w", err)
			}
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		report, err := app.Pull(ctx, d, since)
		if err != nil {
			return err
		}
		return types.Print(cmd, report, func(w io.Writer) {
			fmt.Fprintf(w, "%s received %d, inserted %d, updated %d, skipped %d\n",
				types.OK("✓"), report.Received, report.Inserted, report.Updated, report.Skipped)
		})
	},
}

var AutoCmd = &cobra.Command{
	Use:   "auto <collection> <on|off>",
	Short: "Include or skip a collection in automatic passes",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		d, err := record.ParseDomain(args[0])
		if err != nil {
			return err
		}

		var enabled bool
		switch args[1] {
		case "on":
			enabled = true
		case "off":
		default:
			return errors.New("expected on or off")
		}
		if err := app.SetAutoSync(cmd.Context(), d, enabled); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s auto sync for %s is %s\n", types.OK("✓"), d, args[1])
		return nil
	},
}

func init() {
	SyncCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "give up after this long")
	PullCmd.Flags().StringVar(&from, "from", "", "only records created on or after this date (YYYY-MM-DD)")
}
