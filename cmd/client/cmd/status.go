package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"fieldsync/cmd/client/cmd/types"
	"fieldsync/internal/app/client"
	"fieldsync/internal/app/client/syncer"

	"github.com/spf13/cobra"
)

var checkServer bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pending counts and the last sync per collection",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := types.App(cmd)
		if err != nil {
			return err
		}
		st, err := a.Status(cmd.Context())
		if err != nil {
			return err
		}

		var reachErr error
		if checkServer {
			reachErr = a.CheckConnection(cmd.Context())
		}

		return types.Print(cmd, st, func(w io.Writer) {
			printStatus(w, st)
			if checkServer {
				if reachErr != nil {
					fmt.Fprintf(w, "server:  %s (%v)\n", types.Fail("unreachable"), reachErr)
				} else {
					fmt.Fprintf(w, "server:  %s\n", types.OK("reachable"))
				}
			}
		})
	},
}

func printStatus(w io.Writer, st *client.Status) {
	auth := types.OK("token saved")
	switch {
	case !st.Authenticated:
		auth = types.Warn("no token, run fieldsync auth login")
	case st.SessionInvalid:
		auth = types.Fail("token rejected, save a new one")
	}
	fmt.Fprintf(w, "auth:    %s\n", auth)

	state := st.State.String()
	if st.State == syncer.StateSyncing {
		state = types.Warn(state)
	}
	fmt.Fprintf(w, "sync:    %s\n", state)
	if !st.LastAttempt.IsZero() {
		fmt.Fprintf(w, "last:    %s\n", st.LastAttempt.Local().Format(time.DateTime))
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "COLLECTION\tPENDING\tLAST SYNCED\tAUTO")
	for _, d := range st.Domains {
		pending := fmt.Sprint(d.Pending)
		if d.Pending > 0 {
			pending = types.Warn(pending)
		}
		last := types.Dim("never")
		if d.LastSyncedAt != nil {
			last = d.LastSyncedAt.Local().Format(time.DateTime)
		}
		auto := "on"
		if !d.AutoSync {
			auto = types.Dim("off")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Domain, pending, last, auto)
	}
	_ = tw.Flush()
}

func init() {
	statusCmd.Flags().BoolVar(&checkServer, "check", false, "also probe the server")
}
