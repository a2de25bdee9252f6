package record

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"fieldsync/cmd/client/cmd/types"
	"fieldsync/internal/domain/record"

	"github.com/spf13/cobra"
)

// RecordCmd groups the commands over local records.
var RecordCmd = &cobra.Command{
	Use:   "record",
	Short: "Create and inspect local records",
	Long: `Records are saved on the device first and uploaded by sync passes.
Collections: attendance, site-logs, chiller-readings, tickets, ticket-updates.`,
}

var (
	payloadData string
	payloadFile string
)

func addPayloadFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&payloadData, "data", "d", "", "record JSON, or - for stdin")
	cmd.Flags().StringVarP(&payloadFile, "file", "f", "", "file holding the record JSON")
}

func syncMark(r *record.Record) string {
	if r.Synced {
		return types.OK("synced")
	}
	return types.Warn("pending")
}

func printRecord(w io.Writer, r *record.Record) {
	fmt.Fprintf(w, "%s %s\n", types.Bold(r.Domain.DisplayName()), r.LocalID)
	fmt.Fprintf(w, "  state:    %s (version %d)\n", syncMark(r), r.Version)
	if r.HasServerID() {
		fmt.Fprintf(w, "  server:   %s\n", r.ServerIDValue())
	}
	fmt.Fprintf(w, "  created:  %s\n", r.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(w, "  updated:  %s\n", r.UpdatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(w, "  payload:  %s\n", r.Payload)
}

func printRecords(w io.Writer, recs []*record.Record) {
	if len(recs) == 0 {
		fmt.Fprintln(w, types.Dim("no records"))
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LOCAL ID\tSTATE\tSERVER ID\tSITE\tUPDATED")
	for _, r := range recs {
		server := "-"
		if r.HasServerID() {
			server = r.ServerIDValue()
		}
		site := r.Index.SiteID
		if site == "" {
			site = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.LocalID, syncMark(r), server, site, r.UpdatedAt.Local().Format(time.DateTime))
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "\n%d record(s)\n", len(recs))
}
